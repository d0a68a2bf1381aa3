// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"smartfuel/internal/cache"
	"smartfuel/internal/metrics"
	"smartfuel/internal/models"
	"smartfuel/internal/reasoner"
)

const serverName = "smartfuel"

// Version is reported by /healthz and overridden at build time.
var Version = "1.0.0"

var errInvalidParams = errors.New("invalid parameters")

type Config struct {
	Transport    string
	Host         string
	Port         int
	HistoryLimit int
}

// Store is the persistence the tool handlers need.
type Store interface {
	SaveReadings(ctx context.Context, userID string, readings []models.Reading) error
	GetReadings(ctx context.Context, userID string) ([]models.Reading, error)
	SaveProfile(ctx context.Context, userID string, profile models.NutritionProfile) error
	GetProfile(ctx context.Context, userID string) (*models.NutritionProfile, error)
	SaveGuidance(ctx context.Context, record *models.GuidanceRecord) error
	GetGuidanceHistory(ctx context.Context, userID string, limit int) ([]*models.GuidanceRecord, error)
	Close() error
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type SmartFuelServer struct {
	httpServer *http.Server
	handler    http.Handler
	storage    Store
	reasoner   *reasoner.Reasoner
	cache      *cache.GuidanceCache
	metrics    *metrics.Metrics
	logger     *zap.Logger
	config     *Config
	tools      map[string]toolHandler
}

// NewSmartFuelServer wires the tool handlers. A nil cache disables guidance caching.
func NewSmartFuelServer(
	cfg *Config,
	stor Store,
	r *reasoner.Reasoner,
	guidanceCache *cache.GuidanceCache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SmartFuelServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}

	s := &SmartFuelServer{
		storage:  stor,
		reasoner: r,
		cache:    guidanceCache,
		metrics:  m,
		logger:   logger,
		config:   cfg,
	}
	s.registerTools()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHTTP)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", m.Handler())
	s.handler = m.InstrumentHandler(mux)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the instrumented router.
func (s *SmartFuelServer) Handler() http.Handler {
	return s.handler
}

func (s *SmartFuelServer) handleHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		s.metrics.RecordToolCall("unknown", "not_found")
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		status := http.StatusInternalServerError
		label := "error"
		if errors.Is(err, errInvalidParams) {
			status = http.StatusBadRequest
			label = "invalid"
		} else {
			s.logger.Error("Tool call failed",
				zap.String("tool", request.Name),
				zap.Error(err),
			)
		}
		s.metrics.RecordToolCall(request.Name, label)
		http.Error(w, err.Error(), status)
		return
	}

	s.metrics.RecordToolCall(request.Name, "ok")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

type healthResponse struct {
	Status       string                  `json:"status"`
	Server       protocol.Implementation `json:"server"`
	RulesVersion string                  `json:"rules_version"`
	Themes       int                     `json:"themes"`
	Tools        []string                `json:"tools"`
}

func (s *SmartFuelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.reasoner.Rules()
	resp := healthResponse{
		Status: "ok",
		Server: protocol.Implementation{
			Name:    serverName,
			Version: Version,
		},
		RulesVersion: cfg.Version,
		Themes:       len(cfg.Themes),
		Tools:        toolNames,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to encode health response", zap.Error(err))
	}
}

func (s *SmartFuelServer) Start(ctx context.Context) error {
	s.logger.Info("Starting SmartFuel server",
		zap.String("addr", s.httpServer.Addr),
		zap.String("transport", s.config.Transport),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests, then closes storage.
func (s *SmartFuelServer) Stop(ctx context.Context) error {
	var shutdownErr error
	if s.httpServer != nil {
		shutdownErr = s.httpServer.Shutdown(ctx)
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			s.logger.Warn("Failed to close storage", zap.Error(err))
		}
	}
	return shutdownErr
}

func (s *SmartFuelServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
