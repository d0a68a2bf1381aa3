// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"go.uber.org/zap"

	"smartfuel/internal/models"
)

const (
	toolGenerateGuidance    = "generate_guidance"
	toolRecordBiomarkers    = "record_biomarkers"
	toolSetNutritionProfile = "set_nutrition_profile"
	toolGetGuidanceHistory  = "get_guidance_history"
)

var toolNames = []string{
	toolGenerateGuidance,
	toolRecordBiomarkers,
	toolSetNutritionProfile,
	toolGetGuidanceHistory,
}

type GenerateGuidanceParams struct {
	UserID           string                   `json:"user_id,omitempty" description:"User whose stored readings and profile fill any missing inputs"`
	Biomarkers       []models.Reading         `json:"biomarkers,omitempty" description:"Biomarker readings; overrides stored readings"`
	NutritionProfile *models.NutritionProfile `json:"nutrition_profile,omitempty" description:"Dietary preferences and allergies; overrides the stored profile"`
	Goals            []string                 `json:"goals,omitempty" description:"Free-text goals echoed in the evidence"`
	Save             *bool                    `json:"save,omitempty" description:"Persist the result to history (defaults to true when user_id is set)"`
}

type RecordBiomarkersParams struct {
	UserID   string           `json:"user_id" description:"User the readings belong to"`
	Readings []models.Reading `json:"readings" description:"Readings to append"`
}

type SetNutritionProfileParams struct {
	UserID             string   `json:"user_id" description:"User the profile belongs to"`
	DietaryPreferences []string `json:"dietary_preferences" description:"Diet types, the first one is applied"`
	Allergies          []string `json:"allergies" description:"Allergen keywords matched against food examples"`
}

type GetGuidanceHistoryParams struct {
	UserID string `json:"user_id" description:"User whose history to return"`
	Limit  int    `json:"limit,omitempty" description:"Maximum number of records to return"`
}

type GenerateGuidanceResult struct {
	Guidance     models.SmartFuelGuidance `json:"guidance"`
	RulesVersion string                   `json:"rules_version"`
	RecordID     string                   `json:"record_id,omitempty"`
	Cached       bool                     `json:"cached"`
}

type GuidanceHistoryResult struct {
	UserID  string                   `json:"user_id"`
	History []*models.GuidanceRecord `json:"history"`
}

// extractParams decodes the request arguments into target.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal arguments: %v", errInvalidParams, err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}

	return nil
}

func (s *SmartFuelServer) handleGenerateGuidance(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GenerateGuidanceParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	signals, err := s.resolveSignals(ctx, params)
	if err != nil {
		return nil, err
	}

	rulesVersion := s.reasoner.Rules().Version
	result := GenerateGuidanceResult{RulesVersion: rulesVersion}

	var cacheKey string
	if s.cache != nil {
		cacheKey, err = s.cache.Key(params.UserID, rulesVersion, signals)
		if err != nil {
			s.logger.Warn("Failed to build cache key", zap.Error(err))
		} else if cached, found, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.logger.Warn("Guidance cache read failed", zap.Error(err))
		} else if found {
			result.Guidance = *cached
			result.Cached = true
		}
	}

	if !result.Cached {
		start := time.Now()
		result.Guidance = s.reasoner.GenerateGuidance(signals)
		s.metrics.ObserveGuidance(result.Guidance, time.Since(start))

		if s.cache != nil && cacheKey != "" {
			if err := s.cache.Set(ctx, cacheKey, result.Guidance); err != nil {
				s.logger.Warn("Guidance cache write failed", zap.Error(err))
			}
		}
	}

	if params.UserID != "" && (params.Save == nil || *params.Save) {
		record := &models.GuidanceRecord{
			UserID:       params.UserID,
			RulesVersion: rulesVersion,
			Guidance:     result.Guidance,
		}
		if err := s.storage.SaveGuidance(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save guidance: %w", err)
		}
		result.RecordID = record.ID
	}

	s.logger.Info("Guidance generated",
		zap.String("user_id", params.UserID),
		zap.Strings("themes", result.Guidance.ThemesDetected),
		zap.Bool("cached", result.Cached),
	)

	return s.createJSONResponse(result)
}

// resolveSignals fills inputs missing from the request with the user's stored data.
func (s *SmartFuelServer) resolveSignals(ctx context.Context, params GenerateGuidanceParams) (models.HealthSignals, error) {
	signals := models.HealthSignals{
		Biomarkers:       params.Biomarkers,
		NutritionProfile: params.NutritionProfile,
		Goals:            params.Goals,
	}
	if params.UserID == "" {
		return signals, nil
	}

	if signals.Biomarkers == nil {
		readings, err := s.storage.GetReadings(ctx, params.UserID)
		if err != nil {
			return signals, fmt.Errorf("failed to load readings: %w", err)
		}
		signals.Biomarkers = readings
	}
	if signals.NutritionProfile == nil {
		profile, err := s.storage.GetProfile(ctx, params.UserID)
		if err != nil {
			return signals, fmt.Errorf("failed to load profile: %w", err)
		}
		signals.NutritionProfile = profile
	}

	return signals, nil
}

func (s *SmartFuelServer) handleRecordBiomarkers(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RecordBiomarkersParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", errInvalidParams)
	}
	if len(params.Readings) == 0 {
		return nil, fmt.Errorf("%w: at least one reading is required", errInvalidParams)
	}

	now := time.Now().UTC()
	for i := range params.Readings {
		params.Readings[i].Type = strings.TrimSpace(params.Readings[i].Type)
		if params.Readings[i].Type == "" {
			return nil, fmt.Errorf("%w: reading %d has no type", errInvalidParams, i)
		}
		if params.Readings[i].RecordedAt.IsZero() {
			params.Readings[i].RecordedAt = now
		}
	}

	if err := s.storage.SaveReadings(ctx, params.UserID, params.Readings); err != nil {
		return nil, fmt.Errorf("failed to save readings: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{
		"user_id":  params.UserID,
		"recorded": len(params.Readings),
	})
}

func (s *SmartFuelServer) handleSetNutritionProfile(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SetNutritionProfileParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", errInvalidParams)
	}

	profile := models.NutritionProfile{
		DietaryPreferences: params.DietaryPreferences,
		Allergies:          params.Allergies,
	}
	if err := s.storage.SaveProfile(ctx, params.UserID, profile); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	return s.createJSONResponse(profile)
}

func (s *SmartFuelServer) handleGetGuidanceHistory(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetGuidanceHistoryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if params.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", errInvalidParams)
	}
	if params.Limit <= 0 {
		params.Limit = s.config.HistoryLimit
	}

	history, err := s.storage.GetGuidanceHistory(ctx, params.UserID, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve guidance history: %w", err)
	}
	if history == nil {
		history = []*models.GuidanceRecord{}
	}

	return s.createJSONResponse(GuidanceHistoryResult{
		UserID:  params.UserID,
		History: history,
	})
}

func (s *SmartFuelServer) registerTools() {
	s.tools = map[string]toolHandler{
		toolGenerateGuidance:    s.handleGenerateGuidance,
		toolRecordBiomarkers:    s.handleRecordBiomarkers,
		toolSetNutritionProfile: s.handleSetNutritionProfile,
		toolGetGuidanceHistory:  s.handleGetGuidanceHistory,
	}

	for _, name := range toolNames {
		s.logger.Debug("Registered tool", zap.String("tool", name))
	}
}
