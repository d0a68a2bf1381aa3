// cmd/smartfuel/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"smartfuel/internal/cache"
	"smartfuel/internal/config"
	"smartfuel/internal/logger"
	"smartfuel/internal/metrics"
	"smartfuel/internal/reasoner"
	"smartfuel/internal/rules"
	"smartfuel/internal/server"
	"smartfuel/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	transport := flag.String("transport", cfg.HTTP.Transport, "Transport mode: http")
	port := flag.Int("port", cfg.HTTP.Port, "Port for HTTP transport")
	host := flag.String("host", cfg.HTTP.Host, "Host address")
	dbPath := flag.String("db-path", cfg.DBPath, "Database path")
	rulesPath := flag.String("rules", cfg.Rules.RulePackPath, "Rule pack file (embedded default when empty)")
	ontologyPath := flag.String("ontology", cfg.Rules.OntologyPath, "Food ontology file (embedded default when empty)")
	version := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *version {
		fmt.Printf("smartfuel version %s\n", server.Version)
		os.Exit(0)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "smartfuel")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ruleConfig, err := rules.LoadFiles(*rulesPath, *ontologyPath, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to load rules", zap.Error(err))
	}
	engine := reasoner.New(rules.NewHolder(ruleConfig), zapLogger)

	stor, err := storage.NewSQLiteStorage(*dbPath)
	if err != nil {
		zapLogger.Fatal("Failed to initialize storage", zap.String("db_path", *dbPath), zap.Error(err))
	}

	var guidanceCache *cache.GuidanceCache
	if cfg.Cache.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			zapLogger.Warn("Redis unavailable, guidance cache disabled",
				zap.String("addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		} else {
			guidanceCache = cache.NewGuidanceCache(redisClient, cfg.Cache.KeyPrefix, cfg.Cache.TTL, zapLogger)
		}
		cancel()
	}

	srv := server.NewSmartFuelServer(&server.Config{
		Transport:    *transport,
		Host:         *host,
		Port:         *port,
		HistoryLimit: cfg.History.DefaultLimit,
	}, stor, engine, guidanceCache, metrics.New(), zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	running := true
	for running {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reloadRules(engine, *rulesPath, *ontologyPath, zapLogger)
				continue
			}
			zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			running = false
		case err := <-errCh:
			zapLogger.Error("Server error", zap.Error(err))
			running = false
		}
	}

	zapLogger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}
}

// reloadRules swaps in a freshly loaded rule pack. On failure the running rules stay active.
func reloadRules(engine *reasoner.Reasoner, rulesPath, ontologyPath string, logger *zap.Logger) {
	cfg, err := rules.LoadFiles(rulesPath, ontologyPath, logger)
	if err != nil {
		logger.Error("Rule reload failed, keeping current rules",
			zap.String("current_version", engine.Rules().Version),
			zap.Error(err),
		)
		return
	}
	engine.Reload(cfg)
}
