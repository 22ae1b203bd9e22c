package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/handlers"
	"sales-forecast-api/pkg/logging"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// ストアの接続（起動時に一度だけ）
	openCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := datastore.Open(openCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatalw("failed to open document store", "backend", cfg.StoreBackend, "error", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnw("failed to close document store", "error", err)
		}
	}()

	r := handlers.NewRouter(cfg, store, logger)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infow("starting sales forecast API", "port", cfg.Port, "store", store.Name(), "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
	}
}

// loadConfig は環境変数と任意の YAML ファイルから設定を読み込む
func loadConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	settings, err := config.LoadForecasterFile(cfg.ForecasterConfigFile, cfg.Forecaster)
	if err != nil {
		return nil, err
	}
	cfg.Forecaster = settings
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
