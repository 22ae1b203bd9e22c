package handler

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/handlers"
	"sales-forecast-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

var (
	app     http.Handler
	once    sync.Once
	initErr error
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
// ストアはインスタンスの寿命の間だけ開いたままにします。
func setupApp() (http.Handler, error) {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()
		settings, err := config.LoadForecasterFile(cfg.ForecasterConfigFile, cfg.Forecaster)
		if err != nil {
			initErr = err
			return
		}
		cfg.Forecaster = settings
		if err := cfg.Validate(); err != nil {
			initErr = err
			return
		}

		logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
		if err != nil {
			initErr = err
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store, err := datastore.Open(ctx, cfg, logger)
		if err != nil {
			initErr = err
			return
		}

		gin.SetMode(gin.ReleaseMode)
		app = handlers.NewRouter(cfg, store, logger)
	})
	return app, initErr
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := setupApp()
	if err != nil {
		log.Printf("[Handler] initialization failed: %v", err)
		http.Error(w, `{"error":"service initialization failed"}`, http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r)
}
