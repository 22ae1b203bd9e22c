package handlers

import (
	"crypto/subtle"
	"net/http"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter はストアを受け取り、サービスとハンドラーを組み立てたルーターを返す
func NewRouter(cfg *config.Config, store datastore.Store, logger *zap.SugaredLogger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// サービスの初期化
	monitoringService := services.NewMonitoringService()
	fetcher := services.NewRecordFetcher(store, logger)
	adapter := services.NewForecastAdapter(cfg.Forecaster.Options(), logger)
	salesService := services.NewSalesForecastService(fetcher, adapter, cfg.MaxPeriods, logger)
	importer := services.NewSalesImporter(store, logger)

	// ハンドラーの初期化
	salesHandler := NewSalesForecastHandler(salesService, importer, cfg)
	adminHandler := NewAdminHandler(cfg, logger)
	monitoringHandler := NewMonitoringHandler(monitoringService)

	r := gin.Default()

	// ミドルウェアの登録
	r.Use(services.RequestIDMiddleware())
	r.Use(monitoringService.LoggingMiddleware())
	r.Use(cors.Default())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Sales forecast API is running"})
	})
	r.GET("/health", adminHandler.HealthCheck(store.Name()))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 予測API
	forecast := r.Group("/")
	forecast.Use(APIKeyMiddleware(cfg.APIKey), adminHandler.MaintenanceMiddleware())
	{
		forecast.GET("/predict-sales", salesHandler.PredictSales)
		forecast.GET("/predict-sales/export", salesHandler.ExportForecast)
		forecast.GET("/highest-selling-medicines", salesHandler.HighestSellingMedicines)
		forecast.GET("/predict-sales-medicine", salesHandler.PredictSalesMedicine)
		forecast.POST("/sales/import", salesHandler.ImportSales)
	}

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(APIKeyMiddleware(cfg.APIKey))
	{
		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
		}
	}

	return r
}

// APIKeyMiddleware は X-API-KEY ヘッダーを検証する。キー未設定なら素通し
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" || apiKey == "default_secret_key" {
			c.Next()
			return
		}
		providedKey := c.GetHeader("X-API-KEY")
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
