package handlers

import (
	"crypto/subtle"
	"net/http"
	"sync/atomic"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler は管理者向け操作のハンドラです。
// メンテナンス中は予測系のルートが 503 を返します。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string

	maintenance atomic.Bool
	logger      *zap.SugaredLogger
}

// NewAdminHandler は新しいAdminHandlerを生成します。
func NewAdminHandler(cfg *config.Config, logger *zap.SugaredLogger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		logger:        logger,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	h.setMaintenance(c, true, "Maintenance mode started")
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	h.setMaintenance(c, false, "Maintenance mode stopped")
}

func (h *AdminHandler) setMaintenance(c *gin.Context, on bool, message string) {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	if !h.authorized(input) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.maintenance.Store(on)
	h.logger.Infow("maintenance mode changed", "enabled", on, "request_id", c.GetString(services.RequestIDHeader))
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// authorized は定数時間で資格情報を比較する。パスワード未設定なら常に拒否
func (h *AdminHandler) authorized(input AdminCredentials) bool {
	if h.AdminPassword == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(input.Username), []byte(h.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(input.Password), []byte(h.AdminPassword)) == 1
	return userOK && passOK
}

// InMaintenance reports whether maintenance mode is on.
func (h *AdminHandler) InMaintenance() bool {
	return h.maintenance.Load()
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"isMaintenanceMode": h.InMaintenance()})
}

// MaintenanceMiddleware はメンテナンス中のリクエストを 503 で拒否します。
func (h *AdminHandler) MaintenanceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.InMaintenance() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Server is in maintenance mode"})
			return
		}
		c.Next()
	}
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(storeName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.InMaintenance() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "sales-forecast-api",
			"store":   storeName,
		})
	}
}
