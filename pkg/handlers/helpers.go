package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"sales-forecast-api/pkg/models"
	"sales-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// queryInt はクエリパラメータを整数として読む。未指定なら既定値
func queryInt(c *gin.Context, key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", services.ErrInvalidInput, key, raw)
	}
	return v, nil
}

// queryString はクエリパラメータを読む。空なら既定値
func queryString(c *gin.Context, key, defaultValue string) string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return v
	}
	return defaultValue
}

// renderError は予測系のエラーを一律 500 で返す
func renderError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
}
