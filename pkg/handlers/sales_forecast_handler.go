package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SalesForecastHandler 売上予測ハンドラー
type SalesForecastHandler struct {
	service  *services.SalesForecastService
	importer *services.SalesImporter
	cfg      *config.Config
}

// NewSalesForecastHandler 新しい売上予測ハンドラーを作成
// importer が nil の場合、取り込みAPIは 501 を返す
func NewSalesForecastHandler(service *services.SalesForecastService, importer *services.SalesImporter, cfg *config.Config) *SalesForecastHandler {
	return &SalesForecastHandler{service: service, importer: importer, cfg: cfg}
}

func (h *SalesForecastHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

// PredictSales コレクション全体の売上予測
func (h *SalesForecastHandler) PredictSales(c *gin.Context) {
	collection := queryString(c, "collection", h.cfg.DefaultCollection)
	periods, err := queryInt(c, "periods", h.cfg.DefaultPeriods)
	if err != nil {
		renderError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	points, err := h.service.Forecast(ctx, collection, periods)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// HighestSellingMedicines 売上上位の医薬品
func (h *SalesForecastHandler) HighestSellingMedicines(c *gin.Context) {
	collection := queryString(c, "collection", h.cfg.DefaultCollection)
	topN, err := queryInt(c, "top_n", h.cfg.DefaultTopN)
	if err != nil {
		renderError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	totals, err := h.service.TopEntities(ctx, collection, topN)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, totals)
}

// PredictSalesMedicine 医薬品別の売上予測
func (h *SalesForecastHandler) PredictSalesMedicine(c *gin.Context) {
	collection := queryString(c, "collection", h.cfg.DefaultCollection)
	name := c.Query("medicine_name")
	periods, err := queryInt(c, "periods", h.cfg.DefaultPeriods)
	if err != nil {
		renderError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	points, err := h.service.ForecastEntity(ctx, collection, name, periods)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}

// ExportForecast 予測結果を Excel でダウンロード
func (h *SalesForecastHandler) ExportForecast(c *gin.Context) {
	collection := queryString(c, "collection", h.cfg.DefaultCollection)
	periods, err := queryInt(c, "periods", h.cfg.DefaultPeriods)
	if err != nil {
		renderError(c, err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	points, err := h.service.Forecast(ctx, collection, periods)
	if err != nil {
		renderError(c, err)
		return
	}

	f, err := services.BuildForecastWorkbook(points)
	if err != nil {
		renderError(c, err)
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		renderError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="forecast_%s.xlsx"`, collection))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ImportSales アップロードされた .xlsx / .csv を売上ドキュメントとして取り込む
func (h *SalesForecastHandler) ImportSales(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "the configured store does not accept writes"})
		return
	}

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	collection := queryString(c, "collection", c.DefaultPostForm("collection", h.cfg.DefaultCollection))

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.importer.Import(ctx, collection, fileHeader.Filename, file)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
	case errors.Is(err, services.ErrUnsupportedFile), errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		renderError(c, err)
	}
}
