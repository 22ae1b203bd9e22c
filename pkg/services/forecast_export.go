package services

import (
	"fmt"

	"sales-forecast-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ForecastSheet エクスポートするシート名
const ForecastSheet = "forecast"

var forecastHeader = []string{"ds", "yhat", "yhat_lower", "yhat_upper"}

// BuildForecastWorkbook writes points into a new workbook: a header row,
// then one row per point. The caller closes the file.
func BuildForecastWorkbook(points []models.ForecastPoint) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), ForecastSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := forecastHeader
	if err := f.SetSheetRow(ForecastSheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, p := range points {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []interface{}{p.Date.Format("2006-01-02"), p.Yhat, p.YhatLower, p.YhatUpper}
		if err := f.SetSheetRow(ForecastSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	// 日付列を見やすく
	if err := f.SetColWidth(ForecastSheet, "A", "A", 12); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
