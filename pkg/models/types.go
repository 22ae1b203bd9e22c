package models

import "time"

// Observation 売上記録1件（正規化済み）
// ポインタ型のフィールドは欠損（null）を表す
type Observation struct {
	Timestamp        time.Time `json:"date"`
	TargetQuantity   float64   `json:"quantity"`
	EntityName       *string   `json:"medicine_name,omitempty"`
	WeatherCondition *string   `json:"weather_condition,omitempty"`
	Temperature      *float64  `json:"temperature,omitempty"`
	Humidity         *float64  `json:"humidity,omitempty"`
	IsPromotion      bool      `json:"is_promotion"`
	DayOfWeek        *string   `json:"day_of_week,omitempty"`
}

// Entity returns the entity name or "" when absent.
func (o Observation) Entity() string {
	if o.EntityName == nil {
		return ""
	}
	return *o.EntityName
}

// ForecastPoint 予測結果の1行
type ForecastPoint struct {
	Date      time.Time `json:"ds"`
	Yhat      float64   `json:"yhat"`
	YhatLower float64   `json:"yhat_lower"`
	YhatUpper float64   `json:"yhat_upper"`
}

// EntityTotal 医薬品ごとの売上合計
type EntityTotal struct {
	MedicineName  string  `json:"medicine_name"`
	TotalQuantity float64 `json:"total_quantity"`
}

// ErrorResponse APIのエラーレスポンス
type ErrorResponse struct {
	Error string `json:"error"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}
