package services

import (
	"sort"
	"strings"
	"time"

	"sales-forecast-api/pkg/models"
)

// 回帰変数の列名
const (
	ColumnTemperature = "temperature"
	ColumnHumidity    = "humidity"
	ColumnPromotion   = "is_promotion"

	CategoryWeather = "weather"
	CategoryDay     = "day"

	missingValue = "missing"
)

var (
	baseRegressors   = []string{ColumnTemperature, ColumnHumidity, ColumnPromotion}
	categoryFields   = []string{CategoryWeather, CategoryDay}
	continuousFields = []string{ColumnTemperature, ColumnHumidity}
)

// FeatureSchema is computed once per batch and passed to the adapter, so the
// future frame carries exactly the training columns.
type FeatureSchema struct {
	// Categories maps a category field to its sorted observed values (slugs).
	// "missing" is present when any row had the field null.
	Categories map[string][]string
}

// IndicatorColumns returns the one-hot columns, weather first, then day.
func (s *FeatureSchema) IndicatorColumns() []string {
	var cols []string
	for _, field := range categoryFields {
		for _, v := range s.Categories[field] {
			cols = append(cols, field+"_"+v)
		}
	}
	return cols
}

// Columns は回帰変数の全列（基本列 + インジケータ列）を返す
func (s *FeatureSchema) Columns() []string {
	cols := make([]string, 0, len(baseRegressors)+len(s.IndicatorColumns()))
	cols = append(cols, baseRegressors...)
	return append(cols, s.IndicatorColumns()...)
}

// IndicatorColumn names the one-hot column for value of a category field.
// A nil or blank value maps to the missing bucket.
func IndicatorColumn(field string, value *string) string {
	return field + "_" + slug(value)
}

// IsIndicatorColumn reports whether name is a one-hot column.
func IsIndicatorColumn(name string) bool {
	for _, field := range categoryFields {
		if strings.HasPrefix(name, field+"_") {
			return true
		}
	}
	return false
}

func slug(value *string) string {
	if value == nil {
		return missingValue
	}
	s := strings.ToLower(strings.TrimSpace(*value))
	if s == "" {
		return missingValue
	}
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// TrainingFrame 時刻昇順に並んだ学習データ
type TrainingFrame struct {
	Schema     *FeatureSchema
	Timestamps []time.Time
	Target     []float64
	// Columns holds one value per row for every Schema.Columns() entry.
	Columns map[string][]float64
	// Means are the batch means of the continuous regressors, used for
	// imputation and for rows appended past the training end.
	Means map[string]float64
}

// Len returns the number of rows.
func (f *TrainingFrame) Len() int {
	return len(f.Timestamps)
}

// FeatureEncoder は Observation を学習用のフレームに変換する
type FeatureEncoder struct{}

// Encode one-hot encodes weather and day, imputes missing continuous values
// with the batch mean and orders rows by timestamp (stable).
func (FeatureEncoder) Encode(observations []models.Observation) (*TrainingFrame, error) {
	if len(observations) == 0 {
		return nil, ErrEmptyDataset
	}

	rows := make([]models.Observation, len(observations))
	copy(rows, observations)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	schema := buildSchema(rows)
	means := continuousMeans(rows)

	n := len(rows)
	frame := &TrainingFrame{
		Schema:     schema,
		Timestamps: make([]time.Time, n),
		Target:     make([]float64, n),
		Columns:    make(map[string][]float64),
		Means:      means,
	}
	for _, col := range schema.Columns() {
		frame.Columns[col] = make([]float64, n)
	}

	for i, obs := range rows {
		frame.Timestamps[i] = obs.Timestamp
		frame.Target[i] = obs.TargetQuantity
		frame.Columns[ColumnTemperature][i] = valueOr(obs.Temperature, means[ColumnTemperature])
		frame.Columns[ColumnHumidity][i] = valueOr(obs.Humidity, means[ColumnHumidity])
		if obs.IsPromotion {
			frame.Columns[ColumnPromotion][i] = 1
		}
		frame.Columns[IndicatorColumn(CategoryWeather, obs.WeatherCondition)][i] = 1
		frame.Columns[IndicatorColumn(CategoryDay, obs.DayOfWeek)][i] = 1
	}

	return frame, nil
}

func buildSchema(rows []models.Observation) *FeatureSchema {
	seen := map[string]map[string]struct{}{
		CategoryWeather: {},
		CategoryDay:     {},
	}
	for _, obs := range rows {
		seen[CategoryWeather][slug(obs.WeatherCondition)] = struct{}{}
		seen[CategoryDay][slug(obs.DayOfWeek)] = struct{}{}
	}

	schema := &FeatureSchema{Categories: make(map[string][]string, len(seen))}
	for field, values := range seen {
		list := make([]string, 0, len(values))
		for v := range values {
			list = append(list, v)
		}
		sort.Strings(list)
		schema.Categories[field] = list
	}
	return schema
}

func continuousMeans(rows []models.Observation) map[string]float64 {
	sums := make(map[string]float64, len(continuousFields))
	counts := make(map[string]int, len(continuousFields))
	for _, obs := range rows {
		if obs.Temperature != nil {
			sums[ColumnTemperature] += *obs.Temperature
			counts[ColumnTemperature]++
		}
		if obs.Humidity != nil {
			sums[ColumnHumidity] += *obs.Humidity
			counts[ColumnHumidity]++
		}
	}
	means := make(map[string]float64, len(continuousFields))
	for _, field := range continuousFields {
		if counts[field] > 0 {
			means[field] = sums[field] / float64(counts[field])
		} else {
			means[field] = 0
		}
	}
	return means
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
