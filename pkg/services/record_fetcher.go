package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/metrics"
	"sales-forecast-api/pkg/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ドキュメントのフィールド名の候補（大文字小文字は区別しない）
var (
	dateFields        = []string{"date", "ds", "timestamp"}
	quantityFields    = []string{"quantity", "sales", "quantity_sold", "y"}
	nameFields        = []string{"medicine_name", "product_name", "name"}
	weatherFields     = []string{"weather_condition", "weather"}
	temperatureFields = []string{"temperature", "temp"}
	humidityFields    = []string{"humidity"}
	promotionFields   = []string{"is_promotion", "promotion", "promo"}
	dayFields         = []string{"day_of_week", "weekday", "day"}
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"2006/1/2",
	"2006-01-02 15:04:05",
	"2006/1/2 15:04:05",
}

// Excel の日付シリアル値として受け付ける範囲（1900-01-01 〜 9999-12-31）
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// RecordFetcher ストアの売上ドキュメントを Observation に変換する
type RecordFetcher struct {
	store  datastore.Store
	logger *zap.SugaredLogger
}

// NewRecordFetcher 新しいRecordFetcherを作成
func NewRecordFetcher(store datastore.Store, logger *zap.SugaredLogger) *RecordFetcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RecordFetcher{store: store, logger: logger}
}

// Fetch scans the whole collection. Documents without a usable date or
// quantity are dropped. An empty collection is not an error.
func (f *RecordFetcher) Fetch(ctx context.Context, collection string) ([]models.Observation, error) {
	start := time.Now()
	docs, err := f.store.Stream(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrDataSourceUnavailable, f.store.Name(), collection, err)
	}
	metrics.RecordFetch(f.store.Name(), time.Since(start), len(docs))

	observations := make([]models.Observation, 0, len(docs))
	dropped := 0
	for _, doc := range docs {
		obs, ok := DecodeObservation(doc)
		if !ok {
			dropped++
			continue
		}
		observations = append(observations, obs)
	}
	if dropped > 0 {
		f.logger.Debugw("dropped documents without date or quantity",
			"collection", collection, "dropped", dropped, "kept", len(observations))
	}
	return observations, nil
}

// DecodeObservation は1ドキュメントを正規化する。日付か数量が無ければ false
func DecodeObservation(doc datastore.Document) (models.Observation, bool) {
	ts, ok := toDate(lookup(doc, dateFields))
	if !ok {
		return models.Observation{}, false
	}
	qty, ok := toFloat(lookup(doc, quantityFields))
	if !ok {
		return models.Observation{}, false
	}

	obs := models.Observation{
		Timestamp:        ts,
		TargetQuantity:   qty,
		EntityName:       toText(lookup(doc, nameFields)),
		WeatherCondition: toText(lookup(doc, weatherFields)),
		DayOfWeek:        toText(lookup(doc, dayFields)),
		IsPromotion:      toBool(lookup(doc, promotionFields)),
	}
	if v, ok := toFloat(lookup(doc, temperatureFields)); ok {
		obs.Temperature = &v
	}
	if v, ok := toFloat(lookup(doc, humidityFields)); ok {
		obs.Humidity = &v
	}
	return obs, true
}

// lookup returns the first present candidate. Exact keys win over
// case-insensitive matches; among keys differing only in case the
// lexically smallest wins.
func lookup(doc datastore.Document, candidates []string) interface{} {
	for _, c := range candidates {
		if v, ok := doc[c]; ok && v != nil {
			return v
		}
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, c := range candidates {
		for _, k := range keys {
			if v := doc[k]; v != nil && strings.EqualFold(strings.TrimSpace(k), c) {
				return v
			}
		}
	}
	return nil
}

func toDate(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return truncateDay(val), !val.IsZero()
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return truncateDay(*val), !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return truncateDay(t), true
			}
		}
		return fromExcelSerial(s)
	}
	return time.Time{}, false
}

// fromExcelSerial は生のセル値（例: "45293"）を日付に変換する
func fromExcelSerial(s string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return truncateDay(t), true
}

// truncateDay keeps the calendar day in the value's own location.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func toText(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func toBool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "y", "1":
			return true
		}
		return false
	default:
		f, ok := toFloat(v)
		return ok && f != 0 && !math.IsNaN(f)
	}
}
