package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"sales-forecast-api/pkg/metrics"
	"sales-forecast-api/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fetcher reads normalized observations from a collection.
type Fetcher interface {
	Fetch(ctx context.Context, collection string) ([]models.Observation, error)
}

// SalesForecastService 売上予測の窓口（取得 → エンコード → 予測）
type SalesForecastService struct {
	fetcher    Fetcher
	encoder    FeatureEncoder
	adapter    *ForecastAdapter
	maxHorizon int
	logger     *zap.SugaredLogger
}

// NewSalesForecastService 新しい売上予測サービスを作成
// maxHorizon <= 0 は上限なし
func NewSalesForecastService(fetcher Fetcher, adapter *ForecastAdapter, maxHorizon int, logger *zap.SugaredLogger) *SalesForecastService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SalesForecastService{
		fetcher:    fetcher,
		adapter:    adapter,
		maxHorizon: maxHorizon,
		logger:     logger,
	}
}

// Forecast returns the trailing horizon points of the collection's forecast.
func (s *SalesForecastService) Forecast(ctx context.Context, collection string, horizon int) (points []models.ForecastPoint, err error) {
	defer s.observe(ctx, "forecast", &err, "collection", collection, "horizon", horizon)

	if err := s.validateCollection(collection); err != nil {
		return nil, err
	}
	if err := s.validateHorizon(horizon); err != nil {
		return nil, err
	}

	observations, err := s.fetcher.Fetch(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: collection %q", ErrEmptyDataset, collection)
	}
	return s.forecast(ctx, observations, horizon)
}

// TopEntities 売上合計の多い医薬品を上位 n 件返す
// 同率の場合は最初に出現した順。医薬品名の無い記録は集計しない
func (s *SalesForecastService) TopEntities(ctx context.Context, collection string, n int) (totals []models.EntityTotal, err error) {
	defer s.observe(ctx, "top_entities", &err, "collection", collection, "top_n", n)

	if err := s.validateCollection(collection); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidInput, n)
	}

	observations, err := s.fetcher.Fetch(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: collection %q", ErrEmptyDataset, collection)
	}
	return AggregateTopEntities(observations, n), nil
}

// ForecastEntity forecasts only the records of the named medicine. An empty
// collection is ErrEmptyDataset; a name with no records is ErrEntityNotFound.
func (s *SalesForecastService) ForecastEntity(ctx context.Context, collection, name string, horizon int) (points []models.ForecastPoint, err error) {
	defer s.observe(ctx, "forecast_entity", &err, "collection", collection, "medicine_name", name, "horizon", horizon)

	if err := s.validateCollection(collection); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: medicine_name is required", ErrInvalidInput)
	}
	if err := s.validateHorizon(horizon); err != nil {
		return nil, err
	}

	observations, err := s.fetcher.Fetch(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, fmt.Errorf("%w: collection %q", ErrEmptyDataset, collection)
	}

	filtered := FilterEntity(observations, name)
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, name)
	}
	return s.forecast(ctx, filtered, horizon)
}

func (s *SalesForecastService) forecast(ctx context.Context, observations []models.Observation, horizon int) ([]models.ForecastPoint, error) {
	frame, err := s.encoder.Encode(observations)
	if err != nil {
		return nil, err
	}
	points, err := s.adapter.FitPredict(ctx, frame, horizon)
	if err != nil {
		return nil, err
	}
	return tail(points, horizon), nil
}

func (s *SalesForecastService) validateCollection(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidInput)
	}
	return nil
}

func (s *SalesForecastService) validateHorizon(horizon int) error {
	if horizon <= 0 {
		return fmt.Errorf("%w: periods must be positive, got %d", ErrInvalidInput, horizon)
	}
	if s.maxHorizon > 0 && horizon > s.maxHorizon {
		return fmt.Errorf("%w: periods must be <= %d, got %d", ErrInvalidInput, s.maxHorizon, horizon)
	}
	return nil
}

// observe は結果をログとメトリクスに記録する
func (s *SalesForecastService) observe(ctx context.Context, operation string, errp *error, keysAndValues ...interface{}) {
	kind := ErrorKind(*errp)
	metrics.RecordOperation(operation, kind)

	fields := append([]interface{}{"operation", operation}, keysAndValues...)
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, "request_id", id)
	}
	if *errp != nil {
		s.logger.Errorw("forecast request failed", append(fields, "kind", kind, "error", *errp)...)
		return
	}
	s.logger.Infow("forecast request completed", fields...)
}

// AggregateTopEntities sums quantities per medicine and returns the top n by
// total, ties kept in first-encounter order. Names are grouped the same way
// FilterEntity matches them; the first spelling seen is reported.
func AggregateTopEntities(observations []models.Observation, n int) []models.EntityTotal {
	index := make(map[string]int)
	var names []string
	var sums []decimal.Decimal
	for _, obs := range observations {
		name := strings.TrimSpace(obs.Entity())
		if name == "" || math.IsNaN(obs.TargetQuantity) || math.IsInf(obs.TargetQuantity, 0) {
			continue
		}
		key := entityKey(name)
		i, ok := index[key]
		if !ok {
			i = len(names)
			index[key] = i
			names = append(names, name)
			sums = append(sums, decimal.Zero)
		}
		sums[i] = sums[i].Add(decimal.NewFromFloat(obs.TargetQuantity))
	}

	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return sums[order[a]].GreaterThan(sums[order[b]])
	})

	if n > len(order) {
		n = len(order)
	}
	out := make([]models.EntityTotal, n)
	for i := 0; i < n; i++ {
		out[i] = models.EntityTotal{
			MedicineName:  names[order[i]],
			TotalQuantity: sums[order[i]].InexactFloat64(),
		}
	}
	return out
}

// FilterEntity returns the observations whose medicine name matches name,
// ignoring case and surrounding spaces.
func FilterEntity(observations []models.Observation, name string) []models.Observation {
	want := entityKey(name)
	var out []models.Observation
	for _, obs := range observations {
		if entityKey(obs.Entity()) == want {
			out = append(out, obs)
		}
	}
	return out
}

// entityKey は医薬品名の同一性の基準（前後空白と大文字小文字を無視）
func entityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func tail(points []models.ForecastPoint, n int) []models.ForecastPoint {
	if n >= len(points) {
		return points
	}
	return points[len(points)-n:]
}
