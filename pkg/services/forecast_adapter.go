package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sales-forecast-api/pkg/forecaster"
	"sales-forecast-api/pkg/metrics"
	"sales-forecast-api/pkg/models"

	"go.uber.org/zap"
)

// Model is the forecasting engine as seen by the adapter.
type Model interface {
	AddRegressor(name string) error
	Fit(df forecaster.Frame) error
	MakeFutureFrame(periods int) (forecaster.Frame, error)
	Predict(df forecaster.Frame) ([]forecaster.Prediction, error)
}

// ModelFactory creates an unfitted model. It is called once per FitPredict.
type ModelFactory func() Model

// ForecastAdapter 学習フレームをモデルに渡して予測結果を得る
type ForecastAdapter struct {
	newModel ModelFactory
	logger   *zap.SugaredLogger
}

// NewForecastAdapter builds an adapter around forecaster.Model with opts.
func NewForecastAdapter(opts forecaster.Options, logger *zap.SugaredLogger) *ForecastAdapter {
	return NewForecastAdapterWithFactory(func() Model { return forecaster.New(opts) }, logger)
}

// NewForecastAdapterWithFactory は任意のモデル生成関数でアダプタを作成する
func NewForecastAdapterWithFactory(factory ModelFactory, logger *zap.SugaredLogger) *ForecastAdapter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ForecastAdapter{newModel: factory, logger: logger}
}

// FitPredict fits a fresh model on frame and predicts over the history plus
// horizon days. The result has frame.Len()+horizon points, ascending by date.
func (a *ForecastAdapter) FitPredict(ctx context.Context, frame *TrainingFrame, horizon int) ([]models.ForecastPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame == nil || frame.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidInput, horizon)
	}

	start := time.Now()
	defer func() { metrics.RecordFit(time.Since(start)) }()

	m := a.newModel()
	columns := frame.Schema.Columns()
	for _, col := range columns {
		if err := m.AddRegressor(col); err != nil {
			return nil, fmt.Errorf("%w: add regressor %s: %v", ErrModelFit, col, err)
		}
	}

	if err := m.Fit(TrainingModelFrame(frame)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFit, err)
	}

	future, err := m.MakeFutureFrame(horizon)
	if err != nil {
		return nil, fmt.Errorf("%w: future frame: %v", ErrModelFit, err)
	}
	future = BuildFutureFrame(frame, future.DS)

	predictions, err := m.Predict(future)
	if err != nil {
		return nil, fmt.Errorf("%w: predict: %v", ErrModelFit, err)
	}

	points := make([]models.ForecastPoint, len(predictions))
	for i, p := range predictions {
		points[i] = models.ForecastPoint{
			Date:      p.DS,
			Yhat:      p.Yhat,
			YhatLower: p.YhatLower,
			YhatUpper: p.YhatUpper,
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	a.logger.Debugw("forecast fitted",
		"rows", frame.Len(), "regressors", len(columns), "horizon", horizon,
		"elapsed", time.Since(start))
	return points, nil
}

// TrainingModelFrame converts the training frame into the engine's frame.
func TrainingModelFrame(frame *TrainingFrame) forecaster.Frame {
	regressors := make(map[string][]float64, len(frame.Columns))
	for _, col := range frame.Schema.Columns() {
		regressors[col] = frame.Columns[col]
	}
	return forecaster.Frame{DS: frame.Timestamps, Y: frame.Target, Regressors: regressors}
}

// BuildFutureFrame fills regressors for ds, whose first frame.Len() entries
// are the training timestamps. Those rows keep their training values; rows
// past the end get the training mean for continuous regressors and 0 for
// the promotion flag and every indicator.
func BuildFutureFrame(frame *TrainingFrame, ds []time.Time) forecaster.Frame {
	n := frame.Len()
	columns := frame.Schema.Columns()
	regressors := make(map[string][]float64, len(columns))
	for _, col := range columns {
		fill := 0.0
		if mean, ok := frame.Means[col]; ok {
			fill = mean
		}
		values := make([]float64, len(ds))
		for i := range ds {
			if i < n {
				values[i] = frame.Columns[col][i]
			} else {
				values[i] = fill
			}
		}
		regressors[col] = values
	}
	return forecaster.Frame{DS: ds, Regressors: regressors}
}
