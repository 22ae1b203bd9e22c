package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"sales-forecast-api/pkg/forecaster"
	"sales-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingModel は呼び出しを記録するモデルのスタブ
type recordingModel struct {
	registered []string
	fitFrame   forecaster.Frame
	future     forecaster.Frame
	fitErr     error
}

func (m *recordingModel) AddRegressor(name string) error {
	m.registered = append(m.registered, name)
	return nil
}

func (m *recordingModel) Fit(df forecaster.Frame) error {
	m.fitFrame = df
	return m.fitErr
}

func (m *recordingModel) MakeFutureFrame(periods int) (forecaster.Frame, error) {
	ds := append([]time.Time{}, m.fitFrame.DS...)
	last := ds[len(ds)-1]
	for i := 1; i <= periods; i++ {
		ds = append(ds, last.AddDate(0, 0, i))
	}
	return forecaster.Frame{DS: ds}, nil
}

func (m *recordingModel) Predict(df forecaster.Frame) ([]forecaster.Prediction, error) {
	m.future = df
	out := make([]forecaster.Prediction, df.Len())
	for i, ds := range df.DS {
		out[i] = forecaster.Prediction{DS: ds, Yhat: float64(i), YhatLower: float64(i) - 1, YhatUpper: float64(i) + 1}
	}
	return out, nil
}

func newTestAdapter() *ForecastAdapter {
	return NewForecastAdapter(forecaster.DefaultOptions(), nil)
}

func TestFitPredictConcreteScenario(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 10, IsPromotion: false},
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 12, IsPromotion: true},
	}
	frame, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Len())

	m := forecaster.New(forecaster.DefaultOptions())
	for _, col := range frame.Schema.Columns() {
		require.NoError(t, m.AddRegressor(col))
	}
	require.NoError(t, m.Fit(TrainingModelFrame(frame)))
	future, err := m.MakeFutureFrame(1)
	require.NoError(t, err)

	ff := BuildFutureFrame(frame, future.DS)
	require.Equal(t, 3, ff.Len())
	assert.Equal(t, utcDay(2024, 1, 3), ff.DS[2])
	assert.Equal(t, []float64{0, 1, 0}, ff.Regressors[ColumnPromotion])

	points, err := newTestAdapter().FitPredict(context.Background(), frame, 1)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, utcDay(2024, 1, 3), points[2].Date)
}

func TestFitPredictLengthAndOrder(t *testing.T) {
	for _, tc := range []struct{ rows, horizon int }{{2, 1}, {10, 5}, {60, 30}} {
		frame, err := FeatureEncoder{}.Encode(sampleObservations(tc.rows))
		require.NoError(t, err)

		points, err := newTestAdapter().FitPredict(context.Background(), frame, tc.horizon)
		require.NoError(t, err)
		require.Len(t, points, tc.rows+tc.horizon)
		assert.True(t, sort.SliceIsSorted(points, func(i, j int) bool {
			return points[i].Date.Before(points[j].Date)
		}))
		for _, p := range points {
			assert.False(t, math.IsNaN(p.Yhat))
			assert.LessOrEqual(t, p.YhatLower, p.Yhat)
			assert.GreaterOrEqual(t, p.YhatUpper, p.Yhat)
		}
	}
}

func TestFitPredictFutureFrameMatchesTrainingSchema(t *testing.T) {
	frame, err := FeatureEncoder{}.Encode(sampleObservations(14))
	require.NoError(t, err)

	model := &recordingModel{}
	adapter := NewForecastAdapterWithFactory(func() Model { return model }, nil)
	_, err = adapter.FitPredict(context.Background(), frame, 3)
	require.NoError(t, err)

	// 登録された列 = 学習フレームの列 = 予測フレームの列
	assert.Equal(t, frame.Schema.Columns(), model.registered)
	for _, name := range model.registered {
		isBase := name == ColumnTemperature || name == ColumnHumidity || name == ColumnPromotion
		assert.True(t, isBase || IsIndicatorColumn(name), name)
	}
	assert.ElementsMatch(t, keys(model.fitFrame.Regressors), keys(model.future.Regressors))

	// 履歴行は学習値のまま、追加行は平均値と 0
	n := frame.Len()
	for _, col := range frame.Schema.Columns() {
		assert.Equal(t, frame.Columns[col], model.future.Regressors[col][:n], col)
		for _, v := range model.future.Regressors[col][n:] {
			switch col {
			case ColumnTemperature, ColumnHumidity:
				assert.InDelta(t, frame.Means[col], v, 1e-9, col)
			default:
				assert.Equal(t, 0.0, v, col)
			}
		}
	}
}

func TestFitPredictUsesFreshModel(t *testing.T) {
	calls := 0
	adapter := NewForecastAdapterWithFactory(func() Model {
		calls++
		return &recordingModel{}
	}, nil)
	frame, err := FeatureEncoder{}.Encode(sampleObservations(5))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := adapter.FitPredict(context.Background(), frame, 2)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestFitPredictModelFitErrors(t *testing.T) {
	adapter := newTestAdapter()

	// 同じ日付しかない
	single, err := FeatureEncoder{}.Encode([]models.Observation{
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 1},
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 2},
	})
	require.NoError(t, err)
	_, err = adapter.FitPredict(context.Background(), single, 3)
	assert.ErrorIs(t, err, ErrModelFit)

	// 非有限値
	obs := sampleObservations(5)
	obs[2].Temperature = models.FloatPtr(math.Inf(1))
	nonFinite, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)
	_, err = adapter.FitPredict(context.Background(), nonFinite, 3)
	assert.ErrorIs(t, err, ErrModelFit)

	failing := NewForecastAdapterWithFactory(func() Model {
		return &recordingModel{fitErr: errors.New("boom")}
	}, nil)
	frame, err := FeatureEncoder{}.Encode(sampleObservations(3))
	require.NoError(t, err)
	_, err = failing.FitPredict(context.Background(), frame, 1)
	assert.ErrorIs(t, err, ErrModelFit)
}

func TestFitPredictInvalidHorizonAndContext(t *testing.T) {
	frame, err := FeatureEncoder{}.Encode(sampleObservations(3))
	require.NoError(t, err)

	_, err = newTestAdapter().FitPredict(context.Background(), frame, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newTestAdapter().FitPredict(ctx, frame, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func keys(m map[string][]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
