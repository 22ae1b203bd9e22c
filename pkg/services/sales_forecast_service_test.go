package services

import (
	"context"
	"errors"
	"testing"

	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/forecaster"
	"sales-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher は固定の Observation を返す
type stubFetcher struct {
	observations []models.Observation
	err          error
	calls        int
}

func (f *stubFetcher) Fetch(ctx context.Context, collection string) ([]models.Observation, error) {
	f.calls++
	return f.observations, f.err
}

func newServiceWith(fetcher Fetcher, fits *int) *SalesForecastService {
	adapter := NewForecastAdapterWithFactory(func() Model {
		if fits != nil {
			*fits++
		}
		return forecaster.New(forecaster.DefaultOptions())
	}, nil)
	return NewSalesForecastService(fetcher, adapter, 365, nil)
}

func TestForecastReturnsTrailingHorizon(t *testing.T) {
	obs := sampleObservations(30)
	svc := newServiceWith(&stubFetcher{observations: obs}, nil)

	points, err := svc.Forecast(context.Background(), "sales", 7)
	require.NoError(t, err)
	require.Len(t, points, 7)

	last := obs[len(obs)-1].Timestamp
	for i, p := range points {
		assert.Equal(t, last.AddDate(0, 0, i+1), p.Date)
	}
}

func TestForecastIsIdempotent(t *testing.T) {
	svc := newServiceWith(&stubFetcher{observations: sampleObservations(40)}, nil)

	a, err := svc.Forecast(context.Background(), "sales", 10)
	require.NoError(t, err)
	b, err := svc.Forecast(context.Background(), "sales", 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestForecastEmptyDatasetNeverFits(t *testing.T) {
	fits := 0
	svc := newServiceWith(&stubFetcher{}, &fits)

	_, err := svc.Forecast(context.Background(), "sales", 5)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	_, err = svc.ForecastEntity(context.Background(), "sales", "Aspirin", 5)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	_, err = svc.TopEntities(context.Background(), "sales", 3)
	assert.ErrorIs(t, err, ErrEmptyDataset)
	assert.Equal(t, 0, fits)
}

func TestForecastDataSourceUnavailable(t *testing.T) {
	store := datastore.NewMemoryStore(nil)
	store.FailWith = errors.New("deadline exceeded")
	svc := newServiceWith(NewRecordFetcher(store, nil), nil)

	_, err := svc.Forecast(context.Background(), "sales", 5)
	assert.ErrorIs(t, err, ErrDataSourceUnavailable)
	assert.NotErrorIs(t, err, ErrEmptyDataset)
	assert.Equal(t, "data_source_unavailable", ErrorKind(err))
}

func TestForecastInvalidInput(t *testing.T) {
	fetcher := &stubFetcher{observations: sampleObservations(5)}
	svc := newServiceWith(fetcher, nil)
	ctx := context.Background()

	_, err := svc.Forecast(ctx, "sales", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Forecast(ctx, "sales", -3)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Forecast(ctx, "sales", 366)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Forecast(ctx, " ", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.TopEntities(ctx, "sales", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.ForecastEntity(ctx, "sales", "", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// 入力エラーではストアに問い合わせない
	assert.Equal(t, 0, fetcher.calls)
}

func TestForecastEntity(t *testing.T) {
	svc := newServiceWith(&stubFetcher{observations: sampleObservations(20)}, nil)

	points, err := svc.ForecastEntity(context.Background(), "sales", " paracetamol ", 4)
	require.NoError(t, err)
	assert.Len(t, points, 4)

	_, err = svc.ForecastEntity(context.Background(), "sales", "Amoxicillin", 4)
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.NotErrorIs(t, err, ErrEmptyDataset)
}

func TestTopEntities(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 5, EntityName: models.StringPtr("B")},
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 10, EntityName: models.StringPtr("A")},
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 5, EntityName: models.StringPtr("B")},
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 3, EntityName: models.StringPtr("C")},
		{Timestamp: utcDay(2024, 1, 3), TargetQuantity: 99},
		{Timestamp: utcDay(2024, 1, 3), TargetQuantity: 0.1, EntityName: models.StringPtr("D")},
		{Timestamp: utcDay(2024, 1, 3), TargetQuantity: 0.2, EntityName: models.StringPtr("D")},
	}
	svc := newServiceWith(&stubFetcher{observations: obs}, nil)

	got, err := svc.TopEntities(context.Background(), "sales", 3)
	require.NoError(t, err)
	// B と A は同率（10）なので出現順
	assert.Equal(t, []models.EntityTotal{
		{MedicineName: "B", TotalQuantity: 10},
		{MedicineName: "A", TotalQuantity: 10},
		{MedicineName: "C", TotalQuantity: 3},
	}, got)

	all, err := svc.TopEntities(context.Background(), "sales", 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, 0.3, all[3].TotalQuantity)
}

func TestTopEntitiesGroupsNamesLikeFilterEntity(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 5, EntityName: models.StringPtr("Aspirin")},
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 9, EntityName: models.StringPtr("Ibuprofen")},
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 7, EntityName: models.StringPtr(" aspirin ")},
	}
	svc := newServiceWith(&stubFetcher{observations: obs}, nil)

	got, err := svc.TopEntities(context.Background(), "sales", 1)
	require.NoError(t, err)
	// 表示は最初に出現した表記
	assert.Equal(t, []models.EntityTotal{{MedicineName: "Aspirin", TotalQuantity: 12}}, got)

	// 集計と絞り込みで同じ行が同じ医薬品として扱われる
	filtered := FilterEntity(obs, "ASPIRIN")
	total := 0.0
	for _, o := range filtered {
		total += o.TargetQuantity
	}
	assert.Len(t, filtered, 2)
	assert.Equal(t, got[0].TotalQuantity, total)
}

func TestAggregateTopEntitiesProperties(t *testing.T) {
	obs := sampleObservations(50)
	input := 0.0
	for _, o := range obs {
		input += o.TargetQuantity
	}

	for _, n := range []int{1, 2, 5} {
		got := AggregateTopEntities(obs, n)
		want := n
		if want > 2 {
			want = 2
		}
		require.Len(t, got, want)

		sum := 0.0
		for i, e := range got {
			sum += e.TotalQuantity
			if i > 0 {
				assert.GreaterOrEqual(t, got[i-1].TotalQuantity, e.TotalQuantity)
			}
		}
		assert.LessOrEqual(t, sum, input+1e-6)
	}
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ErrorKind(nil))
	assert.Equal(t, "empty_dataset", ErrorKind(ErrEmptyDataset))
	assert.Equal(t, "entity_not_found", ErrorKind(ErrEntityNotFound))
	assert.Equal(t, "model_fit", ErrorKind(ErrModelFit))
	assert.Equal(t, "invalid_input", ErrorKind(ErrInvalidInput))
	assert.Equal(t, "internal", ErrorKind(errors.New("other")))
}
