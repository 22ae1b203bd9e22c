package services

import (
	"testing"
	"time"

	"sales-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleObservations は n 日分の売上を作る（天気・曜日・気温付き）
func sampleObservations(n int) []models.Observation {
	weathers := []string{"Sunny", "Rainy", "Partly Cloudy"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Observation, n)
	for i := 0; i < n; i++ {
		ts := start.AddDate(0, 0, i)
		temp := 10 + float64(i%7)
		out[i] = models.Observation{
			Timestamp:        ts,
			TargetQuantity:   100 + float64(i) + 5*float64(i%3),
			EntityName:       models.StringPtr([]string{"Paracetamol", "Ibuprofen"}[i%2]),
			WeatherCondition: models.StringPtr(weathers[i%len(weathers)]),
			Temperature:      &temp,
			Humidity:         models.FloatPtr(50 + float64(i%5)),
			IsPromotion:      i%4 == 0,
			DayOfWeek:        models.StringPtr(ts.Weekday().String()),
		}
	}
	return out
}

func TestEncodeEmpty(t *testing.T) {
	_, err := FeatureEncoder{}.Encode(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestEncodeSchemaAndColumns(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 5, WeatherCondition: models.StringPtr("Partly Cloudy"), DayOfWeek: models.StringPtr("Tuesday")},
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 3, WeatherCondition: models.StringPtr("Sunny"), IsPromotion: true},
		{Timestamp: utcDay(2024, 1, 3), TargetQuantity: 4, WeatherCondition: nil, DayOfWeek: models.StringPtr("Wednesday")},
	}

	frame, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"temperature", "humidity", "is_promotion",
		"weather_missing", "weather_partly_cloudy", "weather_sunny",
		"day_missing", "day_tuesday", "day_wednesday",
	}, frame.Schema.Columns())
	assert.Len(t, frame.Columns, len(frame.Schema.Columns()))

	// 時刻昇順
	assert.Equal(t, []time.Time{utcDay(2024, 1, 1), utcDay(2024, 1, 2), utcDay(2024, 1, 3)}, frame.Timestamps)
	assert.Equal(t, []float64{3, 5, 4}, frame.Target)
	assert.Equal(t, []float64{1, 0, 0}, frame.Columns["is_promotion"])
	assert.Equal(t, []float64{1, 0, 0}, frame.Columns["weather_sunny"])
	assert.Equal(t, []float64{0, 0, 1}, frame.Columns["weather_missing"])
	assert.Equal(t, []float64{1, 0, 0}, frame.Columns["day_missing"])

	// 各行でカテゴリごとにちょうど1つのインジケータが立つ
	for i := 0; i < frame.Len(); i++ {
		for _, field := range []string{CategoryWeather, CategoryDay} {
			sum := 0.0
			for _, v := range frame.Schema.Categories[field] {
				sum += frame.Columns[field+"_"+v][i]
			}
			assert.Equal(t, 1.0, sum, "row %d field %s", i, field)
		}
	}
}

func TestEncodeAllNullCategoryKeepsOneColumn(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 10},
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 12, IsPromotion: true},
	}
	frame, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)

	assert.Equal(t, []string{"weather_missing", "day_missing"}, frame.Schema.IndicatorColumns())
	assert.Equal(t, []float64{1, 1}, frame.Columns["weather_missing"])
}

func TestEncodeImputesContinuousWithMean(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 1, Temperature: models.FloatPtr(10)},
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 1},
		{Timestamp: utcDay(2024, 1, 3), TargetQuantity: 1, Temperature: models.FloatPtr(20)},
	}
	frame, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 15, 20}, frame.Columns["temperature"])
	assert.Equal(t, 15.0, frame.Means["temperature"])
	// 観測なしは 0
	assert.Equal(t, []float64{0, 0, 0}, frame.Columns["humidity"])
	assert.Equal(t, 0.0, frame.Means["humidity"])
}

func TestEncodeIsDeterministic(t *testing.T) {
	obs := sampleObservations(21)
	a, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)
	b, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)
	assert.Equal(t, a.Schema.Columns(), b.Schema.Columns())
	assert.Equal(t, a.Columns, b.Columns)
}

func TestEncodeDoesNotReorderInput(t *testing.T) {
	obs := []models.Observation{
		{Timestamp: utcDay(2024, 1, 2), TargetQuantity: 2},
		{Timestamp: utcDay(2024, 1, 1), TargetQuantity: 1},
	}
	_, err := FeatureEncoder{}.Encode(obs)
	require.NoError(t, err)
	assert.Equal(t, utcDay(2024, 1, 2), obs[0].Timestamp)
}

func TestIndicatorColumn(t *testing.T) {
	assert.Equal(t, "weather_partly_cloudy", IndicatorColumn(CategoryWeather, models.StringPtr(" Partly Cloudy ")))
	assert.Equal(t, "weather_light_rain", IndicatorColumn(CategoryWeather, models.StringPtr("light-rain")))
	assert.Equal(t, "day_missing", IndicatorColumn(CategoryDay, nil))
	assert.Equal(t, "day_missing", IndicatorColumn(CategoryDay, models.StringPtr("")))

	assert.True(t, IsIndicatorColumn("weather_sunny"))
	assert.True(t, IsIndicatorColumn("day_missing"))
	assert.False(t, IsIndicatorColumn("temperature"))
	assert.False(t, IsIndicatorColumn("is_promotion"))
}
