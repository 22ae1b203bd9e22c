package config

import (
	"fmt"
	"os"

	"sales-forecast-api/pkg/forecaster"

	"gopkg.in/yaml.v3"
)

// ForecasterSettings 予測モデルのチューニング設定
type ForecasterSettings struct {
	IntervalWidth      float64 `yaml:"interval_width"`
	WeeklySeasonality  string  `yaml:"weekly_seasonality"`
	YearlySeasonality  string  `yaml:"yearly_seasonality"`
	WeeklyFourierOrder int     `yaml:"weekly_fourier_order"`
	YearlyFourierOrder int     `yaml:"yearly_fourier_order"`
	PriorScale         float64 `yaml:"prior_scale"`
}

type forecasterFile struct {
	Forecaster ForecasterSettings `yaml:"forecaster"`
}

func forecasterSettingsFromEnv() ForecasterSettings {
	d := forecaster.DefaultOptions()
	return ForecasterSettings{
		IntervalWidth:      getEnvFloat("INTERVAL_WIDTH", d.IntervalWidth),
		WeeklySeasonality:  getEnv("WEEKLY_SEASONALITY", d.WeeklySeasonality.String()),
		YearlySeasonality:  getEnv("YEARLY_SEASONALITY", d.YearlySeasonality.String()),
		WeeklyFourierOrder: d.WeeklyFourierOrder,
		YearlyFourierOrder: d.YearlyFourierOrder,
		PriorScale:         d.PriorScale,
	}
}

// LoadForecasterFile overlays the forecaster block of a YAML file on base.
// Keys absent from the file keep their base value. An empty path returns base.
//
//	forecaster:
//	  interval_width: 0.8
//	  weekly_seasonality: auto
//	  yearly_seasonality: off
//	  prior_scale: 10
func LoadForecasterFile(path string, base ForecasterSettings) (ForecasterSettings, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	file := forecasterFile{Forecaster: base}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := file.Forecaster.validate(); err != nil {
		return base, err
	}
	return file.Forecaster, nil
}

func (s ForecasterSettings) validate() error {
	if s.IntervalWidth <= 0 || s.IntervalWidth >= 1 {
		return fmt.Errorf("forecaster.interval_width must be in (0, 1), got %v", s.IntervalWidth)
	}
	if _, err := forecaster.ParseSeasonality(s.WeeklySeasonality); err != nil {
		return fmt.Errorf("forecaster.weekly_seasonality: %w", err)
	}
	if _, err := forecaster.ParseSeasonality(s.YearlySeasonality); err != nil {
		return fmt.Errorf("forecaster.yearly_seasonality: %w", err)
	}
	if s.PriorScale < 0 {
		return fmt.Errorf("forecaster.prior_scale must not be negative, got %v", s.PriorScale)
	}
	return nil
}

// Options converts validated settings into model options.
func (s ForecasterSettings) Options() forecaster.Options {
	weekly, _ := forecaster.ParseSeasonality(s.WeeklySeasonality)
	yearly, _ := forecaster.ParseSeasonality(s.YearlySeasonality)
	return forecaster.Options{
		IntervalWidth:      s.IntervalWidth,
		WeeklySeasonality:  weekly,
		YearlySeasonality:  yearly,
		WeeklyFourierOrder: s.WeeklyFourierOrder,
		YearlyFourierOrder: s.YearlyFourierOrder,
		PriorScale:         s.PriorScale,
	}
}
