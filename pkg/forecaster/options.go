package forecaster

import (
	"fmt"
	"strings"
)

// Seasonality toggles a seasonal component.
type Seasonality int

const (
	// SeasonalityAuto enables the component when the history is long enough.
	SeasonalityAuto Seasonality = iota
	SeasonalityOn
	SeasonalityOff
)

// ParseSeasonality accepts "auto", "on"/"true" and "off"/"false".
func ParseSeasonality(s string) (Seasonality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SeasonalityAuto, nil
	case "on", "true", "yes":
		return SeasonalityOn, nil
	case "off", "false", "no":
		return SeasonalityOff, nil
	default:
		return SeasonalityAuto, fmt.Errorf("unknown seasonality mode %q", s)
	}
}

func (s Seasonality) String() string {
	switch s {
	case SeasonalityOn:
		return "on"
	case SeasonalityOff:
		return "off"
	default:
		return "auto"
	}
}

func (s Seasonality) enabled(auto bool) bool {
	switch s {
	case SeasonalityOn:
		return true
	case SeasonalityOff:
		return false
	default:
		return auto
	}
}

// Options tunes the model. Zero values fall back to the defaults below.
type Options struct {
	// IntervalWidth is the coverage of the uncertainty band (0.8 → 10%/90% bounds).
	IntervalWidth      float64
	WeeklySeasonality  Seasonality
	YearlySeasonality  Seasonality
	WeeklyFourierOrder int
	YearlyFourierOrder int
	// PriorScale controls ridge strength on every non-intercept coefficient.
	PriorScale float64
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		IntervalWidth:      0.8,
		WeeklySeasonality:  SeasonalityAuto,
		YearlySeasonality:  SeasonalityAuto,
		WeeklyFourierOrder: 3,
		YearlyFourierOrder: 10,
		PriorScale:         10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		o.IntervalWidth = d.IntervalWidth
	}
	if o.WeeklyFourierOrder <= 0 {
		o.WeeklyFourierOrder = d.WeeklyFourierOrder
	}
	if o.YearlyFourierOrder <= 0 {
		o.YearlyFourierOrder = d.YearlyFourierOrder
	}
	if o.PriorScale <= 0 {
		o.PriorScale = d.PriorScale
	}
	return o
}
