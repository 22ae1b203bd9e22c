// Package forecaster implements an additive time-series model with linear
// trend, Fourier seasonality and extra regressors, fitted by ridge-regularised
// least squares. Its surface mirrors the usual fit/predict forecasting
// libraries: register regressors, Fit on a history frame, build a future frame
// and Predict over it.
package forecaster

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrNotFitted          = errors.New("forecaster: model is not fitted")
	ErrAlreadyFitted      = errors.New("forecaster: model is already fitted")
	ErrInsufficientData   = errors.New("forecaster: at least 2 distinct timestamps are required")
	ErrNonFinite          = errors.New("forecaster: non-finite value in frame")
	ErrMissingRegressor   = errors.New("forecaster: regressor column missing from frame")
	ErrLengthMismatch     = errors.New("forecaster: column length does not match time axis")
	ErrInvalidRegressor   = errors.New("forecaster: invalid regressor name")
	ErrSingularSystem     = errors.New("forecaster: normal equations are singular")
	ErrNonPositivePeriods = errors.New("forecaster: periods must be positive")
)

const (
	day          = 24 * time.Hour
	weeklyPeriod = 7.0
	yearlyPeriod = 365.25
)

// Frame is the model input: a time axis, an optional target and named regressor columns.
type Frame struct {
	DS         []time.Time
	Y          []float64
	Regressors map[string][]float64
}

// Len returns the number of rows on the time axis.
func (f Frame) Len() int {
	return len(f.DS)
}

// Prediction is one predicted row.
type Prediction struct {
	DS        time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
	Trend     float64
}

type regressorScale struct {
	mean float64
	std  float64
}

// Model is not safe for concurrent use; build one per forecast.
type Model struct {
	opts       Options
	regressors []string
	registered map[string]struct{}

	fitted   bool
	history  []time.Time
	start    time.Time
	end      time.Time
	tScale   float64
	yScale   float64
	scales   map[string]regressorScale
	weekly   bool
	yearly   bool
	beta     []float64
	sigma    float64
	nHistory int
}

// New returns an unfitted model. Zero-valued options are replaced by defaults.
func New(opts Options) *Model {
	return &Model{
		opts:       opts.withDefaults(),
		registered: make(map[string]struct{}),
	}
}

// AddRegressor registers an extra regressor column that must be present in both
// the history frame and every frame passed to Predict.
func (m *Model) AddRegressor(name string) error {
	if m.fitted {
		return ErrAlreadyFitted
	}
	if name == "" || name == "ds" || name == "y" {
		return fmt.Errorf("%w: %q", ErrInvalidRegressor, name)
	}
	if _, dup := m.registered[name]; dup {
		return fmt.Errorf("%w: %q registered twice", ErrInvalidRegressor, name)
	}
	m.registered[name] = struct{}{}
	m.regressors = append(m.regressors, name)
	return nil
}

// Regressors returns the registered regressor names in registration order.
func (m *Model) Regressors() []string {
	out := make([]string, len(m.regressors))
	copy(out, m.regressors)
	return out
}

// Fit estimates the model on df. df.Y must be set and every registered regressor
// must be present.
func (m *Model) Fit(df Frame) error {
	if m.fitted {
		return ErrAlreadyFitted
	}
	n := df.Len()
	if len(df.Y) != n {
		return fmt.Errorf("%w: y has %d rows, ds has %d", ErrLengthMismatch, len(df.Y), n)
	}
	if distinctTimes(df.DS) < 2 {
		return ErrInsufficientData
	}
	for i, v := range df.Y {
		if !isFinite(v) {
			return fmt.Errorf("%w: y[%d]=%v", ErrNonFinite, i, v)
		}
	}
	if err := m.checkRegressors(df); err != nil {
		return err
	}

	m.start, m.end = timeBounds(df.DS)
	m.tScale = m.end.Sub(m.start).Seconds()
	span := m.end.Sub(m.start)
	m.weekly = m.opts.WeeklySeasonality.enabled(span >= 14*day)
	m.yearly = m.opts.YearlySeasonality.enabled(span >= 730*day)

	m.yScale = floats.Max(absAll(df.Y))
	if m.yScale == 0 {
		m.yScale = 1
	}

	m.scales = make(map[string]regressorScale, len(m.regressors))
	for _, name := range m.regressors {
		m.scales[name] = scaleFor(df.Regressors[name])
	}

	X := m.design(df)
	_, p := X.Dims()
	y := make([]float64, n)
	for i, v := range df.Y {
		y[i] = v / m.yScale
	}
	yv := mat.NewVecDense(n, y)

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	lambda := 1 / (m.opts.PriorScale * m.opts.PriorScale)
	for j := 1; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+lambda)
	}
	var xty mat.VecDense
	xty.MulVec(X.T(), yv)

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return ErrSingularSystem
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return fmt.Errorf("%w: %v", ErrSingularSystem, err)
	}
	m.beta = make([]float64, p)
	copy(m.beta, beta.RawVector().Data)

	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		residuals[i] = y[i] - floats.Dot(X.RawRowView(i), m.beta)
	}
	m.sigma = stat.StdDev(residuals, nil)
	if !isFinite(m.sigma) {
		m.sigma = 0
	}

	m.history = make([]time.Time, n)
	copy(m.history, df.DS)
	m.nHistory = n
	m.fitted = true
	return nil
}

// MakeFutureFrame returns the fitted history time axis followed by periods
// daily timestamps after the last history timestamp. Regressor columns are
// left for the caller to fill.
func (m *Model) MakeFutureFrame(periods int) (Frame, error) {
	if !m.fitted {
		return Frame{}, ErrNotFitted
	}
	if periods <= 0 {
		return Frame{}, ErrNonPositivePeriods
	}
	ds := make([]time.Time, 0, len(m.history)+periods)
	ds = append(ds, m.history...)
	for i := 1; i <= periods; i++ {
		ds = append(ds, m.end.AddDate(0, 0, i))
	}
	return Frame{DS: ds, Regressors: make(map[string][]float64, len(m.regressors))}, nil
}

// Predict returns one Prediction per row of df, in df order.
func (m *Model) Predict(df Frame) ([]Prediction, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if err := m.checkRegressors(df); err != nil {
		return nil, err
	}

	z := distuv.UnitNormal.Quantile(0.5 + m.opts.IntervalWidth/2)
	X := m.design(df)
	out := make([]Prediction, df.Len())
	for i, ds := range df.DS {
		row := X.RawRowView(i)
		yhat := floats.Dot(row, m.beta) * m.yScale
		trend := (m.beta[0] + m.beta[1]*row[1]) * m.yScale

		steps := 0.0
		if ds.After(m.end) {
			steps = math.Ceil(ds.Sub(m.end).Hours() / 24)
		}
		margin := z * m.sigma * m.yScale * math.Sqrt(1+steps/float64(m.nHistory))
		out[i] = Prediction{
			DS:        ds,
			Yhat:      yhat,
			YhatLower: yhat - margin,
			YhatUpper: yhat + margin,
			Trend:     trend,
		}
	}
	return out, nil
}

func (m *Model) checkRegressors(df Frame) error {
	n := df.Len()
	for _, name := range m.regressors {
		col, ok := df.Regressors[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingRegressor, name)
		}
		if len(col) != n {
			return fmt.Errorf("%w: %q has %d rows, ds has %d", ErrLengthMismatch, name, len(col), n)
		}
		for i, v := range col {
			if !isFinite(v) {
				return fmt.Errorf("%w: %s[%d]=%v", ErrNonFinite, name, i, v)
			}
		}
	}
	return nil
}

// design lays out [intercept, t, weekly fourier, yearly fourier, regressors].
func (m *Model) design(df Frame) *mat.Dense {
	p := 2 + len(m.regressors)
	if m.weekly {
		p += 2 * m.opts.WeeklyFourierOrder
	}
	if m.yearly {
		p += 2 * m.opts.YearlyFourierOrder
	}

	X := mat.NewDense(df.Len(), p, nil)
	row := make([]float64, p)
	for i, ds := range df.DS {
		row = row[:0]
		row = append(row, 1, ds.Sub(m.start).Seconds()/m.tScale)
		if m.weekly {
			row = appendFourier(row, ds, weeklyPeriod, m.opts.WeeklyFourierOrder)
		}
		if m.yearly {
			row = appendFourier(row, ds, yearlyPeriod, m.opts.YearlyFourierOrder)
		}
		for _, name := range m.regressors {
			s := m.scales[name]
			row = append(row, (df.Regressors[name][i]-s.mean)/s.std)
		}
		X.SetRow(i, row)
	}
	return X
}

func appendFourier(row []float64, ds time.Time, period float64, order int) []float64 {
	t := float64(ds.Unix()) / 86400
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * t / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

// scaleFor leaves 0/1 columns untouched and standardises the rest.
func scaleFor(col []float64) regressorScale {
	binary := true
	for _, v := range col {
		if v != 0 && v != 1 {
			binary = false
			break
		}
	}
	if binary {
		return regressorScale{mean: 0, std: 1}
	}
	mean, std := stat.MeanStdDev(col, nil)
	if std == 0 || !isFinite(std) {
		std = 1
	}
	return regressorScale{mean: mean, std: std}
}

func distinctTimes(ds []time.Time) int {
	seen := make(map[int64]struct{}, len(ds))
	for _, t := range ds {
		seen[t.UnixNano()] = struct{}{}
	}
	return len(seen)
}

func timeBounds(ds []time.Time) (time.Time, time.Time) {
	sorted := make([]time.Time, len(ds))
	copy(sorted, ds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[0], sorted[len(sorted)-1]
}

func absAll(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Abs(v)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
