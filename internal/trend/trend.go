// Package trend fits a least-squares line through a numeric column and looks
// for seasonality and local mean shifts.
package trend

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/numeric"
)

const (
	// MinPoints is the smallest series accepted.
	MinPoints = 3
	// MinSeasonalPoints is the smallest series checked for seasonality.
	MinSeasonalPoints = 12
)

const (
	stableSlope     = 0.001
	significance    = 0.05
	seasonalFactor  = 10
	changeWindow    = 5
	changeMinPoints = 10
	changeAlpha     = 0.01
	maxChangepoints = 5
	forecastHorizon = 3
)

// Directions.
const (
	Increasing = "increasing"
	Decreasing = "decreasing"
	Stable     = "stable"
)

// Seasonality describes the dominant periodic component.
type Seasonality struct {
	Detected bool    `json:"detected"`
	Period   int     `json:"period,omitempty"`
	Strength float64 `json:"strength,omitempty"`
}

// Changepoint is a position where the local mean shifts.
type Changepoint struct {
	Index            int     `json:"index"`
	Row              int     `json:"row"`
	BeforeMean       float64 `json:"before_mean"`
	AfterMean        float64 `json:"after_mean"`
	ChangePercentage float64 `json:"change_percentage"`
	Significance     float64 `json:"significance"`
	PValue           float64 `json:"p_value"`
}

// Result is the trend document for one column.
type Result struct {
	Column           string        `json:"column"`
	Direction        string        `json:"direction"`
	Slope            float64       `json:"slope"`
	Intercept        float64       `json:"intercept"`
	RSquared         float64       `json:"r_squared"`
	TrendStrength    float64       `json:"trend_strength"`
	PercentageChange float64       `json:"percentage_change"`
	IsSignificant    bool          `json:"is_significant"`
	PValue           float64       `json:"p_value"`
	ResidualPValue   float64       `json:"residual_p_value"`
	Confidence       float64       `json:"confidence"`
	DataPoints       int           `json:"data_points"`
	StartValue       float64       `json:"start_value"`
	EndValue         float64       `json:"end_value"`
	MinValue         float64       `json:"min_value"`
	MaxValue         float64       `json:"max_value"`
	MeanValue        float64       `json:"mean_value"`
	StdValue         float64       `json:"std_value"`
	Seasonality      *Seasonality  `json:"seasonality"`
	Changepoints     []Changepoint `json:"changepoints"`
	PredictionNext3  []float64     `json:"prediction_next_3"`
}

// Detector runs trend analysis.
type Detector struct {
	log *zap.Logger
}

// New returns a Detector. A nil logger is replaced with a no-op logger.
func New(log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{log: log}
}

// Detect analyses the non-missing numeric cells of col in row order.
func (d *Detector) Detect(col *dataset.Column) (*Result, error) {
	y, rows := col.LooseFloats()
	if len(y) < MinPoints {
		return nil, &dataset.InsufficientDataError{Analysis: "trend analysis", Need: MinPoints, Have: len(y)}
	}
	res := Series(col.Name, y, rows)
	d.log.Debug("trend detection finished",
		zap.String("column", col.Name),
		zap.String("direction", res.Direction),
		zap.Float64("r_squared", res.RSquared),
		zap.Int("changepoints", len(res.Changepoints)))
	return res, nil
}

// Fit is an ordinary least-squares line y = Intercept + Slope·x over x = 0..n-1.
type Fit struct {
	Intercept float64
	Slope     float64
	RSquared  float64
	PValue    float64
	Residuals []float64
}

// FitLine regresses y on its index.
func FitLine(y []float64) Fit {
	n := len(y)
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	mean, _ := numeric.MeanVar(y)
	if math.Abs(beta) <= 1e-12*math.Max(1, math.Abs(mean)) {
		beta = 0
		alpha = mean
	}
	f := Fit{Intercept: alpha, Slope: beta, Residuals: make([]float64, n)}
	sse, sst, sxx := 0.0, 0.0, 0.0
	xm := float64(n-1) / 2
	for i, v := range y {
		r := v - (alpha + beta*x[i])
		f.Residuals[i] = r
		sse += r * r
		sst += (v - mean) * (v - mean)
		sxx += (x[i] - xm) * (x[i] - xm)
	}
	switch {
	case sst == 0 && sse == 0:
		f.RSquared = 1
	case sst == 0:
		f.RSquared = 0
	default:
		f.RSquared = numeric.Clamp01(stat.RSquared(x, y, nil, alpha, beta))
	}

	df := float64(n - 2)
	se := math.Sqrt(sse / df / sxx)
	switch {
	case df <= 0:
		f.PValue = 1
	case se == 0 || se <= 1e-12*math.Abs(beta):
		if beta == 0 {
			f.PValue = 1
		} else {
			f.PValue = 0
		}
	default:
		f.PValue = numeric.TwoSidedP(beta/se, df)
	}
	return f
}

// Series analyses an already extracted sequence; rows maps positions back to
// dataset rows and may be nil.
func Series(name string, y []float64, rows []int) *Result {
	n := len(y)
	fit := FitLine(y)
	data := stats.Float64Data(y)
	lo, _ := data.Min()
	hi, _ := data.Max()
	mean, _ := data.Mean()
	std, _ := data.StandardDeviationPopulation()

	res := &Result{
		Column:          name,
		Slope:           fit.Slope,
		Intercept:       fit.Intercept,
		RSquared:        fit.RSquared,
		TrendStrength:   math.Abs(fit.Slope) * fit.RSquared,
		PValue:          fit.PValue,
		IsSignificant:   fit.PValue < significance,
		Confidence:      fit.RSquared,
		DataPoints:      n,
		StartValue:      y[0],
		EndValue:        y[n-1],
		MinValue:        lo,
		MaxValue:        hi,
		MeanValue:       mean,
		StdValue:        numeric.Finite(std),
		Changepoints:    Changepoints(y, rows),
		PredictionNext3: make([]float64, forecastHorizon),
	}
	_, res.ResidualPValue = numeric.TTestOneSample(fit.Residuals, 0)

	switch {
	case math.Abs(fit.Slope) < stableSlope:
		res.Direction = Stable
	case fit.Slope > 0:
		res.Direction = Increasing
	default:
		res.Direction = Decreasing
	}
	if y[0] != 0 {
		res.PercentageChange = (y[n-1] - y[0]) / math.Abs(y[0]) * 100
	}
	if n >= MinSeasonalPoints {
		res.Seasonality = DetectSeasonality(y, fit)
	}
	for i := range res.PredictionNext3 {
		res.PredictionNext3[i] = fit.Intercept + fit.Slope*float64(n+i)
	}
	return res
}

// DetectSeasonality looks for a dominant frequency in the detrended series.
// The dominant bin must carry more than ten times the mean power of the full
// two-sided spectrum.
func DetectSeasonality(y []float64, fit Fit) *Seasonality {
	n := len(y)
	detrended := make([]float64, n)
	for i, v := range y {
		detrended[i] = v - (fit.Intercept + fit.Slope*float64(i))
	}
	coeff := fourier.NewFFT(n).Coefficients(nil, detrended)
	power := make([]float64, len(coeff))
	for k, c := range coeff {
		a := cmplx.Abs(c)
		power[k] = a * a
	}

	last := (n - 1) / 2
	best := 1
	for k := 2; k <= last; k++ {
		if power[k] > power[best] {
			best = k
		}
	}
	total := power[0]
	for k := 1; k <= last; k++ {
		total += 2 * power[k]
	}
	if n%2 == 0 {
		total += power[n/2]
	}
	if total == 0 || power[best] <= seasonalFactor*total/float64(n) {
		return &Seasonality{Detected: false}
	}
	return &Seasonality{
		Detected: true,
		Period:   int(math.Round(float64(n) / float64(best))),
		Strength: power[best] / total,
	}
}

// Changepoints compares each window of five values with the next five using
// a pooled two-sample t test. Up to five shifts with p < 0.01 are returned,
// the most significant ones, in index order.
func Changepoints(y []float64, rows []int) []Changepoint {
	out := []Changepoint{}
	n := len(y)
	if n < changeMinPoints {
		return out
	}
	for i := changeWindow; i < n-changeWindow; i++ {
		before := y[i-changeWindow : i]
		after := y[i : i+changeWindow]
		_, p := numeric.TTestIndependent(before, after)
		if p >= changeAlpha {
			continue
		}
		bm, _ := numeric.MeanVar(before)
		am, _ := numeric.MeanVar(after)
		cp := Changepoint{
			Index:        i,
			Row:          i,
			BeforeMean:   bm,
			AfterMean:    am,
			Significance: 1 - p,
			PValue:       p,
		}
		if rows != nil {
			cp.Row = rows[i]
		}
		if bm != 0 {
			cp.ChangePercentage = (am - bm) / bm * 100
		}
		out = append(out, cp)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Significance > out[b].Significance })
	if len(out) > maxChangepoints {
		out = out[:maxChangepoints]
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}
