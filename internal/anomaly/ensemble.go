// Package anomaly flags outlying values of a numeric column with three
// independent detectors and merges their verdicts.
package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/numeric"
)

// Method tags as reported in records.
const (
	MethodZScore  = "z-score"
	MethodIQR     = "iqr"
	MethodIForest = "isolation_forest"
)

// MinPoints is the smallest number of values the ensemble accepts.
const MinPoints = 10

// Config tunes the ensemble.
type Config struct {
	ZThreshold    float64
	Contamination float64
	Estimators    int
	Seed          int64
	MaxRecords    int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{ZThreshold: 3, Contamination: 0.1, Estimators: 100, Seed: 42, MaxRecords: 50}
}

// Record is one flagged value.
type Record struct {
	Index           int      `json:"index"`
	Value           float64  `json:"value"`
	MethodsDetected []string `json:"methods_detected"`
	Confidence      float64  `json:"confidence"`
}

// MethodSummary describes one detector's run. Only the fields relevant to
// the method are set.
type MethodSummary struct {
	Method        string   `json:"method"`
	Threshold     *float64 `json:"threshold,omitempty"`
	LowerBound    *float64 `json:"lower_bound,omitempty"`
	UpperBound    *float64 `json:"upper_bound,omitempty"`
	Contamination *float64 `json:"contamination,omitempty"`
	Count         int      `json:"count"`
	Error         string   `json:"error,omitempty"`
}

// Statistics summarises the analysed values.
type Statistics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Result is the anomaly document for one column.
type Result struct {
	Column            string                   `json:"column"`
	TotalDataPoints   int                      `json:"total_data_points"`
	TotalAnomalies    int                      `json:"total_anomalies"`
	AnomalyPercentage float64                  `json:"anomaly_percentage"`
	Anomalies         []Record                 `json:"anomalies"`
	Methods           map[string]MethodSummary `json:"methods"`
	Statistics        Statistics               `json:"statistics"`
}

// MeanConfidence averages the confidence of the reported records.
func (r *Result) MeanConfidence() float64 {
	if len(r.Anomalies) == 0 {
		return 0
	}
	s := 0.0
	for _, a := range r.Anomalies {
		s += a.Confidence
	}
	return s / float64(len(r.Anomalies))
}

// detector flags positions within vals.
type detector struct {
	key string // key in Result.Methods
	tag string // tag in Record.MethodsDetected
	run func(vals []float64) ([]int, MethodSummary, error)
}

// Ensemble runs the z-score, IQR and isolation forest detectors.
type Ensemble struct {
	cfg       Config
	log       *zap.Logger
	detectors []detector
}

// New returns an Ensemble. A nil logger is replaced with a no-op logger.
func New(cfg Config, log *zap.Logger) *Ensemble {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Ensemble{cfg: cfg, log: log}
	e.detectors = []detector{
		{"statistical", MethodZScore, e.zscore},
		{"iqr", MethodIQR, e.iqr},
		{"isolation_forest", MethodIForest, e.iforest},
	}
	return e
}

// Detect analyses the numeric cells of col. Row indexes in the result refer
// to dataset rows. Fewer than MinPoints values yields an
// InsufficientDataError.
func (e *Ensemble) Detect(col *dataset.Column) (*Result, error) {
	vals, rows := col.LooseFloats()
	if len(vals) < MinPoints {
		return nil, &dataset.InsufficientDataError{Analysis: "anomaly detection", Need: MinPoints, Have: len(vals)}
	}

	res := &Result{
		Column:          col.Name,
		TotalDataPoints: len(vals),
		Methods:         make(map[string]MethodSummary, len(e.detectors)),
		Statistics:      summarize(vals),
	}
	hits := map[int][]string{}
	for _, d := range e.detectors {
		idx, sum := e.runSafe(col.Name, d, vals)
		res.Methods[d.key] = sum
		for _, i := range idx {
			hits[i] = append(hits[i], d.tag)
		}
	}

	records := make([]Record, 0, len(hits))
	for i, methods := range hits {
		records = append(records, Record{
			Index:           rows[i],
			Value:           vals[i],
			MethodsDetected: methods,
			Confidence:      float64(len(methods)) / float64(len(e.detectors)),
		})
	}
	sort.Slice(records, func(a, b int) bool {
		if records[a].Confidence != records[b].Confidence {
			return records[a].Confidence > records[b].Confidence
		}
		return records[a].Index < records[b].Index
	})
	res.TotalAnomalies = len(records)
	res.AnomalyPercentage = float64(len(records)) / float64(len(vals)) * 100
	if e.cfg.MaxRecords > 0 && len(records) > e.cfg.MaxRecords {
		records = records[:e.cfg.MaxRecords]
	}
	res.Anomalies = records
	e.log.Debug("anomaly detection finished",
		zap.String("column", col.Name),
		zap.Int("points", len(vals)),
		zap.Int("anomalies", res.TotalAnomalies))
	return res, nil
}

// runSafe isolates a detector so that an error or panic only blanks its own
// contribution.
func (e *Ensemble) runSafe(column string, d detector, vals []float64) (idx []int, sum MethodSummary) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("anomaly method panicked", zap.String("column", column), zap.String("method", d.tag), zap.Any("panic", r))
			idx, sum = nil, MethodSummary{Method: d.tag, Error: fmt.Sprint(r)}
		}
	}()
	idx, sum, err := d.run(vals)
	if err != nil {
		e.log.Warn("anomaly method failed", zap.String("column", column), zap.String("method", d.tag), zap.Error(err))
		sum.Method = d.tag
		sum.Error = err.Error()
		sum.Count = 0
		return nil, sum
	}
	sum.Count = len(idx)
	return idx, sum
}

func (e *Ensemble) zscore(vals []float64) ([]int, MethodSummary, error) {
	thr := e.cfg.ZThreshold
	sum := MethodSummary{Method: MethodZScore, Threshold: &thr}
	mean, variance := numeric.MeanVar(vals)
	std := math.Sqrt(variance)
	if std == 0 {
		return nil, sum, nil
	}
	var idx []int
	for i, v := range vals {
		if math.Abs(v-mean)/std > thr {
			idx = append(idx, i)
		}
	}
	return idx, sum, nil
}

func (e *Ensemble) iqr(vals []float64) ([]int, MethodSummary, error) {
	_, _, lo, hi := numeric.IQRBounds(vals)
	sum := MethodSummary{Method: MethodIQR, LowerBound: &lo, UpperBound: &hi}
	var idx []int
	for i, v := range vals {
		if v < lo || v > hi {
			idx = append(idx, i)
		}
	}
	return idx, sum, nil
}

func (e *Ensemble) iforest(vals []float64) ([]int, MethodSummary, error) {
	c := e.cfg.Contamination
	sum := MethodSummary{Method: MethodIForest, Contamination: &c}
	f := NewIsolationForest(e.cfg.Estimators, c, e.cfg.Seed)
	if err := f.Fit(vals); err != nil {
		return nil, sum, err
	}
	return f.Outliers(), sum, nil
}

func summarize(vals []float64) Statistics {
	data := stats.Float64Data(vals)
	mean, _ := data.Mean()
	median, _ := data.Median()
	std, _ := data.StandardDeviationSample()
	lo, _ := data.Min()
	hi, _ := data.Max()
	return Statistics{Mean: mean, Median: median, Std: numeric.Finite(std), Min: lo, Max: hi}
}
