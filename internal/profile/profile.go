// Package profile computes per-column summary statistics, dataset quality
// and categorical contributor shares from a classified dataset.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/numeric"
)

// Profile kinds.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
	KindTemporal    = "temporal"
	KindOther       = "other"
)

// ColumnProfile is the statistics block of one column. Exactly one of the
// typed blocks is set for numeric, categorical and temporal kinds; Error is
// set instead when the computation failed.
type ColumnProfile struct {
	Name             string            `json:"-"`
	DetectedType     string            `json:"detected_type"`
	Kind             string            `json:"kind"`
	NullCount        int               `json:"null_count"`
	NullPercentage   float64           `json:"null_percentage"`
	UniqueCount      int               `json:"unique_count"`
	UniquePercentage float64           `json:"unique_percentage"`
	Numeric          *NumericStats     `json:"numeric,omitempty"`
	Categorical      *CategoricalStats `json:"categorical,omitempty"`
	Temporal         *TemporalStats    `json:"temporal,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// NumericStats summarises a numeric-family column.
type NumericStats struct {
	Count             int     `json:"count"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	Std               float64 `json:"std"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Q25               float64 `json:"q25"`
	Q75               float64 `json:"q75"`
	Skewness          float64 `json:"skewness"`
	Kurtosis          float64 `json:"kurtosis"`
	Sum               float64 `json:"sum"`
	ZerosCount        int     `json:"zeros_count"`
	NegativeCount     int     `json:"negative_count"`
	PositiveCount     int     `json:"positive_count"`
	OutlierCount      int     `json:"outlier_count"`
	OutlierPercentage float64 `json:"outlier_percentage"`
	LowerBound        float64 `json:"lower_bound"`
	UpperBound        float64 `json:"upper_bound"`
}

// ValueCount is one row of a frequency table.
type ValueCount struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CategoricalStats summarises a categorical or boolean column. Percentages
// are relative to non-missing cells.
type CategoricalStats struct {
	UniqueCount            int          `json:"unique_count"`
	MostFrequent           string       `json:"most_frequent"`
	MostFrequentCount      int          `json:"most_frequent_count"`
	MostFrequentPercentage float64      `json:"most_frequent_percentage"`
	LeastFrequent          string       `json:"least_frequent"`
	LeastFrequentCount     int          `json:"least_frequent_count"`
	Top5                   []ValueCount `json:"top_5_values"`
}

// TemporalStats summarises a date or datetime column.
type TemporalStats struct {
	MinDate         string `json:"min_date"`
	MaxDate         string `json:"max_date"`
	DateRangeDays   int    `json:"date_range_days"`
	UniqueCount     int    `json:"unique_count"`
	YearRange       string `json:"year_range"`
	MostCommonYear  int    `json:"most_common_year"`
	MostCommonMonth int    `json:"most_common_month"`
}

// Quality is the dataset-level data quality block.
type Quality struct {
	OverallScore  float64 `json:"overall_score"`
	Completeness  float64 `json:"completeness"`
	Uniqueness    float64 `json:"uniqueness"`
	TotalCells    int     `json:"total_cells"`
	NullCells     int     `json:"null_cells"`
	DuplicateRows int     `json:"duplicate_rows"`
}

// Result is the profile document.
type Result struct {
	DatasetID        string                    `json:"dataset_id"`
	RowCount         int                       `json:"row_count"`
	ColumnCount      int                       `json:"column_count"`
	ColumnTypes      map[string]string         `json:"column_types"`
	TypeDistribution map[string]int            `json:"type_distribution"`
	Columns          map[string]*ColumnProfile `json:"columns"`
	DataQuality      Quality                   `json:"data_quality"`
	Contributors     []Contributor             `json:"contributors"`
	ColumnList       []string                  `json:"column_list"`
}

// Ordered returns column profiles in dataset order.
func (r *Result) Ordered() []*ColumnProfile {
	out := make([]*ColumnProfile, 0, len(r.ColumnList))
	for _, n := range r.ColumnList {
		if p, ok := r.Columns[n]; ok {
			out = append(out, p)
		}
	}
	return out
}

var errNoNumericValues = errors.New("no numeric values")

// KindOf maps a detected type to its profile kind.
func KindOf(detected string) string {
	switch {
	case classify.NumericFamily[detected]:
		return KindNumeric
	case detected == "categorical", detected == "boolean":
		return KindCategorical
	case classify.IsTemporal(detected):
		return KindTemporal
	}
	return KindOther
}

// Profiler computes column profiles.
type Profiler struct {
	log *zap.Logger
}

// New returns a Profiler. A nil logger is replaced with a no-op logger.
func New(log *zap.Logger) *Profiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Profiler{log: log}
}

// Column profiles one column. Failures, including panics, are recorded in
// the Error field and never propagate.
func (p *Profiler) Column(col *dataset.Column, ct *classify.ColumnType) (prof *ColumnProfile) {
	rows := col.Len()
	prof = &ColumnProfile{
		Name:         col.Name,
		DetectedType: ct.DetectedType,
		Kind:         KindOf(ct.DetectedType),
		NullCount:    col.NullCount(),
		UniqueCount:  col.UniqueCount(),
	}
	if rows > 0 {
		prof.NullPercentage = float64(prof.NullCount) / float64(rows) * 100
		prof.UniquePercentage = float64(prof.UniqueCount) / float64(rows) * 100
	}
	if prof.NullCount == rows {
		return prof
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("profile panicked", zap.String("column", col.Name), zap.Any("panic", r))
			prof.Numeric, prof.Categorical, prof.Temporal = nil, nil, nil
			prof.Error = fmt.Sprint(r)
		}
	}()

	var err error
	switch prof.Kind {
	case KindNumeric:
		prof.Numeric, err = numericStats(col)
	case KindCategorical:
		prof.Categorical = categoricalStats(col)
	case KindTemporal:
		prof.Temporal, err = temporalStats(col)
	}
	if err != nil {
		p.log.Warn("profile failed", zap.String("column", col.Name), zap.Error(err))
		prof.Error = err.Error()
	}
	return prof
}

// Assemble builds the profile document from per-column profiles in dataset order.
func Assemble(datasetID string, ds *dataset.Dataset, types []*classify.ColumnType, cols []*ColumnProfile) *Result {
	r := &Result{
		DatasetID:        datasetID,
		RowCount:         ds.Rows,
		ColumnCount:      len(ds.Columns),
		ColumnTypes:      make(map[string]string, len(types)),
		TypeDistribution: map[string]int{},
		Columns:          make(map[string]*ColumnProfile, len(cols)),
		DataQuality:      DataQuality(ds),
		Contributors:     Contributors(ds, types),
		ColumnList:       ds.Names(),
	}
	for _, ct := range types {
		r.ColumnTypes[ct.Name] = ct.DetectedType
		r.TypeDistribution[ct.DetectedType]++
	}
	for _, c := range cols {
		r.Columns[c.Name] = c
	}
	return r
}

func numericStats(col *dataset.Column) (*NumericStats, error) {
	vals, _ := col.LooseFloats()
	if len(vals) == 0 {
		return nil, errNoNumericValues
	}
	data := stats.Float64Data(vals)
	mean, err := data.Mean()
	if err != nil {
		return nil, err
	}
	median, err := data.Median()
	if err != nil {
		return nil, err
	}
	lo, _ := data.Min()
	hi, _ := data.Max()
	sum, _ := data.Sum()
	std, _ := data.StandardDeviationSample()

	q1, q3, lower, upper := numeric.IQRBounds(vals)
	ns := &NumericStats{
		Count:      len(vals),
		Mean:       mean,
		Median:     median,
		Std:        numeric.Finite(std),
		Min:        lo,
		Max:        hi,
		Q25:        q1,
		Q75:        q3,
		Skewness:   numeric.Skewness(vals),
		Kurtosis:   numeric.Kurtosis(vals),
		Sum:        sum,
		LowerBound: lower,
		UpperBound: upper,
	}
	for _, v := range vals {
		switch {
		case v == 0:
			ns.ZerosCount++
		case v < 0:
			ns.NegativeCount++
		default:
			ns.PositiveCount++
		}
		if v < lower || v > upper {
			ns.OutlierCount++
		}
	}
	ns.OutlierPercentage = float64(ns.OutlierCount) / float64(len(vals)) * 100
	return ns, nil
}

// valueCounts returns present values by descending count, ties in order of
// first appearance.
func valueCounts(col *dataset.Column) (counts []ValueCount, present int) {
	idx := map[string]int{}
	for _, v := range col.Values {
		if v.IsMissing() {
			continue
		}
		present++
		k := v.Key()
		if i, ok := idx[k]; ok {
			counts[i].Count++
			continue
		}
		idx[k] = len(counts)
		counts = append(counts, ValueCount{Value: v.String(), Count: 1})
	}
	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	for i := range counts {
		counts[i].Percentage = float64(counts[i].Count) / float64(present) * 100
	}
	return counts, present
}

func categoricalStats(col *dataset.Column) *CategoricalStats {
	counts, _ := valueCounts(col)
	first, last := counts[0], counts[len(counts)-1]
	top := counts
	if len(top) > 5 {
		top = top[:5]
	}
	return &CategoricalStats{
		UniqueCount:            len(counts),
		MostFrequent:           first.Value,
		MostFrequentCount:      first.Count,
		MostFrequentPercentage: first.Percentage,
		LeastFrequent:          last.Value,
		LeastFrequentCount:     last.Count,
		Top5:                   append([]ValueCount(nil), top...),
	}
}

func temporalStats(col *dataset.Column) (*TemporalStats, error) {
	ts := classify.ParseDates(col)
	if len(ts) == 0 {
		return nil, errors.New("no parseable dates")
	}
	lo, hi := ts[0], ts[0]
	uniq := map[time.Time]struct{}{}
	years := map[int]int{}
	months := map[int]int{}
	for _, t := range ts {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
		uniq[t.UTC()] = struct{}{}
		years[t.Year()]++
		months[int(t.Month())]++
	}
	return &TemporalStats{
		MinDate:         lo.Format("2006-01-02T15:04:05"),
		MaxDate:         hi.Format("2006-01-02T15:04:05"),
		DateRangeDays:   int(hi.Sub(lo).Hours() / 24),
		UniqueCount:     len(uniq),
		YearRange:       fmt.Sprintf("%d - %d", lo.Year(), hi.Year()),
		MostCommonYear:  mode(years),
		MostCommonMonth: mode(months),
	}, nil
}

// mode returns the most frequent key, the smallest one on ties.
func mode(counts map[int]int) int {
	best, bestN := 0, -1
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

// DataQuality scores completeness and row uniqueness as
// 0.6·completeness + 0.4·uniqueness.
func DataQuality(ds *dataset.Dataset) Quality {
	q := Quality{TotalCells: ds.Rows * len(ds.Columns)}
	for _, c := range ds.Columns {
		q.NullCells += c.NullCount()
	}
	seen := make(map[string]struct{}, ds.Rows)
	for i := 0; i < ds.Rows; i++ {
		k := ds.RowKey(i)
		if _, ok := seen[k]; ok {
			q.DuplicateRows++
			continue
		}
		seen[k] = struct{}{}
	}
	if q.TotalCells == 0 || ds.Rows == 0 {
		return q
	}
	completeness := float64(q.TotalCells-q.NullCells) / float64(q.TotalCells) * 100
	uniqueness := float64(ds.Rows-q.DuplicateRows) / float64(ds.Rows) * 100
	q.Completeness = numeric.Round(completeness, 2)
	q.Uniqueness = numeric.Round(uniqueness, 2)
	q.OverallScore = numeric.Round(completeness*0.6+uniqueness*0.4, 2)
	return q
}
