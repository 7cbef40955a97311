// Package classify assigns each column a detected type through an ordered
// cascade of detectors, plus a semantic label from name and value scoring.
package classify

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/numeric"
)

// Primitive types.
const (
	PrimitiveNumber  = "number"
	PrimitiveText    = "text"
	PrimitiveBoolean = "boolean"
	PrimitiveDate    = "date"
	PrimitiveEmpty   = "empty"
)

// NumericFamily lists detected types that carry numeric values.
var NumericFamily = map[string]bool{
	"numeric": true, "currency": true, "percentage": true, "latitude": true, "longitude": true,
}

// IsTemporal reports whether a detected type holds calendar dates.
func IsTemporal(t string) bool { return t == "date" || t == "datetime" }

// ColumnType is the classification of one column.
type ColumnType struct {
	Name             string          `json:"-"`
	DetectedType     string          `json:"detected_type"`
	OriginalDtype    string          `json:"original_dtype"`
	PrimitiveType    string          `json:"primitive_type"`
	Confidence       float64         `json:"confidence"`
	DetectionMethod  string          `json:"detection_method"`
	NullCount        int             `json:"null_count"`
	NullPercentage   float64         `json:"null_percentage"`
	UniqueCount      int             `json:"unique_count"`
	UniquePercentage float64         `json:"unique_percentage"`
	SampleValues     []string        `json:"sample_values"`
	Metadata         map[string]any  `json:"metadata"`
	Semantic         Semantic        `json:"semantic"`
	Statistics       *NumericSummary `json:"statistics,omitempty"`
	DateRange        *DateRange      `json:"date_range,omitempty"`
	Categories       []CategoryShare `json:"categories,omitempty"`
}

// NumericSummary is attached to numeric-family columns.
type NumericSummary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// DateRange is attached to date and datetime columns.
type DateRange struct {
	MinDate   string `json:"min_date"`
	MaxDate   string `json:"max_date"`
	RangeDays int    `json:"range_days"`
}

// CategoryShare is one entry of a value-count table.
type CategoryShare struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary aggregates a whole-dataset classification.
type Summary struct {
	TypeDistribution map[string]int `json:"type_distribution"`
	TotalColumns     int            `json:"total_columns"`
	HasDates         bool           `json:"has_dates"`
	HasGeo           bool           `json:"has_geo"`
	HasSensitive     bool           `json:"has_sensitive"`
}

// Result is the type-detection document.
type Result struct {
	DatasetID    string                 `json:"dataset_id"`
	TotalColumns int                    `json:"total_columns"`
	Columns      map[string]*ColumnType `json:"columns"`
	Summary      Summary                `json:"summary"`
	// Order keeps dataset column order for renderers.
	Order []string `json:"-"`
}

// Ordered returns the column types in dataset order.
func (r *Result) Ordered() []*ColumnType {
	out := make([]*ColumnType, 0, len(r.Order))
	for _, n := range r.Order {
		out = append(out, r.Columns[n])
	}
	return out
}

// Classifier runs the detector cascade over a deterministic sample.
type Classifier struct {
	cascade    []Detector
	sampleSize int
	seed       int64
	semantic   *SemanticScorer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithSampleSize caps the number of cells inspected per column.
func WithSampleSize(n int) Option { return func(c *Classifier) { c.sampleSize = n } }

// WithSeed fixes the sampling seed.
func WithSeed(seed int64) Option { return func(c *Classifier) { c.seed = seed } }

// WithCascade replaces the detector order.
func WithCascade(d []Detector) Option { return func(c *Classifier) { c.cascade = d } }

// New returns a Classifier with the default cascade, a 1000-cell sample and seed 42.
func New(opts ...Option) *Classifier {
	c := &Classifier{cascade: DefaultCascade(), sampleSize: 1000, seed: 42, semantic: NewSemanticScorer()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify assigns a type to one column. It does not mutate the column.
func (c *Classifier) Classify(col *dataset.Column) *ColumnType {
	sample := col.Sample(c.sampleSize, c.seed)
	if len(sample) == 0 {
		ct := c.newResult(col, "empty", Match{Confidence: 1, Metadata: map[string]any{}})
		ct.Semantic = c.semantic.Score(col.Name, typeHint(col, "empty"), nil)
		return ct
	}
	in := &Input{Column: col, Name: strings.ToLower(col.Name), Sample: sample, Strings: make([]string, len(sample))}
	for i, v := range sample {
		in.Strings[i] = v.String()
	}
	for _, d := range c.cascade {
		m := d.Detect(in)
		if !m.OK {
			continue
		}
		ct := c.newResult(col, d.Type(), m)
		ct.Semantic = c.semantic.Score(col.Name, typeHint(col, ct.DetectedType), in.Strings)
		return ct
	}
	ct := c.newResult(col, "unknown", Match{Metadata: map[string]any{}})
	ct.Semantic = c.semantic.Score(col.Name, typeHint(col, "unknown"), in.Strings)
	return ct
}

func (c *Classifier) newResult(col *dataset.Column, typ string, m Match) *ColumnType {
	rows := col.Len()
	nulls := col.NullCount()
	uniq := col.UniqueCount()
	method := "value"
	if m.NameBased {
		method = "name"
	}
	md := m.Metadata
	if md == nil {
		md = map[string]any{}
	}
	ct := &ColumnType{
		Name:            col.Name,
		DetectedType:    typ,
		OriginalDtype:   col.Dtype,
		PrimitiveType:   primitiveOf(col, typ),
		Confidence:      numeric.Clamp01(m.Confidence),
		DetectionMethod: method,
		NullCount:       nulls,
		UniqueCount:     uniq,
		SampleValues:    headStrings(col, 5),
		Metadata:        md,
	}
	if rows > 0 {
		ct.NullPercentage = float64(nulls) / float64(rows) * 100
		ct.UniquePercentage = float64(uniq) / float64(rows) * 100
	}
	switch {
	case NumericFamily[typ]:
		ct.Statistics = numericSummary(col)
	case IsTemporal(typ):
		ct.DateRange = dateRange(col)
	case typ == "categorical":
		ct.Categories = TopValues(col, 10)
	}
	return ct
}

func primitiveOf(col *dataset.Column, typ string) string {
	switch {
	case typ == "empty":
		return PrimitiveEmpty
	case IsTemporal(typ) || typ == "time":
		return PrimitiveDate
	}
	switch col.Dtype {
	case dataset.DtypeInt, dataset.DtypeFloat:
		return PrimitiveNumber
	case dataset.DtypeBool:
		return PrimitiveBoolean
	}
	return PrimitiveText
}

func typeHint(col *dataset.Column, detected string) string {
	if IsTemporal(detected) {
		return "date"
	}
	switch col.Dtype {
	case dataset.DtypeInt:
		return "integer"
	case dataset.DtypeFloat:
		return "float"
	case dataset.DtypeBool:
		return "boolean"
	}
	return "string"
}

func headStrings(col *dataset.Column, n int) []string {
	out := []string{}
	for _, v := range col.Values {
		if len(out) == n {
			break
		}
		if !v.IsMissing() {
			out = append(out, v.String())
		}
	}
	return out
}

func numericSummary(col *dataset.Column) *NumericSummary {
	vals, _ := col.LooseFloats()
	if len(vals) == 0 {
		return nil
	}
	data := stats.Float64Data(vals)
	s := numeric.Sorted(vals)
	mean, _ := data.Mean()
	median, _ := data.Median()
	std, _ := data.StandardDeviationSample()
	return &NumericSummary{
		Min:    s[0],
		Max:    s[len(s)-1],
		Mean:   mean,
		Median: median,
		Std:    numeric.Finite(std),
		Q25:    numeric.Quantile(s, 0.25),
		Q75:    numeric.Quantile(s, 0.75),
	}
}

// ParseDate parses one cell with the same layouts the date detectors accept.
func ParseDate(s string) (time.Time, bool) {
	t, _, ok := parseDate(s)
	return t, ok
}

// ParseDates returns every parseable present cell of a column.
func ParseDates(col *dataset.Column) []time.Time {
	var out []time.Time
	for _, v := range col.Values {
		if v.IsMissing() {
			continue
		}
		if t, _, ok := parseDate(v.String()); ok {
			out = append(out, t)
		}
	}
	return out
}

func dateRange(col *dataset.Column) *DateRange {
	ts := ParseDates(col)
	if len(ts) == 0 {
		return nil
	}
	lo, hi := ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	return &DateRange{MinDate: isoformat(lo), MaxDate: isoformat(hi), RangeDays: int(hi.Sub(lo).Hours() / 24)}
}

// TopValues counts present values, most frequent first, ties in order of
// first appearance. Percentages are relative to all rows.
func TopValues(col *dataset.Column, n int) []CategoryShare {
	counts := map[string]int{}
	label := map[string]string{}
	var order []string
	for _, v := range col.Values {
		if v.IsMissing() {
			continue
		}
		k := v.Key()
		if _, ok := counts[k]; !ok {
			order = append(order, k)
			label[k] = v.String()
		}
		counts[k]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if n > 0 && len(order) > n {
		order = order[:n]
	}
	out := make([]CategoryShare, 0, len(order))
	rows := float64(col.Len())
	for _, k := range order {
		out = append(out, CategoryShare{Value: label[k], Count: counts[k], Percentage: float64(counts[k]) / rows * 100})
	}
	return out
}

// Summarize builds the dataset-level document from per-column results in order.
func Summarize(datasetID string, types []*ColumnType) *Result {
	r := &Result{
		DatasetID:    datasetID,
		TotalColumns: len(types),
		Columns:      make(map[string]*ColumnType, len(types)),
		Summary:      Summary{TypeDistribution: map[string]int{}, TotalColumns: len(types)},
	}
	for _, ct := range types {
		r.Columns[ct.Name] = ct
		r.Order = append(r.Order, ct.Name)
		r.Summary.TypeDistribution[ct.DetectedType]++
		switch ct.DetectedType {
		case "date", "datetime":
			r.Summary.HasDates = true
		case "latitude", "longitude":
			r.Summary.HasGeo = true
		}
		if ct.Metadata["warning"] == "sensitive_data" {
			r.Summary.HasSensitive = true
		}
	}
	return r
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
