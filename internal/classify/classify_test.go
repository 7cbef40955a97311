package classify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabsight/internal/dataset"
)

func column(t *testing.T, name string, vals ...string) *dataset.Column {
	t.Helper()
	rows := make([][]string, len(vals))
	for i, v := range vals {
		rows[i] = []string{v}
	}
	ds := dataset.FromRecords("t", []string{name}, rows, dataset.DefaultOptions())
	require.Len(t, ds.Columns, 1)
	return ds.Columns[0]
}

func TestClassify_ISODates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	vals := make([]string, 100)
	for i := range vals {
		vals[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	ct := New().Classify(column(t, "order_date", vals...))
	assert.Equal(t, "date", ct.DetectedType)
	assert.GreaterOrEqual(t, ct.Confidence, 0.8)
	assert.Equal(t, PrimitiveDate, ct.PrimitiveType)
	assert.Equal(t, "%Y-%m-%d", ct.Metadata["format"])
	require.NotNil(t, ct.DateRange)
	assert.Equal(t, "2024-01-01T00:00:00", ct.DateRange.MinDate)
	assert.Equal(t, 99, ct.DateRange.RangeDays)
	assert.Equal(t, "date_time", ct.Semantic.Type)
}

func TestClassify_SecondsOnlyTimesAreDatetime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)
	vals := make([]string, 20)
	for i := range vals {
		vals[i] = start.AddDate(0, 0, i).Format("2006-01-02 15:04:05")
	}
	ct := New().Classify(column(t, "logged", vals...))
	assert.Equal(t, "datetime", ct.DetectedType)
	assert.Equal(t, true, ct.Metadata["has_time"])
}

func TestClassify_AllMissingIsEmpty(t *testing.T) {
	ct := New().Classify(column(t, "blank", "", "NA", "null"))
	assert.Equal(t, "empty", ct.DetectedType)
	assert.Equal(t, 1.0, ct.Confidence)
	assert.Equal(t, PrimitiveEmpty, ct.PrimitiveType)
	assert.Equal(t, 3, ct.NullCount)
	assert.Equal(t, 100.0, ct.NullPercentage)
}

func TestClassify_Idempotent(t *testing.T) {
	vals := make([]string, 300)
	for i := range vals {
		vals[i] = fmt.Sprintf("%d.5", i%37)
	}
	col := column(t, "score", vals...)
	c := New(WithSampleSize(50), WithSeed(7))
	first := c.Classify(col)
	second := c.Classify(col)
	assert.Equal(t, first, second)
	assert.Equal(t, "numeric", first.DetectedType)
}

func TestClassify_Types(t *testing.T) {
	tests := []struct {
		name   string
		column string
		vals   []string
		want   string
		method string
	}{
		{"email", "contact", []string{"a@x.com", "b@y.org", "c@z.net", "d@w.io"}, "email", "value"},
		{"id by name", "customer_id", []string{"101", "205", "309", "412", "533"}, "id", "name"},
		{"sequential", "row", []string{"1", "2", "3", "4", "5", "6"}, "id", "value"},
		{"currency", "price", []string{"$1,200.50", "$3.00", "$45.10", "$9.99"}, "currency", "value"},
		{"currency symbol", "charged", []string{"$12", "$3.50", "$45", "$9"}, "currency", "value"},
		{"boolean", "active", []string{"true", "false", "TRUE", "False"}, "boolean", "value"},
		{"yes no", "subscribed", []string{"yes", "no", "no", "yes", "Yes"}, "boolean", "value"},
		{"uuid", "token", []string{
			"3f2504e0-4f89-11d3-9a0c-0305e82c3301",
			"7c9e6679-7425-40de-944b-e07fc1f90ae7",
			"16fd2706-8baf-433b-82eb-8c7fada847da",
		}, "uuid", "value"},
		{"latitude", "lat", []string{"40.7", "-33.9", "51.5", "35.6", "-22.9"}, "latitude", "name"},
		{"percentage", "growth_rate", []string{"12%", "40%", "7.5%", "99%"}, "percentage", "name"},
		{"categorical", "region", []string{"north", "south", "north", "east", "north", "south", "east", "north"}, "categorical", "value"},
		{"text", "comment", []string{"great stuff", "not bad", "would buy again", "meh"}, "text", "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := New().Classify(column(t, tt.column, tt.vals...))
			assert.Equal(t, tt.want, ct.DetectedType)
			assert.Equal(t, tt.method, ct.DetectionMethod)
			assert.GreaterOrEqual(t, ct.Confidence, 0.0)
			assert.LessOrEqual(t, ct.Confidence, 1.0)
		})
	}
}

func TestClassify_NumericSummary(t *testing.T) {
	ct := New().Classify(column(t, "amount", "10", "20", "30", "40", "55"))
	// "amount" is a currency name and the values are plain numbers.
	assert.Equal(t, "currency", ct.DetectedType)
	require.NotNil(t, ct.Statistics)
	assert.Equal(t, 10.0, ct.Statistics.Min)
	assert.Equal(t, 55.0, ct.Statistics.Max)
	assert.InDelta(t, 31.0, ct.Statistics.Mean, 1e-9)
	assert.Equal(t, 30.0, ct.Statistics.Median)
}

type alwaysDetector struct{ typ string }

func (d alwaysDetector) Type() string        { return d.typ }
func (d alwaysDetector) Detect(*Input) Match { return Match{OK: true, Confidence: 0.4} }

type neverDetector struct{}

func (neverDetector) Type() string        { return "never" }
func (neverDetector) Detect(*Input) Match { return Match{} }

func TestClassify_FirstMatchWins(t *testing.T) {
	c := New(WithCascade([]Detector{neverDetector{}, alwaysDetector{"first"}, alwaysDetector{"second"}}))
	ct := c.Classify(column(t, "x", "a", "b"))
	assert.Equal(t, "first", ct.DetectedType)
	assert.Equal(t, 0.4, ct.Confidence)
	assert.NotNil(t, ct.Metadata)

	c = New(WithCascade([]Detector{neverDetector{}}))
	assert.Equal(t, "unknown", c.Classify(column(t, "x", "a")).DetectedType)
}

func TestSemanticScorer(t *testing.T) {
	s := NewSemanticScorer()

	typ, score := s.ScoreName("customer_email", "string")
	assert.Equal(t, "email", typ)
	assert.Equal(t, 12, score)

	typ, score = s.ScoreName("xyz", "boolean")
	assert.Equal(t, "generic", typ)
	assert.Equal(t, 0, score)

	assert.Equal(t, "cafe name", normalizeName("  Café Name "))

	sem := s.Score("col", "string", []string{"a@x.com", "b@y.org", "nope"})
	assert.Equal(t, "email", sem.Type)
	assert.Equal(t, "value_analysis", sem.Method)
	assert.Equal(t, 0.5, sem.Confidence)

	sem = s.Score("col", "string", []string{"a@x.com", "nope", "still nope"})
	assert.Equal(t, "name_analysis", sem.Method)

	sem = s.Score("pickup_lat", "float", []string{"40.1", "41.2"})
	assert.Equal(t, "coordinates", sem.Type)
}

func TestSummarize(t *testing.T) {
	c := New()
	types := []*ColumnType{
		c.Classify(column(t, "when", "2024-01-01", "2024-02-01", "2024-03-01")),
		c.Classify(column(t, "card", "4111 1111 1111 1111", "5500-0000-0000-0004", "6011 0000 0000 0004")),
	}
	r := Summarize("ds", types)
	assert.Equal(t, 2, r.TotalColumns)
	assert.True(t, r.Summary.HasDates)
	assert.True(t, r.Summary.HasSensitive)
	assert.Equal(t, []string{"when", "card"}, r.Order)
	assert.Equal(t, "card", r.Ordered()[1].Name)
}

func TestTopValues(t *testing.T) {
	col := column(t, "c", "b", "a", "b", "", "a", "c")
	top := TopValues(col, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Value)
	assert.Equal(t, 2, top[0].Count)
	assert.Equal(t, "a", top[1].Value)
	assert.InDelta(t, 100.0/3, top[0].Percentage, 1e-9)
}
