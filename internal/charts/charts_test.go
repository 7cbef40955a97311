package charts

import (
	"bytes"
	"fmt"
	"testing"

	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/dataset"
)

func salesDataset(t *testing.T) (*dataset.Dataset, []*classify.ColumnType) {
	t.Helper()
	regions := []string{"North", "South", "East"}
	channels := []string{"web", "store"}
	var rows [][]string
	for i := 0; i < 30; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("2024-01-%02d", i+1),
			regions[i%3],
			channels[i%2],
			fmt.Sprint(100 + 10*i),
			fmt.Sprint(50 + 5*i + i%2),
			"",
		})
	}
	ds := dataset.FromRecords("sales", []string{"date", "region", "channel", "revenue", "cost", "blank"}, rows, dataset.DefaultOptions())
	types := []*classify.ColumnType{
		{Name: "date", DetectedType: "date"},
		{Name: "region", DetectedType: "categorical"},
		{Name: "channel", DetectedType: "categorical"},
		{Name: "revenue", DetectedType: "numeric"},
		{Name: "cost", DetectedType: "numeric"},
		{Name: "blank", DetectedType: "empty"},
	}
	return ds, types
}

func TestGroup(t *testing.T) {
	ds, types := salesDataset(t)
	g := Group(ds, types)
	assert.Equal(t, []string{"revenue", "cost"}, g.Numeric)
	assert.Equal(t, []string{"region", "channel"}, g.Categorical)
	assert.Equal(t, []string{"date"}, g.Date)
	assert.Empty(t, g.Text)
}

func TestRecommend(t *testing.T) {
	ds, types := salesDataset(t)
	res := New(zaptest.NewLogger(t)).Recommend("sales", ds, types)

	// 2 line + 2 area + 4 bar + 4 pie + 2 histogram + 1 grouped + 1 scatter + 2 kpi
	assert.Equal(t, 18, res.TotalRecommendations)
	require.Len(t, res.Recommendations, 15)

	for i := 1; i < len(res.Recommendations); i++ {
		prev, cur := res.Recommendations[i-1], res.Recommendations[i]
		if prev.Priority == cur.Priority {
			assert.GreaterOrEqual(t, prev.Confidence, cur.Confidence)
		} else {
			assert.Greater(t, prev.Priority, cur.Priority)
		}
	}
	first := res.Recommendations[0]
	assert.Equal(t, Line, first.ChartType)
	assert.Equal(t, "revenue over time", first.Title)
	assert.Equal(t, "date", first.Config.XAxis)

	var scatter *Recommendation
	for i, r := range res.Recommendations {
		if r.ChartType == Scatter {
			scatter = &res.Recommendations[i]
		}
	}
	require.NotNil(t, scatter)
	assert.Equal(t, "revenue vs cost", scatter.Title)
	assert.Greater(t, scatter.Confidence, 0.99)
}

func TestRecommend_KPIMetrics(t *testing.T) {
	ds := dataset.FromRecords("k", []string{"v"}, [][]string{{"1"}, {"2"}, {"3"}, {"10"}}, dataset.DefaultOptions())
	res := New(nil).Recommend("k", ds, []*classify.ColumnType{{Name: "v", DetectedType: "numeric"}})
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, Histogram, res.Recommendations[0].ChartType)
	kpi := res.Recommendations[1]
	assert.Equal(t, KPI, kpi.ChartType)
	require.NotNil(t, kpi.Metrics)
	assert.Equal(t, Metrics{Total: 16, Average: 4, Max: 10, Min: 1}, *kpi.Metrics)
}

func TestRecommend_Empty(t *testing.T) {
	ds := dataset.FromRecords("e", []string{"note"}, [][]string{{"a"}, {"b"}}, dataset.DefaultOptions())
	res := New(nil).Recommend("e", ds, []*classify.ColumnType{{Name: "note", DetectedType: "text"}})
	assert.NotNil(t, res.Recommendations)
	assert.Empty(t, res.Recommendations)
	assert.Equal(t, []string{"note"}, res.ColumnTypes.Text)
}

func TestRenderHTML(t *testing.T) {
	ds, types := salesDataset(t)
	res := New(nil).Recommend("sales", ds, types)
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, ds, res))
	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "revenue over time")
}

func TestGroupedBarShowsLegend(t *testing.T) {
	ds, _ := salesDataset(t)
	r := Recommendation{
		ChartType: Bar,
		Title:     "revenue by region and channel",
		Config:    ChartConfig{XAxis: "region", YAxis: "revenue", GroupBy: "channel", Aggregation: "sum"},
	}
	c, err := build(ds, r)
	require.NoError(t, err)
	bar, ok := c.(*echarts.Bar)
	require.True(t, ok)
	require.NotNil(t, bar.Legend.Show)
	assert.True(t, *bar.Legend.Show)
	assert.Len(t, bar.MultiSeries, 2)

	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, ds, &Result{DatasetID: "sales", Recommendations: []Recommendation{r}}))
	assert.Contains(t, buf.String(), "revenue by region and channel")
}

func TestSumByAndHistogram(t *testing.T) {
	ds, _ := salesDataset(t)
	labels, sums, err := sumBy(ds, "region", "revenue")
	require.NoError(t, err)
	assert.Equal(t, []string{"North", "South", "East"}, labels)
	// North holds rows 0,3,...,27: 10 rows of 100+10i.
	assert.Equal(t, 100.0*10+10*(0+3+6+9+12+15+18+21+24+27), sums[0])

	days, daySums, err := sumByDate(ds, "date", "revenue")
	require.NoError(t, err)
	assert.Len(t, days, 30)
	assert.Equal(t, "2024-01-01", days[0])
	assert.Equal(t, 100.0, daySums[0])

	_, _, err = sumBy(ds, "missing", "revenue")
	assert.Error(t, err)

	col, _ := ds.Column("revenue")
	hl, counts := histogram(col, 20)
	assert.Len(t, hl, 20)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, 30, total)
	assert.Equal(t, 2, counts[19], "380 and the maximum share the closed last bin")
}
