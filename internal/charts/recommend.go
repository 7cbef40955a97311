// Package charts recommends visualisations for a classified dataset and
// renders them as an ECharts HTML page.
package charts

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/dataset"
)

// Chart types.
const (
	Line      = "line"
	Area      = "area"
	Bar       = "bar"
	Pie       = "pie"
	Histogram = "histogram"
	Scatter   = "scatter"
	KPI       = "kpi"
)

const (
	maxRecommendations = 15
	maxBarCategories   = 20
	maxPieCategories   = 10
	maxGroupPrimary    = 10
	maxGroupSecondary  = 5
	histogramBins      = 20
	scatterMinAbsR     = 0.5
	maxKPIs            = 5
)

// ChartConfig names the columns a chart is drawn from.
type ChartConfig struct {
	XAxis         string `json:"x_axis,omitempty"`
	YAxis         string `json:"y_axis,omitempty"`
	Category      string `json:"category,omitempty"`
	Value         string `json:"value,omitempty"`
	Column        string `json:"column,omitempty"`
	GroupBy       string `json:"group_by,omitempty"`
	Aggregation   string `json:"aggregation,omitempty"`
	SortOrder     string `json:"sort_order,omitempty"`
	Bins          int    `json:"bins,omitempty"`
	ShowTrendLine bool   `json:"show_trend_line,omitempty"`
	ShowTrend     bool   `json:"show_trend,omitempty"`
}

// Metrics are the headline figures of a KPI card.
type Metrics struct {
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

// Recommendation is one suggested chart.
type Recommendation struct {
	ChartType  string      `json:"chart_type"`
	Priority   int         `json:"priority"`
	Confidence float64     `json:"confidence"`
	Title      string      `json:"title"`
	Reason     string      `json:"reason"`
	Config     ChartConfig `json:"config"`
	UseCase    string      `json:"use_case"`
	Metrics    *Metrics    `json:"metrics,omitempty"`
}

// ColumnGroups buckets columns by how they can be charted.
type ColumnGroups struct {
	Numeric     []string `json:"numeric"`
	Categorical []string `json:"categorical"`
	Date        []string `json:"date"`
	Text        []string `json:"text"`
}

// Result is the chart recommendation document.
type Result struct {
	DatasetID            string           `json:"dataset_id"`
	TotalRecommendations int              `json:"total_recommendations"`
	Recommendations      []Recommendation `json:"recommendations"`
	ColumnTypes          ColumnGroups     `json:"column_types"`
}

// Recommender suggests charts.
type Recommender struct {
	log *zap.Logger
}

// New returns a Recommender. A nil logger is replaced with a no-op logger.
func New(log *zap.Logger) *Recommender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recommender{log: log}
}

// Group buckets the columns of ds using their detected types. All-missing
// columns are left out. Low-cardinality numeric columns count as categorical.
func Group(ds *dataset.Dataset, types []*classify.ColumnType) ColumnGroups {
	detected := make(map[string]string, len(types))
	for _, ct := range types {
		detected[ct.Name] = ct.DetectedType
	}
	g := ColumnGroups{Numeric: []string{}, Categorical: []string{}, Date: []string{}, Text: []string{}}
	for _, c := range ds.Columns {
		present := c.Len() - c.NullCount()
		if present == 0 {
			continue
		}
		unique := c.UniqueCount()
		ratio := float64(unique) / float64(present)
		t := detected[c.Name]
		switch {
		case classify.IsTemporal(t):
			g.Date = append(g.Date, c.Name)
		case classify.NumericFamily[t]:
			if ratio < 0.05 && unique < maxBarCategories {
				g.Categorical = append(g.Categorical, c.Name)
			} else {
				g.Numeric = append(g.Numeric, c.Name)
			}
		case t == "categorical", t == "boolean", ratio < 0.5:
			g.Categorical = append(g.Categorical, c.Name)
		default:
			g.Text = append(g.Text, c.Name)
		}
	}
	return g
}

// Recommend builds up to fifteen recommendations ordered by priority then
// confidence, ties in generation order.
func (r *Recommender) Recommend(datasetID string, ds *dataset.Dataset, types []*classify.ColumnType) *Result {
	g := Group(ds, types)
	var recs []Recommendation

	for _, d := range g.Date {
		for _, n := range g.Numeric {
			recs = append(recs,
				rec(Line, 10, 0.95,
					fmt.Sprintf("%s over time", n),
					"Time series data detected - perfect for trend analysis",
					"Track changes and identify trends over time",
					ChartConfig{XAxis: d, YAxis: n, Aggregation: "sum", ShowTrendLine: true}),
				rec(Area, 8, 0.85,
					fmt.Sprintf("%s accumulation over time", n),
					"Area charts show cumulative trends effectively",
					"Visualize cumulative totals and volume",
					ChartConfig{XAxis: d, YAxis: n, Aggregation: "sum"}))
		}
	}

	for _, c := range g.Categorical {
		col, _ := ds.Column(c)
		k := col.UniqueCount()
		for _, n := range g.Numeric {
			if k <= maxBarCategories {
				recs = append(recs, rec(Bar, 9, 0.9,
					fmt.Sprintf("%s by %s", n, c),
					fmt.Sprintf("%s has %d categories - ideal for bar chart comparison", c, k),
					"Compare values across different categories",
					ChartConfig{XAxis: c, YAxis: n, Aggregation: "sum", SortOrder: "desc"}))
			}
			if k <= maxPieCategories {
				recs = append(recs, rec(Pie, 7, 0.8,
					fmt.Sprintf("%s distribution by %s", n, c),
					fmt.Sprintf("Few categories (%d) - good for showing proportions", k),
					"Show percentage breakdown of total",
					ChartConfig{Category: c, Value: n, Aggregation: "sum"}))
			}
		}
	}

	for _, n := range g.Numeric {
		recs = append(recs, rec(Histogram, 6, 0.75,
			fmt.Sprintf("%s distribution", n),
			"Histogram shows the frequency distribution of values",
			"Understand data spread and identify patterns",
			ChartConfig{Column: n, Bins: histogramBins}))
	}

	if len(g.Categorical) >= 2 && len(g.Numeric) > 0 {
		c1, c2, n := g.Categorical[0], g.Categorical[1], g.Numeric[0]
		col1, _ := ds.Column(c1)
		col2, _ := ds.Column(c2)
		if col1.UniqueCount() <= maxGroupPrimary && col2.UniqueCount() <= maxGroupSecondary {
			recs = append(recs, rec(Bar, 8, 0.85,
				fmt.Sprintf("%s by %s and %s", n, c1, c2),
				"Multiple categories allow for grouped comparison",
				"Compare values across multiple dimensions",
				ChartConfig{XAxis: c1, YAxis: n, GroupBy: c2, Aggregation: "sum"}))
		}
	}

	for i := range g.Numeric {
		for j := i + 1; j < len(g.Numeric); j++ {
			a, _ := ds.Column(g.Numeric[i])
			b, _ := ds.Column(g.Numeric[j])
			rho, ok := pearson(a, b)
			if !ok || math.Abs(rho) <= scatterMinAbsR {
				continue
			}
			recs = append(recs, rec(Scatter, 7, math.Abs(rho),
				fmt.Sprintf("%s vs %s", a.Name, b.Name),
				fmt.Sprintf("Strong correlation detected (%.2f)", rho),
				"Analyze relationship between two variables",
				ChartConfig{XAxis: a.Name, YAxis: b.Name, ShowTrendLine: true}))
		}
	}

	for i, n := range g.Numeric {
		if i == maxKPIs {
			break
		}
		col, _ := ds.Column(n)
		m, ok := kpi(col)
		if !ok {
			continue
		}
		recs = append(recs, withMetrics(rec(KPI, 5, 0.7,
			fmt.Sprintf("%s summary", n),
			"Key metric that should be highlighted",
			"Display important metrics at a glance",
			ChartConfig{Column: n, Aggregation: "sum", ShowTrend: true}), m))
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return recs[i].Confidence > recs[j].Confidence
	})
	res := &Result{DatasetID: datasetID, TotalRecommendations: len(recs), ColumnTypes: g}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	res.Recommendations = recs
	r.log.Debug("charts recommended",
		zap.String("dataset_id", datasetID),
		zap.Int("total", res.TotalRecommendations),
		zap.Int("returned", len(recs)))
	return res
}

func rec(typ string, priority int, confidence float64, title, reason, useCase string, cfg ChartConfig) Recommendation {
	return Recommendation{
		ChartType:  typ,
		Priority:   priority,
		Confidence: confidence,
		Title:      title,
		Reason:     reason,
		Config:     cfg,
		UseCase:    useCase,
	}
}

func withMetrics(r Recommendation, m *Metrics) Recommendation {
	r.Metrics = m
	return r
}

func pearson(a, b *dataset.Column) (float64, bool) {
	av, aok := a.LooseAligned()
	bv, bok := b.LooseAligned()
	var x, y []float64
	for i := range av {
		if i < len(bv) && aok[i] && bok[i] {
			x = append(x, av[i])
			y = append(y, bv[i])
		}
	}
	if len(x) < 3 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

func kpi(col *dataset.Column) (*Metrics, bool) {
	vals, _ := col.LooseFloats()
	if len(vals) == 0 {
		return nil, false
	}
	data := stats.Float64Data(vals)
	total, _ := data.Sum()
	avg, _ := data.Mean()
	hi, _ := data.Max()
	lo, _ := data.Min()
	return &Metrics{Total: total, Average: avg, Max: hi, Min: lo}, true
}
