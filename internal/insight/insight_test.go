package insight

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/tabsight/internal/anomaly"
	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/correlation"
	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/profile"
	"github.com/KaramelBytes/tabsight/internal/trend"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newProfile(rows int, cols ...*profile.ColumnProfile) *profile.Result {
	r := &profile.Result{
		DatasetID:   "ds",
		RowCount:    rows,
		ColumnCount: len(cols),
		Columns:     map[string]*profile.ColumnProfile{},
		DataQuality: profile.Quality{OverallScore: 100, Completeness: 100, Uniqueness: 100},
	}
	for _, c := range cols {
		r.Columns[c.Name] = c
		r.ColumnList = append(r.ColumnList, c.Name)
	}
	return r
}

func aggregator(t *testing.T, cfg Config) *Aggregator {
	t.Helper()
	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return a.WithClock(func() time.Time { return fixedNow })
}

func TestAggregate_TruncatesToTopK(t *testing.T) {
	var cols []*profile.ColumnProfile
	for i := 0; i < 30; i++ {
		cols = append(cols, &profile.ColumnProfile{
			Name:           fmt.Sprintf("c%02d", i),
			NullCount:      i + 1,
			NullPercentage: float64(i + 1),
		})
	}
	res := aggregator(t, DefaultConfig()).Aggregate("ds", Findings{Profile: newProfile(100, cols...)})

	assert.Equal(t, 30, res.TotalInsights)
	require.Len(t, res.Insights, DefaultConfidenceTopK)
	for i, in := range res.Insights {
		assert.Equal(t, TypeMissingData, in.Type)
		assert.Equal(t, i+1, in.ID)
		assert.Equal(t, "2024-03-01T12:00:00Z", in.CreatedAt)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Insights[i-1].Confidence, in.Confidence)
		}
	}
	// Equal confidence keeps discovery order.
	assert.Equal(t, "c00", res.Insights[0].ColumnName)
	assert.Equal(t, "c19", res.Insights[19].ColumnName)
	assert.Nil(t, res.Summary)
}

func TestAggregate_PriorityRanking(t *testing.T) {
	findings := Findings{
		Profile: newProfile(100, &profile.ColumnProfile{Name: "notes", NullCount: 2, NullPercentage: 2}),
		Correlations: &correlation.Result{Correlations: []correlation.Record{
			{Column1: "a", Column2: "b", PearsonCorrelation: -0.95, CorrelationType: "negative", Strength: "very strong"},
		}},
		Trends: []*trend.Result{
			{Column: "sales", Direction: trend.Increasing, Slope: 2, RSquared: 0.6, PercentageChange: 50},
		},
	}

	byConf := aggregator(t, DefaultConfig()).Aggregate("ds", findings)
	require.Len(t, byConf.Insights, 3)
	assert.Equal(t, []string{TypeMissingData, TypeCorrelation, TypeTrend},
		[]string{byConf.Insights[0].Type, byConf.Insights[1].Type, byConf.Insights[2].Type})

	cfg := DefaultConfig()
	cfg.Ranking = RankByPriority
	byPrio := aggregator(t, cfg).Aggregate("ds", findings)
	require.Len(t, byPrio.Insights, 3)
	assert.Equal(t, RankByPriority, byPrio.Ranking)
	assert.Equal(t, []string{PriorityHigh, PriorityMedium, PriorityLow},
		[]string{byPrio.Insights[0].Priority, byPrio.Insights[1].Priority, byPrio.Insights[2].Priority})
	assert.Equal(t, TypeCorrelation, byPrio.Insights[0].Type)
	assert.Equal(t, []string{"a", "b"}, byPrio.Insights[0].RelatedColumns)
	assert.Equal(t, "Strong Negative Correlation", byPrio.Insights[0].Title)
}

func TestAggregate_PriorityDefaultTopK(t *testing.T) {
	var cols []*profile.ColumnProfile
	for i := 0; i < 15; i++ {
		cols = append(cols, &profile.ColumnProfile{Name: fmt.Sprintf("c%d", i), NullCount: 1, NullPercentage: 1})
	}
	cfg := DefaultConfig()
	cfg.Ranking = RankByPriority
	res := aggregator(t, cfg).Aggregate("ds", Findings{Profile: newProfile(100, cols...)})
	assert.Len(t, res.Insights, DefaultPriorityTopK)

	cfg.TopK = 3
	res = aggregator(t, cfg).Aggregate("ds", Findings{Profile: newProfile(100, cols...)})
	assert.Len(t, res.Insights, 3)
	assert.Equal(t, 15, res.TotalInsights)
}

func TestAggregate_SuppressesLowConfidence(t *testing.T) {
	findings := Findings{
		Correlations: &correlation.Result{Correlations: []correlation.Record{
			{Column1: "a", Column2: "b", PearsonCorrelation: 0.95, CorrelationType: "positive"},
			{Column1: "a", Column2: "c", PearsonCorrelation: 0.75, CorrelationType: "positive"},
		}},
	}
	cfg := DefaultConfig()
	cfg.SuppressLowConfidence = true
	cfg.MinConfidence = 0.8
	res := aggregator(t, cfg).Aggregate("ds", findings)
	require.Len(t, res.Insights, 1)
	assert.Equal(t, 1, res.Suppressed)
	assert.Equal(t, 2, res.TotalInsights)
	assert.Equal(t, []string{"a", "b"}, res.Insights[0].RelatedColumns)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{Ranking: "loudest"}, nil)
	assert.Error(t, err)
	_, err = New(Config{TopK: -1}, nil)
	assert.Error(t, err)
	a, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, RankByConfidence, a.cfg.Ranking)
}

func TestGenerate_ColumnFindings(t *testing.T) {
	prof := newProfile(10,
		&profile.ColumnProfile{
			Name: "amount", UniqueCount: 10,
			Numeric: &profile.NumericStats{Count: 10, Skewness: 6, OutlierCount: 1, LowerBound: -2, UpperBound: 20, Std: 4},
		},
		&profile.ColumnProfile{
			Name: "flat", UniqueCount: 1,
			Numeric: &profile.NumericStats{Count: 10, Mean: 7},
		},
	)
	prof.DataQuality = profile.Quality{OverallScore: 80, Completeness: 90, Uniqueness: 65, DuplicateRows: 3}
	prof.Contributors = []profile.Contributor{
		{CategoryColumn: "region", ValueColumn: "amount", TopCategory: "North", Value: 60, Total: 100, Percentage: 60},
		{CategoryColumn: "region", ValueColumn: "qty", TopCategory: "South", Value: 25, Total: 100, Percentage: 25},
	}
	types := []*classify.ColumnType{
		{Name: "order_id", DetectedType: "id", UniqueCount: 8},
		{Name: "amount", DetectedType: "currency", UniqueCount: 10},
	}
	anoms := []*anomaly.Result{
		{Column: "amount", TotalDataPoints: 10, TotalAnomalies: 2, AnomalyPercentage: 20,
			Anomalies: []anomaly.Record{{Index: 3, Value: 99, Confidence: 1}, {Index: 5, Value: -4, Confidence: 1.0 / 3}}},
		{Column: "quiet", TotalDataPoints: 10},
	}
	trends := []*trend.Result{
		{Column: "amount", Direction: trend.Increasing, Slope: 2, RSquared: 0.9, PercentageChange: 250,
			Seasonality: &trend.Seasonality{Detected: true, Period: 12, Strength: 0.3}},
		{Column: "flat", Direction: trend.Stable, RSquared: 1},
		{Column: "noisy", Direction: trend.Decreasing, Slope: -3, RSquared: 0.2},
	}

	got := Generate(Findings{Types: types, Profile: prof, Anomalies: anoms, Trends: trends})
	byType := map[string][]Insight{}
	var order []string
	for _, in := range got {
		if len(byType[in.Type]) == 0 {
			order = append(order, in.Type)
		}
		byType[in.Type] = append(byType[in.Type], in)
		assert.GreaterOrEqual(t, in.Confidence, 0.0)
		assert.LessOrEqual(t, in.Confidence, 1.0)
		assert.LessOrEqual(t, in.Importance, 1.0)
	}
	assert.Equal(t, []string{
		TypeOutlier, TypeAnomaly, TypeDistribution, TypeUniqueIdentifier, TypeTrend,
		TypeSeasonality, TypeTopContributor, TypeDuplicateIdentifier, TypeZeroVariance, TypeDataQuality,
	}, order)

	outlier := byType[TypeOutlier][0]
	assert.Equal(t, 0.8, outlier.Confidence)
	assert.InDelta(t, 1.0, outlier.Importance, 1e-9, "10% outliers saturate")
	assert.Equal(t, "Found 1 outliers (10.0%) in 'amount' outside range [-2.00, 20.00]", outlier.Description)

	anom := byType[TypeAnomaly]
	require.Len(t, anom, 1)
	assert.InDelta(t, 2.0/3, anom[0].Confidence, 1e-9)
	assert.InDelta(t, 2.0/3, anom[0].Importance, 1e-9)
	assert.Equal(t, []float64{99, -4}, anom[0].Metadata["sample_values"])

	dist := byType[TypeDistribution][0]
	assert.Equal(t, "amount is Right-skewed", dist.Title)
	assert.Equal(t, 1.0, dist.Confidence)
	assert.Equal(t, 1.0, dist.Importance)

	tr := byType[TypeTrend]
	require.Len(t, tr, 1)
	assert.Equal(t, "amount is increasing", tr[0].Title)
	assert.Equal(t, 0.9, tr[0].Confidence)
	assert.Equal(t, 1.0, tr[0].Importance)

	season := byType[TypeSeasonality][0]
	assert.InDelta(t, 0.6, season.Confidence, 1e-9)
	assert.Equal(t, PriorityMedium, season.Priority)

	top := byType[TypeTopContributor]
	require.Len(t, top, 1)
	assert.Equal(t, "North is the top contributor", top[0].Title)
	assert.Equal(t, "North accounts for 60.0% of total amount", top[0].Description)
	assert.InDelta(t, 0.6, top[0].Confidence, 1e-9)

	dup := byType[TypeDuplicateIdentifier][0]
	assert.Equal(t, "order_id", dup.ColumnName)
	assert.Equal(t, 2, dup.Metadata["duplicate_count"])
	assert.Equal(t, PriorityHigh, dup.Priority)

	zero := byType[TypeZeroVariance][0]
	assert.Equal(t, "flat", zero.ColumnName)
	assert.Equal(t, 0.6, zero.Importance)

	dq := byType[TypeDataQuality][0]
	assert.InDelta(t, 0.2, dq.Importance, 1e-9)
	assert.Equal(t, PriorityLow, dq.Priority)
}

func TestGenerate_StructureFromDataset(t *testing.T) {
	ds := dataset.FromRecords("shop", []string{"region", "code"}, [][]string{
		{"North", "a"}, {"South", "b"}, {"North", "c"}, {"East", "d"},
	}, dataset.DefaultOptions())
	prof := newProfile(4,
		&profile.ColumnProfile{Name: "region", UniqueCount: 3},
		&profile.ColumnProfile{Name: "code", UniqueCount: 4},
	)
	got := Generate(Findings{Dataset: ds, Profile: prof})
	require.Len(t, got, 2)

	cat := got[0]
	assert.Equal(t, TypeCategorical, cat.Type)
	assert.Equal(t, map[string]int{"North": 2, "South": 1, "East": 1}, cat.Metadata["value_distribution"])
	assert.Equal(t, TypeUniqueIdentifier, got[1].Type)
	assert.Equal(t, "code is a Unique Identifier", got[1].Title)
}

func TestMissingDataDescription(t *testing.T) {
	got := Generate(Findings{Profile: newProfile(2000000,
		&profile.ColumnProfile{Name: "x", NullCount: 1234567, NullPercentage: 61.728})})
	require.Len(t, got, 1)
	assert.Equal(t, "Column 'x' has 1,234,567 missing values (61.7% of data)", got[0].Description)
	assert.Equal(t, 61.73, got[0].Metadata["null_percentage"])
	assert.Equal(t, PriorityHigh, got[0].Priority)
}

func TestNarrate(t *testing.T) {
	findings := Findings{
		Profile: newProfile(100, &profile.ColumnProfile{Name: "email", NullCount: 80, NullPercentage: 80}),
		Correlations: &correlation.Result{Correlations: []correlation.Record{
			{Column1: "a", Column2: "b", PearsonCorrelation: 0.9, CorrelationType: "positive"},
		}},
	}
	cfg := DefaultConfig()
	cfg.Summary = true
	cfg.NarrativeSeed = 7
	first := aggregator(t, cfg).Aggregate("sales.csv", findings)
	second := aggregator(t, cfg).Aggregate("sales.csv", findings)
	require.NotNil(t, first.Summary)
	assert.Equal(t, first.Summary, second.Summary)

	s := first.Summary
	assert.Contains(t, s.ExecutiveSummary, "sales.csv")
	assert.Contains(t, s.ExecutiveSummary, "Missing Values in email")
	assert.Equal(t, []string{
		"[HIGH] Missing Values in email: Column 'email' has 80 missing values (80.0% of data)",
		"[HIGH] Strong Positive Correlation: 'a' and 'b' show a positive correlation of 0.90",
	}, s.KeyFindings)
	require.Len(t, s.Recommendations, 2)
	assert.Contains(t, s.Recommendations[0], "email")
	assert.Contains(t, s.Recommendations[1], "a and b")
	require.Len(t, s.ConversationStarters, 2)

	empty := Narrate("", &Result{}, 1)
	assert.Equal(t, "No notable insights were found in the dataset.", empty.ExecutiveSummary)
	assert.Empty(t, empty.KeyFindings)
}

func TestPriorityOf(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityOf(0.7))
	assert.Equal(t, PriorityMedium, PriorityOf(0.4))
	assert.Equal(t, PriorityLow, PriorityOf(0.39))
	assert.Equal(t, 3, PriorityWeight(PriorityHigh))
	assert.Equal(t, 0, PriorityWeight("unknown"))
}

func TestGenerate_CleanLinearColumnsAreNotHighPriorityAnomalies(t *testing.T) {
	rows := make([][]string, 100)
	for i := range rows {
		rows[i] = []string{fmt.Sprint(2*float64(i) + 0.5), fmt.Sprint(3*float64(i) + 0.25)}
	}
	ds := dataset.FromRecords("clean", []string{"a", "b"}, rows, dataset.DefaultOptions())
	ens := anomaly.New(anomaly.DefaultConfig(), zaptest.NewLogger(t))
	var anoms []*anomaly.Result
	for _, col := range ds.Columns {
		res, err := ens.Detect(col)
		require.NoError(t, err)
		anoms = append(anoms, res)
	}

	got := Generate(Findings{Dataset: ds, Anomalies: anoms})
	for _, in := range got {
		if in.Type != TypeAnomaly {
			continue
		}
		assert.NotEqual(t, PriorityHigh, in.Priority, in.Title)
		assert.Less(t, in.Importance, 0.4, in.Title)
	}
}
