package correlation

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/tabsight/internal/dataset"
)

func columns(t *testing.T, header []string, n int, gen func(i int) []string) []*dataset.Column {
	t.Helper()
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = gen(i)
	}
	return dataset.FromRecords("t", header, rows, dataset.DefaultOptions()).Columns
}

func itoa(i int) string { return strconv.Itoa(i) }

func TestAnalyze_IdenticalColumns(t *testing.T) {
	cols := columns(t, []string{"x", "y"}, 100, func(i int) []string { return []string{itoa(i), itoa(i)} })
	res, err := New(0.7, 42, 2, zaptest.NewLogger(t)).Analyze(context.Background(), cols)
	require.NoError(t, err)
	require.Len(t, res.Correlations, 1)
	r := res.Correlations[0]
	assert.Equal(t, "positive", r.CorrelationType)
	assert.Equal(t, "very strong", r.Strength)
	assert.InDelta(t, 1.0, r.PearsonCorrelation, 1e-12)
	assert.InDelta(t, 1.0, r.SpearmanCorrelation, 1e-12)
	assert.True(t, r.IsSignificant)
	assert.Greater(t, r.MutualInformation, 1.0)
	assert.Equal(t, "When x increases, y tends to increase as well (very strong positively correlated)", r.Interpretation)
	assert.Equal(t, 1, res.TotalCorrelations)
	assert.Equal(t, 1, res.StrongCorrelations)
	assert.Equal(t, []string{"x", "y"}, res.NumericColumns)
	assert.Empty(t, res.Message)
}

func TestAnalyze_NegativeAndFiltered(t *testing.T) {
	cols := columns(t, []string{"a", "b", "c"}, 30, func(i int) []string {
		noise := math.Sin(float64(i)*12.9898) * 43758.5453
		noise -= math.Floor(noise)
		return []string{
			itoa(i),
			strconv.FormatFloat(-3*float64(i)+noise, 'f', 6, 64),
			strconv.FormatFloat(noise, 'f', 6, 64),
		}
	})
	res, err := New(0.7, 42, 0, nil).Analyze(context.Background(), cols)
	require.NoError(t, err)
	require.Len(t, res.Correlations, 1)
	r := res.Correlations[0]
	assert.Equal(t, "a", r.Column1)
	assert.Equal(t, "b", r.Column2)
	assert.Equal(t, "negative", r.CorrelationType)
	assert.Contains(t, r.Interpretation, "tends to decrease")
}

func TestAnalyze_SkipsDegeneratePairs(t *testing.T) {
	cols := columns(t, []string{"x", "flat", "sparse"}, 8, func(i int) []string {
		sparse := ""
		if i < 2 {
			sparse = itoa(i)
		}
		return []string{itoa(i), "4", sparse}
	})
	res, err := New(0.1, 42, 1, nil).Analyze(context.Background(), cols)
	require.NoError(t, err)
	assert.Empty(t, res.Correlations)
	assert.Equal(t, 0, res.TotalCorrelations)
}

func TestAnalyze_TooFewColumns(t *testing.T) {
	cols := columns(t, []string{"x"}, 5, func(i int) []string { return []string{itoa(i)} })
	res, err := New(0.7, 42, 1, nil).Analyze(context.Background(), cols)
	require.NoError(t, err)
	assert.Equal(t, MinColumnsMessage, res.Message)
	assert.Empty(t, res.Correlations)
}

func TestAnalyze_WorkerCountDoesNotChangeOutput(t *testing.T) {
	header := []string{"a", "b", "c", "d", "e"}
	cols := columns(t, header, 40, func(i int) []string {
		f := float64(i)
		return []string{
			itoa(i),
			strconv.FormatFloat(f*f, 'f', -1, 64),
			strconv.FormatFloat(-f+math.Mod(f*7, 5), 'f', -1, 64),
			strconv.FormatFloat(math.Sqrt(f), 'f', 6, 64),
			strconv.FormatFloat(2*f+1, 'f', -1, 64),
		}
	})
	one, err := New(0.7, 42, 1, nil).Analyze(context.Background(), cols)
	require.NoError(t, err)
	many, err := New(0.7, 42, 8, nil).Analyze(context.Background(), cols)
	require.NoError(t, err)
	assert.Equal(t, one, many)
	for i := 1; i < len(one.Correlations); i++ {
		assert.GreaterOrEqual(t,
			math.Abs(one.Correlations[i-1].PearsonCorrelation),
			math.Abs(one.Correlations[i].PearsonCorrelation))
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	cols := columns(t, []string{"x", "y"}, 100, func(i int) []string { return []string{itoa(i), itoa(i)} })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(0.7, 42, 1, nil).Analyze(ctx, cols)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStrengthAndInterpret(t *testing.T) {
	assert.Equal(t, "very strong", Strength(0.95))
	assert.Equal(t, "strong", Strength(0.7))
	assert.Equal(t, "moderate", Strength(0.5))
	assert.Equal(t, "weak", Strength(0.3))
	assert.Equal(t, "very weak", Strength(0.1))
	assert.Equal(t, "p and q show little to no linear relationship", Interpret(0.2, "p", "q"))
}

func TestMutualInformation(t *testing.T) {
	n := 200
	x := make([]float64, n)
	noise := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		v := math.Sin(float64(i)*12.9898) * 43758.5453
		noise[i] = v - math.Floor(v)
	}
	dep := MutualInformation(x, x, 42)
	ind := MutualInformation(x, noise, 42)
	assert.Greater(t, dep, 2.0)
	assert.Less(t, ind, 0.5)
	assert.GreaterOrEqual(t, ind, 0.0)
	assert.Equal(t, dep, MutualInformation(x, x, 42))
	assert.Equal(t, 0.0, MutualInformation([]float64{1, 2}, []float64{1, 2}, 42))

	big := make([]float64, 2500)
	for i := range big {
		big[i] = float64(i)
	}
	assert.Greater(t, MutualInformation(big, big, 42), 2.0)
}

func TestKthSmallest(t *testing.T) {
	assert.Equal(t, 3.0, kthSmallest([]float64{9, 1, 5, 3, 2}, 3))
	assert.Equal(t, 1.0, kthSmallest([]float64{9, 1, 5}, 1))
}
