package anomaly

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/tabsight/internal/dataset"
)

func numbers(vals ...string) *dataset.Column {
	rows := make([][]string, len(vals))
	for i, v := range vals {
		rows[i] = []string{v}
	}
	return dataset.FromRecords("t", []string{"v"}, rows, dataset.DefaultOptions()).Columns[0]
}

func TestDetect_ConstantColumnHasNoZScoreHits(t *testing.T) {
	vals := make([]string, 20)
	for i := range vals {
		vals[i] = "5"
	}
	res, err := New(DefaultConfig(), zaptest.NewLogger(t)).Detect(numbers(vals...))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Methods["statistical"].Count)
	assert.Empty(t, res.Methods["statistical"].Error)
	assert.Equal(t, 0, res.TotalAnomalies)
	assert.Empty(t, res.Anomalies)
	assert.Equal(t, 0.0, res.Statistics.Std)
}

func TestDetect_IQRFlagsExtremeValue(t *testing.T) {
	col := numbers("1", "2", "3", "4", "5", "6", "7", "8", "9", "100")
	res, err := New(DefaultConfig(), zaptest.NewLogger(t)).Detect(col)
	require.NoError(t, err)

	var rec *Record
	for i := range res.Anomalies {
		if res.Anomalies[i].Index == 9 {
			rec = &res.Anomalies[i]
		}
	}
	require.NotNil(t, rec, "value 100 must be reported")
	assert.Equal(t, 100.0, rec.Value)
	assert.Contains(t, rec.MethodsDetected, MethodIQR)
	assert.GreaterOrEqual(t, rec.Confidence, 1.0/3)

	iqr := res.Methods["iqr"]
	require.NotNil(t, iqr.UpperBound)
	assert.InDelta(t, 14.5, *iqr.UpperBound, 1e-9)
	assert.Equal(t, 10, res.TotalDataPoints)
	require.NotNil(t, res.Methods["isolation_forest"].Contamination)
	assert.Equal(t, 0.1, *res.Methods["isolation_forest"].Contamination)
}

func TestDetect_ConfidenceIsMethodShare(t *testing.T) {
	vals := make([]string, 0, 60)
	for i := 0; i < 59; i++ {
		vals = append(vals, strconv.Itoa(50+i%5))
	}
	vals = append(vals, "10000")
	res, err := New(DefaultConfig(), nil).Detect(numbers(vals...))
	require.NoError(t, err)
	require.NotEmpty(t, res.Anomalies)
	top := res.Anomalies[0]
	assert.Equal(t, 59, top.Index)
	assert.Equal(t, 1.0, top.Confidence)
	assert.Equal(t, []string{MethodZScore, MethodIQR, MethodIForest}, top.MethodsDetected)
	for _, a := range res.Anomalies {
		k := len(a.MethodsDetected)
		assert.InDelta(t, float64(k)/3, a.Confidence, 1e-12)
	}
}

func TestDetect_InsufficientData(t *testing.T) {
	_, err := New(DefaultConfig(), nil).Detect(numbers("1", "2", "3", "", "5"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrInsufficientData))
	var ide *dataset.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 4, ide.Have)
}

func TestDetect_ReportsDatasetRows(t *testing.T) {
	col := numbers("", "1", "2", "3", "", "4", "5", "6", "7", "8", "9", "500")
	res, err := New(DefaultConfig(), nil).Detect(col)
	require.NoError(t, err)
	require.NotEmpty(t, res.Anomalies)
	assert.Equal(t, 11, res.Anomalies[0].Index)
	assert.Equal(t, 500.0, res.Anomalies[0].Value)
}

func TestDetect_CapsRecordsAndSorts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecords = 2
	vals := []string{"1", "1", "1", "1", "1", "1", "1", "1", "1", "1", "90", "95", "99"}
	res, err := New(cfg, nil).Detect(numbers(vals...))
	require.NoError(t, err)
	assert.Len(t, res.Anomalies, 2)
	assert.GreaterOrEqual(t, res.TotalAnomalies, 3)
	a, b := res.Anomalies[0], res.Anomalies[1]
	assert.True(t, a.Confidence > b.Confidence || (a.Confidence == b.Confidence && a.Index < b.Index))
}

func TestDetect_MethodFailureIsIsolated(t *testing.T) {
	e := New(DefaultConfig(), zaptest.NewLogger(t))
	e.detectors[2].run = func([]float64) ([]int, MethodSummary, error) { panic("boom") }
	res, err := e.Detect(numbers("1", "2", "3", "4", "5", "6", "7", "8", "9", "100"))
	require.NoError(t, err)
	assert.Equal(t, "boom", res.Methods["isolation_forest"].Error)
	assert.Equal(t, 0, res.Methods["isolation_forest"].Count)
	assert.Equal(t, 1, res.Methods["iqr"].Count)

	e.detectors[2].run = func([]float64) ([]int, MethodSummary, error) { return nil, MethodSummary{}, errors.New("bad input") }
	res, err = e.Detect(numbers("1", "2", "3", "4", "5", "6", "7", "8", "9", "100"))
	require.NoError(t, err)
	assert.Equal(t, "bad input", res.Methods["isolation_forest"].Error)
	assert.Equal(t, MethodIForest, res.Methods["isolation_forest"].Method)
}

func TestDetect_Deterministic(t *testing.T) {
	vals := make([]string, 200)
	for i := range vals {
		vals[i] = strconv.Itoa((i * 37) % 101)
	}
	vals[17] = "900"
	col := numbers(vals...)
	a, err := New(DefaultConfig(), nil).Detect(col)
	require.NoError(t, err)
	b, err := New(DefaultConfig(), nil).Detect(col)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIsolationForest(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i % 10)
	}
	vals[42] = 1000
	f := NewIsolationForest(100, 0.05, 42)
	require.NoError(t, f.Fit(vals))
	assert.Contains(t, f.Outliers(), 42)
	for _, s := range f.Scores() {
		assert.Greater(t, s, 0.0)
		assert.Less(t, s, 1.0)
	}
	assert.Greater(t, f.Score(1000), f.Score(5))

	assert.Error(t, NewIsolationForest(100, 0.1, 1).Fit([]float64{1}))
	assert.Error(t, NewIsolationForest(100, 0.9, 1).Fit([]float64{1, 2, 3}))
}

func TestAveragePath(t *testing.T) {
	assert.Equal(t, 0.0, averagePath(1))
	assert.Equal(t, 1.0, averagePath(2))
	assert.InDelta(t, 10.2448, averagePath(256), 1e-3)
}
