package trend

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/KaramelBytes/tabsight/internal/dataset"
)

func series(vals ...float64) *dataset.Column {
	rows := make([][]string, len(vals))
	for i, v := range vals {
		rows[i] = []string{strconv.FormatFloat(v, 'f', -1, 64)}
	}
	return dataset.FromRecords("t", []string{"y"}, rows, dataset.DefaultOptions()).Columns[0]
}

func TestDetect_PerfectLine(t *testing.T) {
	y := make([]float64, 20)
	for i := range y {
		y[i] = 2 * float64(i)
	}
	res, err := New(zaptest.NewLogger(t)).Detect(series(y...))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	assert.InDelta(t, 2.0, res.Slope, 1e-9)
	assert.Equal(t, Increasing, res.Direction)
	assert.True(t, res.IsSignificant)
	assert.Less(t, res.PValue, 0.05)
	assert.Equal(t, 0.0, res.PercentageChange, "first value is zero")
	assert.InDelta(t, 2.0, res.TrendStrength, 1e-9)
	require.Len(t, res.PredictionNext3, 3)
	assert.InDelta(t, 40.0, res.PredictionNext3[0], 1e-9)
	assert.InDelta(t, 44.0, res.PredictionNext3[2], 1e-9)
	require.NotNil(t, res.Seasonality)
	assert.False(t, res.Seasonality.Detected)
	// Every window of a steep line differs from the next; the first five are kept.
	require.Len(t, res.Changepoints, 5)
	assert.Equal(t, 5, res.Changepoints[0].Index)
	assert.Equal(t, 20, res.DataPoints)
	assert.InDelta(t, math.Sqrt(133), res.StdValue, 1e-9)
}

func TestDetect_Decreasing(t *testing.T) {
	res, err := New(nil).Detect(series(10, 8, 6.5, 4, 2))
	require.NoError(t, err)
	assert.Equal(t, Decreasing, res.Direction)
	assert.InDelta(t, -80.0, res.PercentageChange, 1e-9)
	assert.Nil(t, res.Seasonality)
}

func TestDetect_Constant(t *testing.T) {
	res, err := New(nil).Detect(series(5, 5, 5, 5, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, Stable, res.Direction)
	assert.Equal(t, 0.0, res.Slope)
	assert.Equal(t, 1.0, res.RSquared)
	assert.Equal(t, 1.0, res.PValue)
	assert.False(t, res.IsSignificant)
	assert.Equal(t, 0.0, res.StdValue)
}

func TestDetect_InsufficientData(t *testing.T) {
	_, err := New(nil).Detect(series(1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrInsufficientData))
	assert.Contains(t, err.Error(), "need at least 3")
}

func TestDetectSeasonality(t *testing.T) {
	y := make([]float64, 48)
	for i := range y {
		y[i] = 100 + 10*math.Sin(2*math.Pi*float64(i)/12)
	}
	s := DetectSeasonality(y, FitLine(y))
	require.True(t, s.Detected)
	assert.Equal(t, 12, s.Period)
	assert.InDelta(t, 0.5, s.Strength, 0.05)

	// A short series can never clear the bar.
	s = DetectSeasonality(y[:12], FitLine(y[:12]))
	assert.False(t, s.Detected)
}

func TestChangepoints(t *testing.T) {
	y := make([]float64, 20)
	rows := make([]int, 20)
	for i := range y {
		y[i] = 1
		if i >= 10 {
			y[i] = 10
		}
		rows[i] = i + 3
	}
	cps := Changepoints(y, rows)
	require.Len(t, cps, 3)
	assert.Equal(t, []int{9, 10, 11}, []int{cps[0].Index, cps[1].Index, cps[2].Index})
	mid := cps[1]
	assert.Equal(t, 13, mid.Row)
	assert.Equal(t, 1.0, mid.BeforeMean)
	assert.Equal(t, 10.0, mid.AfterMean)
	assert.Equal(t, 900.0, mid.ChangePercentage)
	assert.Equal(t, 1.0, mid.Significance)
	assert.Less(t, cps[0].PValue, 0.01)

	assert.Empty(t, Changepoints(y[:9], nil))
}

func TestChangepoints_TopFiveByIndex(t *testing.T) {
	// Alternating plateaus produce many shifts; only five survive.
	var y []float64
	for block := 0; block < 8; block++ {
		v := 0.0
		if block%2 == 1 {
			v = 100
		}
		for i := 0; i < 5; i++ {
			y = append(y, v)
		}
	}
	cps := Changepoints(y, nil)
	require.Len(t, cps, 5)
	for i := 1; i < len(cps); i++ {
		assert.Less(t, cps[i-1].Index, cps[i].Index)
	}
	for _, cp := range cps {
		assert.Equal(t, cp.Index, cp.Row)
		if cp.BeforeMean == 0 {
			assert.Equal(t, 0.0, cp.ChangePercentage)
		}
	}
}
