package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile(t *testing.T) {
	s := []float64{1, 2, 3, 4, 5, 100}
	assert.InDelta(t, 2.25, Quantile(s, 0.25), 1e-12)
	assert.InDelta(t, 4.75, Quantile(s, 0.75), 1e-12)
	assert.Equal(t, 1.0, Quantile(s, 0))
	assert.Equal(t, 100.0, Quantile(s, 1))
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}

func TestIQRBounds(t *testing.T) {
	q1, q3, lo, hi := IQRBounds([]float64{100, 1, 2, 3, 4, 5})
	assert.InDelta(t, 2.25, q1, 1e-12)
	assert.InDelta(t, 4.75, q3, 1e-12)
	assert.InDelta(t, -1.5, lo, 1e-12)
	assert.InDelta(t, 8.5, hi, 1e-12)
}

func TestRanks_AveragesTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Ranks([]float64{10, 20, 20, 30}))
	assert.Equal(t, []float64{3, 1, 2}, Ranks([]float64{9, 1, 5}))
}

func TestMoments(t *testing.T) {
	// Symmetric data has no skew.
	assert.InDelta(t, 0, Skewness([]float64{1, 2, 3, 4, 5}), 1e-12)
	// Right tail.
	assert.Greater(t, Skewness([]float64{1, 1, 1, 2, 2, 3, 10, 50}), 1.0)
	assert.Equal(t, 0.0, Skewness([]float64{4, 4, 4, 4}))
	assert.Equal(t, 0.0, Kurtosis([]float64{1, 2}))
	// Uniform 1..5 has G2 = -1.2.
	assert.InDelta(t, -1.2, Kurtosis([]float64{1, 2, 3, 4, 5}), 1e-9)
}

func TestTTestOneSample(t *testing.T) {
	_, p := TTestOneSample([]float64{0, 0, 0, 0}, 0)
	assert.Equal(t, 1.0, p)

	_, p = TTestOneSample([]float64{5, 5, 5}, 0)
	assert.Equal(t, 0.0, p)

	tt, p := TTestOneSample([]float64{1, 2, 3, 4, 5}, 0)
	assert.InDelta(t, 4.2426, tt, 1e-3)
	assert.InDelta(t, 0.0132, p, 1e-3)
}

func TestTTestIndependent(t *testing.T) {
	_, p := TTestIndependent([]float64{1, 2, 3, 4, 5}, []float64{1, 2, 3, 4, 5})
	assert.InDelta(t, 1.0, p, 1e-12)

	_, p = TTestIndependent([]float64{1, 1, 1, 1, 1}, []float64{9, 9, 9, 9, 9})
	assert.Equal(t, 0.0, p)

	_, p = TTestIndependent([]float64{1, 2, 1, 2, 1}, []float64{10, 11, 10, 11, 10})
	assert.Less(t, p, 0.01)
}

func TestCorrelationP(t *testing.T) {
	assert.Equal(t, 0.0, CorrelationP(1, 10))
	assert.Equal(t, 1.0, CorrelationP(0.5, 2))
	assert.InDelta(t, 1.0, CorrelationP(0, 10), 1e-12)
}

func TestClampAndFinite(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-2))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.0, Finite(math.Inf(1)))
	assert.Equal(t, 12.35, Round(12.3456, 2))
}
