// Package numeric holds the small statistical helpers shared by the analysis
// stages: type-7 quantiles, average ranks, standardized moments and Student t
// tests.
package numeric

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sorted returns a sorted copy of vals.
func Sorted(vals []float64) []float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return cp
}

// Quantile interpolates linearly between closest ranks of an already sorted slice.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// IQRBounds returns Q1, Q3 and the Tukey fences at 1.5·IQR.
func IQRBounds(vals []float64) (q1, q3, lower, upper float64) {
	s := Sorted(vals)
	q1 = Quantile(s, 0.25)
	q3 = Quantile(s, 0.75)
	iqr := q3 - q1
	return q1, q3, q1 - 1.5*iqr, q3 + 1.5*iqr
}

// Ranks assigns 1-based ranks, averaging ties.
func Ranks(vals []float64) []float64 {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return vals[idx[a]] < vals[idx[b]] })
	out := make([]float64, len(vals))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && vals[idx[j+1]] == vals[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = r
		}
		i = j + 1
	}
	return out
}

// MeanVar returns the mean and the sample variance (n-1 denominator).
func MeanVar(vals []float64) (mean, variance float64) {
	n := float64(len(vals))
	if n == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= n
	if n < 2 {
		return mean, 0
	}
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	return mean, variance / (n - 1)
}

func centralMoments(vals []float64) (m2, m3, m4 float64) {
	n := float64(len(vals))
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= n
	for _, v := range vals {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	return m2 / n, m3 / n, m4 / n
}

// Skewness is the bias-adjusted Fisher-Pearson coefficient (G1). It is 0 when
// fewer than 3 values are given or the values do not vary.
func Skewness(vals []float64) float64 {
	n := float64(len(vals))
	if n < 3 {
		return 0
	}
	if isFlat(vals) {
		return 0
	}
	m2, m3, _ := centralMoments(vals)
	g1 := m3 / math.Pow(m2, 1.5)
	return g1 * math.Sqrt(n*(n-1)) / (n - 2)
}

// Kurtosis is the bias-adjusted excess kurtosis (G2). It is 0 when fewer than
// 4 values are given or the values do not vary.
func Kurtosis(vals []float64) float64 {
	n := float64(len(vals))
	if n < 4 {
		return 0
	}
	if isFlat(vals) {
		return 0
	}
	m2, _, m4 := centralMoments(vals)
	g2 := m4/(m2*m2) - 3
	return ((n+1)*g2 + 6) * (n - 1) / ((n - 2) * (n - 3))
}

func isFlat(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}

// TwoSidedP returns the two-sided p-value of a t statistic with df degrees of freedom.
func TwoSidedP(t, df float64) float64 {
	if math.IsNaN(t) || df <= 0 {
		return 1
	}
	if math.IsInf(t, 0) {
		return 0
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return clamp01(p)
}

// TTestOneSample tests whether the mean of vals differs from mu.
// Degenerate input (fewer than 2 values, or no spread) yields p = 1 when the
// mean equals mu and p = 0 otherwise.
func TTestOneSample(vals []float64, mu float64) (t, p float64) {
	n := float64(len(vals))
	if n < 2 {
		return 0, 1
	}
	mean, variance := MeanVar(vals)
	se := math.Sqrt(variance / n)
	if se == 0 || isNegligible(se, mean) {
		if nearlyEqual(mean, mu) {
			return 0, 1
		}
		return math.Inf(sign(mean - mu)), 0
	}
	t = (mean - mu) / se
	return t, TwoSidedP(t, n-1)
}

// TTestIndependent is the pooled-variance two-sample t test.
func TTestIndependent(a, b []float64) (t, p float64) {
	n1, n2 := float64(len(a)), float64(len(b))
	if n1 < 2 || n2 < 2 {
		return 0, 1
	}
	m1, v1 := MeanVar(a)
	m2, v2 := MeanVar(b)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 {
		if m1 == m2 {
			return 0, 1
		}
		return math.Inf(sign(m1 - m2)), 0
	}
	t = (m1 - m2) / se
	return t, TwoSidedP(t, df)
}

// CorrelationP is the two-sided p-value of a correlation coefficient r over n pairs.
func CorrelationP(r float64, n int) float64 {
	if n < 3 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return TwoSidedP(t, df)
}

// Clamp01 bounds x to [0, 1]; NaN becomes 0.
func Clamp01(x float64) float64 { return clamp01(x) }

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// Round rounds x to the given number of decimals.
func Round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// Finite replaces NaN and ±Inf with 0 so values stay JSON encodable.
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

func sign(x float64) int {
	if x < 0 {
		return -1
	}
	return 1
}

func nearlyEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-12*scale
}

// isNegligible treats a standard error that is pure rounding noise relative to
// the mean as zero.
func isNegligible(se, mean float64) bool {
	return se <= 1e-15*math.Max(1, math.Abs(mean))
}
