package correlation

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mathext"
)

const (
	miNeighbors = 3
	miMaxPoints = 1000
)

// MutualInformation estimates I(X;Y) in nats with the Kraskov–Stögbauer–
// Grassberger k-nearest-neighbour estimator (k = 3). Both variables are
// scaled to unit variance and jittered with seeded noise so ties do not
// collapse distances. Series longer than 1000 points are subsampled with a
// fixed stride. The estimate is floored at 0.
func MutualInformation(x, y []float64, seed int64) float64 {
	n := len(x)
	if n != len(y) || n <= miNeighbors {
		return 0
	}
	if n > miMaxPoints {
		x, y = stride(x, miMaxPoints), stride(y, miMaxPoints)
		n = miMaxPoints
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0xda3e39cb94b95bdb))
	xs := jitter(scale(x), rng)
	ys := jitter(scale(y), rng)

	k := miNeighbors
	dists := make([]float64, 0, n-1)
	var sumX, sumY float64
	for i := 0; i < n; i++ {
		dists = dists[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			dists = append(dists, math.Max(math.Abs(xs[i]-xs[j]), math.Abs(ys[i]-ys[j])))
		}
		radius := math.Nextafter(kthSmallest(dists, k), 0)
		nx, ny := 0, 0
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if math.Abs(xs[i]-xs[j]) <= radius {
				nx++
			}
			if math.Abs(ys[i]-ys[j]) <= radius {
				ny++
			}
		}
		sumX += mathext.Digamma(float64(nx + 1))
		sumY += mathext.Digamma(float64(ny + 1))
	}
	mi := mathext.Digamma(float64(n)) + mathext.Digamma(float64(k)) - (sumX+sumY)/float64(n)
	return math.Max(0, mi)
}

func stride(v []float64, m int) []float64 {
	out := make([]float64, m)
	for i := range out {
		out[i] = v[i*len(v)/m]
	}
	return out
}

// scale divides by the population standard deviation.
func scale(v []float64) []float64 {
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	ss := 0.0
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	std := math.Sqrt(ss / float64(len(v)))
	out := make([]float64, len(v))
	for i, x := range v {
		if std > 0 {
			out[i] = x / std
		} else {
			out[i] = x
		}
	}
	return out
}

func jitter(v []float64, rng *rand.Rand) []float64 {
	meanAbs := 0.0
	for _, x := range v {
		meanAbs += math.Abs(x)
	}
	meanAbs /= float64(len(v))
	amp := 1e-10 * math.Max(1, meanAbs)
	for i := range v {
		v[i] += amp * rng.NormFloat64()
	}
	return v
}

// kthSmallest returns the k-th smallest value (1-based) by partial selection.
func kthSmallest(d []float64, k int) float64 {
	best := make([]float64, 0, k)
	for _, v := range d {
		if len(best) < k {
			best = append(best, v)
			for i := len(best) - 1; i > 0 && best[i] < best[i-1]; i-- {
				best[i], best[i-1] = best[i-1], best[i]
			}
			continue
		}
		if v >= best[k-1] {
			continue
		}
		best[k-1] = v
		for i := k - 1; i > 0 && best[i] < best[i-1]; i-- {
			best[i], best[i-1] = best[i-1], best[i]
		}
	}
	return best[len(best)-1]
}
