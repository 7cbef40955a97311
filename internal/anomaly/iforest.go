package anomaly

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/KaramelBytes/tabsight/internal/numeric"
)

const eulerGamma = 0.5772156649015329

// IsolationForest is a univariate isolation forest. Points that are
// separated from the rest by few random splits score close to 1.
type IsolationForest struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64

	trees  []*itreeNode
	psi    int
	scores []float64
	thresh float64
}

type itreeNode struct {
	split       float64
	left, right *itreeNode
	size        int // leaf only
}

// NewIsolationForest returns a forest with 256-point subsamples.
func NewIsolationForest(trees int, contamination float64, seed int64) *IsolationForest {
	return &IsolationForest{Trees: trees, SampleSize: 256, Contamination: contamination, Seed: seed}
}

// Fit grows the forest on vals and scores every value.
func (f *IsolationForest) Fit(vals []float64) error {
	n := len(vals)
	if n < 2 {
		return errors.New("isolation forest needs at least 2 values")
	}
	if f.Trees <= 0 {
		return errors.New("isolation forest needs at least one tree")
	}
	if f.Contamination <= 0 || f.Contamination > 0.5 {
		return errors.New("contamination must be in (0, 0.5]")
	}
	f.psi = f.SampleSize
	if f.psi <= 0 || f.psi > n {
		f.psi = n
	}
	limit := int(math.Ceil(math.Log2(float64(f.psi))))
	rng := rand.New(rand.NewPCG(uint64(f.Seed), uint64(f.Seed)^0x5851f42d4c957f2d))

	f.trees = make([]*itreeNode, f.Trees)
	sub := make([]float64, f.psi)
	for t := range f.trees {
		perm := rng.Perm(n)
		for i := 0; i < f.psi; i++ {
			sub[i] = vals[perm[i]]
		}
		f.trees[t] = grow(sub, 0, limit, rng)
	}

	f.scores = make([]float64, n)
	for i, v := range vals {
		f.scores[i] = f.Score(v)
	}
	f.thresh = numeric.Quantile(numeric.Sorted(f.scores), 1-f.Contamination)
	return nil
}

func grow(vals []float64, depth, limit int, rng *rand.Rand) *itreeNode {
	if depth >= limit || len(vals) <= 1 {
		return &itreeNode{size: len(vals)}
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &itreeNode{size: len(vals)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range vals {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &itreeNode{
		split: split,
		left:  grow(left, depth+1, limit, rng),
		right: grow(right, depth+1, limit, rng),
	}
}

func pathLength(node *itreeNode, v float64, depth int) float64 {
	for node.left != nil {
		if v < node.split {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return float64(depth) + averagePath(node.size)
}

// averagePath is c(n), the mean path length of an unsuccessful search in a
// binary search tree of n points.
func averagePath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// Score returns the anomaly score 2^(-E[h(v)]/c(ψ)) of v.
func (f *IsolationForest) Score(v float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	total := 0.0
	for _, t := range f.trees {
		total += pathLength(t, v, 0)
	}
	mean := total / float64(len(f.trees))
	c := averagePath(f.psi)
	if c == 0 {
		return 0.5
	}
	return math.Pow(2, -mean/c)
}

// Outliers returns the positions of fitted values scoring strictly above
// the (1 - contamination) quantile of all fitted scores.
func (f *IsolationForest) Outliers() []int {
	var out []int
	for i, s := range f.scores {
		if s > f.thresh {
			out = append(out, i)
		}
	}
	return out
}

// Scores returns the fitted scores.
func (f *IsolationForest) Scores() []float64 { return f.scores }
