// Package correlation measures pairwise association between numeric columns
// with Pearson, Spearman and mutual information.
package correlation

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/numeric"
)

// MinColumnsMessage is reported when fewer than two columns qualify.
const MinColumnsMessage = "Need at least 2 numeric columns for correlation analysis"

const (
	minJoint     = 3
	maxRecords   = 20
	significance = 0.05
)

// Record is one retained column pair.
type Record struct {
	Column1             string  `json:"column1"`
	Column2             string  `json:"column2"`
	PearsonCorrelation  float64 `json:"pearson_correlation"`
	PearsonPValue       float64 `json:"pearson_p_value"`
	SpearmanCorrelation float64 `json:"spearman_correlation"`
	SpearmanPValue      float64 `json:"spearman_p_value"`
	MutualInformation   float64 `json:"mutual_information"`
	CorrelationType     string  `json:"correlation_type"`
	Strength            string  `json:"strength"`
	IsSignificant       bool    `json:"is_significant"`
	Interpretation      string  `json:"interpretation"`
	Observations        int     `json:"observations"`
}

// Result is the correlation document.
type Result struct {
	TotalCorrelations  int      `json:"total_correlations"`
	StrongCorrelations int      `json:"strong_correlations"`
	Correlations       []Record `json:"correlations"`
	NumericColumns     []string `json:"numeric_columns"`
	Message            string   `json:"message,omitempty"`
}

// Analyzer computes correlations over column pairs in parallel.
type Analyzer struct {
	Threshold float64
	Seed      int64
	Workers   int
	log       *zap.Logger
}

// New returns an Analyzer. A nil logger is replaced with a no-op logger.
func New(threshold float64, seed int64, workers int, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{Threshold: threshold, Seed: seed, Workers: workers, log: log}
}

// Strength bands an absolute correlation.
func Strength(abs float64) string {
	switch {
	case abs >= 0.9:
		return "very strong"
	case abs >= 0.7:
		return "strong"
	case abs >= 0.5:
		return "moderate"
	case abs >= 0.3:
		return "weak"
	}
	return "very weak"
}

// Interpret renders a one-sentence reading of r.
func Interpret(r float64, col1, col2 string) string {
	if math.Abs(r) < 0.3 {
		return fmt.Sprintf("%s and %s show little to no linear relationship", col1, col2)
	}
	strength := Strength(math.Abs(r))
	if r > 0 {
		return fmt.Sprintf("When %s increases, %s tends to increase as well (%s positively correlated)", col1, col2, strength)
	}
	return fmt.Sprintf("When %s increases, %s tends to decrease (%s negatively correlated)", col1, col2, strength)
}

type pair struct{ i, j int }

// Analyze evaluates every unordered pair of cols. Results do not depend on
// the number of workers.
func (a *Analyzer) Analyze(ctx context.Context, cols []*dataset.Column) (*Result, error) {
	res := &Result{Correlations: []Record{}, NumericColumns: make([]string, len(cols))}
	for i, c := range cols {
		res.NumericColumns[i] = c.Name
	}
	if len(cols) < 2 {
		res.Message = MinColumnsMessage
		return res, nil
	}

	type series struct {
		vals []float64
		ok   []bool
	}
	data := make([]series, len(cols))
	for i, c := range cols {
		data[i].vals, data[i].ok = c.LooseAligned()
	}

	var pairs []pair
	for i := range cols {
		for j := i + 1; j < len(cols); j++ {
			pairs = append(pairs, pair{i, j})
		}
	}
	slots := make([]*Record, len(pairs))

	workers := a.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for s, p := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			x, y := joint(data[p.i].vals, data[p.i].ok, data[p.j].vals, data[p.j].ok)
			slots[s] = a.pair(cols[p.i].Name, cols[p.j].Name, x, y)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range slots {
		if r != nil {
			res.Correlations = append(res.Correlations, *r)
		}
	}
	sort.SliceStable(res.Correlations, func(i, j int) bool {
		return math.Abs(res.Correlations[i].PearsonCorrelation) > math.Abs(res.Correlations[j].PearsonCorrelation)
	})
	res.TotalCorrelations = len(res.Correlations)
	for _, r := range res.Correlations {
		if r.Strength == "very strong" || r.Strength == "strong" {
			res.StrongCorrelations++
		}
	}
	if len(res.Correlations) > maxRecords {
		res.Correlations = res.Correlations[:maxRecords]
	}
	a.log.Debug("correlation analysis finished",
		zap.Int("columns", len(cols)),
		zap.Int("pairs", len(pairs)),
		zap.Int("retained", res.TotalCorrelations))
	return res, nil
}

func joint(xv []float64, xok []bool, yv []float64, yok []bool) (x, y []float64) {
	for i := range xv {
		if i < len(yv) && xok[i] && yok[i] {
			x = append(x, xv[i])
			y = append(y, yv[i])
		}
	}
	return x, y
}

// pair returns nil when the pair is skipped or falls under the threshold.
func (a *Analyzer) pair(name1, name2 string, x, y []float64) *Record {
	n := len(x)
	if n < minJoint {
		return nil
	}
	_, vx := numeric.MeanVar(x)
	_, vy := numeric.MeanVar(y)
	if vx == 0 || vy == 0 {
		return nil
	}
	p := numeric.Finite(stat.Correlation(x, y, nil))
	s := numeric.Finite(stat.Correlation(numeric.Ranks(x), numeric.Ranks(y), nil))
	if math.Abs(p) < a.Threshold && math.Abs(s) < a.Threshold {
		return nil
	}
	typ := "negative"
	if p > 0 {
		typ = "positive"
	}
	pp := numeric.CorrelationP(p, n)
	return &Record{
		Column1:             name1,
		Column2:             name2,
		PearsonCorrelation:  p,
		PearsonPValue:       pp,
		SpearmanCorrelation: s,
		SpearmanPValue:      numeric.CorrelationP(s, n),
		MutualInformation:   MutualInformation(x, y, a.Seed),
		CorrelationType:     typ,
		Strength:            Strength(math.Abs(p)),
		IsSignificant:       pp < significance,
		Interpretation:      Interpret(p, name1, name2),
		Observations:        n,
	}
}
