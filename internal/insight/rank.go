package insight

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Ranking policies.
const (
	RankByConfidence = "confidence"
	RankByPriority   = "priority"
)

// Default top-K per ranking policy.
const (
	DefaultConfidenceTopK = 20
	DefaultPriorityTopK   = 10
)

// Config controls ranking, truncation and the optional narrative.
type Config struct {
	Ranking               string
	TopK                  int
	SuppressLowConfidence bool
	MinConfidence         float64
	Summary               bool
	NarrativeSeed         int64
}

// DefaultConfig ranks by confidence with the default cap and no narrative.
func DefaultConfig() Config {
	return Config{Ranking: RankByConfidence, MinConfidence: 0.5, NarrativeSeed: 42}
}

// Result is the insight document.
type Result struct {
	DatasetID     string     `json:"dataset_id"`
	UserID        string     `json:"user_id,omitempty"`
	Ranking       string     `json:"ranking"`
	TotalInsights int        `json:"total_insights"`
	Suppressed    int        `json:"suppressed,omitempty"`
	Insights      []Insight  `json:"insights"`
	Summary       *Narrative `json:"summary,omitempty"`
}

// Aggregator ranks generated insights.
type Aggregator struct {
	cfg Config
	log *zap.Logger
	now func() time.Time
}

// New returns an Aggregator. A nil logger is replaced with a no-op logger.
func New(cfg Config, log *zap.Logger) (*Aggregator, error) {
	switch cfg.Ranking {
	case "":
		cfg.Ranking = RankByConfidence
	case RankByConfidence, RankByPriority:
	default:
		return nil, fmt.Errorf("unknown ranking %q (want %s or %s)", cfg.Ranking, RankByConfidence, RankByPriority)
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("top-k must not be negative, got %d", cfg.TopK)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{cfg: cfg, log: log, now: time.Now}, nil
}

// WithClock replaces the timestamp source used for created_at.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Aggregate generates, ranks and truncates insights for one dataset.
func (a *Aggregator) Aggregate(datasetID string, f Findings) *Result {
	all := Generate(f)
	res := &Result{DatasetID: datasetID, Ranking: a.cfg.Ranking, TotalInsights: len(all)}

	kept := all[:0:0]
	for _, in := range all {
		if a.cfg.SuppressLowConfidence && in.Confidence < a.cfg.MinConfidence {
			res.Suppressed++
			continue
		}
		kept = append(kept, in)
	}
	Rank(kept, a.cfg.Ranking)
	if k := a.topK(); len(kept) > k {
		kept = kept[:k]
	}
	stamp := a.now().UTC().Format(time.RFC3339)
	for i := range kept {
		kept[i].ID = i + 1
		kept[i].CreatedAt = stamp
	}
	res.Insights = kept
	if a.cfg.Summary {
		res.Summary = Narrate(datasetID, res, a.cfg.NarrativeSeed)
	}
	a.log.Debug("insights ranked",
		zap.String("dataset_id", datasetID),
		zap.String("ranking", a.cfg.Ranking),
		zap.Int("generated", len(all)),
		zap.Int("suppressed", res.Suppressed),
		zap.Int("returned", len(kept)))
	return res
}

func (a *Aggregator) topK() int {
	switch {
	case a.cfg.TopK > 0:
		return a.cfg.TopK
	case a.cfg.Ranking == RankByPriority:
		return DefaultPriorityTopK
	}
	return DefaultConfidenceTopK
}

// Rank sorts in place. Confidence ranking orders by confidence alone;
// priority ranking orders by priority weight with confidence as tiebreak.
// Equal keys keep discovery order.
func Rank(ins []Insight, policy string) {
	if policy == RankByPriority {
		sort.SliceStable(ins, func(i, j int) bool {
			wi, wj := PriorityWeight(ins[i].Priority), PriorityWeight(ins[j].Priority)
			if wi != wj {
				return wi > wj
			}
			return ins[i].Confidence > ins[j].Confidence
		})
		return
	}
	sort.SliceStable(ins, func(i, j int) bool { return ins[i].Confidence > ins[j].Confidence })
}
