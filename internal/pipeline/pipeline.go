// Package pipeline runs the classification, profiling, anomaly, trend,
// correlation and insight stages over one dataset.
package pipeline

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/tabsight/internal/anomaly"
	"github.com/KaramelBytes/tabsight/internal/charts"
	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/correlation"
	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/insight"
	"github.com/KaramelBytes/tabsight/internal/profile"
	"github.com/KaramelBytes/tabsight/internal/trend"
)

// Config carries every tunable of a run. Nothing is read from globals.
type Config struct {
	Seed                 int64
	SampleSize           int
	CorrelationThreshold float64
	Workers              int
	Anomaly              anomaly.Config
	Insight              insight.Config
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		Seed:                 42,
		SampleSize:           1000,
		CorrelationThreshold: 0.7,
		Anomaly:              anomaly.DefaultConfig(),
		Insight:              insight.DefaultConfig(),
	}
}

// Skip records a column an analysis stage could not process.
type Skip struct {
	Stage  string `json:"stage"`
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// Result is the combined document of a full run.
type Result struct {
	RunID        string              `json:"run_id"`
	DatasetID    string              `json:"dataset_id"`
	RowCount     int                 `json:"row_count"`
	ColumnCount  int                 `json:"column_count"`
	Types        *classify.Result    `json:"types"`
	Profile      *profile.Result     `json:"profile"`
	Anomalies    []*anomaly.Result   `json:"anomalies"`
	Trends       []*trend.Result     `json:"trends"`
	Correlations *correlation.Result `json:"correlations"`
	Insights     *insight.Result     `json:"insights"`
	Charts       *charts.Result      `json:"charts"`
	Skipped      []Skip              `json:"skipped"`
}

// Runner executes stages with bounded parallelism. Output never depends on
// the number of workers.
type Runner struct {
	cfg Config
	log *zap.Logger
}

// New returns a Runner. A nil logger is replaced with a no-op logger.
func New(cfg Config, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Runner{cfg: cfg, log: log}
}

// forEach calls fn for 0..n-1 on at most workers goroutines. Callers write
// into index-addressed slots so merge order is fixed.
func (r *Runner) forEach(ctx context.Context, n int, fn func(i int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) timed(stage string) func() {
	start := time.Now()
	return func() {
		r.log.Debug("stage finished", zap.String("stage", stage), zap.Duration("elapsed", time.Since(start)))
	}
}

// Classify types every column.
func (r *Runner) Classify(ctx context.Context, ds *dataset.Dataset) ([]*classify.ColumnType, error) {
	defer r.timed("classify")()
	c := classify.New(classify.WithSeed(r.cfg.Seed), classify.WithSampleSize(r.cfg.SampleSize))
	out := make([]*classify.ColumnType, len(ds.Columns))
	err := r.forEach(ctx, len(ds.Columns), func(i int) {
		out[i] = c.Classify(ds.Columns[i])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Profile builds the profile document. Column failures are recorded inline.
func (r *Runner) Profile(ctx context.Context, datasetID string, ds *dataset.Dataset, types []*classify.ColumnType) (*profile.Result, error) {
	defer r.timed("profile")()
	p := profile.New(r.log)
	cols := make([]*profile.ColumnProfile, len(ds.Columns))
	err := r.forEach(ctx, len(ds.Columns), func(i int) {
		cols[i] = p.Column(ds.Columns[i], types[i])
	})
	if err != nil {
		return nil, err
	}
	return profile.Assemble(datasetID, ds, types, cols), nil
}

// NumericColumns returns the columns whose detected type carries numbers.
func NumericColumns(ds *dataset.Dataset, types []*classify.ColumnType) []*dataset.Column {
	var out []*dataset.Column
	for i, ct := range types {
		if classify.NumericFamily[ct.DetectedType] {
			out = append(out, ds.Columns[i])
		}
	}
	return out
}

// Anomalies runs the ensemble on each numeric column. Columns with too few
// values are skipped and reported.
func (r *Runner) Anomalies(ctx context.Context, cols []*dataset.Column) ([]*anomaly.Result, []Skip, error) {
	defer r.timed("anomalies")()
	e := anomaly.New(r.cfg.Anomaly, r.log)
	slots := make([]*anomaly.Result, len(cols))
	errs := make([]error, len(cols))
	err := r.forEach(ctx, len(cols), func(i int) {
		slots[i], errs[i] = e.Detect(cols[i])
	})
	if err != nil {
		return nil, nil, err
	}
	out, skips := collect(r.log, "anomalies", cols, slots, errs)
	return out, skips, nil
}

// Trends runs trend detection on each numeric column.
func (r *Runner) Trends(ctx context.Context, cols []*dataset.Column) ([]*trend.Result, []Skip, error) {
	defer r.timed("trends")()
	d := trend.New(r.log)
	slots := make([]*trend.Result, len(cols))
	errs := make([]error, len(cols))
	err := r.forEach(ctx, len(cols), func(i int) {
		slots[i], errs[i] = d.Detect(cols[i])
	})
	if err != nil {
		return nil, nil, err
	}
	out, skips := collect(r.log, "trends", cols, slots, errs)
	return out, skips, nil
}

func collect[T any](log *zap.Logger, stage string, cols []*dataset.Column, slots []*T, errs []error) ([]*T, []Skip) {
	out := []*T{}
	skips := []Skip{}
	for i, s := range slots {
		if errs[i] != nil {
			log.Info("column skipped", zap.String("stage", stage), zap.String("column", cols[i].Name), zap.Error(errs[i]))
			skips = append(skips, Skip{Stage: stage, Column: cols[i].Name, Reason: errs[i].Error()})
			continue
		}
		out = append(out, s)
	}
	return out, skips
}

// Correlations analyses every numeric column pair.
func (r *Runner) Correlations(ctx context.Context, cols []*dataset.Column) (*correlation.Result, error) {
	defer r.timed("correlations")()
	return correlation.New(r.cfg.CorrelationThreshold, r.cfg.Seed, r.cfg.Workers, r.log).Analyze(ctx, cols)
}

// Insights ranks the findings of the earlier stages.
func (r *Runner) Insights(datasetID string, f insight.Findings) (*insight.Result, error) {
	defer r.timed("insights")()
	agg, err := insight.New(r.cfg.Insight, r.log)
	if err != nil {
		return nil, err
	}
	return agg.Aggregate(datasetID, f), nil
}

// DetectTypes classifies ds and summarizes the result.
func (r *Runner) DetectTypes(ctx context.Context, datasetID string, ds *dataset.Dataset) (*classify.Result, error) {
	types, err := r.Classify(ctx, ds)
	if err != nil {
		return nil, err
	}
	return classify.Summarize(datasetID, types), nil
}

// ProfileDataset classifies and profiles ds.
func (r *Runner) ProfileDataset(ctx context.Context, datasetID string, ds *dataset.Dataset) (*profile.Result, error) {
	types, err := r.Classify(ctx, ds)
	if err != nil {
		return nil, err
	}
	return r.Profile(ctx, datasetID, ds, types)
}

// CorrelateDataset correlates the numeric columns of ds.
func (r *Runner) CorrelateDataset(ctx context.Context, ds *dataset.Dataset) (*correlation.Result, error) {
	types, err := r.Classify(ctx, ds)
	if err != nil {
		return nil, err
	}
	return r.Correlations(ctx, NumericColumns(ds, types))
}

// ChartDataset recommends charts for ds.
func (r *Runner) ChartDataset(ctx context.Context, datasetID string, ds *dataset.Dataset) (*charts.Result, error) {
	types, err := r.Classify(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer r.timed("charts")()
	return charts.New(r.log).Recommend(datasetID, ds, types), nil
}

// AnomalyColumn runs the ensemble on the named column. Too few values is an
// error here, not a skip.
func (r *Runner) AnomalyColumn(ds *dataset.Dataset, name string) (*anomaly.Result, error) {
	col, err := ds.Column(name)
	if err != nil {
		return nil, err
	}
	defer r.timed("anomalies")()
	return anomaly.New(r.cfg.Anomaly, r.log).Detect(col)
}

// TrendColumn runs trend detection on the named column.
func (r *Runner) TrendColumn(ds *dataset.Dataset, name string) (*trend.Result, error) {
	col, err := ds.Column(name)
	if err != nil {
		return nil, err
	}
	defer r.timed("trends")()
	return trend.New(r.log).Detect(col)
}

// Run executes every stage in order.
func (r *Runner) Run(ctx context.Context, datasetID string, ds *dataset.Dataset) (*Result, error) {
	defer r.timed("run")()
	res := &Result{
		RunID:       uuid.NewString(),
		DatasetID:   datasetID,
		RowCount:    ds.Rows,
		ColumnCount: len(ds.Columns),
	}
	log := r.log.With(zap.String("run_id", res.RunID), zap.String("dataset_id", datasetID))
	log.Info("pipeline started", zap.Int("rows", ds.Rows), zap.Int("columns", len(ds.Columns)))

	types, err := r.Classify(ctx, ds)
	if err != nil {
		return nil, err
	}
	res.Types = classify.Summarize(datasetID, types)

	if res.Profile, err = r.Profile(ctx, datasetID, ds, types); err != nil {
		return nil, err
	}

	nums := NumericColumns(ds, types)
	var skipA, skipT []Skip
	if res.Anomalies, skipA, err = r.Anomalies(ctx, nums); err != nil {
		return nil, err
	}
	if res.Trends, skipT, err = r.Trends(ctx, nums); err != nil {
		return nil, err
	}
	res.Skipped = append(skipA, skipT...)

	if res.Correlations, err = r.Correlations(ctx, nums); err != nil {
		return nil, err
	}

	res.Insights, err = r.Insights(datasetID, insight.Findings{
		Dataset:      ds,
		Types:        types,
		Profile:      res.Profile,
		Anomalies:    res.Anomalies,
		Trends:       res.Trends,
		Correlations: res.Correlations,
	})
	if err != nil {
		return nil, err
	}
	res.Charts = charts.New(r.log).Recommend(datasetID, ds, types)

	log.Info("pipeline finished",
		zap.Int("insights", res.Insights.TotalInsights),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}
