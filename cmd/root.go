package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/tabsight/internal/config"
	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/logging"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
	"github.com/KaramelBytes/tabsight/internal/utils"
)

var (
	// Global flags
	cfgFile  string
	debug    bool
	logLevel string

	// Dataset flags shared by every analysis command
	dsID         string
	dsDelimiter  string
	dsDecimal    string
	dsThousands  string
	dsSheetName  string
	dsSheetIndex int

	// Run overrides (override config if set)
	flagSeed    int64
	flagWorkers int
	flagMaxRows int
	outputPath  string

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tabsight",
	Short: "tabsight: types, profiles, anomalies, trends and insights for tabular data",
	Long: `tabsight classifies the columns of a CSV/TSV/XLSX/JSON dataset, profiles them,
detects anomalies, trends and correlations, and ranks the findings as insights.
Every analysis command prints one JSON document on stdout.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(cmd); err != nil {
			return fail(cmd, echoFrom(cmd, args), err)
		}
		return nil
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		var re *reportedError
		if !errors.As(err, &re) {
			fmt.Fprintln(os.Stderr, "✗ Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.tabsight/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging (console encoder)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug|info|warn|error (overrides config)")
	pf.StringVar(&dsID, "dataset-id", "", "dataset identifier (default is the file name)")
	pf.StringVar(&dsDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	pf.StringVar(&dsDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (strict parsing if omitted)")
	pf.StringVar(&dsThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	pf.StringVar(&dsSheetName, "sheet-name", "", "XLSX: sheet name to analyze")
	pf.IntVar(&dsSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	pf.Int64Var(&flagSeed, "seed", 0, "random seed for sampling and isolation forest (overrides config)")
	pf.IntVar(&flagWorkers, "workers", 0, "parallel workers, 0 = GOMAXPROCS (overrides config)")
	pf.IntVar(&flagMaxRows, "max-rows", 0, "maximum rows to load, 0 = unlimited (overrides config)")
	pf.StringVarP(&outputPath, "output", "o", "", "write the result to this file instead of stdout")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fail(cmd, echoFrom(cmd, cmd.Flags().Args()), err)
	})
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command) error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// config commands must stay usable to repair a broken file
		if p := cmd.Parent(); p == nil || p.Name() != "config" {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: failed to load config, using defaults: %v\n", err)
		c = cfgpkg.Default()
	}
	f := cmd.Flags()
	if f.Changed("seed") {
		c.Seed = flagSeed
		c.NarrativeSeed = flagSeed
	}
	if f.Changed("workers") {
		c.Workers = flagWorkers
	}
	if f.Changed("max-rows") {
		c.MaxRows = flagMaxRows
	}
	if f.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if debug {
		c.LogLevel = "debug"
	}
	if err := c.Validate(); err != nil {
		return err
	}
	l, err := logging.New(c.LogLevel, debug)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

func newRunner(pc pipeline.Config) *pipeline.Runner {
	return pipeline.New(pc, logger)
}

func datasetID(path string) string {
	if dsID != "" {
		return dsID
	}
	return utils.DatasetID(path)
}

func loadDataset(path string) (*dataset.Dataset, error) {
	opt, err := dataset.ParseOptions(dsDelimiter, dsDecimal, dsThousands)
	if err != nil {
		return nil, err
	}
	opt.MaxRows = cfg.MaxRows
	opt.SheetName = dsSheetName
	if dsSheetIndex > 0 {
		opt.SheetIndex = dsSheetIndex
	}
	ds, err := dataset.Load(path, opt)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded",
		zap.String("path", path),
		zap.Int("rows", ds.Rows),
		zap.Int("columns", len(ds.Columns)))
	return ds, nil
}
