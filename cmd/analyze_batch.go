package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabsight/internal/pipeline"
	"github.com/KaramelBytes/tabsight/internal/utils"
)

var (
	abOutDir     string
	abFormat     string
	abSampleRows int
	abSummary    bool
	abQuiet      bool
)

// batchFailure is one file that could not be analyzed.
type batchFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// batchResult is printed on stdout once every file was attempted.
type batchResult struct {
	Error     string         `json:"error,omitempty"`
	Processed int            `json:"processed"`
	Outputs   []string       `json:"outputs"`
	Failed    []batchFailure `json:"failed"`
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX/JSON files with progress, one report per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := expandGlobs(args)
		if len(files) == 0 {
			return fail(cmd, echoFrom(cmd, nil), fmt.Errorf("no input files matched"))
		}
		if err := checkFormat(abFormat); err != nil {
			return fail(cmd, echoFrom(cmd, nil), err)
		}
		if err := os.MkdirAll(abOutDir, 0o755); err != nil {
			return fail(cmd, echoFrom(cmd, nil), fmt.Errorf("create output dir: %w", err))
		}

		pc := cfg.Pipeline()
		pc.Insight.Summary = abSummary
		runner := newRunner(pc)
		res := batchResult{Outputs: []string{}, Failed: []batchFailure{}}
		total := len(files)
		for i, path := range files {
			if !abQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			out, err := analyzeOne(cmd, runner, path)
			if err != nil {
				logger.Warn("batch file failed", zap.String("file", path), zap.Error(err))
				res.Failed = append(res.Failed, batchFailure{File: path, Error: err.Error()})
				continue
			}
			res.Processed++
			res.Outputs = append(res.Outputs, out)
		}

		if len(res.Failed) > 0 {
			res.Error = fmt.Sprintf("%d of %d files failed", len(res.Failed), total)
		}
		b, err := utils.PrettyJSON(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		if res.Error != "" {
			return &reportedError{fmt.Errorf("%s", res.Error)}
		}
		return nil
	},
}

// expandGlobs resolves patterns, keeps literal paths that exist and drops
// duplicates. The result is sorted.
func expandGlobs(args []string) []string {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files
}

// analyzeOne runs the pipeline on path and writes the report into the output
// directory without overwriting earlier reports of the same name.
func analyzeOne(cmd *cobra.Command, runner *pipeline.Runner, path string) (string, error) {
	ds, err := loadDataset(path)
	if err != nil {
		return "", err
	}
	res, err := runner.Run(cmd.Context(), datasetID(path), ds)
	if err != nil {
		return "", err
	}
	data, err := render(res, ds, abFormat, abSampleRows)
	if err != nil {
		return "", err
	}
	out := utils.UniquePath(abOutDir, utils.Stem(path), formatExt(abFormat))
	if err := utils.SafeWriteFile(out, data); err != nil {
		return "", err
	}
	if !abQuiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", out)
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "tabsight_results", "directory for per-file reports")
	analyzeBatchCmd.Flags().StringVar(&abFormat, "format", "json", "report format: json|markdown|html")
	analyzeBatchCmd.Flags().IntVar(&abSampleRows, "sample-rows", 5, "number of sample rows in Markdown/HTML reports (0 disables)")
	analyzeBatchCmd.Flags().BoolVar(&abSummary, "summary", true, "include the executive summary")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}
