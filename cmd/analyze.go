package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
	"github.com/KaramelBytes/tabsight/internal/report"
	"github.com/KaramelBytes/tabsight/internal/utils"
)

var (
	anaFormat     string
	anaSampleRows int
	anaSummary    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Run the full pipeline and print a JSON, Markdown or HTML report",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := echoFrom(cmd, args)
		if err := checkFormat(anaFormat); err != nil {
			return fail(cmd, e, err)
		}
		ds, err := loadDataset(args[0])
		if err != nil {
			return fail(cmd, e, err)
		}
		pc := cfg.Pipeline()
		pc.Insight.Summary = anaSummary
		res, err := newRunner(pc).Run(cmd.Context(), e.DatasetID, ds)
		if err != nil {
			return fail(cmd, e, err)
		}
		out, err := render(res, ds, anaFormat, anaSampleRows)
		if err != nil {
			return fail(cmd, e, err)
		}
		if err := write(cmd, out); err != nil {
			return fail(cmd, e, err)
		}
		return nil
	},
}

func checkFormat(format string) error {
	switch format {
	case "json", "markdown", "html":
		return nil
	}
	return fmt.Errorf("unsupported --format: %s (use json|markdown|html)", format)
}

// formatExt maps an output format to a file extension.
func formatExt(format string) string {
	switch format {
	case "markdown":
		return ".md"
	case "html":
		return ".html"
	}
	return ".json"
}

func render(res *pipeline.Result, ds *dataset.Dataset, format string, sampleRows int) ([]byte, error) {
	opt := report.DefaultOptions()
	opt.SampleRows = sampleRows
	switch format {
	case "markdown":
		return []byte(report.Markdown(res, ds, opt)), nil
	case "html":
		return report.HTML(res, ds, opt), nil
	}
	b, err := utils.PrettyJSON(res)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&anaFormat, "format", "json", "output format: json|markdown|html")
	analyzeCmd.Flags().IntVar(&anaSampleRows, "sample-rows", 5, "number of sample rows in Markdown/HTML reports (0 disables)")
	analyzeCmd.Flags().BoolVar(&anaSummary, "summary", true, "include the executive summary")
}
