package cmd

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/charts"
	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

var chartsHTML bool

var chartsCmd = &cobra.Command{
	Use:   "charts <file>",
	Short: "Recommend charts for the dataset, optionally as an HTML preview",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !chartsHTML {
			return runFile(cmd, args, cfg.Pipeline(), func(r *pipeline.Runner, id string, ds *dataset.Dataset) (any, error) {
				return r.ChartDataset(cmd.Context(), id, ds)
			})
		}
		e := echoFrom(cmd, args)
		ds, err := loadDataset(args[0])
		if err != nil {
			return fail(cmd, e, err)
		}
		res, err := newRunner(cfg.Pipeline()).ChartDataset(cmd.Context(), e.DatasetID, ds)
		if err != nil {
			return fail(cmd, e, err)
		}
		var buf bytes.Buffer
		if err := charts.RenderHTML(&buf, ds, res); err != nil {
			return fail(cmd, e, err)
		}
		if err := write(cmd, buf.Bytes()); err != nil {
			return fail(cmd, e, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chartsCmd)
	chartsCmd.Flags().BoolVar(&chartsHTML, "html", false, "render an ECharts HTML page instead of JSON")
}
