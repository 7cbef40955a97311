package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

var trendCmd = &cobra.Command{
	Use:   "trend <file> <column>",
	Short: "Fit a trend, look for seasonality and changepoints in a numeric column",
	Args:  exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFile(cmd, args, cfg.Pipeline(), func(r *pipeline.Runner, _ string, ds *dataset.Dataset) (any, error) {
			return r.TrendColumn(ds, args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(trendCmd)
}
