package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

var corrThreshold float64

var correlationsCmd = &cobra.Command{
	Use:   "correlations <file>",
	Short: "Correlate every pair of numeric columns",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc := cfg.Pipeline()
		if cmd.Flags().Changed("threshold") {
			if corrThreshold < 0 || corrThreshold > 1 {
				return fail(cmd, echoFrom(cmd, args), fmt.Errorf("invalid --threshold: %v (use 0..1)", corrThreshold))
			}
			pc.CorrelationThreshold = corrThreshold
		}
		return runFile(cmd, args, pc, func(r *pipeline.Runner, _ string, ds *dataset.Dataset) (any, error) {
			return r.CorrelateDataset(cmd.Context(), ds)
		})
	},
}

func init() {
	rootCmd.AddCommand(correlationsCmd)
	correlationsCmd.Flags().Float64Var(&corrThreshold, "threshold", 0.7, "minimum |r| to report (overrides config)")
}
