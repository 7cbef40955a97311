package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

var anoZThreshold float64

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies <file> <column>",
	Short: "Flag anomalous values in a numeric column (z-score, IQR, isolation forest)",
	Args:  exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc := cfg.Pipeline()
		if cmd.Flags().Changed("zscore-threshold") && anoZThreshold > 0 {
			pc.Anomaly.ZThreshold = anoZThreshold
		}
		return runFile(cmd, args, pc, func(r *pipeline.Runner, _ string, ds *dataset.Dataset) (any, error) {
			return r.AnomalyColumn(ds, args[1])
		})
	},
}

func init() {
	rootCmd.AddCommand(anomaliesCmd)
	anomaliesCmd.Flags().Float64Var(&anoZThreshold, "zscore-threshold", 0, "z-score threshold (overrides config)")
}
