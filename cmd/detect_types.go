package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

var detectTypesCmd = &cobra.Command{
	Use:   "detect-types <file>",
	Short: "Detect the type and semantic meaning of every column",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFile(cmd, args, cfg.Pipeline(), func(r *pipeline.Runner, id string, ds *dataset.Dataset) (any, error) {
			return r.DetectTypes(cmd.Context(), id, ds)
		})
	},
}

func init() {
	rootCmd.AddCommand(detectTypesCmd)
}
