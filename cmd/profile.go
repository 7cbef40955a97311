package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

var profileCmd = &cobra.Command{
	Use:   "profile <file>",
	Short: "Profile every column and score data quality",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFile(cmd, args, cfg.Pipeline(), func(r *pipeline.Runner, id string, ds *dataset.Dataset) (any, error) {
			return r.ProfileDataset(cmd.Context(), id, ds)
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
}
