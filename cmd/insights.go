package cmd

import (
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

var (
	insRanking string
	insTopK    int
	insSummary bool
	insUserID  string
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Run every analysis and rank the findings as insights",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc := cfg.Pipeline()
		f := cmd.Flags()
		if f.Changed("ranking") {
			pc.Insight.Ranking = insRanking
		}
		if f.Changed("top-k") {
			pc.Insight.TopK = insTopK
		}
		pc.Insight.Summary = insSummary
		return runFile(cmd, args, pc, func(r *pipeline.Runner, id string, ds *dataset.Dataset) (any, error) {
			res, err := r.Run(cmd.Context(), id, ds)
			if err != nil {
				return nil, err
			}
			res.Insights.UserID = insUserID
			return res.Insights, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.Flags().StringVar(&insRanking, "ranking", "confidence", "ranking policy: confidence|priority (overrides config)")
	insightsCmd.Flags().IntVar(&insTopK, "top-k", 0, "number of insights to return, 0 = policy default (overrides config)")
	insightsCmd.Flags().BoolVar(&insSummary, "summary", false, "add an executive summary, recommendations and questions")
	insightsCmd.Flags().StringVar(&insUserID, "user-id", "", "user identifier echoed in the result")
}
