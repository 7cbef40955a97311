package insight

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	maxKeyFindings     = 5
	maxRecommendations = 5
	maxStarters        = 3
)

// Narrative is the plain-language rendering of a ranked insight list.
type Narrative struct {
	ExecutiveSummary     string   `json:"executive_summary"`
	KeyFindings          []string `json:"key_findings"`
	Recommendations      []string `json:"recommendations"`
	ConversationStarters []string `json:"conversation_starters"`
}

var executiveTemplates = []func(dataset string, n, high int, top string) string{
	func(d string, n, high int, top string) string {
		return fmt.Sprintf("%s: %d insights found, %d of them high priority. Top finding: %s.", d, n, high, top)
	},
	func(d string, n, high int, top string) string {
		return fmt.Sprintf("Analysis of %s surfaced %d insights (%d high priority), led by %q.", d, n, high, top)
	},
	func(d string, n, high int, top string) string {
		return fmt.Sprintf("%d insights stand out in %s and %d are high priority. Start with %s.", n, d, high, top)
	},
}

var recommendationTemplates = map[string][]string{
	TypeMissingData: {
		"Decide how to fill or drop the gaps in %s before modelling.",
		"Trace where values in %s go missing upstream.",
	},
	TypeOutlier: {
		"Review the extreme values in %s before computing averages.",
		"Consider a robust statistic such as the median for %s.",
	},
	TypeAnomaly: {
		"Inspect the flagged rows in %s for entry errors.",
		"Confirm whether the unusual values in %s are genuine events.",
	},
	TypeCorrelation: {
		"Check whether %s move together for a causal reason.",
		"Avoid using both %s as independent model inputs.",
	},
	TypeDistribution: {
		"Use a log or rank transform on %s before linear analysis.",
		"Report the median of %s alongside the mean.",
	},
	TypeUniqueIdentifier: {
		"Exclude %s from aggregations; it identifies rows.",
	},
	TypeCategorical: {
		"Break key metrics down by %s.",
		"Encode %s as a category rather than free text.",
	},
	TypeTrend: {
		"Plan for the continued movement in %s.",
		"Plot %s over time to confirm the trend.",
	},
	TypeSeasonality: {
		"Account for the repeating cycle in %s when forecasting.",
	},
	TypeTopContributor: {
		"Assess the concentration risk in %s.",
		"Dig into what drives the leading group in %s.",
	},
	TypeDuplicateIdentifier: {
		"Deduplicate records keyed by %s.",
	},
	TypeZeroVariance: {
		"Drop %s from analysis; it carries no information.",
	},
	TypeDataQuality: {
		"Clean %s before sharing results.",
		"Prioritise completeness and duplicate checks for %s.",
	},
}

var starterTemplates = map[string][]string{
	TypeMissingData:         {"Why is %s incomplete?", "What would change if the gaps in %s were filled?"},
	TypeOutlier:             {"What explains the extreme values in %s?"},
	TypeAnomaly:             {"Which events line up with the anomalies in %s?"},
	TypeCorrelation:         {"Does one of %s drive the other?", "What links %s?"},
	TypeDistribution:        {"Which records pull %s away from its median?"},
	TypeUniqueIdentifier:    {"Can %s be joined to other datasets?"},
	TypeCategorical:         {"How do results differ across %s?"},
	TypeTrend:               {"What is behind the movement in %s?", "Will the trend in %s continue?"},
	TypeSeasonality:         {"What causes the cycle in %s?"},
	TypeTopContributor:      {"What makes the leading group in %s stand out?"},
	TypeDuplicateIdentifier: {"How did duplicate keys enter %s?"},
	TypeZeroVariance:        {"Is %s still collected correctly?"},
	TypeDataQuality:         {"Which fixes would lift the quality of %s most?"},
}

// Narrate renders the narrative for res. Template choice is driven only by
// seed, so equal inputs give equal text.
func Narrate(datasetID string, res *Result, seed int64) *Narrative {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	n := &Narrative{KeyFindings: []string{}, Recommendations: []string{}, ConversationStarters: []string{}}
	if datasetID == "" {
		datasetID = "the dataset"
	}
	if len(res.Insights) == 0 {
		n.ExecutiveSummary = fmt.Sprintf("No notable insights were found in %s.", datasetID)
		return n
	}

	high := 0
	for _, in := range res.Insights {
		if in.Priority == PriorityHigh {
			high++
		}
	}
	tpl := executiveTemplates[rng.IntN(len(executiveTemplates))]
	n.ExecutiveSummary = tpl(datasetID, res.TotalInsights, high, res.Insights[0].Title)

	for i, in := range res.Insights {
		if i == maxKeyFindings {
			break
		}
		n.KeyFindings = append(n.KeyFindings, fmt.Sprintf("[%s] %s: %s", strings.ToUpper(in.Priority), in.Title, in.Description))
	}

	seen := map[string]bool{}
	for _, in := range res.Insights {
		if seen[in.Type] {
			continue
		}
		seen[in.Type] = true
		subj := subject(in, datasetID)
		if opts := recommendationTemplates[in.Type]; len(opts) > 0 && len(n.Recommendations) < maxRecommendations {
			n.Recommendations = append(n.Recommendations, fmt.Sprintf(opts[rng.IntN(len(opts))], subj))
		}
		if opts := starterTemplates[in.Type]; len(opts) > 0 && len(n.ConversationStarters) < maxStarters {
			n.ConversationStarters = append(n.ConversationStarters, fmt.Sprintf(opts[rng.IntN(len(opts))], subj))
		}
	}
	return n
}

func subject(in Insight, datasetID string) string {
	switch {
	case in.ColumnName != "":
		return in.ColumnName
	case len(in.RelatedColumns) > 0:
		return strings.Join(in.RelatedColumns, " and ")
	}
	return datasetID
}
