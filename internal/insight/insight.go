// Package insight turns profiler, anomaly, trend and correlation findings
// into ranked natural-language insight records.
package insight

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/KaramelBytes/tabsight/internal/anomaly"
	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/correlation"
	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/numeric"
	"github.com/KaramelBytes/tabsight/internal/profile"
	"github.com/KaramelBytes/tabsight/internal/trend"
)

// Insight types.
const (
	TypeMissingData         = "missing_data"
	TypeOutlier             = "outlier"
	TypeAnomaly             = "anomaly"
	TypeCorrelation         = "correlation"
	TypeDistribution        = "distribution"
	TypeUniqueIdentifier    = "unique_identifier"
	TypeCategorical         = "categorical"
	TypeTrend               = "trend"
	TypeSeasonality         = "seasonality"
	TypeTopContributor      = "top_contributor"
	TypeDuplicateIdentifier = "duplicate_identifier"
	TypeZeroVariance        = "zero_variance"
	TypeDataQuality         = "data_quality"
)

// Categories.
const (
	CategoryQuality      = "quality"
	CategoryAnomaly      = "anomaly"
	CategoryRelationship = "relationship"
	CategoryPattern      = "pattern"
	CategoryStructure    = "structure"
	CategoryStatistical  = "statistical"
	CategoryBusiness     = "business"
)

// Priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	categoricalMaxUnique = 20
	valueDistributionCap = 10
	trendMinR2           = 0.5
	trendMinSlope        = 0.01
	contributorMinShare  = 30
	qualityMinScore      = 90
)

// Insight is one finding. Confidence and Importance are always in [0,1];
// Priority is derived from Importance.
type Insight struct {
	ID             int            `json:"id,omitempty"`
	Type           string         `json:"type"`
	Category       string         `json:"category"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Confidence     float64        `json:"confidence"`
	Importance     float64        `json:"importance"`
	Priority       string         `json:"priority"`
	ColumnName     string         `json:"column_name,omitempty"`
	RelatedColumns []string       `json:"related_columns,omitempty"`
	Metadata       map[string]any `json:"metadata"`
	CreatedAt      string         `json:"created_at,omitempty"`
}

// PriorityOf bands an importance score.
func PriorityOf(importance float64) string {
	switch {
	case importance >= 0.7:
		return PriorityHigh
	case importance >= 0.4:
		return PriorityMedium
	}
	return PriorityLow
}

// PriorityWeight maps a priority to its sort weight.
func PriorityWeight(p string) int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Findings is everything the generators read. Any part may be nil.
type Findings struct {
	Dataset      *dataset.Dataset
	Types        []*classify.ColumnType
	Profile      *profile.Result
	Anomalies    []*anomaly.Result
	Trends       []*trend.Result
	Correlations *correlation.Result
}

func newInsight(typ, category, title, desc string, confidence, importance float64) Insight {
	imp := numeric.Clamp01(importance)
	return Insight{
		Type:        typ,
		Category:    category,
		Title:       title,
		Description: desc,
		Confidence:  numeric.Clamp01(confidence),
		Importance:  imp,
		Priority:    PriorityOf(imp),
		Metadata:    map[string]any{},
	}
}

// Generate runs every generator in discovery order.
func Generate(f Findings) []Insight {
	var out []Insight
	for _, gen := range []func(Findings) []Insight{
		missingData,
		outliers,
		anomalies,
		correlations,
		distributions,
		structure,
		trends,
		seasonality,
		topContributors,
		duplicateIdentifiers,
		zeroVariance,
		dataQuality,
	} {
		out = append(out, gen(f)...)
	}
	return out
}

func profiles(f Findings) []*profile.ColumnProfile {
	if f.Profile == nil {
		return nil
	}
	return f.Profile.Ordered()
}

func rowCount(f Findings) int {
	switch {
	case f.Profile != nil:
		return f.Profile.RowCount
	case f.Dataset != nil:
		return f.Dataset.Rows
	}
	return 0
}

func missingData(f Findings) []Insight {
	var out []Insight
	rows := rowCount(f)
	for _, p := range profiles(f) {
		if p.NullCount == 0 {
			continue
		}
		in := newInsight(TypeMissingData, CategoryQuality,
			fmt.Sprintf("Missing Values in %s", p.Name),
			fmt.Sprintf("Column '%s' has %s missing values (%.1f%% of data)", p.Name, thousands(p.NullCount), p.NullPercentage),
			1, p.NullPercentage/10)
		in.ColumnName = p.Name
		in.Metadata["null_count"] = p.NullCount
		in.Metadata["null_percentage"] = numeric.Round(p.NullPercentage, 2)
		in.Metadata["total_rows"] = rows
		out = append(out, in)
	}
	return out
}

func outliers(f Findings) []Insight {
	var out []Insight
	rows := rowCount(f)
	for _, p := range profiles(f) {
		s := p.Numeric
		if s == nil || s.OutlierCount == 0 || rows == 0 {
			continue
		}
		pct := float64(s.OutlierCount) / float64(rows) * 100
		in := newInsight(TypeOutlier, CategoryAnomaly,
			fmt.Sprintf("Outliers Detected in %s", p.Name),
			fmt.Sprintf("Found %d outliers (%.1f%%) in '%s' outside range [%.2f, %.2f]", s.OutlierCount, pct, p.Name, s.LowerBound, s.UpperBound),
			0.8, pct/5)
		in.ColumnName = p.Name
		in.Metadata["outlier_count"] = s.OutlierCount
		in.Metadata["outlier_percentage"] = numeric.Round(pct, 2)
		in.Metadata["lower_bound"] = s.LowerBound
		in.Metadata["upper_bound"] = s.UpperBound
		in.Metadata["mean"] = s.Mean
		in.Metadata["median"] = s.Median
		out = append(out, in)
	}
	return out
}

func anomalies(f Findings) []Insight {
	var out []Insight
	for _, a := range f.Anomalies {
		if a == nil || a.TotalAnomalies == 0 {
			continue
		}
		// the forest alone flags about a tenth of any column; weight by agreement
		conf := a.MeanConfidence()
		in := newInsight(TypeAnomaly, CategoryQuality,
			fmt.Sprintf("Anomalies detected in %s", a.Column),
			fmt.Sprintf("Found %d unusual values in %s (%.1f%% of %d points)", a.TotalAnomalies, a.Column, a.AnomalyPercentage, a.TotalDataPoints),
			conf, numeric.Clamp01(a.AnomalyPercentage/10)*conf)
		in.ColumnName = a.Column
		sample := make([]float64, 0, 5)
		for i, r := range a.Anomalies {
			if i == 5 {
				break
			}
			sample = append(sample, r.Value)
		}
		in.Metadata["count"] = a.TotalAnomalies
		in.Metadata["percentage"] = numeric.Round(a.AnomalyPercentage, 2)
		in.Metadata["sample_values"] = sample
		out = append(out, in)
	}
	return out
}

func correlations(f Findings) []Insight {
	if f.Correlations == nil {
		return nil
	}
	var out []Insight
	for _, c := range f.Correlations.Correlations {
		r := math.Abs(c.PearsonCorrelation)
		in := newInsight(TypeCorrelation, CategoryRelationship,
			fmt.Sprintf("Strong %s Correlation", capitalize(c.CorrelationType)),
			fmt.Sprintf("'%s' and '%s' show a %s correlation of %.2f", c.Column1, c.Column2, c.CorrelationType, c.PearsonCorrelation),
			r, r)
		in.RelatedColumns = []string{c.Column1, c.Column2}
		in.Metadata["correlation_value"] = c.PearsonCorrelation
		in.Metadata["spearman_correlation"] = c.SpearmanCorrelation
		in.Metadata["mutual_information"] = c.MutualInformation
		in.Metadata["correlation_type"] = c.CorrelationType
		in.Metadata["strength"] = c.Strength
		out = append(out, in)
	}
	return out
}

func distributions(f Findings) []Insight {
	var out []Insight
	for _, p := range profiles(f) {
		s := p.Numeric
		if s == nil || math.Abs(s.Skewness) <= 1 {
			continue
		}
		skew := "right-skewed"
		if s.Skewness < 0 {
			skew = "left-skewed"
		}
		in := newInsight(TypeDistribution, CategoryPattern,
			fmt.Sprintf("%s is %s", p.Name, capitalize(skew)),
			fmt.Sprintf("Column '%s' shows a %s distribution (skewness: %.2f)", p.Name, skew, s.Skewness),
			math.Abs(s.Skewness)/3, math.Abs(s.Skewness)/5)
		in.ColumnName = p.Name
		in.Metadata["skewness"] = s.Skewness
		in.Metadata["mean"] = s.Mean
		in.Metadata["median"] = s.Median
		in.Metadata["std"] = s.Std
		out = append(out, in)
	}
	return out
}

func structure(f Findings) []Insight {
	var out []Insight
	rows := rowCount(f)
	for _, p := range profiles(f) {
		switch {
		case p.UniqueCount == rows && rows > 1:
			in := newInsight(TypeUniqueIdentifier, CategoryStructure,
				fmt.Sprintf("%s is a Unique Identifier", p.Name),
				fmt.Sprintf("Column '%s' has unique values for all rows - likely an ID column", p.Name),
				1, 0.3)
			in.ColumnName = p.Name
			in.Metadata["unique_count"] = p.UniqueCount
			in.Metadata["total_count"] = rows
			out = append(out, in)
		case p.UniqueCount > 1 && p.UniqueCount < categoricalMaxUnique:
			in := newInsight(TypeCategorical, CategoryStructure,
				fmt.Sprintf("%s is Categorical", p.Name),
				fmt.Sprintf("Column '%s' has %d unique values - might be categorical", p.Name, p.UniqueCount),
				0.7, 0.4)
			in.ColumnName = p.Name
			in.Metadata["unique_count"] = p.UniqueCount
			if f.Dataset != nil {
				if col, err := f.Dataset.Column(p.Name); err == nil {
					dist := map[string]int{}
					for _, v := range classify.TopValues(col, valueDistributionCap) {
						dist[v.Value] = v.Count
					}
					in.Metadata["value_distribution"] = dist
				}
			}
			out = append(out, in)
		}
	}
	return out
}

func trends(f Findings) []Insight {
	var out []Insight
	for _, t := range f.Trends {
		if t == nil || t.Direction == trend.Stable || t.RSquared <= trendMinR2 || math.Abs(t.Slope) <= trendMinSlope {
			continue
		}
		in := newInsight(TypeTrend, CategoryStatistical,
			fmt.Sprintf("%s is %s", t.Column, t.Direction),
			fmt.Sprintf("%s shows a %s trend with %.1f%% change over the dataset", t.Column, t.Direction, math.Abs(t.PercentageChange)),
			t.RSquared, math.Abs(t.PercentageChange)/100)
		in.ColumnName = t.Column
		in.Metadata["slope"] = t.Slope
		in.Metadata["direction"] = t.Direction
		in.Metadata["r_squared"] = t.RSquared
		in.Metadata["percentage_change"] = t.PercentageChange
		in.Metadata["is_significant"] = t.IsSignificant
		in.Metadata["prediction_next_3"] = t.PredictionNext3
		out = append(out, in)
	}
	return out
}

func seasonality(f Findings) []Insight {
	var out []Insight
	for _, t := range f.Trends {
		if t == nil || t.Seasonality == nil || !t.Seasonality.Detected {
			continue
		}
		s := t.Seasonality
		in := newInsight(TypeSeasonality, CategoryPattern,
			fmt.Sprintf("%s repeats every %d rows", t.Column, s.Period),
			fmt.Sprintf("%s has a periodic component with period %d carrying %.1f%% of the detrended signal", t.Column, s.Period, s.Strength*100),
			2*s.Strength, 0.5)
		in.ColumnName = t.Column
		in.Metadata["period"] = s.Period
		in.Metadata["strength"] = s.Strength
		out = append(out, in)
	}
	return out
}

func topContributors(f Findings) []Insight {
	if f.Profile == nil {
		return nil
	}
	var out []Insight
	for _, c := range f.Profile.Contributors {
		if c.Percentage <= contributorMinShare {
			continue
		}
		share := c.Percentage / 100
		in := newInsight(TypeTopContributor, CategoryBusiness,
			fmt.Sprintf("%s is the top contributor", c.TopCategory),
			fmt.Sprintf("%s accounts for %.1f%% of total %s", c.TopCategory, c.Percentage, c.ValueColumn),
			share, share)
		in.RelatedColumns = []string{c.CategoryColumn, c.ValueColumn}
		in.Metadata["category_column"] = c.CategoryColumn
		in.Metadata["value_column"] = c.ValueColumn
		in.Metadata["top_category"] = c.TopCategory
		in.Metadata["value"] = c.Value
		in.Metadata["percentage"] = c.Percentage
		out = append(out, in)
	}
	return out
}

func duplicateIdentifiers(f Findings) []Insight {
	var out []Insight
	for _, ct := range f.Types {
		if ct.DetectedType != "id" && ct.DetectedType != "uuid" {
			continue
		}
		present := rowCount(f) - ct.NullCount
		dups := present - ct.UniqueCount
		if dups <= 0 {
			continue
		}
		in := newInsight(TypeDuplicateIdentifier, CategoryQuality,
			fmt.Sprintf("Duplicate identifiers in %s", ct.Name),
			fmt.Sprintf("Identifier column '%s' repeats %d values across %d rows", ct.Name, dups, present),
			0.9, 0.8)
		in.ColumnName = ct.Name
		in.Metadata["duplicate_count"] = dups
		in.Metadata["unique_count"] = ct.UniqueCount
		out = append(out, in)
	}
	return out
}

func zeroVariance(f Findings) []Insight {
	var out []Insight
	for _, p := range profiles(f) {
		s := p.Numeric
		if s == nil || s.Count < 2 || s.Std != 0 {
			continue
		}
		in := newInsight(TypeZeroVariance, CategoryQuality,
			fmt.Sprintf("%s never changes", p.Name),
			fmt.Sprintf("Column '%s' holds the constant value %g in every populated row", p.Name, s.Mean),
			1, 0.6)
		in.ColumnName = p.Name
		in.Metadata["value"] = s.Mean
		in.Metadata["count"] = s.Count
		out = append(out, in)
	}
	return out
}

func dataQuality(f Findings) []Insight {
	if f.Profile == nil || f.Profile.RowCount == 0 {
		return nil
	}
	q := f.Profile.DataQuality
	if q.OverallScore >= qualityMinScore {
		return nil
	}
	in := newInsight(TypeDataQuality, CategoryQuality,
		"Data quality needs attention",
		fmt.Sprintf("Overall quality score is %.1f (completeness %.1f%%, uniqueness %.1f%%, %d duplicate rows)",
			q.OverallScore, q.Completeness, q.Uniqueness, q.DuplicateRows),
		1, (100-q.OverallScore)/100)
	in.Metadata["overall_score"] = q.OverallScore
	in.Metadata["completeness"] = q.Completeness
	in.Metadata["uniqueness"] = q.Uniqueness
	in.Metadata["duplicate_rows"] = q.DuplicateRows
	return []Insight{in}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var printer = message.NewPrinter(language.English)

// thousands renders n with comma grouping.
func thousands(n int) string { return printer.Sprintf("%d", n) }
