// Package report renders a pipeline result as a Markdown or HTML document.
package report

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

// Options controls optional report sections.
type Options struct {
	// SampleRows is the number of leading rows shown; 0 hides the section.
	SampleRows int
	// MaxCellWidth truncates long sample cells.
	MaxCellWidth int
}

// DefaultOptions shows five sample rows.
func DefaultOptions() Options { return Options{SampleRows: 5, MaxCellWidth: 80} }

// Markdown renders res. ds may be nil, in which case no sample rows are shown.
func Markdown(res *pipeline.Result, ds *dataset.Dataset, opt Options) string {
	var b strings.Builder
	section(&b, "DATASET SUMMARY")
	if res.DatasetID != "" {
		fmt.Fprintf(&b, "- Dataset: %s\n", res.DatasetID)
	}
	fmt.Fprintf(&b, "- Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "- Rows: %d\n", res.RowCount)
	fmt.Fprintf(&b, "- Columns: %d\n", res.ColumnCount)
	if res.Profile != nil {
		q := res.Profile.DataQuality
		fmt.Fprintf(&b, "- Quality score: %.1f (completeness %.1f%%, uniqueness %.1f%%, %d duplicate rows)\n",
			q.OverallScore, q.Completeness, q.Uniqueness, q.DuplicateRows)
	}

	if s := res.Insights; s != nil && s.Summary != nil {
		section(&b, "EXECUTIVE SUMMARY")
		b.WriteString(s.Summary.ExecutiveSummary + "\n")
		bullets(&b, "Key findings", s.Summary.KeyFindings)
		bullets(&b, "Recommendations", s.Summary.Recommendations)
		bullets(&b, "Questions to explore", s.Summary.ConversationStarters)
	}

	if res.Types != nil {
		section(&b, "SCHEMA")
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Column", "Type", "Confidence", "Method", "Semantic", "Missing %", "Unique"})
		for _, ct := range res.Types.Ordered() {
			t.AppendRow(table.Row{
				safeName(ct.Name), ct.DetectedType, fmt.Sprintf("%.2f", ct.Confidence), ct.DetectionMethod,
				ct.Semantic.Type, fmt.Sprintf("%.1f", ct.NullPercentage), ct.UniqueCount,
			})
		}
		b.WriteString(t.RenderMarkdown() + "\n")
	}

	if res.Profile != nil {
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Column", "Mean", "Median", "Std", "Min", "Max", "Skew", "Outliers"})
		rows := 0
		for _, p := range res.Profile.Ordered() {
			s := p.Numeric
			if s == nil {
				continue
			}
			rows++
			t.AppendRow(table.Row{
				safeName(p.Name), num(s.Mean), num(s.Median), num(s.Std), num(s.Min), num(s.Max),
				fmt.Sprintf("%.2f", s.Skewness), s.OutlierCount,
			})
		}
		if rows > 0 {
			section(&b, "NUMERIC PROFILE")
			b.WriteString(t.RenderMarkdown() + "\n")
		}
		var errs []string
		for _, p := range res.Profile.Ordered() {
			if p.Error != "" {
				errs = append(errs, fmt.Sprintf("%s: %s", safeName(p.Name), p.Error))
			}
		}
		if len(errs) > 0 {
			bullets(&b, "Profile errors", errs)
		}
	}

	if s := res.Insights; s != nil && len(s.Insights) > 0 {
		section(&b, "INSIGHTS")
		t := table.NewWriter()
		t.AppendHeader(table.Row{"#", "Priority", "Confidence", "Title", "Description"})
		for _, in := range s.Insights {
			t.AppendRow(table.Row{in.ID, in.Priority, fmt.Sprintf("%.2f", in.Confidence), safeVal(in.Title), safeVal(in.Description)})
		}
		b.WriteString(t.RenderMarkdown() + "\n")
		if s.TotalInsights > len(s.Insights) {
			fmt.Fprintf(&b, "\nShowing %d of %d insights.\n", len(s.Insights), s.TotalInsights)
		}
	}

	if c := res.Correlations; c != nil && len(c.Correlations) > 0 {
		section(&b, "CORRELATIONS")
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Pair", "Pearson", "Spearman", "MI", "Strength", "p"})
		for _, r := range c.Correlations {
			t.AppendRow(table.Row{
				safeName(r.Column1) + " ~ " + safeName(r.Column2),
				fmt.Sprintf("%.3f", r.PearsonCorrelation), fmt.Sprintf("%.3f", r.SpearmanCorrelation),
				fmt.Sprintf("%.3f", r.MutualInformation), r.Strength, fmt.Sprintf("%.3g", r.PearsonPValue),
			})
		}
		b.WriteString(t.RenderMarkdown() + "\n")
	}

	if len(res.Trends) > 0 {
		section(&b, "TRENDS")
		t := table.NewWriter()
		t.AppendHeader(table.Row{"Column", "Direction", "Slope", "R²", "Change %", "Significant", "Seasonality", "Changepoints"})
		for _, tr := range res.Trends {
			season := "-"
			if tr.Seasonality != nil && tr.Seasonality.Detected {
				season = fmt.Sprintf("period %d", tr.Seasonality.Period)
			}
			t.AppendRow(table.Row{
				safeName(tr.Column), tr.Direction, num(tr.Slope), fmt.Sprintf("%.3f", tr.RSquared),
				fmt.Sprintf("%.1f", tr.PercentageChange), tr.IsSignificant, season, len(tr.Changepoints),
			})
		}
		b.WriteString(t.RenderMarkdown() + "\n")
	}

	if len(res.Anomalies) > 0 {
		section(&b, "ANOMALIES")
		for _, a := range res.Anomalies {
			fmt.Fprintf(&b, "- %s: %d of %d values flagged (%.1f%%)", safeName(a.Column), a.TotalAnomalies, a.TotalDataPoints, a.AnomalyPercentage)
			if len(a.Anomalies) > 0 {
				top := a.Anomalies[0]
				fmt.Fprintf(&b, "; strongest at row %d (value %s, %s)", top.Index, num(top.Value), strings.Join(top.MethodsDetected, ", "))
			}
			b.WriteString("\n")
		}
	}

	if c := res.Charts; c != nil && len(c.Recommendations) > 0 {
		section(&b, "SUGGESTED CHARTS")
		for _, r := range c.Recommendations {
			fmt.Fprintf(&b, "- %s (%s): %s\n", safeVal(r.Title), r.ChartType, r.Reason)
		}
	}

	if ds != nil && opt.SampleRows > 0 && ds.Rows > 0 {
		section(&b, "HEAD AND SAMPLE ROWS")
		t := table.NewWriter()
		header := table.Row{}
		for _, n := range ds.Names() {
			header = append(header, safeName(n))
		}
		t.AppendHeader(header)
		for i := 0; i < ds.Rows && i < opt.SampleRows; i++ {
			row := table.Row{}
			for _, c := range ds.Columns {
				row = append(row, clip(safeVal(c.Values[i].String()), opt.MaxCellWidth))
			}
			t.AppendRow(row)
		}
		b.WriteString(t.RenderMarkdown() + "\n")
	}

	if len(res.Skipped) > 0 {
		section(&b, "NOTES")
		for _, s := range res.Skipped {
			fmt.Fprintf(&b, "- %s skipped for %s: %s\n", safeName(s.Column), s.Stage, s.Reason)
		}
	}
	return b.String()
}

// HTML renders the Markdown report as a standalone HTML page.
func HTML(res *pipeline.Result, ds *dataset.Dataset, opt Options) []byte {
	md := Markdown(res, ds, opt)
	p := parser.NewWithExtensions(parser.CommonExtensions)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Title: "tabsight report: " + res.DatasetID,
		Flags: mdhtml.CommonFlags | mdhtml.CompletePage,
	})
	return markdown.ToHTML([]byte(md), p, r)
}

func section(b *strings.Builder, name string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "### [%s]\n\n", name)
}

func bullets(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n\n", label)
	for _, it := range items {
		b.WriteString("- " + safeVal(it) + "\n")
	}
}

func num(v float64) string { return fmt.Sprintf("%.4g", v) }

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return safeVal(s)
}

func safeVal(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}

func clip(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
