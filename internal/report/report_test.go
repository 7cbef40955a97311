package report

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/tabsight/internal/dataset"
	"github.com/KaramelBytes/tabsight/internal/pipeline"
)

func run(t *testing.T) (*pipeline.Result, *dataset.Dataset) {
	t.Helper()
	var rows [][]string
	for i := 0; i < 24; i++ {
		note := ""
		if i%4 == 0 {
			note = "a|b"
		}
		rows = append(rows, []string{
			fmt.Sprintf("2024-02-%02d", i+1),
			[]string{"red", "blue"}[i%2],
			fmt.Sprint(3*i + 1),
			fmt.Sprint(6*i + 2 + i%3),
			note,
		})
	}
	ds := dataset.FromRecords("paint.csv", []string{"day", "colour", "cans", "price", "note"}, rows, dataset.DefaultOptions())
	cfg := pipeline.DefaultConfig()
	cfg.Insight.Summary = true
	res, err := pipeline.New(cfg, nil).Run(context.Background(), "paint", ds)
	require.NoError(t, err)
	return res, ds
}

func TestMarkdown_Sections(t *testing.T) {
	res, ds := run(t)
	md := Markdown(res, ds, DefaultOptions())

	for _, s := range []string{"[DATASET SUMMARY]", "[EXECUTIVE SUMMARY]", "[SCHEMA]", "[NUMERIC PROFILE]", "[INSIGHTS]", "[CORRELATIONS]", "[TRENDS]", "[SUGGESTED CHARTS]", "[HEAD AND SAMPLE ROWS]"} {
		assert.Contains(t, md, "### "+s)
	}
	assert.Contains(t, md, "- Dataset: paint\n")
	assert.Contains(t, md, "- Rows: 24\n")
	assert.Contains(t, md, "cans ~ price")
	assert.Contains(t, md, "a/b", "pipes inside cells are replaced")
	assert.Less(t, strings.Index(md, "[DATASET SUMMARY]"), strings.Index(md, "[SCHEMA]"))
}

func TestMarkdown_NoSampleRows(t *testing.T) {
	res, ds := run(t)
	md := Markdown(res, ds, Options{})
	assert.NotContains(t, md, "[HEAD AND SAMPLE ROWS]")
	assert.NotContains(t, Markdown(res, nil, DefaultOptions()), "[HEAD AND SAMPLE ROWS]")
}

func TestMarkdown_Notes(t *testing.T) {
	res := &pipeline.Result{
		DatasetID: "tiny",
		Skipped:   []pipeline.Skip{{Stage: "trends", Column: "x", Reason: "not enough data"}},
	}
	md := Markdown(res, nil, DefaultOptions())
	assert.Contains(t, md, "### [NOTES]")
	assert.Contains(t, md, "- x skipped for trends: not enough data\n")
	assert.NotContains(t, md, "[SCHEMA]")
}

func TestHTML(t *testing.T) {
	res, ds := run(t)
	out := string(HTML(res, ds, DefaultOptions()))
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "<title>tabsight report: paint</title>")
	assert.Contains(t, out, "<table>")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "(unnamed)", safeName("  "))
	assert.Equal(t, "a b/c", safeVal("a\nb|c"))
	assert.Equal(t, "abcd...", clip("abcdefghij", 7))
	assert.Equal(t, "abc", clip("abc", 7))
}
