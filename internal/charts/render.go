package charts

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/dataset"
)

// RenderHTML writes an ECharts page with one chart per recommendation.
// KPI cards have no chart and are skipped.
func RenderHTML(w io.Writer, ds *dataset.Dataset, res *Result) error {
	page := components.NewPage()
	page.PageTitle = "tabsight charts"
	if res.DatasetID != "" {
		page.PageTitle = res.DatasetID + " charts"
	}
	for _, r := range res.Recommendations {
		c, err := build(ds, r)
		if err != nil {
			return fmt.Errorf("render %q: %w", r.Title, err)
		}
		if c != nil {
			page.AddCharts(c)
		}
	}
	return page.Render(w)
}

func title(r Recommendation) charts.GlobalOpts {
	return charts.WithTitleOpts(opts.Title{Title: r.Title, Subtitle: r.Reason})
}

func build(ds *dataset.Dataset, r Recommendation) (components.Charter, error) {
	switch r.ChartType {
	case Line, Area:
		labels, sums, err := sumByDate(ds, r.Config.XAxis, r.Config.YAxis)
		if err != nil {
			return nil, err
		}
		data := make([]opts.LineData, len(sums))
		run := 0.0
		for i, v := range sums {
			if r.ChartType == Area {
				run += v
				v = run
			}
			data[i] = opts.LineData{Value: v}
		}
		line := charts.NewLine()
		line.SetGlobalOptions(title(r))
		if r.ChartType == Area {
			line.SetXAxis(labels).AddSeries(r.Config.YAxis, data, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: 0.4}))
		} else {
			line.SetXAxis(labels).AddSeries(r.Config.YAxis, data)
		}
		return line, nil

	case Bar:
		if r.Config.GroupBy != "" {
			return groupedBar(ds, r)
		}
		labels, sums, err := sumBy(ds, r.Config.XAxis, r.Config.YAxis)
		if err != nil {
			return nil, err
		}
		idx := make([]int, len(labels))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return sums[idx[a]] > sums[idx[b]] })
		x := make([]string, len(idx))
		data := make([]opts.BarData, len(idx))
		for i, k := range idx {
			x[i] = labels[k]
			data[i] = opts.BarData{Value: sums[k]}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(title(r))
		bar.SetXAxis(x).AddSeries(r.Config.YAxis, data)
		return bar, nil

	case Pie:
		labels, sums, err := sumBy(ds, r.Config.Category, r.Config.Value)
		if err != nil {
			return nil, err
		}
		data := make([]opts.PieData, len(labels))
		for i := range labels {
			data[i] = opts.PieData{Name: labels[i], Value: sums[i]}
		}
		pie := charts.NewPie()
		pie.SetGlobalOptions(title(r))
		pie.AddSeries(r.Config.Value, data)
		return pie, nil

	case Histogram:
		col, err := ds.Column(r.Config.Column)
		if err != nil {
			return nil, err
		}
		labels, counts := histogram(col, r.Config.Bins)
		data := make([]opts.BarData, len(counts))
		for i, c := range counts {
			data[i] = opts.BarData{Value: c}
		}
		bar := charts.NewBar()
		bar.SetGlobalOptions(title(r))
		bar.SetXAxis(labels).AddSeries(r.Config.Column, data)
		return bar, nil

	case Scatter:
		a, err := ds.Column(r.Config.XAxis)
		if err != nil {
			return nil, err
		}
		b, err := ds.Column(r.Config.YAxis)
		if err != nil {
			return nil, err
		}
		av, aok := a.LooseAligned()
		bv, bok := b.LooseAligned()
		var data []opts.ScatterData
		for i := range av {
			if i < len(bv) && aok[i] && bok[i] {
				data = append(data, opts.ScatterData{Value: []interface{}{av[i], bv[i]}})
			}
		}
		sc := charts.NewScatter()
		sc.SetGlobalOptions(title(r),
			charts.WithXAxisOpts(opts.XAxis{Name: a.Name, Type: "value"}),
			charts.WithYAxisOpts(opts.YAxis{Name: b.Name, Type: "value"}))
		sc.AddSeries(b.Name, data)
		return sc, nil
	}
	return nil, nil
}

func groupedBar(ds *dataset.Dataset, r Recommendation) (components.Charter, error) {
	cat, err := ds.Column(r.Config.XAxis)
	if err != nil {
		return nil, err
	}
	grp, err := ds.Column(r.Config.GroupBy)
	if err != nil {
		return nil, err
	}
	num, err := ds.Column(r.Config.YAxis)
	if err != nil {
		return nil, err
	}
	vals, ok := num.LooseAligned()
	var xs, gs []string
	xi, gi := map[string]int{}, map[string]int{}
	sums := map[[2]int]float64{}
	for i := range vals {
		if !ok[i] || cat.Values[i].IsMissing() || grp.Values[i].IsMissing() {
			continue
		}
		x, g := cat.Values[i].String(), grp.Values[i].String()
		if _, seen := xi[x]; !seen {
			xi[x] = len(xs)
			xs = append(xs, x)
		}
		if _, seen := gi[g]; !seen {
			gi[g] = len(gs)
			gs = append(gs, g)
		}
		sums[[2]int{xi[x], gi[g]}] += vals[i]
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(title(r), charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}))
	bar.SetXAxis(xs)
	for j, g := range gs {
		data := make([]opts.BarData, len(xs))
		for i := range xs {
			data[i] = opts.BarData{Value: sums[[2]int{i, j}]}
		}
		bar.AddSeries(g, data)
	}
	return bar, nil
}

// sumBy totals num per value of cat in order of first appearance.
func sumBy(ds *dataset.Dataset, catName, numName string) ([]string, []float64, error) {
	cat, err := ds.Column(catName)
	if err != nil {
		return nil, nil, err
	}
	num, err := ds.Column(numName)
	if err != nil {
		return nil, nil, err
	}
	vals, ok := num.LooseAligned()
	var labels []string
	var sums []float64
	index := map[string]int{}
	for i := range vals {
		if !ok[i] || cat.Values[i].IsMissing() {
			continue
		}
		k := cat.Values[i].String()
		j, seen := index[k]
		if !seen {
			j = len(labels)
			index[k] = j
			labels = append(labels, k)
			sums = append(sums, 0)
		}
		sums[j] += vals[i]
	}
	return labels, sums, nil
}

// sumByDate totals num per calendar day of the date column, oldest first.
func sumByDate(ds *dataset.Dataset, dateName, numName string) ([]string, []float64, error) {
	dc, err := ds.Column(dateName)
	if err != nil {
		return nil, nil, err
	}
	num, err := ds.Column(numName)
	if err != nil {
		return nil, nil, err
	}
	vals, ok := num.LooseAligned()
	byDay := map[time.Time]float64{}
	for i := range vals {
		if !ok[i] || dc.Values[i].IsMissing() {
			continue
		}
		t, parsed := classify.ParseDate(dc.Values[i].String())
		if !parsed {
			continue
		}
		byDay[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)] += vals[i]
	}
	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	labels := make([]string, len(days))
	sums := make([]float64, len(days))
	for i, d := range days {
		labels[i] = d.Format("2006-01-02")
		sums[i] = byDay[d]
	}
	return labels, sums, nil
}

// histogram splits [min, max] into equal-width bins; the last bin is closed.
func histogram(col *dataset.Column, bins int) ([]string, []int) {
	vals, _ := col.LooseFloats()
	if len(vals) == 0 || bins <= 0 {
		return []string{}, []int{}
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		return []string{strconv.FormatFloat(lo, 'g', 6, 64)}, []int{len(vals)}
	}
	width := (hi - lo) / float64(bins)
	counts := make([]int, bins)
	for _, v := range vals {
		k := int((v - lo) / width)
		if k >= bins {
			k = bins - 1
		}
		counts[k]++
	}
	labels := make([]string, bins)
	for i := range labels {
		labels[i] = strconv.FormatFloat(lo+width*float64(i), 'g', 4, 64)
	}
	return labels, counts
}
