package profile

import (
	"github.com/KaramelBytes/tabsight/internal/classify"
	"github.com/KaramelBytes/tabsight/internal/dataset"
)

// Contributor is the category holding the largest share of a numeric total.
type Contributor struct {
	CategoryColumn string  `json:"category_column"`
	ValueColumn    string  `json:"value_column"`
	TopCategory    string  `json:"top_category"`
	Value          float64 `json:"value"`
	Total          float64 `json:"total"`
	Percentage     float64 `json:"percentage"`
}

// Contributors groups every numeric-family column by every categorical
// column and reports the top group's share. Pairs whose total is not
// positive are skipped.
func Contributors(ds *dataset.Dataset, types []*classify.ColumnType) []Contributor {
	detected := make(map[string]string, len(types))
	for _, ct := range types {
		detected[ct.Name] = ct.DetectedType
	}
	var cats, nums []*dataset.Column
	for _, c := range ds.Columns {
		switch t := detected[c.Name]; {
		case t == "categorical":
			cats = append(cats, c)
		case classify.NumericFamily[t]:
			nums = append(nums, c)
		}
	}
	out := []Contributor{}
	for _, cat := range cats {
		for _, num := range nums {
			if c, ok := topContributor(cat, num); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func topContributor(cat, num *dataset.Column) (Contributor, bool) {
	sums := map[string]float64{}
	label := map[string]string{}
	var order []string
	total := 0.0
	for i, cv := range cat.Values {
		if cv.IsMissing() || i >= len(num.Values) {
			continue
		}
		f, ok := cellFloat(num.Values[i])
		if !ok {
			continue
		}
		k := cv.Key()
		if _, seen := sums[k]; !seen {
			order = append(order, k)
			label[k] = cv.String()
		}
		sums[k] += f
		total += f
	}
	if len(order) == 0 || total <= 0 {
		return Contributor{}, false
	}
	best := order[0]
	for _, k := range order[1:] {
		if sums[k] > sums[best] {
			best = k
		}
	}
	return Contributor{
		CategoryColumn: cat.Name,
		ValueColumn:    num.Name,
		TopCategory:    label[best],
		Value:          sums[best],
		Total:          total,
		Percentage:     sums[best] / total * 100,
	}, true
}

func cellFloat(v dataset.Value) (float64, bool) {
	switch v.Kind {
	case dataset.Number:
		return v.Num, true
	case dataset.Text:
		return dataset.ParseLoose(v.Raw)
	}
	return 0, false
}
