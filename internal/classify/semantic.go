package classify

import (
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"

	"github.com/KaramelBytes/tabsight/internal/numeric"
)

// Semantic is the business-meaning label of a column.
type Semantic struct {
	Type       string  `json:"semantic_type"`
	Score      int     `json:"score"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

type semanticCategory struct {
	name     string
	patterns []*regexp.Regexp
	keywords []string
	hints    []string
}

// SemanticScorer weighs column names and sample values against a fixed
// category table. Categories earlier in the table win ties.
type SemanticScorer struct {
	categories []semanticCategory
}

func category(name string, patterns, keywords, hints []string) semanticCategory {
	c := semanticCategory{name: name, keywords: keywords, hints: hints}
	for _, p := range patterns {
		c.patterns = append(c.patterns, regexp.MustCompile("^"+p))
	}
	return c
}

// NewSemanticScorer returns the scorer with the built-in category table.
func NewSemanticScorer() *SemanticScorer {
	return &SemanticScorer{categories: []semanticCategory{
		category("identifier",
			[]string{`.*id$`, `.*_id$`, `id.*`, `.*key$`, `.*_key$`},
			[]string{"id", "key", "identifier", "uuid", "guid"},
			[]string{"integer", "string"}),
		category("personal_name",
			[]string{`.*name$`, `first.*name`, `last.*name`, `full.*name`},
			[]string{"name", "firstname", "lastname", "fullname", "username"},
			[]string{"string"}),
		category("email",
			[]string{`.*email$`, `.*mail$`},
			[]string{"email", "mail", "e-mail"},
			[]string{"string"}),
		category("phone",
			[]string{`.*phone$`, `.*tel$`, `.*mobile$`},
			[]string{"phone", "telephone", "mobile", "tel"},
			[]string{"string"}),
		category("address",
			[]string{`.*address$`, `.*street$`, `.*city$`, `.*state$`, `.*zip$`, `.*postal$`},
			[]string{"address", "street", "city", "state", "zip", "postal", "country"},
			[]string{"string"}),
		category("date_time",
			[]string{`.*date$`, `.*time$`, `created.*`, `updated.*`, `.*_at$`, `.*_on$`},
			[]string{"date", "time", "created", "updated", "timestamp"},
			[]string{"date", "string"}),
		category("currency",
			[]string{`.*price$`, `.*cost$`, `.*amount$`, `.*salary$`, `.*revenue$`, `.*profit$`},
			[]string{"price", "cost", "amount", "salary", "revenue", "profit", "money", "currency", "dollar"},
			[]string{"float", "integer"}),
		category("percentage",
			[]string{`.*rate$`, `.*ratio$`, `.*percent$`, `.*pct$`},
			[]string{"rate", "ratio", "percent", "percentage", "pct"},
			[]string{"float"}),
		category("category",
			[]string{`.*type$`, `.*category$`, `.*class$`, `.*group$`, `.*status$`},
			[]string{"type", "category", "class", "group", "status", "classification"},
			[]string{"string"}),
		category("quantity",
			[]string{`.*count$`, `.*number$`, `.*qty$`, `.*quantity$`, `.*size$`},
			[]string{"count", "number", "quantity", "qty", "size", "total"},
			[]string{"integer", "float"}),
		category("coordinates",
			[]string{`.*lat$`, `.*lng$`, `.*lon$`, `.*latitude$`, `.*longitude$`},
			[]string{"latitude", "longitude", "lat", "lng", "lon", "coordinates"},
			[]string{"float"}),
		category("url",
			[]string{`.*url$`, `.*link$`, `.*website$`},
			[]string{"url", "link", "website", "uri"},
			[]string{"string"}),
		category("description",
			[]string{`.*desc$`, `.*description$`, `.*comment$`, `.*note$`},
			[]string{"description", "desc", "comment", "note", "remarks"},
			[]string{"string"}),
	}}
}

// normalizeName lower-cases, trims and transliterates a header to ASCII.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(name)))
}

// ScoreName returns the best category for a column name and dtype hint, or
// ("generic", 0) when nothing scores.
func (s *SemanticScorer) ScoreName(name, hint string) (string, int) {
	n := normalizeName(name)
	best, bestScore := "generic", 0
	for _, c := range s.categories {
		score := 0
		for _, h := range c.hints {
			if h == hint {
				score += 2
				break
			}
		}
		for _, p := range c.patterns {
			if p.MatchString(n) {
				score += 3
			}
		}
		for _, k := range c.keywords {
			if strings.Contains(n, k) {
				score += 2
			}
		}
		if score > bestScore {
			best, bestScore = c.name, score
		}
	}
	return best, bestScore
}

var (
	semPhoneRe    = regexp.MustCompile(`^\+?[1-9]?[0-9]{7,15}$`)
	semPhoneStrip = regexp.MustCompile(`[^0-9+]`)
	semURLRe      = regexp.MustCompile(`^https?://`)
	semCurrencyRe = regexp.MustCompile(`^[$£€¥]|[$£€¥]$`)
)

// ScoreValues inspects sample values. A pattern must hold for a majority of
// values to count. It returns ("", 0) when no pattern applies.
func (s *SemanticScorer) ScoreValues(name, hint string, vals []string) (string, int) {
	if len(vals) == 0 {
		return "", 0
	}
	majority := func(pred func(string) bool) bool {
		return ratioWhere(vals, pred) > 0.5
	}
	switch {
	case majority(emailRe.MatchString):
		return "email", 5
	case majority(semURLRe.MatchString):
		return "url", 5
	case majority(ipRe.MatchString):
		return "address", 5
	case hint == "string" && majority(func(v string) bool { return semPhoneRe.MatchString(semPhoneStrip.ReplaceAllString(v, "")) }):
		return "phone", 5
	case majority(semCurrencyRe.MatchString):
		return "currency", 4
	}

	head := vals
	if len(head) > 5 {
		head = head[:5]
	}
	dates := 0
	for _, v := range head {
		if _, _, ok := parseDate(v); ok {
			dates++
		}
	}
	if float64(dates) >= float64(len(head))*0.8 {
		return "date_time", 4
	}

	if hint == "float" || hint == "integer" {
		lower := normalizeName(name)
		var nums []float64
		for _, v := range vals {
			if f, ok := parseFloat(v); ok {
				nums = append(nums, f)
			}
		}
		if len(nums) > 0 {
			within := func(lo, hi float64) bool {
				for _, f := range nums {
					if f < lo || f > hi {
						return false
					}
				}
				return true
			}
			if strings.Contains(lower, "lat") && within(-90, 90) {
				return "coordinates", 4
			}
			if (strings.Contains(lower, "lng") || strings.Contains(lower, "lon")) && within(-180, 180) {
				return "coordinates", 4
			}
		}
	}
	return "", 0
}

// Score combines name and value evidence. The value candidate wins only when
// its score is strictly higher.
func (s *SemanticScorer) Score(name, hint string, vals []string) Semantic {
	nameType, nameScore := s.ScoreName(name, hint)
	valType, valScore := s.ScoreValues(name, hint, vals)
	if valType != "" && valScore > nameScore {
		return Semantic{Type: valType, Score: valScore, Confidence: numeric.Clamp01(float64(valScore) / 10), Method: "value_analysis"}
	}
	return Semantic{Type: nameType, Score: nameScore, Confidence: numeric.Clamp01(float64(nameScore) / 10), Method: "name_analysis"}
}
