package classify

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/KaramelBytes/tabsight/internal/dataset"
)

// Input is what every detector sees for one column.
type Input struct {
	Column  *dataset.Column
	Name    string // lower-cased column name
	Sample  []dataset.Value
	Strings []string // Sample rendered as text
}

// Match is a detector verdict.
type Match struct {
	OK         bool
	Confidence float64
	// NameBased is set when the verdict depended on the column name.
	NameBased bool
	Metadata  map[string]any
}

// Detector recognises one column type.
type Detector interface {
	Type() string
	Detect(in *Input) Match
}

// DefaultCascade is the detector order, most specific first. The first match
// wins, so position encodes precedence.
func DefaultCascade() []Detector {
	return []Detector{
		funcDetector{"id", detectID},
		regexDetector{typ: "email", re: emailRe, threshold: 0.8},
		regexDetector{typ: "url", re: urlRe, threshold: 0.8},
		funcDetector{"phone", detectPhone},
		regexDetector{typ: "ip_address", re: ipRe, threshold: 0.8},
		funcDetector{"currency", detectCurrency},
		funcDetector{"percentage", detectPercentage},
		dateDetector{withTime: false},
		dateDetector{withTime: true},
		regexDetector{typ: "time", re: timeRe, threshold: 0.8},
		funcDetector{"boolean", detectBoolean},
		regexDetector{typ: "uuid", re: uuidRe, threshold: 0.8},
		funcDetector{"zip_code", detectZip},
		regexDetector{typ: "credit_card", re: cardRe, threshold: 0.8, clean: cardCleaner,
			extra: map[string]any{"warning": "sensitive_data"}},
		rangeDetector{typ: "latitude", hints: []string{"lat"}, lo: -90, hi: 90},
		rangeDetector{typ: "longitude", hints: []string{"lon", "lng", "long"}, lo: -180, hi: 180},
		funcDetector{"numeric", detectNumeric},
		funcDetector{"categorical", detectCategorical},
		funcDetector{"text", func(*Input) Match { return Match{OK: true, Confidence: 0.5, Metadata: map[string]any{}} }},
	}
}

var (
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	urlRe     = regexp.MustCompile(`^https?://[^\s]+$`)
	ipRe      = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
	timeRe    = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?(\s?[AaPp][Mm])?$`)
	uuidRe    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	cardRe    = regexp.MustCompile(`^\d{13,19}$`)
	zipRe     = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	usPhoneRe = regexp.MustCompile(`^\+?1?\d{10}$`)
	intlPhone = regexp.MustCompile(`^\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}$`)
	symbolRe  = regexp.MustCompile(`[$£€¥]`)

	cardCleaner  = strings.NewReplacer(" ", "", "-", "")
	phoneCleaner = strings.NewReplacer(" ", "", "\t", "", "-", "", "(", "", ")", "")
	moneyCleaner = strings.NewReplacer("$", "", "£", "", "€", "", "¥", "", ",", "")
)

type funcDetector struct {
	typ string
	fn  func(*Input) Match
}

func (d funcDetector) Type() string           { return d.typ }
func (d funcDetector) Detect(in *Input) Match { return d.fn(in) }

// regexDetector matches when more than threshold of the sample matches re.
type regexDetector struct {
	typ       string
	re        *regexp.Regexp
	threshold float64
	clean     *strings.Replacer
	extra     map[string]any
}

func (d regexDetector) Type() string { return d.typ }

func (d regexDetector) Detect(in *Input) Match {
	ratio := matchRatio(in.Strings, d.re, d.clean)
	if ratio <= d.threshold {
		return Match{}
	}
	md := map[string]any{"confidence": ratio, "pattern": d.typ}
	for k, v := range d.extra {
		md[k] = v
	}
	return Match{OK: true, Confidence: ratio, Metadata: md}
}

func matchRatio(vals []string, re *regexp.Regexp, clean *strings.Replacer) float64 {
	if len(vals) == 0 {
		return 0
	}
	n := 0
	for _, v := range vals {
		if clean != nil {
			v = clean.Replace(v)
		}
		if re.MatchString(v) {
			n++
		}
	}
	return float64(n) / float64(len(vals))
}

func ratioWhere(vals []string, pred func(string) bool) float64 {
	if len(vals) == 0 {
		return 0
	}
	n := 0
	for _, v := range vals {
		if pred(v) {
			n++
		}
	}
	return float64(n) / float64(len(vals))
}

func nameHas(name string, keys ...string) bool {
	for _, k := range keys {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

func detectID(in *Input) Match {
	col := in.Column
	if nameHas(in.Name, "id", "key", "index", "code") {
		present := len(col.Values) - col.NullCount()
		if present > 0 && float64(col.UniqueCount())/float64(present) > 0.95 {
			return Match{OK: true, Confidence: 0.95, NameBased: true,
				Metadata: map[string]any{"confidence": 0.95, "reason": "High uniqueness + ID-like name"}}
		}
	}
	if col.IsNumeric() {
		vals, _ := col.Floats()
		sort.Float64s(vals)
		if len(vals) > 1 {
			steps := 0
			for i := 1; i < len(vals); i++ {
				if vals[i]-vals[i-1] == 1 {
					steps++
				}
			}
			if float64(steps)/float64(len(vals)-1) > 0.8 {
				return Match{OK: true, Confidence: 0.9,
					Metadata: map[string]any{"confidence": 0.9, "reason": "Sequential numeric values"}}
			}
		}
	}
	return Match{}
}

func detectPhone(in *Input) Match {
	if in.Column.Dtype != dataset.DtypeObject {
		return Match{}
	}
	for _, re := range []*regexp.Regexp{usPhoneRe, intlPhone} {
		ratio := ratioWhere(in.Strings, func(s string) bool {
			if _, _, isDate := parseDate(s); isDate {
				return false
			}
			s = phoneCleaner.Replace(s)
			// E.164 caps a number at 15 digits; longer runs are card-like.
			return digitCount(s) <= 15 && re.MatchString(s)
		})
		if ratio > 0.7 {
			return Match{OK: true, Confidence: ratio, Metadata: map[string]any{"confidence": ratio, "pattern": "phone"}}
		}
	}
	return Match{}
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func detectCurrency(in *Input) Match {
	byName := nameHas(in.Name, "price", "cost", "amount", "revenue", "salary", "fee", "total", "sum")
	hasSymbol := ratioWhere(in.Strings, symbolRe.MatchString) > 0.3
	numeric := ratioWhere(in.Strings, func(s string) bool {
		s = strings.Replace(moneyCleaner.Replace(s), ".", "", 1)
		if s == "" {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}) > 0.8
	if (byName || hasSymbol) && numeric {
		return Match{OK: true, Confidence: 0.85, NameBased: byName && !hasSymbol,
			Metadata: map[string]any{"confidence": 0.85, "has_symbol": hasSymbol}}
	}
	return Match{}
}

func detectPercentage(in *Input) Match {
	if !nameHas(in.Name, "percent", "rate", "ratio") {
		return Match{}
	}
	hasSymbol := ratioWhere(in.Strings, func(s string) bool { return strings.Contains(s, "%") }) > 0.3
	parsed, inRange := 0, 0
	for _, s := range in.Strings {
		f, ok := parseFloat(strings.ReplaceAll(s, "%", ""))
		if !ok {
			continue
		}
		parsed++
		if f >= 0 && f <= 100 {
			inRange++
		}
	}
	rangeOK := parsed > 0 && float64(inRange)/float64(parsed) > 0.8
	if hasSymbol || rangeOK {
		return Match{OK: true, Confidence: 0.9, NameBased: true,
			Metadata: map[string]any{"confidence": 0.9, "has_symbol": hasSymbol}}
	}
	return Match{}
}

// dateDetector handles both date and datetime; withTime selects which.
type dateDetector struct{ withTime bool }

func (d dateDetector) Type() string {
	if d.withTime {
		return "datetime"
	}
	return "date"
}

func (d dateDetector) Detect(in *Input) Match {
	if len(in.Strings) == 0 {
		return Match{}
	}
	valid, hasTime, zoned := 0, false, false
	for _, s := range in.Strings {
		t, z, ok := parseDate(s)
		if !ok {
			continue
		}
		valid++
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
			hasTime = true
		}
		zoned = zoned || z
	}
	ratio := float64(valid) / float64(len(in.Strings))
	if ratio <= 0.8 || hasTime != d.withTime {
		return Match{}
	}
	md := map[string]any{"confidence": ratio, "has_time": hasTime}
	if d.withTime {
		md["has_timezone"] = zoned
	} else {
		head := in.Strings
		if len(head) > 10 {
			head = head[:10]
		}
		md["format"] = inferDateFormat(head)
	}
	return Match{OK: true, Confidence: ratio, Metadata: md}
}

var booleanPairs = [][2]string{
	{"true", "false"}, {"yes", "no"}, {"y", "n"}, {"1", "0"},
	{"t", "f"}, {"on", "off"}, {"active", "inactive"}, {"enabled", "disabled"},
}

func detectBoolean(in *Input) Match {
	if len(in.Strings) == 0 {
		return Match{}
	}
	seen := map[string]struct{}{}
	for _, s := range in.Strings {
		seen[strings.ToLower(s)] = struct{}{}
	}
	for _, p := range booleanPairs {
		ok := true
		for v := range seen {
			if v != p[0] && v != p[1] {
				ok = false
				break
			}
		}
		if ok {
			return Match{OK: true, Confidence: 0.95,
				Metadata: map[string]any{"confidence": 0.95, "values": []string{p[0], p[1]}}}
		}
	}
	return Match{}
}

func detectZip(in *Input) Match {
	if !nameHas(in.Name, "zip", "postal", "postcode") {
		return Match{}
	}
	ratio := matchRatio(in.Strings, zipRe, nil)
	if ratio > 0.7 {
		return Match{OK: true, Confidence: ratio, NameBased: true,
			Metadata: map[string]any{"confidence": ratio, "pattern": "us_zip"}}
	}
	return Match{}
}

// rangeDetector recognises coordinates by name hint and value range.
type rangeDetector struct {
	typ    string
	hints  []string
	lo, hi float64
}

func (d rangeDetector) Type() string { return d.typ }

func (d rangeDetector) Detect(in *Input) Match {
	if !nameHas(in.Name, d.hints...) || !in.Column.IsNumeric() {
		return Match{}
	}
	total, ok := 0, 0
	for _, v := range in.Sample {
		if v.Kind != dataset.Number {
			continue
		}
		total++
		if v.Num >= d.lo && v.Num <= d.hi {
			ok++
		}
	}
	if total == 0 || float64(ok)/float64(total) <= 0.95 {
		return Match{}
	}
	return Match{OK: true, Confidence: 0.9, NameBased: true,
		Metadata: map[string]any{"confidence": 0.9, "range": []float64{d.lo, d.hi}}}
}

func detectNumeric(in *Input) Match {
	if !in.Column.IsNumeric() {
		return Match{}
	}
	if uniqueRatio(in.Sample) > 0.5 {
		return Match{OK: true, Confidence: 0.95, Metadata: map[string]any{"confidence": 0.95, "subtype": "continuous"}}
	}
	return Match{OK: true, Confidence: 0.9, Metadata: map[string]any{"confidence": 0.9, "subtype": "discrete"}}
}

func detectCategorical(in *Input) Match {
	ratio := uniqueRatio(in.Sample)
	if ratio >= 0.5 {
		return Match{}
	}
	card := distinct(in.Sample)
	subtype := "high_cardinality"
	switch {
	case card <= 2:
		subtype = "binary"
	case card <= 10:
		subtype = "low_cardinality"
	case card <= 50:
		subtype = "medium_cardinality"
	}
	conf := 1 - ratio
	return Match{OK: true, Confidence: conf,
		Metadata: map[string]any{"confidence": conf, "subtype": subtype, "cardinality": card}}
}

func distinct(vals []dataset.Value) int {
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		seen[v.Key()] = struct{}{}
	}
	return len(seen)
}

func uniqueRatio(vals []dataset.Value) float64 {
	if len(vals) == 0 {
		return math.Inf(1)
	}
	return float64(distinct(vals)) / float64(len(vals))
}
