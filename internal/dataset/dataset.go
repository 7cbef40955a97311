package dataset

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Kind is the storage class of a single cell.
type Kind int

const (
	Missing Kind = iota
	Number
	Text
	Bool
)

// Column dtypes reported as original_dtype.
const (
	DtypeInt    = "int64"
	DtypeFloat  = "float64"
	DtypeBool   = "bool"
	DtypeObject = "object"
)

// Value is one cell. Raw keeps the text as it appeared in the source.
type Value struct {
	Kind Kind
	Num  float64
	Bool bool
	Raw  string
}

// IsMissing reports whether the cell is empty.
func (v Value) IsMissing() bool { return v.Kind == Missing }

// Key returns a canonical representation used for uniqueness and grouping.
func (v Value) Key() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(v.Bool)
	case Missing:
		return ""
	default:
		return v.Raw
	}
}

// String renders the cell for sample output.
func (v Value) String() string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case Bool:
		if v.Bool {
			return "True"
		}
		return "False"
	default:
		return v.Raw
	}
}

// Column is a named, typed sequence of cells.
type Column struct {
	Name   string
	Dtype  string
	Values []Value
}

// Dataset is an ordered set of equal-length columns. It is not mutated once loaded.
type Dataset struct {
	Name    string
	Rows    int
	Columns []*Column
}

// Column looks up a column by name.
func (d *Dataset) Column(name string) (*Column, error) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, &ColumnNotFoundError{Column: name}
}

// Names returns the column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		out[i] = c.Name
	}
	return out
}

// IsNumeric reports whether the column dtype is int64 or float64.
func (c *Column) IsNumeric() bool {
	return c.Dtype == DtypeInt || c.Dtype == DtypeFloat
}

// Len is the number of rows.
func (c *Column) Len() int { return len(c.Values) }

// NullCount counts missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v.IsMissing() {
			n++
		}
	}
	return n
}

// NonNull returns the present cells in row order.
func (c *Column) NonNull() []Value {
	out := make([]Value, 0, len(c.Values))
	for _, v := range c.Values {
		if !v.IsMissing() {
			out = append(out, v)
		}
	}
	return out
}

// UniqueCount counts distinct non-missing values.
func (c *Column) UniqueCount() int {
	seen := make(map[string]struct{}, len(c.Values))
	for _, v := range c.Values {
		if v.IsMissing() {
			continue
		}
		seen[v.Key()] = struct{}{}
	}
	return len(seen)
}

// Floats returns numeric cells with their row positions.
func (c *Column) Floats() (vals []float64, rows []int) {
	for i, v := range c.Values {
		if v.Kind == Number {
			vals = append(vals, v.Num)
			rows = append(rows, i)
		}
	}
	return vals, rows
}

// LooseFloats parses every present cell after stripping currency symbols,
// percent signs and thousands commas. Cells that still fail are skipped.
func (c *Column) LooseFloats() (vals []float64, rows []int) {
	for i, v := range c.Values {
		switch v.Kind {
		case Number:
			vals = append(vals, v.Num)
			rows = append(rows, i)
		case Text:
			if f, ok := ParseLoose(v.Raw); ok {
				vals = append(vals, f)
				rows = append(rows, i)
			}
		}
	}
	return vals, rows
}

// Aligned returns the numeric value for every row, NaN-free, with ok=false for
// rows that are missing or non-numeric.
func (c *Column) Aligned() (vals []float64, ok []bool) {
	vals = make([]float64, len(c.Values))
	ok = make([]bool, len(c.Values))
	for i, v := range c.Values {
		if v.Kind == Number {
			vals[i] = v.Num
			ok[i] = true
		}
	}
	return vals, ok
}

// LooseAligned is Aligned with currency and percent decorations stripped
// from text cells before parsing.
func (c *Column) LooseAligned() (vals []float64, ok []bool) {
	vals = make([]float64, len(c.Values))
	ok = make([]bool, len(c.Values))
	for i, v := range c.Values {
		switch v.Kind {
		case Number:
			vals[i], ok[i] = v.Num, true
		case Text:
			vals[i], ok[i] = ParseLoose(v.Raw)
		}
	}
	return vals, ok
}

var looseReplacer = strings.NewReplacer("$", "", "£", "", "€", "", "¥", "", ",", "", "%", "")

// ParseLoose parses a number after removing currency and percent decorations.
func ParseLoose(s string) (float64, bool) {
	s = strings.TrimSpace(looseReplacer.Replace(s))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Sample draws up to n present cells with a permutation seeded by seed.
// The same column, n and seed always yield the same sample in the same order.
func (c *Column) Sample(n int, seed int64) []Value {
	present := c.NonNull()
	if n <= 0 || n > len(present) {
		n = len(present)
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	perm := rng.Perm(len(present))
	out := make([]Value, n)
	for i := 0; i < n; i++ {
		out[i] = present[perm[i]]
	}
	return out
}

// RowKey joins every cell of a row; used for duplicate-row detection.
func (d *Dataset) RowKey(row int) string {
	var b strings.Builder
	for i, c := range d.Columns {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		v := c.Values[row]
		if v.IsMissing() {
			b.WriteString("\x00")
			continue
		}
		b.WriteString(v.Key())
	}
	return b.String()
}
