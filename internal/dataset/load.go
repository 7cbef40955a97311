package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pierrec/lz4"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Options controls how a file is turned into a Dataset.
type Options struct {
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t'.
	Delimiter rune
	// MaxRows limits data rows loaded; 0 means unlimited.
	MaxRows int
	// Locale-aware numbers. When both are 0, numbers are parsed strictly.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// XLSX sheet selection. SheetName wins over SheetIndex (1-based).
	SheetName  string
	SheetIndex int
}

// DefaultOptions returns loader defaults.
func DefaultOptions() Options {
	return Options{SheetIndex: 1}
}

var missingTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "NaN": {}, "nan": {}, "null": {}, "NULL": {}, "None": {}, "#N/A": {},
}

// Load reads a CSV/TSV/XLSX/JSON file, optionally lz4-compressed.
func Load(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".lz4") {
		r = lz4.NewReader(f)
		name = strings.TrimSuffix(name, ".lz4")
	}
	base := strings.TrimSuffix(filepath.Base(path), ".lz4")

	var ds *Dataset
	switch {
	case strings.HasSuffix(name, ".xlsx"):
		ds, err = ReadXLSX(r, base, opt)
	case strings.HasSuffix(name, ".json"):
		ds, err = ReadJSON(r, base, opt)
	default:
		if opt.Delimiter == 0 && strings.HasSuffix(name, ".tsv") {
			opt.Delimiter = '\t'
		}
		ds, err = ReadCSV(r, base, opt)
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Err: err}
	}
	return ds, nil
}

// ReadCSV parses delimited text. Non-UTF-8 input is decoded as Windows-1252.
func ReadCSV(r io.Reader, name string, opt Options) (*Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read: %w", err)}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		dec, derr := charmap.Windows1252.NewDecoder().Bytes(data)
		if derr != nil {
			return nil, &LoadError{Err: fmt.Errorf("decode: %w", derr)}
		}
		data = dec
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &LoadError{Err: errors.New("no columns to parse from file")}
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	header, err := cr.Read()
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read header: %w", err)}
	}
	var rows [][]string
	for {
		if opt.MaxRows > 0 && len(rows) >= opt.MaxRows {
			break
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Err: fmt.Errorf("read row %d: %w", len(rows)+2, err)}
		}
		rows = append(rows, rec)
	}
	return FromRecords(name, header, rows, opt), nil
}

// ReadXLSX reads one worksheet of a workbook.
func ReadXLSX(r io.Reader, name string, opt Options) (*Dataset, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("open xlsx: %w", err)}
	}
	defer wb.Close()
	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Err: errors.New("workbook has no sheets")}
	}
	sheet := ""
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, &LoadError{Err: fmt.Errorf("sheet %q not found", opt.SheetName)}
		}
	} else {
		idx := opt.SheetIndex
		if idx <= 0 {
			idx = 1
		}
		if idx > len(sheets) {
			return nil, &LoadError{Err: fmt.Errorf("sheet index %d out of range (workbook has %d)", idx, len(sheets))}
		}
		sheet = sheets[idx-1]
	}
	all, err := wb.GetRows(sheet)
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("read sheet %s: %w", sheet, err)}
	}
	if len(all) == 0 {
		return nil, &LoadError{Err: fmt.Errorf("sheet %s is empty", sheet)}
	}
	rows := all[1:]
	if opt.MaxRows > 0 && len(rows) > opt.MaxRows {
		rows = rows[:opt.MaxRows]
	}
	return FromRecords(name, all[0], rows, opt), nil
}

// ReadJSON reads an array of flat objects. Column order follows first appearance.
func ReadJSON(r io.Reader, name string, opt Options) (*Dataset, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := expectDelim(dec, '['); err != nil {
		return nil, &LoadError{Err: err}
	}
	var header []string
	index := map[string]int{}
	var records []map[string]string
	for dec.More() {
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		if err := expectDelim(dec, '{'); err != nil {
			return nil, &LoadError{Err: fmt.Errorf("record %d: %w", len(records)+1, err)}
		}
		rec := map[string]string{}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, &LoadError{Err: err}
			}
			key, _ := tok.(string)
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, &LoadError{Err: fmt.Errorf("record %d field %s: %w", len(records)+1, key, err)}
			}
			if _, ok := index[key]; !ok {
				index[key] = len(header)
				header = append(header, key)
			}
			rec[key] = jsonCell(v)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, &LoadError{Err: err}
		}
		records = append(records, rec)
	}
	if len(header) == 0 {
		return nil, &LoadError{Err: errors.New("no columns to parse from file")}
	}
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for k, v := range rec {
			row[index[k]] = v
		}
		rows[i] = row
	}
	return FromRecords(name, header, rows, opt), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func jsonCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// FromRecords builds a Dataset from a header and string rows, inferring dtypes.
func FromRecords(name string, header []string, rows [][]string, opt Options) *Dataset {
	names := dedupeHeader(header)
	ds := &Dataset{Name: name, Rows: len(rows)}
	for j, n := range names {
		raw := make([]string, len(rows))
		for i, rec := range rows {
			if j < len(rec) {
				raw[i] = strings.TrimSpace(rec[j])
			}
		}
		ds.Columns = append(ds.Columns, buildColumn(n, raw, opt))
	}
	return ds
}

func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	used := map[string]bool{}
	next := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			next[h]++
			name = fmt.Sprintf("%s.%d", h, next[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func buildColumn(name string, raw []string, opt Options) *Column {
	allInt, allNum, allBool, present := true, true, true, false
	nums := make([]float64, len(raw))
	for i, s := range raw {
		if isMissingToken(s) {
			continue
		}
		present = true
		if allNum {
			f, ok := parseNumber(s, opt)
			if !ok {
				allNum, allInt = false, false
			} else {
				nums[i] = f
				if allInt && !isIntegral(s, f, opt) {
					allInt = false
				}
			}
		}
		if allBool {
			l := strings.ToLower(s)
			if l != "true" && l != "false" {
				allBool = false
			}
		}
	}
	col := &Column{Name: name, Values: make([]Value, len(raw))}
	switch {
	case !present:
		col.Dtype = DtypeObject
	case allNum && allInt:
		col.Dtype = DtypeInt
	case allNum:
		col.Dtype = DtypeFloat
	case allBool:
		col.Dtype = DtypeBool
	default:
		col.Dtype = DtypeObject
	}
	for i, s := range raw {
		if isMissingToken(s) {
			col.Values[i] = Value{Kind: Missing}
			continue
		}
		switch col.Dtype {
		case DtypeInt, DtypeFloat:
			col.Values[i] = Value{Kind: Number, Num: nums[i], Raw: s}
		case DtypeBool:
			col.Values[i] = Value{Kind: Bool, Bool: strings.EqualFold(s, "true"), Raw: s}
		default:
			col.Values[i] = Value{Kind: Text, Raw: s}
		}
	}
	return col
}

func isMissingToken(s string) bool {
	_, ok := missingTokens[s]
	return ok
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func parseNumber(s string, opt Options) (float64, bool) {
	var f float64
	if opt.DecimalSeparator == 0 && opt.ThousandsSeparator == 0 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = v
	} else {
		v, ok := parseLocaleNumber(s, opt)
		if !ok {
			return 0, false
		}
		f = v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func isIntegral(s string, f float64, opt Options) bool {
	if opt.DecimalSeparator == 0 && opt.ThousandsSeparator == 0 {
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	}
	return f == math.Trunc(f) && !strings.ContainsAny(s, "eE")
}

func parseLocaleNumber(s string, opt Options) (float64, bool) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), " ", " ")
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0 && thou != ',':
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
