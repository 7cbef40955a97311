package classify

import (
	"strings"
	"time"
)

type dateLayout struct {
	layout string
	format string // strftime spelling reported in metadata
	zoned  bool
}

// Layouts tried in order when deciding whether a cell is a date. Bare digit
// runs such as 20240101 are deliberately absent so integer columns never parse.
var dateLayouts = []dateLayout{
	{time.RFC3339Nano, "%Y-%m-%dT%H:%M:%S%z", true},
	{time.RFC3339, "%Y-%m-%dT%H:%M:%S%z", true},
	{"2006-01-02T15:04:05", "%Y-%m-%dT%H:%M:%S", false},
	{"2006-01-02", "%Y-%m-%d", false},
	{"2006/01/02", "%Y/%m/%d", false},
	{"01/02/2006", "%m/%d/%Y", false},
	{"02/01/2006", "%d/%m/%Y", false},
	{"1/2/2006", "%m/%d/%Y", false},
	{"02-01-2006", "%d-%m-%Y", false},
	{"01-02-2006", "%m-%d-%Y", false},
	{"Jan 2, 2006", "%b %d, %Y", false},
	{"January 2, 2006", "%B %d, %Y", false},
	{"2 Jan 2006", "%d %b %Y", false},
	{"2006-01-02 15:04", "%Y-%m-%d %H:%M", false},
	{"2006-01-02 15:04:05", "%Y-%m-%d %H:%M:%S", false},
	{"2006-01-02 15:04:05.999999999", "%Y-%m-%d %H:%M:%S.%f", false},
	{"2006-01-02 15:04:05Z07:00", "%Y-%m-%d %H:%M:%S%z", true},
	{"1/2/2006 15:04", "%m/%d/%Y %H:%M", false},
	{"1/2/2006 15:04:05", "%m/%d/%Y %H:%M:%S", false},
}

// formatCandidates mirrors the date-only formats reported by format inference.
var formatCandidates = []dateLayout{
	{"2006-01-02", "%Y-%m-%d", false},
	{"01/02/2006", "%m/%d/%Y", false},
	{"02/01/2006", "%d/%m/%Y", false},
	{"2006/01/02", "%Y/%m/%d", false},
	{"02-01-2006", "%d-%m-%Y", false},
	{"01-02-2006", "%m-%d-%Y", false},
	{"Jan 02, 2006", "%b %d, %Y", false},
	{"02 Jan 2006", "%d %b %Y", false},
	{"20060102", "%Y%m%d", false},
}

// parseDate returns the parsed time and whether the matching layout carried a zone.
func parseDate(s string) (t time.Time, zoned bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.zoned, true
		}
	}
	return time.Time{}, false, false
}

// inferDateFormat returns the first candidate format that parses more than 80%
// of vals, or "mixed".
func inferDateFormat(vals []string) string {
	if len(vals) == 0 {
		return "mixed"
	}
	for _, f := range formatCandidates {
		n := 0
		for _, v := range vals {
			if _, err := time.Parse(f.layout, strings.TrimSpace(v)); err == nil {
				n++
			}
		}
		if float64(n)/float64(len(vals)) > 0.8 {
			return f.format
		}
	}
	return "mixed"
}

func isoformat(t time.Time) string {
	if t.Location() == time.UTC && t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format(time.RFC3339Nano)
}
