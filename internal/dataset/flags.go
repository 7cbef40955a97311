package dataset

import (
	"fmt"
	"strings"
)

// ParseDelimiter maps a user-facing delimiter name to a rune. Empty means sniff.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case "\t", "\\t", "tab":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	case "|", "pipe":
		return '|', nil
	}
	return 0, fmt.Errorf("unsupported delimiter: %s (use ','|';'|'tab'|'|')", s)
}

// ParseDecimal maps a decimal separator name to a rune. Empty means strict parsing.
func ParseDecimal(s string) (rune, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ",", "comma":
		return ',', nil
	case ".", "dot":
		return '.', nil
	case "":
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported decimal separator: %s (use '.'|'comma')", s)
}

// ParseThousands maps a thousands separator name to a rune.
func ParseThousands(s string) (rune, error) {
	switch strings.ToLower(s) {
	case ",", "comma":
		return ',', nil
	case ".", "dot":
		return '.', nil
	case " ", "space":
		return ' ', nil
	case "'", "apostrophe":
		return '\'', nil
	case "":
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported thousands separator: %s (use ','|'.'|'space')", s)
}

// ParseOptions builds loader options from flag-style strings.
func ParseOptions(delimiter, decimal, thousands string) (Options, error) {
	opt := DefaultOptions()
	var err error
	if opt.Delimiter, err = ParseDelimiter(delimiter); err != nil {
		return opt, err
	}
	if opt.DecimalSeparator, err = ParseDecimal(decimal); err != nil {
		return opt, err
	}
	if opt.ThousandsSeparator, err = ParseThousands(thousands); err != nil {
		return opt, err
	}
	if opt.DecimalSeparator != 0 && opt.DecimalSeparator == opt.ThousandsSeparator {
		return opt, fmt.Errorf("decimal and thousands separators must differ")
	}
	return opt, nil
}
