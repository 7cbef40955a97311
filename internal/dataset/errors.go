package dataset

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched by every InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// LoadError indicates the dataset could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("error loading data: %v", e.Err)
	}
	return fmt.Sprintf("error loading data from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ColumnNotFoundError indicates a requested column is absent.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column '%s' not found", e.Column)
}

// InsufficientDataError indicates an analysis needs more points than the column has.
type InsufficientDataError struct {
	Analysis string
	Need     int
	Have     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough data points for %s: need at least %d, have %d", e.Analysis, e.Need, e.Have)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }
