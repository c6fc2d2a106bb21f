package dataset

import (
	"errors"
	"fmt"
)

// ErrEmptyInput indicates zero bytes or a table without data rows.
var ErrEmptyInput = errors.New("empty input")

// FormatError indicates bytes that cannot be read as a spreadsheet.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid spreadsheet: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid spreadsheet: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }
