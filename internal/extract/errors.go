package extract

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// ERROR KINDS
// =============================================================================
// All three errors are terminal for an extraction call. Callers match them
// with errors.As, or map them to a stable string with Kind.

// Kind strings returned by Kind.
const (
	KindEmptyTable    = "empty_table"
	KindMissingHeader = "missing_header"
	KindInvalidRow    = "invalid_row"
)

// EmptyTableError is returned when the table has no data rows.
type EmptyTableError struct {
	// Rows is the number of rows the table actually had (0 or 1).
	Rows int
}

func (e *EmptyTableError) Error() string {
	return fmt.Sprintf("the file appears to be empty or missing data (%d row(s), need a header and at least one data row)", e.Rows)
}

// MissingHeaderError is returned when required header labels are absent.
type MissingHeaderError struct {
	// Labels are the missing header labels, in column spec order.
	Labels []string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing required column header(s): %s", strings.Join(quoteAll(e.Labels), ", "))
}

// InvalidRowError is returned for the first data row that lacks a value for
// one or more required columns.
type InvalidRowError struct {
	// Row is the 1-based row number in the table (the header is row 1). It is
	// the source sheet row unless the decoder was told to drop blank rows.
	Row int

	// DataIndex is the 0-based index among data rows.
	DataIndex int

	// Fields are the logical fields that were missing or empty.
	Fields []string
}

func (e *InvalidRowError) Error() string {
	return fmt.Sprintf("invalid data format in row %d: missing value for %s", e.Row, strings.Join(quoteAll(e.Fields), ", "))
}

// Kind maps an extraction error anywhere in err's chain to its kind string.
// It returns "" when err is not an extraction error.
func Kind(err error) string {
	var (
		emptyErr   *EmptyTableError
		headerErr  *MissingHeaderError
		invalidErr *InvalidRowError
	)

	switch {
	case errors.As(err, &emptyErr):
		return KindEmptyTable
	case errors.As(err, &headerErr):
		return KindMissingHeader
	case errors.As(err, &invalidErr):
		return KindInvalidRow
	default:
		return ""
	}
}

func quoteAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%q", v)
	}
	return out
}
