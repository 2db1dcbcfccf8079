// =============================================================================
// rowimport - Header Mapped Row Extractor
// =============================================================================
//
// This package turns decoded tabular data into fixed-shape records. The first
// row of the table is the header; every required column is located in it by
// its exact label, and each following row is projected into a Record keyed by
// logical field name.
//
// EXTRACTION RULES:
//   1. A table with fewer than 2 rows fails with EmptyTableError.
//   2. Every required header label must be present in row 0, otherwise the
//      call fails with MissingHeaderError naming every absent label.
//   3. Every data row must carry a non-empty value for every required column,
//      otherwise the call fails with InvalidRowError for the first bad row.
//
// No partial results are ever returned.
//
// =============================================================================

package extract

import (
	"fmt"
	"strings"
)

// =============================================================================
// DATA MODEL
// =============================================================================

// RawTable is a decoded sheet. Row 0 is the header row; rows 1..N are data.
// Cells are heterogeneous: decoders may produce strings, numbers, booleans or
// times, and rows may be ragged.
type RawTable [][]any

// Column maps a logical field name to the header label it is read from.
type Column struct {
	// Field is the logical field name used as the Record key (e.g. "name").
	Field string `yaml:"field" json:"field"`

	// Header is the exact, case-sensitive header label (e.g. "Name").
	Header string `yaml:"header" json:"header"`
}

// ColumnSpec is the ordered set of required columns.
// Order determines the order of error labels and of output columns.
type ColumnSpec []Column

// Record is one extracted data row, keyed by logical field name.
type Record map[string]string

// Fields returns the logical field names in spec order.
func (s ColumnSpec) Fields() []string {
	fields := make([]string, len(s))
	for i, c := range s {
		fields[i] = c.Field
	}
	return fields
}

// Validate reports whether the spec itself is usable.
func (s ColumnSpec) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("column spec is empty")
	}

	seen := make(map[string]bool, len(s))
	for i, c := range s {
		if c.Field == "" {
			return fmt.Errorf("column %d has an empty field name", i+1)
		}
		if c.Header == "" {
			return fmt.Errorf("column %q has an empty header label", c.Field)
		}
		if seen[c.Field] {
			return fmt.Errorf("field %q is declared more than once", c.Field)
		}
		seen[c.Field] = true
	}

	return nil
}

// =============================================================================
// EXTRACTOR
// =============================================================================

// Extractor projects RawTables onto a fixed ColumnSpec.
// An Extractor is immutable and may be shared between goroutines.
type Extractor struct {
	spec ColumnSpec
}

// NewExtractor returns an Extractor for spec after validating it.
func NewExtractor(spec ColumnSpec) (*Extractor, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid column spec: %w", err)
	}

	owned := make(ColumnSpec, len(spec))
	copy(owned, spec)

	return &Extractor{spec: owned}, nil
}

// Spec returns a copy of the extractor's column spec.
func (e *Extractor) Spec() ColumnSpec {
	out := make(ColumnSpec, len(e.spec))
	copy(out, e.spec)
	return out
}

// Extract is a shorthand for NewExtractor(spec) followed by Extract(table).
func Extract(table RawTable, spec ColumnSpec) ([]Record, error) {
	e, err := NewExtractor(spec)
	if err != nil {
		return nil, err
	}
	return e.Extract(table)
}

// Extract projects every data row of table into a Record.
//
// RETURNS:
//   - One Record per data row, in original row order.
//   - *EmptyTableError, *MissingHeaderError or *InvalidRowError on failure.
func (e *Extractor) Extract(table RawTable) ([]Record, error) {
	if len(table) < 2 {
		return nil, &EmptyTableError{Rows: len(table)}
	}

	indexes, err := e.resolve(table[0])
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(table)-1)

	for i := 1; i < len(table); i++ {
		row := table[i]
		record := make(Record, len(e.spec))

		var empty []string
		for j, c := range e.spec {
			idx := indexes[j]
			if idx >= len(row) {
				empty = append(empty, c.Field)
				continue
			}

			text := CellText(row[idx])
			if strings.TrimSpace(text) == "" {
				empty = append(empty, c.Field)
				continue
			}

			record[c.Field] = text
		}

		if len(empty) > 0 {
			return nil, &InvalidRowError{
				Row:       i + 1,
				DataIndex: i - 1,
				Fields:    empty,
			}
		}

		records = append(records, record)
	}

	return records, nil
}

// resolve builds the header label lookup once and maps each spec column to
// its index, in spec order. The first occurrence of a duplicated label wins.
func (e *Extractor) resolve(header []any) ([]int, error) {
	lookup := make(map[string]int, len(header))
	for i, cell := range header {
		label := CellText(cell)
		if _, exists := lookup[label]; !exists {
			lookup[label] = i
		}
	}

	indexes := make([]int, len(e.spec))
	var missing []string

	for j, c := range e.spec {
		idx, ok := lookup[c.Header]
		if !ok {
			missing = append(missing, c.Header)
			continue
		}
		indexes[j] = idx
	}

	if len(missing) > 0 {
		return nil, &MissingHeaderError{Labels: missing}
	}

	return indexes, nil
}
