// =============================================================================
// rowimport - Shared Types
// =============================================================================
//
// This package contains types shared by the importer, the HTTP server and
// the CLI, so none of them has to import another to talk about a run.
//
// =============================================================================

package types

import (
	"time"

	"github.com/ginjaninja78/rowimport/internal/extract"
	"github.com/ginjaninja78/rowimport/internal/validation"
)

// =============================================================================
// BATCH TYPES
// =============================================================================

// Batch is the outcome of importing one file: its records plus what
// validation had to say about them.
type Batch struct {
	// ID uniquely identifies the batch (a UUID).
	ID string `json:"batch_id"`

	// Source is the original file name.
	Source string `json:"source"`

	// Profile is the name of the import profile used.
	Profile string `json:"profile"`

	// Columns are the logical field names in output order.
	Columns []string `json:"columns"`

	// Records are the extracted and transformed rows, in file order.
	Records []extract.Record `json:"records"`

	// RowsRead is the number of decoded rows, header included.
	RowsRead int `json:"rows_read"`

	// Issues are the validation findings. Empty when every value passed.
	Issues []*validation.Issue `json:"issues"`

	// ErrorCount is the number of error-severity issues.
	ErrorCount int `json:"error_count"`

	// WarningCount is the number of warning-severity issues.
	WarningCount int `json:"warning_count"`

	// CreatedAt is when the batch was produced.
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the batch has no error-severity issues.
func (b *Batch) Valid() bool {
	return b.ErrorCount == 0
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// Result contains the result of processing a single file.
type Result struct {
	// FilePath is the path of the input file.
	FilePath string

	// OutputFile is the path of the written output. Empty on a dry run or
	// failure.
	OutputFile string

	// ArchivedTo is where the input was moved, if archiving is enabled.
	ArchivedTo string

	// BatchID is the ID of the produced batch, if extraction succeeded.
	BatchID string

	// Profile is the name of the profile the file was imported with.
	Profile string

	// Success indicates whether the file was imported.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Issues are the validation findings for the file, whether or not they
	// failed it.
	Issues []*validation.Issue

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about processing one file.
type ProcessingStats struct {
	// RowsRead is the number of decoded rows, header included.
	RowsRead int

	// RecordsEmitted is the number of records produced.
	RecordsEmitted int

	// Issues is the number of validation issues.
	Issues int

	// Errors is the number of error-severity validation issues.
	Errors int

	// Warnings is the number of warning-severity validation issues.
	Warnings int

	// ProcessingTime is how long processing took.
	ProcessingTime time.Duration
}
