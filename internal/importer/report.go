package importer

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/rowimport/internal/extract"
	"github.com/ginjaninja78/rowimport/internal/types"
	"github.com/ginjaninja78/rowimport/pkg/utils"
)

// ErrorKind classifies a Run error for logs and exit codes: one of the
// extract kinds, "validation", or "processing". It returns "" for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if kind := extract.Kind(err); kind != "" {
		return kind
	}
	if errors.Is(err, ErrValidationFailed) {
		return "validation"
	}
	return "processing"
}

// Summarize builds the run summary for results.
func Summarize(results []types.Result, start, end time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:  start,
		EndTime:    end,
		TotalFiles: len(results),
	}

	for _, r := range results {
		summary.TotalRows += r.Stats.RowsRead
		summary.ValidationIssues += r.Stats.Issues

		if r.Success {
			summary.SuccessfulFiles++
			summary.TotalRecords += r.Stats.RecordsEmitted
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   r.FilePath,
				OutputFile:  r.OutputFile,
				ArchivePath: r.ArchivedTo,
				Profile:     r.Profile,
				Rows:        r.Stats.RowsRead,
				Records:     r.Stats.RecordsEmitted,
				ProcessTime: r.Stats.ProcessingTime,
			})
			continue
		}

		summary.FailedFiles++
		msg := "unknown error"
		if r.Error != nil {
			msg = r.Error.Error()
		}
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    r.FilePath,
			ErrorMessage: msg,
			ErrorType:    ErrorKind(r.Error),
		})
	}

	return summary
}

// ErrorLogEntries flattens the failures in results into error log entries.
// A file that failed validation contributes one entry per issue.
func ErrorLogEntries(results []types.Result, now time.Time) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry

	for _, r := range results {
		if r.Success || r.Error == nil {
			continue
		}
		fileName := filepath.Base(r.FilePath)
		kind := ErrorKind(r.Error)

		if kind == "validation" && len(r.Issues) > 0 {
			for _, issue := range r.Issues {
				entries = append(entries, utils.ErrorLogEntry{
					Timestamp:    now,
					FileName:     fileName,
					ErrorType:    kind,
					ErrorMessage: issue.Message,
					RowNumber:    issue.Row,
					FieldName:    issue.Field,
					FieldValue:   issue.Value,
				})
			}
			continue
		}

		entry := utils.ErrorLogEntry{
			Timestamp:    now,
			FileName:     fileName,
			ErrorType:    kind,
			ErrorMessage: r.Error.Error(),
		}

		var rowErr *extract.InvalidRowError
		if errors.As(r.Error, &rowErr) {
			entry.RowNumber = rowErr.Row
			entry.FieldName = strings.Join(rowErr.Fields, ", ")
		}

		entries = append(entries, entry)
	}

	return entries
}
