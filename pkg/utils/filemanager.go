// =============================================================================
// rowimport - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for batch imports:
//   - Input file discovery (flat or recursive)
//   - Input archival (moving imported files out of the input directory)
//   - Output file naming
//   - Error log and run summary generation
//
// ARCHIVAL STRATEGY:
//   - Input files are moved to input_archive after a successful import
//   - A file that already exists in the archive is never overwritten; the
//     new one gets a numeric suffix
//   - Failed files remain in their original location
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the importer.
type FileManager struct {
	// InputDir is the directory where input files are placed.
	InputDir string

	// OutputDir is the directory where output files are placed.
	OutputDir string

	// InputArchiveDir is the directory for archived input files.
	InputArchiveDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/contacts.xlsx
	UseTimestampSubdirs bool

	// now is replaceable in tests.
	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
		now:             time.Now,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all configured directories that don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the files directly inside the input directory
// whose names satisfy match. Results are sorted.
//
// PARAMETERS:
//   - match: Reports whether a base file name should be imported.
//     Nil accepts every regular file.
func (fm *FileManager) DiscoverInputFiles(match func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || isHidden(entry.Name()) {
			continue
		}
		if match == nil || match(entry.Name()) {
			files = append(files, filepath.Join(fm.InputDir, entry.Name()))
		}
	}

	sort.Strings(files)
	return files, nil
}

// DiscoverInputFilesRecursive is DiscoverInputFiles over the whole tree below
// the input directory. Hidden directories are skipped.
func (fm *FileManager) DiscoverInputFilesRecursive(match func(name string) bool) ([]string, error) {
	var files []string

	err := filepath.WalkDir(fm.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != fm.InputDir && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || isHidden(d.Name()) {
			return nil
		}
		if match == nil || match(d.Name()) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk input directory: %w", err)
	}

	sort.Strings(files)
	return files, nil
}

// isHidden reports dot files and editor lock files such as "~$book.xlsx".
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an input file to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails. The input is left in place in that case.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath, err := fm.availableArchivePath(filePath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Rename fails across devices; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

// availableArchivePath returns an archive path for filePath that is not taken.
// "book.xlsx" becomes "book_1.xlsx", "book_2.xlsx", ... on collision.
func (fm *FileManager) availableArchivePath(filePath string) (string, error) {
	dir := fm.InputArchiveDir
	if fm.UseTimestampSubdirs {
		now := fm.now()
		dir = filepath.Join(dir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
		)
	}

	name := filepath.Base(filePath)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if !FileExists(candidate) {
			return candidate, nil
		}
		if i > 10000 {
			return "", fmt.Errorf("failed to find a free archive name for %s", name)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
	}
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName generates a unique output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     {time}      - Current time (HHMMSS)
//     {original}  - Input file name without extension
//     {profile}   - Import profile name
//     {ext}       - Output format extension (json, csv, ...)
//   - params: Placeholder values, keyed without braces.
//
// EXAMPLE:
//
//	format: "{profile}_{date}_{uuid}.{ext}"
//	params: {"profile": "contacts", "ext": "json"}
//	output: "contacts_20240115_a1b2c3d4-e5f6-7890-abcd-ef1234567890.json"
//
// If the result has no extension and params carries "ext", it is appended.
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	pairs := []string{
		"{uuid}", uuid.New().String(),
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		pairs = append(pairs, "{"+key+"}", sanitizeFileName(params[key]))
	}

	result := strings.NewReplacer(pairs...).Replace(format)

	if ext := params["ext"]; ext != "" && filepath.Ext(result) == "" {
		result += "." + ext
	}

	return result
}

// sanitizeFileName replaces path separators and other characters that are
// unsafe in file names.
func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, s)
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp time.Time
	FileName  string
	// ErrorType is an extraction error kind ("missing_header", ...),
	// "validation" or "processing".
	ErrorType    string
	ErrorMessage string
	RowNumber    int
	FieldName    string
	FieldValue   string
}

// WriteErrorLog writes error entries to a log file in dir.
//
// RETURNS:
//   - The path to the error log file, or "" when there are no entries.
//   - An error if writing fails.
func WriteErrorLog(entries []ErrorLogEntry, dir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(dir, logFileName("error_log"))

	err := writeLogFile(logPath, func(w *bufio.Writer) {
		fmt.Fprintf(w, "rowimport - Error Log\n"+
			"Generated: %s\n"+
			"Total Errors: %d\n"+
			"%s\n\n",
			time.Now().Format("2006-01-02 15:04:05"),
			len(entries),
			rule)

		for i, entry := range entries {
			fmt.Fprintf(w, "Error #%d\n"+
				"  Timestamp:      %s\n"+
				"  File:           %s\n"+
				"  Error Type:     %s\n"+
				"  Message:        %s\n",
				i+1,
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.FileName,
				entry.ErrorType,
				entry.ErrorMessage)

			if entry.RowNumber > 0 {
				fmt.Fprintf(w, "  Row Number:     %d\n", entry.RowNumber)
			}
			if entry.FieldName != "" {
				fmt.Fprintf(w, "  Field:          %s\n", entry.FieldName)
			}
			if entry.FieldValue != "" {
				fmt.Fprintf(w, "  Value:          %s\n", entry.FieldValue)
			}

			w.WriteString("\n")
		}

		fmt.Fprintf(w, "%s\nEnd of Error Log\n", rule)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a batch run.
type ProcessingSummary struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalFiles       int
	SuccessfulFiles  int
	FailedFiles      int
	TotalRows        int
	TotalRecords     int
	ValidationIssues int
	ProcessedFiles   []ProcessedFileInfo
	FailedFilesList  []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully imported file.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFile  string
	ArchivePath string
	Profile     string
	Rows        int
	Records     int
	ProcessTime time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// WriteSummaryLog writes a run summary to a log file in dir.
func WriteSummaryLog(summary ProcessingSummary, dir string) (string, error) {
	summaryPath := filepath.Join(dir, logFileName("processing_summary"))

	err := writeLogFile(summaryPath, func(w *bufio.Writer) {
		fmt.Fprintf(w, "rowimport - Processing Summary\n"+
			"%s\n\n"+
			"Run Information:\n"+
			"  Start Time:     %s\n"+
			"  End Time:       %s\n"+
			"  Duration:       %s\n\n"+
			"Statistics:\n"+
			"  Total Files:        %d\n"+
			"  Successful:         %d\n"+
			"  Failed:             %d\n"+
			"  Total Rows:         %d\n"+
			"  Total Records:      %d\n"+
			"  Validation Issues:  %d\n\n",
			rule,
			summary.StartTime.Format("2006-01-02 15:04:05"),
			summary.EndTime.Format("2006-01-02 15:04:05"),
			summary.EndTime.Sub(summary.StartTime).String(),
			summary.TotalFiles,
			summary.SuccessfulFiles,
			summary.FailedFiles,
			summary.TotalRows,
			summary.TotalRecords,
			summary.ValidationIssues)

		if len(summary.ProcessedFiles) > 0 {
			fmt.Fprintf(w, "Successful Files:\n%s\n", thinRule)
			for _, pf := range summary.ProcessedFiles {
				fmt.Fprintf(w, "  Input:        %s\n", pf.InputFile)
				if pf.OutputFile != "" {
					fmt.Fprintf(w, "  Output:       %s\n", pf.OutputFile)
				}
				if pf.ArchivePath != "" {
					fmt.Fprintf(w, "  Archived To:  %s\n", pf.ArchivePath)
				}
				fmt.Fprintf(w, "  Profile:      %s\n", pf.Profile)
				fmt.Fprintf(w, "  Rows:         %d\n", pf.Rows)
				fmt.Fprintf(w, "  Records:      %d\n", pf.Records)
				fmt.Fprintf(w, "  Process Time: %s\n\n", pf.ProcessTime.String())
			}
		}

		if len(summary.FailedFilesList) > 0 {
			fmt.Fprintf(w, "Failed Files:\n%s\n", thinRule)
			for _, ff := range summary.FailedFilesList {
				fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
				if ff.ErrorType != "" {
					fmt.Fprintf(w, "  Type:  %s\n", ff.ErrorType)
				}
				fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
			}
		}

		fmt.Fprintf(w, "%s\nEnd of Summary\n", rule)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

var (
	rule     = strings.Repeat("=", 80)
	thinRule = strings.Repeat("-", 80)
)

// logFileName returns "<prefix>_<timestamp>_<short id>.txt". The id keeps two
// runs in the same second apart.
func logFileName(prefix string) string {
	return fmt.Sprintf("%s_%s_%s.txt", prefix, time.Now().Format("20060102_150405"), uuid.New().String()[:8])
}

func writeLogFile(path string, fill func(w *bufio.Writer)) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	fill(w)

	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
