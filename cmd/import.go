// =============================================================================
// rowimport - Import Command
// =============================================================================
//
// This file defines the 'import' command, the main batch command. It runs
// each file through the import pipeline concurrently.
//
// COMMAND USAGE:
//   rowimport import [files...] [flags]
//
// With no file arguments, every supported file in the input directory is
// imported.
//
// On success:
//   - The records are written to the output directory
//   - With --archive, the input file is moved to the input archive
//
// On error:
//   - The input file stays where it is
//   - The failure is written to an error log in the output directory
//   - Other files are still processed
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/rowimport/internal/importer"
	"github.com/ginjaninja78/rowimport/internal/sheet"
	"github.com/ginjaninja78/rowimport/internal/types"
	"github.com/ginjaninja78/rowimport/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var importFlags struct {
	profile   string
	dryRun    bool
	archive   bool
	recursive bool
}

// =============================================================================
// IMPORT COMMAND DEFINITION
// =============================================================================

var importCmd = &cobra.Command{
	Use:   "import [files...]",
	Short: "Import spreadsheet files",
	Long: `The import command extracts records from each file by header label,
applies the profile's transformations and validation, and writes the result
to the output directory.

Each file is processed independently; an error in one file does not stop
the others. The command exits non-zero if any file failed.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runImport(ctx, cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	flags := importCmd.Flags()
	flags.StringVarP(&importFlags.profile, "profile", "p", "", "Import profile to use (default: match by file name)")
	flags.StringP("format", "f", "", "Output format: json, yaml, csv or xml")
	flags.StringP("output", "o", "", "Output directory")
	flags.BoolVar(&importFlags.dryRun, "dry-run", false, "Run the pipeline without writing output files")
	flags.BoolVar(&importFlags.archive, "archive", false, "Move imported files to the input archive directory")
	flags.BoolVarP(&importFlags.recursive, "recursive", "r", false, "Scan the input directory recursively")

	_ = v.BindPFlag("output_format", flags.Lookup("format"))
	_ = v.BindPFlag("output_dir", flags.Lookup("output"))
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runImport(ctx context.Context, cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	im, err := newImporter(
		importer.WithProfile(importFlags.profile),
		importer.WithDryRun(importFlags.dryRun),
		importer.WithArchive(importFlags.archive),
	)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	inputFiles := args
	if len(inputFiles) == 0 {
		fm := utils.NewFileManager(appConfig.InputDir, appConfig.OutputDir, appConfig.InputArchiveDir)
		if importFlags.recursive {
			inputFiles, err = fm.DiscoverInputFilesRecursive(sheet.IsSupported)
		} else {
			inputFiles, err = fm.DiscoverInputFiles(sheet.IsSupported)
		}
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Fprintf(out, "No supported files found in %s.\n", appConfig.InputDir)
		return nil
	}

	appLogger.Info("Found %d file(s) to import", len(inputFiles))

	// =========================================================================
	// STEP 2: PROCESS FILES CONCURRENTLY
	// =========================================================================

	results := im.RunAll(ctx, inputFiles)

	var failed int
	for _, result := range results {
		name := filepath.Base(result.FilePath)
		switch {
		case result.Success && result.OutputFile != "":
			fmt.Fprintf(out, "  ✓ %s -> %s (%d record(s))\n", name, result.OutputFile, result.Stats.RecordsEmitted)
		case result.Success:
			fmt.Fprintf(out, "  ✓ %s (%d record(s), dry run)\n", name, result.Stats.RecordsEmitted)
		default:
			failed++
			fmt.Fprintf(out, "  ✗ %s: %v\n", name, result.Error)
		}
	}

	// =========================================================================
	// STEP 3: PRINT SUMMARY
	// =========================================================================

	endTime := time.Now()
	summary := importer.Summarize(results, startTime, endTime)

	fmt.Fprintln(out, "\n=== Import Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Records:         %d\n", summary.TotalRecords)
	fmt.Fprintf(out, "Time elapsed:    %s\n", endTime.Sub(startTime))

	if !importFlags.dryRun {
		if err := writeRunLogs(results, summary); err != nil {
			appLogger.Warn("Failed to write run logs: %v", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
	}
	return nil
}

// writeRunLogs writes the summary and, if anything failed, the error log.
func writeRunLogs(results []types.Result, summary utils.ProcessingSummary) error {
	dir := appConfig.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	errorLog, err := utils.WriteErrorLog(importer.ErrorLogEntries(results, time.Now()), dir)
	if err != nil {
		return err
	}
	if errorLog != "" {
		appLogger.Info("Errors have been logged to %s", errorLog)
	}

	summaryLog, err := utils.WriteSummaryLog(summary, dir)
	if err != nil {
		return err
	}
	appLogger.Debug("Summary written to %s", summaryLog)

	return nil
}
