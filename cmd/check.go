// =============================================================================
// rowimport - Check Command
// =============================================================================
//
// This file defines the 'check' command, which runs one file through the
// pipeline without writing anything and reports what an import would do.
//
// COMMAND USAGE:
//   rowimport check <file> [--profile name] [--strict]
//
// EXIT STATUS:
//   Non-zero when the file cannot be extracted (empty, missing headers, a
//   row with missing values), and with --strict also when validation finds
//   errors.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/rowimport/internal/extract"
	"github.com/ginjaninja78/rowimport/internal/validation"
)

var checkFlags struct {
	profile string
	strict  bool
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check a file's headers and values without importing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.profile, "profile", "p", "", "Import profile to check against (default: match by file name)")
	checkCmd.Flags().BoolVar(&checkFlags.strict, "strict", false, "Fail on validation errors too")
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	im, err := newImporter()
	if err != nil {
		return err
	}

	batch, err := im.Import(cmd.Context(), checkFlags.profile, path, data)
	if err != nil {
		if kind := extract.Kind(err); kind != "" {
			fmt.Fprintf(out, "FAIL [%s] %s\n", kind, err)
			return fmt.Errorf("%s cannot be imported", path)
		}
		return err
	}

	fmt.Fprintf(out, "OK   %s: profile %s, %d record(s) from %d row(s)\n",
		batch.Source, batch.Profile, len(batch.Records), batch.RowsRead)
	fmt.Fprintln(out, validation.FormatIssues(batch.Issues))

	if checkFlags.strict && batch.ErrorCount > 0 {
		return fmt.Errorf("%s has %d validation error(s)", path, batch.ErrorCount)
	}
	return nil
}
