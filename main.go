// =============================================================================
// rowimport - Main Entry Point
// =============================================================================
//
// This is the main entry point for the rowimport CLI application. It
// delegates command execution to the cmd package.
//
// USAGE:
//   rowimport import        - Import spreadsheet files from the input directory
//   rowimport check <file>  - Check a file without importing it
//   rowimport serve         - Serve the HTTP upload API
//   rowimport version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Extraction, decoding, profiles and the import pipeline
//   - pkg/           : Shared file management utilities
//   - profiles/      : Import profile definitions (YAML)
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/rowimport/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
