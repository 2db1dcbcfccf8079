// =============================================================================
// rowimport - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (rowimport)
//   ├── importCmd  (rowimport import [files...])
//   ├── checkCmd   (rowimport check <file>)
//   ├── serveCmd   (rowimport serve)
//   └── versionCmd (rowimport version)
//
// CONFIGURATION:
//   Settings are resolved in this order, later wins:
//   1. Built-in defaults
//   2. config.yaml (or the file named by --config)
//   3. Environment variables (ROWIMPORT_*, also read from .env)
//   4. Command-line flags
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/importer"
	"github.com/ginjaninja78/rowimport/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// v holds defaults, environment and bound flags.
var v = config.NewViper()

// Loaded by loadConfig before any command runs.
var (
	appConfig   *config.MainConfig
	appProfiles map[string]*config.Profile
	appLogger   *logging.SlogLogger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "rowimport",
	Short: "rowimport - Import spreadsheet rows by header label",

	Long: `rowimport reads uploaded spreadsheets (.xlsx, .xls, .csv) and turns each
data row into a record of named fields. Columns are found by their header
label, so the column order in the file does not matter.

Key Features:
  - Header-label driven extraction with clear errors for empty files,
    missing headers and rows with missing values
  - Import profiles with per-field transformations and type validation
  - JSON, YAML, CSV and XML output
  - Concurrent batch imports with archival and summary logs
  - An HTTP upload API

Example Usage:
  rowimport import                      # Import every file in the input directory
  rowimport import people.xlsx -f csv   # Import one file as CSV
  rowimport check people.xlsx           # Check headers and values without writing
  rowimport serve --listen :9000        # Serve the upload API`,

	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().String("profiles-dir", "", "Directory of import profile files")

	_ = v.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("profiles_dir", rootCmd.PersistentFlags().Lookup("profiles-dir"))
}

// loadConfig reads .env, the config file and the profiles.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	// Only a config file named explicitly has to exist.
	required := cmd.Flags().Changed("config")

	cfg, err := config.Load(v, cfgFile, required)
	if err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	appConfig = cfg
	appLogger = logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())

	if used := v.ConfigFileUsed(); used != "" {
		appLogger.Debug("Using config file: %s", used)
	}

	appProfiles, err = config.LoadProfiles(cfg.ProfilesDir)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	appLogger.Debug("Loaded %d profile(s) from %s", len(appProfiles), cfg.ProfilesDir)

	return nil
}

// newImporter builds an importer from the loaded configuration.
func newImporter(opts ...importer.Option) (*importer.Importer, error) {
	opts = append([]importer.Option{importer.WithLogger(appLogger)}, opts...)
	return importer.New(appConfig, appProfiles, opts...)
}
