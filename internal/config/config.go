// =============================================================================
// rowimport - Configuration Module
// =============================================================================
//
// This module loads the main application configuration and the import
// profiles.
//
// CONFIGURATION SOURCES:
//   1. Main config (config.yaml): global settings, read through viper so that
//      ROWIMPORT_* environment variables and CLI flags can override it.
//   2. Profiles (profiles/*.yaml): named column specs plus decoding,
//      transformation and validation settings for one kind of upload.
//
// Configuration precedence (highest to lowest):
//   CLI flags > environment > config file > defaults
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (ROWIMPORT_OUTPUT_DIR, ...).
const EnvPrefix = "ROWIMPORT"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for spreadsheets when `import` is run without files.
	// Default: "./input"
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`

	// OutputDir receives the written record files and logs.
	// Default: "./output"
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// InputArchiveDir receives input files after a successful import when
	// archiving is enabled.
	// Default: "./input_archive"
	InputArchiveDir string `mapstructure:"input_archive_dir" yaml:"input_archive_dir"`

	// ProfilesDir contains the import profile YAML files.
	// Default: "./profiles"
	ProfilesDir string `mapstructure:"profiles_dir" yaml:"profiles_dir"`

	// =========================================================================
	// IMPORT SETTINGS
	// =========================================================================

	// DefaultProfile is used when no profile is named and no profile's file
	// patterns match.
	// Default: "contacts"
	DefaultProfile string `mapstructure:"default_profile" yaml:"default_profile"`

	// OutputFormat is one of json, yaml, csv, xml.
	// Default: "json"
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`

	// OutputNameFormat defines output file names.
	// Placeholders: {uuid} {timestamp} {date} {original} {profile} {ext}
	// Default: "{original}_{uuid}.{ext}"
	OutputNameFormat string `mapstructure:"output_name_format" yaml:"output_name_format"`

	// MaxConcurrency bounds the number of files imported at once.
	// Default: 4
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`

	// ContinueOnError keeps a file's records when validation reports errors.
	// Extraction errors are always fatal for the file.
	// Default: false
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`

	// CacheTTL is how long decoded tables are kept, keyed by content hash.
	// Zero disables the cache.
	// Default: 10m
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel is one of debug, info, warn, error.
	// Default: "info"
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// LogFormat is text or json.
	// Default: "text"
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	// =========================================================================
	// SERVER SETTINGS
	// =========================================================================

	// ListenAddr is the address `serve` binds to.
	// Default: ":8080"
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// MaxUploadBytes caps the size of an uploaded file.
	// Default: 10 MiB
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// defaults lists every main config key with its default value.
// NewViper registers them so that environment overrides work for every key.
var defaults = map[string]any{
	"input_dir":          "./input",
	"output_dir":         "./output",
	"input_archive_dir":  "./input_archive",
	"profiles_dir":       "./profiles",
	"default_profile":    "contacts",
	"output_format":      "json",
	"output_name_format": "{original}_{uuid}.{ext}",
	"max_concurrency":    4,
	"continue_on_error":  false,
	"cache_ttl":          10 * time.Minute,
	"log_level":          "info",
	"log_format":         "text",
	"listen_addr":        ":8080",
	"max_upload_bytes":   int64(10 << 20),
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// NewViper returns a viper instance with defaults and environment binding set
// up. Callers may bind CLI flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the config file at path (if any) into v and decodes the result.
//
// PARAMETERS:
//   - v: A viper instance from NewViper.
//   - path: The config file path. An empty path, or a path that does not
//     exist when required is false, leaves only defaults, env and flags.
//   - required: Whether a missing config file is an error.
func Load(v *viper.Viper, path string, required bool) (*MainConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if required || !missing {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg MainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&cfg)

	if err := validateMainConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration with every default applied.
func Default() *MainConfig {
	cfg, err := Load(NewViper(), "", false)
	if err != nil {
		// The defaults table is static; failing here is a programming error.
		panic(err)
	}
	return cfg
}

// applyMainConfigDefaults repairs values a file or env var set to zero.
func applyMainConfigDefaults(cfg *MainConfig) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.InputArchiveDir == "" {
		cfg.InputArchiveDir = "./input_archive"
	}
	if cfg.ProfilesDir == "" {
		cfg.ProfilesDir = "./profiles"
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = "contacts"
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = "json"
	}
	if cfg.OutputNameFormat == "" {
		cfg.OutputNameFormat = "{original}_{uuid}.{ext}"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
}

// validateMainConfig checks enumerated settings.
func validateMainConfig(cfg *MainConfig) error {
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	switch cfg.OutputFormat {
	case "json", "yaml", "csv", "xml":
	default:
		return fmt.Errorf("output_format %q is not one of json, yaml, csv, xml", cfg.OutputFormat)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", cfg.LogLevel)
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format %q is not one of text, json", cfg.LogFormat)
	}

	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}

	return nil
}
