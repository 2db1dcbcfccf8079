// =============================================================================
// rowimport - Importer
// =============================================================================
//
// This module orchestrates the import pipeline for one file, and runs it over
// many files concurrently.
//
// IMPORT PIPELINE:
//   1. Select the import profile (explicit, by file name pattern, or default)
//   2. Decode the sheet into a raw table (cached by content hash)
//   3. Extract records by header label
//   4. Apply the profile's transformation rules
//   5. Validate the transformed values
//   6. Write the output file (unless dry run)
//   7. Archive the input file (if enabled)
//
// CONCURRENCY:
//   An Importer is safe for concurrent use. RunAll processes each file in its
//   own goroutine, with at most max_concurrency running at once.
//
// =============================================================================

package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
	"github.com/ginjaninja78/rowimport/internal/logging"
	"github.com/ginjaninja78/rowimport/internal/output"
	"github.com/ginjaninja78/rowimport/internal/sheet"
	"github.com/ginjaninja78/rowimport/internal/transform"
	"github.com/ginjaninja78/rowimport/internal/types"
	"github.com/ginjaninja78/rowimport/internal/validation"
	"github.com/ginjaninja78/rowimport/pkg/utils"
)

// ErrValidationFailed is returned by Run when a batch has error-severity
// validation issues and continue_on_error is off.
var ErrValidationFailed = errors.New("validation failed")

// =============================================================================
// IMPORTER STRUCTURE
// =============================================================================

// Importer runs the import pipeline.
type Importer struct {
	cfg       *config.MainConfig
	profiles  map[string]*config.Profile
	pipelines map[string]*pipeline

	// profileName forces a profile for every file. Empty means select per file.
	profileName string

	decoder sheet.Decoder
	files   *utils.FileManager
	logger  logging.Logger

	dryRun      bool
	archive     bool
	outputDir   string
	format      string
	concurrency int
}

// pipeline holds the compiled stages for one profile.
type pipeline struct {
	profile     *config.Profile
	extractor   *extract.Extractor
	transformer *transform.Transformer
	validator   *validation.Validator
}

// Option configures an Importer.
type Option func(*Importer)

// WithProfile forces every file through the named profile.
func WithProfile(name string) Option {
	return func(im *Importer) { im.profileName = name }
}

// WithDryRun runs the pipeline without writing output or archiving input.
func WithDryRun(dryRun bool) Option {
	return func(im *Importer) { im.dryRun = dryRun }
}

// WithArchive moves each successfully imported input to the archive directory.
func WithArchive(archive bool) Option {
	return func(im *Importer) { im.archive = archive }
}

// WithOutputDir overrides the configured output directory.
func WithOutputDir(dir string) Option {
	return func(im *Importer) {
		if dir != "" {
			im.outputDir = dir
		}
	}
}

// WithOutputFormat overrides the configured output format.
func WithOutputFormat(format string) Option {
	return func(im *Importer) {
		if format != "" {
			im.format = strings.ToLower(format)
		}
	}
}

// WithDecoder replaces the sheet decoder.
func WithDecoder(d sheet.Decoder) Option {
	return func(im *Importer) { im.decoder = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates an Importer.
//
// PARAMETERS:
//   - cfg: The main configuration.
//   - profiles: The available import profiles by name. Nil means the
//     built-in profiles only.
//   - opts: Overrides for the configured behaviour.
//
// RETURNS:
//   - The Importer, or an error if a profile's rules do not compile or the
//     forced profile or output format is unknown.
func New(cfg *config.MainConfig, profiles map[string]*config.Profile, opts ...Option) (*Importer, error) {
	if profiles == nil {
		var err error
		if profiles, err = config.LoadProfiles(""); err != nil {
			return nil, err
		}
	}

	im := &Importer{
		cfg:         cfg,
		profiles:    profiles,
		pipelines:   make(map[string]*pipeline, len(profiles)),
		outputDir:   cfg.OutputDir,
		format:      cfg.OutputFormat,
		concurrency: cfg.MaxConcurrency,
		logger:      logging.Nop(),
	}

	if cfg.CacheTTL > 0 {
		im.decoder = sheet.NewCachingDecoder(sheet.DefaultFormatDecoder, cfg.CacheTTL)
	} else {
		im.decoder = sheet.Default
	}

	for _, opt := range opts {
		opt(im)
	}

	if im.concurrency <= 0 {
		im.concurrency = 1
	}
	if !output.IsKnown(im.format) {
		return nil, fmt.Errorf("%w: %q", output.ErrUnknownFormat, im.format)
	}
	if im.profileName != "" {
		if _, ok := profiles[im.profileName]; !ok {
			return nil, fmt.Errorf("%w %q", config.ErrUnknownProfile, im.profileName)
		}
	}

	for name, profile := range profiles {
		p, err := compile(profile)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare profile %q: %w", name, err)
		}
		im.pipelines[name] = p
	}

	im.files = utils.NewFileManager(cfg.InputDir, im.outputDir, cfg.InputArchiveDir)

	return im, nil
}

func compile(profile *config.Profile) (*pipeline, error) {
	extractor, err := extract.NewExtractor(profile.ColumnSpec())
	if err != nil {
		return nil, err
	}

	transformer, err := transform.NewTransformer(profile.Transformations)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		profile:     profile,
		extractor:   extractor,
		transformer: transformer,
		validator:   validation.NewValidator(profile.Columns, validation.Options{}),
	}, nil
}

// Profiles returns the available profiles sorted by name.
func (im *Importer) Profiles() []*config.Profile {
	names := config.ProfileNames(im.profiles)
	out := make([]*config.Profile, len(names))
	for i, name := range names {
		out[i] = im.profiles[name]
	}
	return out
}

// Format returns the output format files are written in.
func (im *Importer) Format() string {
	return im.format
}

// =============================================================================
// SINGLE UPLOAD
// =============================================================================

// Import runs decode, extract, transform and validate over data.
//
// PARAMETERS:
//   - ctx: Checked before work starts.
//   - profileName: The profile to use. Empty falls back to the forced
//     profile, then to file name matching, then to the default profile.
//   - name: The original file name, used for format detection.
//   - data: The file content.
//
// RETURNS:
//   - The batch, including any validation issues. Validation issues are not
//     an error here; callers decide what they mean.
//   - An error if the profile is unknown, the file cannot be decoded, or
//     extraction fails. Extraction errors are returned unwrapped
//     (*extract.EmptyTableError, *extract.MissingHeaderError,
//     *extract.InvalidRowError).
func (im *Importer) Import(ctx context.Context, profileName, name string, data []byte) (*types.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if profileName == "" {
		profileName = im.profileName
	}
	profile, err := config.SelectProfile(im.profiles, profileName, name, im.cfg.DefaultProfile)
	if err != nil {
		return nil, err
	}
	p := im.pipelines[profile.Name]

	table, err := im.decoder.Decode(name, data, sheet.OptionsFor(profile))
	if err != nil {
		return nil, err
	}

	records, err := p.extractor.Extract(table)
	if err != nil {
		return nil, err
	}

	if !p.transformer.Empty() {
		records, err = p.transformer.Apply(records)
		if err != nil {
			return nil, fmt.Errorf("failed to apply transformations: %w", err)
		}
	}

	result := p.validator.Validate(records)

	issues := result.Issues
	if issues == nil {
		issues = []*validation.Issue{}
	}

	return &types.Batch{
		ID:           uuid.New().String(),
		Source:       filepath.Base(name),
		Profile:      profile.Name,
		Columns:      p.extractor.Spec().Fields(),
		Records:      records,
		RowsRead:     len(table),
		Issues:       issues,
		ErrorCount:   result.ErrorCount,
		WarningCount: result.WarningCount,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// =============================================================================
// FILE PROCESSING
// =============================================================================

// Run executes the import pipeline for the file at path.
func (im *Importer) Run(ctx context.Context, path string) (result types.Result) {
	start := time.Now()
	result.FilePath = path

	defer func() {
		result.Stats.ProcessingTime = time.Since(start)
	}()

	im.logger.Info("Processing file: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = fmt.Errorf("failed to read input file: %w", err)
		im.logger.Error("%s: %v", filepath.Base(path), result.Error)
		return result
	}

	batch, err := im.Import(ctx, "", path, data)
	if err != nil {
		result.Error = err
		im.logger.Error("%s: %v", filepath.Base(path), err)
		return result
	}

	result.BatchID = batch.ID
	result.Profile = batch.Profile
	result.Issues = batch.Issues
	result.Stats.RowsRead = batch.RowsRead
	result.Stats.RecordsEmitted = len(batch.Records)
	result.Stats.Issues = len(batch.Issues)
	result.Stats.Errors = batch.ErrorCount
	result.Stats.Warnings = batch.WarningCount

	im.logger.Debug("Batch %s: profile %s, %d row(s) read, %d record(s) extracted",
		batch.ID, batch.Profile, batch.RowsRead, len(batch.Records))

	for _, issue := range batch.Issues {
		im.logger.Warn("%s: %s", batch.Source, issue.Error())
	}

	if batch.ErrorCount > 0 && !im.cfg.ContinueOnError {
		result.Error = fmt.Errorf("%w with %d error(s)", ErrValidationFailed, batch.ErrorCount)
		return result
	}

	if im.dryRun {
		im.logger.Info("Dry run: %s would produce %d record(s)", batch.Source, len(batch.Records))
		result.Success = true
		return result
	}

	outputPath, err := im.writeBatch(batch, path)
	if err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		im.logger.Error("%s: %v", batch.Source, result.Error)
		return result
	}
	result.OutputFile = outputPath
	im.logger.Info("Wrote %d record(s) to: %s", len(batch.Records), outputPath)

	if im.archive {
		archived, err := im.files.ArchiveInputFile(path)
		if err != nil {
			// The import itself succeeded; archival failures are reported only.
			im.logger.Warn("Failed to archive %s: %v", path, err)
		} else {
			result.ArchivedTo = archived
			im.logger.Debug("Archived %s to %s", path, archived)
		}
	}

	result.Success = true
	return result
}

// RunAll runs every path through Run, at most max_concurrency at a time.
// Results are returned in the order of paths.
func (im *Importer) RunAll(ctx context.Context, paths []string) []types.Result {
	type indexed struct {
		index  int
		result types.Result
	}

	var wg sync.WaitGroup
	results := make(chan indexed, len(paths))
	sem := make(chan struct{}, im.concurrency)

	for i, path := range paths {
		wg.Add(1)

		go func(index int, path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- indexed{index, types.Result{FilePath: path, Error: ctx.Err()}}
				return
			}
			defer func() { <-sem }()

			results <- indexed{index, im.Run(ctx, path)}
		}(i, path)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]types.Result, len(paths))
	for r := range results {
		ordered[r.index] = r.result
	}

	return ordered
}

// writeBatch writes the batch to the output directory and returns the path.
func (im *Importer) writeBatch(batch *types.Batch, inputPath string) (string, error) {
	if err := os.MkdirAll(im.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	base := filepath.Base(inputPath)
	fileName := utils.GenerateOutputFileName(im.cfg.OutputNameFormat, map[string]string{
		"original": strings.TrimSuffix(base, filepath.Ext(base)),
		"profile":  batch.Profile,
		"ext":      im.format,
	})
	outputPath := filepath.Join(im.outputDir, fileName)

	file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := output.Write(file, im.format, batch.Columns, batch.Records); err != nil {
		file.Close()
		os.Remove(outputPath)
		return "", err
	}

	if err := file.Close(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return outputPath, nil
}
