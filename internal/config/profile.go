package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/rowimport/internal/extract"
)

// =============================================================================
// PROFILE CONFIGURATION STRUCTURE
// =============================================================================

// Profile describes one kind of upload: which sheet to read, which columns
// are required, and how their values are transformed and validated.
type Profile struct {
	// Name identifies the profile (`--profile`, `?profile=`).
	Name string `yaml:"name" json:"name"`

	// Description is shown by `GET /v1/profiles`.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// FileMatchingPatterns are glob patterns matched against the base name of
	// an input file to select this profile automatically.
	// Examples: "contacts_*.xlsx", "*_members.csv"
	FileMatchingPatterns []string `yaml:"file_matching_patterns,omitempty" json:"file_matching_patterns,omitempty"`

	// Sheet is the worksheet to read from workbooks. Empty means the first sheet.
	Sheet string `yaml:"sheet,omitempty" json:"sheet,omitempty"`

	// CSVSettings apply to .csv inputs only.
	CSVSettings CSVSettings `yaml:"csv_settings" json:"csv_settings"`

	// WorkbookSettings apply to .xlsx and .xls inputs only.
	WorkbookSettings WorkbookSettings `yaml:"workbook_settings" json:"workbook_settings"`

	// Columns are the required columns, in output order.
	Columns []ColumnConfig `yaml:"columns" json:"columns"`

	// Transformations are applied to extracted values before validation.
	Transformations []TransformationRule `yaml:"transformations,omitempty" json:"transformations,omitempty"`
}

// ColumnConfig is a required column plus its validation rules.
type ColumnConfig struct {
	// Field is the logical field name (Record key).
	Field string `yaml:"field" json:"field"`

	// Header is the exact, case-sensitive header label in the sheet.
	Header string `yaml:"header" json:"header"`

	// Type is the expected value type.
	// Valid values: string, email, number, integer, alpha, alphanumeric,
	// boolean, date, date(<go layout>)
	// Default: "string"
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// MaxLength is the maximum number of characters. 0 means no limit.
	MaxLength int `yaml:"max_length,omitempty" json:"max_length,omitempty"`
}

// CSVSettings contains settings for decoding CSV uploads.
type CSVSettings struct {
	// Delimiter separates fields. Accepts a single character or one of
	// "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter" json:"delimiter"`

	// Encoding of the file. Common values: "UTF-8", "UTF-16", "ISO-8859-1",
	// "Windows-1252".
	// Default: "UTF-8"
	Encoding string `yaml:"encoding" json:"encoding"`

	// TrimSpace trims leading and trailing whitespace from every cell.
	// Default: true
	TrimSpace *bool `yaml:"trim_space,omitempty" json:"trim_space,omitempty"`

	// SkipBlankRows drops rows whose cells are all empty. Dropped rows are
	// not counted in the row numbers of errors and validation issues.
	// Default: true
	SkipBlankRows *bool `yaml:"skip_blank_rows,omitempty" json:"skip_blank_rows,omitempty"`
}

// Trim reports the effective TrimSpace setting.
func (s CSVSettings) Trim() bool { return s.TrimSpace == nil || *s.TrimSpace }

// SkipBlank reports the effective SkipBlankRows setting.
func (s CSVSettings) SkipBlank() bool { return s.SkipBlankRows == nil || *s.SkipBlankRows }

// WorkbookSettings contains settings for decoding .xlsx and .xls uploads.
//
// Blank rows between data rows are kept by default, so row numbers in errors
// are the sheet's own row numbers and a blank row inside the data is reported
// as an invalid row. Blank rows after the last data row are always dropped.
type WorkbookSettings struct {
	// TrimSpace trims leading and trailing whitespace from every cell.
	// Default: true
	TrimSpace *bool `yaml:"trim_space,omitempty" json:"trim_space,omitempty"`

	// SkipBlankRows drops blank rows between data rows too. Dropped rows are
	// not counted in the row numbers of errors and validation issues.
	// Default: false
	SkipBlankRows *bool `yaml:"skip_blank_rows,omitempty" json:"skip_blank_rows,omitempty"`
}

// Trim reports the effective TrimSpace setting.
func (s WorkbookSettings) Trim() bool { return s.TrimSpace == nil || *s.TrimSpace }

// SkipBlank reports the effective SkipBlankRows setting.
func (s WorkbookSettings) SkipBlank() bool { return s.SkipBlankRows != nil && *s.SkipBlankRows }

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// TransformationRule defines the transformations applied to one field.
type TransformationRule struct {
	// Field is the logical field name (not the header label).
	Field string `yaml:"field" json:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions" json:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is one of KnownActionTypes.
	Type string `yaml:"type" json:"type"`

	// Value is the action parameter:
	//   - prepend_string / append_string : the string to add
	//   - pad_zeros_to_length            : the target length, e.g. "6"
	//   - replace / regex_replace        : the replacement
	//   - default                        : the value used when the field is blank
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Find is the substring or pattern for replace and regex_replace.
	Find string `yaml:"find,omitempty" json:"find,omitempty"`

	// LookupTable maps input values to output values for lookup.
	// Values not in the table pass through unchanged.
	LookupTable map[string]string `yaml:"lookup_table,omitempty" json:"lookup_table,omitempty"`
}

// KnownActionTypes lists the transformation action types.
var KnownActionTypes = []string{
	"trim",
	"uppercase",
	"lowercase",
	"title",
	"prepend_string",
	"append_string",
	"pad_zeros_to_length",
	"replace",
	"regex_replace",
	"lookup",
	"default",
}

// =============================================================================
// PROFILE METHODS
// =============================================================================

// ColumnSpec returns the extraction spec for the profile's columns.
func (p *Profile) ColumnSpec() extract.ColumnSpec {
	spec := make(extract.ColumnSpec, len(p.Columns))
	for i, c := range p.Columns {
		spec[i] = extract.Column{Field: c.Field, Header: c.Header}
	}
	return spec
}

// Matches reports whether fileName matches one of the profile's patterns.
func (p *Profile) Matches(fileName string) bool {
	base := filepath.Base(fileName)
	for _, pattern := range p.FileMatchingPatterns {
		matched, err := filepath.Match(pattern, base)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// Validate checks the profile after defaults are applied.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}

	if err := p.ColumnSpec().Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}

	for _, pattern := range p.FileMatchingPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("profile %q: bad file pattern %q: %w", p.Name, pattern, err)
		}
	}

	fields := make(map[string]bool, len(p.Columns))
	for _, c := range p.Columns {
		fields[c.Field] = true
	}

	for _, rule := range p.Transformations {
		if !fields[rule.Field] {
			return fmt.Errorf("profile %q: transformation for unknown field %q", p.Name, rule.Field)
		}
		for _, action := range rule.Actions {
			if !isKnownAction(action.Type) {
				return fmt.Errorf("profile %q: field %q: unknown transformation type %q", p.Name, rule.Field, action.Type)
			}
		}
	}

	return nil
}

func isKnownAction(actionType string) bool {
	for _, known := range KnownActionTypes {
		if known == actionType {
			return true
		}
	}
	return false
}

// =============================================================================
// BUILT-IN PROFILES
// =============================================================================

// ContactsProfile returns the built-in profile for the name/email/age upload
// form.
func ContactsProfile() *Profile {
	p := &Profile{
		Name:        "contacts",
		Description: "Name, email and age of each person",
		Columns: []ColumnConfig{
			{Field: "name", Header: "Name", Type: "string"},
			{Field: "email", Header: "Email", Type: "email"},
			{Field: "age", Header: "Age", Type: "number"},
		},
	}
	applyProfileDefaults(p)
	return p
}

// =============================================================================
// PROFILE LOADING FUNCTIONS
// =============================================================================

// LoadProfiles loads every *.yaml / *.yml profile in dir, on top of the
// built-in profiles. A profile file may replace a built-in one by name.
// A missing directory yields just the built-ins.
func LoadProfiles(dir string) (map[string]*Profile, error) {
	profiles := map[string]*Profile{
		"contacts": ContactsProfile(),
	}

	if dir == "" {
		return profiles, nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return profiles, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	for _, file := range files {
		profile, err := LoadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		profiles[profile.Name] = profile
	}

	return profiles, nil
}

// LoadProfile loads a single profile file. A profile without a name takes the
// file's base name.
func LoadProfile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	if profile.Name == "" {
		profile.Name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	applyProfileDefaults(&profile)

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	return &profile, nil
}

// applyProfileDefaults sets default values for a profile.
func applyProfileDefaults(p *Profile) {
	if p.CSVSettings.Delimiter == "" {
		p.CSVSettings.Delimiter = ","
	}
	if p.CSVSettings.Encoding == "" {
		p.CSVSettings.Encoding = "UTF-8"
	}

	for i := range p.Columns {
		if p.Columns[i].Type == "" {
			p.Columns[i].Type = "string"
		}
	}
}

// ErrUnknownProfile is returned when a profile is requested by a name that is
// not defined.
var ErrUnknownProfile = errors.New("unknown profile")

// SelectProfile picks the profile for fileName: the named one if name is
// set, otherwise the first profile (by name) whose patterns match, otherwise
// the fallback.
func SelectProfile(profiles map[string]*Profile, name, fileName, fallback string) (*Profile, error) {
	if name != "" {
		p, ok := profiles[name]
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownProfile, name)
		}
		return p, nil
	}

	for _, key := range ProfileNames(profiles) {
		if profiles[key].Matches(fileName) {
			return profiles[key], nil
		}
	}

	p, ok := profiles[fallback]
	if !ok {
		return nil, fmt.Errorf("no profile matches %s and default profile %q is not defined", filepath.Base(fileName), fallback)
	}
	return p, nil
}

// ProfileNames returns the profile names in sorted order.
func ProfileNames(profiles map[string]*Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
