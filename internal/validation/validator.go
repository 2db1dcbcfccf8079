// =============================================================================
// rowimport - Validation Engine
// =============================================================================
//
// This module validates extracted records against the column rules of a
// profile: value type (email, number, date, ...) and maximum length.
//
// Extraction already guarantees that every required field is present and
// non-empty; this layer checks what the values look like.
//
// ERROR HANDLING:
//   - Issues are collected, not returned on the first failure
//   - Each issue carries the row number, field, value and rule
//   - Issues are errors (the file fails unless continue_on_error is set) or
//     warnings (reported only)
//
// =============================================================================

package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
)

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ISSUE TYPES
// =============================================================================

// Issue is a single validation finding.
type Issue struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string `json:"severity" yaml:"severity"`

	// Row is the 1-based row number in the decoded table (header is row 1).
	Row int `json:"row" yaml:"row"`

	// Field is the logical field name.
	Field string `json:"field" yaml:"field"`

	// Value is the offending value.
	Value string `json:"value" yaml:"value"`

	// Rule is the violated rule: data_type, max_length, whitespace.
	Rule string `json:"rule" yaml:"rule"`

	// Message is a human-readable description.
	Message string `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e *Issue) Error() string {
	return fmt.Sprintf("[%s] Row %d, Field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Row,
		e.Field,
		e.Message,
		e.Value,
	)
}

// Result contains the results of validation.
type Result struct {
	// Valid is true if there are no error-severity issues (and no warnings
	// when TreatWarningsAsErrors is set).
	Valid bool

	// Issues contains every finding, in row then column order.
	Issues []*Issue

	ErrorCount   int
	WarningCount int

	// FieldsChecked is the number of field values examined.
	FieldsChecked int
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// StopOnFirstError stops validation after the first error-severity issue.
	StopOnFirstError bool

	// TreatWarningsAsErrors makes any warning invalidate the result.
	TreatWarningsAsErrors bool
}

// Validator checks records against column rules.
type Validator struct {
	columns []config.ColumnConfig
	options Options
}

// tags is shared; validator.Validate is safe for concurrent use.
var tags = validator.New()

// NewValidator creates a Validator for the given columns.
func NewValidator(columns []config.ColumnConfig, options Options) *Validator {
	owned := make([]config.ColumnConfig, len(columns))
	copy(owned, columns)

	for i := range owned {
		owned[i].Type = NormalizeType(owned[i].Type)
	}

	return &Validator{columns: owned, options: options}
}

// Validate checks every record and returns the collected result.
func (v *Validator) Validate(records []extract.Record) *Result {
	result := &Result{Valid: true}

	for i, record := range records {
		row := i + 2

		for _, column := range v.columns {
			value, ok := record[column.Field]
			if !ok {
				continue
			}
			result.FieldsChecked++

			for _, issue := range v.ValidateField(row, column, value) {
				result.Issues = append(result.Issues, issue)

				if issue.Severity == SeverityError {
					result.ErrorCount++
					result.Valid = false

					if v.options.StopOnFirstError {
						return result
					}
				} else {
					result.WarningCount++

					if v.options.TreatWarningsAsErrors {
						result.Valid = false
					}
				}
			}
		}
	}

	return result
}

// ValidateField validates a single value against its column rules.
func (v *Validator) ValidateField(row int, column config.ColumnConfig, value string) []*Issue {
	var issues []*Issue

	newIssue := func(severity, rule, message string) *Issue {
		return &Issue{
			Severity: severity,
			Row:      row,
			Field:    column.Field,
			Value:    value,
			Rule:     rule,
			Message:  message,
		}
	}

	if n := utf8.RuneCountInString(value); column.MaxLength > 0 && n > column.MaxLength {
		issues = append(issues, newIssue(SeverityError, "max_length",
			fmt.Sprintf("Value exceeds maximum length of %d characters (actual: %d)", column.MaxLength, n)))
	}

	if msg := validateDataType(value, column.Type); msg != "" {
		issues = append(issues, newIssue(SeverityError, "data_type", msg))
	}

	if strings.TrimSpace(value) != value {
		issues = append(issues, newIssue(SeverityWarning, "whitespace", "Value has leading or trailing whitespace"))
	}

	return issues
}

// =============================================================================
// DATA TYPE VALIDATORS
// =============================================================================

// NormalizeType maps type aliases to their canonical names. Unknown types
// become "string". Parameterised date types keep their layout.
func NormalizeType(value string) string {
	trimmed := strings.TrimSpace(value)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(lower, "date(") {
		return "date" + trimmed[len("date"):]
	}

	switch lower {
	case "email", "e-mail", "mail":
		return "email"
	case "number", "numeric", "decimal", "float", "num":
		return "number"
	case "integer", "int":
		return "integer"
	case "alpha", "letters":
		return "alpha"
	case "alphanumeric", "alphanum", "an":
		return "alphanumeric"
	case "boolean", "bool":
		return "boolean"
	case "date":
		return "date"
	default:
		return "string"
	}
}

// validateDataType returns an error message if value is not of dataType,
// or "" if it is.
func validateDataType(value, dataType string) string {
	switch {
	case dataType == "email":
		return validateEmail(value)
	case dataType == "number":
		return validateNumber(value)
	case dataType == "integer":
		return validateInteger(value)
	case dataType == "alpha":
		return validateAlpha(value)
	case dataType == "alphanumeric":
		return validateAlphanumeric(value)
	case dataType == "boolean":
		return validateBoolean(value)
	case strings.HasPrefix(dataType, "date"):
		return validateDate(value, dataType)
	default:
		return ""
	}
}

func validateEmail(value string) string {
	if err := tags.Var(strings.TrimSpace(value), "required,email"); err != nil {
		return fmt.Sprintf("Value '%s' is not a valid email address", value)
	}
	return ""
}

// validateNumber accepts what a number input would: an optional sign, digits
// and an optional fraction.
func validateNumber(value string) string {
	if err := tags.Var(strings.TrimSpace(value), "required,numeric"); err != nil {
		return fmt.Sprintf("Value '%s' is not a valid number", value)
	}
	return ""
}

func validateInteger(value string) string {
	if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
		return fmt.Sprintf("Value '%s' is not a valid integer", value)
	}
	return ""
}

func validateAlphanumeric(value string) string {
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return fmt.Sprintf("Value '%s' contains non-alphanumeric characters", value)
		}
	}
	return ""
}

func validateAlpha(value string) string {
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return fmt.Sprintf("Value '%s' contains non-alphabetic characters", value)
		}
	}
	return ""
}

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
	time.RFC3339,
}

// validateDate accepts "date" (any common layout) or "date(<go layout>)".
func validateDate(value, dataType string) string {
	value = strings.TrimSpace(value)

	layout := extractParenthesesContent(dataType)
	if layout == "" {
		for _, l := range dateLayouts {
			if _, err := time.Parse(l, value); err == nil {
				return ""
			}
		}
		return fmt.Sprintf("Value '%s' is not a valid date", value)
	}

	if _, err := time.Parse(layout, value); err != nil {
		return fmt.Sprintf("Value '%s' does not match date format '%s'", value, layout)
	}
	return ""
}

func validateBoolean(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "false", "yes", "no", "1", "0", "y", "n", "t", "f":
		return ""
	}
	return fmt.Sprintf("Value '%s' is not a valid boolean", value)
}

// extractParenthesesContent extracts content from parentheses.
// Example: "date(2006-01-02)" -> "2006-01-02"
func extractParenthesesContent(s string) string {
	start := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")

	if start != -1 && end != -1 && end > start {
		return s[start+1 : end]
	}

	return ""
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatIssues formats issues for display or logging.
func FormatIssues(issues []*Issue) string {
	if len(issues) == 0 {
		return "No validation issues."
	}

	var builder strings.Builder

	fmt.Fprintf(&builder, "Validation completed with %d issue(s):\n\n", len(issues))

	for i, issue := range issues {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, issue.Error())
	}

	return builder.String()
}
