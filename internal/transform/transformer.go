// =============================================================================
// rowimport - Transformation Engine
// =============================================================================
//
// This package applies the field transformations declared in a profile to
// extracted records, before they are validated and written.
//
// TRANSFORMATION TYPES:
//   - String manipulations (trim, case conversion, prepend, append)
//   - Zero padding
//   - Substring and regular expression replacement
//   - Lookup table replacement
//   - Defaults for values that end up blank
//
// Actions for a field run in declaration order; each sees the previous
// action's output.
//
// =============================================================================

package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies a profile's transformation rules.
type Transformer struct {
	steps map[string][]step
}

type step struct {
	action config.TransformationAction
	re     *regexp.Regexp
	length int
}

// NewTransformer compiles rules. Regular expressions and pad lengths are
// checked here, so Apply only fails on rows, never on configuration.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{steps: make(map[string][]step, len(rules))}

	for _, rule := range rules {
		for _, action := range rule.Actions {
			s := step{action: action}

			switch action.Type {
			case "regex_replace":
				if action.Find == "" {
					break
				}
				re, err := regexp.Compile(action.Find)
				if err != nil {
					return nil, fmt.Errorf("field %q: invalid regex pattern: %w", rule.Field, err)
				}
				s.re = re
			case "pad_zeros_to_length":
				n, err := strconv.Atoi(action.Value)
				if err != nil || n < 0 {
					return nil, fmt.Errorf("field %q: pad_zeros_to_length needs a non-negative length, got %q", rule.Field, action.Value)
				}
				s.length = n
			}

			if _, err := applyStep("", s); err != nil {
				return nil, fmt.Errorf("field %q: %w", rule.Field, err)
			}

			t.steps[rule.Field] = append(t.steps[rule.Field], s)
		}
	}

	return t, nil
}

// Empty reports whether the transformer has no rules.
func (t *Transformer) Empty() bool {
	return len(t.steps) == 0
}

// Transform applies every action declared for fieldName to value.
func (t *Transformer) Transform(fieldName, value string) (string, error) {
	result := value
	for _, s := range t.steps[fieldName] {
		var err error
		result, err = applyStep(result, s)
		if err != nil {
			return "", fmt.Errorf("transformation '%s' failed: %w", s.action.Type, err)
		}
	}
	return result, nil
}

// Apply returns transformed copies of records. The input is not modified.
func (t *Transformer) Apply(records []extract.Record) ([]extract.Record, error) {
	out := make([]extract.Record, len(records))

	for i, record := range records {
		transformed := make(extract.Record, len(record))
		for field, value := range record {
			v, err := t.Transform(field, value)
			if err != nil {
				return nil, fmt.Errorf("record %d, field %q: %w", i+1, field, err)
			}
			transformed[field] = v
		}
		out[i] = transformed
	}

	return out, nil
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

func applyStep(value string, s step) (string, error) {
	action := s.action

	switch action.Type {
	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "title":
		// Casers are stateful; one per call.
		return cases.Title(language.Und).String(strings.ToLower(value)), nil

	case "prepend_string":
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "pad_zeros_to_length":
		return PadLeft(value, s.length, '0'), nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		if s.re == nil {
			return value, nil
		}
		return s.re.ReplaceAllString(value, action.Value), nil

	case "lookup":
		if mapped, ok := action.LookupTable[value]; ok {
			return mapped, nil
		}
		return value, nil

	case "default":
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// PadLeft pads s on the left with padChar up to length runes.
// Longer values are returned unchanged.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
