// =============================================================================
// rowimport - Output Writers
// =============================================================================
//
// This package serialises extracted records. Every writer emits fields in
// column order, so output is stable from run to run.
//
// FORMATS:
//   - json : an array of objects
//   - yaml : a sequence of mappings
//   - csv  : a header row of field names, then one row per record
//   - xml  : <records><record><field>value</field>...</record></records>
//
// =============================================================================

package output

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/rowimport/internal/extract"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
	FormatXML  = "xml"
)

// ErrUnknownFormat is returned for an output format that has no writer.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatJSON, FormatYAML, FormatCSV, FormatXML}
}

// IsKnown reports whether format has a writer.
func IsKnown(format string) bool {
	for _, f := range Formats() {
		if f == strings.ToLower(format) {
			return true
		}
	}
	return false
}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXML:
		return "application/xml; charset=utf-8"
	default:
		return "application/json"
	}
}

// Write serialises records to w.
//
// PARAMETERS:
//   - w: The destination.
//   - format: One of Formats().
//   - columns: Field names in output order. Fields not listed are dropped.
//   - records: The records to write.
func Write(w io.Writer, format string, columns []string, records []extract.Record) error {
	var err error

	switch strings.ToLower(format) {
	case FormatJSON:
		err = writeJSON(w, columns, records)
	case FormatYAML:
		err = writeYAML(w, columns, records)
	case FormatCSV:
		err = writeCSV(w, columns, records)
	case FormatXML:
		err = writeXML(w, columns, records)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	return nil
}

// =============================================================================
// JSON
// =============================================================================

func writeJSON(w io.Writer, columns []string, records []extract.Record) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("[")
	for i, record := range records {
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  ")

		obj, err := OrderedJSON(columns, record)
		if err != nil {
			return err
		}
		bw.Write(obj)
	}
	if len(records) > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")

	return bw.Flush()
}

// OrderedJSON encodes record as a JSON object with keys in column order.
// Values are written as is; &, < and > are not escaped.
func OrderedJSON(columns []string, record extract.Record) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	// Encode terminates each value with a newline; it is trimmed before the
	// next separator is written.
	encode := func(v string) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1)
		return nil
	}

	buf.WriteByte('{')
	for i, field := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encode(field); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encode(record[field]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// =============================================================================
// YAML
// =============================================================================

func writeYAML(w io.Writer, columns []string, records []extract.Record) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode}

	for _, record := range records {
		mapping := &yaml.Node{Kind: yaml.MappingNode}
		for _, field := range columns {
			mapping.Content = append(mapping.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: field},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: record[field]},
			)
		}
		doc.Content = append(doc.Content, mapping)
	}

	if len(records) == 0 {
		doc.Style = yaml.FlowStyle
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// =============================================================================
// CSV
// =============================================================================

func writeCSV(w io.Writer, columns []string, records []extract.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for _, record := range records {
		for i, field := range columns {
			row[i] = record[field]
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// =============================================================================
// XML
// =============================================================================

func writeXML(w io.Writer, columns []string, records []extract.Record) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	names := make([]xml.Name, len(columns))
	for i, field := range columns {
		names[i] = xml.Name{Local: ElementName(field)}
	}

	root := xml.StartElement{Name: xml.Name{Local: "records"}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}

	for _, record := range records {
		rec := xml.StartElement{Name: xml.Name{Local: "record"}}
		if err := enc.EncodeToken(rec); err != nil {
			return err
		}

		for i, field := range columns {
			if err := enc.EncodeElement(record[field], xml.StartElement{Name: names[i]}); err != nil {
				return err
			}
		}

		if err := enc.EncodeToken(rec.End()); err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\n")
	return err
}

// ElementName turns a field name into a valid XML element name. Characters
// that are not allowed become underscores, and a name that does not start
// with a letter or underscore is prefixed with one.
func ElementName(field string) string {
	var b strings.Builder

	for i, r := range field {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
			b.WriteRune(r)
		case i == 0 && unicode.IsDigit(r):
			b.WriteRune('_')
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	name := b.String()
	if name == "" {
		return "_"
	}
	if strings.HasPrefix(strings.ToLower(name), "xml") {
		name = "_" + name
	}
	return name
}
