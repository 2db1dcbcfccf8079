package sheet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
)

// =============================================================================
// CSV DECODER
// =============================================================================

// DecodeCSV reads delimited text into a RawTable.
//
// DECODING PROCESS:
//   1. Convert the input from the configured encoding to UTF-8 (a leading
//      byte order mark is dropped)
//   2. Configure the CSV reader with the delimiter
//   3. Read every row, allowing ragged rows and lazy quotes
//   4. Trim cells and skip blank rows as configured
func DecodeCSV(r io.Reader, settings config.CSVSettings) (extract.RawTable, error) {
	decoder, err := textDecoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(bufio.NewReader(transform.NewReader(r, decoder)))
	if err := configureReader(csvReader, settings); err != nil {
		return nil, err
	}

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	return stringRows(rows, settings.Trim(), settings.SkipBlank()), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) error {
	switch strings.ToLower(settings.Delimiter) {
	case "", ",", "comma":
		reader.Comma = ','
	case "\\t", "\t", "tab":
		reader.Comma = '\t'
	case "|", "pipe":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		delim, size := utf8.DecodeRuneInString(settings.Delimiter)
		if size != len(settings.Delimiter) || delim == utf8.RuneError {
			return fmt.Errorf("delimiter %q must be a single character", settings.Delimiter)
		}
		reader.Comma = delim
	}

	// Ragged rows are allowed; the extractor reports short rows itself.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	return nil
}

// textDecoder returns a decoder from the named encoding to UTF-8.
func textDecoder(name string) (*encoding.Decoder, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "UTF-16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder(), nil
	case "UTF-16LE":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder(), nil
	case "UTF-16BE":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder(), nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "ISO-8859-15", "LATIN9", "LATIN-9":
		return charmap.ISO8859_15.NewDecoder(), nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252.NewDecoder(), nil
	case "WINDOWS-1251", "CP1251":
		return charmap.Windows1251.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
