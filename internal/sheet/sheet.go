// =============================================================================
// rowimport - Sheet Decoding
// =============================================================================
//
// This package decodes uploaded spreadsheets into an extract.RawTable: the
// first worksheet (or a named one) of an .xlsx / .xls workbook, or the rows of
// a .csv file. Decoding does not interpret headers; that is the extractor's job.
//
// SUPPORTED FORMATS:
//   - .xlsx, .xlsm : Office Open XML workbooks (excelize)
//   - .xls         : BIFF8 workbooks (extrame/xls)
//   - .csv, .tsv   : delimited text in a configurable encoding
//
// When the file name has no recognised extension the content is sniffed for
// the ZIP (xlsx) or OLE2 (xls) signatures, then for delimited text.
//
// =============================================================================

package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
)

// Format identifies a spreadsheet encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned for files that are not a supported spreadsheet.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// ErrSheetNotFound is returned when a named worksheet does not exist.
var ErrSheetNotFound = errors.New("sheet not found")

var (
	zipMagic  = []byte("PK\x03\x04")
	ole2Magic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Options control decoding.
type Options struct {
	// Sheet is the worksheet name to read. Empty means the first sheet.
	Sheet string

	// CSV holds delimiter, encoding and cell cleanup settings.
	CSV config.CSVSettings

	// Workbook holds cell cleanup settings for .xlsx and .xls files.
	Workbook config.WorkbookSettings
}

// OptionsFor returns the decoding options declared by a profile.
func OptionsFor(p *config.Profile) Options {
	return Options{Sheet: p.Sheet, CSV: p.CSVSettings, Workbook: p.WorkbookSettings}
}

// Decoder turns file content into a RawTable.
type Decoder interface {
	Decode(name string, data []byte, opts Options) (extract.RawTable, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(name string, data []byte, opts Options) (extract.RawTable, error)

// Decode calls f.
func (f DecoderFunc) Decode(name string, data []byte, opts Options) (extract.RawTable, error) {
	return f(name, data, opts)
}

// Default is the Decoder implemented by Decode.
var Default Decoder = DecoderFunc(Decode)

// DefaultFormatDecoder is the FormatDecoder implemented by DecodeAs.
var DefaultFormatDecoder FormatDecoder = FormatDecoderFunc(DecodeAs)

// Decode detects the format of data and decodes it.
//
// PARAMETERS:
//   - name: The original file name, used for format detection.
//   - data: The file content.
//   - opts: Sheet selection, CSV and workbook settings.
func Decode(name string, data []byte, opts Options) (extract.RawTable, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}
	return DecodeAs(format, name, data, opts)
}

// DecodeAs decodes data as format, skipping detection.
func DecodeAs(format Format, name string, data []byte, opts Options) (extract.RawTable, error) {
	csvSettings := opts.CSV
	if strings.EqualFold(filepath.Ext(name), ".tsv") && (csvSettings.Delimiter == "" || csvSettings.Delimiter == ",") {
		csvSettings.Delimiter = "tab"
	}

	var (
		table extract.RawTable
		err   error
	)
	switch format {
	case FormatXLSX:
		table, err = DecodeXLSX(bytes.NewReader(data), opts.Sheet, opts.Workbook)
	case FormatXLS:
		table, err = DecodeXLS(bytes.NewReader(data), opts.Sheet, opts.Workbook)
	case FormatCSV:
		table, err = DecodeCSV(bytes.NewReader(data), csvSettings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(name))
	}
	if err != nil {
		return nil, &DecodeError{Name: filepath.Base(name), Format: format, Err: err}
	}

	return table, nil
}

// DecodeError is returned when a file of a recognised format cannot be read.
type DecodeError struct {
	Name   string
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s as %s: %v", e.Name, e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DetectFormat picks the format from the file extension, falling back to the
// content signature.
//
// Sniffed formats are only as good as the sniffer: a csv file that is
// indistinguishable from prose is reported as unsupported.
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv", ".tsv":
		return FormatCSV, nil
	}

	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, ole2Magic):
		return FormatXLS, nil
	}

	if mime := mimetype.Detect(data); mime.Is("text/csv") || mime.Is("text/tab-separated-values") {
		return FormatCSV, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(name))
}

// IsSupported reports whether name has a supported spreadsheet extension.
func IsSupported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls", ".csv", ".tsv":
		return true
	}
	return false
}

// stringRows converts decoded string rows to a RawTable.
func stringRows(rows [][]string, trim, skipBlank bool) extract.RawTable {
	table := make(extract.RawTable, 0, len(rows))

	for _, row := range rows {
		if skipBlank && isRowEmpty(row) {
			continue
		}

		cells := make([]any, len(row))
		for i, cell := range row {
			if trim {
				cell = strings.TrimSpace(cell)
			}
			cells[i] = cell
		}
		table = append(table, cells)
	}

	return table
}

// workbookRows converts worksheet rows to a RawTable. Blank rows after the
// last data row are dropped whatever the settings say.
func workbookRows(rows [][]string, settings config.WorkbookSettings) extract.RawTable {
	end := len(rows)
	for end > 0 && isRowEmpty(rows[end-1]) {
		end--
	}
	return stringRows(rows[:end], settings.Trim(), settings.SkipBlank())
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
