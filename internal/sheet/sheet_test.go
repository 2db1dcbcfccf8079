package sheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
)

// buildXLSX writes a workbook with one sheet per entry in sheets, in order.
func buildXLSX(t *testing.T, sheets map[string][][]any, order ...string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			if name != "Sheet1" {
				require.NoError(t, f.SetSheetName("Sheet1", name))
			}
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}

		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func boolPtr(b bool) *bool { return &b }

func TestDecodeCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		settings config.CSVSettings
		want     extract.RawTable
	}{
		{
			name:  "basic with BOM",
			input: "\xef\xbb\xbfName,Email,Age\nAnn,a@x.com,30\n",
			want:  extract.RawTable{{"Name", "Email", "Age"}, {"Ann", "a@x.com", "30"}},
		},
		{
			name:  "trims cells and skips blank rows",
			input: "Name , Age\n\n  Ann ,30\n , \n",
			want:  extract.RawTable{{"Name", "Age"}, {"Ann", "30"}},
		},
		{
			name:     "keeps whitespace when asked",
			input:    "Name\n Ann \n",
			settings: config.CSVSettings{TrimSpace: boolPtr(false)},
			want:     extract.RawTable{{"Name"}, {" Ann "}},
		},
		{
			name:     "keeps blank rows when asked",
			input:    "Name,Age\n,\nAnn,30\n",
			settings: config.CSVSettings{SkipBlankRows: boolPtr(false)},
			want:     extract.RawTable{{"Name", "Age"}, {"", ""}, {"Ann", "30"}},
		},
		{
			name:     "semicolon and ragged rows",
			input:    "Name;Email;Age\nAnn;a@x.com\n",
			settings: config.CSVSettings{Delimiter: "semicolon"},
			want:     extract.RawTable{{"Name", "Email", "Age"}, {"Ann", "a@x.com"}},
		},
		{
			name:     "tab",
			input:    "Name\tAge\nAnn\t30\n",
			settings: config.CSVSettings{Delimiter: "tab"},
			want:     extract.RawTable{{"Name", "Age"}, {"Ann", "30"}},
		},
		{
			name:     "latin1",
			input:    "Name,City\nJos\xe9,K\xf6ln\n",
			settings: config.CSVSettings{Encoding: "ISO-8859-1"},
			want:     extract.RawTable{{"Name", "City"}, {"José", "Köln"}},
		},
		{
			name:  "quoted fields",
			input: "Name,Note\n\"Doe, Jane\",\"said \"\"hi\"\"\"\n",
			want:  extract.RawTable{{"Name", "Note"}, {"Doe, Jane", `said "hi"`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := DecodeCSV(strings.NewReader(tt.input), tt.settings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, table)
		})
	}
}

func TestDecodeCSV_UTF16(t *testing.T) {
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("Name,Age\nZoë,30\n")
	require.NoError(t, err)

	table, err := DecodeCSV(strings.NewReader(encoded), config.CSVSettings{Encoding: "utf-16"})
	require.NoError(t, err)
	assert.Equal(t, extract.RawTable{{"Name", "Age"}, {"Zoë", "30"}}, table)
}

func TestDecodeCSV_BadSettings(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader("a"), config.CSVSettings{Delimiter: "::"})
	assert.ErrorContains(t, err, "single character")

	_, err = DecodeCSV(strings.NewReader("a"), config.CSVSettings{Encoding: "EBCDIC"})
	assert.ErrorContains(t, err, "unsupported encoding")
}

func TestDecodeXLSX(t *testing.T) {
	data := buildXLSX(t, map[string][][]any{
		"People": {
			{"Name", "Email", "Age"},
			{"Ann", "a@x.com", 30},
			{},
			{" Bob ", "b@x.com", 41.0},
		},
		"Other": {
			{"Code"},
			{"X1"},
		},
	}, "People", "Other")

	table, err := DecodeXLSX(bytes.NewReader(data), "", config.WorkbookSettings{})
	require.NoError(t, err)
	assert.Equal(t, extract.RawTable{
		{"Name", "Email", "Age"},
		{"Ann", "a@x.com", "30"},
		{},
		{"Bob", "b@x.com", "41"},
	}, table)

	table, err = DecodeXLSX(bytes.NewReader(data), "Other", config.WorkbookSettings{})
	require.NoError(t, err)
	assert.Equal(t, extract.RawTable{{"Code"}, {"X1"}}, table)

	_, err = DecodeXLSX(bytes.NewReader(data), "Missing", config.WorkbookSettings{})
	assert.True(t, errors.Is(err, ErrSheetNotFound))

	names, err := XLSXSheets(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"People", "Other"}, names)
}

func TestDecodeXLSX_WorkbookSettings(t *testing.T) {
	data := buildXLSX(t, map[string][][]any{
		"Sheet1": {
			{"Name"},
			{" Ann "},
			{},
			{"Bob"},
		},
	}, "Sheet1")

	tests := []struct {
		name     string
		settings config.WorkbookSettings
		want     extract.RawTable
	}{
		{
			name: "defaults keep interior blank rows",
			want: extract.RawTable{{"Name"}, {"Ann"}, {}, {"Bob"}},
		},
		{
			name:     "skip blank rows",
			settings: config.WorkbookSettings{SkipBlankRows: boolPtr(true)},
			want:     extract.RawTable{{"Name"}, {"Ann"}, {"Bob"}},
		},
		{
			name:     "keep whitespace",
			settings: config.WorkbookSettings{TrimSpace: boolPtr(false)},
			want:     extract.RawTable{{"Name"}, {" Ann "}, {}, {"Bob"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := DecodeXLSX(bytes.NewReader(data), "", tt.settings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, table)
		})
	}
}

func TestWorkbookRows_DropsTrailingBlankRows(t *testing.T) {
	rows := [][]string{{"Name"}, {"Ann"}, {" "}, {"Bob"}, {"", " "}, nil}

	assert.Equal(t, extract.RawTable{{"Name"}, {"Ann"}, {""}, {"Bob"}},
		workbookRows(rows, config.WorkbookSettings{}))
	assert.Equal(t, extract.RawTable{{"Name"}, {"Ann"}, {"Bob"}},
		workbookRows(rows, config.WorkbookSettings{SkipBlankRows: boolPtr(true)}))
}

func TestDecodeXLSX_NotAWorkbook(t *testing.T) {
	_, err := DecodeXLSX(strings.NewReader("not a zip"), "", config.WorkbookSettings{})
	require.Error(t, err)
}

func TestDecodeXLS_Garbage(t *testing.T) {
	data := append(append([]byte{}, ole2Magic...), []byte("truncated")...)
	_, err := DecodeXLS(bytes.NewReader(data), "", config.WorkbookSettings{})
	require.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{name: "upload.XLSX", want: FormatXLSX},
		{name: "macro.xlsm", want: FormatXLSX},
		{name: "legacy.xls", want: FormatXLS},
		{name: "list.csv", want: FormatCSV},
		{name: "list.tsv", want: FormatCSV},
		{name: "blob", data: []byte("PK\x03\x04rest"), want: FormatXLSX},
		{name: "blob", data: append(append([]byte{}, ole2Magic...), 0), want: FormatXLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DetectFormat("notes.txt", []byte("hello"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDecode_Dispatch(t *testing.T) {
	xlsxData := buildXLSX(t, map[string][][]any{
		"Sheet1": {{"Name"}, {"Ann"}},
	}, "Sheet1")

	table, err := Decode("contacts.xlsx", xlsxData, Options{})
	require.NoError(t, err)
	assert.Equal(t, extract.RawTable{{"Name"}, {"Ann"}}, table)

	table, err = Decode("contacts.tsv", []byte("Name\tAge\nAnn\t30\n"), Options{CSV: config.CSVSettings{Delimiter: ","}})
	require.NoError(t, err)
	assert.Equal(t, extract.RawTable{{"Name", "Age"}, {"Ann", "30"}}, table)

	_, err = Decode("broken.xlsx", []byte("nope"), Options{})
	assert.ErrorContains(t, err, "failed to decode broken.xlsx as xlsx")

	assert.True(t, IsSupported("a.CSV"))
	assert.False(t, IsSupported("a.pdf"))
}

func TestCachingDecoder(t *testing.T) {
	calls := 0
	next := FormatDecoderFunc(func(format Format, name string, data []byte, opts Options) (extract.RawTable, error) {
		calls++
		assert.Equal(t, FormatCSV, format)
		return DecodeAs(format, name, data, opts)
	})

	c := NewCachingDecoder(next, time.Minute)
	data := []byte("Name\nAnn\n")

	first, err := c.Decode("a.csv", data, Options{})
	require.NoError(t, err)
	second, err := c.Decode("b.csv", data, Options{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	// Different CSV settings are a different entry.
	_, err = c.Decode("a.csv", data, Options{CSV: config.CSVSettings{Delimiter: ";"}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)

	c.Flush()
	_, err = c.Decode("a.csv", data, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCachingDecoder_ErrorsNotCached(t *testing.T) {
	calls := 0
	next := FormatDecoderFunc(func(format Format, name string, data []byte, opts Options) (extract.RawTable, error) {
		calls++
		return nil, errors.New("boom")
	})

	c := NewCachingDecoder(next, time.Minute)
	for i := 0; i < 2; i++ {
		_, err := c.Decode("a.csv", []byte("x"), Options{})
		require.Error(t, err)
	}
	assert.Equal(t, 2, calls)

	// Undetectable content never reaches the decoder.
	_, err := c.Decode("notes.txt", []byte("hello"), Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Equal(t, 2, calls)
}
