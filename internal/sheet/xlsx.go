package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
)

// DecodeXLSX reads one worksheet of an .xlsx workbook.
//
// Cells are returned as their formatted text, the way the sheet displays
// them. Trailing empty cells are dropped by excelize. Interior blank rows are
// kept unless settings ask to skip them, so table row i is sheet row i+1.
func DecodeXLSX(r io.Reader, sheetName string, settings config.WorkbookSettings) (extract.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	name, err := pickXLSXSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return workbookRows(rows, settings), nil
}

// XLSXSheets lists the worksheet names of an .xlsx workbook in order.
func XLSXSheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

func pickXLSXSheet(f *excelize.File, sheetName string) (string, error) {
	if sheetName == "" {
		name := f.GetSheetName(0)
		if name == "" {
			return "", fmt.Errorf("workbook has no sheets")
		}
		return name, nil
	}

	idx, err := f.GetSheetIndex(sheetName)
	if err != nil || idx < 0 {
		return "", fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}
	return sheetName, nil
}
