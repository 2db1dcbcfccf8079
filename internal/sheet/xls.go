package sheet

import (
	"fmt"
	"io"

	"github.com/extrame/xls"

	"github.com/ginjaninja78/rowimport/internal/config"
	"github.com/ginjaninja78/rowimport/internal/extract"
)

// xlsCharset is passed to the BIFF reader for non-Unicode string records.
const xlsCharset = "utf-8"

// DecodeXLS reads one worksheet of a legacy .xls workbook.
func DecodeXLS(r io.ReadSeeker, sheetName string, settings config.WorkbookSettings) (table extract.RawTable, err error) {
	// The BIFF reader panics on some truncated files.
	defer func() {
		if p := recover(); p != nil {
			table, err = nil, fmt.Errorf("failed to read workbook: %v", p)
		}
	}()

	wb, err := xls.OpenReader(r, xlsCharset)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	ws, err := pickXLSSheet(wb, sheetName)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}

		cells := make([]string, row.LastCol())
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}

	return workbookRows(rows, settings), nil
}

func pickXLSSheet(wb *xls.WorkBook, sheetName string) (*xls.WorkSheet, error) {
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	if sheetName == "" {
		ws := wb.GetSheet(0)
		if ws == nil {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		return ws, nil
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws != nil && ws.Name == sheetName {
			return ws, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
}
