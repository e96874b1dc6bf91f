package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetName string // default: first sheet
	TrimSpace bool
}

// StreamXLSX reads a worksheet whose first row is the header and sends one
// Row per following row. Both channels are closed when processing completes.
func StreamXLSX(ctx context.Context, path string, opts XLSXOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "fetcher: open xlsx")
			return
		}
		sheet, err := getSheet(f, opts.SheetName)
		if err != nil {
			errCh <- err
			return
		}
		if len(sheet.Rows) == 0 {
			errCh <- eris.Errorf("fetcher: sheet %q has no header row", sheet.Name)
			return
		}

		header := cleanHeader(rowToStrings(sheet.Rows[0]))
		for i, r := range sheet.Rows[1:] {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "fetcher: xlsx read canceled")
				return
			}
			select {
			case rowCh <- tabular(i+1, header, rowToStrings(r), opts.TrimSpace):
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: xlsx read canceled")
				return
			}
		}
	}()

	return rowCh, errCh
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("fetcher: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
