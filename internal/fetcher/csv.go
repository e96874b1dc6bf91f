package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // 0 = none
	LazyQuotes bool
	TrimSpace  bool
}

// StreamCSV reads a headed CSV file and sends one Row per data line.
// Malformed lines arrive as rows with Err set. Read failures and
// cancellation end the stream with an error. Both channels are closed when
// processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan Row, <-chan error) {
	rowCh := make(chan Row, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.Comment = opts.Comment
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		var header []string
		n := 0
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "fetcher: csv read canceled")
				return
			}

			cells, err := reader.Read()
			if err == io.EOF {
				if header == nil {
					errCh <- eris.New("fetcher: csv has no header row")
				}
				return
			}

			var row Row
			var parseErr *csv.ParseError
			switch {
			case err != nil && errors.As(err, &parseErr) && header != nil:
				n++
				row = Row{Ref: strconv.Itoa(n), Err: eris.Wrapf(err, "fetcher: csv row %d", n)}
			case err != nil:
				errCh <- eris.Wrap(err, "fetcher: csv read")
				return
			case header == nil:
				header = cleanHeader(cells)
				continue
			default:
				n++
				row = tabular(n, header, cells, opts.TrimSpace)
			}

			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "fetcher: csv read canceled")
				return
			}
		}
	}()

	return rowCh, errCh
}
