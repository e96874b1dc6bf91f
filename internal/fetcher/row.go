package fetcher

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Row is one data row keyed by column name. Ref is the 1-based data row
// number for tabular files and the array path ("$[0]") for JSON. Err is set
// when the row could not be parsed; later rows are still delivered.
type Row struct {
	Ref    string
	Fields map[string]string
	Err    error
}

// tabular turns header-relative cells into a Row.
func tabular(n int, header, cells []string, trim bool) Row {
	row := Row{Ref: strconv.Itoa(n)}
	if len(cells) > len(header) {
		extra := false
		for _, c := range cells[len(header):] {
			extra = extra || strings.TrimSpace(c) != ""
		}
		if extra {
			row.Err = eris.Errorf("fetcher: row %d has %d fields, header has %d", n, len(cells), len(header))
			return row
		}
	}
	row.Fields = make(map[string]string, len(header))
	for i, col := range header {
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		if trim {
			v = strings.TrimSpace(v)
		}
		row.Fields[col] = v
	}
	return row
}

func cleanHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
	return out
}
