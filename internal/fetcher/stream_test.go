package fetcher

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func collect(t *testing.T) func(rows <-chan Row, errs <-chan error) ([]Row, error) {
	t.Helper()
	return func(rows <-chan Row, errs <-chan error) ([]Row, error) {
		var out []Row
		for r := range rows {
			out = append(out, r)
		}
		return out, <-errs
	}
}

func TestStreamCSV(t *testing.T) {
	in := "\ufeffname , ein\n Acme Corp , 12-3456789\nBeta LLC\n"
	rows, err := collect(t)(StreamCSV(context.Background(), strings.NewReader(in), CSVOptions{TrimSpace: true}))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "1", rows[0].Ref)
	assert.Equal(t, map[string]string{"name": "Acme Corp", "ein": "12-3456789"}, rows[0].Fields)
	assert.Equal(t, map[string]string{"name": "Beta LLC", "ein": ""}, rows[1].Fields)
}

func TestStreamCSV_BadRowsDoNotAbort(t *testing.T) {
	in := "name,ein\nAcme,1\nBad\"Name,2\nToo,many,cells\nBeta,3\n"
	rows, err := collect(t)(StreamCSV(context.Background(), strings.NewReader(in), CSVOptions{}))
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.NoError(t, rows[0].Err)
	assert.Equal(t, "2", rows[1].Ref)
	assert.Error(t, rows[1].Err)
	assert.Equal(t, "3", rows[2].Ref)
	assert.Error(t, rows[2].Err)
	assert.Equal(t, "4", rows[3].Ref)
	assert.Equal(t, "Beta", rows[3].Fields["name"])
}

func TestStreamCSV_Delimiter(t *testing.T) {
	rows, err := collect(t)(StreamCSV(context.Background(), strings.NewReader("name|state\nAcme|DE\n"), CSVOptions{Delimiter: '|'}))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "DE", rows[0].Fields["state"])
}

func TestStreamCSV_Empty(t *testing.T) {
	_, err := collect(t)(StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{}))
	assert.Error(t, err)
}

func TestStreamCSV_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := collect(t)(StreamCSV(ctx, strings.NewReader("name\nAcme\n"), CSVOptions{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStreamJSON(t *testing.T) {
	in := `[
		{"name": "Acme Corp.", "ein": "12-3456789", "address": {"city": "Dover", "zip": 19901}, "active": true},
		42,
		{"name": null, "tags": ["a", "b"]}
	]`
	rows, err := collect(t)(StreamJSON(context.Background(), strings.NewReader(in)))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "$[0]", rows[0].Ref)
	assert.Equal(t, map[string]string{
		"name": "Acme Corp.", "ein": "12-3456789", "address.city": "Dover", "address.zip": "19901", "active": "true",
	}, rows[0].Fields)
	assert.Equal(t, "$[1]", rows[1].Ref)
	assert.Error(t, rows[1].Err)
	assert.Equal(t, map[string]string{"name": "", "tags": `["a","b"]`}, rows[2].Fields)
}

func TestStreamJSON_NotArray(t *testing.T) {
	_, err := collect(t)(StreamJSON(context.Background(), strings.NewReader(`{"name":"Acme"}`)))
	assert.Error(t, err)
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				row.AddCell().SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "test.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestStreamXLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Registry": {{"Entity Name", "EIN"}, {"Acme Corporation", "12-3456789"}, {"Beta LLC", ""}},
	})
	rows, err := collect(t)(StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Registry"}))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0].Ref)
	assert.Equal(t, "Acme Corporation", rows[0].Fields["Entity Name"])
	assert.Equal(t, "12-3456789", rows[0].Fields["EIN"])

	_, err = collect(t)(StreamXLSX(context.Background(), path, XLSXOptions{SheetName: "Nope"}))
	assert.Error(t, err)
}
