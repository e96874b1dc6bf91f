package dataset

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/fetcher"
	"github.com/sells-group/entity-xref/internal/model"
	"github.com/sells-group/entity-xref/internal/normalize"
)

// Result is the outcome of loading one or more datasets.
type Result struct {
	Records   []model.Record
	Skips     []model.SkipEntry
	RowCounts map[string]int
}

// Loader reads dataset files into records.
type Loader struct {
	// NameColumns overrides the manifest's first name column per dataset.
	NameColumns map[string]string
}

// LoadAll loads every spec in order. Malformed rows are skipped and logged,
// never fatal.
func (l *Loader) LoadAll(ctx context.Context, specs []Spec) (Result, error) {
	res := Result{RowCounts: make(map[string]int)}
	for _, s := range specs {
		recs, skips, rows, err := l.Load(ctx, s)
		if err != nil {
			return Result{}, err
		}
		res.Records = append(res.Records, recs...)
		res.Skips = append(res.Skips, skips...)
		res.RowCounts[s.ID] = rows
	}
	model.SortRecords(res.Records)
	return res, nil
}

// Load reads one dataset and returns its records, skipped rows and total
// data row count.
func (l *Loader) Load(ctx context.Context, s Spec) ([]model.Record, []model.SkipEntry, int, error) {
	log := zap.L().With(zap.String("component", "dataset"), zap.String("dataset", s.ID))

	prov, err := provenance(s)
	if err != nil {
		return nil, nil, 0, err
	}
	cols := s.Columns
	if override := l.NameColumns[s.ID]; override != "" {
		cols.Names = append([]string{override}, cols.Names...)
	}

	var (
		recs  []model.Record
		skips []model.SkipEntry
		rows  int
	)
	err = stream(ctx, s, func(row fetcher.Row) {
		rows++
		rec, reason := mapRow(s, cols, row)
		if reason != "" {
			log.Debug("dataset: skipping row", zap.String("row_ref", row.Ref), zap.String("reason", reason), zap.Error(row.Err))
			skips = append(skips, model.SkipEntry{DatasetID: s.ID, RowRef: row.Ref, Reason: reason})
			return
		}
		rec.Provenance = prov
		recs = append(recs, rec)
	})
	if err != nil {
		return nil, nil, 0, err
	}

	log.Info("dataset: loaded", zap.Int("rows", rows), zap.Int("records", len(recs)), zap.Int("skipped", len(skips)))
	return recs, skips, rows, nil
}

// stream feeds every row of a dataset file to fn.
func stream(ctx context.Context, s Spec, fn func(fetcher.Row)) error {
	var (
		rows <-chan fetcher.Row
		errs <-chan error
	)
	switch s.Format {
	case FormatXLSX:
		rows, errs = fetcher.StreamXLSX(ctx, s.Path, fetcher.XLSXOptions{SheetName: s.Sheet, TrimSpace: true})
	case FormatCSV, FormatTSV, FormatJSON:
		f, err := os.Open(s.Path)
		if err != nil {
			return eris.Wrapf(err, "dataset: open %s", s.Path)
		}
		defer f.Close() //nolint:errcheck
		switch s.Format {
		case FormatJSON:
			rows, errs = fetcher.StreamJSON(ctx, f)
		case FormatTSV:
			rows, errs = fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{Delimiter: '\t', TrimSpace: true, LazyQuotes: true})
		default:
			rows, errs = fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true})
		}
	default:
		return eris.Errorf("dataset: %s has unsupported format %q", s.ID, s.Format)
	}

	for row := range rows {
		fn(row)
	}
	if err := <-errs; err != nil {
		return eris.Wrapf(err, "dataset: read %s", s.ID)
	}
	return nil
}

// mapRow applies the column mapping. A non-empty reason means the row is
// skipped.
func mapRow(s Spec, cols Columns, row fetcher.Row) (model.Record, string) {
	if row.Err != nil {
		return model.Record{}, model.SkipParseError
	}

	present := false
	name := ""
	for _, c := range cols.Names {
		v, ok := row.Fields[c]
		present = present || ok
		if strings.TrimSpace(v) != "" {
			name = strings.TrimSpace(v)
			break
		}
	}
	switch {
	case !present:
		return model.Record{}, model.SkipMissingColumn
	case name == "":
		return model.Record{}, model.SkipMissingName
	}

	rec := model.Record{
		DatasetID:    s.ID,
		RowRef:       row.Ref,
		Name:         name,
		Address:      joinNonEmpty(row.Fields, cols.Address, cols.City, cols.State, cols.Zip),
		State:        column(row.Fields, cols.State),
		Country:      column(row.Fields, cols.Country),
		Jurisdiction: column(row.Fields, cols.Jurisdiction),
		EntityType:   model.ParseEntityType(s.EntityType),
		Fields:       row.Fields,
	}
	if t := column(row.Fields, cols.EntityType); t != "" {
		rec.EntityType = model.ParseEntityType(t)
	}
	for kind, col := range cols.Identifiers {
		if id, ok := normalize.Identifier(kind, row.Fields[col]); ok {
			rec.Identifiers = append(rec.Identifiers, id)
		}
	}
	sort.Slice(rec.Identifiers, func(i, j int) bool {
		a, b := rec.Identifiers[i], rec.Identifiers[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Value < b.Value
	})
	return rec, ""
}

func column(fields map[string]string, name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fields[name])
}

func joinNonEmpty(fields map[string]string, cols ...string) string {
	var parts []string
	for _, c := range cols {
		if v := column(fields, c); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// provenance merges the manifest entry over the file's sidecar. Files
// without a sidecar are hashed on load.
func provenance(s Spec) (model.Provenance, error) {
	p, ok, err := fetcher.ReadSidecar(s.Path)
	if err != nil {
		return model.Provenance{}, err
	}
	if !ok {
		n, sum, err := fetcher.HashFile(s.Path)
		if err != nil {
			return model.Provenance{}, eris.Wrapf(err, "dataset: %s", s.ID)
		}
		p = model.Provenance{Bytes: n, SHA256: sum}
	}
	p.Path = s.Path
	if s.SourceURL != "" {
		p.SourceURL = s.SourceURL
	}
	if len(s.Lineage) > 0 {
		p.Lineage = append([]string(nil), s.Lineage...)
	}
	if s.Reliability != "" {
		p.Reliability = s.Reliability
	}
	if s.Official {
		p.Official = true
	}
	return p, nil
}
