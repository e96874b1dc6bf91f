package dataset

import (
	"context"
	"os"
	"sync"

	"github.com/sells-group/entity-xref/internal/model"
)

// Source re-reads raw dataset files on demand, loading each dataset at most
// once. It serves chain validation and never consults pipeline artifacts.
type Source struct {
	ctx      context.Context
	manifest *Manifest
	loader   *Loader

	mu     sync.Mutex
	loaded map[string]*loadedDataset
}

type loadedDataset struct {
	records map[string]model.Record
	rows    int
	err     error
}

// NewSource creates a Source over a manifest.
func NewSource(ctx context.Context, m *Manifest, l *Loader) *Source {
	return &Source{ctx: ctx, manifest: m, loader: l, loaded: make(map[string]*loadedDataset)}
}

// HasDataset reports whether the manifest lists the dataset and its file
// exists.
func (s *Source) HasDataset(id string) bool {
	spec, ok := s.manifest.Spec(id)
	if !ok {
		return false
	}
	_, err := os.Stat(spec.Path)
	return err == nil
}

// Record re-reads the record with the given id.
func (s *Source) Record(recordID string) (model.Record, bool, error) {
	ds, _, ok := model.SplitRecordID(recordID)
	if !ok {
		return model.Record{}, false, nil
	}
	d := s.dataset(ds)
	if d.err != nil {
		return model.Record{}, false, d.err
	}
	rec, found := d.records[recordID]
	return rec, found, nil
}

// RowCount returns the dataset's current data row count.
func (s *Source) RowCount(id string) (int, error) {
	d := s.dataset(id)
	return d.rows, d.err
}

func (s *Source) dataset(id string) *loadedDataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.loaded[id]; ok {
		return d
	}
	d := &loadedDataset{records: make(map[string]model.Record)}
	spec, ok := s.manifest.Spec(id)
	if !ok {
		d.err = &UnknownDatasetError{Unknown: []string{id}}
	} else {
		recs, _, rows, err := s.loader.Load(s.ctx, spec)
		d.rows, d.err = rows, err
		for _, r := range recs {
			d.records[r.ID()] = r
		}
	}
	s.loaded[id] = d
	return d
}
