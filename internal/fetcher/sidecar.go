package fetcher

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entity-xref/internal/model"
)

// SidecarSuffix is appended to a dataset file name to name its provenance
// sidecar.
const SidecarSuffix = ".provenance.json"

// SidecarPath returns the sidecar path for a dataset file.
func SidecarPath(datasetPath string) string {
	return datasetPath + SidecarSuffix
}

// WriteSidecar writes the provenance sidecar for a dataset file.
func WriteSidecar(datasetPath string, p model.Provenance) error {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return eris.Wrap(err, "fetcher: encode provenance")
	}
	path := SidecarPath(datasetPath)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return eris.Wrap(err, "fetcher: create sidecar temp file")
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		return eris.Wrap(err, "fetcher: write sidecar")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "fetcher: close sidecar")
	}
	return eris.Wrapf(os.Rename(tmpPath, path), "fetcher: move sidecar to %s", path)
}

// ReadSidecar loads a dataset's provenance sidecar. ok is false when the
// dataset has none.
func ReadSidecar(datasetPath string) (model.Provenance, bool, error) {
	f, err := os.Open(SidecarPath(datasetPath))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Provenance{}, false, nil
	}
	if err != nil {
		return model.Provenance{}, false, eris.Wrap(err, "fetcher: open sidecar")
	}
	defer f.Close() //nolint:errcheck

	p, err := DecodeJSONObject[model.Provenance](f)
	if err != nil {
		return model.Provenance{}, false, eris.Wrapf(err, "fetcher: sidecar of %s", datasetPath)
	}
	return *p, true, nil
}
