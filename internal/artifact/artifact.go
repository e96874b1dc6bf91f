// Package artifact reads and writes the JSON files that carry data between
// pipeline stages. Every write is complete-then-rename so a crash never
// leaves a truncated artifact behind.
package artifact

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/entity-xref/internal/model"
)

// SchemaVersion is the envelope version written by this build.
const SchemaVersion = 1

// Artifact file names.
const (
	CanonicalFile      = "canonical.json"
	BlockingReportFile = "blocking_report.json"
	XrefsFile          = "xrefs.json"
	ChainsFile         = "chains.json"
	ScoringLogFile     = "scoring_log.jsonl"
	SkipLogFile        = "skip_log.jsonl"
	VerifyReportFile   = "verify_report.json"
)

// Meta is the envelope header.
type Meta struct {
	SchemaVersion int       `json:"schema_version"`
	Stage         string    `json:"stage"`
	RunID         string    `json:"run_id"`
	GeneratedAt   time.Time `json:"generated_at"`
}

type envelope struct {
	Meta
	Data json.RawMessage `json:"data"`
}

// MissingArtifactError reports a precondition artifact that does not exist.
type MissingArtifactError struct {
	Stage string
	Path  string
	Hint  string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("artifact: %s not found (%s output); %s", e.Path, e.Stage, e.Hint)
}

var hints = map[string]string{
	CanonicalFile:      "run entity resolution first: xref resolve",
	BlockingReportFile: "run entity resolution first: xref resolve",
	XrefsFile:          "run cross-referencing first: xref crossref",
	ChainsFile:         "build evidence chains first: xref chain build",
}

var producers = map[string]string{
	CanonicalFile:      model.StageResolve,
	BlockingReportFile: model.StageResolve,
	SkipLogFile:        model.StageResolve,
	XrefsFile:          model.StageCrossref,
	ChainsFile:         model.StageChain,
	ScoringLogFile:     model.StageConfidence,
	VerifyReportFile:   model.StageVerify,
}

// Dir is an artifacts directory.
type Dir struct {
	root string
	now  func() time.Time
}

// NewDir returns a Dir rooted at path. The directory is created on first write.
func NewDir(path string) *Dir {
	return &Dir{root: path, now: time.Now}
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// Path returns the full path of an artifact file.
func (d *Dir) Path(name string) string { return filepath.Join(d.root, name) }

// Exists reports whether an artifact file is present.
func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}

// Write wraps data in an envelope and writes it atomically.
func (d *Dir) Write(name, runID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return eris.Wrapf(err, "artifact: encode %s", name)
	}
	env := envelope{
		Meta: Meta{SchemaVersion: SchemaVersion, Stage: producers[name], RunID: runID, GeneratedAt: d.now().UTC()},
		Data: raw,
	}
	return d.writeAtomic(name, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	})
}

// Read decodes an artifact's data into v. A missing file yields a
// *MissingArtifactError.
func (d *Dir) Read(name string, v any) (Meta, error) {
	path := d.Path(name)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Meta{}, d.missing(name)
	}
	if err != nil {
		return Meta{}, eris.Wrapf(err, "artifact: read %s", path)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Meta{}, eris.Wrapf(err, "artifact: decode %s", path)
	}
	if env.SchemaVersion != SchemaVersion {
		return env.Meta, eris.Errorf("artifact: %s has schema_version %d, want %d", path, env.SchemaVersion, SchemaVersion)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return env.Meta, eris.Wrapf(err, "artifact: decode %s data", path)
	}
	return env.Meta, nil
}

func (d *Dir) missing(name string) error {
	hint := hints[name]
	if hint == "" {
		hint = "run the producing stage first"
	}
	return &MissingArtifactError{Stage: producers[name], Path: d.Path(name), Hint: hint}
}

// IsMissing reports whether err is a *MissingArtifactError.
func IsMissing(err error) bool {
	var target *MissingArtifactError
	return errors.As(err, &target)
}

// WriteJSONL atomically replaces a JSON-lines file.
func WriteJSONL[T any](d *Dir, name string, rows []T) error {
	return d.writeAtomic(name, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendJSONL appends rows to a JSON-lines file, creating it if needed.
func AppendJSONL[T any](d *Dir, name string, rows []T) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create %s", d.root)
	}
	f, err := os.OpenFile(d.Path(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "artifact: open %s", name)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			_ = f.Close()
			return eris.Wrapf(err, "artifact: append %s", name)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "artifact: flush %s", name)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "artifact: sync %s", name)
	}
	return eris.Wrapf(f.Close(), "artifact: close %s", name)
}

// ReadJSONL decodes every line of a JSON-lines file. A missing file yields
// no rows.
func ReadJSONL[T any](d *Dir, name string) ([]T, error) {
	f, err := os.Open(d.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: open %s", name)
	}
	defer f.Close() //nolint:errcheck

	var out []T
	dec := json.NewDecoder(f)
	for dec.More() {
		var row T
		if err := dec.Decode(&row); err != nil {
			return out, eris.Wrapf(err, "artifact: decode %s line %d", name, len(out)+1)
		}
		out = append(out, row)
	}
	return out, nil
}

// writeAtomic writes to a temp file in the artifacts directory, syncs it and
// renames it over the target.
func (d *Dir) writeAtomic(name string, fill func(*bufio.Writer) error) error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create %s", d.root)
	}
	tmp, err := os.CreateTemp(d.root, name+".tmp.*")
	if err != nil {
		return eris.Wrapf(err, "artifact: create temp for %s", name)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		return eris.Wrapf(err, "artifact: encode %s", name)
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "artifact: write %s", name)
	}
	if err := tmp.Sync(); err != nil {
		return eris.Wrapf(err, "artifact: sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "artifact: close %s", name)
	}
	if err := os.Rename(tmpPath, d.Path(name)); err != nil {
		return eris.Wrapf(err, "artifact: replace %s", name)
	}
	return nil
}
