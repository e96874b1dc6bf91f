// Package dataset reads the investigation manifest and turns dataset files
// into typed records through an explicit column mapping.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/entity-xref/internal/model"
)

// Dataset formats.
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// Columns maps a dataset's columns onto record fields.
type Columns struct {
	// Names are tried in order; the first non-empty value wins.
	Names        []string          `yaml:"names"`
	Address      string            `yaml:"address"`
	City         string            `yaml:"city"`
	State        string            `yaml:"state"`
	Zip          string            `yaml:"zip"`
	Country      string            `yaml:"country"`
	Jurisdiction string            `yaml:"jurisdiction"`
	EntityType   string            `yaml:"entity_type"`
	Identifiers  map[string]string `yaml:"identifiers"` // kind -> column
}

// Spec describes one dataset of the investigation.
type Spec struct {
	ID          string   `yaml:"id"`
	Path        string   `yaml:"path"`
	Format      string   `yaml:"format"`
	Sheet       string   `yaml:"sheet"`
	SourceURL   string   `yaml:"source_url"`
	Reliability string   `yaml:"reliability"`
	Official    bool     `yaml:"official"`
	Lineage     []string `yaml:"lineage"`
	EntityType  string   `yaml:"entity_type"`
	Columns     Columns  `yaml:"columns"`
}

// Manifest is the parsed investigation.yaml.
type Manifest struct {
	Name     string `yaml:"name"`
	Datasets []Spec `yaml:"datasets"`

	dir string
}

// UnknownDatasetError names datasets that are absent from the manifest or
// whose files do not exist.
type UnknownDatasetError struct {
	Unknown []string
	Missing []string // "id (path)"
}

func (e *UnknownDatasetError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, "not in manifest: "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, "file not found: "+strings.Join(e.Missing, ", "))
	}
	return "dataset: " + strings.Join(parts, "; ")
}

// LoadManifest reads a manifest. Relative dataset paths resolve against
// datasetsDir.
func LoadManifest(path, datasetsDir string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrapf(err, "dataset: parse manifest %s", path)
	}
	m.dir = datasetsDir
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) normalize() error {
	var problems []string
	seen := make(map[string]bool)
	for i := range m.Datasets {
		d := &m.Datasets[i]
		d.ID = strings.TrimSpace(d.ID)
		switch {
		case d.ID == "":
			problems = append(problems, fmt.Sprintf("datasets[%d]: id is required", i))
			continue
		case strings.Contains(d.ID, "#"):
			problems = append(problems, fmt.Sprintf("dataset %s: id must not contain '#'", d.ID))
		case seen[d.ID]:
			problems = append(problems, fmt.Sprintf("dataset %s: duplicate id", d.ID))
		}
		seen[d.ID] = true

		if d.Path == "" {
			problems = append(problems, fmt.Sprintf("dataset %s: path is required", d.ID))
		} else if !filepath.IsAbs(d.Path) {
			d.Path = filepath.Join(m.dir, d.Path)
		}
		if d.Format == "" {
			d.Format = inferFormat(d.Path)
		}
		d.Format = strings.ToLower(d.Format)
		switch d.Format {
		case FormatCSV, FormatTSV, FormatJSON, FormatXLSX:
		default:
			problems = append(problems, fmt.Sprintf("dataset %s: unsupported format %q", d.ID, d.Format))
		}
		d.Reliability = strings.ToUpper(strings.TrimSpace(d.Reliability))
		if d.Reliability == "" {
			d.Reliability = model.ReliabilityF
		}
		if model.ReliabilityRank(d.Reliability) == 5 && d.Reliability != model.ReliabilityF {
			problems = append(problems, fmt.Sprintf("dataset %s: reliability must be A-F, got %q", d.ID, d.Reliability))
		}
		if len(d.Columns.Names) == 0 {
			d.Columns.Names = []string{"name"}
		}
	}
	if len(problems) > 0 {
		return eris.Errorf("dataset: invalid manifest: %s", strings.Join(problems, "; "))
	}
	return nil
}

func inferFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// Spec returns the dataset with the given id.
func (m *Manifest) Spec(id string) (Spec, bool) {
	for _, d := range m.Datasets {
		if d.ID == id {
			return d, true
		}
	}
	return Spec{}, false
}

// IDs returns every dataset id in manifest order.
func (m *Manifest) IDs() []string {
	out := make([]string, len(m.Datasets))
	for i, d := range m.Datasets {
		out[i] = d.ID
	}
	return out
}

// Select returns the named datasets, or all when ids is empty. Every
// selected dataset's file must exist.
func (m *Manifest) Select(ids []string) ([]Spec, error) {
	var out []Spec
	uerr := &UnknownDatasetError{}
	if len(ids) == 0 {
		out = append(out, m.Datasets...)
	} else {
		for _, id := range ids {
			d, ok := m.Spec(id)
			if !ok {
				uerr.Unknown = append(uerr.Unknown, id)
				continue
			}
			out = append(out, d)
		}
	}
	for _, d := range out {
		if _, err := os.Stat(d.Path); err != nil {
			uerr.Missing = append(uerr.Missing, fmt.Sprintf("%s (%s)", d.ID, d.Path))
		}
	}
	if len(uerr.Unknown) > 0 || len(uerr.Missing) > 0 {
		sort.Strings(uerr.Unknown)
		return nil, uerr
	}
	return out, nil
}
