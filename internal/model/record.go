// Package model defines the records, scores, entities and findings that flow
// between the entity-resolution pipeline stages.
package model

import (
	"sort"
	"strings"
)

// EntityType classifies what kind of real-world entity a record names.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityUnknown      EntityType = "unknown"
)

// ParseEntityType maps free-form type hints ("individual", "org", "company")
// onto an EntityType. Unrecognized hints yield EntityUnknown.
func ParseEntityType(s string) EntityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "person", "individual", "ind", "people", "natural_person":
		return EntityPerson
	case "organization", "organisation", "org", "company", "corporation", "business", "committee":
		return EntityOrganization
	default:
		return EntityUnknown
	}
}

// Identifier is one extracted identifier value of a given kind (ein, phone, ...).
type Identifier struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Record is one row from a source dataset. Records are immutable once ingested.
type Record struct {
	DatasetID    string            `json:"dataset_id"`
	RowRef       string            `json:"row_ref"`
	Name         string            `json:"name"`
	Address      string            `json:"address,omitempty"`
	State        string            `json:"state,omitempty"`
	Country      string            `json:"country,omitempty"`
	Jurisdiction string            `json:"jurisdiction,omitempty"`
	EntityType   EntityType        `json:"entity_type"`
	Identifiers  []Identifier      `json:"identifiers,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Provenance   Provenance        `json:"provenance"`
}

// ID returns the stable record identifier "<dataset>#<row_ref>".
func (r Record) ID() string {
	return RecordID(r.DatasetID, r.RowRef)
}

// RecordID joins a dataset id and row reference into a record id.
func RecordID(datasetID, rowRef string) string {
	return datasetID + "#" + rowRef
}

// SplitRecordID is the inverse of RecordID. ok is false when the id has no
// dataset separator.
func SplitRecordID(id string) (datasetID, rowRef string, ok bool) {
	i := strings.Index(id, "#")
	if i <= 0 || i == len(id)-1 {
		return "", "", false
	}
	return id[:i], id[i+1:], true
}

// IdentifierValues returns the sorted distinct values of the given kind.
func (r Record) IdentifierValues(kind string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range r.Identifiers {
		if id.Kind == kind && id.Value != "" && !seen[id.Value] {
			seen[id.Value] = true
			out = append(out, id.Value)
		}
	}
	sort.Strings(out)
	return out
}

// SortRecords orders records by id, which is the deterministic ordering used
// by every stage that iterates records.
func SortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].ID() < recs[j].ID() })
}

// SkipEntry records a malformed input row that was skipped during ingestion.
type SkipEntry struct {
	DatasetID string `json:"dataset_id"`
	RowRef    string `json:"row_ref"`
	Reason    string `json:"reason"`
}

// Skip reasons.
const (
	SkipMissingName   = "missing_name"
	SkipParseError    = "parse_error"
	SkipMissingColumn = "missing_column"
	SkipUnmatchable   = "unmatchable_name"
)
