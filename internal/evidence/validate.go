package evidence

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/entity-xref/internal/model"
)

// Issue kinds reported by Validate.
const (
	IssueMissingDataset = "missing_dataset"
	IssueMissingRecord  = "missing_record"
	IssueFieldMismatch  = "field_mismatch"
	IssueRowCountShrunk = "row_count_shrunk"
	IssueReadError      = "read_error"
)

// Source re-reads raw datasets for validation.
type Source interface {
	HasDataset(datasetID string) bool
	Record(recordID string) (model.Record, bool, error)
	RowCounter
}

// Issue is one problem found while validating a chain.
type Issue struct {
	ChainID  string `json:"chain_id"`
	Hop      int    `json:"hop"` // -1 for the anchor
	RecordID string `json:"record_id,omitempty"`
	Dataset  string `json:"dataset,omitempty"`
	Kind     string `json:"kind"`
	Field    string `json:"field,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Report is the validation result for one chain.
type Report struct {
	ChainID        string         `json:"chain_id"`
	Valid          bool           `json:"valid"`
	CheckedRecords int            `json:"checked_records"`
	RowCounts      map[string]int `json:"row_counts,omitempty"`
	Issues         []Issue        `json:"issues"`
}

// Validate re-reads every record a chain cites and compares the cited field
// values and dataset row counts with the raw data. Problems are collected,
// never returned as errors.
func Validate(c model.EvidenceChain, src Source) Report {
	rep := Report{ChainID: c.ID, RowCounts: make(map[string]int), Issues: []Issue{}}
	add := func(is Issue) {
		is.ChainID = c.ID
		rep.Issues = append(rep.Issues, is)
	}

	check := func(hop int, recordID string, fields map[string]string) {
		ds, _, ok := model.SplitRecordID(recordID)
		if !ok {
			add(Issue{Hop: hop, RecordID: recordID, Kind: IssueMissingRecord, Detail: "malformed record id"})
			return
		}
		if !src.HasDataset(ds) {
			add(Issue{Hop: hop, RecordID: recordID, Dataset: ds, Kind: IssueMissingDataset})
			return
		}
		rec, found, err := src.Record(recordID)
		if err != nil {
			add(Issue{Hop: hop, RecordID: recordID, Dataset: ds, Kind: IssueReadError, Detail: err.Error()})
			return
		}
		if !found {
			add(Issue{Hop: hop, RecordID: recordID, Dataset: ds, Kind: IssueMissingRecord})
			return
		}
		rep.CheckedRecords++

		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if got := FieldValue(rec, k); got != fields[k] {
				add(Issue{Hop: hop, RecordID: recordID, Dataset: ds, Kind: IssueFieldMismatch, Field: k, Expected: fields[k], Actual: got})
			}
		}
	}

	check(-1, c.AnchorRecord, c.AnchorFields)
	for i, h := range c.Hops {
		check(i, h.ToRecord, h.CitedFields)
	}

	datasets := make([]string, 0, len(c.DatasetRowCounts))
	for ds := range c.DatasetRowCounts {
		datasets = append(datasets, ds)
	}
	sort.Strings(datasets)
	for _, ds := range datasets {
		if !src.HasDataset(ds) {
			continue
		}
		n, err := src.RowCount(ds)
		if err != nil {
			add(Issue{Hop: -1, Dataset: ds, Kind: IssueReadError, Detail: err.Error()})
			continue
		}
		rep.RowCounts[ds] = n
		if want := c.DatasetRowCounts[ds]; n < want {
			add(Issue{Hop: -1, Dataset: ds, Kind: IssueRowCountShrunk,
				Expected: fmt.Sprint(want), Actual: fmt.Sprint(n),
				Detail: "dataset has fewer rows than when the chain was built"})
		}
	}

	rep.Valid = len(rep.Issues) == 0
	if !rep.Valid {
		zap.L().Warn("evidence: chain failed validation",
			zap.String("chain_id", c.ID), zap.Int("issues", len(rep.Issues)))
	}
	return rep
}

// ValidateAll validates every chain in order.
func ValidateAll(chains []model.EvidenceChain, src Source) []Report {
	out := make([]Report, len(chains))
	for i, c := range chains {
		out[i] = Validate(c, src)
	}
	return out
}
