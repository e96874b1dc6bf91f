package model

// DatasetRef lists the records of one dataset that belong to a cross-referenced entity.
type DatasetRef struct {
	DatasetID string   `json:"dataset_id"`
	RecordIDs []string `json:"record_ids"`
}

// MatchQuality summarizes how strongly the members of a cross-reference match.
type MatchQuality struct {
	WeakestScore     float64  `json:"weakest_score"`
	MeanScore        float64  `json:"mean_score"`
	HardIDAgreements int      `json:"hard_id_agreements"`
	AgreedKinds      []string `json:"agreed_kinds,omitempty"`
	// CrossSourceKinds are the agreed hard-id kinds seen on pairs whose
	// records sit in different independent source groups.
	CrossSourceKinds []string `json:"cross_source_kinds,omitempty"`
	// IndependentSources is the number of lineage-disjoint source groups.
	IndependentSources int  `json:"independent_sources"`
	OfficialSource     bool `json:"official_source"`
	Conflicted         bool `json:"conflicted"`
}

// CrossReference links a canonical entity to the datasets it appears in.
type CrossReference struct {
	ID            string       `json:"id"`
	CanonicalID   string       `json:"canonical_id"`
	CanonicalName string       `json:"canonical_name"`
	Datasets      []DatasetRef `json:"datasets"`
	Quality       MatchQuality `json:"quality"`
	Confidence    *Confidence  `json:"confidence,omitempty"`
}

// DatasetIDs returns the dataset ids in stored order.
func (x CrossReference) DatasetIDs() []string {
	out := make([]string, len(x.Datasets))
	for i, d := range x.Datasets {
		out[i] = d.DatasetID
	}
	return out
}

// RecordIDs returns every referenced record id.
func (x CrossReference) RecordIDs() []string {
	var out []string
	for _, d := range x.Datasets {
		out = append(out, d.RecordIDs...)
	}
	return out
}
