package model

// MemberRecord is one record belonging to a canonical entity.
type MemberRecord struct {
	RecordID  string `json:"record_id"`
	DatasetID string `json:"dataset_id"`
	Name      string `json:"name"`
	// Similarity is the member's best direct score against another member
	// (1.0 for singletons).
	Similarity float64 `json:"similarity"`
}

// PairScore is a direct pairwise score between two cluster members.
type PairScore struct {
	A               string   `json:"a"`
	B               string   `json:"b"`
	Score           float64  `json:"score"`
	HardIDAgreement []string `json:"hard_id_agreement,omitempty"`
	LinkField       string   `json:"link_field,omitempty"`
	MatchType       string   `json:"match_type,omitempty"`
}

// IdentifierConflict records two or more distinct values of one hard
// identifier kind inside one cluster.
type IdentifierConflict struct {
	Kind    string              `json:"kind"`
	Values  []string            `json:"values"`
	Sources map[string][]string `json:"sources"` // value -> record ids
}

// CanonicalEntity is a cluster of records resolved to one real-world entity.
type CanonicalEntity struct {
	CanonicalID     string               `json:"canonical_id"`
	CanonicalName   string               `json:"canonical_name"`
	NormalizedName  string               `json:"normalized_name"`
	EntityType      EntityType           `json:"entity_type"`
	Members         []MemberRecord       `json:"members"`
	Identifiers     map[string][]string  `json:"identifiers,omitempty"`
	PairScores      []PairScore          `json:"pair_scores,omitempty"`
	Flagged         bool                 `json:"flagged"`
	Conflicts       []IdentifierConflict `json:"conflicts,omitempty"`
	ConfidenceBasis string               `json:"confidence_basis"`
}

// MemberIDs returns the member record ids in stored order.
func (e CanonicalEntity) MemberIDs() []string {
	out := make([]string, len(e.Members))
	for i, m := range e.Members {
		out[i] = m.RecordID
	}
	return out
}

// HasMember reports whether recordID belongs to this entity.
func (e CanonicalEntity) HasMember(recordID string) bool {
	for _, m := range e.Members {
		if m.RecordID == recordID {
			return true
		}
	}
	return false
}

// PairScore looks up the stored direct score between two members.
func (e CanonicalEntity) PairScore(a, b string) (PairScore, bool) {
	if b < a {
		a, b = b, a
	}
	for _, p := range e.PairScores {
		if p.A == a && p.B == b {
			return p, true
		}
	}
	return PairScore{}, false
}

// CandidateLink is an unmerged wide-net link between two entities.
type CandidateLink struct {
	FromEntity string  `json:"from_entity"`
	ToEntity   string  `json:"to_entity"`
	FromRecord string  `json:"from_record"`
	ToRecord   string  `json:"to_record"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
}

// CanonicalMap is the output of entity resolution.
type CanonicalMap struct {
	Entities       []CanonicalEntity `json:"entities"`
	CandidateLinks []CandidateLink   `json:"candidate_links,omitempty"`
	Records        []Record          `json:"records"`
}

// RecordIndex returns records keyed by id.
func (c CanonicalMap) RecordIndex() map[string]Record {
	out := make(map[string]Record, len(c.Records))
	for _, r := range c.Records {
		out[r.ID()] = r
	}
	return out
}

// EntityIndex returns entities keyed by canonical id.
func (c CanonicalMap) EntityIndex() map[string]CanonicalEntity {
	out := make(map[string]CanonicalEntity, len(c.Entities))
	for _, e := range c.Entities {
		out[e.CanonicalID] = e
	}
	return out
}

// MembershipIndex maps each record id to its canonical id.
func (c CanonicalMap) MembershipIndex() map[string]string {
	out := make(map[string]string, len(c.Records))
	for _, e := range c.Entities {
		for _, m := range e.Members {
			out[m.RecordID] = e.CanonicalID
		}
	}
	return out
}
