package model

// CorroborationStatus is the independence verdict for an evidence chain.
type CorroborationStatus string

const (
	CorroborationSingle       CorroborationStatus = "single"
	CorroborationCorroborated CorroborationStatus = "corroborated"
	CorroborationContradicted CorroborationStatus = "contradicted"
	CorroborationUnresolvable CorroborationStatus = "unresolvable"
)

// Hop match types.
const (
	MatchTypeExact   = "exact"
	MatchTypeFuzzy   = "fuzzy"
	MatchTypeAddress = "address-based"
)

// Hop is one cited link between two source records.
type Hop struct {
	FromRecord string  `json:"from_record"`
	ToRecord   string  `json:"to_record"`
	LinkField  string  `json:"link_field"`
	MatchType  string  `json:"match_type"`
	MatchScore float64 `json:"match_score"`
	// CitedFields snapshots the to_record values the hop relies on.
	CitedFields map[string]string `json:"cited_fields,omitempty"`
	// SourceLineage is the upstream citation chain of to_record.
	SourceLineage []string `json:"source_lineage"`
}

// EvidenceChain is an ordered sequence of hops supporting a claim.
type EvidenceChain struct {
	ID          string `json:"id"`
	Claim       string `json:"claim"`
	XrefID      string `json:"xref_id,omitempty"`
	CanonicalID string `json:"canonical_id,omitempty"`
	// AnchorRecord is the from_record of the first hop; AnchorLineage its
	// citation chain. The anchor counts as a source for corroboration.
	AnchorRecord        string              `json:"anchor_record"`
	AnchorFields        map[string]string   `json:"anchor_fields,omitempty"`
	AnchorLineage       []string            `json:"anchor_lineage"`
	Hops                []Hop               `json:"hops"`
	LinkStrength        float64             `json:"link_strength"`
	CorroborationStatus CorroborationStatus `json:"corroboration_status"`
	IndependentSources  int                 `json:"independent_sources"`
	OfficialSource      bool                `json:"official_source"`
	// DatasetRowCounts records each cited dataset's row count at build time.
	DatasetRowCounts map[string]int `json:"dataset_row_counts,omitempty"`
	Confidence       *Confidence    `json:"confidence,omitempty"`
}

// CitedRecords returns the anchor followed by every hop's to_record.
func (c EvidenceChain) CitedRecords() []string {
	out := []string{c.AnchorRecord}
	for _, h := range c.Hops {
		out = append(out, h.ToRecord)
	}
	return out
}
