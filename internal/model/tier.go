package model

import "time"

// ConfidenceTier is the four-level (Admiralty-style) finding grade.
type ConfidenceTier string

const (
	TierConfirmed  ConfidenceTier = "Confirmed"
	TierProbable   ConfidenceTier = "Probable"
	TierPossible   ConfidenceTier = "Possible"
	TierUnresolved ConfidenceTier = "Unresolved"
)

// Confidence is the tier attached to a cross-reference or chain.
type Confidence struct {
	Tier  ConfidenceTier `json:"tier"`
	Basis string         `json:"basis"`
}

// Score log target kinds.
const (
	TargetXref  = "xref"
	TargetChain = "chain"
)

// ScoreLogEntry records one re-score decision for audit.
type ScoreLogEntry struct {
	Timestamp    time.Time      `json:"timestamp"`
	RunID        string         `json:"run_id,omitempty"`
	TargetKind   string         `json:"target_kind"`
	TargetID     string         `json:"target_id"`
	PreviousTier ConfidenceTier `json:"previous_tier,omitempty"`
	Tier         ConfidenceTier `json:"tier"`
	Basis        string         `json:"basis"`
	Changed      bool           `json:"changed"`
}
