package model

// Signal names recorded in a MatchScore breakdown.
const (
	SignalHardID        = "hard_id"
	SignalContact       = "contact"
	SignalName          = "name"
	SignalAddress       = "address"
	SignalState         = "state"
	SignalSuffixPenalty = "suffix_mismatch"
)

// Disqualifier reasons.
const (
	DisqualifyIdentifier   = "identifier_mismatch"
	DisqualifyCountry      = "country_mismatch"
	DisqualifyJurisdiction = "jurisdiction_mismatch"
	DisqualifyUnmatchable  = "unmatchable_name"
)

// CandidatePair is two records proposed for comparison by the blocker.
// A is always the record with the smaller id.
type CandidatePair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewCandidatePair orders the two ids so that equal pairs compare equal.
func NewCandidatePair(x, y string) CandidatePair {
	if y < x {
		x, y = y, x
	}
	return CandidatePair{A: x, B: y}
}

// Key returns a stable map key for the pair.
func (p CandidatePair) Key() string {
	return p.A + "\x00" + p.B
}

// Signal is one contribution to a composite match score.
type Signal struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Similarity float64 `json:"similarity"`
	// Contribution is Weight*Similarity (negative for penalties).
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail,omitempty"`
}

// MatchScore is an immutable scored candidate pair.
type MatchScore struct {
	Pair  CandidatePair `json:"pair"`
	Score float64       `json:"score"`
	// RawScore is the uncapped weighted sum.
	RawScore       float64  `json:"raw_score"`
	Signals        []Signal `json:"signals,omitempty"`
	Disqualified   bool     `json:"disqualified"`
	DisqualifiedBy string   `json:"disqualified_by,omitempty"`
	// HardIDAgreement lists identifier kinds on which both sides agree.
	HardIDAgreement []string `json:"hard_id_agreement,omitempty"`
	// AddressSuppressed is set when a registered-agent address zeroed the
	// address signal.
	AddressSuppressed bool `json:"address_suppressed,omitempty"`
}

// Signal returns the named signal and whether it fired.
func (m MatchScore) Signal(name string) (Signal, bool) {
	for _, s := range m.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return Signal{}, false
}

// MatchBand classifies a score against the published thresholds.
type MatchBand string

const (
	BandAutoMatch MatchBand = "auto_match"
	BandReview    MatchBand = "review"
	BandWideNet   MatchBand = "wide_net"
	BandDiscard   MatchBand = "discard"
)
