package model

// NormalizedName is the canonical comparable form of an entity name.
type NormalizedName struct {
	Canonical string `json:"canonical"`
	// LegalSuffix holds the canonical legal suffixes stripped from the name,
	// outermost last (e.g. "CORP LLC").
	LegalSuffix string   `json:"legal_suffix,omitempty"`
	Honorifics  []string `json:"honorifics,omitempty"`
	// Alternates are extra comparable forms (nickname expansions).
	Alternates []string   `json:"alternates,omitempty"`
	EntityType EntityType `json:"entity_type"`
}

// Empty reports whether the name normalized to nothing and is unmatchable.
func (n NormalizedName) Empty() bool {
	return n.Canonical == ""
}

// Forms returns the canonical form followed by any alternates.
func (n NormalizedName) Forms() []string {
	out := make([]string, 0, 1+len(n.Alternates))
	out = append(out, n.Canonical)
	return append(out, n.Alternates...)
}

// NormalizedAddress is the canonical comparable form of a postal address.
type NormalizedAddress struct {
	Line  string `json:"line"`
	State string `json:"state,omitempty"`
	ZIP   string `json:"zip,omitempty"`
}

// NormalizedKey is derived deterministically from a Record and never stored
// on its own.
type NormalizedKey struct {
	RecordID     string            `json:"record_id"`
	Name         NormalizedName    `json:"name"`
	Address      NormalizedAddress `json:"address"`
	State        string            `json:"state,omitempty"`
	Country      string            `json:"country,omitempty"`
	Jurisdiction string            `json:"jurisdiction,omitempty"`
	Identifiers  []Identifier      `json:"identifiers,omitempty"`
}

// IdentifierSet groups identifier values by kind.
func (k NormalizedKey) IdentifierSet() map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for _, id := range k.Identifiers {
		if id.Value == "" {
			continue
		}
		if out[id.Kind] == nil {
			out[id.Kind] = make(map[string]bool)
		}
		out[id.Kind][id.Value] = true
	}
	return out
}
