package match

import "github.com/sells-group/entity-xref/internal/model"

// Classify names the field a scored link rests on and how it matched:
// identifier and contact agreements and identical names are exact, links
// carried by the address alone are address-based, everything else fuzzy.
func Classify(ms model.MatchScore) (linkField, matchType string) {
	if len(ms.HardIDAgreement) > 0 {
		return ms.HardIDAgreement[0], model.MatchTypeExact
	}
	if sig, ok := ms.Signal(model.SignalContact); ok {
		return sig.Detail, model.MatchTypeExact
	}
	name, hasName := ms.Signal(model.SignalName)
	if hasName && name.Similarity >= 1.0 {
		return "name", model.MatchTypeExact
	}
	if addr, ok := ms.Signal(model.SignalAddress); ok && addr.Contribution > 0 && !hasName {
		return "address", model.MatchTypeAddress
	}
	return "name", model.MatchTypeFuzzy
}
