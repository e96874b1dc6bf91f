package match

import (
	"sort"

	"github.com/sells-group/entity-xref/internal/normalize"
)

// DefaultRegisteredAgentAddresses are commercial registered-agent offices
// shared by very large numbers of unrelated companies.
var DefaultRegisteredAgentAddresses = []string{
	"1209 Orange Street, Wilmington, DE 19801",
	"251 Little Falls Drive, Wilmington, DE 19808",
	"2711 Centerville Road, Wilmington, DE 19808",
	"1013 Centre Road, Wilmington, DE 19805",
	"108 West 13th Street, Wilmington, DE 19801",
	"8 The Green, Dover, DE 19901",
	"3500 South DuPont Highway, Dover, DE 19901",
	"160 Greentree Drive, Dover, DE 19904",
	"701 South Carson Street, Carson City, NV 89701",
	"1999 Bryan Street, Dallas, TX 75201",
	"28 Liberty Street, New York, NY 10005",
	"30 N Gould Street, Sheridan, WY 82801",
}

// Denylist holds registered-agent street keys. An address matching an entry
// contributes no address weight.
type Denylist struct {
	keys map[string]bool
}

// NewDenylist normalizes the built-in addresses plus extra into street keys.
func NewDenylist(extra []string) *Denylist {
	d := &Denylist{keys: make(map[string]bool)}
	for _, raw := range append(append([]string{}, DefaultRegisteredAgentAddresses...), extra...) {
		if key := normalize.StreetKey(normalize.Address(raw).Line); key != "" {
			d.keys[key] = true
		}
	}
	return d
}

// Contains reports whether a normalized address line is a registered-agent
// address.
func (d *Denylist) Contains(line string) bool {
	if d == nil || line == "" {
		return false
	}
	return d.keys[normalize.StreetKey(line)]
}

// Keys returns the sorted street keys.
func (d *Denylist) Keys() []string {
	out := make([]string, 0, len(d.keys))
	for k := range d.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
