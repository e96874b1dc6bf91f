package normalize

import (
	"sort"

	"github.com/sells-group/entity-xref/internal/model"
)

// Key derives the comparison key for a record. Key never mutates rec.
func Key(rec model.Record) model.NormalizedKey {
	k := model.NormalizedKey{
		RecordID: rec.ID(),
		Name:     Name(rec.Name, rec.EntityType),
		Address:  Address(rec.Address),
		Country:  Country(rec.Country),
	}

	k.State = State(rec.State)
	if k.State == "" {
		k.State = k.Address.State
	}
	if rec.Jurisdiction != "" {
		k.Jurisdiction = Jurisdiction(rec.Jurisdiction)
	}

	seen := make(map[model.Identifier]bool, len(rec.Identifiers))
	for _, raw := range rec.Identifiers {
		id, ok := Identifier(raw.Kind, raw.Value)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		k.Identifiers = append(k.Identifiers, id)
	}
	sort.Slice(k.Identifiers, func(i, j int) bool {
		if k.Identifiers[i].Kind != k.Identifiers[j].Kind {
			return k.Identifiers[i].Kind < k.Identifiers[j].Kind
		}
		return k.Identifiers[i].Value < k.Identifiers[j].Value
	})
	return k
}

// Keys normalizes records in order and indexes the result by record id.
func Keys(records []model.Record) ([]model.NormalizedKey, map[string]model.NormalizedKey) {
	keys := make([]model.NormalizedKey, len(records))
	byID := make(map[string]model.NormalizedKey, len(records))
	for i, rec := range records {
		keys[i] = Key(rec)
		byID[keys[i].RecordID] = keys[i]
	}
	return keys, byID
}
