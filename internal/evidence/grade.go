package evidence

import "github.com/sells-group/entity-xref/internal/model"

type source struct {
	roots  []string
	fields map[string]string
}

// grade sets the corroboration status, independent source count and
// official-source flag of a chain. The anchor and every hop's to_record are
// sources; sources sharing a lineage root, directly or transitively, are one
// group. A chain is corroborated only when its hops span at least two
// groups, and contradicted when two sources of one group cite different
// values for the same field.
func grade(c *model.EvidenceChain, records map[string]model.Record) {
	for _, id := range c.CitedRecords() {
		if records[id].Provenance.Official {
			c.OfficialSource = true
			break
		}
	}

	sources := make([]source, 0, len(c.Hops)+1)
	sources = append(sources, source{roots: c.AnchorLineage, fields: c.AnchorFields})
	for _, h := range c.Hops {
		sources = append(sources, source{roots: h.SourceLineage, fields: h.CitedFields})
	}
	roots := make([][]string, len(sources))
	for i, s := range sources {
		roots[i] = s.roots
	}
	groups, n := model.IndependentGroups(roots)
	c.IndependentSources = n

	if len(c.Hops) == 0 {
		c.CorroborationStatus = model.CorroborationUnresolvable
		return
	}

	for i := range sources {
		for j := i + 1; j < len(sources); j++ {
			if groups[i] == groups[j] && disagree(sources[i].fields, sources[j].fields) {
				c.CorroborationStatus = model.CorroborationContradicted
				return
			}
		}
	}

	hopGroups := make(map[int]bool)
	for i := 1; i < len(sources); i++ {
		hopGroups[groups[i]] = true
	}
	if len(hopGroups) >= 2 {
		c.CorroborationStatus = model.CorroborationCorroborated
		return
	}
	c.CorroborationStatus = model.CorroborationSingle
}

// disagree reports whether two snapshots hold different non-empty values for
// a shared field other than the free-text name.
func disagree(a, b map[string]string) bool {
	for k, va := range a {
		if k == "name" || va == "" {
			continue
		}
		if vb, ok := b[k]; ok && vb != "" && vb != va {
			return true
		}
	}
	return false
}
