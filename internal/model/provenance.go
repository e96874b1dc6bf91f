package model

import "time"

// Admiralty source reliability grades, best first.
const (
	ReliabilityA = "A" // completely reliable
	ReliabilityB = "B" // usually reliable
	ReliabilityC = "C" // fairly reliable
	ReliabilityD = "D" // not usually reliable
	ReliabilityE = "E" // unreliable
	ReliabilityF = "F" // cannot be judged
)

// ReliabilityRank returns a sortable rank for a reliability grade; lower is
// more reliable. Unknown grades rank with F.
func ReliabilityRank(grade string) int {
	switch grade {
	case ReliabilityA:
		return 0
	case ReliabilityB:
		return 1
	case ReliabilityC:
		return 2
	case ReliabilityD:
		return 3
	case ReliabilityE:
		return 4
	default:
		return 5
	}
}

// Provenance describes where a dataset file came from and how it was produced.
type Provenance struct {
	SourceURL       string     `json:"source_url,omitempty"`
	Path            string     `json:"path"`
	AccessedAt      *time.Time `json:"accessed_at,omitempty"`
	SHA256          string     `json:"sha256,omitempty"`
	Bytes           int64      `json:"bytes,omitempty"`
	Transformations []string   `json:"transformations,omitempty"`
	// Lineage lists upstream citations, nearest first. The last element is
	// the original collection event.
	Lineage     []string `json:"lineage,omitempty"`
	Reliability string   `json:"reliability,omitempty"`
	Official    bool     `json:"official,omitempty"`
}

// LineageRoots returns every collection event this source depends on,
// directly or transitively. A source without declared lineage is its own root.
func (p Provenance) LineageRoots() []string {
	if len(p.Lineage) > 0 {
		out := make([]string, len(p.Lineage))
		copy(out, p.Lineage)
		return out
	}
	if p.SourceURL != "" {
		return []string{p.SourceURL}
	}
	return []string{"file:" + p.Path}
}

// IndependentGroups partitions sources into groups that share a lineage
// root, directly or through other sources, and returns the group of each
// source and the number of groups.
func IndependentGroups(roots [][]string) ([]int, int) {
	parent := make([]int, len(roots))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	owner := make(map[string]int)
	for i, rs := range roots {
		for _, root := range rs {
			j, seen := owner[root]
			if !seen {
				owner[root] = i
				continue
			}
			a, b := find(i), find(j)
			if a != b {
				parent[max(a, b)] = min(a, b)
			}
		}
	}

	groups := make([]int, len(roots))
	distinct := make(map[int]bool)
	for i := range roots {
		groups[i] = find(i)
		distinct[groups[i]] = true
	}
	return groups, len(distinct)
}
