package cluster

// arena is a union-find over record indices. Records are indexed in sorted
// id order, so the smallest index in a set is its lowest record id and is
// always the root that survives a union.
type arena struct {
	parent  []int
	members [][]int
}

func newArena(n int) *arena {
	a := &arena{parent: make([]int, n), members: make([][]int, n)}
	for i := range a.parent {
		a.parent[i] = i
		a.members[i] = []int{i}
	}
	return a
}

func (a *arena) find(i int) int {
	for a.parent[i] != i {
		a.parent[i] = a.parent[a.parent[i]]
		i = a.parent[i]
	}
	return i
}

// union merges the sets rooted at x and y and returns the surviving root.
func (a *arena) union(x, y int) int {
	if y < x {
		x, y = y, x
	}
	a.parent[y] = x
	a.members[x] = mergeSorted(a.members[x], a.members[y])
	a.members[y] = nil
	return x
}

func (a *arena) roots() []int {
	var out []int
	for i := range a.parent {
		if a.find(i) == i {
			out = append(out, i)
		}
	}
	return out
}

func mergeSorted(x, y []int) []int {
	out := make([]int, 0, len(x)+len(y))
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		if x[i] < y[j] {
			out = append(out, x[i])
			i++
		} else {
			out = append(out, y[j])
			j++
		}
	}
	out = append(out, x[i:]...)
	return append(out, y[j:]...)
}
