package similarity

// Neighbor is an item found within the duplicate threshold of a representative.
type Neighbor struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// NeighborEntry lists the neighbors of one representative, nearest first.
type NeighborEntry struct {
	RepID     string     `json:"rep_id"`
	Neighbors []Neighbor `json:"neighbors"`
}

// NeighborMap maps representatives to their neighbors. It is a slice rather
// than a Go map because consumers depend on a stable iteration order.
type NeighborMap []NeighborEntry

// FlaggedIDs returns every representative and neighbor id, each once, in
// order of first appearance.
func (m NeighborMap) FlaggedIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, e := range m {
		add(e.RepID)
		for _, n := range e.Neighbors {
			add(n.ID)
		}
	}
	return ids
}

// NumNeighbors counts neighbor entries across all representatives.
func (m NeighborMap) NumNeighbors() int {
	total := 0
	for _, e := range m {
		total += len(e.Neighbors)
	}
	return total
}
