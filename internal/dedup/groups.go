package dedup

import (
	"fmt"

	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/similarity"
)

// GroupingMode selects how neighbor lists become duplicate groups.
type GroupingMode string

const (
	// GroupStar makes one group per representative: the representative and
	// its listed neighbors. Groups may overlap.
	GroupStar GroupingMode = "star"
	// GroupTransitive merges every chain of neighbor links into one group.
	// Groups are disjoint, which changes the group count and therefore the
	// excess duplicate count compared to GroupStar.
	GroupTransitive GroupingMode = "transitive"
)

// ParseGroupingMode accepts "star" (also the empty string) and "transitive".
func ParseGroupingMode(s string) (GroupingMode, error) {
	switch GroupingMode(s) {
	case "", GroupStar:
		return GroupStar, nil
	case GroupTransitive:
		return GroupTransitive, nil
	}
	return "", fmt.Errorf("unknown grouping mode %q (want star or transitive)", s)
}

// Group is a set of near-duplicate items. ID is the representative's id.
type Group struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

// Build dispatches to BuildGroups or BuildTransitiveGroups.
func Build(nm similarity.NeighborMap, mode GroupingMode) ([]Group, error) {
	if mode == GroupTransitive {
		return BuildTransitiveGroups(nm)
	}
	return BuildGroups(nm)
}

// BuildGroups returns one group per representative in neighbor-map order,
// containing the representative followed by its neighbors. An item listed
// under several representatives is a member of each of their groups.
// A representative listed more than once keeps its first position and
// collects the neighbors of every entry.
func BuildGroups(nm similarity.NeighborMap) ([]Group, error) {
	if nm == nil {
		return nil, ErrConfiguration
	}
	var groups []Group
	index := make(map[string]int)
	seen := make(map[string]map[string]bool)
	for _, e := range nm {
		i, ok := index[e.RepID]
		if !ok {
			i = len(groups)
			index[e.RepID] = i
			groups = append(groups, Group{ID: e.RepID, Members: []string{e.RepID}})
			seen[e.RepID] = map[string]bool{e.RepID: true}
		}
		for _, n := range e.Neighbors {
			if seen[e.RepID][n.ID] {
				continue
			}
			seen[e.RepID][n.ID] = true
			groups[i].Members = append(groups[i].Members, n.ID)
		}
	}
	return groups, nil
}

// BuildTransitiveGroups merges overlapping star groups. Each resulting group
// is identified by its earliest representative in neighbor-map order.
func BuildTransitiveGroups(nm similarity.NeighborMap) ([]Group, error) {
	if nm == nil {
		return nil, ErrConfiguration
	}
	uf := newUnionFind()
	for _, e := range nm {
		uf.add(e.RepID)
		for _, n := range e.Neighbors {
			uf.union(e.RepID, n.ID)
		}
	}
	comps := uf.components()
	groups := make([]Group, 0, len(comps))
	for _, members := range comps {
		groups = append(groups, Group{ID: members[0], Members: members})
	}
	return groups, nil
}

// Assignments lists the duplicate_group_id writes for groups, in group
// order. When an item belongs to several groups the later group's write
// comes last and wins once applied.
func Assignments(groups []Group) []db.GroupAssignment {
	var out []db.GroupAssignment
	for _, g := range groups {
		for _, m := range g.Members {
			out = append(out, db.GroupAssignment{ItemID: m, GroupID: g.ID})
		}
	}
	return out
}

// FlaggedIDs returns every member of every group once, in first-seen order.
func FlaggedIDs(groups []Group) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, g := range groups {
		for _, m := range g.Members {
			if !seen[m] {
				seen[m] = true
				ids = append(ids, m)
			}
		}
	}
	return ids
}
