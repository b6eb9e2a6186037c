package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/similarity"
)

func nb(id string, d float64) similarity.Neighbor {
	return similarity.Neighbor{ID: id, Distance: d}
}

func TestBuildGroups_Star(t *testing.T) {
	nm := similarity.NeighborMap{
		{RepID: "A", Neighbors: []similarity.Neighbor{nb("B", 0.1), nb("C", 0.2)}},
	}
	groups, err := BuildGroups(nm)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "A", groups[0].ID)
	assert.Equal(t, []string{"A", "B", "C"}, groups[0].Members)
}

func TestBuildGroups_OverlapKeptInBoth(t *testing.T) {
	nm := similarity.NeighborMap{
		{RepID: "A", Neighbors: []similarity.Neighbor{nb("X", 0.1)}},
		{RepID: "B", Neighbors: []similarity.Neighbor{nb("X", 0.2)}},
	}
	groups, err := BuildGroups(nm)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"A", "X"}, groups[0].Members)
	assert.Equal(t, []string{"B", "X"}, groups[1].Members)

	// X is stamped twice; the write for B comes last
	asg := Assignments(groups)
	var last string
	for _, a := range asg {
		if a.ItemID == "X" {
			last = a.GroupID
		}
	}
	assert.Equal(t, "B", last)
}

func TestBuildGroups_RepeatedRepresentativeMerged(t *testing.T) {
	nm := similarity.NeighborMap{
		{RepID: "A", Neighbors: []similarity.Neighbor{nb("B", 0.1)}},
		{RepID: "C", Neighbors: []similarity.Neighbor{nb("D", 0.1)}},
		{RepID: "A", Neighbors: []similarity.Neighbor{nb("B", 0.1), nb("E", 0.3)}},
	}
	groups, err := BuildGroups(nm)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, Group{ID: "A", Members: []string{"A", "B", "E"}}, groups[0])
	assert.Equal(t, "C", groups[1].ID)
}

func TestBuildGroups_NilMapIsConfigurationError(t *testing.T) {
	_, err := BuildGroups(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = BuildTransitiveGroups(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestBuildGroups_EmptyMap(t *testing.T) {
	groups, err := BuildGroups(similarity.NeighborMap{})
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestBuildTransitiveGroups_MergesChains(t *testing.T) {
	nm := similarity.NeighborMap{
		{RepID: "A", Neighbors: []similarity.Neighbor{nb("X", 0.1)}},
		{RepID: "B", Neighbors: []similarity.Neighbor{nb("X", 0.2), nb("Y", 0.2)}},
		{RepID: "C", Neighbors: []similarity.Neighbor{nb("Z", 0.1)}},
	}
	groups, err := BuildTransitiveGroups(nm)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, Group{ID: "A", Members: []string{"A", "X", "B", "Y"}}, groups[0])
	assert.Equal(t, Group{ID: "C", Members: []string{"C", "Z"}}, groups[1])

	star, err := BuildGroups(nm)
	require.NoError(t, err)
	assert.Len(t, star, 3)
}

func TestBuild_DispatchesOnMode(t *testing.T) {
	nm := similarity.NeighborMap{
		{RepID: "A", Neighbors: []similarity.Neighbor{nb("X", 0.1)}},
		{RepID: "B", Neighbors: []similarity.Neighbor{nb("X", 0.1)}},
	}
	star, err := Build(nm, GroupStar)
	require.NoError(t, err)
	assert.Len(t, star, 2)
	trans, err := Build(nm, GroupTransitive)
	require.NoError(t, err)
	assert.Len(t, trans, 1)
}

func TestParseGroupingMode(t *testing.T) {
	tests := []struct {
		in      string
		want    GroupingMode
		wantErr bool
	}{
		{"", GroupStar, false},
		{"star", GroupStar, false},
		{"transitive", GroupTransitive, false},
		{"cliques", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGroupingMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlaggedIDs_CoversEveryNeighbor(t *testing.T) {
	nm := similarity.NeighborMap{
		{RepID: "A", Neighbors: []similarity.Neighbor{nb("B", 0.1), nb("C", 0.2)}},
		{RepID: "D", Neighbors: []similarity.Neighbor{nb("C", 0.1), nb("E", 0.2)}},
	}
	groups, err := BuildGroups(nm)
	require.NoError(t, err)
	flagged := map[string]bool{}
	for _, id := range FlaggedIDs(groups) {
		flagged[id] = true
	}
	for _, e := range nm {
		assert.True(t, flagged[e.RepID])
		for _, n := range e.Neighbors {
			assert.True(t, flagged[n.ID], "neighbor %s missing from flagged ids", n.ID)
		}
	}
	assert.Len(t, FlaggedIDs(groups), 5)
}

func TestAssignments_Order(t *testing.T) {
	groups := []Group{{ID: "A", Members: []string{"A", "B"}}}
	assert.Equal(t, []db.GroupAssignment{
		{ItemID: "A", GroupID: "A"},
		{ItemID: "B", GroupID: "A"},
	}, Assignments(groups))
}
