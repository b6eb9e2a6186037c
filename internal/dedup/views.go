package dedup

import (
	"errors"
	"fmt"

	"github.com/ravi0dubey/racoon-detection/internal/db"
)

const (
	// FlaggedViewName holds every item that belongs to some duplicate group.
	FlaggedViewName = "approx_dup_view"
	// GroupedViewName holds the same items partitioned by GroupField.
	GroupedViewName = "approx_dup_groups_view"
	// GroupField is the item attribute the grouped view partitions on.
	GroupField = "duplicate_group_id"
)

// Summary is computed once when views are materialized. It is not refreshed
// when the dataset changes afterwards.
type Summary struct {
	ImagesWithDuplicates int `json:"num_images_with_approx_dups"`
	DuplicateGroups      int `json:"num_approx_dup_groups"`
	ExcessDuplicates     int `json:"num_dups"`
}

func newSummary(flagged, groups int) Summary {
	return Summary{
		ImagesWithDuplicates: flagged,
		DuplicateGroups:      groups,
		ExcessDuplicates:     flagged - groups,
	}
}

// GroupedView is the grouped view resolved against the current dataset.
// Items deleted since materialization are absent.
type GroupedView struct {
	Groups []ViewGroup `json:"groups"`
}

// ViewGroup holds the items currently stamped with one group id, sorted by
// filepath.
type ViewGroup struct {
	ID    string    `json:"id"`
	Items []db.Item `json:"items"`
}

// Materializer persists detection results as saved views on a dataset.
type Materializer struct {
	ds *db.Dataset
}

func NewMaterializer(ds *db.Dataset) *Materializer {
	return &Materializer{ds: ds}
}

// Materialize stamps duplicate_group_id on every group member, then saves
// the flagged and grouped views in one transaction, replacing earlier ones.
// Group members missing from flagged are added to it.
func (m *Materializer) Materialize(flagged []string, groups []Group) (Summary, error) {
	if err := m.ds.StampGroupIDs(Assignments(groups)); err != nil {
		return Summary{}, fmt.Errorf("stamping groups: %w", err)
	}
	flagged = mergeIDs(flagged, FlaggedIDs(groups))
	err := m.ds.SaveViews(
		db.SavedView{Name: FlaggedViewName, Kind: db.ViewSelect, ItemIDs: flagged},
		db.SavedView{Name: GroupedViewName, Kind: db.ViewGroupBy, GroupField: GroupField, ItemIDs: flagged},
	)
	if err != nil {
		return Summary{}, fmt.Errorf("saving duplicate views: %w", err)
	}
	return newSummary(len(flagged), len(groups)), nil
}

// LoadSaved returns a saved view by name, or ErrNotFound.
func (m *Materializer) LoadSaved(name string) (*db.SavedView, error) {
	return m.ds.LoadView(name)
}

// DeleteSaved removes a saved view by name, or returns ErrNotFound.
func (m *Materializer) DeleteSaved(name string) error {
	return m.ds.DeleteView(name)
}

// Computed reports whether a flagged view exists.
func (m *Materializer) Computed() (bool, error) {
	return m.ds.HasView(FlaggedViewName)
}

// Grouped resolves the grouped view: the items of the view that still exist,
// partitioned by their persisted group id, groups sorted by id.
func (m *Materializer) Grouped() (*GroupedView, error) {
	v, err := m.LoadSaved(GroupedViewName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotComputed, err)
		}
		return nil, err
	}
	items, err := m.ds.SelectItems(v.ItemIDs)
	if err != nil {
		return nil, err
	}
	return groupItems(items), nil
}

// deleteViews removes both views. The grouped view may already be gone.
func (m *Materializer) deleteViews() error {
	if err := m.DeleteSaved(FlaggedViewName); err != nil {
		return err
	}
	if err := m.DeleteSaved(GroupedViewName); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// groupItems partitions items sorted by filepath into groups sorted by id.
// Items with no group id are left out.
func groupItems(items []db.Item) *GroupedView {
	index := make(map[string]int)
	var view GroupedView
	for _, it := range items {
		if it.DuplicateGroupID == nil {
			continue
		}
		gid := *it.DuplicateGroupID
		i, ok := index[gid]
		if !ok {
			i = len(view.Groups)
			index[gid] = i
			view.Groups = append(view.Groups, ViewGroup{ID: gid})
		}
		view.Groups[i].Items = append(view.Groups[i].Items, it)
	}
	sortGroups(view.Groups)
	return &view
}

// mergeIDs appends the ids of b missing from a, dropping duplicates.
func mergeIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
