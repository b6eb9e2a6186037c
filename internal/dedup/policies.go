package dedup

import (
	"fmt"
	"sort"

	"github.com/ravi0dubey/racoon-detection/internal/db"
)

const (
	PolicyRemoveAll = "remove_all"
	PolicyKeepOne   = "keep_one"
)

// Resolution reports what a policy did.
type Resolution struct {
	Policy  string   `json:"policy"`
	Kept    []string `json:"kept"`
	Deleted []string `json:"deleted"`
}

// RemoveAll deletes every flagged item, representatives included, then both
// saved views.
func (m *Materializer) RemoveAll() (*Resolution, error) {
	flagged, err := m.flagged()
	if err != nil {
		return nil, err
	}
	items, err := m.ds.SelectItems(flagged.ItemIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	if _, err := m.ds.DeleteItems(ids); err != nil {
		return nil, err
	}
	if err := m.deleteViews(); err != nil {
		return nil, fmt.Errorf("deleting duplicate views: %w", err)
	}
	return &Resolution{Policy: PolicyRemoveAll, Kept: []string{}, Deleted: ids}, nil
}

// KeepOnePerGroup keeps the item with the smallest filepath in each group
// and deletes the others in one batch, then deletes both saved views. Items
// are grouped by their persisted duplicate_group_id, so an item claimed by
// several groups is only considered under the last one that stamped it.
func (m *Materializer) KeepOnePerGroup() (*Resolution, error) {
	flagged, err := m.flagged()
	if err != nil {
		return nil, err
	}
	groupIDs, err := m.ds.DistinctGroupIDs(flagged.ItemIDs)
	if err != nil {
		return nil, err
	}
	items, err := m.ds.SelectItems(flagged.ItemIDs)
	if err != nil {
		return nil, err
	}
	byGroup := make(map[string][]db.Item)
	for _, it := range items {
		if it.DuplicateGroupID != nil {
			byGroup[*it.DuplicateGroupID] = append(byGroup[*it.DuplicateGroupID], it)
		}
	}

	res := &Resolution{Policy: PolicyKeepOne, Kept: []string{}, Deleted: []string{}}
	for _, gid := range groupIDs {
		keep, drop := splitSurvivor(byGroup[gid])
		if keep == "" {
			continue
		}
		res.Kept = append(res.Kept, keep)
		res.Deleted = append(res.Deleted, drop...)
	}

	if _, err := m.ds.DeleteItems(res.Deleted); err != nil {
		return nil, err
	}
	if err := m.deleteViews(); err != nil {
		return nil, fmt.Errorf("deleting duplicate views: %w", err)
	}
	return res, nil
}

func (m *Materializer) flagged() (*db.SavedView, error) {
	ok, err := m.Computed()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotComputed
	}
	return m.LoadSaved(FlaggedViewName)
}

// splitSurvivor returns the id with the smallest filepath (ties by id) and
// the ids of every other item.
func splitSurvivor(items []db.Item) (string, []string) {
	if len(items) == 0 {
		return "", nil
	}
	sorted := make([]db.Item, len(items))
	copy(sorted, items)
	db.SortByFilepath(sorted)
	drop := make([]string, 0, len(sorted)-1)
	for _, it := range sorted[1:] {
		drop = append(drop, it.ID)
	}
	return sorted[0].ID, drop
}

func sortGroups(groups []ViewGroup) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
}
