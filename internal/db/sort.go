package db

import "sort"

// SortByFilepath orders items by filepath ascending, then by id, so the
// result does not depend on the order the items were read in.
func SortByFilepath(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Filepath != items[j].Filepath {
			return items[i].Filepath < items[j].Filepath
		}
		return items[i].ID < items[j].ID
	})
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
