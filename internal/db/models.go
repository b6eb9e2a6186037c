package db

import "errors"

// ErrNotFound is returned when a dataset, item, saved view or similarity run
// does not exist.
var ErrNotFound = errors.New("not found")

// Item represents a row in the items table
type Item struct {
	ID               string  `json:"id"`
	Dataset          string  `json:"dataset"`
	Filepath         string  `json:"filepath"`
	Metadata         *string `json:"metadata"`           // JSON string
	DuplicateGroupID *string `json:"duplicate_group_id"` // representative id, set by duplicate detection
	CreatedAt        int64   `json:"created_at"`         // Unix millis
}

// GroupAssignment stamps one item with a duplicate group id
type GroupAssignment struct {
	ItemID  string
	GroupID string
}

// ViewKind describes how a saved view is queried
type ViewKind string

const (
	ViewSelect  ViewKind = "select"   // the listed items
	ViewGroupBy ViewKind = "group_by" // the listed items, partitioned by GroupField
)

// SavedView represents a row in the saved_views table
type SavedView struct {
	Name       string   `json:"name"`
	Kind       ViewKind `json:"kind"`
	GroupField string   `json:"group_field,omitempty"`
	ItemIDs    []string `json:"item_ids"`
	CreatedAt  int64    `json:"created_at"` // Unix millis
}

// SimilarityRun records that a similarity index was computed for a dataset
type SimilarityRun struct {
	Key       string `json:"key"`
	Metric    string `json:"metric"` // "cosine"
	NumItems  int    `json:"num_items"`
	CreatedAt int64  `json:"created_at"` // Unix millis
}
