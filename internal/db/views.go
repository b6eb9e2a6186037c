package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveViews writes the given views in one transaction, replacing any view
// with the same name. Readers see either all old or all new views.
func (ds *Dataset) SaveViews(views ...SavedView) error {
	tx, err := ds.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, v := range views {
		if v.Name == "" {
			return fmt.Errorf("saving view: name is empty")
		}
		ids := v.ItemIDs
		if ids == nil {
			ids = []string{}
		}
		raw, err := json.Marshal(ids)
		if err != nil {
			return fmt.Errorf("encoding view %s: %w", v.Name, err)
		}
		var groupField *string
		if v.GroupField != "" {
			groupField = &v.GroupField
		}
		_, err = tx.Exec(`
			INSERT INTO saved_views (dataset, name, kind, group_field, item_ids, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (dataset, name) DO UPDATE SET
				kind = excluded.kind,
				group_field = excluded.group_field,
				item_ids = excluded.item_ids,
				created_at = excluded.created_at
		`, ds.Name, v.Name, string(v.Kind), groupField, string(raw), now)
		if err != nil {
			return fmt.Errorf("saving view %s: %w", v.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing views: %w", err)
	}
	return nil
}

// LoadView returns the named view, or ErrNotFound.
func (ds *Dataset) LoadView(name string) (*SavedView, error) {
	var (
		v          SavedView
		kind       string
		groupField *string
		raw        string
	)
	err := ds.db.conn.QueryRow(`
		SELECT name, kind, group_field, item_ids, created_at
		FROM saved_views WHERE dataset = ? AND name = ?
	`, ds.Name, name).Scan(&v.Name, &kind, &groupField, &raw, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("saved view %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	v.Kind = ViewKind(kind)
	if groupField != nil {
		v.GroupField = *groupField
	}
	if err := json.Unmarshal([]byte(raw), &v.ItemIDs); err != nil {
		return nil, fmt.Errorf("decoding view %s: %w", name, err)
	}
	return &v, nil
}

// DeleteView removes the named view, or returns ErrNotFound.
func (ds *Dataset) DeleteView(name string) error {
	res, err := ds.db.conn.Exec("DELETE FROM saved_views WHERE dataset = ? AND name = ?", ds.Name, name)
	if err != nil {
		return fmt.Errorf("deleting view %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("saved view %s: %w", name, ErrNotFound)
	}
	return nil
}

// HasView reports whether a view with this name is saved.
func (ds *Dataset) HasView(name string) (bool, error) {
	var n int
	err := ds.db.conn.QueryRow("SELECT COUNT(*) FROM saved_views WHERE dataset = ? AND name = ?", ds.Name, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListViews returns saved view names in ascending order
func (ds *Dataset) ListViews() ([]string, error) {
	rows, err := ds.db.conn.Query("SELECT name FROM saved_views WHERE dataset = ? ORDER BY name", ds.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
