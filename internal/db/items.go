package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxBatch bounds the number of bound parameters per IN (...) clause
const maxBatch = 500

const itemColumns = `id, dataset, filepath, metadata, duplicate_group_id, created_at`

// scanItem scans a row into an Item. The row must have itemColumns in order.
func scanItem(scanner interface{ Scan(dest ...any) error }) (Item, error) {
	var it Item
	err := scanner.Scan(&it.ID, &it.Dataset, &it.Filepath, &it.Metadata, &it.DuplicateGroupID, &it.CreatedAt)
	return it, err
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// AddItem inserts an item for filepath and returns it. If the dataset already
// holds that filepath the existing item is returned unchanged.
func (ds *Dataset) AddItem(filepath string, metadata map[string]string) (*Item, error) {
	var meta *string
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		s := string(raw)
		meta = &s
	}

	_, err := ds.db.conn.Exec(`
		INSERT INTO items (id, dataset, filepath, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (dataset, filepath) DO NOTHING
	`, uuid.NewString(), ds.Name, filepath, meta, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("inserting item %s: %w", filepath, err)
	}

	row := ds.db.conn.QueryRow(`SELECT `+itemColumns+` FROM items WHERE dataset = ? AND filepath = ?`, ds.Name, filepath)
	it, err := scanItem(row)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// InsertItem inserts an item with a caller-chosen id. An empty ID gets a
// generated one. Fails if the id or filepath is already taken.
func (ds *Dataset) InsertItem(it Item) (*Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.Dataset = ds.Name
	if it.CreatedAt == 0 {
		it.CreatedAt = time.Now().UnixMilli()
	}
	_, err := ds.db.conn.Exec(`
		INSERT INTO items (id, dataset, filepath, metadata, duplicate_group_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, it.ID, it.Dataset, it.Filepath, it.Metadata, it.DuplicateGroupID, it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting item %s: %w", it.ID, err)
	}
	return &it, nil
}

// AddItems inserts one item per path in a single transaction, skipping paths
// already present. Returns the number of new items.
func (ds *Dataset) AddItems(paths []string) (int, error) {
	tx, err := ds.db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO items (id, dataset, filepath, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (dataset, filepath) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	now := time.Now().UnixMilli()
	for _, p := range paths {
		res, err := stmt.Exec(uuid.NewString(), ds.Name, p, now)
		if err != nil {
			return 0, fmt.Errorf("inserting item %s: %w", p, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing items: %w", err)
	}
	return added, nil
}

// GetItem returns a single item by ID, or ErrNotFound
func (ds *Dataset) GetItem(id string) (*Item, error) {
	row := ds.db.conn.QueryRow(`SELECT `+itemColumns+` FROM items WHERE dataset = ? AND id = ?`, ds.Name, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Items returns all items in insertion order
func (ds *Dataset) Items() ([]Item, error) {
	rows, err := ds.db.conn.Query(`SELECT `+itemColumns+` FROM items WHERE dataset = ? ORDER BY rowid`, ds.Name)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}

// Count returns the number of items in the dataset
func (ds *Dataset) Count() (int, error) {
	var n int
	err := ds.db.conn.QueryRow("SELECT COUNT(*) FROM items WHERE dataset = ?", ds.Name).Scan(&n)
	return n, err
}

// SelectItems returns the items among ids that still exist, sorted by
// filepath ascending (ties broken by id). Unknown ids are ignored.
func (ds *Dataset) SelectItems(ids []string) ([]Item, error) {
	var items []Item
	err := forEachBatch(ids, func(batch []string) error {
		args := append([]any{ds.Name}, toArgs(batch)...)
		rows, err := ds.db.conn.Query(`SELECT `+itemColumns+` FROM items
			WHERE dataset = ? AND id IN (`+placeholders(len(batch))+`)`, args...)
		if err != nil {
			return err
		}
		got, err := scanItems(rows)
		if err != nil {
			return err
		}
		items = append(items, got...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("selecting items: %w", err)
	}
	SortByFilepath(items)
	return items, nil
}

// StampGroupIDs writes duplicate_group_id for each assignment, in order,
// inside one transaction. An item assigned twice keeps the last value.
func (ds *Dataset) StampGroupIDs(assignments []GroupAssignment) error {
	tx, err := ds.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE items SET duplicate_group_id = ? WHERE dataset = ? AND id = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range assignments {
		if _, err := stmt.Exec(a.GroupID, ds.Name, a.ItemID); err != nil {
			return fmt.Errorf("stamping item %s: %w", a.ItemID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing group ids: %w", err)
	}
	return nil
}

// DeleteItems deletes the given items in one transaction and returns how many
// rows were removed. Unknown ids are ignored.
func (ds *Dataset) DeleteItems(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := ds.db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var deleted int64
	err = forEachBatch(ids, func(batch []string) error {
		args := append([]any{ds.Name}, toArgs(batch)...)
		res, err := tx.Exec(`DELETE FROM items WHERE dataset = ? AND id IN (`+placeholders(len(batch))+`)`, args...)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		deleted += n
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("deleting items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return deleted, nil
}

// DistinctGroupIDs returns the distinct non-null duplicate_group_id values
// held by the given items, sorted ascending.
func (ds *Dataset) DistinctGroupIDs(ids []string) ([]string, error) {
	seen := make(map[string]bool)
	err := forEachBatch(ids, func(batch []string) error {
		args := append([]any{ds.Name}, toArgs(batch)...)
		rows, err := ds.db.conn.Query(`SELECT DISTINCT duplicate_group_id FROM items
			WHERE dataset = ? AND duplicate_group_id IS NOT NULL
			AND id IN (`+placeholders(len(batch))+`)`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var g string
			if err := rows.Scan(&g); err != nil {
				return err
			}
			seen[g] = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying group ids: %w", err)
	}
	return sortedKeys(seen), nil
}

func forEachBatch(ids []string, fn func(batch []string) error) error {
	for start := 0; start < len(ids); start += maxBatch {
		end := start + maxBatch
		if end > len(ids) {
			end = len(ids)
		}
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
