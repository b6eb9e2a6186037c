package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Dataset is a named item collection. Saved views and similarity runs are
// scoped to the dataset, so two datasets in one database never see each
// other's state.
type Dataset struct {
	db   *DB
	Name string
}

// CreateDataset registers a new, empty dataset.
func (d *DB) CreateDataset(name string) (*Dataset, error) {
	if name == "" {
		return nil, fmt.Errorf("dataset name is empty")
	}
	_, err := d.conn.Exec("INSERT INTO datasets (name, created_at) VALUES (?, ?)", name, time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("creating dataset %s: %w", name, err)
	}
	return &Dataset{db: d, Name: name}, nil
}

// OpenDataset returns the named dataset, or ErrNotFound.
func (d *DB) OpenDataset(name string) (*Dataset, error) {
	exists, err := d.DatasetExists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return &Dataset{db: d, Name: name}, nil
}

// OpenOrCreateDataset returns the named dataset, creating it if needed.
func (d *DB) OpenOrCreateDataset(name string) (*Dataset, error) {
	ds, err := d.OpenDataset(name)
	if errors.Is(err, ErrNotFound) {
		return d.CreateDataset(name)
	}
	return ds, err
}

// DatasetExists reports whether a dataset with this name is registered.
func (d *DB) DatasetExists(name string) (bool, error) {
	var n int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM datasets WHERE name = ?", name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteDataset removes a dataset together with its items, views and
// similarity runs (cascade).
func (d *DB) DeleteDataset(name string) error {
	res, err := d.conn.Exec("DELETE FROM datasets WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting dataset %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return nil
}

// ListDatasets returns all dataset names in ascending order
func (d *DB) ListDatasets() ([]string, error) {
	rows, err := d.conn.Query("SELECT name FROM datasets ORDER BY name")
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

// SaveSimilarityRun records (or replaces) a similarity run for this dataset.
func (ds *Dataset) SaveSimilarityRun(run SimilarityRun) error {
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixMilli()
	}
	_, err := ds.db.conn.Exec(`
		INSERT INTO similarity_runs (dataset, key, metric, num_items, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (dataset, key) DO UPDATE SET
			metric = excluded.metric,
			num_items = excluded.num_items,
			created_at = excluded.created_at
	`, ds.Name, run.Key, run.Metric, run.NumItems, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving similarity run %s: %w", run.Key, err)
	}
	return nil
}

// LoadSimilarityRun returns the similarity run for key, or ErrNotFound.
func (ds *Dataset) LoadSimilarityRun(key string) (*SimilarityRun, error) {
	var run SimilarityRun
	err := ds.db.conn.QueryRow(`
		SELECT key, metric, num_items, created_at
		FROM similarity_runs WHERE dataset = ? AND key = ?
	`, ds.Name, key).Scan(&run.Key, &run.Metric, &run.NumItems, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("similarity run %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
