package db

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ItemEmbedding pairs an item ID with its deserialized embedding vector.
type ItemEmbedding struct {
	ID        string
	Filepath  string
	Embedding []float32
}

// bytesToEmbedding converts a little-endian byte slice to []float32.
// Each 4 bytes = one LE float32. Short trailing chunk → 0.0.
func bytesToEmbedding(data []byte) []float32 {
	n := len(data) / 4
	if len(data)%4 != 0 {
		n++ // include partial chunk as 0.0
	}
	result := make([]float32, n)
	for i := 0; i < len(data)/4; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		result[i] = math.Float32frombits(bits)
	}
	return result
}

// embeddingToBytes is the inverse of bytesToEmbedding.
func embeddingToBytes(vec []float32) []byte {
	data := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}

// SetEmbedding stores the embedding for one item.
func (ds *Dataset) SetEmbedding(id string, vec []float32) error {
	res, err := ds.db.conn.Exec("UPDATE items SET embedding = ? WHERE dataset = ? AND id = ?",
		embeddingToBytes(vec), ds.Name, id)
	if err != nil {
		return fmt.Errorf("storing embedding for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetItemEmbedding returns the embedding for a single item, or nil if not set.
func (ds *Dataset) GetItemEmbedding(id string) ([]float32, error) {
	var data []byte
	err := ds.db.conn.QueryRow("SELECT embedding FROM items WHERE dataset = ? AND id = ?", ds.Name, id).Scan(&data)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return bytesToEmbedding(data), nil
}

// ItemsWithEmbeddings returns all (id, embedding) pairs in insertion order.
func (ds *Dataset) ItemsWithEmbeddings() ([]ItemEmbedding, error) {
	rows, err := ds.db.conn.Query(`SELECT id, filepath, embedding FROM items
		WHERE dataset = ? AND embedding IS NOT NULL ORDER BY rowid`, ds.Name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ItemEmbedding
	for rows.Next() {
		var ie ItemEmbedding
		var data []byte
		if err := rows.Scan(&ie.ID, &ie.Filepath, &data); err != nil {
			return nil, err
		}
		ie.Embedding = bytesToEmbedding(data)
		result = append(result, ie)
	}
	return result, rows.Err()
}

// ItemsMissingEmbeddings returns the items that have no embedding yet.
func (ds *Dataset) ItemsMissingEmbeddings() ([]Item, error) {
	rows, err := ds.db.conn.Query(`SELECT `+itemColumns+` FROM items
		WHERE dataset = ? AND embedding IS NULL ORDER BY rowid`, ds.Name)
	if err != nil {
		return nil, err
	}
	return scanItems(rows)
}
