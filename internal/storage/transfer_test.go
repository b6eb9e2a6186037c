package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memStore keeps buckets in memory and mimics prefix listing.
type memStore struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{buckets: make(map[string]map[string][]byte)}
}

func (m *memStore) set(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = make(map[string][]byte)
	}
	m.buckets[bucket][key] = data
}

func (m *memStore) keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *memStore) List(_ context.Context, bucket, prefix string, recursive bool) ([]Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []Object
	for k, v := range m.buckets[bucket] {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !recursive {
			if i := strings.Index(k[len(prefix):], "/"); i >= 0 {
				p := k[:len(prefix)+i+1]
				if !seen[p] {
					seen[p] = true
					out = append(out, Object{Key: p})
				}
				continue
			}
		}
		out = append(out, Object{Key: k, Size: int64(len(v))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) Download(_ context.Context, bucket, key, dest string) error {
	m.mu.Lock()
	data, ok := m.buckets[bucket][key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such key %s", key)
	}
	return os.WriteFile(dest, data, 0644)
}

func (m *memStore) Upload(_ context.Context, bucket, key, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	m.set(bucket, key, data)
	return nil
}

func (m *memStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.set(bucket, key, buf.Bytes())
	return nil
}

func testConfig(t *testing.T) TransferConfig {
	return TransferConfig{
		InputBucket:      "extracted",
		OutputBucket:     "dedup",
		AnnotationBucket: "annotations",
		ImagesPrefix:     "cam1/",
		LocalDir:         t.TempDir(),
	}
}

func TestDownloadImages_FiltersAndSkipsExisting(t *testing.T) {
	store := newMemStore()
	store.set("extracted", "cam1/a.jpg", []byte("a"))
	store.set("extracted", "cam1/sub/b.jpg", []byte("b"))
	store.set("extracted", "cam1/notes.txt", []byte("x"))
	store.set("extracted", "cam2/c.jpg", []byte("c"))

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.LocalDir, "a.jpg"), []byte("local"), 0644))

	tr := NewTransfer(store, cfg, zaptest.NewLogger(t))
	written, err := tr.DownloadImages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cfg.LocalDir, "b.jpg")}, written)

	got, err := os.ReadFile(filepath.Join(cfg.LocalDir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(got), "existing file must not be overwritten")
	_, err = os.Stat(filepath.Join(cfg.LocalDir, "c.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestUploadDelta(t *testing.T) {
	store := newMemStore()
	cfg := testConfig(t)
	store.set("dedup", "old.jpg", []byte("o"))
	store.set("annotations", "001/x.jpg", []byte("x"))
	store.set("annotations", "002/y.jpg", []byte("y"))
	store.set("annotations", "exports/z.zip", []byte("z"))
	store.set("annotations", "readme.txt", []byte("r"))

	var paths []string
	for _, name := range []string{"old.jpg", "new1.jpg", "new2.jpg"} {
		p := filepath.Join(cfg.LocalDir, name)
		require.NoError(t, os.WriteFile(p, []byte(name), 0644))
		paths = append(paths, p)
	}

	tr := NewTransfer(store, cfg, zaptest.NewLogger(t))
	report, err := tr.UploadDelta(context.Background(), paths)
	require.NoError(t, err)

	assert.Equal(t, []string{"new1.jpg", "new2.jpg"}, report.Uploaded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "003", report.AnnotationDir)
	assert.Equal(t, []string{"new1.jpg", "new2.jpg", "old.jpg"}, store.keys("dedup"))
	assert.Contains(t, store.keys("annotations"), "003/new1.jpg")
	assert.Contains(t, store.keys("annotations"), "003/new2.jpg")
	assert.NotContains(t, store.keys("annotations"), "003/old.jpg")
}

func TestUploadDelta_NothingNew(t *testing.T) {
	store := newMemStore()
	cfg := testConfig(t)
	p := filepath.Join(cfg.LocalDir, "a.jpg")
	require.NoError(t, os.WriteFile(p, []byte("a"), 0644))
	store.set("dedup", "a.jpg", []byte("a"))

	report, err := NewTransfer(store, cfg, nil).UploadDelta(context.Background(), []string{p})
	require.NoError(t, err)
	assert.Empty(t, report.Uploaded)
	assert.Empty(t, report.AnnotationDir)
	assert.Empty(t, store.keys("annotations"))
}

func TestNextAnnotationDir_EmptyBucket(t *testing.T) {
	tr := NewTransfer(newMemStore(), testConfig(t), nil)
	dir, err := tr.nextAnnotationDir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "001", dir)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", contentType("a/B.JPG"))
	assert.Equal(t, "image/png", contentType("mask.png"))
	assert.Equal(t, "text/plain", contentType("labels/a.txt"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}
