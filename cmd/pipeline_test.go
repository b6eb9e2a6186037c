package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/similarity"
	"github.com/ravi0dubey/racoon-detection/internal/storage"
)

// fakeStore keeps buckets in memory; non-recursive listings collapse keys
// into their first-level prefixes.
type fakeStore map[string]map[string][]byte

func (f fakeStore) put(bucket, key string, data []byte) {
	if f[bucket] == nil {
		f[bucket] = map[string][]byte{}
	}
	f[bucket][key] = data
}

func (f fakeStore) keys(bucket string) []string {
	var keys []string
	for k := range f[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f fakeStore) List(_ context.Context, bucket, prefix string, recursive bool) ([]storage.Object, error) {
	seen := map[string]bool{}
	var out []storage.Object
	for _, k := range f.keys(bucket) {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if !recursive {
			if i := strings.Index(k[len(prefix):], "/"); i >= 0 {
				p := k[:len(prefix)+i+1]
				if !seen[p] {
					seen[p] = true
					out = append(out, storage.Object{Key: p})
				}
				continue
			}
		}
		out = append(out, storage.Object{Key: k, Size: int64(len(f[bucket][k]))})
	}
	return out, nil
}

func (f fakeStore) Download(_ context.Context, bucket, key, dest string) error {
	data, ok := f[bucket][key]
	if !ok {
		return fmt.Errorf("no such key %s", key)
	}
	return os.WriteFile(dest, data, 0644)
}

func (f fakeStore) Upload(_ context.Context, bucket, key, src string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	f.put(bucket, key, data)
	return nil
}

func (f fakeStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.put(bucket, key, data)
	return nil
}

// baseEmbedder looks vectors up by file name.
type baseEmbedder map[string][]float32

func (b baseEmbedder) Embed(path string) ([]float32, error) {
	v, ok := b[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("cannot decode %s", path)
	}
	return v, nil
}

func TestRunPipeline(t *testing.T) {
	localDir := t.TempDir()
	store := fakeStore{}
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		store.put("raw", "frames/"+name, []byte(name))
	}
	store.put("raw", "frames/notes.txt", []byte("skip"))
	store.put("clean", "c.jpg", []byte("c.jpg"))
	store.put("annotate", "001/old.jpg", []byte("old"))

	d, err := db.OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	stale, err := d.CreateDataset(datasetName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := stale.AddItem("/gone/stale.jpg", nil); err != nil {
		t.Fatal(err)
	}

	transfer := storage.NewTransfer(store, storage.TransferConfig{
		InputBucket:      "raw",
		OutputBucket:     "clean",
		AnnotationBucket: "annotate",
		ImagesPrefix:     "frames/",
		LocalDir:         localDir,
	}, nil)
	emb := baseEmbedder{
		"a.jpg": {1, 0},
		"b.jpg": {0.99, 0.14},
		"c.jpg": {0, 1},
	}
	th := 0.05

	res, err := runPipeline(context.Background(), d, transfer, emb, localDir, similarity.Selector{Threshold: &th})
	if err != nil {
		t.Fatalf("runPipeline: %v", err)
	}

	if res.Downloaded != 3 {
		t.Errorf("downloaded %d, want 3", res.Downloaded)
	}
	if res.Ingested.Total != 3 {
		t.Errorf("dataset should be rebuilt from the download, got %d items", res.Ingested.Total)
	}
	if res.Summary.ImagesWithDuplicates != 2 || res.Summary.DuplicateGroups != 1 || res.Summary.ExcessDuplicates != 1 {
		t.Errorf("unexpected summary %+v", res.Summary)
	}
	if len(res.Resolution.Deleted) != 1 {
		t.Fatalf("expected one deletion, got %v", res.Resolution.Deleted)
	}

	ds, err := d.OpenDataset(datasetName)
	if err != nil {
		t.Fatal(err)
	}
	items, err := ds.Items()
	if err != nil {
		t.Fatal(err)
	}
	var left []string
	for _, it := range items {
		left = append(left, filepath.Base(it.Filepath))
	}
	sort.Strings(left)
	if strings.Join(left, ",") != "a.jpg,c.jpg" {
		t.Errorf("remaining items %v, want [a.jpg c.jpg]", left)
	}

	if got := strings.Join(res.Upload.Uploaded, ","); got != "a.jpg" {
		t.Errorf("uploaded %q, want a.jpg", got)
	}
	if res.Upload.Skipped != 1 {
		t.Errorf("skipped %d, want 1 (c.jpg already in the output bucket)", res.Upload.Skipped)
	}
	if res.Upload.AnnotationDir != "002" {
		t.Errorf("annotation dir %q, want 002", res.Upload.AnnotationDir)
	}
	if got := strings.Join(store.keys("annotate"), ","); got != "001/old.jpg,002/a.jpg" {
		t.Errorf("annotation bucket keys %s", got)
	}
	if got := strings.Join(store.keys("clean"), ","); got != "a.jpg,c.jpg" {
		t.Errorf("output bucket keys %s", got)
	}
}
