package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/ravi0dubey/racoon-detection/internal/metrics"
)

// TransferConfig names the buckets of the deduplication stage.
type TransferConfig struct {
	InputBucket      string
	OutputBucket     string
	AnnotationBucket string
	ImagesPrefix     string
	LocalDir         string
}

// Transfer downloads raw frames and publishes deduplicated ones.
type Transfer struct {
	store  ObjectStore
	cfg    TransferConfig
	logger *zap.Logger
}

func NewTransfer(store ObjectStore, cfg TransferConfig, logger *zap.Logger) *Transfer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transfer{store: store, cfg: cfg, logger: logger}
}

// UploadReport describes one UploadDelta call.
type UploadReport struct {
	Uploaded      []string `json:"uploaded"`
	Skipped       int      `json:"skipped"`
	AnnotationDir string   `json:"annotation_dir,omitempty"`
}

// DownloadImages copies every .jpg under the input prefix into LocalDir,
// flattened to its base name. Files already present locally are skipped.
// Returns the local paths that were written.
func (t *Transfer) DownloadImages(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(t.cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("create local dir: %w", err)
	}
	objects, err := t.store.List(ctx, t.cfg.InputBucket, t.cfg.ImagesPrefix, true)
	if err != nil {
		return nil, err
	}
	t.logger.Info("downloading images",
		zap.String("bucket", t.cfg.InputBucket),
		zap.String("prefix", t.cfg.ImagesPrefix),
		zap.String("local_dir", t.cfg.LocalDir),
	)

	var written []string
	var bytes uint64
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".jpg") {
			continue
		}
		local := filepath.Join(t.cfg.LocalDir, path.Base(obj.Key))
		if _, err := os.Stat(local); err == nil {
			t.logger.Debug("skipped existing image", zap.String("key", obj.Key), zap.String("path", local))
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return written, err
		}
		if err := t.store.Download(ctx, t.cfg.InputBucket, obj.Key, local); err != nil {
			return written, err
		}
		written = append(written, local)
		if obj.Size > 0 {
			bytes += uint64(obj.Size)
		}
		metrics.ObjectsTransferredTotal.WithLabelValues("download").Inc()
	}
	t.logger.Info("download finished",
		zap.Int("downloaded", len(written)),
		zap.String("size", humanize.Bytes(bytes)),
	)
	return written, nil
}

// UploadDelta uploads the files in paths whose key (path relative to
// LocalDir) is not in the output bucket yet. The same delta then goes to
// the annotation bucket under the next numbered directory.
func (t *Transfer) UploadDelta(ctx context.Context, paths []string) (*UploadReport, error) {
	existing, err := t.store.List(ctx, t.cfg.OutputBucket, "", true)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, obj := range existing {
		have[obj.Key] = true
	}

	base, err := filepath.Abs(t.cfg.LocalDir)
	if err != nil {
		return nil, err
	}
	report := &UploadReport{Uploaded: []string{}}
	type pending struct{ local, key string }
	var delta []pending
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(base, abs)
		if err != nil {
			return nil, fmt.Errorf("key for %s: %w", p, err)
		}
		key := filepath.ToSlash(rel)
		if have[key] {
			report.Skipped++
			continue
		}
		delta = append(delta, pending{local: p, key: key})
	}

	for _, d := range delta {
		if err := t.store.Upload(ctx, t.cfg.OutputBucket, d.key, d.local); err != nil {
			return report, err
		}
		report.Uploaded = append(report.Uploaded, d.key)
		metrics.ObjectsTransferredTotal.WithLabelValues("upload").Inc()
	}
	if len(delta) == 0 {
		t.logger.Info("nothing to upload", zap.Int("skipped", report.Skipped))
		return report, nil
	}

	dir, err := t.nextAnnotationDir(ctx)
	if err != nil {
		return report, err
	}
	report.AnnotationDir = dir
	for _, d := range delta {
		if err := t.store.Upload(ctx, t.cfg.AnnotationBucket, dir+"/"+d.key, d.local); err != nil {
			return report, err
		}
		metrics.ObjectsTransferredTotal.WithLabelValues("upload").Inc()
	}
	t.logger.Info("upload finished",
		zap.Int("uploaded", len(report.Uploaded)),
		zap.Int("skipped", report.Skipped),
		zap.String("annotation_dir", dir),
	)
	return report, nil
}

// nextAnnotationDir returns one more than the largest all-digit top-level
// directory of the annotation bucket, formatted as %03d.
func (t *Transfer) nextAnnotationDir(ctx context.Context) (string, error) {
	objects, err := t.store.List(ctx, t.cfg.AnnotationBucket, "", false)
	if err != nil {
		return "", err
	}
	highest := 0
	for _, obj := range objects {
		top, _, ok := strings.Cut(obj.Key, "/")
		if !ok || !isDigits(top) {
			continue
		}
		if n, err := strconv.Atoi(top); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%03d", highest+1), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
