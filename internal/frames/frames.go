// Package frames samples still images out of video files.
package frames

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ravi0dubey/racoon-detection/internal/metrics"
)

// VideoExtensions are the container formats picked up by Discover.
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// Decoder probes and samples a single video.
type Decoder interface {
	// FrameRate returns the video's frames per second.
	FrameRate(ctx context.Context, video string) (float64, error)
	// Sample writes every interval-th frame to pattern, a printf pattern
	// with one integer verb numbered from 1. Returns the frames written.
	Sample(ctx context.Context, video string, interval int, pattern string) (int, error)
}

// Result is the outcome for one video.
type Result struct {
	Video    string `json:"video"`
	Interval int    `json:"interval"`
	Frames   int    `json:"frames"`
	Error    string `json:"error,omitempty"`
}

// Extractor samples frames from every video under a directory tree.
type Extractor struct {
	decoder  Decoder
	rate     float64
	parallel int
	logger   *zap.Logger
}

// NewExtractor samples rate frames per second of video. parallel <= 0
// means one worker per CPU.
func NewExtractor(decoder Decoder, rate float64, parallel int, logger *zap.Logger) *Extractor {
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{decoder: decoder, rate: rate, parallel: parallel, logger: logger}
}

// ExtractAll samples every video under root into outDir. A video that fails
// is recorded in its Result and does not stop the others. Results are in
// path order.
func (e *Extractor) ExtractAll(ctx context.Context, root, outDir string) ([]Result, error) {
	ctx, span := otel.Tracer("frames").Start(ctx, "frames.ExtractAll")
	defer span.End()

	if e.rate <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %g", e.rate)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	videos, err := Discover(root)
	if err != nil {
		return nil, err
	}
	stems := OutputStems(videos)
	span.SetAttributes(attribute.Int("videos", len(videos)))

	results := make([]Result, len(videos))
	var mu sync.Mutex
	total := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, video := range videos {
		g.Go(func() error {
			res := e.extract(gctx, video, filepath.Join(outDir, stems[i]+"_%03d.jpg"))
			results[i] = res
			if res.Error != "" {
				e.logger.Warn("video failed", zap.String("video", video), zap.String("error", res.Error))
				return nil
			}
			e.logger.Info("video processed",
				zap.String("video", video),
				zap.Int("frames", res.Frames),
				zap.Int("interval", res.Interval),
			)
			mu.Lock()
			total += res.Frames
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	metrics.FramesExtractedTotal.Add(float64(total))
	span.SetAttributes(attribute.Int("frames", total))
	return results, ctx.Err()
}

func (e *Extractor) extract(ctx context.Context, video, pattern string) Result {
	res := Result{Video: video}
	fps, err := e.decoder.FrameRate(ctx, video)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Interval = Interval(fps, e.rate)
	n, err := e.decoder.Sample(ctx, video, res.Interval, pattern)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Frames = n
	return res
}

// Interval returns how many source frames separate two samples: fps / rate
// rounded, at least 1.
func Interval(fps, rate float64) int {
	if fps <= 0 || rate <= 0 {
		return 1
	}
	n := int(math.Round(fps / rate))
	if n < 1 {
		return 1
	}
	return n
}

// Discover returns every video file under root, sorted.
func Discover(root string) ([]string, error) {
	var videos []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		for _, v := range VideoExtensions {
			if ext == v {
				videos = append(videos, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(videos)
	return videos, nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputStems names each video's frames by its stem. Videos sharing a stem
// in different directories get -2, -3 and so on, in path order, so their
// frames never overwrite each other.
func OutputStems(videos []string) []string {
	stems := make([]string, len(videos))
	taken := make(map[string]bool, len(videos))
	seen := make(map[string]int, len(videos))
	for _, v := range videos {
		taken[Stem(v)] = true
	}
	for i, v := range videos {
		stem := Stem(v)
		seen[stem]++
		if seen[stem] == 1 {
			stems[i] = stem
			continue
		}
		for n := seen[stem]; ; n++ {
			cand := stem + "-" + strconv.Itoa(n)
			if !taken[cand] {
				taken[cand] = true
				stems[i] = cand
				break
			}
		}
	}
	return stems
}

// ParseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, isFrac := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	if !isFrac {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("parse frame rate %q: zero denominator", s)
	}
	return n / d, nil
}
