package frames

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ravi0dubey/racoon-detection/internal/proc"
)

// FFmpeg implements Decoder with the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpeg() *FFmpeg {
	return &FFmpeg{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

func (f *FFmpeg) FrameRate(ctx context.Context, video string) (float64, error) {
	out, err := proc.Output(ctx, f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		video,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", video, err)
	}
	fps, err := ParseFrameRate(firstLine(string(out)))
	if err != nil {
		return 0, err
	}
	if fps <= 0 {
		return 0, fmt.Errorf("ffprobe %s: no video stream", video)
	}
	return fps, nil
}

// Sample lets ffmpeg write into a private directory next to pattern and
// then moves the frames into place, so the count covers only this call.
func (f *FFmpeg) Sample(ctx context.Context, video string, interval int, pattern string) (int, error) {
	dir, name := filepath.Split(pattern)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.MkdirTemp(dir, ".frames-")
	if err != nil {
		return 0, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if _, err := proc.Output(ctx, f.FFmpegPath, SampleArgs(video, interval, filepath.Join(tmp, name))...); err != nil {
		return 0, fmt.Errorf("ffmpeg %s: %w", video, err)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return 0, fmt.Errorf("read staged frames: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Rename(filepath.Join(tmp, e.Name()), filepath.Join(dir, e.Name())); err != nil {
			return n, fmt.Errorf("move frame %s: %w", e.Name(), err)
		}
		n++
	}
	return n, nil
}

// SampleArgs builds the ffmpeg arguments that keep frames whose index is a
// multiple of interval.
func SampleArgs(video string, interval int, pattern string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-vf", fmt.Sprintf(`select=not(mod(n\,%d))`, interval),
		"-vsync", "vfr",
		"-q:v", "2",
		"-start_number", "1",
		"-y",
		pattern,
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
