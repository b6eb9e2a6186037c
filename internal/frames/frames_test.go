package frames

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0644))
}

// fakeDecoder pretends every video has 10 frames at a fixed rate.
type fakeDecoder struct {
	fps  map[string]float64
	fail map[string]bool
}

func (f *fakeDecoder) FrameRate(_ context.Context, video string) (float64, error) {
	if f.fail[filepath.Base(video)] {
		return 0, errors.New("corrupt container")
	}
	return f.fps[filepath.Base(video)], nil
}

func (f *fakeDecoder) Sample(_ context.Context, _ string, interval int, pattern string) (int, error) {
	n := 0
	for frame := 0; frame < 10; frame++ {
		if frame%interval != 0 {
			continue
		}
		n++
		if err := os.WriteFile(fmt.Sprintf(pattern, n), nil, 0644); err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestInterval(t *testing.T) {
	tests := []struct {
		fps, rate float64
		want      int
	}{
		{30, 1, 30},
		{29.97, 1, 30},
		{30, 2, 15},
		{25, 30, 1},
		{0, 1, 1},
		{30, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Interval(tt.fps, tt.rate), "fps=%g rate=%g", tt.fps, tt.rate)
	}
}

func TestParseFrameRate(t *testing.T) {
	got, err := ParseFrameRate("30000/1001\n")
	require.NoError(t, err)
	assert.InDelta(t, 29.97, got, 0.01)

	got, err = ParseFrameRate("25")
	require.NoError(t, err)
	assert.Equal(t, 25.0, got)

	_, err = ParseFrameRate("30/0")
	assert.Error(t, err)
	_, err = ParseFrameRate("n/a")
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.mp4"))
	touch(t, filepath.Join(root, "nested", "b.MOV"))
	touch(t, filepath.Join(root, "nested", "deeper", "c.mkv"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "d.avi"))

	videos, err := Discover(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.mp4"),
		filepath.Join(root, "d.avi"),
		filepath.Join(root, "nested", "b.MOV"),
		filepath.Join(root, "nested", "deeper", "c.mkv"),
	}, videos)
}

func TestExtractAll_FailureDoesNotStopOthers(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	touch(t, filepath.Join(root, "cam1.mp4"))
	touch(t, filepath.Join(root, "cam2.mp4"))
	touch(t, filepath.Join(root, "broken.avi"))

	dec := &fakeDecoder{
		fps:  map[string]float64{"cam1.mp4": 4, "cam2.mp4": 10},
		fail: map[string]bool{"broken.avi": true},
	}
	results, err := NewExtractor(dec, 2, 2, zaptest.NewLogger(t)).ExtractAll(context.Background(), root, out)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NotEmpty(t, results[0].Error, "broken.avi sorts first")
	assert.Equal(t, 2, results[1].Interval)
	assert.Equal(t, 5, results[1].Frames)
	assert.Equal(t, 5, results[2].Interval)
	assert.Equal(t, 2, results[2].Frames)

	assert.FileExists(t, filepath.Join(out, "cam1_001.jpg"))
	assert.FileExists(t, filepath.Join(out, "cam1_005.jpg"))
	assert.FileExists(t, filepath.Join(out, "cam2_002.jpg"))
	assert.NoFileExists(t, filepath.Join(out, "cam2_003.jpg"))
}

func TestExtractAll_InvalidRate(t *testing.T) {
	_, err := NewExtractor(&fakeDecoder{}, 0, 1, nil).ExtractAll(context.Background(), t.TempDir(), t.TempDir())
	assert.Error(t, err)
}

func TestSampleArgs(t *testing.T) {
	args := SampleArgs("in.mp4", 15, "/out/in_%03d.jpg")
	assert.Contains(t, args, `select=not(mod(n\,15))`)
	assert.Equal(t, "/out/in_%03d.jpg", args[len(args)-1])
}

func TestStem(t *testing.T) {
	assert.Equal(t, "clip", Stem("/videos/day1/clip.mp4"))
	assert.Equal(t, "a.b", Stem("a.b.mkv"))
}

func TestExtractAll_CreatesOutputDir(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "cam1.mp4"))
	out := filepath.Join(t.TempDir(), "not", "yet", "there")

	dec := &fakeDecoder{fps: map[string]float64{"cam1.mp4": 10}}
	results, err := NewExtractor(dec, 2, 1, nil).ExtractAll(context.Background(), root, out)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.FileExists(t, filepath.Join(out, "cam1_001.jpg"))
}

func TestOutputStems(t *testing.T) {
	got := OutputStems([]string{"/v/a/clip.mp4", "/v/b/clip.mov", "/v/c/clip.mkv", "/v/clip-2.mp4", "/v/other.mp4"})
	assert.Equal(t, []string{"clip", "clip-3", "clip-4", "clip-2", "other"}, got)
}

func TestExtractAll_SameStemInSubdirs(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	touch(t, filepath.Join(root, "day1", "clip.mp4"))
	touch(t, filepath.Join(root, "day2", "clip.mp4"))

	dec := &fakeDecoder{fps: map[string]float64{"clip.mp4": 10}}
	results, err := NewExtractor(dec, 2, 2, nil).ExtractAll(context.Background(), root, out)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Frames)
	assert.Equal(t, 2, results[1].Frames)
	assert.FileExists(t, filepath.Join(out, "clip_002.jpg"))
	assert.FileExists(t, filepath.Join(out, "clip-2_002.jpg"))
}

func TestFFmpegSample_CountsOnlyThisRun(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	// writes three frames to the output pattern, its last argument
	script := "#!/bin/sh\nfor last; do :; done\nfor i in 1 2 3; do : > \"$(printf \"$last\" $i)\"; done\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0755))

	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0755))
	touch(t, filepath.Join(out, "clip_007.jpg"))
	touch(t, filepath.Join(out, "clip_123_001.jpg"))

	f := &FFmpeg{FFmpegPath: bin, FFprobePath: "ffprobe"}
	n, err := f.Sample(context.Background(), "clip.mp4", 5, filepath.Join(out, "clip_%03d.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.FileExists(t, filepath.Join(out, "clip_001.jpg"))
	assert.FileExists(t, filepath.Join(out, "clip_003.jpg"))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 5, "staging dir must be removed")
}
