// Package proc runs external tools (ffmpeg, yolo) with bounded stderr
// capture.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// StderrLimit bounds how much stderr a failed command reports.
const StderrLimit = 10 * 1024

// CappedBuffer is a bytes.Buffer that stops writing after a byte limit.
type CappedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	Limit int
}

func (c *CappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.Limit - c.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
	}
	_, err := c.buf.Write(toWrite)
	// cmd.Stderr expects every byte accepted
	return len(p), err
}

func (c *CappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Output runs name with args and returns its stdout. On failure the error
// carries the start of stderr.
func Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout bytes.Buffer
	if err := run(ctx, &stdout, nil, name, args...); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Stream runs name with args, copying both stdout and stderr to w.
func Stream(ctx context.Context, w io.Writer, name string, args ...string) error {
	lw := &lockedWriter{w: w}
	return run(ctx, lw, lw, name, args...)
}

// lockedWriter serializes the stdout and stderr copy goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func run(ctx context.Context, stdout, stderrTee io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &CappedBuffer{Limit: StderrLimit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if stderrTee != nil {
		cmd.Stderr = io.MultiWriter(stderr, stderrTee)
	}
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil
}
