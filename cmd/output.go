package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncPath keeps the tail of a long path, which is the part that differs.
func truncPath(s string, max int) string {
	if len(s) <= max || max < 4 {
		return s
	}
	tail := s[len(s)-(max-3):]
	for len(tail) > 0 && tail[0]>>6 == 2 {
		tail = tail[1:]
	}
	return "..." + tail
}

// formatDurationShort renders d as 850ms, 12.3s or 4m05s.
func formatDurationShort(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("%dm%02ds", m, s)
	}
}
