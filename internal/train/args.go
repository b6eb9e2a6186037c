// Package train drives the Ultralytics YOLO command line for training,
// validation and prediction.
package train

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Args are key=value settings passed to the yolo command.
type Args map[string]any

// DefaultArgs returns the settings used for raccoon segmentation training.
func DefaultArgs() Args {
	return Args{
		"model":        "yolov8m.pt",
		"data":         "./racoon_dataset.yml",
		"epochs":       100,
		"imgsz":        640,
		"batch":        2,
		"device":       0,
		"workers":      16,
		"exist_ok":     true,
		"pretrained":   true,
		"project":      "racoon_detection",
		"name":         "train",
		"optimizer":    "auto",
		"verbose":      true,
		"seed":         0,
		"patience":     50,
		"save":         true,
		"save_period":  10,
		"cache":        "ram",
		"close_mosaic": 70,
		"amp":          true,
	}
}

// LoadArgs reads a YAML mapping of overrides.
func LoadArgs(path string) (Args, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading training args: %w", err)
	}
	var a Args
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing training args %s: %w", path, err)
	}
	return a, nil
}

// Merge returns a copy of a with every key of over applied on top.
func (a Args) Merge(over Args) Args {
	out := make(Args, len(a)+len(over))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// String returns the value of key formatted for the command line.
func (a Args) String(key string) string {
	v, ok := a[key]
	if !ok {
		return ""
	}
	return formatValue(v)
}

// Argv renders the settings as sorted key=value arguments.
func (a Args) Argv() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	argv := make([]string, 0, len(keys))
	for _, k := range keys {
		argv = append(argv, k+"="+formatValue(a[k]))
	}
	return argv
}

func formatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "True"
		}
		return "False"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return strings.Join(parts, ",")
	case []int:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, ",")
	case nil:
		return "None"
	}
	return fmt.Sprint(v)
}
