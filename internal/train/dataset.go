package train

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dataset is the YOLO dataset descriptor referenced by the data argument.
type Dataset struct {
	Path  string         `yaml:"path"`
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  string         `yaml:"test,omitempty"`
	Names map[int]string `yaml:"names"`
}

// DefaultDataset lays out train/val/test image folders under root.
func DefaultDataset(root string, names []string) Dataset {
	d := Dataset{
		Path:  root,
		Train: "train/images",
		Val:   "valid/images",
		Test:  "test/images",
		Names: make(map[int]string, len(names)),
	}
	for i, n := range names {
		d.Names[i] = n
	}
	return d
}

func WriteDataset(path string, d Dataset) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding dataset descriptor: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing dataset descriptor: %w", err)
	}
	return nil
}

func ReadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset descriptor: %w", err)
	}
	var d Dataset
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing dataset descriptor %s: %w", path, err)
	}
	return &d, nil
}
