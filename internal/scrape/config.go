// Package scrape collects reference images for each animal category from a
// website and stores them in a bucket.
package scrape

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Size is a minimum image size in pixels.
type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Config drives one scrape. JSON config files parse unchanged because JSON
// is valid YAML.
type Config struct {
	Animals           []string `yaml:"animals" json:"animals"`
	ImagesPerCategory int      `yaml:"images_per_category" json:"images_per_category"`
	MinimumSize       Size     `yaml:"minimum_size" json:"minimum_size"`
	Bucket            string   `yaml:"gcs_bucket" json:"gcs_bucket"`
	BaseURL           string   `yaml:"base_url" json:"base_url"`
}

// LoadConfig reads and validates a config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scrape config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scrape config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scrape config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case len(c.Animals) == 0:
		return fmt.Errorf("animals is empty")
	case c.ImagesPerCategory <= 0:
		return fmt.Errorf("images_per_category must be positive")
	case c.Bucket == "":
		return fmt.Errorf("gcs_bucket is required")
	case c.BaseURL == "":
		return fmt.Errorf("base_url is required")
	case c.MinimumSize.Width < 0 || c.MinimumSize.Height < 0:
		return fmt.Errorf("minimum_size must not be negative")
	}
	return nil
}
