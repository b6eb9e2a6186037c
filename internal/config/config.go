// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ravi0dubey/racoon-detection/internal/storage"
)

type Config struct {
	InputBucket      string  `env:"INPUT_BUCKET"`
	OutputBucket     string  `env:"OUTPUT_BUCKET"`
	AnnotationBucket string  `env:"ANNOTATION_SET_BUCKET"`
	ImagesPrefix     string  `env:"IMAGES_PREFIX"`
	LocalDir         string  `env:"LOCAL_DIR"             envDefault:"/app/images"`
	Threshold        float64 `env:"THRESHOLD"             envDefault:"0.3"`

	StorageEndpoint  string `env:"STORAGE_ENDPOINT"   envDefault:"storage.googleapis.com"`
	StorageAccessKey string `env:"STORAGE_ACCESS_KEY"`
	StorageSecretKey string `env:"STORAGE_SECRET_KEY"`
	StorageUseSSL    bool   `env:"STORAGE_USE_SSL"    envDefault:"true"`
	StorageRegion    string `env:"STORAGE_REGION"`

	DBPath         string `env:"RACOON_DB"`
	MetricsPushURL string `env:"METRICS_PUSH_URL"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads envFile when given, then parses the environment. Variables
// already set in the process win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

func (c *Config) Storage() storage.StorageConfig {
	return storage.StorageConfig{
		Endpoint:  c.StorageEndpoint,
		AccessKey: c.StorageAccessKey,
		SecretKey: c.StorageSecretKey,
		UseSSL:    c.StorageUseSSL,
		Region:    c.StorageRegion,
	}
}

func (c *Config) Transfer() storage.TransferConfig {
	return storage.TransferConfig{
		InputBucket:      c.InputBucket,
		OutputBucket:     c.OutputBucket,
		AnnotationBucket: c.AnnotationBucket,
		ImagesPrefix:     c.ImagesPrefix,
		LocalDir:         c.LocalDir,
	}
}

// RequireBuckets reports the first bucket variable that is unset, in the
// order input, output, annotation set.
func (c *Config) RequireBuckets() error {
	buckets := []struct{ name, value string }{
		{"INPUT_BUCKET", c.InputBucket},
		{"OUTPUT_BUCKET", c.OutputBucket},
		{"ANNOTATION_SET_BUCKET", c.AnnotationBucket},
	}
	for _, b := range buckets {
		if b.value == "" {
			return fmt.Errorf("%s is not set", b.name)
		}
	}
	return nil
}
