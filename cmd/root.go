package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/ravi0dubey/racoon-detection/internal/config"
	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/logger"
	"github.com/ravi0dubey/racoon-detection/internal/metrics"
	"github.com/ravi0dubey/racoon-detection/internal/telemetry"
)

const dbFileName = ".racoon.db"

var (
	dbPath      string
	datasetName string
	logLevel    string
	envFile     string

	cfg    *config.Config
	log    = zap.NewNop()
	tracer *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:           "racoon",
	Short:         "Raccoon detection data pipeline: frames, dedup, annotations, training",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		log, err = logger.New(level)
		if err != nil {
			return err
		}
		tracer, err = telemetry.InitTracer(cmd.Context(), cfg.OTLPEndpoint)
		if err != nil {
			log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		if err := metrics.Push(ctx, cfg.MetricsPushURL, "racoon", log); err != nil {
			log.Warn("metrics push failed", zap.Error(err))
		}
		if tracer != nil {
			if err := tracer.Shutdown(ctx); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}
		_ = log.Sync()
		return nil
	},
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to "+dbFileName+" database")
	rootCmd.PersistentFlags().StringVar(&datasetName, "dataset", "racoon_images", "Dataset name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this dotenv file")
}

// DiscoverDB finds the database path using priority: env > flag > walk-up > XDG fallback.
// A --db path that does not exist yet is returned as is and created on open.
func DiscoverDB() (string, error) {
	// 1. RACOON_DB, read into the config
	if cfg != nil && cfg.DBPath != "" {
		return cfg.DBPath, nil
	}

	// 2. CLI flag
	if dbPath != "" {
		if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
			return "", fmt.Errorf("database directory for --db path %s: %w", dbPath, err)
		}
		return dbPath, nil
	}

	// 3. Walk up from CWD
	dir, err := os.Getwd()
	if err == nil {
		for {
			candidate := filepath.Join(dir, dbFileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// 4. XDG fallback, created when missing
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("no %s found (set RACOON_DB or use --db): %w", dbFileName, err)
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(home, ".local", "share")
	}
	dataDir = filepath.Join(dataDir, "racoon")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return filepath.Join(dataDir, "racoon.db"), nil
}

// OpenDatabase discovers and opens the database
func OpenDatabase() (*db.DB, error) {
	path, err := DiscoverDB()
	if err != nil {
		return nil, err
	}
	log.Debug("opening database", zap.String("path", path))
	return db.OpenDB(path)
}

// openDataset opens the --dataset collection. With create it is made on
// first use; otherwise a missing dataset is an error naming the flag.
func openDataset(d *db.DB, create bool) (*db.Dataset, error) {
	if create {
		return d.OpenOrCreateDataset(datasetName)
	}
	ds, err := d.OpenDataset(datasetName)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("dataset %q does not exist (run ingest first or pass --dataset)", datasetName)
	}
	return ds, err
}
