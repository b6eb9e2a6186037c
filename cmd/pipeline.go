package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/dedup"
	"github.com/ravi0dubey/racoon-detection/internal/embed"
	"github.com/ravi0dubey/racoon-detection/internal/similarity"
	"github.com/ravi0dubey/racoon-detection/internal/storage"
)

type pipelineResult struct {
	Downloaded int                   `json:"downloaded"`
	Ingested   *ingestResult         `json:"ingested"`
	Summary    dedup.Summary         `json:"summary"`
	Resolution *dedup.Resolution     `json:"resolution"`
	Upload     *storage.UploadReport `json:"upload"`
	Duration   string                `json:"duration"`
}

var dedupPipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Download frames, drop near-duplicates and publish the rest",
	Long: "Runs the whole deduplication stage: download .jpg frames from INPUT_BUCKET into LOCAL_DIR,\n" +
		"rebuild the dataset, compute similarity, keep one image per duplicate group, then upload\n" +
		"images missing from OUTPUT_BUCKET and copy them to the next numbered directory of\n" +
		"ANNOTATION_SET_BUCKET.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireBuckets(); err != nil {
			return err
		}
		store, err := storage.NewMinioStore(cfg.Storage())
		if err != nil {
			return err
		}
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		transfer := storage.NewTransfer(store, cfg.Transfer(), log)
		result, err := runPipeline(cmd.Context(), d, transfer, embed.New(), cfg.LocalDir, selectorFromFlags(cmd))
		if err != nil {
			return err
		}
		if dedupJSON {
			return printJSON(result)
		}
		fmt.Printf("Downloaded %d new images, dataset has %d\n", result.Downloaded, result.Ingested.Total)
		printSummary(result.Summary)
		fmt.Printf("Kept %d, deleted %d\n", len(result.Resolution.Kept), len(result.Resolution.Deleted))
		fmt.Printf("Uploaded %d (skipped %d)", len(result.Upload.Uploaded), result.Upload.Skipped)
		if result.Upload.AnnotationDir != "" {
			fmt.Printf(", annotation set %s", result.Upload.AnnotationDir)
		}
		fmt.Printf("\nDone in %s\n", result.Duration)
		return nil
	},
}

// runPipeline downloads into localDir, rebuilds the dataset from it, keeps
// one image per duplicate group and uploads the survivors.
func runPipeline(ctx context.Context, d *db.DB, transfer *storage.Transfer, embedder similarity.Embedder,
	localDir string, sel similarity.Selector) (*pipelineResult, error) {
	start := time.Now()

	downloaded, err := transfer.DownloadImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("downloading images: %w", err)
	}
	ds, err := recreateDataset(d)
	if err != nil {
		return nil, err
	}
	ingested, err := ingestDir(ds, localDir)
	if err != nil {
		return nil, err
	}
	if _, err := similarity.Compute(ctx, ds, dedupBrainKey, embedder, log); err != nil {
		return nil, err
	}

	engine, err := newEngine(d)
	if err != nil {
		return nil, err
	}
	summary, err := engine.FindApproximateDuplicates(ctx, dedupBrainKey, sel)
	if err != nil {
		return nil, err
	}
	res, err := engine.KeepOnePerGroup(ctx)
	if err != nil {
		return nil, err
	}

	items, err := ds.Items()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(items))
	for i, it := range items {
		paths[i] = it.Filepath
	}
	upload, err := transfer.UploadDelta(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("uploading images: %w", err)
	}

	return &pipelineResult{
		Downloaded: len(downloaded),
		Ingested:   ingested,
		Summary:    summary,
		Resolution: res,
		Upload:     upload,
		Duration:   formatDurationShort(time.Since(start)),
	}, nil
}

// recreateDataset drops any previous run's dataset so views and group ids
// start clean.
func recreateDataset(d *db.DB) (*db.Dataset, error) {
	exists, err := d.DatasetExists(datasetName)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Info("deleting existing dataset", zap.String("dataset", datasetName))
		if err := d.DeleteDataset(datasetName); err != nil {
			return nil, err
		}
	}
	return d.CreateDataset(datasetName)
}
