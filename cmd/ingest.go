package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/metrics"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Add every .jpg under a directory to the dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		ds, err := openDataset(d, true)
		if err != nil {
			return err
		}
		res, err := ingestDir(ds, args[0])
		if err != nil {
			return err
		}
		if ingestJSON {
			return printJSON(res)
		}
		fmt.Printf("Found %s images, added %s to %s (%s total)\n",
			humanize.Comma(int64(res.Found)), humanize.Comma(int64(res.Added)),
			ds.Name, humanize.Comma(int64(res.Total)))
		return nil
	},
}

type ingestResult struct {
	Dataset string `json:"dataset"`
	Found   int    `json:"found"`
	Added   int    `json:"added"`
	Total   int    `json:"total"`
}

func ingestDir(ds *db.Dataset, dir string) (*ingestResult, error) {
	paths, err := findImages(dir)
	if err != nil {
		return nil, err
	}
	added, err := ds.AddItems(paths)
	if err != nil {
		return nil, err
	}
	metrics.ItemsIngestedTotal.Add(float64(added))
	total, err := ds.Count()
	if err != nil {
		return nil, err
	}
	log.Info("ingested images", zap.String("dir", dir), zap.Int("found", len(paths)), zap.Int("added", added))
	return &ingestResult{Dataset: ds.Name, Found: len(paths), Added: added, Total: total}, nil
}

// findImages returns the absolute paths of .jpg files under dir, sorted.
func findImages(dir string) ([]string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	err = filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() && strings.EqualFold(filepath.Ext(p), ".jpg") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(ingestCmd)
}
