package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ravi0dubey/racoon-detection/internal/scrape"
	"github.com/ravi0dubey/racoon-detection/internal/storage"
)

var scrapeJSON bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape <config>",
	Short: "Collect reference images per animal and upload them to a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := scrape.LoadConfig(args[0])
		if err != nil {
			return err
		}
		store, err := storage.NewMinioStore(cfg.Storage())
		if err != nil {
			return err
		}
		report, err := scrape.New(*sc, store, log).Run(cmd.Context())
		if err != nil {
			return err
		}
		if scrapeJSON {
			return printJSON(report)
		}
		fmt.Printf("Saved %d images to %s (%d undersized, %d failed)\n",
			len(report.Saved), sc.Bucket, report.Undersize, report.Failed)
		return nil
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(scrapeCmd)
}
