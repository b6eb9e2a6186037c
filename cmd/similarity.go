package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ravi0dubey/racoon-detection/internal/embed"
	"github.com/ravi0dubey/racoon-detection/internal/similarity"
)

var (
	simBrainKey string
	simJSON     bool
)

var similarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Manage similarity indexes",
}

var similarityComputeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Embed the dataset's images and register a similarity index",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		ds, err := openDataset(d, false)
		if err != nil {
			return err
		}
		start := time.Now()
		index, err := similarity.Compute(cmd.Context(), ds, simBrainKey, embed.New(), log)
		if err != nil {
			return err
		}
		if simJSON {
			return printJSON(map[string]any{
				"dataset":   ds.Name,
				"brain_key": index.Key,
				"metric":    similarity.MetricCosine,
				"num_items": index.Len(),
			})
		}
		fmt.Printf("Indexed %s images under %q in %s\n",
			humanize.Comma(int64(index.Len())), index.Key, formatDurationShort(time.Since(start)))
		return nil
	},
}

func init() {
	similarityComputeCmd.Flags().StringVar(&simBrainKey, "brain-key", "img_sim", "Key the index is stored under")
	similarityComputeCmd.Flags().BoolVar(&simJSON, "json", false, "Output as JSON")
	similarityCmd.AddCommand(similarityComputeCmd)
	rootCmd.AddCommand(similarityCmd)
}
