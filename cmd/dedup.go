package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ravi0dubey/racoon-detection/internal/db"
	"github.com/ravi0dubey/racoon-detection/internal/dedup"
	"github.com/ravi0dubey/racoon-detection/internal/similarity"
)

var (
	dedupBrainKey  string
	dedupThreshold float64
	dedupFraction  float64
	dedupGrouping  string
	dedupSimilar   string
	dedupTopN      int
	dedupMinSim    float64
	dedupJSON      bool
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Find and resolve near-duplicate images",
}

var dedupFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Flag near-duplicates and save the duplicate views",
	Long: "Loads the similarity index, flags near-duplicates by --threshold (cosine distance)\n" +
		"or --fraction (share of the dataset), and saves approx_dup_view and approx_dup_groups_view.\n" +
		"Without either flag the THRESHOLD environment setting is used.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		engine, err := newEngine(d)
		if err != nil {
			return err
		}
		summary, err := engine.FindApproximateDuplicates(cmd.Context(), dedupBrainKey, selectorFromFlags(cmd))
		if err != nil {
			return err
		}
		if dedupJSON {
			return printJSON(summary)
		}
		printSummary(summary)
		return nil
	},
}

var dedupGroupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Show the saved duplicate groups",
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
		if dedupSimilar != "" {
			return showSimilar(ds, dedupSimilar)
		}
		grouped, err := dedup.NewMaterializer(ds).Grouped()
		if err != nil {
			return err
		}
		if dedupJSON {
			return printJSON(grouped)
		}
		if len(grouped.Groups) == 0 {
			fmt.Println("No duplicate groups.")
			return nil
		}
		for _, g := range grouped.Groups {
			fmt.Printf("  group %s (%d images)\n", truncID(g.ID), len(g.Items))
			for i, it := range g.Items {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				fmt.Printf("    %s %s  %s\n", marker, truncID(it.ID), truncPath(it.Filepath, 60))
			}
		}
		fmt.Println("\n  * kept by keep-one")
		return nil
	},
}

var dedupRemoveAllCmd = &cobra.Command{
	Use:   "remove-all",
	Short: "Delete every image that belongs to a duplicate group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPolicy(cmd, dedup.PolicyRemoveAll)
	},
}

var dedupKeepOneCmd = &cobra.Command{
	Use:   "keep-one",
	Short: "Keep the image with the smallest filepath in each group and delete the rest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPolicy(cmd, dedup.PolicyKeepOne)
	},
}

var dedupViewsCmd = &cobra.Command{
	Use:   "views",
	Short: "List saved views of the dataset",
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
		names, err := ds.ListViews()
		if err != nil {
			return err
		}
		views := make([]*db.SavedView, 0, len(names))
		for _, name := range names {
			v, err := ds.LoadView(name)
			if err != nil {
				return err
			}
			views = append(views, v)
		}
		if dedupJSON {
			return printJSON(views)
		}
		if len(views) == 0 {
			fmt.Println("No saved views.")
			return nil
		}
		for _, v := range views {
			fmt.Printf("  %-28s %-9s %s items\n", v.Name, v.Kind, humanize.Comma(int64(len(v.ItemIDs))))
		}
		return nil
	},
}

func newEngine(d *db.DB) (*dedup.Engine, error) {
	mode, err := dedup.ParseGroupingMode(dedupGrouping)
	if err != nil {
		return nil, err
	}
	ds, err := openDataset(d, false)
	if err != nil {
		return nil, err
	}
	return dedup.NewEngine(ds, mode, log), nil
}

// selectorFromFlags prefers explicit flags, falling back to the configured
// threshold.
func selectorFromFlags(cmd *cobra.Command) similarity.Selector {
	var sel similarity.Selector
	if cmd.Flags().Changed("threshold") {
		sel.Threshold = &dedupThreshold
	}
	if cmd.Flags().Changed("fraction") {
		sel.Fraction = &dedupFraction
	}
	if sel.Threshold == nil && sel.Fraction == nil {
		t := cfg.Threshold
		sel.Threshold = &t
	}
	return sel
}

func runPolicy(cmd *cobra.Command, policy string) error {
	d, err := OpenDatabase()
	if err != nil {
		return err
	}
	defer d.Close()

	engine, err := newEngine(d)
	if err != nil {
		return err
	}
	var res *dedup.Resolution
	switch policy {
	case dedup.PolicyRemoveAll:
		res, err = engine.RemoveAll(cmd.Context())
	default:
		res, err = engine.KeepOnePerGroup(cmd.Context())
	}
	if errors.Is(err, dedup.ErrNotComputed) {
		return fmt.Errorf("%w (run `racoon dedup find` first)", err)
	}
	if err != nil {
		return err
	}
	if dedupJSON {
		return printJSON(res)
	}
	fmt.Printf("Policy %s: kept %s, deleted %s\n", res.Policy,
		humanize.Comma(int64(len(res.Kept))), humanize.Comma(int64(len(res.Deleted))))
	return nil
}

func showSimilar(ds *db.Dataset, id string) error {
	target, err := ds.GetItemEmbedding(id)
	if err != nil {
		return fmt.Errorf("item %s: %w", id, err)
	}
	if target == nil {
		return fmt.Errorf("item %s has no embedding (run `racoon similarity compute`)", id)
	}
	all, err := ds.ItemsWithEmbeddings()
	if err != nil {
		return err
	}
	results := similarity.FindSimilar(target, all, id, dedupTopN, float32(dedupMinSim))
	if dedupJSON {
		return printJSON(results)
	}
	if len(results) == 0 {
		fmt.Println("No similar images.")
		return nil
	}
	for _, r := range results {
		fmt.Printf("  %.3f  %s  %s\n", r.Similarity, truncID(r.ID), filepath.Base(r.Filepath))
	}
	return nil
}

func printSummary(s dedup.Summary) {
	fmt.Printf("  Images with approximate duplicates: %s\n", humanize.Comma(int64(s.ImagesWithDuplicates)))
	fmt.Printf("  Duplicate groups:                   %s\n", humanize.Comma(int64(s.DuplicateGroups)))
	fmt.Printf("  Excess duplicates:                  %s\n", humanize.Comma(int64(s.ExcessDuplicates)))
}

func init() {
	dedupCmd.PersistentFlags().StringVar(&dedupGrouping, "grouping", string(dedup.GroupStar), "Grouping mode: star or transitive")
	dedupCmd.PersistentFlags().BoolVar(&dedupJSON, "json", false, "Output as JSON")

	for _, c := range []*cobra.Command{dedupFindCmd, dedupPipelineCmd} {
		c.Flags().StringVar(&dedupBrainKey, "brain-key", "img_sim", "Similarity index key")
		c.Flags().Float64Var(&dedupThreshold, "threshold", 0.3, "Cosine distance threshold")
		c.Flags().Float64Var(&dedupFraction, "fraction", 0, "Fraction of the dataset to flag as duplicates")
	}
	dedupGroupsCmd.Flags().StringVar(&dedupSimilar, "similar", "", "Show the images most similar to this item id instead")
	dedupGroupsCmd.Flags().IntVar(&dedupTopN, "top-n", 10, "Number of similar images with --similar")
	dedupGroupsCmd.Flags().Float64Var(&dedupMinSim, "min-similarity", 0.5, "Minimum cosine similarity with --similar")

	dedupCmd.AddCommand(dedupFindCmd, dedupGroupsCmd, dedupRemoveAllCmd, dedupKeepOneCmd, dedupViewsCmd, dedupPipelineCmd)
	rootCmd.AddCommand(dedupCmd)
}
