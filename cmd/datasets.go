package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ravi0dubey/racoon-detection/internal/db"
)

var datasetsJSON bool

type datasetInfo struct {
	Name  string `json:"name"`
	Items int    `json:"items"`
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List datasets with their item counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		infos, err := listDatasets(d)
		if err != nil {
			return err
		}
		if datasetsJSON {
			return printJSON(infos)
		}
		if len(infos) == 0 {
			fmt.Println("No datasets.")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("  %-28s %s items\n", info.Name, humanize.Comma(int64(info.Items)))
		}
		return nil
	},
}

func listDatasets(d *db.DB) ([]datasetInfo, error) {
	names, err := d.ListDatasets()
	if err != nil {
		return nil, err
	}
	infos := make([]datasetInfo, 0, len(names))
	for _, name := range names {
		ds, err := d.OpenDataset(name)
		if err != nil {
			return nil, err
		}
		n, err := ds.Count()
		if err != nil {
			return nil, err
		}
		infos = append(infos, datasetInfo{Name: name, Items: n})
	}
	return infos, nil
}

func init() {
	datasetsCmd.Flags().BoolVar(&datasetsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(datasetsCmd)
}
