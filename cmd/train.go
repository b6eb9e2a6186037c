package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi0dubey/racoon-detection/internal/train"
)

var (
	trainTask       string
	trainArgsFile   string
	trainSet        []string
	trainTestSource string
	trainBin        string
	trainDatasetDir string
	trainClasses    []string
	trainDryRun     bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and validate a YOLO model with the Ultralytics CLI",
	Long: "Runs `yolo <task> train` with the raccoon defaults, then `yolo <task> val` on the best\n" +
		"checkpoint. Settings come from the defaults, then --args (YAML), then --set key=value.\n" +
		"With --dataset-dir the dataset descriptor named by the data setting is written first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := train.DefaultArgs()
		if trainArgsFile != "" {
			over, err := train.LoadArgs(trainArgsFile)
			if err != nil {
				return err
			}
			settings = settings.Merge(over)
		}
		over, err := parseSettings(trainSet)
		if err != nil {
			return err
		}
		settings = settings.Merge(over)

		if trainDatasetDir != "" {
			ds := train.DefaultDataset(trainDatasetDir, trainClasses)
			if err := train.WriteDataset(settings.String("data"), ds); err != nil {
				return err
			}
		}

		runner := train.NewRunner(trainTask, os.Stdout, log)
		runner.Bin = trainBin
		if trainDryRun {
			fmt.Println(runner.Bin, strings.Join(runner.Command("train", settings), " "))
			return nil
		}
		start := time.Now()
		if err := runner.Train(cmd.Context(), settings, trainTestSource); err != nil {
			return err
		}
		fmt.Printf("\nTraining finished in %s, weights at %s\n",
			formatDurationShort(time.Since(start)), train.BestWeights(settings))
		return nil
	},
}

func parseSettings(kvs []string) (train.Args, error) {
	out := train.Args{}
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	trainCmd.Flags().StringVar(&trainTask, "task", "segment", "YOLO task: segment or detect")
	trainCmd.Flags().StringVar(&trainArgsFile, "args", "", "YAML file with training setting overrides")
	trainCmd.Flags().StringArrayVar(&trainSet, "set", nil, "Override one setting as key=value (repeatable)")
	trainCmd.Flags().StringVar(&trainTestSource, "test-source", "", "Predict on these images after validation")
	trainCmd.Flags().StringVar(&trainBin, "yolo", "yolo", "Path to the yolo executable")
	trainCmd.Flags().StringVar(&trainDatasetDir, "dataset-dir", "", "Write the dataset descriptor for this root first")
	trainCmd.Flags().StringSliceVar(&trainClasses, "classes", []string{"raccoon"}, "Class names for the dataset descriptor")
	trainCmd.Flags().BoolVar(&trainDryRun, "dry-run", false, "Print the training command without running it")
	rootCmd.AddCommand(trainCmd)
}
