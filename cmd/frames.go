package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi0dubey/racoon-detection/internal/frames"
)

var (
	framesRate     float64
	framesParallel int
	framesFFmpeg   string
	framesFFprobe  string
	framesJSON     bool
)

var extractFramesCmd = &cobra.Command{
	Use:   "extract-frames <root> <out>",
	Short: "Sample still frames from every video under a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dec := frames.NewFFmpeg()
		dec.FFmpegPath = framesFFmpeg
		dec.FFprobePath = framesFFprobe

		start := time.Now()
		results, err := frames.NewExtractor(dec, framesRate, framesParallel, log).ExtractAll(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if framesJSON {
			return printJSON(results)
		}

		total, failed := 0, 0
		for _, r := range results {
			if r.Error != "" {
				failed++
				fmt.Printf("  FAIL %s: %s\n", truncPath(r.Video, 50), r.Error)
				continue
			}
			total += r.Frames
			fmt.Printf("  %-50s every %d → %d frames\n", truncPath(r.Video, 50), r.Interval, r.Frames)
		}
		fmt.Printf("\n%d videos, %d frames, %d failed in %s\n",
			len(results), total, failed, formatDurationShort(time.Since(start)))
		if failed > 0 {
			return fmt.Errorf("%d of %d videos failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	extractFramesCmd.Flags().Float64Var(&framesRate, "rate", 1, "Frames to keep per second of video")
	extractFramesCmd.Flags().IntVar(&framesParallel, "parallel", 0, "Videos processed at once (0 = one per CPU)")
	extractFramesCmd.Flags().StringVar(&framesFFmpeg, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	extractFramesCmd.Flags().StringVar(&framesFFprobe, "ffprobe", "ffprobe", "Path to the ffprobe binary")
	extractFramesCmd.Flags().BoolVar(&framesJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(extractFramesCmd)
}
