package cmd

import (
	"fmt"
	"image/color"

	"github.com/spf13/cobra"

	"github.com/ravi0dubey/racoon-detection/internal/annotation"
)

var (
	annotateJSON  bool
	yoloImagesDir string
	yoloVerify    bool
)

var maskToYOLOCmd = &cobra.Command{
	Use:   "mask-to-yolo <masks-dir> <labels-dir>",
	Short: "Convert color-coded mask PNGs into YOLO segmentation labels",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv := annotation.NewMaskConverter(log)
		written, err := conv.ConvertDir(args[0], args[1])
		if err != nil {
			return err
		}
		classes := conv.Classes()
		if annotateJSON {
			return printJSON(map[string]any{
				"written": written,
				"classes": colorHexes(classes),
			})
		}
		fmt.Printf("Wrote %d label files to %s\n", len(written), args[1])
		for i, c := range colorHexes(classes) {
			fmt.Printf("  class %d  %s\n", i, c)
		}
		return nil
	},
}

var yoloToMaskCmd = &cobra.Command{
	Use:   "yolo-to-mask <labels-dir> <out-dir>",
	Short: "Render YOLO segmentation labels as mask PNGs",
	Long: "Renders each <stem>.txt that has a matching <stem>.jpg in --images as <stem>.png.\n" +
		"With --verify the mask is blended over the image and written as <stem>_verified.png.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		imgDir := yoloImagesDir
		if imgDir == "" {
			imgDir = args[0]
		}
		written, err := annotation.NewLabelRenderer(yoloVerify, log).RenderDir(args[0], imgDir, args[1])
		if err != nil {
			return err
		}
		if annotateJSON {
			return printJSON(map[string]any{"written": written})
		}
		fmt.Printf("Wrote %d images to %s\n", len(written), args[1])
		return nil
	},
}

func colorHexes(cs []color.RGBA) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return out
}

func init() {
	maskToYOLOCmd.Flags().BoolVar(&annotateJSON, "json", false, "Output as JSON")
	yoloToMaskCmd.Flags().BoolVar(&annotateJSON, "json", false, "Output as JSON")
	yoloToMaskCmd.Flags().StringVar(&yoloImagesDir, "images", "", "Directory with the source .jpg images (default: labels dir)")
	yoloToMaskCmd.Flags().BoolVar(&yoloVerify, "verify", false, "Write image/mask overlays instead of bare masks")
	rootCmd.AddCommand(maskToYOLOCmd, yoloToMaskCmd)
}
