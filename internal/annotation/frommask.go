package annotation

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// SimplifyRatio scales a contour's perimeter into the Douglas-Peucker
// tolerance.
const SimplifyRatio = 0.005

// MaskConverter turns color-coded mask images into YOLO label files. Every
// distinct non-black color is a class; class ids are handed out in the
// order colors are first seen and stay fixed for the converter's lifetime.
type MaskConverter struct {
	classes map[color.RGBA]int
	logger  *zap.Logger
}

func NewMaskConverter(logger *zap.Logger) *MaskConverter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaskConverter{classes: make(map[color.RGBA]int), logger: logger}
}

// Classes returns the color of each class id seen so far, indexed by id.
func (c *MaskConverter) Classes() []color.RGBA {
	out := make([]color.RGBA, len(c.classes))
	for col, id := range c.classes {
		out[id] = col
	}
	return out
}

func (c *MaskConverter) classID(col color.RGBA) int {
	id, ok := c.classes[col]
	if !ok {
		id = len(c.classes)
		c.classes[col] = id
	}
	return id
}

// ConvertDir converts every .png in inDir and writes <stem>.txt files into
// outDir. Returns the label files written.
func (c *MaskConverter) ConvertDir(inDir, outDir string) ([]string, error) {
	masks, err := filepath.Glob(filepath.Join(inDir, "*.png"))
	if err != nil {
		return nil, err
	}
	sort.Strings(masks)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var written []string
	for _, m := range masks {
		out := filepath.Join(outDir, stem(m)+".txt")
		if err := c.ConvertFile(m, out); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	c.logger.Info("converted masks",
		zap.Int("masks", len(masks)),
		zap.Int("classes", len(c.classes)),
	)
	return written, nil
}

// ConvertFile converts one mask image into a label file at outPath.
func (c *MaskConverter) ConvertFile(maskPath, outPath string) error {
	f, err := os.Open(maskPath)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decoding %s: %w", maskPath, err)
	}
	polys := c.Polygons(img)
	if err := WriteLabels(outPath, polys); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	c.logger.Debug("converted mask", zap.String("mask", maskPath), zap.Int("polygons", len(polys)))
	return nil
}

// Polygons extracts one normalized polygon per external contour of every
// non-black color. Alpha is ignored.
func (c *MaskConverter) Polygons(img image.Image) []Polygon {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]color.RGBA, w*h)
	present := make(map[color.RGBA]bool)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			col := color.RGBA{R: n.R, G: n.G, B: n.B, A: 255}
			pix[y*w+x] = col
			present[col] = true
		}
	}

	var polys []Polygon
	for _, col := range sortedColors(present) {
		if col.R == 0 && col.G == 0 && col.B == 0 {
			continue
		}
		class := c.classID(col)
		m := &binaryMask{w: w, h: h, on: make([]bool, w*h)}
		for i, p := range pix {
			m.on[i] = p == col
		}
		for _, contour := range externalContours(m) {
			pts := make([]Point, len(contour))
			for i, p := range contour {
				pts[i] = Point{X: float64(p.x), Y: float64(p.y)}
			}
			approx := simplifyClosed(pts, SimplifyRatio*arcLength(pts))
			for i := range approx {
				approx[i].X /= float64(w)
				approx[i].Y /= float64(h)
			}
			polys = append(polys, Polygon{Class: class, Points: approx})
		}
	}
	return polys
}

// sortedColors orders colors by blue, then green, then red channel.
func sortedColors(set map[color.RGBA]bool) []color.RGBA {
	out := make([]color.RGBA, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.B != b.B {
			return a.B < b.B
		}
		if a.G != b.G {
			return a.G < b.G
		}
		return a.R < b.R
	})
	return out
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
