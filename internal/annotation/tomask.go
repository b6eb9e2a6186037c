package annotation

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/image/vector"
)

// DefaultPalette colors the first ten class ids.
var DefaultPalette = map[int]color.RGBA{
	0: {255, 0, 0, 255},
	1: {0, 255, 0, 255},
	2: {0, 0, 255, 255},
	3: {255, 255, 0, 255},
	4: {255, 0, 255, 255},
	5: {0, 255, 255, 255},
	6: {128, 0, 0, 255},
	7: {0, 128, 0, 255},
	8: {0, 0, 128, 255},
	9: {128, 128, 0, 255},
}

// unknownClass colors classes missing from the palette.
var unknownClass = color.RGBA{255, 255, 255, 255}

// RenderMask fills every polygon with its class color on a black w x h
// canvas. Overlapping fills add per channel, saturating at 255.
func RenderMask(polys []Polygon, w, h int, palette map[int]color.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.RGBA{0, 0, 0, 255}), image.Point{}, draw.Src)

	for _, p := range polys {
		if len(p.Points) == 0 {
			continue
		}
		col, ok := palette[p.Class]
		if !ok {
			col = unknownClass
		}
		cover := fillPolygon(p.Points, w, h)
		for i, a := range cover.Pix {
			if a == 0 {
				continue
			}
			o := i * 4
			out.Pix[o] = addSat(out.Pix[o], col.R)
			out.Pix[o+1] = addSat(out.Pix[o+1], col.G)
			out.Pix[o+2] = addSat(out.Pix[o+2], col.B)
		}
	}
	return out
}

// fillPolygon rasterizes a normalized polygon. Vertices snap to whole
// pixels and sit on pixel centers, so boundary pixels are covered.
func fillPolygon(pts []Point, w, h int) *image.Alpha {
	z := vector.NewRasterizer(w, h)
	for i, p := range pts {
		x := float32(int(p.X*float64(w))) + 0.5
		y := float32(int(p.Y*float64(h))) + 0.5
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})
	if len(pts) < 3 {
		// degenerate polygons still mark their vertices
		for _, p := range pts {
			x, y := int(p.X*float64(w)), int(p.Y*float64(h))
			if x >= 0 && y >= 0 && x < w && y < h {
				dst.SetAlpha(x, y, color.Alpha{A: 255})
			}
		}
	}
	return dst
}

func addSat(a, b uint8) uint8 {
	s := int(a) + int(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}

// Blend mixes img and mask half and half.
func Blend(img image.Image, mask *image.RGBA) *image.RGBA {
	b := mask.Bounds()
	out := image.NewRGBA(b)
	ib := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			n := color.NRGBAModel.Convert(img.At(ib.Min.X+x, ib.Min.Y+y)).(color.NRGBA)
			m := mask.RGBAAt(x, y)
			out.SetRGBA(x, y, color.RGBA{
				R: half(n.R, m.R),
				G: half(n.G, m.G),
				B: half(n.B, m.B),
				A: 255,
			})
		}
	}
	return out
}

func half(a, b uint8) uint8 {
	return uint8((int(a) + int(b) + 1) / 2)
}

// LabelRenderer writes masks, or verification overlays, for label files
// that have a matching .jpg image.
type LabelRenderer struct {
	Palette map[int]color.RGBA
	Verify  bool
	logger  *zap.Logger
}

func NewLabelRenderer(verify bool, logger *zap.Logger) *LabelRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LabelRenderer{Palette: DefaultPalette, Verify: verify, logger: logger}
}

// RenderDir handles every .txt in labelDir. Labels whose image is missing
// are skipped with a warning. Returns the files written.
func (r *LabelRenderer) RenderDir(labelDir, imgDir, outDir string) ([]string, error) {
	labels, err := filepath.Glob(filepath.Join(labelDir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(labels)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	for _, label := range labels {
		imgPath := filepath.Join(imgDir, stem(label)+".jpg")
		img, err := decodeImage(imgPath)
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("image not found, skipping", zap.String("image", imgPath))
			continue
		}
		if err != nil {
			return written, err
		}
		polys, err := ReadLabels(label)
		if err != nil {
			return written, err
		}

		b := img.Bounds()
		mask := RenderMask(polys, b.Dx(), b.Dy(), r.Palette)
		out := filepath.Join(outDir, stem(label)+".png")
		result := mask
		if r.Verify {
			out = filepath.Join(outDir, stem(label)+"_verified.png")
			result = Blend(img, mask)
		}
		if err := writePNG(out, result); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	r.logger.Info("rendered labels", zap.Int("labels", len(labels)), zap.Int("written", len(written)), zap.Bool("verify", r.Verify))
	return written, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
