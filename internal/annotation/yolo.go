// Package annotation converts between color-coded segmentation masks and
// YOLO polygon label files.
package annotation

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Point is a polygon vertex. In a label file coordinates are normalized to
// [0, 1] by the image width and height.
type Point struct {
	X, Y float64
}

// Polygon is one line of a YOLO segmentation label file:
// "class x1 y1 x2 y2 ...".
type Polygon struct {
	Class  int
	Points []Point
}

// ParseLine parses one label line.
func ParseLine(line string) (Polygon, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Polygon{}, fmt.Errorf("empty label line")
	}
	class, err := strconv.Atoi(fields[0])
	if err != nil {
		// some exporters write the class as a float
		f, ferr := strconv.ParseFloat(fields[0], 64)
		if ferr != nil {
			return Polygon{}, fmt.Errorf("parse class %q: %w", fields[0], err)
		}
		class = int(f)
	}
	coords := fields[1:]
	if len(coords)%2 != 0 {
		return Polygon{}, fmt.Errorf("odd number of coordinates (%d)", len(coords))
	}
	p := Polygon{Class: class, Points: make([]Point, 0, len(coords)/2)}
	for i := 0; i < len(coords); i += 2 {
		x, err := strconv.ParseFloat(coords[i], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("parse x %q: %w", coords[i], err)
		}
		y, err := strconv.ParseFloat(coords[i+1], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("parse y %q: %w", coords[i+1], err)
		}
		p.Points = append(p.Points, Point{X: x, Y: y})
	}
	return p, nil
}

// FormatLine renders p as a label line without a trailing newline.
func FormatLine(p Polygon) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(p.Class))
	for _, pt := range p.Points {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(pt.X, 'f', -1, 64))
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(pt.Y, 'f', -1, 64))
	}
	return sb.String()
}

// ReadLabels reads every non-blank line of a label file.
func ReadLabels(path string) ([]Polygon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var polys []Polygon
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		polys = append(polys, p)
	}
	return polys, sc.Err()
}

// WriteLabels writes polygons to path, one per line.
func WriteLabels(path string, polys []Polygon) error {
	var sb strings.Builder
	for _, p := range polys {
		sb.WriteString(FormatLine(p))
		sb.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(sb.String()), 0644)
}
