package annotation

import "math"

type pixel struct{ x, y int }

// ring lists the 8 neighbors clockwise (y grows downward), starting west.
var ring = [8]pixel{{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}}

func ringIndex(d pixel) int {
	for i, r := range ring {
		if r == d {
			return i
		}
	}
	return 0
}

// binaryMask is a row-major foreground bitmap.
type binaryMask struct {
	w, h int
	on   []bool
}

func (m *binaryMask) at(p pixel) bool {
	if p.x < 0 || p.y < 0 || p.x >= m.w || p.y >= m.h {
		return false
	}
	return m.on[p.y*m.w+p.x]
}

// externalContours returns the outer boundary of every 8-connected
// component, in raster order of each component's first pixel. Holes are
// not traced.
func externalContours(m *binaryMask) [][]pixel {
	seen := make([]bool, len(m.on))
	var contours [][]pixel
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			i := y*m.w + x
			if !m.on[i] || seen[i] {
				continue
			}
			markComponent(m, pixel{x, y}, seen)
			contours = append(contours, traceBoundary(m, pixel{x, y}))
		}
	}
	return contours
}

func markComponent(m *binaryMask, start pixel, seen []bool) {
	stack := []pixel{start}
	seen[start.y*m.w+start.x] = true
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range ring {
			q := pixel{p.x + d.x, p.y + d.y}
			if !m.at(q) || seen[q.y*m.w+q.x] {
				continue
			}
			seen[q.y*m.w+q.x] = true
			stack = append(stack, q)
		}
	}
}

// traceBoundary walks the outer boundary clockwise with Moore-neighbor
// tracing. start must be the raster-first pixel of its component, so its
// west neighbor is background.
func traceBoundary(m *binaryMask, start pixel) []pixel {
	contour := []pixel{start}
	p := start
	back := pixel{start.x - 1, start.y}
	var second *pixel
	limit := 4*len(m.on) + 8

	for steps := 0; steps < limit; steps++ {
		bi := ringIndex(pixel{back.x - p.x, back.y - p.y})
		found := false
		for k := 1; k <= 8; k++ {
			j := (bi + k) % 8
			q := pixel{p.x + ring[j].x, p.y + ring[j].y}
			if !m.at(q) {
				continue
			}
			prev := ring[(j+7)%8]
			back = pixel{p.x + prev.x, p.y + prev.y}
			if p == start && second != nil && q == *second {
				return contour
			}
			if second == nil {
				s := q
				second = &s
			}
			p = q
			found = true
			break
		}
		if !found {
			// isolated pixel
			return contour
		}
		if p == start {
			continue
		}
		contour = append(contour, p)
	}
	return contour
}

// arcLength is the perimeter of the closed polygon through pts.
func arcLength(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	total := 0.0
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		total += math.Hypot(b.X-a.X, b.Y-a.Y)
	}
	return total
}

// simplifyClosed reduces a closed polygon with Douglas-Peucker. The ring is
// split at the vertex farthest from the first one and both halves are
// simplified separately.
func simplifyClosed(pts []Point, epsilon float64) []Point {
	if len(pts) < 3 {
		return append([]Point{}, pts...)
	}
	far, farDist := 0, -1.0
	for i, p := range pts {
		if d := math.Hypot(p.X-pts[0].X, p.Y-pts[0].Y); d > farDist {
			far, farDist = i, d
		}
	}
	if far == 0 {
		return []Point{pts[0]}
	}
	first := douglasPeucker(pts[:far+1], epsilon)
	closing := append(append([]Point{}, pts[far:]...), pts[0])
	second := douglasPeucker(closing, epsilon)

	out := append([]Point{}, first...)
	// second starts at pts[far] and ends at pts[0], both already present
	out = append(out, second[1:len(second)-1]...)
	return out
}

func douglasPeucker(pts []Point, epsilon float64) []Point {
	if len(pts) < 3 {
		return append([]Point{}, pts...)
	}
	a, b := pts[0], pts[len(pts)-1]
	idx, maxDist := 0, -1.0
	for i := 1; i < len(pts)-1; i++ {
		if d := segmentDistance(pts[i], a, b); d > maxDist {
			idx, maxDist = i, d
		}
	}
	if maxDist <= epsilon {
		return []Point{a, b}
	}
	left := douglasPeucker(pts[:idx+1], epsilon)
	right := douglasPeucker(pts[idx:], epsilon)
	return append(left[:len(left)-1], right...)
}

// segmentDistance is the distance from p to the segment ab.
func segmentDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	if dx == 0 && dy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}
