package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Bounds is an axis-aligned rectangle in output pixels.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Empty reports whether the bounds cover no area or are not finite.
func (b Bounds) Empty() bool {
	return !finite(b.X, b.Y, b.Width, b.Height) || b.Width <= 0 || b.Height <= 0
}

// Quad is an oriented rectangle: P0 is the top-left corner, U runs to the
// top-right corner and V to the bottom-left corner.
type Quad struct {
	P0 Point
	U  Point
	V  Point
}

// Finite reports whether every component of q is a finite number.
func (q Quad) Finite() bool {
	return finite(q.P0.X, q.P0.Y, q.U.X, q.U.Y, q.V.X, q.V.Y)
}

// Corners are the four transformed corners of a shape.
type Corners struct {
	TL, TR, BL, BR Point
}

// Bounds returns the min/max extents of the corners.
func (c Corners) Bounds() Bounds {
	minX := math.Min(math.Min(c.TL.X, c.TR.X), math.Min(c.BL.X, c.BR.X))
	maxX := math.Max(math.Max(c.TL.X, c.TR.X), math.Max(c.BL.X, c.BR.X))
	minY := math.Min(math.Min(c.TL.Y, c.TR.Y), math.Min(c.BL.Y, c.BR.Y))
	maxY := math.Max(math.Max(c.TL.Y, c.TR.Y), math.Max(c.BL.Y, c.BR.Y))
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Quad returns the oriented footprint of the corners.
func (c Corners) Quad() Quad {
	return Quad{
		P0: c.TL,
		U:  Point{c.TR.X - c.TL.X, c.TR.Y - c.TL.Y},
		V:  Point{c.BL.X - c.TL.X, c.BL.Y - c.TL.Y},
	}
}

func cornersOf(m f64.Aff3, w, h float64) Corners {
	return Corners{
		TL: apply(m, Point{-w / 2, -h / 2}),
		TR: apply(m, Point{w / 2, -h / 2}),
		BL: apply(m, Point{-w / 2, h / 2}),
		BR: apply(m, Point{w / 2, h / 2}),
	}
}

// Resolve returns the corners of every sampling leaf under n. A plain node
// resolves to itself; a group resolves to each of its cells, in order.
func Resolve(n *Node) []Corners {
	if n == nil {
		return nil
	}
	var out []Corners
	resolveInto(&out, n.Matrix(), n)
	return out
}

func resolveInto(out *[]Corners, m f64.Aff3, n *Node) {
	if !n.IsGroup() {
		*out = append(*out, cornersOf(m, n.Width, n.Height))
		return
	}
	for _, child := range n.Children {
		resolveInto(out, mul(m, n.childMatrix(child)), child)
	}
}

// ResolveBounds returns the axis-aligned bounds of every leaf under n.
func ResolveBounds(n *Node) []Bounds {
	corners := Resolve(n)
	out := make([]Bounds, len(corners))
	for i, c := range corners {
		out[i] = c.Bounds()
	}
	return out
}

// ResolveQuads returns the oriented quads of every leaf under n.
func ResolveQuads(n *Node) []Quad {
	corners := Resolve(n)
	out := make([]Quad, len(corners))
	for i, c := range corners {
		out[i] = c.Quad()
	}
	return out
}

// ScaleContent rescales root nodes by (sx, sy) so they keep their relative
// placement after the backing surface is resized. It returns false when the
// ratio is not finite or is effectively 1.
func ScaleContent(nodes []*Node, sx, sy float64) bool {
	if !finite(sx, sy) {
		return false
	}
	if math.Abs(sx-1) < 1e-6 && math.Abs(sy-1) < 1e-6 {
		return false
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		n.Left *= sx
		n.Top *= sy
		n.ScaleX *= sx
		n.ScaleY *= sy
	}
	return true
}

// Snapshot records a root transform together with its absolute on-screen
// size, so the placement survives rebuilding the node with a different
// untransformed size.
type Snapshot struct {
	Transform
	AbsWidth  float64
	AbsHeight float64
}

// TakeSnapshot captures n's placement.
func TakeSnapshot(n *Node) Snapshot {
	w, h := n.ScaledSize()
	return Snapshot{Transform: n.Transform, AbsWidth: w, AbsHeight: h}
}

// ApplySnapshot restores a snapshot onto n. With preserveSize the scale is
// recomputed so n covers the snapshot's absolute size.
func ApplySnapshot(n *Node, s Snapshot, preserveSize bool) {
	t := s.Transform
	if t.ScaleX == 0 {
		t.ScaleX = 1
	}
	if t.ScaleY == 0 {
		t.ScaleY = 1
	}
	if preserveSize && n.Width > 0 && n.Height > 0 && s.AbsWidth > 0 && s.AbsHeight > 0 {
		t.ScaleX = s.AbsWidth / n.Width
		t.ScaleY = s.AbsHeight / n.Height
	}
	n.Transform = t
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
