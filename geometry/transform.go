package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Point is a position or a vector in output-pixel space.
type Point struct {
	X, Y float64
}

// Transform is the editable placement of a shape. Left and Top locate the
// shape's top-left origin; Angle, SkewX and SkewY are in degrees and rotation
// happens about that origin.
type Transform struct {
	Left   float64
	Top    float64
	Angle  float64
	ScaleX float64
	ScaleY float64
	SkewX  float64
	SkewY  float64
	FlipX  bool
	FlipY  bool
}

// Identity returns a transform placed at the origin with unit scale.
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// Node is a transformable rectangle of Width x Height untransformed pixels.
// A node with children is a group: each child is positioned in the parent's
// unscaled local space, relative to the parent's top-left corner, and only
// the children are sampled.
type Node struct {
	Transform
	Width    float64
	Height   float64
	Children []*Node
}

// NewRect returns a leaf node at (left, top) with the given size.
func NewRect(left, top, width, height float64) *Node {
	t := Identity()
	t.Left = left
	t.Top = top
	return &Node{Transform: t, Width: width, Height: height}
}

// IsGroup reports whether n resolves to its children rather than itself.
func (n *Node) IsGroup() bool {
	return len(n.Children) > 0
}

func identityAff() f64.Aff3 {
	return f64.Aff3{1, 0, 0, 0, 1, 0}
}

// mul returns m*n, so that n is applied first.
func mul(m, n f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		m[0]*n[0] + m[1]*n[3],
		m[0]*n[1] + m[1]*n[4],
		m[0]*n[2] + m[1]*n[5] + m[2],
		m[3]*n[0] + m[4]*n[3],
		m[3]*n[1] + m[4]*n[4],
		m[3]*n[2] + m[4]*n[5] + m[5],
	}
}

func apply(m f64.Aff3, p Point) Point {
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

func translate(x, y float64) f64.Aff3 {
	return f64.Aff3{1, 0, x, 0, 1, y}
}

func rotate(deg float64) f64.Aff3 {
	if deg == 0 {
		return identityAff()
	}
	s, c := math.Sincos(deg * math.Pi / 180)
	return f64.Aff3{c, -s, 0, s, c, 0}
}

// dimensions returns the scale/flip/skew part of the transform.
func (t Transform) dimensions() f64.Aff3 {
	sx, sy := t.ScaleX, t.ScaleY
	if t.FlipX {
		sx = -sx
	}
	if t.FlipY {
		sy = -sy
	}
	m := f64.Aff3{sx, 0, 0, 0, sy, 0}
	if t.SkewX != 0 {
		m = mul(m, f64.Aff3{1, math.Tan(t.SkewX * math.Pi / 180), 0, 0, 1, 0})
	}
	if t.SkewY != 0 {
		m = mul(m, f64.Aff3{1, 0, 0, math.Tan(t.SkewY * math.Pi / 180), 1, 0})
	}
	return m
}

// transformedSize is the axis-aligned extent of the scaled and skewed, but
// not rotated, rectangle.
func (t Transform) transformedSize(w, h float64) (float64, float64) {
	d := t.dimensions()
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4]Point{{-w / 2, -h / 2}, {w / 2, -h / 2}, {-w / 2, h / 2}, {w / 2, h / 2}} {
		q := apply(d, p)
		minX, maxX = math.Min(minX, q.X), math.Max(maxX, q.X)
		minY, maxY = math.Min(minY, q.Y), math.Max(maxY, q.Y)
	}
	return maxX - minX, maxY - minY
}

// center returns the shape's center point in the coordinate space Left/Top
// are expressed in.
func (t Transform) center(w, h float64) Point {
	dw, dh := t.transformedSize(w, h)
	return apply(mul(translate(t.Left, t.Top), rotate(t.Angle)), Point{dw / 2, dh / 2})
}

// matrix maps the shape's center-relative local coordinates into the space
// Left/Top are expressed in.
func (t Transform) matrix(w, h float64) f64.Aff3 {
	c := t.center(w, h)
	return mul(mul(translate(c.X, c.Y), rotate(t.Angle)), t.dimensions())
}

// Matrix returns the full affine matrix of a root node: local points are
// relative to the node's center.
func (n *Node) Matrix() f64.Aff3 {
	return n.Transform.matrix(n.Width, n.Height)
}

// childMatrix places child into parent's center-relative space.
func (n *Node) childMatrix(child *Node) f64.Aff3 {
	local := child.Transform.matrix(child.Width, child.Height)
	return mul(translate(-n.Width/2, -n.Height/2), local)
}

// Center returns the node's center in output pixels.
func (n *Node) Center() Point {
	return n.Transform.center(n.Width, n.Height)
}

// RotateAboutCenter sets the rotation to deg while keeping the node's center
// fixed, the way rotation handles behave.
func (n *Node) RotateAboutCenter(deg float64) {
	c := n.Center()
	n.Angle = deg
	dw, dh := n.Transform.transformedSize(n.Width, n.Height)
	off := apply(rotate(deg), Point{dw / 2, dh / 2})
	n.Left = c.X - off.X
	n.Top = c.Y - off.Y
}

// ScaledSize returns the node's untransformed size multiplied by its scale.
func (n *Node) ScaledSize() (float64, float64) {
	return n.Width * math.Abs(n.ScaleX), n.Height * math.Abs(n.ScaleY)
}
