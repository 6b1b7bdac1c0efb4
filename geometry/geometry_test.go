package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundsUnrotated(t *testing.T) {
	n := NewRect(10, 20, 100, 50)
	b := ResolveBounds(n)
	require.Len(t, b, 1)
	assert.InDelta(t, 10, b[0].X, 1e-9)
	assert.InDelta(t, 20, b[0].Y, 1e-9)
	assert.InDelta(t, 100, b[0].Width, 1e-9)
	assert.InDelta(t, 50, b[0].Height, 1e-9)
}

func TestBoundsRotatedAboutCenter(t *testing.T) {
	n := NewRect(10, 20, 100, 50)
	before := ResolveBounds(n)[0]
	n.RotateAboutCenter(90)
	after := ResolveBounds(n)[0]

	assert.InDelta(t, before.X+before.Width/2, after.X+after.Width/2, 1)
	assert.InDelta(t, before.Y+before.Height/2, after.Y+after.Height/2, 1)
	assert.InDelta(t, 50, after.Width, 1)
	assert.InDelta(t, 100, after.Height, 1)
}

func TestQuadFollowsRotation(t *testing.T) {
	n := NewRect(0, 0, 100, 50)
	q := ResolveQuads(n)[0]
	assert.InDelta(t, 0, q.P0.X, 1e-9)
	assert.InDelta(t, 0, q.P0.Y, 1e-9)
	assert.InDelta(t, 100, q.U.X, 1e-9)
	assert.InDelta(t, 0, q.U.Y, 1e-9)
	assert.InDelta(t, 0, q.V.X, 1e-9)
	assert.InDelta(t, 50, q.V.Y, 1e-9)

	n.Angle = 90
	q = ResolveQuads(n)[0]
	// rotation is about the top-left origin, so p0 stays put and u points down
	assert.InDelta(t, 0, q.P0.X, 1e-9)
	assert.InDelta(t, 0, q.P0.Y, 1e-9)
	assert.InDelta(t, 0, q.U.X, 1e-9)
	assert.InDelta(t, 100, q.U.Y, 1e-9)
	assert.InDelta(t, -50, q.V.X, 1e-9)
	assert.InDelta(t, 0, q.V.Y, 1e-9)
}

func TestScaleAndFlip(t *testing.T) {
	n := NewRect(0, 0, 10, 10)
	n.ScaleX = 2
	n.ScaleY = 3
	b := ResolveBounds(n)[0]
	assert.InDelta(t, 20, b.Width, 1e-9)
	assert.InDelta(t, 30, b.Height, 1e-9)

	n.FlipX = true
	q := ResolveQuads(n)[0]
	assert.InDelta(t, 20, q.P0.X, 1e-9)
	assert.InDelta(t, -20, q.U.X, 1e-9)
}

func TestGroupResolvesPerChild(t *testing.T) {
	group := &Node{Transform: Identity(), Width: 360, Height: 60}
	group.Left, group.Top = 50, 40
	for i := 0; i < 3; i++ {
		group.Children = append(group.Children, NewRect(float64(i)*120, 0, 120, 60))
	}

	b := ResolveBounds(group)
	require.Len(t, b, 3)
	for i, cell := range b {
		assert.InDelta(t, 50+float64(i)*120, cell.X, 1e-9)
		assert.InDelta(t, 40, cell.Y, 1e-9)
		assert.InDelta(t, 120, cell.Width, 1e-9)
		assert.InDelta(t, 60, cell.Height, 1e-9)
	}

	group.ScaleX = 0.5
	b = ResolveBounds(group)
	assert.InDelta(t, 50+60, b[1].X, 1e-9)
	assert.InDelta(t, 60, b[1].Width, 1e-9)
}

func TestScaleContent(t *testing.T) {
	n := NewRect(100, 50, 10, 10)
	assert.False(t, ScaleContent([]*Node{n}, 1, 1))
	assert.False(t, ScaleContent([]*Node{n}, math.NaN(), 1))

	require.True(t, ScaleContent([]*Node{n}, 2, 0.5))
	assert.Equal(t, 200.0, n.Left)
	assert.Equal(t, 25.0, n.Top)
	assert.Equal(t, 2.0, n.ScaleX)
	assert.Equal(t, 0.5, n.ScaleY)
}

func TestSnapshotPreservesSize(t *testing.T) {
	n := NewRect(30, 40, 360, 60)
	n.ScaleX = 0.5
	n.Angle = 15
	s := TakeSnapshot(n)

	rebuilt := NewRect(0, 0, 480, 60)
	ApplySnapshot(rebuilt, s, true)
	assert.Equal(t, 30.0, rebuilt.Left)
	assert.Equal(t, 15.0, rebuilt.Angle)
	w, h := rebuilt.ScaledSize()
	assert.InDelta(t, 180, w, 1e-9)
	assert.InDelta(t, 60, h, 1e-9)
}

func TestEmptyBoundsAndFiniteQuad(t *testing.T) {
	assert.True(t, Bounds{Width: 0, Height: 10}.Empty())
	assert.True(t, Bounds{X: math.Inf(1), Width: 1, Height: 1}.Empty())
	assert.False(t, Bounds{Width: 1, Height: 1}.Empty())
	assert.False(t, Quad{P0: Point{math.NaN(), 0}}.Finite())
}
