package renderer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/richinsley/lightv/geometry"
	"github.com/richinsley/lightv/sampling"
)

type fakeInput struct {
	w, h      int
	mode      FillMode
	prefitted bool
}

func (f fakeInput) TextureID() uint32       { return 1 }
func (f fakeInput) ContentSize() (int, int) { return f.w, f.h }
func (f fakeInput) FillMode() FillMode      { return f.mode }
func (f fakeInput) FlipY() bool             { return false }
func (f fakeInput) Prefitted() bool         { return f.prefitted }

func TestInputRect(t *testing.T) {
	assert.Equal(t, IdentityRect, InputRect(nil, 640, 360))

	in := fakeInput{w: 1440, h: 1080, mode: Contain}
	assert.InDelta(t, 0.75, InputRect(in, 1920, 1080).ScaleX, 1e-9)

	in.prefitted = true
	assert.Equal(t, IdentityRect, InputRect(in, 1920, 1080))
}

func TestPackAreas(t *testing.T) {
	nan := geometry.Quad{P0: geometry.Point{X: math.Inf(1)}}
	areas := []sampling.Area{
		sampling.FromBounds(geometry.Bounds{X: 10, Y: 20, Width: 50, Height: 40}),
		{Quad: geometry.Quad{P0: geometry.Point{X: 5, Y: 6}, U: geometry.Point{X: 10}, V: geometry.Point{Y: 4}}, Oriented: true},
		{Quad: nan, Oriented: true},
	}
	rects, p0, uv := PackAreas(areas, 100, 200)

	assert.Equal(t, []float32{0.1, 0.1, 0.5, 0.2}, rects[0:4])
	assert.Equal(t, []float32{0, 0, 0, 1}, p0[0:4])

	assert.Equal(t, []float32{5, 6, 1, 1}, p0[4:8])
	assert.Equal(t, []float32{10, 0, 0, 4}, uv[4:8])

	assert.Equal(t, []float32{0, 0, 0, 0}, p0[8:12])
}
