package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/lightv/geometry"
	"github.com/richinsley/lightv/sampling"
)

func pixel(c *Canvas, x, y int) [3]uint8 {
	img := c.Image()
	o := img.PixOffset(x, y)
	return [3]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2]}
}

func TestQuadrants(t *testing.T) {
	c := NewCanvas(200, 100)
	require.True(t, c.Draw(0))
	assert.Equal(t, [3]uint8{255, 0, 0}, pixel(c, 10, 10))
	assert.Equal(t, [3]uint8{0, 255, 0}, pixel(c, 190, 10))
	assert.Equal(t, [3]uint8{0, 0, 255}, pixel(c, 10, 90))
	assert.Equal(t, [3]uint8{255, 255, 255}, pixel(c, 190, 90))

	// Static patterns are drawn once per size.
	assert.False(t, c.Draw(16))
	c.Resize(400, 200)
	assert.True(t, c.Draw(32))
	w, h := c.Size()
	assert.Equal(t, 400, w)
	assert.Equal(t, 200, h)
}

func TestGradientRotatesHue(t *testing.T) {
	c := NewCanvas(64, 64)
	c.SetMode(Gradient)
	require.True(t, c.Draw(0))
	assert.Equal(t, [3]uint8{255, 0, 0}, pixel(c, 0, 0))
	assert.True(t, c.Draw(0), "gradient redraws every frame")

	// 6000 ms * 0.02 = 120 degrees: the first stop is now green.
	c.Draw(6000)
	assert.Equal(t, [3]uint8{0, 255, 0}, pixel(c, 0, 0))
}

func TestHSL(t *testing.T) {
	assert.Equal(t, [3]float64{255, 0, 0}, hsl(0))
	assert.Equal(t, [3]float64{0, 255, 0}, hsl(120))
	assert.Equal(t, [3]float64{0, 0, 255}, hsl(240))
	assert.Equal(t, [3]float64{255, 0, 0}, hsl(360))
	assert.Equal(t, [3]float64{255, 255, 0}, hsl(60))
}

func TestDiagonalStripes(t *testing.T) {
	assert.Equal(t, 8, StripeWidth(100, 100))
	assert.Equal(t, 36, StripeWidth(1280, 720))

	c := NewCanvas(400, 400)
	c.SetMode(Diagonal)
	require.True(t, c.Draw(0))

	// Along a 45 degree line every pixel shares a stripe.
	for i := 0; i < 5; i++ {
		assert.Equal(t, pixel(c, 100+i, 100-i), pixel(c, 100, 100))
	}
	// Both colors are present with roughly equal share.
	calc := sampling.NewReference(c.Image())
	area := sampling.FromBounds(geometry.Bounds{X: 0, Y: 0, Width: 400, Height: 400})
	colors, err := calc.CalculateColors([]sampling.Area{area}, sampling.Average, 64)
	require.NoError(t, err)
	assert.InDelta(t, 127, int(colors[0].R), 50)
	assert.InDelta(t, 127, int(colors[0].B), 50)
	assert.Zero(t, colors[0].G)
}

func TestSourceModeLeavesRaster(t *testing.T) {
	c := NewCanvas(10, 10)
	c.SetMode(SourceMode)
	assert.False(t, c.Draw(0))
}

func TestParseMode(t *testing.T) {
	for name, want := range map[string]Mode{
		"quadrants": Quadrants,
		"Gradient":  Gradient,
		"diagonal":  Diagonal,
		"video":     SourceMode,
		"external":  SourceMode,
		"":          Quadrants,
	} {
		m, err := ParseMode(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, m, name)
	}
	_, err := ParseMode("plaid")
	assert.Error(t, err)

	assert.Equal(t, Gradient, Quadrants.Next())
	assert.Equal(t, Quadrants, SourceMode.Next())

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("diagonal")))
	assert.Equal(t, Diagonal, m)
	b, _ := m.MarshalText()
	assert.Equal(t, "diagonal", string(b))
}
