package sampling

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/lightv/geometry"
)

func fill(img *image.RGBA, c color.RGBA, x0, x1 int) {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := x0; x < x1; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
)

func redBlue() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 100, 10))
	fill(img, red, 0, 70)
	fill(img, blue, 70, 100)
	return img
}

func wholeQuad(w, h float64) Area {
	n := geometry.NewRect(0, 0, w, h)
	return FromCorners(geometry.Resolve(n)[0])
}

func TestModeAndAverageOnSplitImage(t *testing.T) {
	ref := NewReference(redBlue())
	areas := []Area{wholeQuad(100, 10)}

	mode, err := ref.CalculateColors(areas, Mode, 10)
	require.NoError(t, err)
	require.Len(t, mode, 1)
	assert.Equal(t, NewColor(255, 0, 0), mode[0])

	avg, err := ref.CalculateColors(areas, Average, 10)
	require.NoError(t, err)
	assert.InDelta(t, 178, int(avg[0].R), 1)
	assert.Equal(t, uint8(0), avg[0].G)
	assert.InDelta(t, 76, int(avg[0].B), 1)
}

func TestModeTieBreaksOnLuminance(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	fill(img, red, 0, 5)
	fill(img, green, 5, 10)
	got, err := NewReference(img).CalculateColors([]Area{wholeQuad(10, 10)}, Mode, 10)
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", got[0].Hex)
}

func TestMaxLumaFindsWhiteAnywhere(t *testing.T) {
	for _, pos := range []image.Point{{0, 0}, {9, 9}, {3, 7}, {8, 1}} {
		img := image.NewRGBA(image.Rect(0, 0, 10, 10))
		fill(img, black, 0, 10)
		img.SetRGBA(pos.X, pos.Y, white)

		got, err := NewReference(img).CalculateColors([]Area{wholeQuad(10, 10)}, MaxLuma, 10)
		require.NoError(t, err)
		assert.Equal(t, "#ffffff", got[0].Hex, "white at %v", pos)
	}
}

func TestDeterministic(t *testing.T) {
	ref := NewReference(redBlue())
	n := geometry.NewRect(12, 1, 60, 7)
	n.RotateAboutCenter(33)
	areas := []Area{FromCorners(geometry.Resolve(n)[0]), FromBounds(geometry.Bounds{X: 5, Y: 2, Width: 80, Height: 5})}

	for _, stat := range []Statistic{Average, Mode, MaxLuma} {
		first, err := ref.CalculateColors(areas, stat, 17)
		require.NoError(t, err)
		second, err := ref.CalculateColors(areas, stat, 17)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestAxisAlignedPathIncludesEdges(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	fill(img, black, 0, 10)
	fill(img, white, 9, 10)

	// the inclusive lattice reaches x = 1.0, which clamps onto the last column
	got, err := NewReference(img).CalculateColors([]Area{FromBounds(geometry.Bounds{Width: 10, Height: 10})}, MaxLuma, 2)
	require.NoError(t, err)
	assert.Equal(t, "#ffffff", got[0].Hex)
}

func TestMalformedAreasDegrade(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	fill(img, green, 0, 10)
	ref := NewReference(img)

	nan := geometry.Quad{P0: geometry.Point{X: math.NaN()}}
	areas := []Area{
		{Quad: nan, Oriented: true},
		{Quad: nan, Oriented: true, Bounds: geometry.Bounds{Width: 10, Height: 10}},
		wholeQuad(10, 10),
	}
	got, err := ref.CalculateColors(areas, Average, 4)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "#000000", got[0].Hex)
	assert.Equal(t, "#00ff00", got[1].Hex)
	assert.Equal(t, "#00ff00", got[2].Hex)
}

func TestChunking(t *testing.T) {
	ref := NewReference(redBlue())
	areas := make([]Area, 40)
	for i := range areas {
		areas[i] = wholeQuad(100, 10)
	}
	_, err := ref.CalculateColors(areas, Average, 4)
	assert.ErrorIs(t, err, ErrTooManyAreas)

	got, err := CalculateAll(ref, areas, Mode, 4)
	require.NoError(t, err)
	assert.Len(t, got, 40)
}

func TestHexAndStatistics(t *testing.T) {
	assert.Equal(t, "#ff0800", NewColor(255, 8, 0).Hex)
	assert.Equal(t, 1, ClampSamplesPerEdge(0))
	assert.Equal(t, 64, ClampSamplesPerEdge(500))

	s, err := ParseStatistic("max-luminance")
	require.NoError(t, err)
	assert.Equal(t, MaxLuma, s)
	_, err = ParseStatistic("median")
	assert.Error(t, err)
}

func TestSmoothingConverges(t *testing.T) {
	prev := []Color{NewColor(0, 0, 0)}
	target := []Color{NewColor(255, 255, 255)}

	once := Smooth(prev, target, 250, 250)
	assert.Equal(t, uint8(161), once[0].R)

	cur := prev
	for i := 0; i < 5; i++ {
		cur = Smooth(cur, target, 250, 250)
	}
	assert.InDelta(t, 255, int(cur[0].R), 2)

	// mismatched lengths take the target as is
	assert.Equal(t, target, Smooth(nil, target, 16, 250))
	assert.InDelta(t, 1-math.Exp(-1), Alpha(250, 250), 1e-12)
}
