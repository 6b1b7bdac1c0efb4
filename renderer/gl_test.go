package renderer_test

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/lightv/geometry"
	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/renderer/gltest"
	"github.com/richinsley/lightv/sampling"
)

var palette = []color.RGBA{
	{230, 40, 60, 255},
	{20, 180, 90, 255},
	{50, 60, 200, 255},
	{240, 220, 30, 255},
	{120, 30, 150, 255},
	{10, 10, 10, 255},
}

// blocks is a 64x48 picture of 8x8 blocks, each one palette color.
func blocks() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			bx, by := x/8, y/8
			img.SetRGBA(x, y, palette[(bx*3+by*5+bx*by)%len(palette)])
		}
	}
	return img
}

// halves is red on the top half and blue on the bottom.
func halves(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{255, 0, 0, 255}
		if y >= h/2 {
			c = color.RGBA{0, 0, 255, 255}
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func closeColor(t *testing.T, want, got sampling.Color, msg string) {
	t.Helper()
	assert.InDelta(t, int(want.R), int(got.R), 1, msg)
	assert.InDelta(t, int(want.G), int(got.G), 1, msg)
	assert.InDelta(t, int(want.B), int(got.B), 1, msg)
}

func TestSamplerMatchesReference(t *testing.T) {
	r := gltest.Renderer(t, 64, 48)
	img := blocks()
	tex := gltest.Texture(t, img)

	s, err := renderer.NewColorSampler(r.Quad(), r.IsGLES())
	require.NoError(t, err)
	defer s.Destroy()
	s.SetSource(tex, 64, 48)
	ref := sampling.NewReference(img)

	areas := []sampling.Area{
		sampling.FromBounds(geometry.Bounds{X: 4.5, Y: 3.5, Width: 40, Height: 30}),
		sampling.FromBounds(geometry.Bounds{X: 10.3, Y: 2.9, Width: 47.1, Height: 41.3}),
		{Quad: geometry.Quad{P0: geometry.Point{X: 20.3, Y: 7.7}, U: geometry.Point{X: 30.1, Y: 12.2}, V: geometry.Point{X: -9.4, Y: 25.6}}, Oriented: true},
		{Quad: geometry.Quad{P0: geometry.Point{X: 3.3, Y: 5.1}, U: geometry.Point{X: 51.7, Y: -2.2}, V: geometry.Point{X: 4.6, Y: 37.9}}, Oriented: true},
		{},
	}
	for _, stat := range []sampling.Statistic{sampling.Average, sampling.Mode, sampling.MaxLuma} {
		for _, n := range []int{1, 4, 10} {
			gpu, err := s.CalculateColors(areas, stat, n)
			require.NoError(t, err)
			cpu, err := ref.CalculateColors(areas, stat, n)
			require.NoError(t, err)
			require.Len(t, gpu, len(areas))
			for i := range areas {
				if stat == sampling.Average {
					closeColor(t, cpu[i], gpu[i], stat.String())
					continue
				}
				assert.Equal(t, cpu[i].Hex, gpu[i].Hex, "%s n=%d area %d", stat, n, i)
			}
			assert.Equal(t, "#000000", gpu[len(areas)-1].Hex)
		}
	}
}

func TestMaxLumaFindsSinglePixel(t *testing.T) {
	r := gltest.Renderer(t, 20, 20)
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.SetRGBA(3, 3, color.RGBA{255, 255, 255, 255})
	tex := gltest.Texture(t, img)

	s, err := renderer.NewColorSampler(r.Quad(), r.IsGLES())
	require.NoError(t, err)
	defer s.Destroy()
	s.SetSource(tex, 20, 20)

	whole := sampling.Area{Quad: geometry.Quad{U: geometry.Point{X: 20}, V: geometry.Point{Y: 20}}, Oriented: true}
	got, err := s.CalculateColors([]sampling.Area{whole}, sampling.MaxLuma, 20)
	require.NoError(t, err)
	assert.Equal(t, "#ffffff", got[0].Hex)
}

func TestSamplerRestoresViewport(t *testing.T) {
	r := gltest.Renderer(t, 64, 48)
	tex := gltest.Texture(t, blocks())
	target, err := renderer.NewTarget(32, 16, false)
	require.NoError(t, err)
	defer target.Destroy()

	s, err := renderer.NewColorSampler(r.Quad(), r.IsGLES())
	require.NoError(t, err)
	defer s.Destroy()
	s.SetSource(tex, 64, 48)
	restored := 0
	s.OnRestore(func() { restored++ })

	target.Bind()
	_, err = s.CalculateColors([]sampling.Area{sampling.FromBounds(geometry.Bounds{Width: 10, Height: 10})}, sampling.Average, 4)
	require.NoError(t, err)
	assert.Equal(t, renderer.Viewport{0, 0, 32, 16}, renderer.CurrentViewport())
	assert.Equal(t, 1, restored)
	target.Unbind()
}

func TestCompositeKeepsPictureUpright(t *testing.T) {
	r := gltest.Renderer(t, 64, 64)
	tex := gltest.Texture(t, halves(64, 64))

	comp, err := renderer.NewCompositor(r.Quad(), 64, 64, r.IsGLES())
	require.NoError(t, err)
	defer comp.Destroy()

	comp.SetInput(renderer.SlotA, gltest.Input{Tex: tex, W: 64, H: 64})
	comp.Render()
	img := comp.Target().ReadRGBA()
	assert.Equal(t, [3]uint8{255, 0, 0}, gltest.Pixel(img, 10, 5), "top")
	assert.Equal(t, [3]uint8{0, 0, 255}, gltest.Pixel(img, 10, 60), "bottom")

	comp.Present(64, 64)
	assert.Equal(t, [3]uint8{255, 0, 0}, gltest.ScreenPixel(10, 5, 64), "screen top")
	assert.Equal(t, [3]uint8{0, 0, 255}, gltest.ScreenPixel(10, 60, 64), "screen bottom")

	// A bottom-first input is turned right side up.
	comp.SetInput(renderer.SlotA, gltest.Input{Tex: tex, W: 64, H: 64, Flip: true})
	comp.Render()
	img = comp.Target().ReadRGBA()
	assert.Equal(t, [3]uint8{0, 0, 255}, gltest.Pixel(img, 10, 5))
	assert.Equal(t, [3]uint8{255, 0, 0}, gltest.Pixel(img, 10, 60))

	// Regions read the same orientation the screen shows.
	s, err := renderer.NewColorSampler(r.Quad(), r.IsGLES())
	require.NoError(t, err)
	defer s.Destroy()
	s.SetSource(comp.Texture(), 64, 64)
	got, err := s.CalculateColors([]sampling.Area{
		sampling.FromBounds(geometry.Bounds{X: 5, Y: 5, Width: 40, Height: 20}),
		{Quad: geometry.Quad{P0: geometry.Point{X: 5, Y: 40}, U: geometry.Point{X: 40}, V: geometry.Point{Y: 20}}, Oriented: true},
	}, sampling.Average, 8)
	require.NoError(t, err)
	assert.Equal(t, "#0000ff", got[0].Hex)
	assert.Equal(t, "#ff0000", got[1].Hex)
}

func rgbOf(p [3]uint8) [3]float32 {
	return [3]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255}
}

func assertPixel(t *testing.T, want [3]float32, got [3]uint8, msg string) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, float64(want[i])*255, float64(got[i]), 1.5, msg)
	}
}

func TestCompositeMatchesBlendMath(t *testing.T) {
	r := gltest.Renderer(t, 64, 64)
	a := renderer.NewSolidTexture([4]uint8{200, 40, 90, 255})
	defer renderer.DeleteTexture(a)
	b := renderer.NewSolidTexture([4]uint8{30, 160, 220, 255})
	defer renderer.DeleteTexture(b)
	ca, cb := rgbOf([3]uint8{200, 40, 90}), rgbOf([3]uint8{30, 160, 220})

	comp, err := renderer.NewCompositor(r.Quad(), 64, 64, r.IsGLES())
	require.NoError(t, err)
	defer comp.Destroy()
	comp.SetInput(renderer.SlotA, gltest.Input{Tex: a, W: 1, H: 1})
	comp.SetInput(renderer.SlotB, gltest.Input{Tex: b, W: 1, H: 1})

	for _, mode := range []renderer.BlendMode{renderer.BlendNormal, renderer.BlendAdd, renderer.BlendMultiply, renderer.BlendScreen} {
		for _, tt := range []renderer.TransitionType{renderer.Crossfade, renderer.Wipe, renderer.LumaKey} {
			comp.SetBlendMode(mode)
			comp.SetTransition(renderer.Transition{Type: tt, Softness: renderer.DefaultSoftness})
			for _, mix := range []float64{0, 1} {
				comp.SetMix(mix)
				comp.Render()
				img := comp.Target().ReadRGBA()
				want := ca
				if mix == 1 {
					want = cb
				}
				for _, p := range []image.Point{{0, 0}, {63, 0}, {32, 32}, {0, 63}, {63, 63}} {
					assertPixel(t, want, gltest.Pixel(img, p.X, p.Y), mode.String()+"/"+tt.String())
				}
			}
		}

		comp.SetTransition(renderer.Transition{Type: renderer.Crossfade})
		comp.SetMix(0.5)
		comp.Render()
		want := renderer.Composite(mode, ca, cb, 0.5)
		assertPixel(t, want, gltest.Pixel(comp.Target().ReadRGBA(), 32, 32), mode.String()+" at half")
	}
}

func TestWipeFollowsAngle(t *testing.T) {
	r := gltest.Renderer(t, 64, 64)
	a := renderer.NewSolidTexture([4]uint8{0, 0, 0, 255})
	defer renderer.DeleteTexture(a)
	b := renderer.NewSolidTexture([4]uint8{255, 255, 255, 255})
	defer renderer.DeleteTexture(b)

	comp, err := renderer.NewCompositor(r.Quad(), 64, 64, r.IsGLES())
	require.NoError(t, err)
	defer comp.Destroy()
	comp.SetInput(renderer.SlotA, gltest.Input{Tex: a, W: 1, H: 1})
	comp.SetInput(renderer.SlotB, gltest.Input{Tex: b, W: 1, H: 1})
	comp.SetMix(0.5)

	for _, angle := range []float64{0, math.Pi / 2, math.Pi / 4} {
		tr := renderer.Transition{Type: renderer.Wipe, Softness: 0.1, Angle: angle}
		comp.SetTransition(tr)
		comp.Render()
		img := comp.Target().ReadRGBA()
		for _, p := range []image.Point{{2, 2}, {61, 2}, {2, 61}, {61, 61}, {20, 40}} {
			u, v := (float32(p.X)+0.5)/64, (float32(p.Y)+0.5)/64
			f := renderer.WipeFactor(0.5, tr, u, v)
			assert.InDelta(t, float64(f)*255, float64(gltest.Pixel(img, p.X, p.Y)[0]), 1.5, "angle %v at %v", angle, p)
		}
	}
}
