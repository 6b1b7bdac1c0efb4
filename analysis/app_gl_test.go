package analysis

import (
	"testing"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/lightv/geometry"
	"github.com/richinsley/lightv/regions"
	"github.com/richinsley/lightv/renderer/gltest"
)

func place(t *testing.T, m *regions.Manager, left, top, w, h float64) string {
	t.Helper()
	r, err := m.AddRegion(regions.TypeArea, regions.Patch{})
	require.NoError(t, err)
	tr := geometry.Identity()
	tr.Left, tr.Top = left, top
	tr.ScaleX, tr.ScaleY = w/r.Root.Width, h/r.Root.Height
	require.NoError(t, m.SetTransform(r.ID, tr))
	return r.ID
}

func TestQuadrantRegionsSampleWhatIsShown(t *testing.T) {
	r := gltest.Renderer(t, 100, 100)
	a, err := NewApp(r.Quad(), r.IsGLES(), 100, 100, regions.Events{})
	require.NoError(t, err)
	defer a.Destroy()

	topLeft := place(t, a.Regions(), 5, 5, 40, 30)
	topRight := place(t, a.Regions(), 55, 5, 40, 30)
	bottomLeft := place(t, a.Regions(), 5, 60, 40, 30)
	for i := 0; i < 4; i++ {
		a.Frame(float64(i)*16, 100, 100)
	}

	colors := a.Colors()
	assert.Equal(t, "#ff0000", colors[topLeft][0].Hex)
	assert.Equal(t, "#00ff00", colors[topRight][0].Hex)
	assert.Equal(t, "#0000ff", colors[bottomLeft][0].Hex)

	img := a.Target().ReadRGBA()
	assert.Equal(t, [3]uint8{255, 0, 0}, gltest.Pixel(img, 10, 10))
	assert.Equal(t, [3]uint8{0, 0, 255}, gltest.Pixel(img, 10, 90))
	assert.Equal(t, [3]uint8{255, 0, 0}, gltest.ScreenPixel(10, 10, 100))
	assert.Equal(t, [3]uint8{255, 255, 255}, gltest.ScreenPixel(90, 90, 100))
}

func TestSamplingOutsideFrameRedisplays(t *testing.T) {
	r := gltest.Renderer(t, 100, 100)
	a, err := NewApp(r.Quad(), r.IsGLES(), 100, 100, regions.Events{})
	require.NoError(t, err)
	defer a.Destroy()
	place(t, a.Regions(), 5, 5, 40, 30)
	for i := 0; i < 4; i++ {
		a.Frame(float64(i)*16, 100, 100)
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	require.Equal(t, [3]uint8{0, 0, 0}, gltest.ScreenPixel(10, 10, 100))

	a.SetSamplesPerEdge(8)
	assert.Equal(t, [3]uint8{255, 0, 0}, gltest.ScreenPixel(10, 10, 100))
}
