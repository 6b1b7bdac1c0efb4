package regions

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/lightv/geometry"
	"github.com/richinsley/lightv/sampling"
)

// splitImage is red on the left half and blue on the right.
func splitImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, image.Rect(0, 0, w/2, h), &image.Uniform{color.RGBA{255, 0, 0, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(w/2, 0, w, h), &image.Uniform{color.RGBA{0, 0, 255, 255}}, image.Point{}, draw.Src)
	return img
}

type countingCalc struct {
	sampling.Calculator
	calls int
}

func (c *countingCalc) CalculateColors(areas []sampling.Area, stat sampling.Statistic, n int) ([]sampling.Color, error) {
	c.calls++
	return c.Calculator.CalculateColors(areas, stat, n)
}

type failingCalc struct{}

func (failingCalc) CalculateColors([]sampling.Area, sampling.Statistic, int) ([]sampling.Color, error) {
	return nil, errors.New("no gl")
}

func newTestManager() (*Manager, *countingCalc) {
	calc := &countingCalc{Calculator: sampling.NewReference(splitImage(800, 600))}
	m := NewManager(calc)
	m.SetRand(func() float64 { return 0 })
	return m, calc
}

func intp(v int) *int { return &v }

func TestAddRegionDefaults(t *testing.T) {
	m, _ := newTestManager()
	var added []string
	m.SetEvents(Events{OnRegionAdded: func(r *Region) { added = append(added, r.ID) }})

	area, err := m.AddRegion(TypeArea, Patch{})
	require.NoError(t, err)
	strip, err := m.AddRegion(TypeStrip, Patch{})
	require.NoError(t, err)
	grid, err := m.AddRegion(TypeGrid, Patch{})
	require.NoError(t, err)

	assert.Equal(t, []string{"region_1", "region_2", "region_3"}, added)
	assert.Equal(t, 100.0, area.Root.Left)
	assert.Equal(t, 150.0, area.Root.Width)
	assert.Equal(t, 1, area.Cells())
	assert.Equal(t, DefaultCount, strip.Cells())
	assert.Equal(t, 50.0, strip.Root.Top)
	assert.Equal(t, DefaultRows*DefaultCols, grid.Cells())
	assert.Equal(t, 160.0, grid.Root.Children[2].Left)
	assert.Equal(t, 60.0, grid.Root.Children[3].Top)

	require.Len(t, area.Colors, 1)
	assert.Equal(t, "#ff0000", area.Colors[0].Hex)
	assert.Len(t, grid.Colors, 6)
	assert.Equal(t, sampling.Average, area.Config.Method)
	assert.Equal(t, DefaultSmoothingMs, area.Config.SmoothingMs)

	_, err = m.AddRegion(Type("circle"), Patch{})
	assert.Error(t, err)
}

func TestConfigClamps(t *testing.T) {
	c, err := DefaultConfig(TypeStrip).Apply(TypeStrip, Patch{Count: intp(50), SmoothingMs: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, MaxCount, c.Count)
	assert.Equal(t, MinSmoothingMs, c.SmoothingMs)

	c, err = DefaultConfig(TypeGrid).Apply(TypeGrid, Patch{Rows: intp(1), Cols: intp(11), SmoothingMs: intp(99999)})
	require.NoError(t, err)
	assert.Equal(t, MinGridSide, c.Rows)
	assert.Equal(t, MaxGridSide, c.Cols)
	assert.Equal(t, MaxSmoothingMs, c.SmoothingMs)

	mode := sampling.Mode
	on := true
	c, err = DefaultConfig(TypeArea).Apply(TypeArea, Patch{Method: &mode, SmoothingEnabled: &on})
	require.NoError(t, err)
	assert.Equal(t, sampling.Mode, c.Method)
	assert.True(t, c.SmoothingEnabled)
	assert.Equal(t, DefaultSmoothingMs, c.SmoothingMs)
	assert.Zero(t, c.Count)

	tp, err := ParseType(" Grid ")
	require.NoError(t, err)
	assert.Equal(t, TypeGrid, tp)
	_, err = ParseType("blob")
	assert.Error(t, err)
}

func TestTransformsCoalescePerFrame(t *testing.T) {
	m, calc := newTestManager()
	r, err := m.AddRegion(TypeArea, Patch{})
	require.NoError(t, err)
	calc.calls = 0

	for i := 0; i < 5; i++ {
		tr := r.Root.Transform
		tr.Left = 500 + float64(i)
		require.NoError(t, m.SetTransform(r.ID, tr))
	}
	assert.Equal(t, 1, m.Pending())
	assert.Zero(t, calc.calls)

	m.Flush(16)
	assert.Equal(t, 1, calc.calls)
	assert.Zero(t, m.Pending())
	assert.Equal(t, "#0000ff", r.Colors[0].Hex)

	// The frame's recompute skips what the flush already sampled.
	m.Recompute(16)
	assert.Equal(t, 1, calc.calls)
	m.Recompute(16)
	assert.Equal(t, 2, calc.calls)

	assert.ErrorIs(t, m.SetTransform("region_99", geometry.Identity()), ErrUnknownRegion)
}

func TestSamplesPerEdgeResamplesAll(t *testing.T) {
	m, calc := newTestManager()
	_, _ = m.AddRegion(TypeArea, Patch{})
	_, _ = m.AddRegion(TypeStrip, Patch{})
	calc.calls = 0

	m.SetSamplesPerEdge(500)
	assert.Equal(t, sampling.MaxSamplesPerEdge, m.SamplesPerEdge())
	assert.Equal(t, 2, calc.calls)
	m.SetSamplesPerEdge(0)
	assert.Equal(t, sampling.MinSamplesPerEdge, m.SamplesPerEdge())
}

func TestSmoothingFollowsElapsedTime(t *testing.T) {
	m, _ := newTestManager()
	on := true
	r, err := m.AddRegion(TypeArea, Patch{SmoothingEnabled: &on, SmoothingMs: intp(250)})
	require.NoError(t, err)
	require.Equal(t, "#ff0000", r.Colors[0].Hex)

	tr := r.Root.Transform
	tr.Left = 500
	require.NoError(t, m.SetTransform(r.ID, tr))
	m.Flush(250)

	// alpha = 1 - e^-1
	c := r.Colors[0]
	assert.InDelta(t, 94, int(c.R), 1)
	assert.InDelta(t, 161, int(c.B), 1)

	for i := 0; i < 40; i++ {
		m.Recompute(250)
	}
	assert.Equal(t, "#0000ff", r.Colors[0].Hex)
}

func TestResampleBetweenFramesIsNotSmoothed(t *testing.T) {
	m, calc := newTestManager()
	on := true
	r, err := m.AddRegion(TypeArea, Patch{SmoothingEnabled: &on, SmoothingMs: intp(250)})
	require.NoError(t, err)
	m.Flush(250)
	m.Recompute(250)

	tr := r.Root.Transform
	tr.Left = 500
	require.NoError(t, m.SetTransform(r.ID, tr))
	m.SetSamplesPerEdge(8)
	assert.Equal(t, "#0000ff", r.Colors[0].Hex)
	assert.Zero(t, m.Pending())

	// The density change was this frame's sample.
	calc.calls = 0
	m.Flush(250)
	m.Recompute(250)
	assert.Zero(t, calc.calls)
	assert.Equal(t, "#0000ff", r.Colors[0].Hex)

	m.Recompute(250)
	assert.Equal(t, 1, calc.calls)
	assert.Equal(t, "#0000ff", r.Colors[0].Hex)
}

func TestStructuralChangeKeepsPlacement(t *testing.T) {
	m, _ := newTestManager()
	r, err := m.AddRegion(TypeStrip, Patch{})
	require.NoError(t, err)
	r.Root.Left, r.Root.Top = 200, 120
	w0, h0 := r.Root.ScaledSize()

	var updated int
	m.SetEvents(Events{OnRegionUpdated: func(*Region) { updated++ }})
	require.NoError(t, m.ApplyRegionConfig(r.ID, Patch{Count: intp(5)}))

	assert.Equal(t, 1, updated)
	assert.Equal(t, 5, r.Cells())
	assert.Len(t, r.Colors, 5)
	w1, h1 := r.Root.ScaledSize()
	assert.InDelta(t, w0, w1, 1e-9)
	assert.InDelta(t, h0, h1, 1e-9)
	assert.Equal(t, 200.0, r.Root.Left)
	assert.Equal(t, 120.0, r.Root.Top)

	// A method change keeps the same node.
	root := r.Root
	mode := sampling.MaxLuma
	require.NoError(t, m.ApplyRegionConfig(r.ID, Patch{Method: &mode}))
	assert.Same(t, root, r.Root)
	assert.Equal(t, sampling.MaxLuma, r.Config.Method)

	assert.ErrorIs(t, m.ApplyRegionConfig("nope", Patch{}), ErrUnknownRegion)
}

func TestDeleteAndClearAll(t *testing.T) {
	m, _ := newTestManager()
	var removed []string
	m.SetEvents(Events{OnRegionRemoved: func(r *Region) { removed = append(removed, r.ID) }})
	for _, tp := range []Type{TypeArea, TypeStrip, TypeGrid} {
		_, err := m.AddRegion(tp, Patch{})
		require.NoError(t, err)
	}

	assert.True(t, m.DeleteRegion("region_2"))
	assert.False(t, m.DeleteRegion("region_2"))
	m.ClearAll()
	assert.Equal(t, []string{"region_2", "region_1", "region_3"}, removed)
	assert.Zero(t, m.Len())

	r, err := m.AddRegion(TypeArea, Patch{})
	require.NoError(t, err)
	assert.Equal(t, "region_4", r.ID)
}

func TestScaleContentQueuesEverything(t *testing.T) {
	m, _ := newTestManager()
	r, _ := m.AddRegion(TypeArea, Patch{})
	_, _ = m.AddRegion(TypeGrid, Patch{})

	assert.False(t, m.ScaleContent(1, 1))
	assert.True(t, m.ScaleContent(2, 0.5))
	assert.Equal(t, 200.0, r.Root.Left)
	assert.Equal(t, 50.0, r.Root.Top)
	assert.Equal(t, 2, m.Pending())
}

func TestLargeGridIsChunked(t *testing.T) {
	m, calc := newTestManager()
	r, err := m.AddRegion(TypeGrid, Patch{Rows: intp(10), Cols: intp(10)})
	require.NoError(t, err)
	assert.Len(t, r.Colors, 100)
	assert.Equal(t, 4, calc.calls)
}

func TestSamplingErrorsAreReported(t *testing.T) {
	m := NewManager(failingCalc{})
	var msgs []string
	m.SetEvents(Events{OnError: func(msg string) { msgs = append(msgs, msg) }})
	r, err := m.AddRegion(TypeArea, Patch{})
	require.NoError(t, err)
	assert.Empty(t, r.Colors)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], r.ID)
}
