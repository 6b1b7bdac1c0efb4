package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/lightv/geometry"
)

type recorder struct {
	calls   []string
	resizes [][2]int
	scales  [][2]float64
	dts     []float64
	regions bool
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Resize: func(w, h int) {
			r.calls = append(r.calls, "resize")
			r.resizes = append(r.resizes, [2]int{w, h})
		},
		Rescale: func(sx, sy float64) {
			r.calls = append(r.calls, "rescale")
			r.scales = append(r.scales, [2]float64{sx, sy})
		},
		Tick: func(dt float64) {
			r.calls = append(r.calls, "tick")
			r.dts = append(r.dts, dt)
		},
		Render:     func() { r.calls = append(r.calls, "render") },
		Flush:      func(float64) { r.calls = append(r.calls, "flush") },
		Recompute:  func(float64) { r.calls = append(r.calls, "recompute") },
		HasRegions: func() bool { return r.regions },
	}
}

func TestDeltaTime(t *testing.T) {
	rec := &recorder{}
	s := New(rec.hooks())
	s.Frame(1000, 100, 100)
	assert.Equal(t, float64(FirstFrameMs), s.DeltaMs())
	s.Frame(1020, 100, 100)
	assert.Equal(t, 20.0, s.DeltaMs())
	s.Frame(1010, 100, 100)
	assert.Equal(t, 0.0, s.DeltaMs())
	assert.Equal(t, []float64{20, 0}, rec.dts)
}

func TestStageOrder(t *testing.T) {
	rec := &recorder{}
	s := New(rec.hooks())
	assert.False(t, s.Frame(0, 640, 360))
	require.True(t, s.Frame(16, 640, 360))
	assert.Equal(t, []string{"resize", "tick", "render", "flush"}, rec.calls)

	rec.calls = nil
	rec.regions = true
	require.True(t, s.Frame(32, 640, 360))
	assert.Equal(t, []string{"tick", "render", "flush", "recompute"}, rec.calls)
}

func TestResizeWaitsForStableSize(t *testing.T) {
	rec := &recorder{}
	s := New(rec.hooks())
	s.SetMinStableFrames(2)

	s.Frame(0, 800, 600)
	s.Frame(16, 800, 600)
	s.Frame(32, 800, 600)
	require.Equal(t, [][2]int{{800, 600}}, rec.resizes)

	// A new size every frame never settles.
	for i := 0; i < 10; i++ {
		assert.False(t, s.Frame(float64(48+i*16), 900+i, 700+i))
	}
	assert.Len(t, rec.resizes, 1)
	assert.Empty(t, rec.scales)

	s.Frame(300, 1600, 300)
	s.Frame(316, 1600, 300)
	assert.Len(t, rec.resizes, 1)
	s.Frame(332, 1600, 300)
	assert.Equal(t, [][2]int{{800, 600}, {1600, 300}}, rec.resizes)
	assert.Equal(t, [][2]float64{{2, 0.5}}, rec.scales)

	s.Frame(348, 1600, 300)
	assert.Len(t, rec.resizes, 2)
	w, h := s.Size()
	assert.Equal(t, 1600, w)
	assert.Equal(t, 300, h)
}

func TestRescaleMovesRegionsByRatio(t *testing.T) {
	n := geometry.NewRect(100, 50, 40, 20)
	s := New(Hooks{Rescale: func(sx, sy float64) {
		geometry.ScaleContent([]*geometry.Node{n}, sx, sy)
	}})
	s.Frame(0, 400, 200)
	s.Frame(16, 400, 200)
	s.Frame(32, 800, 100)
	s.Frame(48, 800, 100)
	assert.Equal(t, 200.0, n.Left)
	assert.Equal(t, 25.0, n.Top)
	w, h := n.ScaledSize()
	assert.Equal(t, 80.0, w)
	assert.Equal(t, 10.0, h)
}

func TestLockSizeIgnoresObservedSizes(t *testing.T) {
	rec := &recorder{}
	s := New(rec.hooks())
	s.Frame(0, 400, 300)
	s.Frame(16, 400, 300)

	s.LockSize(800, 600)
	assert.True(t, s.Locked())
	assert.Equal(t, [][2]int{{400, 300}, {800, 600}}, rec.resizes)
	assert.Equal(t, [][2]float64{{2, 2}}, rec.scales)

	s.Frame(32, 1000, 1000)
	s.Frame(48, 1000, 1000)
	assert.Len(t, rec.resizes, 2)

	s.Unlock()
	s.Frame(64, 1000, 1000)
	assert.Equal(t, [2]int{1000, 1000}, rec.resizes[2])
}
