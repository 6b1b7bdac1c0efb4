package deck

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/sources"
)

// fakeSource records lifecycle calls; the embedded interface is nil, so any
// method the mixer should not call panics.
type fakeSource struct {
	sources.Source
	id       string
	kind     sources.Kind
	loadErr  error
	loaded   bool
	running  bool
	disposed bool
	ticks    int
	outW     int
	log      *[]string
}

func newFake(id string, kind sources.Kind, log *[]string) *fakeSource {
	return &fakeSource{id: id, kind: kind, log: log}
}

func (f *fakeSource) record(s string) {
	if f.log != nil {
		*f.log = append(*f.log, s+" "+f.id)
	}
}

func (f *fakeSource) ID() string         { return f.id }
func (f *fakeSource) Kind() sources.Kind { return f.kind }
func (f *fakeSource) Running() bool      { return f.running }
func (f *fakeSource) Start()             { f.running = true; f.record("start") }
func (f *fakeSource) Stop()              { f.running = false; f.record("stop") }
func (f *fakeSource) TextureID() uint32  { return 1 }
func (f *fakeSource) FlipY() bool        { return false }

func (f *fakeSource) ContentSize() (int, int)         { return 4, 3 }
func (f *fakeSource) FillMode() renderer.FillMode     { return renderer.Cover }
func (f *fakeSource) SetOutputSize(width, height int) { f.outW = width }
func (f *fakeSource) Descriptor() sources.Descriptor  { return sources.Descriptor{Type: f.kind} }

func (f *fakeSource) Load(*sources.Env) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	f.record("load")
	return nil
}

func (f *fakeSource) Tick(float64) {
	if f.running {
		f.ticks++
	}
}

func (f *fakeSource) Dispose() {
	f.disposed = true
	f.running = false
	f.record("dispose")
}

type fakeOutput struct {
	inputs [2]renderer.Input
	mix    float64
	blend  renderer.BlendMode
	tr     renderer.Transition
	log    *[]string
}

func (o *fakeOutput) SetInput(slot renderer.Slot, in renderer.Input) {
	o.inputs[slot] = in
	if o.log != nil {
		name := "nil"
		if in != nil {
			name = in.(*fakeSource).id
		}
		*o.log = append(*o.log, "bind "+slot.String()+" "+name)
	}
}
func (o *fakeOutput) SetMix(v float64)                    { o.mix = v }
func (o *fakeOutput) SetBlendMode(m renderer.BlendMode)   { o.blend = m }
func (o *fakeOutput) SetTransition(t renderer.Transition) { o.tr = t }

func newTestMixer() (*Mixer, *fakeOutput, *[]string) {
	var log []string
	out := &fakeOutput{log: &log}
	return NewMixer(out, &sources.Env{Width: 640, Height: 360}, nil), out, &log
}

func TestCurves(t *testing.T) {
	for _, c := range []Curve{Linear, EqualPower} {
		assert.Equal(t, 0.0, c.Apply(0), c.String())
		assert.InDelta(t, 1.0, c.Apply(1), 1e-12, c.String())
		assert.Equal(t, 0.0, c.Apply(-2), c.String())
		assert.InDelta(t, 1.0, c.Apply(3), 1e-12, c.String())
	}
	assert.Equal(t, 0.25, Linear.Apply(0.25))
	assert.InDelta(t, 0.5, EqualPower.Apply(0.5), 1e-12)
	assert.InDelta(t, math.Pow(math.Sin(0.25*math.Pi/2), 2), EqualPower.Apply(0.25), 1e-12)
	assert.Equal(t, 0.0, EqualPower.Apply(math.NaN()))

	c, err := ParseCurve("equalPower")
	require.NoError(t, err)
	assert.Equal(t, EqualPower, c)
	_, err = ParseCurve("log")
	assert.Error(t, err)
}

func TestMixGoesThroughCurve(t *testing.T) {
	m, out, _ := newTestMixer()
	m.SetMix(0.5)
	assert.Equal(t, 0.5, out.mix)
	m.SetCurve(EqualPower)
	assert.InDelta(t, 0.5, out.mix, 1e-12)
	m.SetMix(0.25)
	assert.InDelta(t, EqualPower.Apply(0.25), out.mix, 1e-12)
	assert.Equal(t, 0.25, m.Settings().Mix)
	m.SetMix(7)
	assert.Equal(t, 1.0, m.Settings().Mix)
}

func TestFirstSourceBecomesActive(t *testing.T) {
	m, out, _ := newTestMixer()
	a := newFake("a", sources.KindSolid, nil)
	i, err := m.Add(A, a)
	require.NoError(t, err)
	assert.Equal(t, 0, i)
	assert.True(t, a.loaded)
	assert.True(t, a.running)
	assert.Equal(t, 640, a.outW)
	assert.Same(t, a, out.inputs[renderer.SlotA])

	b := newFake("b", sources.KindSolid, nil)
	_, err = m.Add(A, b)
	require.NoError(t, err)
	assert.False(t, b.running)
	assert.Equal(t, 0, m.ActiveIndex(A))
	assert.Nil(t, m.Active(B))
}

func TestActivateStopsPrevious(t *testing.T) {
	m, out, _ := newTestMixer()
	a := newFake("a", sources.KindVideo, nil)
	b := newFake("b", sources.KindShader, nil)
	_, _ = m.Add(A, a)
	_, _ = m.Add(A, b)

	require.NoError(t, m.Activate(A, 1))
	assert.False(t, a.running)
	assert.True(t, b.running)
	assert.Same(t, b, out.inputs[renderer.SlotA])

	require.NoError(t, m.Step(A, 1))
	assert.Equal(t, 0, m.ActiveIndex(A))
	require.NoError(t, m.Step(A, -1))
	assert.Equal(t, 1, m.ActiveIndex(A))

	assert.ErrorIs(t, m.Activate(A, 5), ErrBadIndex)
	assert.NoError(t, m.Step(B, 1))
}

func TestReplaceDisposesBeforeReassign(t *testing.T) {
	m, out, log := newTestMixer()
	old := newFake("old", sources.KindImage, log)
	_, _ = m.Add(B, old)
	*log = nil

	repl := newFake("new", sources.KindImage, log)
	require.NoError(t, m.Replace(B, 0, repl))
	assert.Equal(t, []string{"bind B nil", "dispose old", "load new", "start new", "bind B new"}, *log)
	assert.True(t, old.disposed)
	assert.Same(t, repl, out.inputs[renderer.SlotB])

	// A failed load leaves the slot empty rather than pointing at the
	// disposed source.
	bad := newFake("bad", sources.KindImage, log)
	bad.loadErr = errors.New("corrupt")
	assert.Error(t, m.Replace(B, 0, bad))
	assert.True(t, repl.disposed)
	assert.Zero(t, m.Len(B))
	assert.Nil(t, out.inputs[renderer.SlotB])
	assert.Equal(t, -1, m.ActiveIndex(B))
}

func TestRemoveKeepsActiveIndex(t *testing.T) {
	m, out, _ := newTestMixer()
	s := []*fakeSource{
		newFake("0", sources.KindSolid, nil),
		newFake("1", sources.KindSolid, nil),
		newFake("2", sources.KindSolid, nil),
	}
	for _, src := range s {
		_, _ = m.Add(A, src)
	}
	require.NoError(t, m.Activate(A, 2))
	require.NoError(t, m.Remove(A, 0))
	assert.True(t, s[0].disposed)
	assert.Equal(t, 1, m.ActiveIndex(A))
	assert.Same(t, s[2], m.Active(A))

	require.NoError(t, m.Remove(A, 1))
	assert.Equal(t, -1, m.ActiveIndex(A))
	assert.Nil(t, out.inputs[renderer.SlotA])
	assert.ErrorIs(t, m.Remove(A, 3), ErrBadIndex)
}

func TestPauseInactiveWebcams(t *testing.T) {
	m, _, _ := newTestMixer()
	cam1 := newFake("cam1", sources.KindWebcam, nil)
	cam2 := newFake("cam2", sources.KindWebcam, nil)
	_, _ = m.Add(A, cam1)
	_, _ = m.Add(A, cam2)

	m.SetPauseInactiveWebcams(false)
	require.NoError(t, m.Activate(A, 1))
	assert.True(t, cam1.running, "kept warm while the policy is off")
	assert.True(t, cam2.running)

	m.SetPauseInactiveWebcams(true)
	assert.False(t, cam1.running)
	assert.True(t, cam2.running)

	// A webcam active on the other deck keeps running.
	cam3 := newFake("cam3", sources.KindWebcam, nil)
	_, _ = m.Add(B, cam3)
	assert.True(t, cam3.running)
	assert.True(t, cam2.running)
}

func TestTickResizeAndDispose(t *testing.T) {
	m, out, _ := newTestMixer()
	a := newFake("a", sources.KindSolid, nil)
	idle := newFake("idle", sources.KindSolid, nil)
	b := newFake("b", sources.KindSolid, nil)
	_, _ = m.Add(A, a)
	_, _ = m.Add(A, idle)
	_, _ = m.Add(B, b)

	m.Tick(16)
	assert.Equal(t, 1, a.ticks)
	assert.Equal(t, 1, b.ticks)
	assert.Zero(t, idle.ticks)

	m.Resize(1280, 720)
	assert.Equal(t, 1280, idle.outW)
	assert.Len(t, m.Descriptors(A), 2)

	m.Dispose()
	assert.True(t, a.disposed && idle.disposed && b.disposed)
	assert.Nil(t, out.inputs[0])
	assert.Nil(t, out.inputs[1])
	assert.Zero(t, m.Len(A))
}

func TestApplySettings(t *testing.T) {
	m, out, _ := newTestMixer()
	s := DefaultSettings()
	assert.True(t, s.PauseInactiveWebcams)
	assert.Equal(t, renderer.DefaultSoftness, out.tr.Softness)

	s.Blend = renderer.BlendScreen
	s.Transition = renderer.Transition{Type: renderer.Wipe, Softness: 2, Angle: math.Pi / 2}
	s.Mix = 0.3
	m.Apply(s)
	assert.Equal(t, renderer.BlendScreen, out.blend)
	assert.Equal(t, 0.5, out.tr.Softness)
	assert.Equal(t, 0.3, out.mix)

	id, err := ParseID("b")
	require.NoError(t, err)
	assert.Equal(t, B, id)
	assert.Equal(t, renderer.SlotB, id.Slot())
	_, err = ParseID("c")
	assert.Error(t, err)
}
