// Package deck is the VJ model: two decks, each with a bank of loaded
// sources and one active entry, crossfaded by the compositor.
package deck

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/sources"
)

var ErrBadIndex = errors.New("bank index out of range")

// ID names a deck.
type ID int

const (
	A ID = iota
	B
)

func (id ID) String() string { return id.Slot().String() }

// Slot is the compositor input the deck feeds.
func (id ID) Slot() renderer.Slot {
	if id == B {
		return renderer.SlotB
	}
	return renderer.SlotA
}

func ParseID(s string) (ID, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return A, nil
	case "B":
		return B, nil
	}
	return A, fmt.Errorf("unknown deck %q", s)
}

// Curve maps the crossfader position to the compositor mix.
type Curve int

const (
	Linear Curve = iota
	EqualPower
)

func (c Curve) String() string {
	if c == EqualPower {
		return "equalPower"
	}
	return "linear"
}

func ParseCurve(s string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "equalpower", "equal-power", "equal_power":
		return EqualPower, nil
	}
	return Linear, fmt.Errorf("unknown crossfade curve %q", s)
}

func (c Curve) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Curve) UnmarshalText(b []byte) error {
	v, err := ParseCurve(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Apply maps a fader position in [0,1] through the curve. Both curves keep
// the endpoints fixed.
func (c Curve) Apply(mix float64) float64 {
	if math.IsNaN(mix) {
		mix = 0
	}
	mix = min(max(mix, 0), 1)
	if c == EqualPower {
		s := math.Sin(mix * math.Pi / 2)
		return s * s
	}
	return mix
}

// Output is the compositor surface the mixer drives.
type Output interface {
	SetInput(slot renderer.Slot, in renderer.Input)
	SetMix(v float64)
	SetBlendMode(m renderer.BlendMode)
	SetTransition(t renderer.Transition)
}

// Settings are the mixer controls.
type Settings struct {
	Mix                  float64
	Curve                Curve
	Blend                renderer.BlendMode
	Transition           renderer.Transition
	PauseInactiveWebcams bool
}

func DefaultSettings() Settings {
	return Settings{
		Transition:           renderer.Transition{Type: renderer.Crossfade, Softness: renderer.DefaultSoftness},
		PauseInactiveWebcams: true,
	}
}

type bank struct {
	sources []sources.Source
	active  int
}

// Mixer owns every source in both banks. Sources are loaded when added and
// fully disposed before their bank entry is reused.
type Mixer struct {
	out      Output
	env      *sources.Env
	registry *sources.Registry
	banks    [2]bank
	settings Settings
}

func NewMixer(out Output, env *sources.Env, registry *sources.Registry) *Mixer {
	if registry == nil {
		registry = sources.NewDefaultRegistry()
	}
	m := &Mixer{
		out:      out,
		env:      env,
		registry: registry,
		banks:    [2]bank{{active: -1}, {active: -1}},
	}
	m.Apply(DefaultSettings())
	return m
}

func (m *Mixer) bank(id ID) *bank {
	if id == B {
		return &m.banks[1]
	}
	return &m.banks[0]
}

// Len is the number of sources in a deck's bank.
func (m *Mixer) Len(id ID) int { return len(m.bank(id).sources) }

// ActiveIndex is the active bank entry, -1 when none.
func (m *Mixer) ActiveIndex(id ID) int { return m.bank(id).active }

// Active is the source feeding the deck, nil when none.
func (m *Mixer) Active(id ID) sources.Source {
	b := m.bank(id)
	if b.active < 0 {
		return nil
	}
	return b.sources[b.active]
}

func (m *Mixer) Source(id ID, index int) (sources.Source, error) {
	b := m.bank(id)
	if index < 0 || index >= len(b.sources) {
		return nil, fmt.Errorf("%w: deck %s entry %d", ErrBadIndex, id, index)
	}
	return b.sources[index], nil
}

func (m *Mixer) load(src sources.Source) error {
	if err := src.Load(m.env); err != nil {
		return fmt.Errorf("failed to load %s: %w", src.ID(), err)
	}
	if m.env != nil && m.env.Width > 0 && m.env.Height > 0 {
		src.SetOutputSize(m.env.Width, m.env.Height)
	}
	return nil
}

// Add loads src and appends it to the deck's bank, stopped. The first
// source added to an empty deck becomes active.
func (m *Mixer) Add(id ID, src sources.Source) (int, error) {
	if err := m.load(src); err != nil {
		return -1, err
	}
	b := m.bank(id)
	b.sources = append(b.sources, src)
	index := len(b.sources) - 1
	log.Printf("Deck %s: added %s at %d", id, src.ID(), index)
	if b.active < 0 {
		if err := m.Activate(id, index); err != nil {
			return index, err
		}
	}
	return index, nil
}

// AddDescriptor instantiates d through the registry and adds it.
func (m *Mixer) AddDescriptor(id ID, d sources.Descriptor) (int, error) {
	src, err := m.registry.Instantiate(d)
	if err != nil {
		return -1, err
	}
	return m.Add(id, src)
}

// Activate makes a bank entry the deck's input. The previously active
// source is stopped, except webcams while PauseInactiveWebcams is off.
func (m *Mixer) Activate(id ID, index int) error {
	b := m.bank(id)
	if index < 0 || index >= len(b.sources) {
		return fmt.Errorf("%w: deck %s entry %d", ErrBadIndex, id, index)
	}
	if prev := m.Active(id); prev != nil && b.active != index {
		if prev.Kind() != sources.KindWebcam || m.settings.PauseInactiveWebcams {
			prev.Stop()
		}
	}
	b.active = index
	src := b.sources[index]
	src.Start()
	m.out.SetInput(id.Slot(), src)
	m.applyWebcamPolicy()
	log.Printf("Deck %s: active %s", id, src.ID())
	return nil
}

// Step activates the entry delta places from the current one, wrapping.
func (m *Mixer) Step(id ID, delta int) error {
	b := m.bank(id)
	n := len(b.sources)
	if n == 0 {
		return nil
	}
	next := ((b.active+delta)%n + n) % n
	return m.Activate(id, next)
}

// Replace disposes the source at index and puts src in its place. The old
// source is released before the new one is loaded, and the compositor never
// sees a disposed texture.
func (m *Mixer) Replace(id ID, index int, src sources.Source) error {
	b := m.bank(id)
	if index < 0 || index >= len(b.sources) {
		return fmt.Errorf("%w: deck %s entry %d", ErrBadIndex, id, index)
	}
	wasActive := b.active == index
	if wasActive {
		m.out.SetInput(id.Slot(), nil)
	}
	old := b.sources[index]
	old.Dispose()
	b.sources[index] = nil
	log.Printf("Deck %s: disposed %s", id, old.ID())

	if err := m.load(src); err != nil {
		b.sources = append(b.sources[:index], b.sources[index+1:]...)
		m.fixActive(b, index, wasActive)
		if wasActive {
			m.rebind(id)
		}
		return err
	}
	b.sources[index] = src
	if wasActive {
		src.Start()
		m.out.SetInput(id.Slot(), src)
	}
	m.applyWebcamPolicy()
	return nil
}

// Remove disposes the source at index and drops it from the bank.
func (m *Mixer) Remove(id ID, index int) error {
	b := m.bank(id)
	if index < 0 || index >= len(b.sources) {
		return fmt.Errorf("%w: deck %s entry %d", ErrBadIndex, id, index)
	}
	wasActive := b.active == index
	if wasActive {
		m.out.SetInput(id.Slot(), nil)
	}
	b.sources[index].Dispose()
	b.sources = append(b.sources[:index], b.sources[index+1:]...)
	m.fixActive(b, index, wasActive)
	if wasActive {
		m.rebind(id)
	}
	return nil
}

// fixActive adjusts the active index after entry removed left the bank.
// A removed active entry leaves the deck without input.
func (m *Mixer) fixActive(b *bank, removed int, wasActive bool) {
	switch {
	case wasActive:
		b.active = -1
	case b.active > removed:
		b.active--
	}
}

func (m *Mixer) rebind(id ID) {
	if src := m.Active(id); src != nil {
		m.out.SetInput(id.Slot(), src)
		return
	}
	m.out.SetInput(id.Slot(), nil)
}

// applyWebcamPolicy stops webcams that feed neither deck.
func (m *Mixer) applyWebcamPolicy() {
	if !m.settings.PauseInactiveWebcams {
		return
	}
	active := map[sources.Source]bool{}
	for _, id := range []ID{A, B} {
		if src := m.Active(id); src != nil {
			active[src] = true
		}
	}
	for i := range m.banks {
		for _, src := range m.banks[i].sources {
			if src.Kind() == sources.KindWebcam && !active[src] && src.Running() {
				src.Stop()
				log.Printf("Deck: paused inactive webcam %s", src.ID())
			}
		}
	}
}

func (m *Mixer) Settings() Settings { return m.settings }

// Apply pushes every setting to the compositor.
func (m *Mixer) Apply(s Settings) {
	s.Transition.Softness = renderer.ClampSoftness(s.Transition.Softness)
	m.settings = s
	m.SetMix(s.Mix)
	m.out.SetBlendMode(s.Blend)
	m.out.SetTransition(s.Transition)
	m.applyWebcamPolicy()
}

// SetMix sets the fader position; the compositor receives it through the
// curve.
func (m *Mixer) SetMix(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	m.settings.Mix = min(max(v, 0), 1)
	m.out.SetMix(m.settings.Curve.Apply(m.settings.Mix))
}

func (m *Mixer) SetCurve(c Curve) {
	m.settings.Curve = c
	m.SetMix(m.settings.Mix)
}

func (m *Mixer) SetBlendMode(b renderer.BlendMode) {
	m.settings.Blend = b
	m.out.SetBlendMode(b)
}

func (m *Mixer) SetTransition(t renderer.Transition) {
	t.Softness = renderer.ClampSoftness(t.Softness)
	m.settings.Transition = t
	m.out.SetTransition(t)
}

func (m *Mixer) SetPauseInactiveWebcams(on bool) {
	m.settings.PauseInactiveWebcams = on
	m.applyWebcamPolicy()
}

// Tick advances every source; stopped sources ignore it.
func (m *Mixer) Tick(dtMs float64) {
	for i := range m.banks {
		for _, src := range m.banks[i].sources {
			src.Tick(dtMs)
		}
	}
}

// Resize tells every source the new output size.
func (m *Mixer) Resize(width, height int) {
	if m.env != nil {
		m.env.Width, m.env.Height = width, height
	}
	for i := range m.banks {
		for _, src := range m.banks[i].sources {
			src.SetOutputSize(width, height)
		}
	}
}

// Descriptors lists a deck's bank as descriptors, in bank order.
func (m *Mixer) Descriptors(id ID) []sources.Descriptor {
	b := m.bank(id)
	out := make([]sources.Descriptor, len(b.sources))
	for i, src := range b.sources {
		out[i] = src.Descriptor()
	}
	return out
}

// Dispose detaches both decks and disposes every source.
func (m *Mixer) Dispose() {
	for _, id := range []ID{A, B} {
		m.out.SetInput(id.Slot(), nil)
		b := m.bank(id)
		for _, src := range b.sources {
			src.Dispose()
		}
		b.sources = nil
		b.active = -1
	}
}
