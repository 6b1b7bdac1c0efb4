package regions

import (
	"errors"
	"fmt"
	"log"
	"math/rand"

	"github.com/richinsley/lightv/geometry"
	"github.com/richinsley/lightv/sampling"
)

var ErrUnknownRegion = errors.New("unknown region")

// Events is the callback contract for whatever presents regions. Every field
// is optional.
type Events struct {
	OnRegionAdded         func(r *Region)
	OnRegionUpdated       func(r *Region)
	OnRegionRemoved       func(r *Region)
	OnRegionColorsUpdated func(id string, colors []sampling.Color)
	OnRegionSelected      func(id string)
	OnError               func(msg string)
}

// Manager owns the regions of the analysis canvas and decides when each one
// is resampled:
//   - a transform change marks the region pending; Flush samples each pending
//     region once per frame no matter how many changes arrived,
//   - changing the sample density resamples everything immediately,
//   - Recompute samples every region not already sampled this frame.
//
// Samples taken outside the frame (add, density or config changes) replace
// the colors without smoothing and count as this frame's sample.
//
// Manager is not safe for concurrent use; it runs on the render thread.
type Manager struct {
	calc    sampling.Calculator
	events  Events
	rand    func() float64
	samples int

	regions map[string]*Region
	order   []string
	next    int

	pending map[string]struct{}
	fresh   map[string]struct{}
}

func NewManager(calc sampling.Calculator) *Manager {
	return &Manager{
		calc:    calc,
		rand:    rand.Float64,
		samples: sampling.DefaultSamplesPerEdge,
		regions: make(map[string]*Region),
		pending: make(map[string]struct{}),
		fresh:   make(map[string]struct{}),
	}
}

func (m *Manager) SetEvents(e Events) { m.events = e }

// SetRand replaces the placement source for new regions. rnd must return
// values in [0,1).
func (m *Manager) SetRand(rnd func() float64) {
	if rnd != nil {
		m.rand = rnd
	}
}

func (m *Manager) SetCalculator(calc sampling.Calculator) { m.calc = calc }

// Regions returns the regions in creation order.
func (m *Manager) Regions() []*Region {
	out := make([]*Region, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.regions[id])
	}
	return out
}

func (m *Manager) Region(id string) (*Region, bool) {
	r, ok := m.regions[id]
	return r, ok
}

func (m *Manager) Len() int { return len(m.order) }

// Roots returns every region's root node, for proportional rescaling.
func (m *Manager) Roots() []*geometry.Node {
	out := make([]*geometry.Node, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.regions[id].Root)
	}
	return out
}

func (m *Manager) SamplesPerEdge() int { return m.samples }

// SetSamplesPerEdge clamps n to [1,64] and resamples every region.
func (m *Manager) SetSamplesPerEdge(n int) {
	m.samples = sampling.ClampSamplesPerEdge(n)
	for _, id := range m.order {
		m.resample(m.regions[id])
	}
}

// AddRegion creates a region of type t at a random position. Fields set in
// p override the type's defaults.
func (m *Manager) AddRegion(t Type, p Patch) (*Region, error) {
	switch t {
	case TypeArea, TypeStrip, TypeGrid:
	default:
		return nil, fmt.Errorf("unknown region type %q", t)
	}
	cfg, err := DefaultConfig(t).Apply(t, p)
	if err != nil {
		return nil, err
	}
	m.next++
	r := &Region{
		ID:     fmt.Sprintf("region_%d", m.next),
		Type:   t,
		Config: cfg,
		Root:   buildShape(t, cfg, m.rand),
	}
	m.regions[r.ID] = r
	m.order = append(m.order, r.ID)
	m.resample(r)
	if m.events.OnRegionAdded != nil {
		m.events.OnRegionAdded(r)
	}
	return r, nil
}

// DeleteRegion removes a region. Unknown ids are ignored.
func (m *Manager) DeleteRegion(id string) bool {
	r, ok := m.regions[id]
	if !ok {
		return false
	}
	m.remove(r)
	return true
}

func (m *Manager) remove(r *Region) {
	delete(m.regions, r.ID)
	delete(m.pending, r.ID)
	delete(m.fresh, r.ID)
	for i, id := range m.order {
		if id == r.ID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.events.OnRegionRemoved != nil {
		m.events.OnRegionRemoved(r)
	}
}

// ClearAll removes every region, reporting each one.
func (m *Manager) ClearAll() {
	for _, r := range m.Regions() {
		m.remove(r)
	}
}

// Select reports a region chosen by the user.
func (m *Manager) Select(id string) {
	if _, ok := m.regions[id]; ok && m.events.OnRegionSelected != nil {
		m.events.OnRegionSelected(id)
	}
}

// ApplyRegionConfig merges p into the region's config. A change of strip
// count or grid rows/cols rebuilds the cells and reapplies the previous
// placement at the same on-screen size.
func (m *Manager) ApplyRegionConfig(id string, p Patch) error {
	r, ok := m.regions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, id)
	}
	next, err := r.Config.Apply(r.Type, p)
	if err != nil {
		return err
	}
	rebuild := r.Config.structural(r.Type, next)
	r.Config = next
	if rebuild {
		snap := geometry.TakeSnapshot(r.Root)
		r.Root = buildShape(r.Type, next, m.rand)
		geometry.ApplySnapshot(r.Root, snap, true)
		r.Colors = nil
	}
	m.resample(r)
	if m.events.OnRegionUpdated != nil {
		m.events.OnRegionUpdated(r)
	}
	return nil
}

// SetTransform places the region's root node and queues it for Flush.
func (m *Manager) SetTransform(id string, t geometry.Transform) error {
	r, ok := m.regions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegion, id)
	}
	r.Root.Transform = t
	m.pending[id] = struct{}{}
	return nil
}

// MarkPending queues a region whose root node was edited in place.
func (m *Manager) MarkPending(id string) {
	if _, ok := m.regions[id]; ok {
		m.pending[id] = struct{}{}
	}
}

// Pending is the number of regions waiting for Flush.
func (m *Manager) Pending() int { return len(m.pending) }

// ScaleContent rescales every region's placement by (sx, sy) and queues the
// changed regions.
func (m *Manager) ScaleContent(sx, sy float64) bool {
	if !geometry.ScaleContent(m.Roots(), sx, sy) {
		return false
	}
	for _, id := range m.order {
		m.pending[id] = struct{}{}
	}
	return true
}

// Flush samples each pending region once, using dtMs as the frame delta for
// smoothing. Regions flushed here are skipped by the following Recompute.
func (m *Manager) Flush(dtMs float64) {
	for _, id := range m.order {
		if _, ok := m.pending[id]; !ok {
			continue
		}
		m.update(m.regions[id], dtMs, true)
		m.fresh[id] = struct{}{}
	}
	clear(m.pending)
}

// Recompute samples every region not already sampled by this frame's Flush.
func (m *Manager) Recompute(dtMs float64) {
	for _, id := range m.order {
		if _, ok := m.fresh[id]; ok {
			continue
		}
		m.update(m.regions[id], dtMs, true)
	}
	clear(m.fresh)
}

// resample samples r between frames, where no frame delta exists.
func (m *Manager) resample(r *Region) {
	m.update(r, 0, false)
	delete(m.pending, r.ID)
	m.fresh[r.ID] = struct{}{}
}

// update samples r and applies its smoothing. Sampling failures are
// reported through OnError and leave the previous colors in place.
func (m *Manager) update(r *Region, dtMs float64, smooth bool) {
	if m.calc == nil {
		return
	}
	areas := r.Areas()
	if len(areas) == 0 {
		return
	}
	colors, err := sampling.CalculateAll(m.calc, areas, r.Config.Method, m.samples)
	if err != nil {
		m.fail(fmt.Sprintf("failed to sample %s: %v", r.ID, err))
		return
	}
	if smooth && r.Config.SmoothingEnabled && r.Config.SmoothingMs > 0 {
		colors = sampling.Smooth(r.Colors, colors, dtMs, float64(r.Config.SmoothingMs))
	}
	r.Colors = colors
	if m.events.OnRegionColorsUpdated != nil {
		m.events.OnRegionColorsUpdated(r.ID, colors)
	}
}

func (m *Manager) fail(msg string) {
	if m.events.OnError != nil {
		m.events.OnError(msg)
		return
	}
	log.Printf("Regions: %s", msg)
}
