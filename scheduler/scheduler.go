// Package scheduler drives one frame at a time: it tracks the frame delta,
// debounces output size changes and runs the per-frame stages in order.
package scheduler

import "log"

// FirstFrameMs is the delta reported for the very first frame.
const FirstFrameMs = 16

// DefaultMinStableFrames is how many repeats of the same observed size are
// needed before a pending resize is applied.
const DefaultMinStableFrames = 1

// Hooks are the stages of a frame. Nil hooks are skipped.
type Hooks struct {
	// Resize propagates a new output size to canvas, compositor and sources.
	Resize func(width, height int)
	// Rescale moves content placed in the old size by the ratio new/old.
	Rescale func(sx, sy float64)
	// Tick advances sources.
	Tick func(dtMs float64)
	// Render draws the canvas or composite.
	Render func()
	// Flush resamples regions changed since the last frame.
	Flush func(dtMs float64)
	// Recompute resamples every region; it runs only while HasRegions.
	Recompute  func(dtMs float64)
	HasRegions func() bool
}

type size struct{ w, h int }

// Scheduler is driven by the window loop, one Frame call per displayed
// frame. It is not safe for concurrent use.
type Scheduler struct {
	hooks     Hooks
	minStable int

	lastMs  float64
	started bool
	dtMs    float64

	last    size
	same    int
	pending *size
	applied *size
	locked  bool
	frames  int64
}

func New(hooks Hooks) *Scheduler {
	return &Scheduler{hooks: hooks, minStable: DefaultMinStableFrames, dtMs: FirstFrameMs}
}

// SetMinStableFrames sets the stability threshold; values below 1 are
// raised to 1.
func (s *Scheduler) SetMinStableFrames(n int) { s.minStable = max(1, n) }

// DeltaMs is the delta of the most recent frame.
func (s *Scheduler) DeltaMs() float64 { return s.dtMs }

// Size is the applied output size, zero before the first resize.
func (s *Scheduler) Size() (int, int) {
	if s.applied == nil {
		return 0, 0
	}
	return s.applied.w, s.applied.h
}

// Frames counts frames on which the stages ran.
func (s *Scheduler) Frames() int64 { return s.frames }

// Locked reports whether LockSize pinned the output size.
func (s *Scheduler) Locked() bool { return s.locked }

// LockSize applies width x height immediately and ignores observed sizes
// from then on.
func (s *Scheduler) LockSize(width, height int) {
	s.locked = true
	s.apply(size{max(1, width), max(1, height)})
}

// Unlock lets observed sizes drive the output again.
func (s *Scheduler) Unlock() { s.locked = false }

// Frame runs one frame at time nowMs with the currently observed output
// size. It reports whether the stages ran; they are skipped while the
// observed size is still changing.
func (s *Scheduler) Frame(nowMs float64, width, height int) bool {
	if !s.started {
		s.dtMs = FirstFrameMs
		s.started = true
	} else {
		s.dtMs = max(0, nowMs-s.lastMs)
	}
	s.lastMs = nowMs

	cur := size{width, height}
	if cur == s.last {
		s.same++
	} else {
		s.last = cur
		s.same = 0
	}
	if !s.locked {
		p := size{max(1, width), max(1, height)}
		s.pending = &p
	}
	if s.same < s.minStable {
		return false
	}
	if s.pending != nil && (s.applied == nil || *s.applied != *s.pending) {
		s.apply(*s.pending)
	}

	h := s.hooks
	if h.Tick != nil {
		h.Tick(s.dtMs)
	}
	if h.Render != nil {
		h.Render()
	}
	if h.Flush != nil {
		h.Flush(s.dtMs)
	}
	if h.Recompute != nil && h.HasRegions != nil && h.HasRegions() {
		h.Recompute(s.dtMs)
	}
	s.frames++
	return true
}

func (s *Scheduler) apply(next size) {
	last := next
	if s.applied != nil {
		last = *s.applied
	}
	sx, sy := 1.0, 1.0
	if last.w > 0 {
		sx = float64(next.w) / float64(last.w)
	}
	if last.h > 0 {
		sy = float64(next.h) / float64(last.h)
	}
	if s.hooks.Resize != nil {
		s.hooks.Resize(next.w, next.h)
	}
	if s.hooks.Rescale != nil && (sx != 1 || sy != 1) {
		s.hooks.Rescale(sx, sy)
	}
	s.applied = &next
	s.pending = &next
	log.Printf("Scheduler: output %dx%d (scale %.3f, %.3f)", next.w, next.h, sx, sy)
}
