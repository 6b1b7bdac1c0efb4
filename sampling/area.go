package sampling

import (
	"errors"
	"fmt"

	"github.com/richinsley/lightv/geometry"
)

// ErrTooManyAreas is returned when a single pass is asked for more than
// MaxAreas regions.
var ErrTooManyAreas = errors.New("too many sampling areas")

// Area is one sampling footprint in output pixels. When Oriented is set and
// the quad is finite the quad is sampled; otherwise the bounds are.
type Area struct {
	Bounds   geometry.Bounds
	Quad     geometry.Quad
	Oriented bool
}

// FromBounds returns an axis-aligned area.
func FromBounds(b geometry.Bounds) Area {
	return Area{Bounds: b}
}

// FromCorners returns an oriented area that falls back to the corners'
// bounds if the quad turns out not to be finite.
func FromCorners(c geometry.Corners) Area {
	return Area{Bounds: c.Bounds(), Quad: c.Quad(), Oriented: true}
}

type path int

const (
	pathNone path = iota
	pathAxis
	pathOriented
)

func (a Area) path() path {
	if a.Oriented && a.Quad.Finite() {
		return pathOriented
	}
	if !a.Bounds.Empty() {
		return pathAxis
	}
	return pathNone
}

// Calculator aggregates up to MaxAreas areas per call into one color each.
// The result always has one entry per input area; areas that cannot be
// sampled come back black.
type Calculator interface {
	CalculateColors(areas []Area, stat Statistic, samplesPerEdge int) ([]Color, error)
}

// CalculateAll splits areas into MaxAreas sized chunks.
func CalculateAll(calc Calculator, areas []Area, stat Statistic, samplesPerEdge int) ([]Color, error) {
	out := make([]Color, 0, len(areas))
	for start := 0; start < len(areas); start += MaxAreas {
		end := min(start+MaxAreas, len(areas))
		colors, err := calc.CalculateColors(areas[start:end], stat, samplesPerEdge)
		if err != nil {
			return nil, fmt.Errorf("sampling areas %d-%d: %w", start, end-1, err)
		}
		out = append(out, colors...)
	}
	return out, nil
}

// Resolve reports how the area will be sampled: along its quad when oriented
// is true, along its bounds otherwise. ok is false for areas that yield black.
func (a Area) Resolve() (oriented, ok bool) {
	p := a.path()
	return p == pathOriented, p != pathNone
}
