package renderer

import (
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendAdd
	BlendMultiply
	BlendScreen
)

var blendNames = []string{"normal", "add", "multiply", "screen"}

func (b BlendMode) String() string {
	if b < 0 || int(b) >= len(blendNames) {
		return blendNames[0]
	}
	return blendNames[b]
}

func ParseBlendMode(s string) (BlendMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return BlendNormal, nil
	}
	for i, n := range blendNames {
		if n == s {
			return BlendMode(i), nil
		}
	}
	return BlendNormal, fmt.Errorf("unknown blend mode %q", s)
}

func (b BlendMode) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *BlendMode) UnmarshalText(text []byte) error {
	v, err := ParseBlendMode(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

type TransitionType int

const (
	Crossfade TransitionType = iota
	Wipe
	LumaKey
)

var transitionNames = []string{"crossfade", "wipe", "luma"}

func (t TransitionType) String() string {
	if t < 0 || int(t) >= len(transitionNames) {
		return transitionNames[0]
	}
	return transitionNames[t]
}

func ParseTransition(s string) (TransitionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "fade":
		return Crossfade, nil
	case "lumakey", "luma-key":
		return LumaKey, nil
	}
	for i, n := range transitionNames {
		if n == s {
			return TransitionType(i), nil
		}
	}
	return Crossfade, fmt.Errorf("unknown transition %q", s)
}

func (t TransitionType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TransitionType) UnmarshalText(text []byte) error {
	v, err := ParseTransition(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

const (
	MaxSoftness     = 0.5
	DefaultSoftness = 0.05
	minSoftness     = 1e-4
)

// Transition is everything the composite pass needs besides the inputs.
type Transition struct {
	Type       TransitionType
	Softness   float64
	Angle      float64 // radians
	LumaInvert bool
}

func ClampSoftness(s float64) float64 {
	if !(s >= 0) {
		return 0
	}
	return min(s, MaxSoftness)
}

// The functions below mirror the composite shader in float32. The
// compositor never calls them; they pin down what the pass computes.

func smoothstep(e0, e1, x float32) float32 {
	t := math32.Min(math32.Max((x-e0)/(e1-e0), 0), 1)
	return t * t * (3 - 2*t)
}

func transitionEdge(mix, soft float32) float32 {
	return mix*(1+2*soft) - soft
}

// WipeFactor is the B weight of a wipe at output uv (y down).
func WipeFactor(mix float32, tr Transition, u, v float32) float32 {
	soft := math32.Max(float32(tr.Softness), minSoftness)
	dx, dy := math32.Cos(float32(tr.Angle)), math32.Sin(float32(tr.Angle))
	span := math32.Abs(dx)*0.5 + math32.Abs(dy)*0.5
	p := ((u-0.5)*dx+(v-0.5)*dy)/(2*span) + 0.5
	e := transitionEdge(mix, soft)
	return 1 - smoothstep(e-soft, e+soft, p)
}

// LumaFactor is the B weight of a luma key given B's color.
func LumaFactor(mix float32, tr Transition, b [3]float32) float32 {
	soft := math32.Max(float32(tr.Softness), minSoftness)
	l := 0.299*b[0] + 0.587*b[1] + 0.114*b[2]
	if tr.LumaInvert {
		l = 1 - l
	}
	e := transitionEdge(mix, soft)
	return smoothstep(1-e-soft, 1-e+soft, l)
}

// ModeWeight is how much of the non-normal blend result is mixed in at
// factor s. It peaks at 0.5 and vanishes at both ends.
func ModeWeight(s float32) float32 {
	return 1 - math32.Abs(2*s-1)
}

func blendChannel(mode BlendMode, a, b float32) float32 {
	switch mode {
	case BlendAdd:
		return math32.Min(math32.Max(a+b, 0), 1)
	case BlendMultiply:
		return a * b
	case BlendScreen:
		return 1 - (1-a)*(1-b)
	}
	return b
}

// Composite combines a and b at factor s under mode.
func Composite(mode BlendMode, a, b [3]float32, s float32) [3]float32 {
	var out [3]float32
	w := ModeWeight(s)
	for i := range out {
		base := a[i]*(1-s) + b[i]*s
		if mode != BlendNormal {
			base = base*(1-w) + blendChannel(mode, a[i], b[i])*w
		}
		out[i] = base
	}
	return out
}
