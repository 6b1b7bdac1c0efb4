package renderer

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// FillMode is how content is fitted into the output rectangle.
type FillMode int

const (
	Cover FillMode = iota
	Contain
	Stretch
)

func (m FillMode) String() string {
	switch m {
	case Contain:
		return "contain"
	case Stretch:
		return "stretch"
	default:
		return "cover"
	}
}

func ParseFillMode(s string) (FillMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cover", "":
		return Cover, nil
	case "contain", "fit", "letterbox":
		return Contain, nil
	case "stretch", "fill":
		return Stretch, nil
	}
	return Cover, fmt.Errorf("unknown fill mode %q", s)
}

func (m FillMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *FillMode) UnmarshalText(b []byte) error {
	v, err := ParseFillMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// UVRect places content inside the output. Offsets and scales are fractions
// of the output size: contain keeps both scales <= 1, cover keeps both >= 1
// and centers the overflow, stretch is the identity.
type UVRect struct {
	OffsetX, OffsetY float64
	ScaleX, ScaleY   float64
}

var IdentityRect = UVRect{ScaleX: 1, ScaleY: 1}

// ComputeUVRect fits a contentW x contentH picture into outW x outH. Unknown
// sizes yield the identity so nothing is sampled out of range.
func ComputeUVRect(mode FillMode, contentW, contentH, outW, outH int) UVRect {
	if mode == Stretch || contentW <= 0 || contentH <= 0 || outW <= 0 || outH <= 0 {
		return IdentityRect
	}
	src := float64(contentW) / float64(contentH)
	dst := float64(outW) / float64(outH)
	sx, sy := 1.0, 1.0
	switch mode {
	case Contain:
		if src > dst {
			sy = dst / src
		} else {
			sx = src / dst
		}
	case Cover:
		if src > dst {
			sx = src / dst
		} else {
			sy = dst / src
		}
	}
	return UVRect{
		OffsetX: (1 - sx) / 2,
		OffsetY: (1 - sy) / 2,
		ScaleX:  sx,
		ScaleY:  sy,
	}
}

// Window returns the shader form of the rect: texture st = xy + uv*zw, where
// uv is the output coordinate. It is the inverse of the placement.
func (r UVRect) Window() [4]float32 {
	if r.ScaleX == 0 || r.ScaleY == 0 {
		return [4]float32{0, 0, 1, 1}
	}
	return [4]float32{
		float32(-r.OffsetX / r.ScaleX),
		float32(-r.OffsetY / r.ScaleY),
		float32(1 / r.ScaleX),
		float32(1 / r.ScaleY),
	}
}

// PixelRect is the placement in integer output pixels, used by sources that
// redraw their content into an output-sized surface.
func (r UVRect) PixelRect(outW, outH int) image.Rectangle {
	x0 := int(math.Round(r.OffsetX * float64(outW)))
	y0 := int(math.Round(r.OffsetY * float64(outH)))
	x1 := int(math.Round((r.OffsetX + r.ScaleX) * float64(outW)))
	y1 := int(math.Round((r.OffsetY + r.ScaleY) * float64(outH)))
	return image.Rect(x0, y0, x1, y1)
}
