package sampling

import (
	"fmt"
	"math"
)

// Color is an aggregated region color with its lowercase #rrggbb form.
type Color struct {
	R   uint8  `json:"r"`
	G   uint8  `json:"g"`
	B   uint8  `json:"b"`
	Hex string `json:"hex"`
}

// NewColor builds a Color and fills in its hex string.
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Hex: Hex(r, g, b)}
}

// Hex formats r, g, b as #rrggbb.
func Hex(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// toUnorm8 converts a normalized channel the way an RGBA8 render target
// stores it.
func toUnorm8(v float64) uint8 {
	return clampByte(v * 255)
}

func clampByte(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// Luma709 returns BT.709 luminance of a normalized color.
func Luma709(r, g, b float32) float32 {
	return r*0.2126 + g*0.7152 + b*0.0722
}
