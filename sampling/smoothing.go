package sampling

import "math"

// Alpha is the weight of a continuous-time exponential filter with time
// constant tauMs after dtMs have elapsed.
func Alpha(dtMs, tauMs float64) float64 {
	if tauMs <= 0 {
		return 1
	}
	if dtMs <= 0 {
		return 0
	}
	return 1 - math.Exp(-dtMs/tauMs)
}

// Smooth moves each previous color toward its target by Alpha(dtMs, tauMs)
// and rounds the result. When the lists differ in length, or tauMs is not
// positive, the targets are returned unchanged.
func Smooth(prev, target []Color, dtMs, tauMs float64) []Color {
	if len(prev) != len(target) || tauMs <= 0 {
		return append([]Color(nil), target...)
	}
	a := Alpha(dtMs, tauMs)
	lerp := func(p, t uint8) uint8 {
		return clampByte(float64(p) + (float64(t)-float64(p))*a)
	}
	out := make([]Color, len(target))
	for i, t := range target {
		p := prev[i]
		out[i] = NewColor(lerp(p.R, t.R), lerp(p.G, t.G), lerp(p.B, t.B))
	}
	return out
}
