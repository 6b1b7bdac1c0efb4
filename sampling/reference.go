package sampling

import (
	"image"
	"image/draw"

	"github.com/chewxy/math32"
)

// Reference is a CPU implementation of the sampling shader. It samples an
// image with nearest filtering and clamp-to-edge addressing, in float32,
// and returns the same colors the GPU pass reads back.
type Reference struct {
	img *image.RGBA
	w   float32
	h   float32
}

// NewReference copies img into an RGBA buffer for sampling.
func NewReference(img image.Image) *Reference {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}
	return &Reference{
		img: rgba,
		w:   float32(rgba.Rect.Dx()),
		h:   float32(rgba.Rect.Dy()),
	}
}

type rgb struct {
	r, g, b float32
}

func (r *Reference) texture(u, v float32) rgb {
	x := clampIndex(int(math32.Floor(u*r.w)), r.img.Rect.Dx())
	y := clampIndex(int(math32.Floor(v*r.h)), r.img.Rect.Dy())
	i := r.img.PixOffset(x, y)
	p := r.img.Pix[i : i+3 : i+3]
	return rgb{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// CalculateColors implements Calculator.
func (r *Reference) CalculateColors(areas []Area, stat Statistic, samplesPerEdge int) ([]Color, error) {
	if len(areas) > MaxAreas {
		return nil, ErrTooManyAreas
	}
	n := ClampSamplesPerEdge(samplesPerEdge)
	out := make([]Color, len(areas))
	for i, a := range areas {
		var c rgb
		if r.w > 0 && r.h > 0 {
			acc := newAccumulator(stat)
			switch a.path() {
			case pathOriented:
				r.walkOriented(a, n, acc.add)
			case pathAxis:
				r.walkAxis(a, n, acc.add)
			}
			c = acc.result()
		}
		out[i] = NewColor(toUnorm8(float64(c.r)), toUnorm8(float64(c.g)), toUnorm8(float64(c.b)))
	}
	return out, nil
}

// walkOriented visits n x n cell centers spanned by the quad.
func (r *Reference) walkOriented(a Area, n int, visit func(rgb)) {
	p0x, p0y := float32(a.Quad.P0.X)/r.w, float32(a.Quad.P0.Y)/r.h
	ux, uy := float32(a.Quad.U.X)/r.w, float32(a.Quad.U.Y)/r.h
	vx, vy := float32(a.Quad.V.X)/r.w, float32(a.Quad.V.Y)/r.h
	fn := float32(n)
	for i := 0; i < n; i++ {
		su := (float32(i) + 0.5) / fn
		for j := 0; j < n; j++ {
			sv := (float32(j) + 0.5) / fn
			visit(r.texture(p0x+su*ux+sv*vx, p0y+su*uy+sv*vy))
		}
	}
}

// walkAxis visits an inclusive (n+1) x (n+1) lattice over the bounds,
// edges included.
func (r *Reference) walkAxis(a Area, n int, visit func(rgb)) {
	x0, y0 := float32(a.Bounds.X)/r.w, float32(a.Bounds.Y)/r.h
	rw, rh := float32(a.Bounds.Width)/r.w, float32(a.Bounds.Height)/r.h
	step := 1 / float32(n)
	for i := 0; i <= n; i++ {
		x := x0 + float32(i)*step*rw
		for j := 0; j <= n; j++ {
			y := y0 + float32(j)*step*rh
			visit(r.texture(x, y))
		}
	}
}

type accumulator struct {
	stat  Statistic
	sum   rgb
	count float32

	best     rgb
	bestLuma float32

	binCount [Bins]float32
	binSum   [Bins]rgb
}

func newAccumulator(stat Statistic) *accumulator {
	return &accumulator{stat: stat, bestLuma: -1}
}

func binIndex(c rgb) int {
	q := func(v float32) int {
		return int(math32.Floor(math32.Min(math32.Max(v, 0), 1) * 7.999))
	}
	return q(c.r)*64 + q(c.g)*8 + q(c.b)
}

func (a *accumulator) add(c rgb) {
	switch a.stat {
	case Mode:
		k := binIndex(c)
		a.binCount[k]++
		a.binSum[k].r += c.r
		a.binSum[k].g += c.g
		a.binSum[k].b += c.b
	case MaxLuma:
		if l := Luma709(c.r, c.g, c.b); l > a.bestLuma {
			a.bestLuma = l
			a.best = c
		}
	default:
		a.sum.r += c.r
		a.sum.g += c.g
		a.sum.b += c.b
		a.count++
	}
}

func (a *accumulator) result() rgb {
	switch a.stat {
	case Mode:
		best, bestCount, bestLuma := 0, float32(-1), float32(-1)
		for i := 0; i < Bins; i++ {
			cnt := a.binCount[i]
			if cnt <= 0 {
				continue
			}
			s := a.binSum[i]
			l := Luma709(s.r, s.g, s.b) / cnt
			if cnt > bestCount || (cnt == bestCount && l > bestLuma) {
				best, bestCount, bestLuma = i, cnt, l
			}
		}
		d := math32.Max(bestCount, 1)
		s := a.binSum[best]
		return rgb{s.r / d, s.g / d, s.b / d}
	case MaxLuma:
		return a.best
	default:
		if a.count == 0 {
			return rgb{}
		}
		return rgb{a.sum.r / a.count, a.sum.g / a.count, a.sum.b / a.count}
	}
}
