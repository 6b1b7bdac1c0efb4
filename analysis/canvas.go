package analysis

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Mode selects what the analysis canvas shows.
type Mode int

const (
	Quadrants Mode = iota
	Gradient
	Diagonal
	// SourceMode samples a loaded source instead of a test pattern.
	SourceMode
)

var modeNames = [...]string{"quadrants", "gradient", "diagonal", "source"}

func (m Mode) String() string {
	if m < Quadrants || m > SourceMode {
		return "quadrants"
	}
	return modeNames[m]
}

// Next cycles through the modes.
func (m Mode) Next() Mode {
	return (m + 1) % Mode(len(modeNames))
}

// ParseMode accepts the mode names; "video" and "external" select SourceMode.
func ParseMode(s string) (Mode, error) {
	switch n := strings.ToLower(strings.TrimSpace(s)); n {
	case "", "quadrants":
		return Quadrants, nil
	case "gradient":
		return Gradient, nil
	case "diagonal":
		return Diagonal, nil
	case "source", "video", "external", "syphon":
		return SourceMode, nil
	}
	return Quadrants, fmt.Errorf("unknown canvas mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	white = color.RGBA{255, 255, 255, 255}
)

// Canvas rasterizes the test patterns on the CPU, rows top-first. Static
// patterns are only redrawn after a resize or mode change.
type Canvas struct {
	img   *image.RGBA
	mode  Mode
	dirty bool
}

func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		img:   image.NewRGBA(image.Rect(0, 0, max(1, width), max(1, height))),
		dirty: true,
	}
}

func (c *Canvas) Mode() Mode { return c.mode }

func (c *Canvas) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	c.mode = m
	c.dirty = true
}

func (c *Canvas) Size() (int, int) {
	return c.img.Rect.Dx(), c.img.Rect.Dy()
}

// Resize reallocates the raster; sizes below 1 become 1.
func (c *Canvas) Resize(width, height int) {
	width, height = max(1, width), max(1, height)
	if w, h := c.Size(); w == width && h == height {
		return
	}
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	c.dirty = true
}

func (c *Canvas) Image() *image.RGBA { return c.img }

// Draw renders the pattern for time timeMs and reports whether the raster
// changed. SourceMode leaves the raster alone.
func (c *Canvas) Draw(timeMs float64) bool {
	switch c.mode {
	case Gradient:
		c.drawGradient(timeMs)
	case Quadrants, Diagonal:
		if !c.dirty {
			return false
		}
		if c.mode == Quadrants {
			c.drawQuadrants()
		} else {
			c.drawDiagonal()
		}
	default:
		return false
	}
	c.dirty = false
	return true
}

func (c *Canvas) fill(r image.Rectangle, col color.RGBA) {
	xdraw.Draw(c.img, r, image.NewUniform(col), image.Point{}, xdraw.Src)
}

func (c *Canvas) drawQuadrants() {
	w, h := c.Size()
	cw, ch := w/2, h/2
	c.fill(image.Rect(0, 0, cw, ch), red)
	c.fill(image.Rect(cw, 0, w, ch), green)
	c.fill(image.Rect(0, ch, cw, h), blue)
	c.fill(image.Rect(cw, ch, w, h), white)
}

// drawGradient is a linear gradient from the top-left to the bottom-right
// corner through three hues 120 degrees apart, rotating with time.
func (c *Canvas) drawGradient(timeMs float64) {
	w, h := c.Size()
	hue := timeMs * 0.02
	stops := [3][3]float64{hsl(hue), hsl(hue + 120), hsl(hue + 240)}
	den := float64(w*w + h*h)
	for y := 0; y < h; y++ {
		row := c.img.Pix[y*c.img.Stride : y*c.img.Stride+w*4]
		for x := 0; x < w; x++ {
			t := (float64(x)*float64(w) + float64(y)*float64(h)) / den
			col := gradientAt(stops, t)
			o := x * 4
			row[o] = col[0]
			row[o+1] = col[1]
			row[o+2] = col[2]
			row[o+3] = 255
		}
	}
}

func gradientAt(stops [3][3]float64, t float64) [3]uint8 {
	t = min(max(t, 0), 1)
	a, b, f := stops[0], stops[1], t*2
	if t > 0.5 {
		a, b, f = stops[1], stops[2], (t-0.5)*2
	}
	var out [3]uint8
	for i := range out {
		out[i] = uint8(math.Round(a[i] + (b[i]-a[i])*f))
	}
	return out
}

// hsl returns the fully saturated, half lightness color at hue degrees, in
// 0..255 channel units.
func hsl(hue float64) [3]float64 {
	h := math.Mod(hue, 360)
	if h < 0 {
		h += 360
	}
	channel := func(n float64) float64 {
		k := math.Mod(n+h/30, 12)
		return 255 * (0.5 - 0.5*max(-1, min(k-3, 9-k, 1)))
	}
	return [3]float64{channel(0), channel(8), channel(4)}
}

// StripeWidth is the diagonal pattern's stripe width for a canvas size.
func StripeWidth(w, h int) int {
	return max(8, min(w, h)/20)
}

// drawDiagonal paints alternating red and blue stripes at 45 degrees about
// the canvas center.
func (c *Canvas) drawDiagonal() {
	w, h := c.Size()
	stripe := float64(StripeWidth(w, h))
	cx, cy := float64(w)/2, float64(h)/2
	s := math.Sqrt2 / 2
	for y := 0; y < h; y++ {
		row := c.img.Pix[y*c.img.Stride : y*c.img.Stride+w*4]
		dy := float64(y) + 0.5 - cy
		for x := 0; x < w; x++ {
			dx := float64(x) + 0.5 - cx
			// x coordinate in the frame rotated by 45 degrees
			u := (dx+dy)*s + cx
			col := red
			if int64(math.Floor(u/stripe))&1 == 1 {
				col = blue
			}
			o := x * 4
			row[o] = col.R
			row[o+1] = col.G
			row[o+2] = col.B
			row[o+3] = 255
		}
	}
}
