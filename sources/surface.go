package sources

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/richinsley/lightv/renderer"
)

// Surface is an output-sized RGBA raster that image, video and webcam sources
// redraw their native frames into before uploading.
type Surface struct {
	img *image.RGBA
}

func NewSurface(width, height int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, max(width, 1), max(height, 1)))}
}

// Resize reallocates the raster and reports whether the size changed.
func (s *Surface) Resize(width, height int) bool {
	width, height = max(width, 1), max(height, 1)
	if b := s.img.Bounds(); b.Dx() == width && b.Dy() == height {
		return false
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
	return true
}

func (s *Surface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *Surface) Image() *image.RGBA { return s.img }

func (s *Surface) Pix() []byte { return s.img.Pix }

// Draw clears to black and scales src into the placement for mode.
func (s *Surface) Draw(src image.Image, mode renderer.FillMode) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	if src == nil {
		return
	}
	sb := src.Bounds()
	if sb.Empty() {
		return
	}
	w, h := s.Size()
	dr := renderer.ComputeUVRect(mode, sb.Dx(), sb.Dy(), w, h).PixelRect(w, h)
	xdraw.ApproxBiLinear.Scale(s.img, dr, src, sb, xdraw.Src, nil)
}

// rgbaView wraps tightly packed RGBA rows without copying.
func rgbaView(pix []byte, width, height int) *image.RGBA {
	return &image.RGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
}
