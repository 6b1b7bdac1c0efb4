// Package gltest gives tests a real GL context on a headless EGL device.
package gltest

import (
	"image"
	"runtime"
	"testing"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/lightv/headless"
	"github.com/richinsley/lightv/renderer"
)

// Renderer returns a renderer on a width x height headless context and skips
// t when the machine has no usable EGL device. The test goroutine stays
// locked to its thread until the test ends.
func Renderer(t testing.TB, width, height int) *renderer.Renderer {
	t.Helper()
	runtime.LockOSThread()
	ctx, err := headless.NewHeadless(width, height)
	if err != nil {
		runtime.UnlockOSThread()
		t.Skipf("no headless GL context: %v", err)
	}
	r, err := renderer.NewRenderer(ctx)
	if err != nil {
		ctx.Shutdown()
		runtime.UnlockOSThread()
		t.Skipf("GL unavailable: %v", err)
	}
	t.Cleanup(func() {
		r.Shutdown()
		runtime.UnlockOSThread()
	})
	return r
}

// Texture uploads img into a new texture, rows top-first.
func Texture(t testing.TB, img *image.RGBA) uint32 {
	t.Helper()
	w, h := img.Rect.Dx(), img.Rect.Dy()
	tex := renderer.NewTexture(w, h)
	renderer.UploadRGBA(tex, img.Pix, w, h, true)
	t.Cleanup(func() { renderer.DeleteTexture(tex) })
	return tex
}

// ScreenPixel reads the default framebuffer at (x, y) counted from the top
// of the picture.
func ScreenPixel(x, y, fbHeight int) [3]uint8 {
	var px [4]uint8
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(x), int32(fbHeight-1-y), 1, 1, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(px[:]))
	return [3]uint8{px[0], px[1], px[2]}
}

// Pixel is the RGB of img at (x, y).
func Pixel(img *image.RGBA, x, y int) [3]uint8 {
	o := img.PixOffset(x, y)
	return [3]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2]}
}

// Input is a compositor input over a plain texture, stretched to the output.
type Input struct {
	Tex  uint32
	W, H int
	Flip bool
}

func (in Input) TextureID() uint32           { return in.Tex }
func (in Input) ContentSize() (int, int)     { return in.W, in.H }
func (in Input) FillMode() renderer.FillMode { return renderer.Stretch }
func (in Input) FlipY() bool                 { return in.Flip }
