package renderer

import (
	"fmt"
	"image"

	gl "github.com/go-gl/gl/v4.1-core/gl"
)

// Target is an offscreen RGBA8 framebuffer with a single color texture.
// Rows are stored the way the passes write them, so ReadRGBA returns them
// unchanged.
type Target struct {
	fbo       uint32
	textureID uint32
	width     int
	height    int
	filter    int32
}

// NewTarget creates a width x height render target. Nearest filtering is
// used when exact texel reads matter more than smooth scaling.
func NewTarget(width, height int, nearest bool) (*Target, error) {
	t := &Target{
		width:  max(width, 1),
		height: max(height, 1),
		filter: gl.LINEAR,
	}
	if nearest {
		t.filter = gl.NEAREST
	}

	gl.GenTextures(1, &t.textureID)
	gl.BindTexture(gl.TEXTURE_2D, t.textureID)
	setSamplerParams(t.filter)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(t.width), int32(t.height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)

	gl.GenFramebuffers(1, &t.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.textureID, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		t.Destroy()
		return nil, fmt.Errorf("offscreen framebuffer %dx%d is not complete (0x%x)", t.width, t.height, status)
	}
	return t, nil
}

// Bind makes the target the draw framebuffer and sets a matching viewport.
func (t *Target) Bind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, t.fbo)
	gl.Viewport(0, 0, int32(t.width), int32(t.height))
}

func (t *Target) Unbind() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

func (t *Target) TextureID() uint32 { return t.textureID }

func (t *Target) Size() (int, int) { return t.width, t.height }

// Resize reallocates the color store. Contents are undefined afterwards.
func (t *Target) Resize(width, height int) {
	width, height = max(width, 1), max(height, 1)
	if width == t.width && height == t.height {
		return
	}
	t.width, t.height = width, height
	gl.BindTexture(gl.TEXTURE_2D, t.textureID)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

// ReadPixels reads w x h RGBA8 pixels from the lower-left of the target.
func (t *Target) ReadPixels(w, h int) []byte {
	w, h = min(w, t.width), min(h, t.height)
	pix := make([]byte, w*h*4)
	if w <= 0 || h <= 0 {
		return pix
	}
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, t.fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	return pix
}

// ReadRGBA reads the whole target into an image.
func (t *Target) ReadRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	copy(img.Pix, t.ReadPixels(t.width, t.height))
	return img
}

func (t *Target) Destroy() {
	if t.fbo != 0 {
		gl.DeleteFramebuffers(1, &t.fbo)
		t.fbo = 0
	}
	if t.textureID != 0 {
		gl.DeleteTextures(1, &t.textureID)
		t.textureID = 0
	}
}
