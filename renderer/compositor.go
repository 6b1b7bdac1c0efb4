package renderer

import (
	"fmt"
	"log"
	"math"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/lightv/shader"
)

// Input is what the compositor borrows from a source each frame. The
// compositor never releases an input's texture.
type Input interface {
	TextureID() uint32
	ContentSize() (int, int)
	FillMode() FillMode
	FlipY() bool
}

// Prefitted is implemented by inputs that already draw their content into an
// output-sized surface honoring the fill mode; they are sampled 1:1.
type Prefitted interface {
	Prefitted() bool
}

// Slot selects one of the two compositor inputs.
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) String() string {
	if s == SlotB {
		return "B"
	}
	return "A"
}

// Compositor blends two inputs into an offscreen target and copies that
// target to the display. The target is what color sampling reads.
type Compositor struct {
	program     uint32
	blitProgram uint32
	quad        *Quad
	target      *Target
	black       uint32
	inputs      [2]Input

	mix        float64
	blend      BlendMode
	transition Transition

	texLoc        [2]int32
	windowLoc     [2]int32
	flipLoc       [2]int32
	mixLoc        int32
	blendLoc      int32
	transitionLoc int32
	softnessLoc   int32
	angleLoc      int32
	lumaInvertLoc int32
	blitTexLoc    int32
}

// NewCompositor builds the composite and display programs. Compile or link
// failures are returned and leave nothing allocated.
func NewCompositor(quad *Quad, width, height int, isGLES bool) (*Compositor, error) {
	program, err := NewProgram(shader.GenerateVertexShader(isGLES), shader.GetCompositeFragmentShader(isGLES))
	if err != nil {
		return nil, fmt.Errorf("failed to create composite program: %w", err)
	}
	blit, err := NewProgram(shader.GenerateVertexShader(isGLES), shader.GetBlitFragmentShader(true, isGLES))
	if err != nil {
		gl.DeleteProgram(program)
		return nil, fmt.Errorf("failed to create display program: %w", err)
	}
	target, err := NewTarget(width, height, false)
	if err != nil {
		gl.DeleteProgram(program)
		gl.DeleteProgram(blit)
		return nil, fmt.Errorf("failed to create composite target: %w", err)
	}

	c := &Compositor{
		program:     program,
		blitProgram: blit,
		quad:        quad,
		target:      target,
		black:       NewSolidTexture([4]uint8{0, 0, 0, 255}),
		transition:  Transition{Type: Crossfade, Softness: DefaultSoftness},
	}
	c.texLoc = [2]int32{Uniform(program, "u_texA"), Uniform(program, "u_texB")}
	c.windowLoc = [2]int32{Uniform(program, "u_windowA"), Uniform(program, "u_windowB")}
	c.flipLoc = [2]int32{Uniform(program, "u_flipA"), Uniform(program, "u_flipB")}
	c.mixLoc = Uniform(program, "u_mix")
	c.blendLoc = Uniform(program, "u_blend")
	c.transitionLoc = Uniform(program, "u_transition")
	c.softnessLoc = Uniform(program, "u_softness")
	c.angleLoc = Uniform(program, "u_angle")
	c.lumaInvertLoc = Uniform(program, "u_lumaInvert")
	c.blitTexLoc = Uniform(blit, "u_texture")

	log.Printf("Compositor: %dx%d target ready", width, height)
	return c, nil
}

// SetInput assigns a slot; nil clears it and the slot renders black.
func (c *Compositor) SetInput(slot Slot, in Input) {
	if slot != SlotA && slot != SlotB {
		return
	}
	c.inputs[slot] = in
}

func (c *Compositor) Input(slot Slot) Input {
	if slot != SlotA && slot != SlotB {
		return nil
	}
	return c.inputs[slot]
}

// SetMix clamps v into [0,1]; NaN is treated as 0.
func (c *Compositor) SetMix(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	c.mix = min(max(v, 0), 1)
}

func (c *Compositor) Mix() float64 { return c.mix }

func (c *Compositor) SetBlendMode(m BlendMode) {
	if m < BlendNormal || m > BlendScreen {
		m = BlendNormal
	}
	c.blend = m
}

func (c *Compositor) BlendMode() BlendMode { return c.blend }

func (c *Compositor) SetTransition(t Transition) {
	if t.Type < Crossfade || t.Type > LumaKey {
		t.Type = Crossfade
	}
	t.Softness = ClampSoftness(t.Softness)
	if math.IsNaN(t.Angle) || math.IsInf(t.Angle, 0) {
		t.Angle = 0
	}
	c.transition = t
}

func (c *Compositor) Transition() Transition { return c.transition }

// Resize reallocates the composite target to the output size.
func (c *Compositor) Resize(width, height int) {
	c.target.Resize(width, height)
}

func (c *Compositor) Size() (int, int) { return c.target.Size() }

// Texture is the composited frame, rows top-first.
func (c *Compositor) Texture() uint32 { return c.target.TextureID() }

func (c *Compositor) Target() *Target { return c.target }

// InputRect is the placement used for in at the given output size.
func InputRect(in Input, outW, outH int) UVRect {
	if in == nil {
		return IdentityRect
	}
	if p, ok := in.(Prefitted); ok && p.Prefitted() {
		return IdentityRect
	}
	w, h := in.ContentSize()
	return ComputeUVRect(in.FillMode(), w, h, outW, outH)
}

// Render draws the blended frame into the composite target.
func (c *Compositor) Render() {
	w, h := c.target.Size()
	c.target.Bind()
	gl.Disable(gl.BLEND)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(c.program)

	for i, in := range c.inputs {
		tex := c.black
		flip := int32(0)
		window := IdentityRect.Window()
		if in != nil {
			if id := in.TextureID(); id != 0 {
				tex = id
				window = InputRect(in, w, h).Window()
				if in.FlipY() {
					flip = 1
				}
			}
		}
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, tex)
		if c.texLoc[i] != -1 {
			gl.Uniform1i(c.texLoc[i], int32(i))
		}
		if c.windowLoc[i] != -1 {
			gl.Uniform4f(c.windowLoc[i], window[0], window[1], window[2], window[3])
		}
		if c.flipLoc[i] != -1 {
			gl.Uniform1i(c.flipLoc[i], flip)
		}
	}

	if c.mixLoc != -1 {
		gl.Uniform1f(c.mixLoc, float32(c.mix))
	}
	if c.blendLoc != -1 {
		gl.Uniform1i(c.blendLoc, int32(c.blend))
	}
	if c.transitionLoc != -1 {
		gl.Uniform1i(c.transitionLoc, int32(c.transition.Type))
	}
	if c.softnessLoc != -1 {
		gl.Uniform1f(c.softnessLoc, float32(c.transition.Softness))
	}
	if c.angleLoc != -1 {
		gl.Uniform1f(c.angleLoc, float32(c.transition.Angle))
	}
	if c.lumaInvertLoc != -1 {
		v := int32(0)
		if c.transition.LumaInvert {
			v = 1
		}
		gl.Uniform1i(c.lumaInvertLoc, v)
	}

	c.quad.Draw()

	for i := range c.inputs {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(i))
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}
	gl.ActiveTexture(gl.TEXTURE0)
	c.target.Unbind()
}

// Present copies the composite target to the default framebuffer.
func (c *Compositor) Present(fbWidth, fbHeight int) {
	Blit(c.blitProgram, c.blitTexLoc, c.quad, c.target.TextureID(), fbWidth, fbHeight)
}

// Blit draws tex over the whole default framebuffer with program.
func Blit(program uint32, texLoc int32, quad *Quad, tex uint32, fbWidth, fbHeight int) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(fbWidth), int32(fbHeight))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.UseProgram(program)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	if texLoc != -1 {
		gl.Uniform1i(texLoc, 0)
	}
	quad.Draw()
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (c *Compositor) Destroy() {
	gl.DeleteProgram(c.program)
	gl.DeleteProgram(c.blitProgram)
	c.target.Destroy()
	DeleteTexture(c.black)
	c.inputs = [2]Input{}
}
