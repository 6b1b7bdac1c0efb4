package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/lightv/sampling"
	"github.com/richinsley/lightv/shader"
)

// ColorSampler runs the statistics pass over a texture, one output pixel per
// area, and reads the colors back. It implements sampling.Calculator.
type ColorSampler struct {
	program uint32
	quad    *Quad
	target  *Target

	source        uint32
	width, height int
	restore       func()

	imageLoc     int32
	canvasLoc    int32
	countLoc     int32
	statisticLoc int32
	samplesLoc   int32
	rectLoc      int32
	p0Loc        int32
	uvLoc        int32
}

var _ sampling.Calculator = (*ColorSampler)(nil)

func NewColorSampler(quad *Quad, isGLES bool) (*ColorSampler, error) {
	program, err := NewProgram(shader.GenerateVertexShader(isGLES), shader.GetSamplingFragmentShader(isGLES))
	if err != nil {
		return nil, fmt.Errorf("failed to create sampling program: %w", err)
	}
	target, err := NewTarget(sampling.MaxAreas, 1, true)
	if err != nil {
		gl.DeleteProgram(program)
		return nil, fmt.Errorf("failed to create sampling target: %w", err)
	}
	return &ColorSampler{
		program:      program,
		quad:         quad,
		target:       target,
		imageLoc:     Uniform(program, "u_image"),
		canvasLoc:    Uniform(program, "u_canvasSize"),
		countLoc:     Uniform(program, "u_count"),
		statisticLoc: Uniform(program, "u_statistic"),
		samplesLoc:   Uniform(program, "u_samples"),
		rectLoc:      Uniform(program, "u_rect"),
		p0Loc:        Uniform(program, "u_p0"),
		uvLoc:        Uniform(program, "u_uv"),
	}, nil
}

// SetSource points the sampler at a texture whose rows are stored top-first
// and whose size matches the pixel space of the areas.
func (s *ColorSampler) SetSource(tex uint32, width, height int) {
	s.source = tex
	s.width = width
	s.height = height
}

// OnRestore registers the display render that is reissued after every pass.
func (s *ColorSampler) OnRestore(f func()) {
	s.restore = f
}

// PackAreas lays out the uniform arrays for up to MaxAreas areas: normalized
// bounds, p0 with the oriented and valid flags in z and w, and the u and v
// edge vectors.
func PackAreas(areas []sampling.Area, width, height int) (rects, p0, uv [sampling.MaxAreas * 4]float32) {
	w, h := float64(max(width, 1)), float64(max(height, 1))
	for i, a := range areas {
		if i >= sampling.MaxAreas {
			break
		}
		oriented, ok := a.Resolve()
		if !ok {
			continue
		}
		o := i * 4
		p0[o+3] = 1
		if oriented {
			p0[o] = float32(a.Quad.P0.X)
			p0[o+1] = float32(a.Quad.P0.Y)
			p0[o+2] = 1
			uv[o] = float32(a.Quad.U.X)
			uv[o+1] = float32(a.Quad.U.Y)
			uv[o+2] = float32(a.Quad.V.X)
			uv[o+3] = float32(a.Quad.V.Y)
			continue
		}
		rects[o] = float32(a.Bounds.X / w)
		rects[o+1] = float32(a.Bounds.Y / h)
		rects[o+2] = float32(a.Bounds.Width / w)
		rects[o+3] = float32(a.Bounds.Height / h)
	}
	return
}

// CalculateColors renders one pixel per area and returns the colors in input
// order. Without a source every area comes back black.
func (s *ColorSampler) CalculateColors(areas []sampling.Area, stat sampling.Statistic, samplesPerEdge int) ([]sampling.Color, error) {
	if len(areas) > sampling.MaxAreas {
		return nil, sampling.ErrTooManyAreas
	}
	out := make([]sampling.Color, len(areas))
	for i := range out {
		out[i] = sampling.NewColor(0, 0, 0)
	}
	if len(areas) == 0 || s.source == 0 || s.width <= 0 || s.height <= 0 {
		return out, nil
	}

	var prevFBO int32
	gl.GetIntegerv(gl.FRAMEBUFFER_BINDING, &prevFBO)
	prevViewport := CurrentViewport()

	rects, p0, uv := PackAreas(areas, s.width, s.height)
	count := int32(len(areas))

	gl.BindFramebuffer(gl.FRAMEBUFFER, s.target.fbo)
	gl.Viewport(0, 0, count, 1)
	gl.Disable(gl.BLEND)
	gl.UseProgram(s.program)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, s.source)
	if s.imageLoc != -1 {
		gl.Uniform1i(s.imageLoc, 0)
	}
	if s.canvasLoc != -1 {
		gl.Uniform2f(s.canvasLoc, float32(s.width), float32(s.height))
	}
	if s.countLoc != -1 {
		gl.Uniform1i(s.countLoc, count)
	}
	if s.statisticLoc != -1 {
		gl.Uniform1i(s.statisticLoc, int32(stat))
	}
	if s.samplesLoc != -1 {
		gl.Uniform1i(s.samplesLoc, int32(sampling.ClampSamplesPerEdge(samplesPerEdge)))
	}
	if s.rectLoc != -1 {
		gl.Uniform4fv(s.rectLoc, sampling.MaxAreas, &rects[0])
	}
	if s.p0Loc != -1 {
		gl.Uniform4fv(s.p0Loc, sampling.MaxAreas, &p0[0])
	}
	if s.uvLoc != -1 {
		gl.Uniform4fv(s.uvLoc, sampling.MaxAreas, &uv[0])
	}
	s.quad.Draw()

	pix := s.target.ReadPixels(len(areas), 1)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(prevFBO))
	prevViewport.Apply()
	if s.restore != nil {
		s.restore()
	}

	for i := range out {
		o := i * 4
		out[i] = sampling.NewColor(pix[o], pix[o+1], pix[o+2])
	}
	return out, nil
}

func (s *ColorSampler) Destroy() {
	gl.DeleteProgram(s.program)
	s.target.Destroy()
}
