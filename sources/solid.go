package sources

import (
	"fmt"

	"github.com/richinsley/lightv/renderer"
)

var DefaultSolidColor = [3]uint8{255, 0, 255}

// Solid is a 1x1 texture of one color. It doubles as the mock source in
// tests and headless runs.
type Solid struct {
	base
	color   [3]uint8
	elapsed float64
}

func NewSolid(id string) *Solid {
	return &Solid{base: newBase(id, KindSolid, renderer.Stretch), color: DefaultSolidColor}
}

func (s *Solid) Load(env *Env) error {
	if s.loaded {
		return nil
	}
	s.bind(env)
	s.tex = renderer.NewSolidTexture(s.rgba())
	s.loaded = true
	return nil
}

func (s *Solid) rgba() [4]uint8 {
	return [4]uint8{s.color[0], s.color[1], s.color[2], 255}
}

func (s *Solid) Color() [3]uint8 { return s.color }

// SetColor updates the texel immediately when loaded.
func (s *Solid) SetColor(c [3]uint8) {
	s.color = c
	if s.loaded {
		renderer.SetSolidTexture(s.tex, s.rgba())
	}
}

func (s *Solid) Tick(dtMs float64) {
	if dtMs > 0 {
		s.elapsed += dtMs / 1000
	}
}

// Elapsed is the accumulated tick time in seconds.
func (s *Solid) Elapsed() float64 { return s.elapsed }

func (s *Solid) ContentSize() (int, int) { return 1, 1 }

func (s *Solid) SetOutputSize(width, height int) { s.resize(width, height) }

func (s *Solid) Dispose() { s.release() }

func (s *Solid) OptionsSchema() []Option {
	return []Option{
		{Key: "color", Label: "Color", Type: "text", Value: fmt.Sprintf("#%02x%02x%02x", s.color[0], s.color[1], s.color[2])},
		fillModeOption(s.fill),
	}
}

func (s *Solid) SetOptions(opts map[string]any) error {
	if err := s.applyFillMode(opts); err != nil {
		return err
	}
	c, ok, err := optColor(opts, "color")
	if err != nil {
		return err
	}
	if ok {
		s.SetColor(c)
	}
	return nil
}

func (s *Solid) Descriptor() Descriptor {
	d := s.descriptor()
	d.Options["color"] = []int{int(s.color[0]), int(s.color[1]), int(s.color[2])}
	return d
}
