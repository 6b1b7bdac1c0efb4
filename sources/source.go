// Package sources implements the video sources a deck or the analysis canvas
// can show. Every source owns exactly one GPU texture, created by Load and
// released by Dispose; the compositor and the color sampler only borrow it.
//
// All methods run on the GL thread. Work that would block (decoding, ffmpeg
// pipes, relay pulls) runs in goroutines that hand results to Tick through a
// single-slot Mailbox.
package sources

import (
	"errors"
	"fmt"

	"github.com/richinsley/lightv/framerelay"
	"github.com/richinsley/lightv/renderer"
)

// Kind names a source variant. It is the "type" field of a Descriptor.
type Kind string

const (
	KindSolid    Kind = "solid"
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindWebcam   Kind = "webcam"
	KindShader   Kind = "shader"
	KindExternal Kind = "external"
)

var (
	ErrNotLoaded   = errors.New("source not loaded")
	ErrUnknownKind = errors.New("unknown source kind")
	ErrBadOption   = errors.New("invalid source option")
)

// Env carries what a source needs from its host to load.
type Env struct {
	Quad   *renderer.Quad
	IsGLES bool
	// Output size the source draws for.
	Width, Height int

	FFmpegPath string
	FFmpegArgs []string
	// WebcamSize is the default capture size, such as "640x480".
	WebcamSize string

	Relay framerelay.Provider
}

func (e *Env) relay() framerelay.Provider {
	if e == nil || e.Relay == nil {
		return framerelay.None{}
	}
	return e.Relay
}

// Source is the contract shared by all variants.
type Source interface {
	ID() string
	Kind() Kind
	Label() string
	SetLabel(string)

	// Load allocates the texture and begins any async preparation. After a
	// successful Load TextureID is never 0.
	Load(env *Env) error
	Start()
	Stop()
	Running() bool
	// Tick uploads whatever became available since the last call. It never
	// blocks and never fails; problems are logged.
	Tick(dtMs float64)
	// Dispose releases the texture and every external handle. A pending async
	// result that lands afterwards is dropped.
	Dispose()

	TextureID() uint32
	ContentSize() (int, int)
	FillMode() renderer.FillMode
	FlipY() bool

	SetOutputSize(width, height int)
	OptionsSchema() []Option
	SetOptions(opts map[string]any) error
	Descriptor() Descriptor
}

// Option describes one user-editable setting.
type Option struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Type    string   `json:"type"` // select, checkbox, number, text
	Value   any      `json:"value"`
	Choices []string `json:"choices,omitempty"`
	Min     float64  `json:"min,omitempty"`
	Max     float64  `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
}

func fillModeOption(m renderer.FillMode) Option {
	return Option{
		Key:     "fillMode",
		Label:   "Fill mode",
		Type:    "select",
		Value:   m.String(),
		Choices: []string{"cover", "contain", "stretch"},
	}
}

// base holds the state every variant shares.
type base struct {
	id      string
	kind    Kind
	label   string
	fill    renderer.FillMode
	running bool
	loaded  bool

	tex        uint32
	outW, outH int
	env        *Env
}

func newBase(id string, kind Kind, fill renderer.FillMode) base {
	return base{id: id, kind: kind, label: string(kind), fill: fill, outW: 1, outH: 1}
}

func (b *base) ID() string                  { return b.id }
func (b *base) Kind() Kind                  { return b.kind }
func (b *base) Label() string               { return b.label }
func (b *base) SetLabel(l string)           { b.label = l }
func (b *base) Running() bool               { return b.running }
func (b *base) FillMode() renderer.FillMode { return b.fill }
func (b *base) FlipY() bool                 { return false }

// TextureID is 0 until Load succeeds and again after Dispose.
func (b *base) TextureID() uint32 { return b.tex }

func (b *base) Start() { b.running = true }
func (b *base) Stop()  { b.running = false }

func (b *base) bind(env *Env) {
	b.env = env
	if env != nil && env.Width > 0 && env.Height > 0 {
		b.outW, b.outH = env.Width, env.Height
	}
}

// resize records a new output size and reports whether it changed.
func (b *base) resize(width, height int) bool {
	width, height = max(width, 1), max(height, 1)
	if width == b.outW && height == b.outH {
		return false
	}
	b.outW, b.outH = width, height
	return true
}

func (b *base) release() {
	b.running = false
	b.loaded = false
	renderer.DeleteTexture(b.tex)
	b.tex = 0
}

func (b *base) applyFillMode(opts map[string]any) error {
	s, ok, err := optString(opts, "fillMode")
	if err != nil || !ok {
		return err
	}
	m, err := renderer.ParseFillMode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadOption, err)
	}
	b.fill = m
	return nil
}

func (b *base) descriptor() Descriptor {
	return Descriptor{
		Type:    b.kind,
		Label:   b.label,
		Options: map[string]any{"fillMode": b.fill.String()},
	}
}
