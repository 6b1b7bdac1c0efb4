// Package config merges the TOML config file with command-line flags into
// the settings the application starts with.
package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/richinsley/lightv/analysis"
	"github.com/richinsley/lightv/deck"
	"github.com/richinsley/lightv/output"
	"github.com/richinsley/lightv/regions"
	"github.com/richinsley/lightv/renderer"
	"github.com/richinsley/lightv/sampling"
	"github.com/richinsley/lightv/sources"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

const (
	ModeVJ       = "vj"
	ModeAnalysis = "analysis"
)

type RelayKind string

const (
	RelayNone      RelayKind = "none"
	RelaySHM       RelayKind = "shm"
	RelayWebSocket RelayKind = "websocket"
)

// Config is the validated result.
type Config struct {
	Mode     string
	Width    int
	Height   int
	FPS      int
	Headless bool
	Frames   int
	Verbose  bool
	// EGLDevice is -1 for the first usable device.
	EGLDevice int

	// Record and Publish are extra destinations for the mixed output.
	Record   string
	Codec    string
	HWEncode bool
	Publish  string

	FFmpegPath string
	FFmpegArgs []string
	WebcamSize string

	Relay struct {
		Kind   RelayKind
		Listen string
		Dir    string
		Prefix string
	}

	Analysis struct {
		SamplesPerEdge   int
		Canvas           analysis.Mode
		SmoothingEnabled bool
		SmoothingMs      int
		Regions          []regions.Type
		Source           *sources.Descriptor
	}

	Mixer deck.Settings
	DeckA []sources.Descriptor
	DeckB []sources.Descriptor
}

// Resolve builds a Config from f, overridden by every flag the user set in
// o. Either may be nil.
func Resolve(f *File, o *Options) (*Config, error) {
	if f == nil {
		f = &File{}
	}
	if o == nil {
		o = &Options{Set: map[string]bool{}}
	}
	set := func(name string) bool { return o.Set[name] }

	c := &Config{
		Mode:   pick(f.Mode, ModeVJ),
		Width:  pickInt(f.Output.Width, 1280),
		Height: pickInt(f.Output.Height, 720),
		FPS:    pickInt(f.Output.FPS, 60),
	}
	if f.Output.Headless != nil {
		c.Headless = *f.Output.Headless
	}
	c.EGLDevice = -1
	if f.Output.EGLDevice != nil {
		c.EGLDevice = *f.Output.EGLDevice
	}
	c.Record = f.Output.Record
	c.Codec = pick(f.Output.Codec, output.CodecH264)
	c.Publish = f.Output.Publish
	if f.Output.HWEncode != nil {
		c.HWEncode = *f.Output.HWEncode
	}

	c.FFmpegPath = f.FFmpeg.Path
	c.WebcamSize = pick(f.FFmpeg.WebcamSize, sources.DefaultWebcamSize)
	if f.FFmpeg.ExtraArgs != "" {
		args, err := shellwords.Parse(f.FFmpeg.ExtraArgs)
		if err != nil {
			return nil, fmt.Errorf("%w: ffmpeg extra_args: %v", ErrInvalid, err)
		}
		c.FFmpegArgs = args
	}

	relay := pick(f.Relay.Kind, string(RelayNone))
	c.Relay.Listen = pick(f.Relay.Listen, ":7878")
	c.Relay.Dir = f.Relay.Dir
	c.Relay.Prefix = pick(f.Relay.Prefix, "lightv-")

	samples := pickInt(f.Analysis.SamplesPerEdge, sampling.DefaultSamplesPerEdge)
	canvas := pick(f.Analysis.CanvasMode, "quadrants")
	c.Analysis.SmoothingMs = pickInt(f.Analysis.SmoothingMs, regions.DefaultSmoothingMs)
	if f.Analysis.SmoothingEnabled != nil {
		c.Analysis.SmoothingEnabled = *f.Analysis.SmoothingEnabled
	}
	regionNames := f.Analysis.Regions
	c.Analysis.Source = f.Analysis.Source

	m := f.Mixer
	c.Mixer = deck.DefaultSettings()
	if m.Mix != nil {
		c.Mixer.Mix = *m.Mix
	}
	if m.Softness != nil {
		c.Mixer.Transition.Softness = *m.Softness
	}
	if m.AngleDeg != nil {
		c.Mixer.Transition.Angle = *m.AngleDeg * math.Pi / 180
	}
	if m.LumaInvert != nil {
		c.Mixer.Transition.LumaInvert = *m.LumaInvert
	}
	if m.PauseInactiveWebcams != nil {
		c.Mixer.PauseInactiveWebcams = *m.PauseInactiveWebcams
	}
	blend := pick(m.Blend, "normal")
	transition := pick(m.Transition, "crossfade")
	curve := pick(m.Curve, "linear")
	c.DeckA = f.Deck.A
	c.DeckB = f.Deck.B

	if set("mode") {
		c.Mode = *o.Mode
	}
	if set("width") {
		c.Width = *o.Width
	}
	if set("height") {
		c.Height = *o.Height
	}
	if set("fps") {
		c.FPS = *o.FPS
	}
	if set("headless") {
		c.Headless = *o.Headless
	}
	if set("egl-device") {
		c.EGLDevice = *o.EGLDevice
	}
	if set("frames") {
		c.Frames = *o.Frames
	}
	if set("record") {
		c.Record = *o.Record
	}
	if set("codec") {
		c.Codec = *o.Codec
	}
	if set("hwenc") {
		c.HWEncode = *o.HWEncode
	}
	if set("publish") {
		c.Publish = *o.Publish
	}
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
	if set("ffmpeg") {
		c.FFmpegPath = *o.FFmpegPath
	}
	if set("relay") {
		relay = *o.Relay
	}
	if set("relay-addr") {
		c.Relay.Listen = *o.RelayAddr
	}
	if set("samples") {
		samples = *o.Samples
	}
	if set("canvas") {
		canvas = *o.Canvas
	}
	if set("mix") {
		c.Mixer.Mix = *o.Mix
	}
	if set("blend") {
		blend = *o.Blend
	}
	if set("transition") {
		transition = *o.Transition
	}
	if set("curve") {
		curve = *o.Curve
	}
	if set("region") {
		regionNames = *o.Regions
	}
	if set("a") {
		ds, err := parseSourceArgs(*o.DeckA)
		if err != nil {
			return nil, err
		}
		c.DeckA = ds
	}
	if set("b") {
		ds, err := parseSourceArgs(*o.DeckB)
		if err != nil {
			return nil, err
		}
		c.DeckB = ds
	}
	if set("source") {
		d, err := ParseSourceArg(*o.Source)
		if err != nil {
			return nil, err
		}
		c.Analysis.Source = &d
	}

	var err error
	c.Relay.Kind = RelayKind(strings.ToLower(relay))
	c.Analysis.SamplesPerEdge = samples
	if c.Analysis.Canvas, err = analysis.ParseMode(canvas); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Mixer.Blend, err = renderer.ParseBlendMode(blend); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Mixer.Transition.Type, err = renderer.ParseTransition(transition); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Mixer.Curve, err = deck.ParseCurve(curve); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for _, name := range regionNames {
		t, err := regions.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		c.Analysis.Regions = append(c.Analysis.Regions, t)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate clamps numeric ranges and rejects unknown names.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeVJ, ModeAnalysis:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Mode)
	}
	switch c.Relay.Kind {
	case RelayNone, RelaySHM, RelayWebSocket:
	default:
		return fmt.Errorf("%w: unknown relay %q", ErrInvalid, c.Relay.Kind)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: output size %dx%d", ErrInvalid, c.Width, c.Height)
	}
	c.Codec = strings.ToLower(c.Codec)
	if c.Codec != output.CodecH264 && c.Codec != output.CodecHEVC {
		return fmt.Errorf("%w: unknown codec %q", ErrInvalid, c.Codec)
	}
	if c.Publish != "" {
		if _, _, err := ParsePublish(c.Publish); err != nil {
			return err
		}
	}
	if _, _, err := sources.ParseSize(c.WebcamSize); err != nil {
		return fmt.Errorf("%w: webcam_size: %v", ErrInvalid, err)
	}
	if c.EGLDevice < -1 {
		return fmt.Errorf("%w: egl device %d", ErrInvalid, c.EGLDevice)
	}
	c.FPS = max(1, c.FPS)
	c.Frames = max(0, c.Frames)
	c.Analysis.SamplesPerEdge = sampling.ClampSamplesPerEdge(c.Analysis.SamplesPerEdge)
	c.Analysis.SmoothingMs = max(regions.MinSmoothingMs, min(regions.MaxSmoothingMs, c.Analysis.SmoothingMs))
	if math.IsNaN(c.Mixer.Mix) {
		c.Mixer.Mix = 0
	}
	c.Mixer.Mix = min(max(c.Mixer.Mix, 0), 1)
	c.Mixer.Transition.Softness = renderer.ClampSoftness(c.Mixer.Transition.Softness)
	for _, d := range append(append([]sources.Descriptor(nil), c.DeckA...), c.DeckB...) {
		if d.Type == "" {
			return fmt.Errorf("%w: deck entry without a type", ErrInvalid)
		}
	}
	return nil
}

func parseSourceArgs(values []string) ([]sources.Descriptor, error) {
	out := make([]sources.Descriptor, 0, len(values))
	for _, s := range values {
		d, err := ParseSourceArg(s)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// ParseSourceArg turns a "kind:argument" flag value into a descriptor.
// The argument is a color for solid, a file for image, video and shader, a
// device for webcam and a server index for external.
func ParseSourceArg(value string) (sources.Descriptor, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(value), ":")
	d := sources.Descriptor{Type: sources.Kind(strings.ToLower(kind)), Options: map[string]any{}}
	switch d.Type {
	case sources.KindSolid:
		if arg != "" {
			rgb, err := sources.ParseHexColor(arg)
			if err != nil {
				return d, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			d.Options["color"] = []int{int(rgb[0]), int(rgb[1]), int(rgb[2])}
		}
	case sources.KindImage, sources.KindVideo:
		if arg == "" {
			return d, fmt.Errorf("%w: %s needs a file: %q", ErrInvalid, d.Type, value)
		}
		if strings.HasPrefix(arg, "data:") {
			d.DataURL = arg
		} else {
			d.Path = arg
		}
	case sources.KindShader:
		d.Path = arg
	case sources.KindWebcam:
		d.DeviceID = arg
	case sources.KindExternal:
		idx := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return d, fmt.Errorf("%w: server index %q", ErrInvalid, arg)
			}
			idx = n
		}
		d.ServerIndex = &idx
	default:
		return d, fmt.Errorf("%w: unknown source kind in %q", ErrInvalid, value)
	}
	return d, nil
}

// ParsePublish splits a -publish value into a relay kind and its target:
// a shared-memory server name or a websocket URL.
func ParsePublish(s string) (RelayKind, string, error) {
	switch {
	case strings.HasPrefix(s, "ws://"), strings.HasPrefix(s, "wss://"):
		return RelayWebSocket, s, nil
	case strings.HasPrefix(s, "shm:") && len(s) > len("shm:"):
		return RelaySHM, strings.TrimPrefix(s, "shm:"), nil
	}
	return "", "", fmt.Errorf("%w: publish target %q (want shm:NAME or ws://...)", ErrInvalid, s)
}

func pick(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func pickInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
