package config

import (
	"flag"
	"strings"
)

// Options are the command-line flags. Every field points at the flag's
// value; Set records which flags the user actually gave.
type Options struct {
	Config     *string
	Mode       *string
	Width      *int
	Height     *int
	FPS        *int
	Headless   *bool
	EGLDevice  *int
	DeckA      *StringList // quick source arguments, such as "video:/clips/a.mp4"
	DeckB      *StringList
	Mix        *float64
	Blend      *string
	Transition *string
	Curve      *string
	Samples    *int
	Canvas     *string
	Source     *string // analysis source argument for -canvas source
	Regions    *StringList
	Frames     *int
	Record     *string
	Codec      *string
	Publish    *string
	HWEncode   *bool
	FFmpegPath *string
	Relay      *string
	RelayAddr  *string
	Verbose    *bool
	Help       *bool

	Set map[string]bool
}

// StringList is a repeatable string flag.
type StringList []string

func (s *StringList) String() string { return strings.Join(*s, ",") }

func (s *StringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Bind registers the flags on fs.
func Bind(fs *flag.FlagSet) *Options {
	o := &Options{
		DeckA:   &StringList{},
		DeckB:   &StringList{},
		Regions: &StringList{},
		Set:     map[string]bool{},
	}
	o.Config = fs.String("config", "", "Path to a TOML config file (default "+DefaultPath+")")
	o.Mode = fs.String("mode", "vj", "Mode: vj or analysis")
	o.Width = fs.Int("width", 1280, "Width of the output")
	o.Height = fs.Int("height", 720, "Height of the output")
	o.FPS = fs.Int("fps", 60, "Frames per second when headless")
	o.Headless = fs.Bool("headless", false, "Render offscreen through EGL instead of a window")
	o.EGLDevice = fs.Int("egl-device", -1, "EGL device index for -headless (-1 picks the first that works)")
	fs.Var(o.DeckA, "a", "Source for deck A, repeatable (solid:#ff00ff, image:PATH, video:PATH, webcam:DEVICE, shader:PATH, external:INDEX)")
	fs.Var(o.DeckB, "b", "Source for deck B, repeatable")
	o.Mix = fs.Float64("mix", 0, "Crossfader position between 0 (A) and 1 (B)")
	o.Blend = fs.String("blend", "normal", "Blend mode: normal, add, multiply or screen")
	o.Transition = fs.String("transition", "crossfade", "Transition: crossfade, wipe or luma")
	o.Curve = fs.String("curve", "linear", "Crossfade curve: linear or equalPower")
	o.Samples = fs.Int("samples", 20, "Samples per region edge (1-64)")
	o.Canvas = fs.String("canvas", "quadrants", "Analysis canvas: quadrants, gradient, diagonal or source")
	o.Source = fs.String("source", "", "Analysis source for -canvas source, same syntax as -a")
	fs.Var(o.Regions, "region", "Add an analysis region: area, strip or grid (repeatable)")
	o.Frames = fs.Int("frames", 0, "Stop after this many frames and print region colors (0 runs until closed)")
	o.Record = fs.String("record", "", "Also encode the mixed output to this file with ffmpeg")
	o.Codec = fs.String("codec", "h264", "Recording codec: h264 or hevc")
	o.HWEncode = fs.Bool("hwenc", false, "Record with the platform hardware encoder (nvenc, videotoolbox)")
	o.Publish = fs.String("publish", "", "Republish the mixed output: shm:NAME or a ws:// relay URL")
	o.FFmpegPath = fs.String("ffmpeg", "", "Path to ffmpeg executable")
	o.Relay = fs.String("relay", "none", "External frame relay: shm, websocket or none")
	o.RelayAddr = fs.String("relay-addr", ":7878", "Listen address of the websocket relay")
	o.Verbose = fs.Bool("verbose", false, "Log file and line numbers")
	o.Help = fs.Bool("help", false, "Show help message")
	return o
}

// MarkSet records the flags present on the command line. Call it after
// fs.Parse.
func (o *Options) MarkSet(fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) { o.Set[f.Name] = true })
}
