package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/richinsley/lightv/sources"
)

// DefaultPath is where the config file is looked up when -config is not
// given.
const DefaultPath = "~/.config/lightv/config.toml"

// File is the on-disk configuration. Zero values mean "not set".
type File struct {
	Mode     string          `toml:"mode"`
	Output   OutputSection   `toml:"output"`
	FFmpeg   FFmpegSection   `toml:"ffmpeg"`
	Relay    RelaySection    `toml:"relay"`
	Analysis AnalysisSection `toml:"analysis"`
	Mixer    MixerSection    `toml:"mixer"`
	Deck     DeckSection     `toml:"deck"`
}

type OutputSection struct {
	Width    int   `toml:"width"`
	Height   int   `toml:"height"`
	FPS      int   `toml:"fps"`
	Headless *bool `toml:"headless"`
	// EGLDevice is used by headless rendering; nil picks the first usable one.
	EGLDevice *int   `toml:"egl_device"`
	Record    string `toml:"record"`
	Codec     string `toml:"codec"`
	HWEncode  *bool  `toml:"hw_encode"`
	Publish   string `toml:"publish"`
}

type FFmpegSection struct {
	Path string `toml:"path"`
	// ExtraArgs is split like a shell command line.
	ExtraArgs  string `toml:"extra_args"`
	WebcamSize string `toml:"webcam_size"`
}

type RelaySection struct {
	Kind   string `toml:"kind"`
	Listen string `toml:"listen"`
	Dir    string `toml:"dir"`
	Prefix string `toml:"prefix"`
}

type AnalysisSection struct {
	SamplesPerEdge   int      `toml:"samples_per_edge"`
	CanvasMode       string   `toml:"canvas_mode"`
	SmoothingEnabled *bool    `toml:"smoothing_enabled"`
	SmoothingMs      int      `toml:"smoothing_ms"`
	Regions          []string `toml:"regions"`
	// Source is shown when the canvas mode is "source".
	Source *sources.Descriptor `toml:"source"`
}

type MixerSection struct {
	Mix                  *float64 `toml:"mix"`
	Blend                string   `toml:"blend"`
	Transition           string   `toml:"transition"`
	Softness             *float64 `toml:"softness"`
	AngleDeg             *float64 `toml:"angle_deg"`
	LumaInvert           *bool    `toml:"luma_invert"`
	Curve                string   `toml:"curve"`
	PauseInactiveWebcams *bool    `toml:"pause_inactive_webcams"`
}

// DeckSection holds the banks, one descriptor per entry.
type DeckSection struct {
	A []sources.Descriptor `toml:"a"`
	B []sources.Descriptor `toml:"b"`
}

// LoadFile reads a TOML config. A missing file at the default location is
// not an error; an explicitly named one is.
func LoadFile(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	full, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand %s: %w", path, err)
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	f, err := ParseFile(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(full), err)
	}
	return f, nil
}

func ParseFile(b []byte) (*File, error) {
	var f File
	if err := toml.Unmarshal(b, &f); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("%w: line %d column %d: %v", ErrInvalid, row, col, derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &f, nil
}

// Save writes f as TOML, creating parent directories.
func (f *File) Save(path string) error {
	full, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	b, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, b, 0o644)
}
