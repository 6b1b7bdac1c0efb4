package sources

import (
	"fmt"
	"log"
	"runtime"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/richinsley/lightv/renderer"
)

const DefaultWebcamSize = "640x480"

// Webcam captures a camera through ffmpeg's platform device demuxer. Capture
// runs only while started; a stopped webcam keeps its last frame.
type Webcam struct {
	base
	deviceID string
	size     string

	frames  Mailbox[frame]
	pipe    *framePipe
	gen     int
	surface *Surface
	latest  *frame
	dirty   bool
	realloc bool
}

func NewWebcam(id string) *Webcam {
	return &Webcam{base: newBase(id, KindWebcam, renderer.Cover)}
}

func (c *Webcam) Prefitted() bool { return true }

// ParseSize reads "WxH".
func ParseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("size %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %q must be positive", s)
	}
	return w, h, nil
}

// captureInput builds the ffmpeg input for the platform camera demuxer.
func captureInput(goos, deviceID, size string) (string, ffmpeg.KwArgs) {
	args := ffmpeg.KwArgs{"video_size": size}
	switch goos {
	case "darwin":
		args["f"] = "avfoundation"
		args["framerate"] = "30"
		if deviceID == "" {
			deviceID = "0"
		}
		return deviceID, args
	case "windows":
		args["f"] = "dshow"
		if !strings.HasPrefix(deviceID, "video=") {
			deviceID = "video=" + deviceID
		}
		return deviceID, args
	default:
		args["f"] = "v4l2"
		if deviceID == "" {
			deviceID = "/dev/video0"
		}
		return deviceID, args
	}
}

func (c *Webcam) captureSize() string {
	if c.size != "" {
		return c.size
	}
	if c.env != nil && c.env.WebcamSize != "" {
		return c.env.WebcamSize
	}
	return DefaultWebcamSize
}

func (c *Webcam) Load(env *Env) error {
	if c.loaded {
		return nil
	}
	if _, _, err := ParseSize(c.captureSize()); err != nil {
		return fmt.Errorf("webcam %s: %w", c.id, err)
	}
	c.bind(env)
	c.surface = NewSurface(c.outW, c.outH)
	c.tex = renderer.NewTexture(c.outW, c.outH)
	c.loaded = true
	c.realloc = true
	if c.running {
		c.startCapture()
	}
	return nil
}

func (c *Webcam) Start() {
	if c.running {
		return
	}
	c.running = true
	if c.loaded {
		c.startCapture()
	}
}

func (c *Webcam) Stop() {
	c.running = false
	c.stopCapture()
}

func (c *Webcam) startCapture() {
	c.stopCapture()
	size := c.captureSize()
	w, h, err := ParseSize(size)
	if err != nil {
		log.Printf("Webcam %s: %v", c.id, err)
		return
	}
	device, in := captureInput(runtime.GOOS, c.deviceID, size)
	stream := rawOutput(ffmpeg.Input(device, in), w, h)

	c.gen++
	gen := c.gen
	deliver := func(pix []byte) {
		c.frames.Put(frame{pix: pix, width: w, height: h, gen: gen})
	}
	pipe, err := startFramePipe("Webcam "+c.id, stream, c.env, w, h, nil, deliver)
	if err != nil {
		log.Printf("Webcam %s: %v", c.id, err)
		return
	}
	c.pipe = pipe
}

func (c *Webcam) stopCapture() {
	if c.pipe == nil {
		return
	}
	c.pipe.Stop()
	c.pipe = nil
	c.frames.Clear()
}

func (c *Webcam) Tick(dtMs float64) {
	if !c.loaded || !c.running {
		return
	}
	if f, ok := c.frames.Take(); ok && f.gen == c.gen {
		c.latest = &f
		c.dirty = true
	}
	if !c.dirty || c.latest == nil {
		return
	}
	c.surface.Draw(rgbaView(c.latest.pix, c.latest.width, c.latest.height), c.fill)
	w, h := c.surface.Size()
	renderer.UploadRGBA(c.tex, c.surface.Pix(), w, h, c.realloc)
	c.dirty, c.realloc = false, false
}

// ContentSize is the size of the last captured frame.
func (c *Webcam) ContentSize() (int, int) {
	if c.latest == nil {
		return 0, 0
	}
	return c.latest.width, c.latest.height
}

func (c *Webcam) SetOutputSize(width, height int) {
	if !c.resize(width, height) || c.surface == nil {
		return
	}
	if c.surface.Resize(c.outW, c.outH) {
		c.dirty, c.realloc = true, true
	}
}

func (c *Webcam) Dispose() {
	c.stopCapture()
	c.latest = nil
	c.release()
}

func (c *Webcam) OptionsSchema() []Option {
	return []Option{
		fillModeOption(c.fill),
		{Key: "deviceId", Label: "Device", Type: "text", Value: c.deviceID},
		{Key: "size", Label: "Capture size", Type: "text", Value: c.captureSize()},
	}
}

// SetOptions restarts a running capture when the device or size changes.
func (c *Webcam) SetOptions(opts map[string]any) error {
	prev := c.fill
	if err := c.applyFillMode(opts); err != nil {
		return err
	}
	if c.fill != prev {
		c.dirty = true
	}
	restart := false
	if s, ok, err := optString(opts, "deviceId"); err != nil {
		return err
	} else if ok && s != c.deviceID {
		c.deviceID = s
		restart = true
	}
	if s, ok, err := optString(opts, "size"); err != nil {
		return err
	} else if ok && s != c.size {
		if _, _, err := ParseSize(s); err != nil {
			return fmt.Errorf("%w: %v", ErrBadOption, err)
		}
		c.size = s
		restart = true
	}
	if restart && c.running && c.loaded {
		c.startCapture()
	}
	return nil
}

func (c *Webcam) Descriptor() Descriptor {
	d := c.descriptor()
	d.DeviceID = c.deviceID
	if c.size != "" {
		d.Options["size"] = c.size
	}
	return d
}
