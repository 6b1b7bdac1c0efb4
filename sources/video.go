package sources

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/h2non/filetype"
	"github.com/mitchellh/go-homedir"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/richinsley/lightv/renderer"
)

// Video plays a file through ffmpeg. Frames are decoded at most at output
// size, paced in the reader goroutine by fps*playbackRate, and redrawn into
// the output surface by Tick.
type Video struct {
	base
	dataURL  string
	path     string
	tempPath string

	loop  bool
	muted bool
	rate  atomicFloat

	info    mediaInfo
	probed  bool
	probes  Mailbox[probeResult]
	frames  Mailbox[frame]
	pipe    *framePipe
	gen     int
	offset  float64 // media seconds at which the current pipe started
	surface *Surface
	latest  *frame
	dirty   bool
	realloc bool
	closed  atomic.Bool
}

type probeResult struct {
	info mediaInfo
	path string
	err  error
}

func NewVideo(id string) *Video {
	v := &Video{base: newBase(id, KindVideo, renderer.Cover), loop: true}
	v.rate.Store(1)
	return v
}

func (v *Video) Prefitted() bool { return true }

func (v *Video) Load(env *Env) error {
	if v.loaded {
		return nil
	}
	if v.dataURL == "" && v.path == "" {
		return fmt.Errorf("video %s: %w: no dataUrl or path", v.id, ErrBadOption)
	}
	v.bind(env)
	v.surface = NewSurface(v.outW, v.outH)
	v.tex = renderer.NewTexture(v.outW, v.outH)
	v.loaded = true
	v.realloc = true
	v.probe()
	return nil
}

// probe resolves the media file (writing data URLs to a temp file) and runs
// ffprobe off the GL thread.
func (v *Video) probe() {
	v.probed = false
	dataURL, path := v.dataURL, v.path
	go func() {
		res := probeResult{}
		if dataURL != "" {
			res.path, res.err = writeTempMedia(dataURL)
		} else {
			res.path, res.err = homedir.Expand(path)
		}
		if res.err == nil {
			res.info, res.err = probeVideo(res.path)
		}
		if v.closed.Load() {
			if dataURL != "" && res.path != "" {
				os.Remove(res.path)
			}
			return
		}
		v.probes.Put(res)
	}()
}

func writeTempMedia(dataURL string) (string, error) {
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}
	ext := ".bin"
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		ext = "." + t.Extension
	}
	f, err := os.CreateTemp("", "lightv-video-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (v *Video) Start() {
	if v.running {
		return
	}
	v.running = true
	if v.probed {
		v.startPipe()
	}
}

func (v *Video) Stop() {
	v.running = false
	v.stopPipe()
}

func (v *Video) mediaPath() string {
	if v.tempPath != "" {
		return v.tempPath
	}
	p, _ := homedir.Expand(v.path)
	return p
}

func (v *Video) startPipe() {
	v.stopPipe()
	w, h := decodeSize(v.info.Width, v.info.Height, v.outW, v.outH)
	in := ffmpeg.KwArgs{}
	if v.loop {
		in["stream_loop"] = "-1"
	}
	if v.offset > 0 {
		in["ss"] = strconv.FormatFloat(v.offset, 'f', 3, 64)
	}
	stream := rawOutput(ffmpeg.Input(v.mediaPath(), in), w, h)

	v.gen++
	gen := v.gen
	fps := v.info.FPS
	interval := func() time.Duration {
		return time.Duration(float64(time.Second) / (fps * v.rate.Load()))
	}
	deliver := func(pix []byte) {
		v.frames.Put(frame{pix: pix, width: w, height: h, gen: gen})
	}
	pipe, err := startFramePipe("Video "+v.id, stream, v.env, w, h, interval, deliver)
	if err != nil {
		log.Printf("Video %s: %v", v.id, err)
		return
	}
	v.pipe = pipe
}

// stopPipe kills the decoder and remembers how far playback got so a later
// Start resumes there.
func (v *Video) stopPipe() {
	if v.pipe == nil {
		return
	}
	v.pipe.Stop()
	if v.info.FPS > 0 {
		v.offset += float64(v.pipe.Frames()) / v.info.FPS
		if v.info.Duration > 0 {
			if v.loop {
				v.offset = math.Mod(v.offset, v.info.Duration)
			} else if v.offset >= v.info.Duration {
				v.offset = 0
			}
		}
	}
	v.pipe = nil
	v.frames.Clear()
}

func (v *Video) Tick(dtMs float64) {
	if !v.loaded {
		return
	}
	if res, ok := v.probes.Take(); ok {
		if res.err != nil {
			log.Printf("Video %s: %v", v.id, res.err)
		} else {
			v.removeTemp()
			if v.dataURL != "" {
				v.tempPath = res.path
			}
			v.info = res.info
			v.probed = true
			v.offset = 0
			log.Printf("Video %s: %dx%d @ %.2f fps", v.id, v.info.Width, v.info.Height, v.info.FPS)
			if v.running {
				v.startPipe()
			}
		}
	}
	if !v.running {
		return
	}
	if f, ok := v.frames.Take(); ok && f.gen == v.gen {
		v.latest = &f
		v.dirty = true
	}
	v.redraw()
}

func (v *Video) redraw() {
	if !v.dirty || v.latest == nil {
		return
	}
	v.surface.Draw(rgbaView(v.latest.pix, v.latest.width, v.latest.height), v.fill)
	w, h := v.surface.Size()
	renderer.UploadRGBA(v.tex, v.surface.Pix(), w, h, v.realloc)
	v.dirty, v.realloc = false, false
}

func (v *Video) ContentSize() (int, int) {
	if !v.probed {
		return 0, 0
	}
	return v.info.Width, v.info.Height
}

// SetOutputSize restarts decoding at the new size when playing.
func (v *Video) SetOutputSize(width, height int) {
	if !v.resize(width, height) || v.surface == nil {
		return
	}
	if v.surface.Resize(v.outW, v.outH) {
		v.dirty, v.realloc = true, true
	}
	if v.running && v.probed {
		v.startPipe()
	}
}

func (v *Video) removeTemp() {
	if v.tempPath != "" {
		os.Remove(v.tempPath)
		v.tempPath = ""
	}
}

func (v *Video) Dispose() {
	v.closed.Store(true)
	v.stopPipe()
	v.probes.Clear()
	v.latest = nil
	v.removeTemp()
	v.release()
}

// PlaybackRate is the current speed multiplier.
func (v *Video) PlaybackRate() float64 { return v.rate.Load() }

func (v *Video) OptionsSchema() []Option {
	return []Option{
		fillModeOption(v.fill),
		{Key: "loop", Label: "Loop", Type: "checkbox", Value: v.loop},
		{Key: "muted", Label: "Muted", Type: "checkbox", Value: v.muted},
		{Key: "playbackRate", Label: "Speed", Type: "number", Value: v.rate.Load(), Min: 0.25, Max: 3, Step: 0.25},
		{Key: "path", Label: "File", Type: "text", Value: v.path},
	}
}

func (v *Video) SetOptions(opts map[string]any) error {
	prev := v.fill
	if err := v.applyFillMode(opts); err != nil {
		return err
	}
	if v.fill != prev {
		v.dirty = true
	}
	restart := false
	if b, ok, err := optBool(opts, "loop"); err != nil {
		return err
	} else if ok && b != v.loop {
		v.loop = b
		restart = true
	}
	if b, ok, err := optBool(opts, "muted"); err != nil {
		return err
	} else if ok {
		v.muted = b
	}
	if r, ok, err := optFloat(opts, "playbackRate"); err != nil {
		return err
	} else if ok {
		v.rate.Store(ClampPlaybackRate(r))
	}
	reload := false
	if s, ok, err := optString(opts, "dataUrl"); err != nil {
		return err
	} else if ok && s != v.dataURL {
		v.dataURL, v.path = s, ""
		reload = true
	}
	if s, ok, err := optString(opts, "path"); err != nil {
		return err
	} else if ok && s != v.path {
		v.path, v.dataURL = s, ""
		reload = true
	}
	switch {
	case reload && v.loaded:
		v.stopPipe()
		v.offset = 0
		v.probe()
	case restart && v.running && v.probed:
		v.startPipe()
	}
	return nil
}

func (v *Video) Descriptor() Descriptor {
	d := v.descriptor()
	d.Options["loop"] = v.loop
	d.Options["muted"] = v.muted
	d.Options["playbackRate"] = v.rate.Load()
	d.DataURL = v.dataURL
	if d.DataURL == "" && v.path != "" {
		if data, err := readMedia("", v.path); err == nil {
			d.DataURL = EncodeDataURL(data)
		} else {
			d.Path = v.path
		}
	}
	return d
}
