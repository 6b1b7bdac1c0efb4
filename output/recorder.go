package output

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Codecs a recording can ask for.
const (
	CodecH264 = "h264"
	CodecHEVC = "hevc"
)

// queueDepth frames may wait for ffmpeg before new ones are dropped.
const queueDepth = 3

type RecorderOptions struct {
	Path       string
	FFmpegPath string
	ExtraArgs  []string
	Codec      string
	FPS        int
	Width      int
	Height     int
	// Stream writes MPEG-TS instead of picking the container from Path.
	Stream bool
	// Software skips the platform hardware encoders.
	Software bool
}

// Recorder pipes rawvideo frames into an ffmpeg encode. Frames are handed
// to a writer goroutine; when ffmpeg falls behind, frames are dropped
// rather than stalling the render loop.
type Recorder struct {
	opts    RecorderOptions
	frames  chan []byte
	done    chan error
	pw      *io.PipeWriter
	mu      sync.Mutex
	closed  bool
	written int64
	dropped int64
}

// EncoderArgs returns the ffmpeg input and output arguments for a
// recording on goos.
func EncoderArgs(o RecorderOptions, goos string) (in, out ffmpeg.KwArgs) {
	in = ffmpeg.KwArgs{
		"format":    "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", o.Width, o.Height),
		"framerate": o.FPS,
	}
	out = ffmpeg.KwArgs{
		"pix_fmt": "yuv420p",
		"b:v":     "25M",
	}

	hevc := strings.EqualFold(o.Codec, CodecHEVC)
	switch {
	case o.Software:
		out["c:v"] = pick(hevc, "libx265", "libx264")
	case goos == "darwin":
		out["c:v"] = pick(hevc, "hevc_videotoolbox", "h264_videotoolbox")
	case goos == "linux" || goos == "windows":
		out["c:v"] = pick(hevc, "hevc_nvenc", "h264_nvenc")
		out["preset"] = "p2"
	default:
		out["c:v"] = pick(hevc, "libx265", "libx264")
	}
	if out["c:v"] == "libx264" {
		out["preset"] = "veryfast"
		out["tune"] = "zerolatency"
	}
	if hevc && strings.EqualFold(filepath.Ext(o.Path), ".mp4") {
		out["tag:v"] = "hvc1"
	}
	if o.Stream {
		out["f"] = "mpegts"
	}
	return in, out
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

// NewRecorder starts ffmpeg. The frame size is fixed for the life of the
// recording.
func NewRecorder(o RecorderOptions) (*Recorder, error) {
	if o.Path == "" {
		return nil, fmt.Errorf("recorder: no output path")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return nil, fmt.Errorf("recorder: invalid frame size %dx%d", o.Width, o.Height)
	}
	o.FPS = max(o.FPS, 1)

	inArgs, outArgs := EncoderArgs(o, runtime.GOOS)
	pr, pw := io.Pipe()
	cmd := ffmpeg.Input("pipe:", inArgs).
		Output(o.Path, outArgs).
		GlobalArgs(append([]string{"-hide_banner", "-loglevel", "error"}, o.ExtraArgs...)...).
		OverWriteOutput().WithInput(pr).ErrorToStdOut()
	if o.FFmpegPath != "" {
		cmd = cmd.SetFfmpegPath(o.FFmpegPath)
	}

	r := &Recorder{
		opts:   o,
		frames: make(chan []byte, queueDepth),
		done:   make(chan error, 1),
		pw:     pw,
	}
	errc := make(chan error, 1)
	go func() {
		err := cmd.Run()
		// unblock the writer if ffmpeg died early
		pr.CloseWithError(io.ErrClosedPipe)
		errc <- err
	}()
	go r.writeLoop(errc)
	log.Printf("Recorder: writing %dx%d@%d to %s (%s)", o.Width, o.Height, o.FPS, o.Path, outArgs["c:v"])
	return r, nil
}

func (r *Recorder) writeLoop(errc <-chan error) {
	var werr error
	for pix := range r.frames {
		if werr != nil {
			continue
		}
		if _, err := r.pw.Write(pix); err != nil {
			werr = fmt.Errorf("recorder: write to ffmpeg: %w", err)
			log.Println(werr)
		}
	}
	r.pw.Close()
	if err := <-errc; err != nil {
		r.done <- fmt.Errorf("recorder: ffmpeg: %w", err)
		return
	}
	r.done <- werr
}

// WriteFrame queues one frame. Frames of a different size are rejected.
func (r *Recorder) WriteFrame(pix []byte, width, height int) error {
	if width != r.opts.Width || height != r.opts.Height {
		return fmt.Errorf("recorder: frame %dx%d does not match %dx%d", width, height, r.opts.Width, r.opts.Height)
	}
	if len(pix) < width*height*4 {
		return fmt.Errorf("recorder: short frame (%d bytes)", len(pix))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.frames <- pix[:width*height*4]:
		r.written++
	default:
		r.dropped++
		if r.dropped == 1 || r.dropped%100 == 0 {
			log.Printf("Recorder: encoder is behind, %d frames dropped", r.dropped)
		}
	}
	return nil
}

// Stats reports queued and dropped frame counts.
func (r *Recorder) Stats() (written, dropped int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written, r.dropped
}

// Close flushes the queue and waits for ffmpeg to finish the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.frames)
	r.mu.Unlock()

	err := <-r.done
	log.Printf("Recorder: %s closed (%d frames, %d dropped)", r.opts.Path, r.written, r.dropped)
	return err
}
