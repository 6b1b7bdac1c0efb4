package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// mediaInfo is what the video source needs from ffprobe.
type mediaInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func probeVideo(path string) (mediaInfo, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return mediaInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

// parseProbe picks the first video stream out of ffprobe's JSON.
func parseProbe(out string) (mediaInfo, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return mediaInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	for _, s := range p.Streams {
		if s.CodecType != "video" || s.Width <= 0 || s.Height <= 0 {
			continue
		}
		info := mediaInfo{Width: s.Width, Height: s.Height}
		info.FPS = parseRate(s.AvgFrameRate)
		if info.FPS <= 0 {
			info.FPS = parseRate(s.RFrameRate)
		}
		if info.FPS <= 0 || info.FPS > 240 {
			info.FPS = 30
		}
		info.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		if info.Duration <= 0 {
			info.Duration, _ = strconv.ParseFloat(p.Format.Duration, 64)
		}
		return info, nil
	}
	return mediaInfo{}, errors.New("no video stream found")
}

// parseRate reads ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// decodeSize is the size ffmpeg scales frames to: the native size shrunk to
// fit inside the output, aspect preserved, even dimensions for the scaler.
func decodeSize(nativeW, nativeH, outW, outH int) (int, int) {
	if nativeW <= 0 || nativeH <= 0 {
		return 0, 0
	}
	w, h := nativeW, nativeH
	if outW > 0 && outH > 0 && (w > outW || h > outH) {
		scale := min(float64(outW)/float64(w), float64(outH)/float64(h))
		w = int(math.Round(float64(w) * scale))
		h = int(math.Round(float64(h) * scale))
	}
	w, h = max(w&^1, 2), max(h&^1, 2)
	return w, h
}

// rawOutput is the rgba rawvideo pipe every capture writes.
func rawOutput(in *ffmpeg.Stream, width, height int, filters ...string) *ffmpeg.Stream {
	args := ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "rgba",
		"s":       fmt.Sprintf("%dx%d", width, height),
	}
	if len(filters) > 0 {
		args["vf"] = strings.Join(filters, ",")
	}
	return in.Output("pipe:", args)
}

// framePipe runs one ffmpeg process and reads fixed-size RGBA frames from
// its stdout.
type framePipe struct {
	name      string
	cmd       *exec.Cmd
	reader    *io.PipeReader
	writer    *io.PipeWriter
	frameSize int
	frames    atomic.Int64
	stopped   atomic.Bool
	done      chan struct{}
}

// startFramePipe starts stream writing into a pipe. deliver is called from
// the reader goroutine with a fresh buffer per frame. interval, when not
// nil, paces delivery to one frame per returned duration.
func startFramePipe(name string, stream *ffmpeg.Stream, env *Env, width, height int, interval func() time.Duration, deliver func([]byte)) (*framePipe, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%s: invalid frame size %dx%d", name, width, height)
	}
	pr, pw := io.Pipe()
	global := []string{"-hide_banner", "-loglevel", "error"}
	if env != nil {
		global = append(global, env.FFmpegArgs...)
	}
	stream = stream.GlobalArgs(global...).WithOutput(pw).ErrorToStdOut()
	if env != nil && env.FFmpegPath != "" {
		stream = stream.SetFfmpegPath(env.FFmpegPath)
	}

	p := &framePipe{
		name:      name,
		cmd:       stream.Compile(),
		reader:    pr,
		writer:    pw,
		frameSize: width * height * 4,
		done:      make(chan struct{}),
	}
	if err := p.cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("%s: failed to start ffmpeg: %w", name, err)
	}
	log.Printf("%s: ffmpeg started (%dx%d)", name, width, height)

	go func() {
		err := p.cmd.Wait()
		if err != nil && !p.stopped.Load() {
			log.Printf("%s: ffmpeg finished with error: %v", name, err)
		}
		pw.Close()
	}()
	go p.readLoop(interval, deliver)
	return p, nil
}

func (p *framePipe) readLoop(interval func() time.Duration, deliver func([]byte)) {
	defer close(p.done)
	next := time.Now()
	for {
		buf := make([]byte, p.frameSize)
		if _, err := io.ReadFull(p.reader, buf); err != nil {
			if !p.stopped.Load() && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				log.Printf("%s: frame read failed: %v", p.name, err)
			}
			return
		}
		if interval != nil {
			d := interval()
			now := time.Now()
			if next.Before(now.Add(-d)) {
				// fell behind; resync instead of bursting
				next = now
			}
			if wait := next.Sub(now); wait > 0 {
				time.Sleep(wait)
			}
			next = next.Add(d)
		}
		if p.stopped.Load() {
			return
		}
		p.frames.Add(1)
		deliver(buf)
	}
}

// Frames is the number of frames delivered so far.
func (p *framePipe) Frames() int64 { return p.frames.Load() }

// Stop kills ffmpeg and unblocks the reader. It does not wait for the
// process to be reaped.
func (p *framePipe) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.reader.Close()
	log.Printf("%s: ffmpeg stopped", p.name)
}

// Done is closed once the reader goroutine has exited.
func (p *framePipe) Done() <-chan struct{} { return p.done }

// frame is one decoded picture handed from a reader goroutine to Tick.
type frame struct {
	pix           []byte
	width, height int
	gen           int
}
