package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	frames int
	fail   bool
	closed bool
	last   []byte
}

func (p *fakePublisher) Publish(pix []byte, width, height int) error {
	if p.fail {
		return errors.New("broken pipe")
	}
	p.frames++
	p.last = append(p.last[:0], pix...)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestEncoderArgs(t *testing.T) {
	o := RecorderOptions{Path: "out.mp4", Codec: CodecH264, FPS: 30, Width: 640, Height: 360}

	in, out := EncoderArgs(o, "linux")
	assert.Equal(t, "640x360", in["s"])
	assert.Equal(t, "rgba", in["pix_fmt"])
	assert.Equal(t, 30, in["framerate"])
	assert.Equal(t, "h264_nvenc", out["c:v"])
	assert.Equal(t, "p2", out["preset"])

	_, out = EncoderArgs(o, "darwin")
	assert.Equal(t, "h264_videotoolbox", out["c:v"])

	o.Software = true
	_, out = EncoderArgs(o, "darwin")
	assert.Equal(t, "libx264", out["c:v"])
	assert.Equal(t, "zerolatency", out["tune"])

	o.Codec = CodecHEVC
	_, out = EncoderArgs(o, "linux")
	assert.Equal(t, "libx265", out["c:v"])
	assert.Equal(t, "hvc1", out["tag:v"])
	assert.NotContains(t, out, "f")

	o.Software, o.Stream, o.Path = false, true, "udp://127.0.0.1:5000"
	_, out = EncoderArgs(o, "freebsd")
	assert.Equal(t, "libx265", out["c:v"])
	assert.Equal(t, "mpegts", out["f"])
	assert.NotContains(t, out, "tag:v")
}

func TestRecorderRejectsBadOptions(t *testing.T) {
	_, err := NewRecorder(RecorderOptions{Width: 4, Height: 4})
	assert.Error(t, err)
	_, err = NewRecorder(RecorderOptions{Path: "x.mp4", Width: 0, Height: 4})
	assert.Error(t, err)
}

func TestRecorderDropsWhenBehind(t *testing.T) {
	r := &Recorder{
		opts:   RecorderOptions{Width: 2, Height: 1},
		frames: make(chan []byte, 1),
	}
	pix := make([]byte, 8)
	require.NoError(t, r.WriteFrame(pix, 2, 1))
	require.NoError(t, r.WriteFrame(pix, 2, 1))
	written, dropped := r.Stats()
	assert.Equal(t, int64(1), written)
	assert.Equal(t, int64(1), dropped)

	assert.Error(t, r.WriteFrame(pix, 1, 2))
	assert.Error(t, r.WriteFrame(pix[:4], 2, 1))
}

func TestRelaySink(t *testing.T) {
	p := &fakePublisher{}
	s := NewRelaySink(p)
	require.NoError(t, s.WriteFrame(make([]byte, 4), 1, 1))
	assert.Equal(t, 1, p.frames)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, p.closed)
	assert.ErrorIs(t, s.WriteFrame(make([]byte, 4), 1, 1), ErrClosed)
}

func TestRelaySinkPublishesBottomFirst(t *testing.T) {
	p := &fakePublisher{}
	s := NewRelaySink(p)
	top := []byte{1, 1, 1, 1, 2, 2, 2, 2}
	bottom := []byte{3, 3, 3, 3, 4, 4, 4, 4}
	frame := append(append([]byte{}, top...), bottom...)

	require.NoError(t, s.WriteFrame(frame, 2, 2))
	assert.Equal(t, append(append([]byte{}, bottom...), top...), p.last)
	// The caller's frame is left alone.
	assert.Equal(t, top, frame[:8])

	assert.Error(t, s.WriteFrame(frame[:12], 2, 2))
	assert.Equal(t, 1, p.frames)
}

func TestFanoutDetachesFailingSinks(t *testing.T) {
	good := &fakePublisher{}
	bad := &fakePublisher{fail: true}
	var f Fanout
	f.Add("bad", NewRelaySink(bad))
	f.Add("good", NewRelaySink(good))

	require.NoError(t, f.WriteFrame(make([]byte, 4), 1, 1))
	assert.Equal(t, 1, f.Len())
	assert.True(t, bad.closed)

	require.NoError(t, f.WriteFrame(make([]byte, 4), 1, 1))
	assert.Equal(t, 2, good.frames)

	require.NoError(t, f.Close())
	assert.True(t, good.closed)
	assert.Zero(t, f.Len())
}
