// Package output sends the composited frame somewhere other than the
// screen: an ffmpeg encode or a frame relay.
package output

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/richinsley/lightv/framerelay"
)

// ErrClosed is returned by WriteFrame after Close.
var ErrClosed = errors.New("output closed")

// Sink receives top-first RGBA8 frames. WriteFrame must not block the
// render loop for long; sinks that do slow work queue internally.
type Sink interface {
	WriteFrame(pix []byte, width, height int) error
	Close() error
}

// Publisher is what framerelay publishers provide.
type Publisher interface {
	Publish(pix []byte, width, height int) error
	Close() error
}

// RelaySink republishes every frame to a frame relay so another process
// (or another lightv) can pick it up as an external source. Frames go out
// bottom-first, the relay's row order.
type RelaySink struct {
	pub    Publisher
	mu     sync.Mutex
	closed bool
	errs   int
	rows   []byte
}

func NewRelaySink(p Publisher) *RelaySink { return &RelaySink{pub: p} }

func (s *RelaySink) WriteFrame(pix []byte, width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if width <= 0 || height <= 0 || len(pix) < width*height*4 {
		return fmt.Errorf("relay publish: short frame (%d bytes for %dx%d)", len(pix), width, height)
	}
	s.rows = framerelay.FlipRows(s.rows, pix, width, height)
	if err := s.pub.Publish(s.rows, width, height); err != nil {
		s.errs++
		return fmt.Errorf("relay publish: %w", err)
	}
	return nil
}

func (s *RelaySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.pub.Close()
}

// Fanout writes each frame to every sink. A failing sink is logged and
// dropped; the rest keep receiving frames.
type Fanout struct {
	sinks []Sink
	names []string
}

func (f *Fanout) Add(name string, s Sink) {
	f.sinks = append(f.sinks, s)
	f.names = append(f.names, name)
}

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) WriteFrame(pix []byte, width, height int) error {
	for i := 0; i < len(f.sinks); {
		if err := f.sinks[i].WriteFrame(pix, width, height); err != nil {
			log.Printf("Output %s: %v; detaching", f.names[i], err)
			f.sinks[i].Close()
			f.sinks = append(f.sinks[:i], f.sinks[i+1:]...)
			f.names = append(f.names[:i], f.names[i+1:]...)
			continue
		}
		i++
	}
	return nil
}

// Close closes every sink and returns the first error.
func (f *Fanout) Close() error {
	var first error
	for i, s := range f.sinks {
		if err := s.Close(); err != nil {
			log.Printf("Output %s: close failed: %v", f.names[i], err)
			if first == nil {
				first = err
			}
		}
	}
	f.sinks, f.names = nil, nil
	return first
}
