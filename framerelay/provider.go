// Package framerelay carries RGBA frames from producers outside the process
// (other applications publishing shared memory, or websocket clients) to
// the external texture source.
package framerelay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrUnknownClient = errors.New("unknown relay client")
	ErrNoServer      = errors.New("no relay server")
	ErrBadFrame      = errors.New("malformed relay frame")
)

// Server is one producer the provider currently knows about.
type Server struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Frame is a copy of a producer's latest RGBA8 picture. On the wire rows are
// bottom-first, GL's texture origin; producers holding a top-first picture
// convert it with FlipRows.
type Frame struct {
	Pixels []byte
	Width  int
	Height int
	Seq    uint64
}

// Provider is the contract the external texture source depends on.
type Provider interface {
	Start() error
	Stop() error
	Servers() []Server
	// CreateClient binds a client to the server at serverIndex.
	CreateClient(serverIndex int) (string, error)
	DestroyClient(id string) error
	// PullFrame returns the newest frame the client has not seen yet, or nil
	// when nothing changed. It never blocks on the producer.
	PullFrame(id string) (*Frame, error)
	OnServersChanged(func([]Server))
}

// Shared-memory segment header, little endian.
const (
	Magic      = "LVFR"
	Version    = 1
	HeaderSize = 24
)

type Header struct {
	Width  uint32
	Height uint32
	Seq    uint64
}

func (h Header) FrameSize() int {
	return int(h.Width) * int(h.Height) * 4
}

func EncodeHeader(b []byte, h Header) {
	copy(b[0:4], Magic)
	binary.LittleEndian.PutUint32(b[4:8], Version)
	binary.LittleEndian.PutUint32(b[8:12], h.Width)
	binary.LittleEndian.PutUint32(b[12:16], h.Height)
	binary.LittleEndian.PutUint64(b[16:24], h.Seq)
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrBadFrame, len(b))
	}
	if string(b[0:4]) != Magic {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrBadFrame, b[0:4])
	}
	if v := binary.LittleEndian.Uint32(b[4:8]); v != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrBadFrame, v)
	}
	return Header{
		Width:  binary.LittleEndian.Uint32(b[8:12]),
		Height: binary.LittleEndian.Uint32(b[12:16]),
		Seq:    binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// clientTable maps client ids to server names and remembers the last
// sequence number each client pulled.
type clientTable struct {
	mu      sync.Mutex
	next    int
	clients map[string]*client
}

type client struct {
	server  string
	lastSeq uint64
}

func (t *clientTable) add(server string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clients == nil {
		t.clients = make(map[string]*client)
	}
	t.next++
	id := fmt.Sprintf("client_%d", t.next)
	t.clients[id] = &client{server: server}
	return id
}

func (t *clientTable) remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.clients[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	delete(t.clients, id)
	return nil
}

func (t *clientTable) get(id string) (*client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.clients[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, id)
	}
	return c, nil
}

// advance records seq for the client and reports whether it is new.
func (t *clientTable) advance(c *client, seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if seq == c.lastSeq {
		return false
	}
	c.lastSeq = seq
	return true
}

func (t *clientTable) clear() {
	t.mu.Lock()
	t.clients = nil
	t.mu.Unlock()
}

// FlipRows writes the rows of a width x height RGBA8 picture into dst in
// reverse order and returns dst, growing it when it is too small. src and
// dst must not overlap.
func FlipRows(dst, src []byte, width, height int) []byte {
	stride := width * 4
	n := stride * height
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for y := 0; y < height; y++ {
		copy(dst[(height-1-y)*stride:(height-y)*stride], src[y*stride:(y+1)*stride])
	}
	return dst
}

// listeners fans server list changes out to subscribers.
type listeners struct {
	mu  sync.Mutex
	fns []func([]Server)
}

func (l *listeners) add(f func([]Server)) {
	if f == nil {
		return
	}
	l.mu.Lock()
	l.fns = append(l.fns, f)
	l.mu.Unlock()
}

func (l *listeners) notify(servers []Server) {
	l.mu.Lock()
	fns := slices.Clone(l.fns)
	l.mu.Unlock()
	for _, f := range fns {
		f(slices.Clone(servers))
	}
}

// None is the provider used when no relay is configured.
type None struct{}

func (None) Start() error                        { return nil }
func (None) Stop() error                         { return nil }
func (None) Servers() []Server                   { return nil }
func (None) CreateClient(int) (string, error)    { return "", ErrNoServer }
func (None) DestroyClient(id string) error       { return fmt.Errorf("%w: %s", ErrUnknownClient, id) }
func (None) PullFrame(id string) (*Frame, error) { return nil, fmt.Errorf("%w: %s", ErrUnknownClient, id) }
func (None) OnServersChanged(func([]Server)) {}
