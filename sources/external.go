package sources

import (
	"errors"
	"log"
	"sync/atomic"

	"github.com/richinsley/lightv/framerelay"
	"github.com/richinsley/lightv/renderer"
)

// connectRetryMs is how long a disconnected external source waits between
// attempts to create a relay client.
const connectRetryMs = 1000

// External shows frames published by another process through a
// framerelay.Provider. Pulls are asynchronous with at most one in flight.
type External struct {
	base
	serverIndex int

	relay    framerelay.Provider
	clientID string
	gen      int
	sinceTry float64
	inflight InFlight
	pulled   Mailbox[pulled]
	closed   atomic.Bool

	texW, texH int
	dropped    int
}

type pulled struct {
	frame *framerelay.Frame
	err   error
	gen   int
}

func NewExternal(id string) *External {
	return &External{base: newBase(id, KindExternal, renderer.Cover)}
}

// FlipY is true: relay frames arrive bottom-first.
func (e *External) FlipY() bool { return true }

func (e *External) Load(env *Env) error {
	if e.loaded {
		return nil
	}
	e.bind(env)
	e.relay = env.relay()
	e.tex = renderer.NewTexture(1, 1)
	e.texW, e.texH = 0, 0
	e.loaded = true
	e.sinceTry = connectRetryMs
	return nil
}

// connect creates the relay client, logging failures; Tick retries.
func (e *External) connect() {
	e.sinceTry = 0
	id, err := e.relay.CreateClient(e.serverIndex)
	if err != nil {
		log.Printf("External %s: no client for server %d: %v", e.id, e.serverIndex, err)
		return
	}
	e.clientID = id
	e.gen++
	log.Printf("External %s: relay client %s on server %d", e.id, id, e.serverIndex)
}

func (e *External) disconnect() {
	if e.clientID == "" {
		return
	}
	if err := e.relay.DestroyClient(e.clientID); err != nil && !errors.Is(err, framerelay.ErrUnknownClient) {
		log.Printf("External %s: failed to destroy client %s: %v", e.id, e.clientID, err)
	}
	e.clientID = ""
	e.gen++
	e.pulled.Clear()
}

func (e *External) Tick(dtMs float64) {
	if !e.loaded || !e.running {
		return
	}
	if p, ok := e.pulled.Take(); ok && p.gen == e.gen {
		e.apply(p)
	}
	if e.clientID == "" {
		if dtMs > 0 {
			e.sinceTry += dtMs
		}
		if e.sinceTry >= connectRetryMs {
			e.connect()
		}
		if e.clientID == "" {
			return
		}
	}
	e.pull()
}

// pull starts one async PullFrame unless one is already running.
func (e *External) pull() {
	if !e.inflight.TryBegin() {
		return
	}
	relay, id, gen := e.relay, e.clientID, e.gen
	go func() {
		defer e.inflight.End()
		f, err := relay.PullFrame(id)
		if e.closed.Load() || (f == nil && err == nil) {
			return
		}
		e.pulled.Put(pulled{frame: f, err: err, gen: gen})
	}()
}

func (e *External) apply(p pulled) {
	if p.err != nil {
		log.Printf("External %s: pull failed: %v", e.id, p.err)
		if errors.Is(p.err, framerelay.ErrUnknownClient) {
			e.clientID = ""
			e.gen++
		}
		return
	}
	f := p.frame
	if f.Width <= 0 || f.Height <= 0 || len(f.Pixels) < f.Width*f.Height*4 {
		e.dropped++
		log.Printf("External %s: dropped short frame (%d bytes for %dx%d)", e.id, len(f.Pixels), f.Width, f.Height)
		return
	}
	realloc := f.Width != e.texW || f.Height != e.texH
	renderer.UploadRGBA(e.tex, f.Pixels, f.Width, f.Height, realloc)
	e.texW, e.texH = f.Width, f.Height
}

// Stop halts pulling; the relay client is kept until Dispose.
func (e *External) Stop() { e.running = false }

func (e *External) ContentSize() (int, int) { return e.texW, e.texH }

func (e *External) SetOutputSize(width, height int) { e.resize(width, height) }

// Dropped counts frames rejected for a short buffer.
func (e *External) Dropped() int { return e.dropped }

func (e *External) Dispose() {
	e.closed.Store(true)
	if e.relay != nil {
		e.disconnect()
	}
	e.pulled.Clear()
	e.release()
}

func (e *External) OptionsSchema() []Option {
	return []Option{
		fillModeOption(e.fill),
		{Key: "serverIndex", Label: "Server", Type: "number", Value: e.serverIndex, Min: 0, Step: 1},
	}
}

// SetOptions recreates the relay client when the server changes.
func (e *External) SetOptions(opts map[string]any) error {
	if err := e.applyFillMode(opts); err != nil {
		return err
	}
	n, ok, err := optInt(opts, "serverIndex")
	if err != nil {
		return err
	}
	if ok && n != e.serverIndex {
		e.serverIndex = max(n, 0)
		if e.loaded {
			e.disconnect()
			e.connect()
		}
	}
	return nil
}

func (e *External) Descriptor() Descriptor {
	d := e.descriptor()
	idx := e.serverIndex
	d.ServerIndex = &idx
	return d
}
