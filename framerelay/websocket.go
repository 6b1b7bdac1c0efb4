package framerelay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket message layout: width and height as little endian uint32
// followed by width*height RGBA8 pixels.
const WSHeaderSize = 8

// EncodeWSFrame builds one binary message.
func EncodeWSFrame(pix []byte, width, height int) []byte {
	msg := make([]byte, WSHeaderSize+width*height*4)
	binary.LittleEndian.PutUint32(msg[0:4], uint32(width))
	binary.LittleEndian.PutUint32(msg[4:8], uint32(height))
	copy(msg[WSHeaderSize:], pix)
	return msg
}

// DecodeWSFrame parses a binary message. The pixel slice aliases msg.
func DecodeWSFrame(msg []byte) (pix []byte, width, height int, err error) {
	if len(msg) < WSHeaderSize {
		return nil, 0, 0, fmt.Errorf("%w: %d byte message", ErrBadFrame, len(msg))
	}
	width = int(binary.LittleEndian.Uint32(msg[0:4]))
	height = int(binary.LittleEndian.Uint32(msg[4:8]))
	if width <= 0 || height <= 0 || len(msg)-WSHeaderSize < width*height*4 {
		return nil, 0, 0, fmt.Errorf("%w: %dx%d with %d pixel bytes", ErrBadFrame, width, height, len(msg)-WSHeaderSize)
	}
	return msg[WSHeaderSize : WSHeaderSize+width*height*4], width, height, nil
}

// WebSocket accepts publishers on /publish?name=<stream> and keeps the
// latest frame of each stream for pulling clients.
type WebSocket struct {
	addr     string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	streams map[string]*stream
	server  *http.Server
	ln      net.Listener

	clients   clientTable
	listeners listeners
}

type stream struct {
	frame *Frame
	conns int
}

func NewWebSocket(addr string) *WebSocket {
	return &WebSocket{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		streams: make(map[string]*stream),
	}
}

// Handler exposes the relay endpoints for mounting in another server.
func (ws *WebSocket) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/publish", ws.handlePublish)
	return mux
}

// Addr is the bound listen address once started.
func (ws *WebSocket) Addr() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.ln != nil {
		return ws.ln.Addr().String()
	}
	return ws.addr
}

func (ws *WebSocket) Start() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.server != nil {
		return nil
	}
	ln, err := net.Listen("tcp", ws.addr)
	if err != nil {
		return fmt.Errorf("websocket relay: listen %s: %w", ws.addr, err)
	}
	ws.ln = ln
	ws.server = &http.Server{Handler: ws.Handler(), ReadHeaderTimeout: 5 * time.Second}
	srv := ws.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Websocket relay: server error: %v", err)
		}
	}()
	log.Printf("Websocket relay: listening on %s", ln.Addr())
	return nil
}

func (ws *WebSocket) Stop() error {
	ws.mu.Lock()
	srv := ws.server
	ws.server = nil
	ws.ln = nil
	ws.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ws.clients.clear()
	return srv.Shutdown(ctx)
}

func (ws *WebSocket) handlePublish(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing stream name", http.StatusBadRequest)
		return
	}
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket relay: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ws.attach(name)
	defer ws.detach(name)

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Websocket relay: stream %q: %v", name, err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		pix, width, height, err := DecodeWSFrame(msg)
		if err != nil {
			log.Printf("Websocket relay: stream %q: %v", name, err)
			continue
		}
		ws.store(name, pix, width, height)
	}
}

func (ws *WebSocket) attach(name string) {
	ws.mu.Lock()
	s, ok := ws.streams[name]
	if !ok {
		s = &stream{}
		ws.streams[name] = s
	}
	s.conns++
	servers := ws.serversLocked()
	ws.mu.Unlock()
	if !ok {
		ws.listeners.notify(servers)
	}
}

func (ws *WebSocket) detach(name string) {
	ws.mu.Lock()
	s, ok := ws.streams[name]
	if !ok {
		ws.mu.Unlock()
		return
	}
	s.conns--
	removed := s.conns <= 0
	if removed {
		delete(ws.streams, name)
	}
	servers := ws.serversLocked()
	ws.mu.Unlock()
	if removed {
		ws.listeners.notify(servers)
	}
}

func (ws *WebSocket) store(name string, pix []byte, width, height int) {
	buf := make([]byte, len(pix))
	copy(buf, pix)
	ws.mu.Lock()
	defer ws.mu.Unlock()
	s, ok := ws.streams[name]
	if !ok {
		return
	}
	var seq uint64 = 1
	if s.frame != nil {
		seq = s.frame.Seq + 1
	}
	s.frame = &Frame{Pixels: buf, Width: width, Height: height, Seq: seq}
}

func (ws *WebSocket) serversLocked() []Server {
	names := make([]string, 0, len(ws.streams))
	for name := range ws.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	servers := make([]Server, len(names))
	for i, name := range names {
		servers[i] = Server{Index: i, Name: name}
		if f := ws.streams[name].frame; f != nil {
			servers[i].Width, servers[i].Height = f.Width, f.Height
		}
	}
	return servers
}

func (ws *WebSocket) Servers() []Server {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.serversLocked()
}

func (ws *WebSocket) OnServersChanged(f func([]Server)) {
	ws.listeners.add(f)
}

func (ws *WebSocket) CreateClient(serverIndex int) (string, error) {
	servers := ws.Servers()
	if serverIndex < 0 || serverIndex >= len(servers) {
		return "", fmt.Errorf("%w: index %d of %d", ErrNoServer, serverIndex, len(servers))
	}
	return ws.clients.add(servers[serverIndex].Name), nil
}

func (ws *WebSocket) DestroyClient(id string) error {
	return ws.clients.remove(id)
}

// PullFrame hands out the stream's latest frame. Frames are immutable once
// stored so the same pixels may be shared between clients.
func (ws *WebSocket) PullFrame(id string) (*Frame, error) {
	c, err := ws.clients.get(id)
	if err != nil {
		return nil, err
	}
	ws.mu.Lock()
	s, ok := ws.streams[c.server]
	var f *Frame
	if ok {
		f = s.frame
	}
	ws.mu.Unlock()
	if f == nil || !ws.clients.advance(c, f.Seq) {
		return nil, nil
	}
	return f, nil
}

// Publisher pushes frames to a websocket relay.
type Publisher struct {
	conn *websocket.Conn
}

// Dial connects to url, for example ws://127.0.0.1:9400/publish?name=cam.
func Dial(url string) (*Publisher, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket publisher: dial %s: %w", url, err)
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Publish(pix []byte, width, height int) error {
	if len(pix) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrBadFrame, len(pix), width, height)
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, EncodeWSFrame(pix, width, height))
}

func (p *Publisher) Close() error {
	p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return p.conn.Close()
}
