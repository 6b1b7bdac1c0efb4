//go:build linux

package framerelay

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

// DefaultSHMDir is where POSIX shm_open segments live on linux.
const DefaultSHMDir = "/dev/shm"

// SHM discovers producers as files named <prefix><name> in a shared memory
// directory. Each segment is a Header followed by width*height RGBA8 pixels.
type SHM struct {
	dir    string
	prefix string

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	servers  []Server
	mappings map[string]*mapping
	done     chan struct{}

	clients   clientTable
	listeners listeners
}

type mapping struct {
	file *os.File
	data []byte
}

func (m *mapping) close() {
	if m.data != nil {
		unix.Munmap(m.data)
		m.data = nil
	}
	if m.file != nil {
		m.file.Close()
		m.file = nil
	}
}

func NewSHM(dir, prefix string) *SHM {
	if dir == "" {
		dir = DefaultSHMDir
	}
	return &SHM{
		dir:      dir,
		prefix:   prefix,
		mappings: make(map[string]*mapping),
	}
}

func (s *SHM) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shm relay: failed to create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("shm relay: failed to watch %s: %w", s.dir, err)
	}
	s.watcher = w
	s.done = make(chan struct{})
	go s.watchLoop(w, s.done)

	s.servers = s.scanLocked()
	log.Printf("SHM relay: watching %s for %q* (%d servers)", s.dir, s.prefix, len(s.servers))
	servers := append([]Server(nil), s.servers...)
	go s.listeners.notify(servers)
	return nil
}

func (s *SHM) watchLoop(w *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(event.Name), s.prefix) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Write) {
				s.refresh()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("SHM relay: watcher error: %v", err)
		}
	}
}

// refresh rescans the directory and notifies listeners when the list changed.
func (s *SHM) refresh() {
	s.mu.Lock()
	next := s.scanLocked()
	changed := !sameServers(s.servers, next)
	s.servers = next
	for name, m := range s.mappings {
		if !hasServer(next, name) {
			m.close()
			delete(s.mappings, name)
		}
	}
	s.mu.Unlock()
	if changed {
		s.listeners.notify(next)
	}
}

func (s *SHM) scanLocked() []Server {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("SHM relay: failed to scan %s: %v", s.dir, err)
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasPrefix(e.Name(), s.prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	servers := make([]Server, 0, len(names))
	for _, name := range names {
		srv := Server{Index: len(servers), Name: strings.TrimPrefix(name, s.prefix)}
		if h, err := readHeaderFile(filepath.Join(s.dir, name)); err == nil {
			srv.Width, srv.Height = int(h.Width), int(h.Height)
		}
		servers = append(servers, srv)
	}
	return servers
}

func readHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()
	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf)
}

func (s *SHM) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	for name, m := range s.mappings {
		m.close()
		delete(s.mappings, name)
	}
	s.clients.clear()
	return err
}

func (s *SHM) Servers() []Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Server(nil), s.servers...)
}

func (s *SHM) OnServersChanged(f func([]Server)) {
	s.listeners.add(f)
}

func (s *SHM) CreateClient(serverIndex int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if serverIndex < 0 || serverIndex >= len(s.servers) {
		return "", fmt.Errorf("%w: index %d of %d", ErrNoServer, serverIndex, len(s.servers))
	}
	return s.clients.add(s.servers[serverIndex].Name), nil
}

func (s *SHM) DestroyClient(id string) error {
	return s.clients.remove(id)
}

// mapLocked maps the segment for server, remapping when the file grew.
func (s *SHM) mapLocked(server string) (*mapping, error) {
	path := filepath.Join(s.dir, s.prefix+server)
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	size := int(st.Size())
	if m, ok := s.mappings[server]; ok {
		if len(m.data) == size {
			return m, nil
		}
		m.close()
		delete(s.mappings, server)
	}
	if size < HeaderSize {
		return nil, fmt.Errorf("%w: segment %s is %d bytes", ErrBadFrame, server, size)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm relay: mmap %s: %w", path, err)
	}
	m := &mapping{file: f, data: data}
	s.mappings[server] = m
	return m, nil
}

func (s *SHM) PullFrame(id string) (*Frame, error) {
	c, err := s.clients.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.mapLocked(c.server)
	if err != nil {
		return nil, err
	}
	h, err := DecodeHeader(m.data)
	if err != nil {
		return nil, err
	}
	if len(m.data) < HeaderSize+h.FrameSize() {
		// producer resized; the next pull remaps
		m.close()
		delete(s.mappings, c.server)
		return nil, nil
	}
	if h.Width == 0 || h.Height == 0 || !s.clients.advance(c, h.Seq) {
		return nil, nil
	}
	pix := make([]byte, h.FrameSize())
	copy(pix, m.data[HeaderSize:])
	return &Frame{Pixels: pix, Width: int(h.Width), Height: int(h.Height), Seq: h.Seq}, nil
}

// SHMPublisher is the producer side of the shared memory relay.
type SHMPublisher struct {
	path   string
	file   *os.File
	data   []byte
	width  int
	height int
	seq    uint64
}

// NewSHMPublisher creates (or truncates) the segment <dir>/<prefix><name>.
func NewSHMPublisher(dir, prefix, name string, width, height int) (*SHMPublisher, error) {
	if dir == "" {
		dir = DefaultSHMDir
	}
	p := &SHMPublisher{path: filepath.Join(dir, prefix+name)}
	if err := p.resize(width, height); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SHMPublisher) resize(width, height int) error {
	p.unmap()
	f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE, 0o660)
	if err != nil {
		return fmt.Errorf("shm publisher: open %s: %w", p.path, err)
	}
	size := HeaderSize + width*height*4
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return fmt.Errorf("shm publisher: size %s: %w", p.path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("shm publisher: mmap %s: %w", p.path, err)
	}
	p.file, p.data = f, data
	p.width, p.height = width, height
	EncodeHeader(p.data, Header{Width: uint32(width), Height: uint32(height), Seq: p.seq})
	return nil
}

// Publish writes one frame. The sequence number is bumped after the pixels
// so readers never see a new number over old pixels.
func (p *SHMPublisher) Publish(pix []byte, width, height int) error {
	if len(pix) < width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrBadFrame, len(pix), width, height)
	}
	if width != p.width || height != p.height {
		if err := p.resize(width, height); err != nil {
			return err
		}
	}
	copy(p.data[HeaderSize:], pix[:width*height*4])
	p.seq++
	EncodeHeader(p.data, Header{Width: uint32(width), Height: uint32(height), Seq: p.seq})
	return nil
}

func (p *SHMPublisher) unmap() {
	if p.data != nil {
		unix.Munmap(p.data)
		p.data = nil
	}
	if p.file != nil {
		p.file.Close()
		p.file = nil
	}
}

// Close unmaps and removes the segment.
func (p *SHMPublisher) Close() error {
	p.unmap()
	return os.Remove(p.path)
}

func sameServers(a, b []Server) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

func hasServer(servers []Server, name string) bool {
	for _, s := range servers {
		if s.Name == name {
			return true
		}
	}
	return false
}
