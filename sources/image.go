package sources

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/richinsley/lightv/renderer"
)

// Image shows a still picture loaded from a data URL or a file. Decoding
// runs in a goroutine; Tick redraws the picture into the output-sized
// surface when it arrives or when the output size or fill mode changes.
type Image struct {
	base
	dataURL string
	path    string

	pending  Mailbox[decoded]
	picture  image.Image
	surface  *Surface
	dirty    bool
	realloc  bool
	loadSeq  int
	disposed bool
}

func NewImage(id string) *Image {
	return &Image{base: newBase(id, KindImage, renderer.Cover)}
}

// Prefitted marks the texture as already fitted to the output.
func (s *Image) Prefitted() bool { return true }

func (s *Image) Load(env *Env) error {
	if s.loaded {
		return nil
	}
	if s.dataURL == "" && s.path == "" {
		return fmt.Errorf("image %s: %w: no dataUrl or path", s.id, ErrBadOption)
	}
	s.bind(env)
	s.surface = NewSurface(s.outW, s.outH)
	s.tex = renderer.NewTexture(s.outW, s.outH)
	s.loaded = true
	s.realloc = true
	s.decode()
	return nil
}

// decode reads and decodes the media off the GL thread. A result for an
// older request or a disposed source is dropped.
func (s *Image) decode() {
	s.loadSeq++
	seq := s.loadSeq
	dataURL, path := s.dataURL, s.path
	go func() {
		data, err := readMedia(dataURL, path)
		if err != nil {
			log.Printf("Image %s: failed to read: %v", s.id, err)
			return
		}
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			log.Printf("Image %s: failed to decode: %v", s.id, err)
			return
		}
		log.Printf("Image %s: decoded %s %dx%d", s.id, format, img.Bounds().Dx(), img.Bounds().Dy())
		s.pending.Put(decoded{img: img, seq: seq})
	}()
}

type decoded struct {
	img image.Image
	seq int
}

func (s *Image) Tick(dtMs float64) {
	if !s.loaded || s.disposed {
		return
	}
	if d, ok := s.pending.Take(); ok && d.seq == s.loadSeq {
		s.picture = d.img
		s.dirty = true
	}
	if !s.dirty || s.picture == nil {
		return
	}
	s.surface.Draw(s.picture, s.fill)
	w, h := s.surface.Size()
	renderer.UploadRGBA(s.tex, s.surface.Pix(), w, h, s.realloc)
	s.dirty, s.realloc = false, false
}

// ContentSize is the native picture size, 0x0 until decoded.
func (s *Image) ContentSize() (int, int) {
	if s.picture == nil {
		return 0, 0
	}
	b := s.picture.Bounds()
	return b.Dx(), b.Dy()
}

func (s *Image) SetOutputSize(width, height int) {
	if !s.resize(width, height) || s.surface == nil {
		return
	}
	if s.surface.Resize(s.outW, s.outH) {
		s.dirty, s.realloc = true, true
	}
}

func (s *Image) Dispose() {
	s.disposed = true
	s.pending.Clear()
	s.picture = nil
	s.release()
}

func (s *Image) OptionsSchema() []Option {
	return []Option{
		fillModeOption(s.fill),
		{Key: "path", Label: "File", Type: "text", Value: s.path},
	}
}

func (s *Image) SetOptions(opts map[string]any) error {
	prev := s.fill
	if err := s.applyFillMode(opts); err != nil {
		return err
	}
	if s.fill != prev {
		s.dirty = true
	}
	reload := false
	if v, ok, err := optString(opts, "dataUrl"); err != nil {
		return err
	} else if ok && v != s.dataURL {
		s.dataURL, s.path = v, ""
		reload = true
	}
	if v, ok, err := optString(opts, "path"); err != nil {
		return err
	} else if ok && v != s.path {
		s.path, s.dataURL = v, ""
		reload = true
	}
	if reload && s.loaded {
		s.decode()
	}
	return nil
}

// Descriptor embeds file-backed pictures as data URLs so the descriptor is
// self-contained.
func (s *Image) Descriptor() Descriptor {
	d := s.descriptor()
	d.DataURL = s.dataURL
	if d.DataURL == "" && s.path != "" {
		if data, err := readMedia("", s.path); err == nil {
			d.DataURL = EncodeDataURL(data)
		} else {
			d.Path = s.path
		}
	}
	return d
}
