package sources

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"
)

// Descriptor is the reconstructible configuration of a source. Type-specific
// fields are only set for the kinds that use them.
type Descriptor struct {
	Type    Kind           `json:"type" toml:"type"`
	Label   string         `json:"label,omitempty" toml:"label,omitempty"`
	Options map[string]any `json:"options,omitempty" toml:"options,omitempty"`

	DataURL     string `json:"dataUrl,omitempty" toml:"data_url,omitempty"`
	Path        string `json:"path,omitempty" toml:"path,omitempty"`
	ServerIndex *int   `json:"serverIndex,omitempty" toml:"server_index,omitempty"`
	DeviceID    string `json:"deviceId,omitempty" toml:"device_id,omitempty"`
	Frag        string `json:"frag,omitempty" toml:"frag,omitempty"`
}

// options merges the type-specific fields into the option map the source
// understands.
func (d Descriptor) options() map[string]any {
	opts := make(map[string]any, len(d.Options)+4)
	maps.Copy(opts, d.Options)
	if d.DataURL != "" {
		opts["dataUrl"] = d.DataURL
	}
	if d.Path != "" {
		opts["path"] = d.Path
	}
	if d.ServerIndex != nil {
		opts["serverIndex"] = *d.ServerIndex
	}
	if d.DeviceID != "" {
		opts["deviceId"] = d.DeviceID
	}
	if d.Frag != "" {
		opts["frag"] = d.Frag
	}
	return opts
}

// MarshalDescriptors encodes a bank of descriptors as JSON.
func MarshalDescriptors(ds []Descriptor) ([]byte, error) {
	return json.MarshalIndent(ds, "", "  ")
}

func UnmarshalDescriptors(b []byte) ([]Descriptor, error) {
	var ds []Descriptor
	if err := json.Unmarshal(b, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode source descriptors: %w", err)
	}
	return ds, nil
}

// Factory builds an unloaded source with the given id.
type Factory func(id string) Source

// Registry maps kinds to factories and hands out ids of the form <kind>-<n>.
type Registry struct {
	mu        sync.Mutex
	factories map[Kind]Factory
	counters  map[Kind]int
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
		counters:  make(map[Kind]int),
	}
}

// NewDefaultRegistry knows every built-in kind.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(KindSolid, func(id string) Source { return NewSolid(id) })
	r.Register(KindImage, func(id string) Source { return NewImage(id) })
	r.Register(KindVideo, func(id string) Source { return NewVideo(id) })
	r.Register(KindWebcam, func(id string) Source { return NewWebcam(id) })
	r.Register(KindShader, func(id string) Source { return NewProcedural(id) })
	r.Register(KindExternal, func(id string) Source { return NewExternal(id) })
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind Kind, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

func (r *Registry) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// New creates an unloaded source of the given kind.
func (r *Registry) New(kind Kind) (Source, error) {
	r.mu.Lock()
	f, ok := r.factories[kind]
	if ok {
		r.counters[kind]++
	}
	n := r.counters[kind]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return f(fmt.Sprintf("%s-%d", kind, n)), nil
}

// Instantiate rebuilds an unloaded source from a descriptor previously
// returned by Source.Descriptor.
func (r *Registry) Instantiate(d Descriptor) (Source, error) {
	src, err := r.New(d.Type)
	if err != nil {
		return nil, err
	}
	if d.Label != "" {
		src.SetLabel(d.Label)
	}
	if err := src.SetOptions(d.options()); err != nil {
		return nil, fmt.Errorf("failed to apply %s descriptor: %w", d.Type, err)
	}
	return src, nil
}
