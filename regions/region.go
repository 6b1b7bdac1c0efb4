package regions

import (
	"fmt"
	"strings"

	"github.com/jinzhu/copier"

	"github.com/richinsley/lightv/geometry"
	"github.com/richinsley/lightv/sampling"
)

// Type is the shape of a region: one area, a horizontal strip of cells or a
// grid of cells.
type Type string

const (
	TypeArea  Type = "area"
	TypeStrip Type = "strip"
	TypeGrid  Type = "grid"
)

const (
	DefaultCount       = 3
	DefaultRows        = 2
	DefaultCols        = 3
	DefaultSmoothingMs = 250

	MinCount, MaxCount             = 2, 20
	MinGridSide, MaxGridSide       = 2, 10
	MinSmoothingMs, MaxSmoothingMs = 1, 10000
)

// Cell sizes in output pixels.
const (
	areaWidth, areaHeight  = 150, 100
	stripCellW, stripCellH = 120, 60
	gridCellW, gridCellH   = 80, 60
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeArea, TypeStrip, TypeGrid:
		return t, nil
	}
	return "", fmt.Errorf("unknown region type %q", s)
}

// Config is a region's sampling configuration. Count applies to strips, Rows
// and Cols to grids.
type Config struct {
	Method           sampling.Statistic `json:"method" toml:"method"`
	Count            int                `json:"count,omitempty" toml:"count,omitempty"`
	Rows             int                `json:"rows,omitempty" toml:"rows,omitempty"`
	Cols             int                `json:"cols,omitempty" toml:"cols,omitempty"`
	SmoothingEnabled bool               `json:"smoothingEnabled" toml:"smoothing_enabled"`
	SmoothingMs      int                `json:"smoothingMs" toml:"smoothing_ms"`
}

// Patch is a partial Config; nil fields are left alone.
type Patch struct {
	Method           *sampling.Statistic
	Count            *int
	Rows             *int
	Cols             *int
	SmoothingEnabled *bool
	SmoothingMs      *int
}

// DefaultConfig returns the configuration a new region of type t starts with.
func DefaultConfig(t Type) Config {
	c := Config{Method: sampling.Average, SmoothingMs: DefaultSmoothingMs}
	switch t {
	case TypeStrip:
		c.Count = DefaultCount
	case TypeGrid:
		c.Rows, c.Cols = DefaultRows, DefaultCols
	}
	return c
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Normalize clamps every field into range for a region of type t.
func (c Config) Normalize(t Type) Config {
	switch t {
	case TypeStrip:
		c.Count = clamp(c.Count, MinCount, MaxCount)
		c.Rows, c.Cols = 0, 0
	case TypeGrid:
		c.Rows = clamp(c.Rows, MinGridSide, MaxGridSide)
		c.Cols = clamp(c.Cols, MinGridSide, MaxGridSide)
		c.Count = 0
	default:
		c.Count, c.Rows, c.Cols = 0, 0, 0
	}
	c.SmoothingMs = clamp(c.SmoothingMs, MinSmoothingMs, MaxSmoothingMs)
	if c.Method < sampling.Average || c.Method > sampling.MaxLuma {
		c.Method = sampling.Average
	}
	return c
}

// Apply returns c with the non-nil fields of p copied over, normalized for t.
func (c Config) Apply(t Type, p Patch) (Config, error) {
	if err := copier.CopyWithOption(&c, &p, copier.Option{IgnoreEmpty: true}); err != nil {
		return c, fmt.Errorf("failed to apply region config: %w", err)
	}
	return c.Normalize(t), nil
}

// structural reports whether moving from c to next changes the cell layout.
func (c Config) structural(t Type, next Config) bool {
	switch t {
	case TypeStrip:
		return c.Count != next.Count
	case TypeGrid:
		return c.Rows != next.Rows || c.Cols != next.Cols
	}
	return false
}

// Region is one sampling region: a root node (with child cells for strips
// and grids) and the colors most recently computed for its cells.
type Region struct {
	ID     string
	Type   Type
	Config Config
	Colors []sampling.Color
	Root   *geometry.Node
}

// Cells is the number of sampled cells.
func (r *Region) Cells() int {
	if r.Root.IsGroup() {
		return len(r.Root.Children)
	}
	return 1
}

// Areas resolves every cell to an oriented sampling area.
func (r *Region) Areas() []sampling.Area {
	corners := geometry.Resolve(r.Root)
	areas := make([]sampling.Area, len(corners))
	for i, c := range corners {
		areas[i] = sampling.FromCorners(c)
	}
	return areas
}

// buildShape lays out a fresh root node for t. rnd returns values in [0,1)
// and picks the initial placement.
func buildShape(t Type, c Config, rnd func() float64) *geometry.Node {
	switch t {
	case TypeStrip:
		root := geometry.NewRect(50+rnd()*200, 50+rnd()*150, float64(c.Count*stripCellW), stripCellH)
		for i := 0; i < c.Count; i++ {
			root.Children = append(root.Children, geometry.NewRect(float64(i*stripCellW), 0, stripCellW, stripCellH))
		}
		return root
	case TypeGrid:
		root := geometry.NewRect(100+rnd()*150, 100+rnd()*100, float64(c.Cols*gridCellW), float64(c.Rows*gridCellH))
		for row := 0; row < c.Rows; row++ {
			for col := 0; col < c.Cols; col++ {
				root.Children = append(root.Children, geometry.NewRect(float64(col*gridCellW), float64(row*gridCellH), gridCellW, gridCellH))
			}
		}
		return root
	default:
		return geometry.NewRect(100+rnd()*200, 100+rnd()*100, areaWidth, areaHeight)
	}
}
