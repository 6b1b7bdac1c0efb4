package sampling

import (
	"fmt"
	"strings"
)

// Statistic selects how a region's samples are aggregated. The numeric
// values are the codes the sampling shader switches on.
type Statistic int

const (
	Average Statistic = iota
	Mode
	MaxLuma
)

const (
	// MaxAreas is the number of regions one sampling pass can resolve; the
	// render target is MaxAreas x 1 pixels.
	MaxAreas = 32
	// Bins is the mode histogram size: 3 bits per channel.
	Bins = 512

	MinSamplesPerEdge     = 1
	MaxSamplesPerEdge     = 64
	DefaultSamplesPerEdge = 20
)

func (s Statistic) String() string {
	switch s {
	case Mode:
		return "mode"
	case MaxLuma:
		return "maxluma"
	default:
		return "average"
	}
}

// ParseStatistic accepts the names used in region configs.
func ParseStatistic(name string) (Statistic, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "average", "avg", "mean":
		return Average, nil
	case "mode", "dominant":
		return Mode, nil
	case "maxluma", "max-luminance", "maxluminance":
		return MaxLuma, nil
	}
	return Average, fmt.Errorf("unknown statistic %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Statistic) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Statistic) UnmarshalText(b []byte) error {
	v, err := ParseStatistic(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ClampSamplesPerEdge limits n to [MinSamplesPerEdge, MaxSamplesPerEdge].
func ClampSamplesPerEdge(n int) int {
	if n < MinSamplesPerEdge {
		return MinSamplesPerEdge
	}
	if n > MaxSamplesPerEdge {
		return MaxSamplesPerEdge
	}
	return n
}
