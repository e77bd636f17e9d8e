package slider

import (
	"fmt"
	"strings"
)

// Strategy selects where cached images are held.
type Strategy uint8

const (
	// StrategyCPU keeps encoded bytes in memory.
	StrategyCPU Strategy = iota

	// StrategyGPU uploads every image to its own texture.
	StrategyGPU

	// StrategyAtlas packs images into a shared texture atlas.
	StrategyAtlas
)

// String returns the name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyCPU:
		return "cpu"
	case StrategyGPU:
		return "gpu"
	case StrategyAtlas:
		return "atlas"
	default:
		return fmt.Sprintf("Strategy(%d)", uint8(s))
	}
}

// IsGPUBased reports whether the strategy needs a device.
func (s Strategy) IsGPUBased() bool {
	return s == StrategyGPU || s == StrategyAtlas
}

// ParseStrategy parses "cpu", "gpu" or "atlas".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return StrategyCPU, nil
	case "gpu":
		return StrategyGPU, nil
	case "atlas":
		return StrategyAtlas, nil
	default:
		return 0, fmt.Errorf("slider: unknown strategy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
