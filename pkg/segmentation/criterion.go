package segmentation

import (
	"fmt"
	"strings"
)

// Polarity fixes which side of the threshold belongs to the region.
type Polarity int

const (
	// Brighter keeps voxels with intensity >= threshold.
	Brighter Polarity = iota
	// Darker keeps voxels with intensity <= threshold.
	Darker
)

func (p Polarity) String() string {
	switch p {
	case Brighter:
		return "brighter"
	case Darker:
		return "darker"
	default:
		return fmt.Sprintf("polarity(%d)", int(p))
	}
}

// ParsePolarity maps a configuration name to a Polarity.
func ParsePolarity(name string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "brighter", "bright":
		return Brighter, nil
	case "darker", "dark":
		return Darker, nil
	default:
		return 0, fmt.Errorf("polarity %q: %w", name, ErrUnknownMode)
	}
}

// bound pulls a threshold k standard deviations from the mean towards the
// background side of the distribution.
func (p Polarity) bound(mean, std, k float64) float64 {
	if p == Darker {
		return mean + k*std
	}
	return mean - k*std
}

// Criterion decides whether a voxel belongs to the growing region.
type Criterion struct {
	Threshold float64
	Polarity  Polarity
}

// Accept reports whether an intensity satisfies the criterion.
func (c Criterion) Accept(v float64) bool {
	if c.Polarity == Darker {
		return v <= c.Threshold
	}
	return v >= c.Threshold
}
