package segmentation

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// Algorithm names used in configuration files and on the command line.
const (
	NameByThreshold    = "by_threshold"
	NameGrowEverySlice = "grow_every_slice"
)

// ParseAlgorithmName maps a configuration name to its canonical form.
func ParseAlgorithmName(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameByThreshold, "threshold":
		return NameByThreshold, nil
	case NameGrowEverySlice, "every_slice", "adaptive":
		return NameGrowEverySlice, nil
	default:
		return "", fmt.Errorf("algorithm %q: %w", name, ErrUnknownMode)
	}
}

// Algorithm is one of ByThreshold or GrowEverySlice.
type Algorithm interface {
	Name() string
	algorithm()
}

// Strictness selects how far a ByThreshold run may reach.
type Strictness int

const (
	// Volumetric grows through the 26-neighbourhood across slices.
	Volumetric Strictness = iota
	// SlicePropagation grows slice by slice with centroid re-seeding.
	SlicePropagation
	// SingleSlice grows on the seed slice only.
	SingleSlice
)

func (s Strictness) String() string {
	switch s {
	case Volumetric:
		return "volumetric"
	case SlicePropagation:
		return "slice_propagation"
	case SingleSlice:
		return "single_slice"
	default:
		return fmt.Sprintf("strictness(%d)", int(s))
	}
}

// ParseStrictness maps a configuration name to a Strictness.
func ParseStrictness(name string) (Strictness, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "volumetric", "3d":
		return Volumetric, nil
	case "slice_propagation", "propagation":
		return SlicePropagation, nil
	case "single_slice", "2d":
		return SingleSlice, nil
	default:
		return 0, fmt.Errorf("strictness %q: %w", name, ErrUnknownMode)
	}
}

// ByThreshold applies one threshold uniformly to every affected voxel.
type ByThreshold struct {
	Threshold  float64
	Strictness Strictness
}

// Name implements Algorithm.
func (ByThreshold) Name() string { return NameByThreshold }
func (ByThreshold) algorithm()   {}

// GrowEverySlice re-derives the threshold on every slice from the region
// statistics: threshold = mean - Ratio*std.
type GrowEverySlice struct {
	Ratio   float64
	MinIter int
}

// Name implements Algorithm.
func (GrowEverySlice) Name() string { return NameGrowEverySlice }
func (GrowEverySlice) algorithm()   {}

// DefaultGrowEverySlice returns the settings of the interactive tool.
func DefaultGrowEverySlice() GrowEverySlice {
	return GrowEverySlice{Ratio: 3, MinIter: DefaultMinIter}
}

// Options holds the settings shared by all algorithms.
type Options struct {
	Polarity      Polarity
	MinRegionSize int
	MaxRefine     int

	// MinIter is the stagnation limit of ByThreshold with SlicePropagation;
	// GrowEverySlice carries its own
	MinIter int

	Logger zerolog.Logger
}

// DefaultOptions returns Brighter polarity and the default limits.
func DefaultOptions() Options {
	return Options{
		Polarity:      Brighter,
		MinRegionSize: DefaultMinRegionSize,
		MaxRefine:     DefaultMaxRefine,
		MinIter:       DefaultMinIter,
		Logger:        zerolog.Nop(),
	}
}

// Grow runs alg from seed and returns a full-volume mask.
func Grow(vol *models.Volume, seed Pixel, alg Algorithm, opts Options) (Result, error) {
	if err := validateSeed(vol, seed); err != nil {
		return Result{}, err
	}

	p := &Propagator{
		MinIter:       opts.MinIter,
		MinRegionSize: opts.MinRegionSize,
		MaxRefine:     opts.MaxRefine,
		Polarity:      opts.Polarity,
		Logger:        opts.Logger,
	}

	switch a := alg.(type) {
	case ByThreshold:
		return growByThreshold(vol, seed, a, p)
	case *ByThreshold:
		return growByThreshold(vol, seed, *a, p)
	case GrowEverySlice:
		p.MinIter = a.MinIter
		return p.Adaptive(vol, seed, a.Ratio)
	case *GrowEverySlice:
		p.MinIter = a.MinIter
		return p.Adaptive(vol, seed, a.Ratio)
	case nil:
		return Result{}, fmt.Errorf("no algorithm: %w", ErrUnknownMode)
	default:
		return Result{}, fmt.Errorf("algorithm %q: %w", alg.Name(), ErrUnknownMode)
	}
}

func growByThreshold(vol *models.Volume, seed Pixel, a ByThreshold, p *Propagator) (Result, error) {
	crit := Criterion{Threshold: a.Threshold, Polarity: p.Polarity}

	switch a.Strictness {
	case Volumetric:
		mask, n, err := GrowVolume(vol, seed, crit)
		if err != nil {
			return Result{}, err
		}
		res := Result{Mask: mask, Voxels: n, Threshold: a.Threshold}
		values := make([]float64, 0, n)
		for i, v := range mask.Data {
			if v != 0 {
				values = append(values, vol.Data[i])
			}
		}
		if st, err := ComputeStats(values); err == nil {
			res.Stats = st
		}
		return res, nil

	case SlicePropagation:
		return p.Constant(vol, seed, a.Threshold)

	case SingleSlice:
		region := growSlice(vol, seed, crit)
		res := Result{Mask: models.NewOverlay(vol.Shape), Threshold: a.Threshold}
		res.add(region)
		res.Slices = []SliceTrace{{
			Slice:     seed.Slice,
			Seed:      seed,
			Threshold: a.Threshold,
			Voxels:    region.Count,
			Accepted:  true,
		}}
		if st, err := ComputeStats(region.Values(vol)); err == nil {
			res.Stats = st
		}
		return res, nil

	default:
		return Result{}, fmt.Errorf("strictness %s: %w", a.Strictness, ErrUnknownMode)
	}
}
