package segmentation

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// Stats summarises the nonzero intensities of a region.
type Stats struct {
	Mean  float64
	Std   float64
	Count int
}

// ComputeStats returns the population mean and standard deviation of the
// nonzero values. Zero is the background sentinel and never contributes.
func ComputeStats(values []float64) (Stats, error) {
	nonzero := make([]float64, 0, len(values))
	for _, v := range values {
		if v != 0 {
			nonzero = append(nonzero, v)
		}
	}
	if len(nonzero) == 0 {
		return Stats{}, fmt.Errorf("statistics over %d values: %w", len(values), ErrInsufficientData)
	}

	mean, std := stat.PopMeanStdDev(nonzero, nil)
	return Stats{Mean: mean, Std: std, Count: len(nonzero)}, nil
}

// Threshold returns mean - k*std for Brighter regions and mean + k*std for
// Darker ones.
func (s Stats) Threshold(k float64, polarity Polarity) float64 {
	return polarity.bound(s.Mean, s.Std, k)
}

// SliderRange returns [mean - 3*std, mean + 3*std], the span offered for
// interactive fine tuning of the threshold.
func (s Stats) SliderRange() (lo, hi float64) {
	return s.Mean - 3*s.Std, s.Mean + 3*s.Std
}

// ReferenceIntensity returns the mean intensity of the 26-neighbourhood of seed.
func ReferenceIntensity(vol *models.Volume, seed Pixel) (float64, error) {
	if err := validateSeed(vol, seed); err != nil {
		return 0, err
	}
	values, err := SampleNeighbors3D(vol, seed)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("seed %s has no neighbours: %w", seed, ErrInsufficientData)
	}
	return stat.Mean(values, nil), nil
}

// EstimatorOptions configures EstimateThreshold.
type EstimatorOptions struct {
	// K is the std multiplier of the final threshold (mean - K*std)
	K float64

	// Ratio, MinIter, MinRegionSize and MaxRefine drive the first-pass
	// GrowEverySlice run
	Ratio         float64
	MinIter       int
	MinRegionSize int
	MaxRefine     int

	Polarity Polarity
	Logger   zerolog.Logger
}

// DefaultEstimatorOptions returns the values used by the interactive tool.
func DefaultEstimatorOptions() EstimatorOptions {
	return EstimatorOptions{
		K:             1.5,
		Ratio:         3,
		MinIter:       5,
		MinRegionSize: DefaultMinRegionSize,
		MaxRefine:     DefaultMaxRefine,
		Polarity:      Brighter,
		Logger:        zerolog.Nop(),
	}
}

// Estimate is the outcome of EstimateThreshold.
type Estimate struct {
	// Reference is the mean of the seed's 26-neighbourhood
	Reference float64

	// Stats are computed over the first-pass region
	Stats Stats

	Threshold float64
	SliderMin float64
	SliderMax float64

	// Voxels is the size of the first-pass region
	Voxels int
}

// EstimateThreshold derives a growth threshold from the seed alone: it runs a
// first-pass GrowEverySlice from the seed, takes the statistics of the grown
// region and places the threshold K standard deviations below its mean.
func EstimateThreshold(vol *models.Volume, seed Pixel, opts EstimatorOptions) (Estimate, error) {
	reference, err := ReferenceIntensity(vol, seed)
	if err != nil {
		return Estimate{}, err
	}

	p := &Propagator{
		MinIter:       opts.MinIter,
		MinRegionSize: opts.MinRegionSize,
		MaxRefine:     opts.MaxRefine,
		Polarity:      opts.Polarity,
		Logger:        opts.Logger,
	}
	first, err := p.Adaptive(vol, seed, opts.Ratio)
	if err != nil {
		return Estimate{}, fmt.Errorf("first-pass growth: %w", err)
	}

	values := make([]float64, 0, first.Voxels)
	for i, v := range first.Mask.Data {
		if v != 0 {
			values = append(values, vol.Data[i])
		}
	}
	stats, err := ComputeStats(values)
	if err != nil {
		return Estimate{}, err
	}

	lo, hi := stats.SliderRange()
	return Estimate{
		Reference: reference,
		Stats:     stats,
		Threshold: stats.Threshold(opts.K, opts.Polarity),
		SliderMin: lo,
		SliderMax: hi,
		Voxels:    first.Voxels,
	}, nil
}
