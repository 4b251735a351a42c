package segmentation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

const (
	// DefaultMinIter is the number of consecutive degenerate slices after
	// which propagation in one direction stops.
	DefaultMinIter = 5

	// DefaultMinRegionSize is the voxel count below which a slice region is
	// considered degenerate.
	DefaultMinRegionSize = 5

	// DefaultMaxRefine caps the threshold refinement passes on the seed slice.
	DefaultMaxRefine = 10
)

// SliceTrace records what the propagator did on one slice.
type SliceTrace struct {
	Slice     int
	Seed      Pixel
	Threshold float64
	Voxels    int
	Accepted  bool
}

// Result is the outcome of a growth run.
type Result struct {
	// Mask holds 1 for every segmented voxel
	Mask *models.Overlay

	// Voxels is the number of segmented voxels
	Voxels int

	// Stats are the statistics of the last accepted slice region (or of the
	// whole region for volumetric growth); zero when none could be computed
	Stats Stats

	// Threshold is the threshold used on the seed slice
	Threshold float64

	// Slices traces the per-slice decisions in visiting order
	Slices []SliceTrace
}

func (r *Result) add(region SliceRegion) {
	region.writeTo(r.Mask)
	r.Voxels += region.Count
}

// Propagator extends a 2D seed growth into 3D by growing slice after slice
// and re-seeding each slice from the centroid of the previous region.
//
// Both directions (decreasing and increasing slice index) start from the
// seed slice and are walked independently. A slice whose region holds fewer
// than MinRegionSize voxels is degenerate: it is not added to the mask and
// the next slice is seeded from the last accepted region. MinIter
// consecutive degenerate slices stop the direction.
type Propagator struct {
	MinIter       int
	MinRegionSize int
	MaxRefine     int
	Polarity      Polarity
	Logger        zerolog.Logger
}

// NewPropagator returns a propagator with default limits.
func NewPropagator(polarity Polarity, logger zerolog.Logger) *Propagator {
	return &Propagator{
		MinIter:       DefaultMinIter,
		MinRegionSize: DefaultMinRegionSize,
		MaxRefine:     DefaultMaxRefine,
		Polarity:      polarity,
		Logger:        logger,
	}
}

// Adaptive grows with a threshold re-derived on every slice. The seed slice
// starts from the statistics of the seed and its 26-neighbourhood; every
// other slice starts from the re-seeded voxel and its in-plane
// 8-neighbourhood. Each start is refined to mean - ratio*std of the grown
// region until the region size settles.
func (p *Propagator) Adaptive(vol *models.Volume, seed Pixel, ratio float64) (Result, error) {
	if err := validateSeed(vol, seed); err != nil {
		return Result{}, err
	}

	neighbors, err := SampleNeighbors3D(vol, seed)
	if err != nil {
		return Result{}, err
	}
	crit, first, err := p.refineSlice(vol, seed, ratio, neighbors)
	if err != nil {
		return Result{}, err
	}
	return p.run(vol, seed, crit, first, ratio, true), nil
}

// Constant grows every slice with the same threshold.
func (p *Propagator) Constant(vol *models.Volume, seed Pixel, threshold float64) (Result, error) {
	if err := validateSeed(vol, seed); err != nil {
		return Result{}, err
	}

	crit := Criterion{Threshold: threshold, Polarity: p.Polarity}
	first := growSlice(vol, seed, crit)
	return p.run(vol, seed, crit, first, 0, false), nil
}

// refineSlice finds the threshold of the slice of seed, starting from the
// statistics of seed and neighbors.
func (p *Propagator) refineSlice(vol *models.Volume, seed Pixel, ratio float64, neighbors []float64) (Criterion, SliceRegion, error) {
	local, err := ComputeStats(append(neighbors, vol.At(seed.Slice, seed.Row, seed.Col)))
	if err != nil {
		return Criterion{}, SliceRegion{}, fmt.Errorf("neighbourhood of seed %s: %w", seed, err)
	}

	crit := Criterion{Threshold: local.Threshold(ratio, p.Polarity), Polarity: p.Polarity}
	region := growSlice(vol, seed, crit)

	for i := 0; i < p.MaxRefine; i++ {
		st, err := ComputeStats(region.Values(vol))
		if err != nil {
			return Criterion{}, SliceRegion{}, fmt.Errorf("slice %d: %w", seed.Slice, err)
		}
		next := Criterion{Threshold: st.Threshold(ratio, p.Polarity), Polarity: p.Polarity}
		grown := growSlice(vol, seed, next)
		settled := grown.Count == region.Count
		crit, region = next, grown
		if settled {
			break
		}
	}

	p.Logger.Debug().
		Int("slice", seed.Slice).
		Float64("threshold", crit.Threshold).
		Int("voxels", region.Count).
		Msg("slice threshold")

	return crit, region, nil
}

// growFrom grows the slice of seed. Adaptive runs derive a fresh criterion
// from the local statistics around seed, others keep crit.
func (p *Propagator) growFrom(vol *models.Volume, seed Pixel, crit Criterion, ratio float64, adaptive bool) (Criterion, SliceRegion, error) {
	if !adaptive {
		return crit, growSlice(vol, seed, crit), nil
	}
	neighbors := make([]float64, 0, len(offsets2D))
	for _, n := range Neighbors2D(seed, vol.Shape) {
		neighbors = append(neighbors, vol.At(n.Slice, n.Row, n.Col))
	}
	return p.refineSlice(vol, seed, ratio, neighbors)
}

func (p *Propagator) run(vol *models.Volume, seed Pixel, crit Criterion, first SliceRegion, ratio float64, adaptive bool) Result {
	res := Result{
		Mask:      models.NewOverlay(vol.Shape),
		Threshold: crit.Threshold,
	}
	res.add(first)
	res.Slices = append(res.Slices, SliceTrace{
		Slice:     seed.Slice,
		Seed:      seed,
		Threshold: crit.Threshold,
		Voxels:    first.Count,
		Accepted:  true,
	})
	if st, err := ComputeStats(first.Values(vol)); err == nil {
		res.Stats = st
	}

	for _, step := range []int{-1, 1} {
		p.walk(vol, first, crit, ratio, adaptive, step, &res)
	}

	p.Logger.Debug().
		Str("seed", seed.String()).
		Bool("adaptive", adaptive).
		Int("voxels", res.Voxels).
		Msg("propagation finished")

	return res
}

// walk propagates from the seed slice in one direction. The re-seeded voxel
// must pass the criterion of the last accepted slice.
func (p *Propagator) walk(vol *models.Volume, first SliceRegion, crit Criterion, ratio float64, adaptive bool, step int, res *Result) {
	minIter := p.MinIter
	if minIter < 1 {
		minIter = 1
	}

	prev := first
	stagnant := 0
	for s := first.Slice + step; s >= 0 && s < vol.Shape.Slices; s += step {
		trace := SliceTrace{Slice: s, Threshold: crit.Threshold}

		seed, ok := reseed(vol, prev, s, crit)
		trace.Seed = seed
		if ok {
			next, region, err := p.growFrom(vol, seed, crit, ratio, adaptive)
			if err == nil {
				trace.Threshold = next.Threshold
				trace.Voxels = region.Count
			}
			if err == nil && region.Count >= p.MinRegionSize {
				trace.Accepted = true
				res.add(region)
				prev, crit = region, next
				if st, err := ComputeStats(region.Values(vol)); err == nil {
					res.Stats = st
				}
			}
		}

		res.Slices = append(res.Slices, trace)
		if trace.Accepted {
			stagnant = 0
			continue
		}

		stagnant++
		p.Logger.Debug().
			Int("slice", s).
			Int("voxels", trace.Voxels).
			Int("stagnant", stagnant).
			Msg("degenerate slice")
		if stagnant >= minIter {
			return
		}
	}
}

// reseed projects the centroid of prev onto slice. When the centroid voxel
// fails crit, the seed moves to the nearest voxel of prev's footprint that
// passes on the new slice. ok is false when no such voxel exists.
func reseed(vol *models.Volume, prev SliceRegion, slice int, crit Criterion) (Pixel, bool) {
	row, col, err := prev.Centroid()
	if err != nil {
		return Pixel{}, false
	}

	seed := Pixel{Slice: slice, Row: int(math.Round(row)), Col: int(math.Round(col))}
	if crit.Accept(vol.At(seed.Slice, seed.Row, seed.Col)) {
		return seed, true
	}

	var candidates kdtree.Points
	for _, px := range prev.Pixels() {
		if crit.Accept(vol.At(slice, px.Row, px.Col)) {
			candidates = append(candidates, kdtree.Point{float64(px.Row), float64(px.Col)})
		}
	}
	if len(candidates) == 0 {
		return seed, false
	}

	tree := kdtree.New(candidates, false)
	nearest, _ := tree.Nearest(kdtree.Point{row, col})
	q := nearest.(kdtree.Point)
	return Pixel{Slice: slice, Row: int(q[0]), Col: int(q[1])}, true
}
