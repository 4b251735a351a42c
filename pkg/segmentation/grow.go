package segmentation

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// visit states used by the flood fills
const (
	unseen uint8 = iota
	inside
	rejected
)

// SliceRegion is the result of a 2D grow on one slice.
type SliceRegion struct {
	Slice int
	Rows  int
	Cols  int

	// Mask is Rows*Cols long in row-major order
	Mask []bool

	// Count is the number of true cells in Mask
	Count int
}

// Contains reports whether (row, col) belongs to the region.
func (r SliceRegion) Contains(row, col int) bool {
	if row < 0 || row >= r.Rows || col < 0 || col >= r.Cols {
		return false
	}
	return r.Mask[row*r.Cols+col]
}

// Pixels returns the coordinates of every region voxel in row-major order.
func (r SliceRegion) Pixels() []Pixel {
	out := make([]Pixel, 0, r.Count)
	for i, in := range r.Mask {
		if in {
			out = append(out, Pixel{Slice: r.Slice, Row: i / r.Cols, Col: i % r.Cols})
		}
	}
	return out
}

// Centroid returns the mean row and column of the region.
func (r SliceRegion) Centroid() (row, col float64, err error) {
	if r.Count == 0 {
		return 0, 0, fmt.Errorf("centroid of empty region on slice %d: %w", r.Slice, ErrInsufficientData)
	}

	rows := make([]float64, 0, r.Count)
	cols := make([]float64, 0, r.Count)
	for i, in := range r.Mask {
		if in {
			rows = append(rows, float64(i/r.Cols))
			cols = append(cols, float64(i%r.Cols))
		}
	}
	return stat.Mean(rows, nil), stat.Mean(cols, nil), nil
}

// Values returns the intensities of the region voxels.
func (r SliceRegion) Values(vol *models.Volume) []float64 {
	data := vol.SliceView(r.Slice)
	out := make([]float64, 0, r.Count)
	for i, in := range r.Mask {
		if in {
			out = append(out, data[i])
		}
	}
	return out
}

// writeTo marks the region voxels in overlay.
func (r SliceRegion) writeTo(overlay *models.Overlay) {
	size := r.Rows * r.Cols
	dst := overlay.Data[r.Slice*size : (r.Slice+1)*size]
	for i, in := range r.Mask {
		if in {
			dst[i] = 1
		}
	}
}

// GrowSlice flood-fills the slice of seed with 8-connectivity, keeping every
// reachable voxel that satisfies crit. The seed is always part of the region,
// even when it fails crit; callers that need a strict seed must check it first.
func GrowSlice(vol *models.Volume, seed Pixel, crit Criterion) (SliceRegion, error) {
	if err := validateSeed(vol, seed); err != nil {
		return SliceRegion{}, err
	}
	return growSlice(vol, seed, crit), nil
}

// growSlice is GrowSlice without validation.
func growSlice(vol *models.Volume, seed Pixel, crit Criterion) SliceRegion {
	rows, cols := vol.Shape.Rows, vol.Shape.Cols
	data := vol.SliceView(seed.Slice)
	state := make([]uint8, rows*cols)

	start := seed.Row*cols + seed.Col
	state[start] = inside
	queue := []int{start}
	count := 1

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		r, c := cur/cols, cur%cols
		for _, d := range offsets2D {
			nr, nc := r+d[0], c+d[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			idx := nr*cols + nc
			if state[idx] != unseen {
				continue
			}
			if crit.Accept(data[idx]) {
				state[idx] = inside
				queue = append(queue, idx)
				count++
			} else {
				state[idx] = rejected
			}
		}
	}

	mask := make([]bool, rows*cols)
	for i, s := range state {
		mask[i] = s == inside
	}

	return SliceRegion{
		Slice: seed.Slice,
		Rows:  rows,
		Cols:  cols,
		Mask:  mask,
		Count: count,
	}
}

// GrowVolume flood-fills the whole volume from seed with 26-connectivity.
// It returns the region as an overlay together with its voxel count. As with
// GrowSlice the seed is included unconditionally.
func GrowVolume(vol *models.Volume, seed Pixel, crit Criterion) (*models.Overlay, int, error) {
	if err := validateSeed(vol, seed); err != nil {
		return nil, 0, err
	}

	shape := vol.Shape
	plane := shape.Rows * shape.Cols
	overlay := models.NewOverlay(shape)
	state := make([]uint8, shape.Len())

	start := shape.Index(seed.Slice, seed.Row, seed.Col)
	state[start] = inside
	queue := []int{start}
	count := 1

	for head := 0; head < len(queue); head++ {
		cur := queue[head]
		s, rem := cur/plane, cur%plane
		r, c := rem/shape.Cols, rem%shape.Cols
		for _, d := range offsets3D {
			ns, nr, nc := s+d[0], r+d[1], c+d[2]
			if !shape.Contains(ns, nr, nc) {
				continue
			}
			idx := shape.Index(ns, nr, nc)
			if state[idx] != unseen {
				continue
			}
			if crit.Accept(vol.Data[idx]) {
				state[idx] = inside
				queue = append(queue, idx)
				count++
			} else {
				state[idx] = rejected
			}
		}
	}

	for _, idx := range queue {
		overlay.Data[idx] = 1
	}
	return overlay, count, nil
}
