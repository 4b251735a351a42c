package segmentation

import (
	"fmt"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// Pixel is a voxel coordinate. The order is always (slice, row, column);
// row and column also serve as the top-left anchor of ROI-local edits.
type Pixel struct {
	Slice int
	Row   int
	Col   int
}

// In reports whether the pixel lies inside shape.
func (p Pixel) In(shape models.Shape) bool {
	return shape.Contains(p.Slice, p.Row, p.Col)
}

func (p Pixel) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.Slice, p.Row, p.Col)
}

// offsets2D lists the 8 same-slice neighbour displacements as (row, col).
var offsets2D = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// offsets3D lists the 26 neighbour displacements as (slice, row, col).
var offsets3D = func() [26][3]int {
	var out [26][3]int
	i := 0
	for ds := -1; ds <= 1; ds++ {
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				if ds == 0 && dr == 0 && dc == 0 {
					continue
				}
				out[i] = [3]int{ds, dr, dc}
				i++
			}
		}
	}
	return out
}()

// Neighbors2D returns the same-slice 8-neighbourhood of p. Coordinates outside
// shape are left out, so edge and corner pixels get fewer entries.
func Neighbors2D(p Pixel, shape models.Shape) []Pixel {
	out := make([]Pixel, 0, len(offsets2D))
	for _, d := range offsets2D {
		n := Pixel{Slice: p.Slice, Row: p.Row + d[0], Col: p.Col + d[1]}
		if n.In(shape) {
			out = append(out, n)
		}
	}
	return out
}

// Neighbors3D returns the 26-neighbourhood of p across the current slice and
// the slices above and below, excluding coordinates outside shape.
func Neighbors3D(p Pixel, shape models.Shape) []Pixel {
	out := make([]Pixel, 0, len(offsets3D))
	for _, d := range offsets3D {
		n := Pixel{Slice: p.Slice + d[0], Row: p.Row + d[1], Col: p.Col + d[2]}
		if n.In(shape) {
			out = append(out, n)
		}
	}
	return out
}

// Sample returns the intensity at p.
func Sample(vol *models.Volume, p Pixel) (float64, error) {
	if err := vol.Validate(); err != nil {
		return 0, err
	}
	if !p.In(vol.Shape) {
		return 0, fmt.Errorf("sampling %s in %s: %w", p, vol.Shape, ErrOutOfBounds)
	}
	return vol.At(p.Slice, p.Row, p.Col), nil
}

// SampleNeighbors3D returns the intensities of the 26-neighbourhood of p.
func SampleNeighbors3D(vol *models.Volume, p Pixel) ([]float64, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if !p.In(vol.Shape) {
		return nil, fmt.Errorf("sampling around %s in %s: %w", p, vol.Shape, ErrOutOfBounds)
	}

	neighbors := Neighbors3D(p, vol.Shape)
	values := make([]float64, len(neighbors))
	for i, n := range neighbors {
		values[i] = vol.At(n.Slice, n.Row, n.Col)
	}
	return values, nil
}

// validateSeed checks the volume first, then that the seed lies inside it.
func validateSeed(vol *models.Volume, seed Pixel) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	if !seed.In(vol.Shape) {
		return fmt.Errorf("seed %s outside volume %s: %w", seed, vol.Shape, ErrInvalidSeed)
	}
	return nil
}
