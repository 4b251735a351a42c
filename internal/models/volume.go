package models

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrEmptyVolume is returned when a volume is nil or has a zero dimension.
	ErrEmptyVolume = errors.New("empty volume")

	// ErrShapeMismatch is returned when two grids that must agree in shape do not.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Shape is the extent of a volume in (slice, row, column) order.
type Shape struct {
	Slices int
	Rows   int
	Cols   int
}

// Len returns the number of voxels covered by the shape.
func (s Shape) Len() int {
	return s.Slices * s.Rows * s.Cols
}

// Empty reports whether any dimension is zero or negative.
func (s Shape) Empty() bool {
	return s.Slices <= 0 || s.Rows <= 0 || s.Cols <= 0
}

// Contains reports whether (slice, row, col) lies inside the grid.
func (s Shape) Contains(slice, row, col int) bool {
	return slice >= 0 && slice < s.Slices &&
		row >= 0 && row < s.Rows &&
		col >= 0 && col < s.Cols
}

// Index returns the row-major offset of (slice, row, col).
func (s Shape) Index(slice, row, col int) int {
	return slice*s.Rows*s.Cols + row*s.Cols + col
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.Slices, s.Rows, s.Cols)
}

// Spacing is the physical size of a voxel along each axis in mm.
type Spacing struct {
	Slice float64
	Row   float64
	Col   float64
}

// VoxelVolume returns the physical volume of one voxel in mm³.
func (s Spacing) VoxelVolume() float64 {
	return s.Slice * s.Row * s.Col
}

// Volume is a 3D grid of scalar intensities stored as a 1D array in row-major
// (slice, row, column) order. It is not modified once loaded.
type Volume struct {
	// Data holds Shape.Len() samples
	Data []float64

	Shape Shape

	// Spacing is used for reporting only
	Spacing Spacing
}

// NewVolume allocates a zero-filled volume.
func NewVolume(shape Shape) *Volume {
	if shape.Empty() {
		return &Volume{Shape: shape}
	}
	return &Volume{
		Data:  make([]float64, shape.Len()),
		Shape: shape,
	}
}

// NewVolumeFromSlices stacks equally sized slices, each rows*cols long in
// row-major order, into a volume.
func NewVolumeFromSlices(slices [][]float64, rows, cols int) (*Volume, error) {
	shape := Shape{Slices: len(slices), Rows: rows, Cols: cols}
	if shape.Empty() {
		return nil, fmt.Errorf("stacking %s: %w", shape, ErrEmptyVolume)
	}

	vol := NewVolume(shape)
	size := rows * cols
	for i, s := range slices {
		if len(s) != size {
			return nil, fmt.Errorf("slice %d has %d samples, want %d: %w", i, len(s), size, ErrShapeMismatch)
		}
		copy(vol.Data[i*size:(i+1)*size], s)
	}
	return vol, nil
}

// Validate checks that the volume is non-empty and that its data matches its shape.
func (v *Volume) Validate() error {
	if v == nil || v.Shape.Empty() {
		return ErrEmptyVolume
	}
	if len(v.Data) != v.Shape.Len() {
		return fmt.Errorf("volume %s holds %d samples: %w", v.Shape, len(v.Data), ErrShapeMismatch)
	}
	return nil
}

// At returns the intensity at (slice, row, col). The caller is responsible
// for bounds checking.
func (v *Volume) At(slice, row, col int) float64 {
	return v.Data[v.Shape.Index(slice, row, col)]
}

// Set stores an intensity at (slice, row, col).
func (v *Volume) Set(slice, row, col int, value float64) {
	v.Data[v.Shape.Index(slice, row, col)] = value
}

// SliceView returns the samples of one slice. The returned slice shares
// storage with the volume and must not be modified.
func (v *Volume) SliceView(slice int) []float64 {
	size := v.Shape.Rows * v.Shape.Cols
	return v.Data[slice*size : (slice+1)*size]
}

// MinMax returns the smallest and largest intensity in the volume.
func (v *Volume) MinMax() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	return floats.Min(v.Data), floats.Max(v.Data)
}
