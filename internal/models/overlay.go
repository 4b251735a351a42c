package models

import "fmt"

// Overlay is a segmentation mask with the same shape as the volume it labels.
// 0 is background, any other value is segmented.
type Overlay struct {
	Data  []uint8
	Shape Shape
}

// NewOverlay returns a zero-filled overlay.
func NewOverlay(shape Shape) *Overlay {
	if shape.Empty() {
		return &Overlay{Shape: shape}
	}
	return &Overlay{
		Data:  make([]uint8, shape.Len()),
		Shape: shape,
	}
}

// At returns the label at (slice, row, col).
func (o *Overlay) At(slice, row, col int) uint8 {
	return o.Data[o.Shape.Index(slice, row, col)]
}

// Set stores a label at (slice, row, col).
func (o *Overlay) Set(slice, row, col int, value uint8) {
	o.Data[o.Shape.Index(slice, row, col)] = value
}

// Marked reports whether (slice, row, col) is segmented.
func (o *Overlay) Marked(slice, row, col int) bool {
	return o.At(slice, row, col) != 0
}

// Count returns the number of segmented voxels.
func (o *Overlay) Count() int {
	n := 0
	for _, v := range o.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// SliceCount returns the number of segmented voxels on one slice.
func (o *Overlay) SliceCount(slice int) int {
	size := o.Shape.Rows * o.Shape.Cols
	n := 0
	for _, v := range o.Data[slice*size : (slice+1)*size] {
		if v != 0 {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (o *Overlay) Clone() *Overlay {
	c := &Overlay{Shape: o.Shape, Data: make([]uint8, len(o.Data))}
	copy(c.Data, o.Data)
	return c
}

// Clear resets every voxel to background.
func (o *Overlay) Clear() {
	for i := range o.Data {
		o.Data[i] = 0
	}
}

// CopyFrom replaces the contents with those of other.
func (o *Overlay) CopyFrom(other *Overlay) error {
	if other == nil || other.Shape != o.Shape {
		return fmt.Errorf("copying overlay into %s: %w", o.Shape, ErrShapeMismatch)
	}
	copy(o.Data, other.Data)
	return nil
}

// Rect is a rectangle on one slice; Row and Col give the top-left corner.
type Rect struct {
	Row  int
	Col  int
	Rows int
	Cols int
}

// Empty reports whether the rectangle covers no voxel.
func (r Rect) Empty() bool {
	return r.Rows <= 0 || r.Cols <= 0
}

// Within reports whether the rectangle lies fully inside a rows x cols slice.
func (r Rect) Within(rows, cols int) bool {
	return !r.Empty() && r.Row >= 0 && r.Col >= 0 &&
		r.Row+r.Rows <= rows && r.Col+r.Cols <= cols
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d]", r.Row, r.Row+r.Rows, r.Col, r.Col+r.Cols)
}

// Patch is a 2D mask used for local edits of an overlay. Values are always 0 or 1.
type Patch struct {
	Rows int
	Cols int
	Data []uint8
}

// Number is any numeric element type a patch can be built from.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// NewPatch returns an all-zero patch.
func NewPatch(rows, cols int) Patch {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return Patch{Rows: rows, Cols: cols, Data: make([]uint8, rows*cols)}
}

// PatchFromBools builds a patch from a boolean grid.
func PatchFromBools(grid [][]bool) (Patch, error) {
	rows, cols, err := gridDims(len(grid), func(i int) int { return len(grid[i]) })
	if err != nil {
		return Patch{}, err
	}
	p := NewPatch(rows, cols)
	for r, line := range grid {
		for c, v := range line {
			if v {
				p.Data[r*cols+c] = 1
			}
		}
	}
	return p, nil
}

// PatchFromValues builds a patch from a numeric grid; nonzero values become 1.
func PatchFromValues[T Number](grid [][]T) (Patch, error) {
	rows, cols, err := gridDims(len(grid), func(i int) int { return len(grid[i]) })
	if err != nil {
		return Patch{}, err
	}
	p := NewPatch(rows, cols)
	for r, line := range grid {
		for c, v := range line {
			if v != 0 {
				p.Data[r*cols+c] = 1
			}
		}
	}
	return p, nil
}

func gridDims(rows int, width func(int) int) (int, int, error) {
	if rows == 0 {
		return 0, 0, nil
	}
	cols := width(0)
	for i := 1; i < rows; i++ {
		if width(i) != cols {
			return 0, 0, fmt.Errorf("row %d has %d columns, want %d: %w", i, width(i), cols, ErrShapeMismatch)
		}
	}
	return rows, cols, nil
}

// At returns the patch value at (row, col).
func (p Patch) At(row, col int) uint8 {
	return p.Data[row*p.Cols+col]
}

// Set marks or clears (row, col).
func (p Patch) Set(row, col int, marked bool) {
	if marked {
		p.Data[row*p.Cols+col] = 1
	} else {
		p.Data[row*p.Cols+col] = 0
	}
}

// Valid reports whether Data matches the declared dimensions.
func (p Patch) Valid() bool {
	return p.Rows >= 0 && p.Cols >= 0 && len(p.Data) == p.Rows*p.Cols
}

// Count returns the number of marked cells.
func (p Patch) Count() int {
	n := 0
	for _, v := range p.Data {
		if v != 0 {
			n++
		}
	}
	return n
}
