package models

import (
	"errors"
	"testing"
)

// TestNewVolumeFromSlices verifies stacking order and shape checks
func TestNewVolumeFromSlices(t *testing.T) {
	slices := [][]float64{
		{1, 2, 3, 4, 5, 6},
		{7, 8, 9, 10, 11, 12},
	}

	vol, err := NewVolumeFromSlices(slices, 2, 3)
	if err != nil {
		t.Fatalf("Failed to stack slices: %v", err)
	}

	if vol.Shape != (Shape{Slices: 2, Rows: 2, Cols: 3}) {
		t.Fatalf("Unexpected shape %s", vol.Shape)
	}

	if got := vol.At(1, 0, 2); got != 9 {
		t.Errorf("Expected 9 at (1, 0, 2), got %f", got)
	}

	if got := vol.SliceView(1)[5]; got != 12 {
		t.Errorf("Expected 12 at end of slice 1, got %f", got)
	}

	min, max := vol.MinMax()
	if min != 1 || max != 12 {
		t.Errorf("Expected min/max 1/12, got %f/%f", min, max)
	}

	if _, err := NewVolumeFromSlices([][]float64{{1, 2}, {1}}, 1, 2); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for short slice, got %v", err)
	}

	if _, err := NewVolumeFromSlices(nil, 2, 2); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume for no slices, got %v", err)
	}
}

// TestVolumeValidate checks the empty and inconsistent volume cases
func TestVolumeValidate(t *testing.T) {
	var nilVol *Volume
	if err := nilVol.Validate(); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume for nil volume, got %v", err)
	}

	if err := NewVolume(Shape{Slices: 0, Rows: 4, Cols: 4}).Validate(); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume for zero slices, got %v", err)
	}

	broken := &Volume{Shape: Shape{Slices: 1, Rows: 2, Cols: 2}, Data: make([]float64, 3)}
	if err := broken.Validate(); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for short data, got %v", err)
	}

	if err := NewVolume(Shape{Slices: 1, Rows: 1, Cols: 1}).Validate(); err != nil {
		t.Errorf("Expected 1x1x1 volume to be valid, got %v", err)
	}
}

// TestSpacingVoxelVolume verifies the mm³ product
func TestSpacingVoxelVolume(t *testing.T) {
	s := Spacing{Slice: 2, Row: 0.5, Col: 0.5}
	if got := s.VoxelVolume(); got != 0.5 {
		t.Errorf("Expected 0.5 mm³, got %f", got)
	}
}

// TestOverlayCounts verifies counting, cloning and clearing
func TestOverlayCounts(t *testing.T) {
	shape := Shape{Slices: 2, Rows: 3, Cols: 3}
	o := NewOverlay(shape)
	o.Set(0, 1, 1, 1)
	o.Set(1, 2, 2, 3)

	if o.Count() != 2 {
		t.Errorf("Expected 2 marked voxels, got %d", o.Count())
	}
	if o.SliceCount(1) != 1 {
		t.Errorf("Expected 1 marked voxel on slice 1, got %d", o.SliceCount(1))
	}

	c := o.Clone()
	o.Clear()
	if o.Count() != 0 {
		t.Errorf("Expected cleared overlay, got %d voxels", o.Count())
	}
	if c.Count() != 2 {
		t.Errorf("Clone should be independent, got %d voxels", c.Count())
	}

	if err := o.CopyFrom(c); err != nil {
		t.Fatalf("CopyFrom failed: %v", err)
	}
	if !o.Marked(1, 2, 2) {
		t.Error("Expected (1, 2, 2) to be marked after CopyFrom")
	}

	if err := o.CopyFrom(NewOverlay(Shape{Slices: 1, Rows: 3, Cols: 3})); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch, got %v", err)
	}
}

// TestPatchCoercion verifies that any representation is stored as 0/1
func TestPatchCoercion(t *testing.T) {
	p, err := PatchFromValues([][]float64{{0, 2.5}, {-1, 0}})
	if err != nil {
		t.Fatalf("PatchFromValues failed: %v", err)
	}
	want := []uint8{0, 1, 1, 0}
	for i, v := range want {
		if p.Data[i] != v {
			t.Errorf("Cell %d: expected %d, got %d", i, v, p.Data[i])
		}
	}

	b, err := PatchFromBools([][]bool{{true, false, true}})
	if err != nil {
		t.Fatalf("PatchFromBools failed: %v", err)
	}
	if b.Rows != 1 || b.Cols != 3 || b.Count() != 2 {
		t.Errorf("Unexpected bool patch %+v", b)
	}

	if _, err := PatchFromValues([][]int{{1, 2}, {3}}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for ragged grid, got %v", err)
	}
}

// TestRectWithin verifies containment checks
func TestRectWithin(t *testing.T) {
	tests := []struct {
		rect Rect
		want bool
	}{
		{Rect{Row: 0, Col: 0, Rows: 4, Cols: 4}, true},
		{Rect{Row: 1, Col: 1, Rows: 3, Cols: 3}, true},
		{Rect{Row: 2, Col: 0, Rows: 3, Cols: 1}, false},
		{Rect{Row: -1, Col: 0, Rows: 1, Cols: 1}, false},
		{Rect{Row: 0, Col: 0, Rows: 0, Cols: 1}, false},
	}

	for _, tt := range tests {
		if got := tt.rect.Within(4, 4); got != tt.want {
			t.Errorf("%s within 4x4: expected %v, got %v", tt.rect, tt.want, got)
		}
	}
}
