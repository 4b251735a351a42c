package segmentation

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

func checkerPatch(rows, cols int) models.Patch {
	p := models.NewPatch(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			p.Set(r, c, (r+c)%2 == 0)
		}
	}
	return p
}

// TestAppendIdempotentAndMonotonic checks the union semantics of Append
func TestAppendIdempotentAndMonotonic(t *testing.T) {
	shape := models.Shape{Slices: 3, Rows: 6, Cols: 6}
	overlay := models.NewOverlay(shape)
	overlay.Set(1, 2, 3, 1)
	overlay.Set(1, 0, 0, 1)
	before := overlay.Clone()

	anchor := Pixel{1, 1, 1}
	patch := checkerPatch(3, 4)

	if err := ApplyPatch(overlay, anchor, patch, Append); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	once := overlay.Clone()

	if err := ApplyPatch(overlay, anchor, patch, Append); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if !bytes.Equal(once.Data, overlay.Data) {
		t.Error("Appending twice differs from appending once")
	}

	for i, v := range before.Data {
		if v != 0 && overlay.Data[i] == 0 {
			t.Errorf("Append cleared voxel %d", i)
		}
	}
	if !overlay.Marked(1, 2, 3) {
		t.Error("Previously marked voxel (1, 2, 3) lost under a zero patch cell")
	}
	if overlay.Shape != shape {
		t.Errorf("Overlay shape changed to %s", overlay.Shape)
	}
}

// TestOverWriteThenErase checks that erasing clears exactly the target rectangle
func TestOverWriteThenErase(t *testing.T) {
	shape := models.Shape{Slices: 2, Rows: 8, Cols: 8}
	overlay := models.NewOverlay(shape)
	for i := range overlay.Data {
		overlay.Data[i] = 1
	}

	anchor := Pixel{1, 2, 3}

	if err := ApplyPatch(overlay, anchor, checkerPatch(3, 2), OverWrite); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	if overlay.Marked(1, 2, 4) {
		t.Error("OverWrite kept a voxel the patch cleared")
	}

	if err := ApplyPatch(overlay, anchor, ErasePatch(3, 2), OverWrite); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}

	for s := 0; s < shape.Slices; s++ {
		for r := 0; r < shape.Rows; r++ {
			for c := 0; c < shape.Cols; c++ {
				inside := s == 1 && r >= 2 && r < 5 && c >= 3 && c < 5
				if inside == overlay.Marked(s, r, c) {
					t.Errorf("Voxel (%d, %d, %d): inside=%v marked=%v", s, r, c, inside, overlay.Marked(s, r, c))
				}
			}
		}
	}
	if overlay.Count() != shape.Len()-6 {
		t.Errorf("Expected %d marked voxels, got %d", shape.Len()-6, overlay.Count())
	}
}

// TestApplyStoresZeroOne checks coercion of stored values
func TestApplyStoresZeroOne(t *testing.T) {
	overlay := models.NewOverlay(models.Shape{Slices: 1, Rows: 2, Cols: 2})
	patch := models.Patch{Rows: 2, Cols: 2, Data: []uint8{0, 7, 255, 1}}

	if err := ApplyPatch(overlay, Pixel{}, patch, OverWrite); err != nil {
		t.Fatalf("ApplyPatch failed: %v", err)
	}
	for i, v := range overlay.Data {
		if v > 1 {
			t.Errorf("Voxel %d stored %d, want 0 or 1", i, v)
		}
	}
	if overlay.Count() != 3 {
		t.Errorf("Expected 3 marked voxels, got %d", overlay.Count())
	}
}

// TestApplyFailuresLeaveOverlayUntouched checks every rejected write
func TestApplyFailuresLeaveOverlayUntouched(t *testing.T) {
	shape := models.Shape{Slices: 2, Rows: 5, Cols: 5}
	overlay := models.NewOverlay(shape)
	overlay.Set(0, 1, 1, 1)
	before := overlay.Clone()

	roi := models.Rect{Row: 1, Col: 1, Rows: 2, Cols: 3}
	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"wrong shape", func() error { return ApplyROI(overlay, 0, roi, checkerPatch(3, 3), Append) }, ErrShapeMismatch},
		{"inconsistent patch", func() error {
			return ApplyPatch(overlay, Pixel{}, models.Patch{Rows: 2, Cols: 2, Data: []uint8{1}}, Append)
		}, ErrShapeMismatch},
		{"past right edge", func() error { return ApplyPatch(overlay, Pixel{0, 0, 3}, checkerPatch(2, 3), OverWrite) }, ErrOutOfBounds},
		{"negative anchor", func() error { return ApplyPatch(overlay, Pixel{0, -1, 0}, checkerPatch(1, 1), OverWrite) }, ErrOutOfBounds},
		{"bad slice", func() error { return ApplyPatch(overlay, Pixel{2, 0, 0}, checkerPatch(1, 1), Append) }, ErrOutOfBounds},
		{"unknown mode", func() error { return ApplyPatch(overlay, Pixel{}, checkerPatch(1, 1), UpdateMode(9)) }, ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
			if !bytes.Equal(before.Data, overlay.Data) {
				t.Error("Overlay modified by a failed write")
			}
		})
	}

	if err := ApplyPatch(nil, Pixel{}, checkerPatch(1, 1), Append); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume for nil overlay, got %v", err)
	}
}
