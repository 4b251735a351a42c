package segmentation

import (
	"fmt"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// UpdateMode selects how a patch combines with the overlay it is written to.
type UpdateMode int

const (
	// OverWrite replaces the target rectangle with the patch.
	OverWrite UpdateMode = iota
	// Append ORs the patch into the target rectangle; it never clears a voxel.
	Append
)

func (m UpdateMode) String() string {
	switch m {
	case OverWrite:
		return "over_write"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ApplyPatch writes patch into overlay on slice anchor.Slice with its top-left
// corner at (anchor.Row, anchor.Col). Every check runs before the first write,
// so a failing call leaves the overlay untouched. Written values are 0 or 1.
func ApplyPatch(overlay *models.Overlay, anchor Pixel, patch models.Patch, mode UpdateMode) error {
	if overlay == nil || overlay.Shape.Empty() {
		return ErrEmptyVolume
	}
	if mode != OverWrite && mode != Append {
		return fmt.Errorf("update %s: %w", mode, ErrUnknownMode)
	}
	if !patch.Valid() || patch.Rows == 0 || patch.Cols == 0 {
		return fmt.Errorf("patch %dx%d with %d cells: %w", patch.Rows, patch.Cols, len(patch.Data), ErrShapeMismatch)
	}

	rect := models.Rect{Row: anchor.Row, Col: anchor.Col, Rows: patch.Rows, Cols: patch.Cols}
	shape := overlay.Shape
	if anchor.Slice < 0 || anchor.Slice >= shape.Slices || !rect.Within(shape.Rows, shape.Cols) {
		return fmt.Errorf("patch %s on slice %d of %s: %w", rect, anchor.Slice, shape, ErrOutOfBounds)
	}

	for r := 0; r < patch.Rows; r++ {
		for c := 0; c < patch.Cols; c++ {
			idx := shape.Index(anchor.Slice, anchor.Row+r, anchor.Col+c)
			v := patch.At(r, c)
			switch mode {
			case OverWrite:
				overlay.Data[idx] = boolToLabel(v != 0)
			case Append:
				overlay.Data[idx] = boolToLabel(v != 0 || overlay.Data[idx] != 0)
			}
		}
	}
	return nil
}

// ApplyROI writes patch into the rectangle rect of slice. The patch must have
// exactly the dimensions of rect.
func ApplyROI(overlay *models.Overlay, slice int, rect models.Rect, patch models.Patch, mode UpdateMode) error {
	if patch.Rows != rect.Rows || patch.Cols != rect.Cols {
		return fmt.Errorf("patch %dx%d for ROI %s: %w", patch.Rows, patch.Cols, rect, ErrShapeMismatch)
	}
	return ApplyPatch(overlay, Pixel{Slice: slice, Row: rect.Row, Col: rect.Col}, patch, mode)
}

// ErasePatch returns the all-zero patch used to erase a rows x cols rectangle
// with OverWrite.
func ErasePatch(rows, cols int) models.Patch {
	return models.NewPatch(rows, cols)
}

func boolToLabel(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
