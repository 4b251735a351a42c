package segmentation

import (
	"fmt"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

func checkROI(vol *models.Volume, slice int, rect models.Rect) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	if slice < 0 || slice >= vol.Shape.Slices || !rect.Within(vol.Shape.Rows, vol.Shape.Cols) {
		return fmt.Errorf("ROI %s on slice %d of %s: %w", rect, slice, vol.Shape, ErrOutOfBounds)
	}
	return nil
}

// FineTuneByThreshold marks the voxels of the ROI that satisfy crit.
func FineTuneByThreshold(vol *models.Volume, slice int, rect models.Rect, crit Criterion) (models.Patch, error) {
	if err := checkROI(vol, slice, rect); err != nil {
		return models.Patch{}, err
	}

	patch := models.NewPatch(rect.Rows, rect.Cols)
	for r := 0; r < rect.Rows; r++ {
		for c := 0; c < rect.Cols; c++ {
			patch.Set(r, c, crit.Accept(vol.At(slice, rect.Row+r, rect.Col+c)))
		}
	}
	return patch, nil
}

// FineTuneAdaptive thresholds the ROI at k standard deviations from the mean
// of the voxels already segmented on the same slice.
func FineTuneAdaptive(vol *models.Volume, overlay *models.Overlay, slice int, rect models.Rect, k float64, polarity Polarity) (models.Patch, error) {
	if err := checkROI(vol, slice, rect); err != nil {
		return models.Patch{}, err
	}
	if overlay == nil || overlay.Shape != vol.Shape {
		return models.Patch{}, fmt.Errorf("overlay for volume %s: %w", vol.Shape, ErrShapeMismatch)
	}

	size := vol.Shape.Rows * vol.Shape.Cols
	labels := overlay.Data[slice*size : (slice+1)*size]
	data := vol.SliceView(slice)
	values := make([]float64, 0)
	for i, l := range labels {
		if l != 0 {
			values = append(values, data[i])
		}
	}

	st, err := ComputeStats(values)
	if err != nil {
		return models.Patch{}, fmt.Errorf("segmented voxels on slice %d: %w", slice, err)
	}
	return FineTuneByThreshold(vol, slice, rect, Criterion{Threshold: st.Threshold(k, polarity), Polarity: polarity})
}
