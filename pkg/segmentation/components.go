package segmentation

import (
	"fmt"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// Component is one 26-connected object of an overlay.
type Component struct {
	Label  int
	Voxels int

	// Seed is the first voxel of the component in row-major order
	Seed Pixel
}

// LabelComponents finds the 26-connected components of the marked voxels.
// The returned label grid holds 0 for background and Component.Label otherwise.
func LabelComponents(overlay *models.Overlay) ([]int, []Component, error) {
	if overlay == nil || overlay.Shape.Empty() {
		return nil, nil, ErrEmptyVolume
	}

	shape := overlay.Shape
	plane := shape.Rows * shape.Cols
	labels := make([]int, shape.Len())
	var comps []Component
	var queue []int

	for start, v := range overlay.Data {
		if v == 0 || labels[start] != 0 {
			continue
		}

		label := len(comps) + 1
		labels[start] = label
		queue = append(queue[:0], start)
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
				if overlay.Data[idx] != 0 && labels[idx] == 0 {
					labels[idx] = label
					queue = append(queue, idx)
				}
			}
		}

		rem := start % plane
		comps = append(comps, Component{
			Label:  label,
			Voxels: len(queue),
			Seed:   Pixel{Slice: start / plane, Row: rem / shape.Cols, Col: rem % shape.Cols},
		})
	}
	return labels, comps, nil
}

// RemoveSmallObjects returns a copy of overlay keeping only the components
// with more than minSize voxels, along with the kept components.
func RemoveSmallObjects(overlay *models.Overlay, minSize int) (*models.Overlay, []Component, error) {
	if minSize < 0 {
		return nil, nil, fmt.Errorf("negative minimum object size %d", minSize)
	}

	labels, comps, err := LabelComponents(overlay)
	if err != nil {
		return nil, nil, err
	}

	keep := make(map[int]bool, len(comps))
	var kept []Component
	for _, c := range comps {
		if c.Voxels > minSize {
			keep[c.Label] = true
			kept = append(kept, c)
		}
	}

	out := models.NewOverlay(overlay.Shape)
	for i, l := range labels {
		if l != 0 && keep[l] {
			out.Data[i] = 1
		}
	}
	return out, kept, nil
}
