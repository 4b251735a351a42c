package segmentation

import (
	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// createCubeVolume creates a size^3 volume filled with background except for a
// cube of edge 2*half+1 centred on center, filled with value
func createCubeVolume(size int, background, value float64, center Pixel, half int) *models.Volume {
	vol := models.NewVolume(models.Shape{Slices: size, Rows: size, Cols: size})
	for i := range vol.Data {
		vol.Data[i] = background
	}
	fillBox(vol, center.Slice-half, center.Slice+half, center.Row-half, center.Row+half, center.Col-half, center.Col+half, value)
	return vol
}

// fillBox sets every voxel of the inclusive box to value
func fillBox(vol *models.Volume, s0, s1, r0, r1, c0, c1 int, value float64) {
	for s := s0; s <= s1; s++ {
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				vol.Set(s, r, c, value)
			}
		}
	}
}

// createFilledVolume creates a volume where every voxel has the same value
func createFilledVolume(shape models.Shape, value float64) *models.Volume {
	vol := models.NewVolume(shape)
	for i := range vol.Data {
		vol.Data[i] = value
	}
	return vol
}

// isConnected8 checks that the region forms a single 8-connected component
func isConnected8(region SliceRegion) bool {
	if region.Count == 0 {
		return true
	}
	pixels := region.Pixels()
	seen := make(map[int]bool)
	queue := []Pixel{pixels[0]}
	seen[pixels[0].Row*region.Cols+pixels[0].Col] = true
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range offsets2D {
			r, c := p.Row+d[0], p.Col+d[1]
			if region.Contains(r, c) && !seen[r*region.Cols+c] {
				seen[r*region.Cols+c] = true
				queue = append(queue, Pixel{Slice: p.Slice, Row: r, Col: c})
			}
		}
	}
	return len(seen) == region.Count
}
