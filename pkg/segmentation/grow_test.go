package segmentation

import (
	"errors"
	"testing"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// TestGrowVolumeCube grows the 27-voxel cube and nothing of the background
func TestGrowVolumeCube(t *testing.T) {
	seed := Pixel{5, 5, 5}
	vol := createCubeVolume(10, 100, 200, seed, 1)

	mask, n, err := GrowVolume(vol, seed, Criterion{Threshold: 150})
	if err != nil {
		t.Fatalf("GrowVolume failed: %v", err)
	}
	if n != 27 {
		t.Errorf("Expected 27 voxels, got %d", n)
	}
	if mask.Count() != 27 {
		t.Errorf("Expected 27 marked voxels in mask, got %d", mask.Count())
	}
	if mask.Shape != vol.Shape {
		t.Errorf("Mask shape %s differs from volume shape %s", mask.Shape, vol.Shape)
	}
	for s := 4; s <= 6; s++ {
		for r := 4; r <= 6; r++ {
			for c := 4; c <= 6; c++ {
				if !mask.Marked(s, r, c) {
					t.Errorf("Cube voxel (%d, %d, %d) not grown", s, r, c)
				}
			}
		}
	}
}

// TestGrowVolumeDiagonal verifies that 26-connectivity crosses diagonal contacts
func TestGrowVolumeDiagonal(t *testing.T) {
	vol := models.NewVolume(models.Shape{Slices: 3, Rows: 3, Cols: 3})
	vol.Set(0, 0, 0, 10)
	vol.Set(1, 1, 1, 10)
	vol.Set(2, 2, 2, 10)

	_, n, err := GrowVolume(vol, Pixel{0, 0, 0}, Criterion{Threshold: 5})
	if err != nil {
		t.Fatalf("GrowVolume failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected the diagonal chain of 3 voxels, got %d", n)
	}
}

// TestGrowInvalidSeed checks that seeds outside the volume are rejected
func TestGrowInvalidSeed(t *testing.T) {
	vol := createFilledVolume(models.Shape{Slices: 3, Rows: 3, Cols: 3}, 1)
	bad := []Pixel{{-1, 0, 0}, {3, 0, 0}, {0, -1, 0}, {0, 0, 3}}

	for _, seed := range bad {
		if _, _, err := GrowVolume(vol, seed, Criterion{}); !errors.Is(err, ErrInvalidSeed) {
			t.Errorf("GrowVolume(%s): expected ErrInvalidSeed, got %v", seed, err)
		}
		if _, err := GrowSlice(vol, seed, Criterion{}); !errors.Is(err, ErrInvalidSeed) {
			t.Errorf("GrowSlice(%s): expected ErrInvalidSeed, got %v", seed, err)
		}
	}

	if _, err := GrowSlice(models.NewVolume(models.Shape{}), Pixel{}, Criterion{}); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume, got %v", err)
	}
}

// TestGrowSliceConnectedAndContainsSeed checks the region shape for several thresholds
func TestGrowSliceConnectedAndContainsSeed(t *testing.T) {
	vol := models.NewVolume(models.Shape{Slices: 1, Rows: 12, Cols: 12})
	// two blobs of equal brightness separated by a dark gap
	fillBox(vol, 0, 0, 1, 4, 1, 4, 200)
	fillBox(vol, 0, 0, 7, 10, 7, 10, 200)
	// a gradient ring around the first blob
	fillBox(vol, 0, 0, 0, 0, 0, 5, 120)

	seed := Pixel{0, 2, 2}
	for _, threshold := range []float64{50, 100, 150, 200, 250} {
		region, err := GrowSlice(vol, seed, Criterion{Threshold: threshold})
		if err != nil {
			t.Fatalf("GrowSlice(%f) failed: %v", threshold, err)
		}
		if !region.Contains(seed.Row, seed.Col) {
			t.Errorf("Threshold %f: region does not contain the seed", threshold)
		}
		if !isConnected8(region) {
			t.Errorf("Threshold %f: region is not 8-connected", threshold)
		}
		if threshold > 0 && region.Contains(8, 8) {
			t.Errorf("Threshold %f: region leaked into the second blob", threshold)
		}
	}
}

// TestGrowSliceSeedIncludedUnconditionally checks the documented seed policy
func TestGrowSliceSeedIncludedUnconditionally(t *testing.T) {
	vol := createFilledVolume(models.Shape{Slices: 1, Rows: 5, Cols: 5}, 10)

	region, err := GrowSlice(vol, Pixel{0, 2, 2}, Criterion{Threshold: 100})
	if err != nil {
		t.Fatalf("GrowSlice failed: %v", err)
	}
	if region.Count != 1 || !region.Contains(2, 2) {
		t.Errorf("Expected the single-voxel region {seed}, got %d voxels", region.Count)
	}
}

// TestGrowSliceMonotonic checks that a lower threshold grows a superset
func TestGrowSliceMonotonic(t *testing.T) {
	rows, cols := 16, 16
	vol := models.NewVolume(models.Shape{Slices: 1, Rows: rows, Cols: cols})
	// radial ramp: brightest in the middle
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			dr, dc := r-8, c-8
			vol.Set(0, r, c, float64(300-(dr*dr+dc*dc)*3+(r*7+c*3)%11))
		}
	}

	seed := Pixel{0, 8, 8}
	thresholds := []float64{0, 50, 100, 150, 200, 250, 280}
	var prev SliceRegion
	for i, threshold := range thresholds {
		region, err := GrowSlice(vol, seed, Criterion{Threshold: threshold})
		if err != nil {
			t.Fatalf("GrowSlice failed: %v", err)
		}
		if i > 0 {
			for idx, in := range region.Mask {
				if in && !prev.Mask[idx] {
					t.Fatalf("Threshold %f grew voxel %d not in region of threshold %f", threshold, idx, thresholds[i-1])
				}
			}
			if region.Count > prev.Count {
				t.Errorf("Threshold %f: %d voxels, more than %d at lower threshold", threshold, region.Count, prev.Count)
			}
		}
		prev = region
	}
}

// TestGrowSliceDarker verifies the darker polarity
func TestGrowSliceDarker(t *testing.T) {
	vol := createFilledVolume(models.Shape{Slices: 1, Rows: 6, Cols: 6}, 500)
	fillBox(vol, 0, 0, 1, 2, 1, 3, 50)

	region, err := GrowSlice(vol, Pixel{0, 1, 1}, Criterion{Threshold: 100, Polarity: Darker})
	if err != nil {
		t.Fatalf("GrowSlice failed: %v", err)
	}
	if region.Count != 6 {
		t.Errorf("Expected 6 dark voxels, got %d", region.Count)
	}
}

// TestSliceRegionCentroid verifies the centroid and the empty-region error
func TestSliceRegionCentroid(t *testing.T) {
	vol := models.NewVolume(models.Shape{Slices: 1, Rows: 10, Cols: 10})
	fillBox(vol, 0, 0, 2, 4, 6, 8, 1)

	region, err := GrowSlice(vol, Pixel{0, 3, 7}, Criterion{Threshold: 1})
	if err != nil {
		t.Fatalf("GrowSlice failed: %v", err)
	}
	row, col, err := region.Centroid()
	if err != nil {
		t.Fatalf("Centroid failed: %v", err)
	}
	if row != 3 || col != 7 {
		t.Errorf("Expected centroid (3, 7), got (%f, %f)", row, col)
	}

	if _, _, err := (SliceRegion{Rows: 2, Cols: 2, Mask: make([]bool, 4)}).Centroid(); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData for empty region, got %v", err)
	}
}
