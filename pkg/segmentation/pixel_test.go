package segmentation

import (
	"errors"
	"testing"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// TestNeighbors3DCorners verifies that corner pixels get fewer than 26 in-bounds neighbours
func TestNeighbors3DCorners(t *testing.T) {
	shape := models.Shape{Slices: 4, Rows: 5, Cols: 6}
	corners := []Pixel{
		{0, 0, 0}, {0, 0, 5}, {0, 4, 0}, {0, 4, 5},
		{3, 0, 0}, {3, 0, 5}, {3, 4, 0}, {3, 4, 5},
	}

	for _, p := range corners {
		neighbors := Neighbors3D(p, shape)
		if len(neighbors) >= 26 {
			t.Errorf("Corner %s: expected fewer than 26 neighbours, got %d", p, len(neighbors))
		}
		if len(neighbors) != 7 {
			t.Errorf("Corner %s: expected 7 neighbours, got %d", p, len(neighbors))
		}
		for _, n := range neighbors {
			if !n.In(shape) {
				t.Errorf("Corner %s: neighbour %s outside %s", p, n, shape)
			}
			if n == p {
				t.Errorf("Corner %s: neighbourhood contains the pixel itself", p)
			}
		}
	}
}

// TestNeighborsInterior verifies the full neighbourhood sizes
func TestNeighborsInterior(t *testing.T) {
	shape := models.Shape{Slices: 3, Rows: 3, Cols: 3}
	center := Pixel{1, 1, 1}

	if n := len(Neighbors3D(center, shape)); n != 26 {
		t.Errorf("Expected 26 neighbours in 3D, got %d", n)
	}

	n2 := Neighbors2D(center, shape)
	if len(n2) != 8 {
		t.Errorf("Expected 8 neighbours in 2D, got %d", len(n2))
	}
	for _, n := range n2 {
		if n.Slice != center.Slice {
			t.Errorf("2D neighbour %s left slice %d", n, center.Slice)
		}
	}

	if n := len(Neighbors2D(Pixel{0, 0, 0}, shape)); n != 3 {
		t.Errorf("Expected 3 neighbours at 2D corner, got %d", n)
	}

	// single-slice volume: no neighbours above or below
	flat := models.Shape{Slices: 1, Rows: 3, Cols: 3}
	if n := len(Neighbors3D(Pixel{0, 1, 1}, flat)); n != 8 {
		t.Errorf("Expected 8 neighbours in a single-slice volume, got %d", n)
	}
}

// TestSample verifies sampling and out-of-bounds errors
func TestSample(t *testing.T) {
	vol := models.NewVolume(models.Shape{Slices: 2, Rows: 2, Cols: 2})
	vol.Set(1, 0, 1, 42)

	v, err := Sample(vol, Pixel{1, 0, 1})
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}
	if v != 42 {
		t.Errorf("Expected 42, got %f", v)
	}

	for _, p := range []Pixel{{-1, 0, 0}, {2, 0, 0}, {0, 2, 0}, {0, 0, -1}} {
		if _, err := Sample(vol, p); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("Sample(%s): expected ErrOutOfBounds, got %v", p, err)
		}
	}

	if _, err := Sample(nil, Pixel{}); !errors.Is(err, ErrEmptyVolume) {
		t.Errorf("Expected ErrEmptyVolume for nil volume, got %v", err)
	}

	values, err := SampleNeighbors3D(vol, Pixel{0, 0, 0})
	if err != nil {
		t.Fatalf("SampleNeighbors3D failed: %v", err)
	}
	if len(values) != 7 {
		t.Errorf("Expected 7 neighbour values, got %d", len(values))
	}
}
