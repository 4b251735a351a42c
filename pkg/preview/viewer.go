// Package preview renders slices of a volume with the segmentation overlay
// tinted on top and writes them to image files.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// DefaultOpacity is the alpha of overlay tints.
const DefaultOpacity = 50

// LookUpTable returns the overlay colours indexed by label. Label 0 is
// transparent; labels 1, 2 and 3 are red, green and blue.
func LookUpTable(opacity uint8) []color.NRGBA {
	return []color.NRGBA{
		{0, 0, 0, 0},
		{255, 0, 0, opacity},
		{0, 255, 0, opacity},
		{0, 0, 255, opacity},
	}
}

// Viewer extracts 2D views of a volume along its three axes:
// "z" is a slice, "y" a fixed row and "x" a fixed column.
type Viewer struct {
	volume  *models.Volume
	overlay *models.Overlay

	lut   []color.NRGBA
	scale int

	// intensity window mapped to 0-255
	lo, hi float64
}

// NewViewer creates a viewer over vol. overlay may be nil.
func NewViewer(vol *models.Volume, overlay *models.Overlay) (*Viewer, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if overlay != nil && overlay.Shape != vol.Shape {
		return nil, fmt.Errorf("overlay %s for volume %s: %w", overlay.Shape, vol.Shape, models.ErrShapeMismatch)
	}

	lo, hi := vol.MinMax()
	return &Viewer{
		volume:  vol,
		overlay: overlay,
		lut:     LookUpTable(DefaultOpacity),
		scale:   1,
		lo:      lo,
		hi:      hi,
	}, nil
}

// SetOpacity changes the alpha of the overlay tint.
func (v *Viewer) SetOpacity(alpha uint8) {
	v.lut = LookUpTable(alpha)
}

// SetScale sets the integer upsampling factor of extracted slices.
func (v *Viewer) SetScale(n int) error {
	if n < 1 {
		return fmt.Errorf("scale must be positive, got %d", n)
	}
	v.scale = n
	return nil
}

// SetWindow maps intensities in [lo, hi] to the full grey range.
func (v *Viewer) SetWindow(lo, hi float64) error {
	if hi <= lo {
		return fmt.Errorf("invalid window [%g, %g]", lo, hi)
	}
	v.lo, v.hi = lo, hi
	return nil
}

// axisLen returns the number of positions along axis.
func (v *Viewer) axisLen(axis string) (int, error) {
	shape := v.volume.Shape
	switch strings.ToLower(axis) {
	case "x":
		return shape.Cols, nil
	case "y":
		return shape.Rows, nil
	case "z":
		return shape.Slices, nil
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// ExtractSlice renders the plane at position along axis.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	n, err := v.axisLen(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside axis %s of length %d", position, axis, n)
	}

	shape := v.volume.Shape
	var w, h int
	var index func(x, y int) int

	switch strings.ToLower(axis) {
	case "x":
		// slices across, rows down
		w, h = shape.Slices, shape.Rows
		index = func(x, y int) int { return shape.Index(x, y, position) }
	case "y":
		// columns across, slices down
		w, h = shape.Cols, shape.Slices
		index = func(x, y int) int { return shape.Index(y, position, x) }
	default:
		w, h = shape.Cols, shape.Rows
		index = func(x, y int) int { return shape.Index(position, y, x) }
	}

	base := image.NewRGBA(image.Rect(0, 0, w, h))
	tint := image.NewNRGBA(base.Bounds())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := index(x, y)
			g := v.grey(v.volume.Data[idx])
			base.SetRGBA(x, y, color.RGBA{g, g, g, 255})
			if v.overlay != nil {
				if label := v.overlay.Data[idx]; label != 0 {
					tint.SetNRGBA(x, y, v.lut[1+int(label-1)%(len(v.lut)-1)])
				}
			}
		}
	}
	draw.Draw(base, base.Bounds(), tint, image.Point{}, draw.Over)

	if v.scale == 1 {
		return base, nil
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w*v.scale, h*v.scale))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), base, base.Bounds(), draw.Src, nil)
	return scaled, nil
}

func (v *Viewer) grey(value float64) uint8 {
	if v.hi <= v.lo {
		return 0
	}
	t := (value - v.lo) / (v.hi - v.lo)
	return uint8(math.Round(math.Max(0, math.Min(1, t)) * 255))
}

// SaveSlice saves an extracted slice as PNG, or JPEG for .jpg and .jpeg names.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// SaveSliceSequence extracts and saves every plane along axis as
// slice_<axis>_NNN.<format>.
func (v *Viewer) SaveSliceSequence(axis, outputDir, format string) error {
	n, err := v.axisLen(axis)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < n; pos++ {
		if err := v.savePlane(axis, pos, outputDir, format); err != nil {
			return err
		}
	}
	return nil
}

// SaveMarkedSlices saves the z planes holding overlay voxels and returns the
// written paths.
func (v *Viewer) SaveMarkedSlices(outputDir, format string) ([]string, error) {
	if v.overlay == nil {
		return nil, nil
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var written []string
	for s := 0; s < v.volume.Shape.Slices; s++ {
		if v.overlay.SliceCount(s) == 0 {
			continue
		}
		if err := v.savePlane("z", s, outputDir, format); err != nil {
			return written, err
		}
		written = append(written, planeName(outputDir, "z", s, format))
	}
	return written, nil
}

func (v *Viewer) savePlane(axis string, pos int, outputDir, format string) error {
	img, err := v.ExtractSlice(axis, pos)
	if err != nil {
		return err
	}
	return v.SaveSlice(img, planeName(outputDir, axis, pos, format))
}

func planeName(dir, axis string, pos int, format string) string {
	if format == "" {
		format = "png"
	}
	return filepath.Join(dir, fmt.Sprintf("slice_%s_%03d.%s", strings.ToLower(axis), pos, format))
}
