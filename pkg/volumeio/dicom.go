package volumeio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

// decodeDICOM parses one DICOM file into a slice. Its order is the
// SliceLocation, falling back to the z of ImagePositionPatient and then to
// the InstanceNumber.
func decodeDICOM(path string) decodedSlice {
	s := decodedSlice{path: path}

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		s.err = fmt.Errorf("%s: %w: %v", path, ErrCorruptFile, err)
		return s
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil || el.Value.ValueType() != dicom.PixelData {
		s.err = fmt.Errorf("%s: %w: no pixel data", path, ErrCorruptFile)
		return s
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		s.err = fmt.Errorf("%s: %w: no frames", path, ErrCorruptFile)
		return s
	}
	s.data, s.rows, s.cols, err = frameIntensities(ds, info.Frames[0])
	if err != nil {
		s.err = fmt.Errorf("%s: %w: %v", path, ErrCorruptFile, err)
		return s
	}
	applyRescale(ds, s.data)

	s.order = sliceOrder(ds)
	if sp, err := spacingOf(ds); err == nil {
		s.spacing = sp
	}
	return s
}

// frameIntensities returns the stored values of f in row-major order. Native
// samples are read directly so that signed data (PixelRepresentation 1) is
// sign-extended from BitsStored before the rescale.
func frameIntensities(ds dicom.Dataset, f *frame.Frame) ([]float64, int, int, error) {
	if f.IsEncapsulated() {
		img, err := f.GetImage()
		if err != nil {
			return nil, 0, 0, err
		}
		data, rows, cols := imageToIntensity(img)
		return data, rows, cols, nil
	}

	nf, err := f.GetNativeFrame()
	if err != nil {
		return nil, 0, 0, err
	}
	if nf.SamplesPerPixel() != 1 {
		return nil, 0, 0, fmt.Errorf("%d samples per pixel, only greyscale is supported", nf.SamplesPerPixel())
	}

	signed := false
	if v, ok := intOf(ds, tag.PixelRepresentation); ok {
		signed = v == 1
	}
	bits, ok := intOf(ds, tag.BitsStored)
	if !ok || bits <= 0 || bits > nf.BitsPerSample() {
		bits = nf.BitsPerSample()
	}

	var data []float64
	switch raw := nf.RawDataSlice().(type) {
	case []uint8:
		data = samplesToFloat(raw, signed, bits)
	case []uint16:
		data = samplesToFloat(raw, signed, bits)
	case []uint32:
		data = samplesToFloat(raw, signed, bits)
	case []int:
		data = samplesToFloat(raw, signed, bits)
	default:
		return nil, 0, 0, fmt.Errorf("unsupported sample type %T", raw)
	}

	rows, cols := nf.Rows(), nf.Cols()
	if len(data) != rows*cols {
		return nil, 0, 0, fmt.Errorf("%d samples for a %dx%d frame", len(data), rows, cols)
	}
	return data, rows, cols, nil
}

type rawSample interface {
	~uint8 | ~uint16 | ~uint32 | ~int
}

func samplesToFloat[I rawSample](raw []I, signed bool, bits int) []float64 {
	out := make([]float64, len(raw))
	if !signed || bits <= 0 || bits > 32 {
		for i, v := range raw {
			out[i] = float64(v)
		}
		return out
	}

	mask := uint64(1)<<bits - 1
	sign := uint64(1) << (bits - 1)
	for i, v := range raw {
		u := uint64(v) & mask
		if u&sign != 0 {
			out[i] = float64(int64(u) - int64(mask) - 1)
		} else {
			out[i] = float64(u)
		}
	}
	return out
}

func applyRescale(ds dicom.Dataset, data []float64) {
	slope, okSlope := floatOf(ds, tag.RescaleSlope, 0)
	intercept, okIntercept := floatOf(ds, tag.RescaleIntercept, 0)
	if !okSlope {
		slope = 1
	}
	if !okIntercept {
		intercept = 0
	}
	if slope == 1 && intercept == 0 {
		return
	}
	for i, v := range data {
		data[i] = v*slope + intercept
	}
}

func sliceOrder(ds dicom.Dataset) float64 {
	if v, ok := floatOf(ds, tag.SliceLocation, 0); ok {
		return v
	}
	if v, ok := floatOf(ds, tag.ImagePositionPatient, 2); ok {
		return v
	}
	if v, ok := floatOf(ds, tag.InstanceNumber, 0); ok {
		return v
	}
	return math.Inf(1)
}

// stringsOf returns the string values of t, if present.
func stringsOf(ds dicom.Dataset, t tag.Tag) ([]string, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value.ValueType() != dicom.Strings {
		return nil, false
	}
	return dicom.MustGetStrings(el.Value), true
}

// intOf returns the first value of an integer element.
func intOf(ds dicom.Dataset, t tag.Tag) (int, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value.ValueType() != dicom.Ints {
		return 0, false
	}
	vals := dicom.MustGetInts(el.Value)
	if len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// floatOf parses the idx-th value of a decimal string element.
func floatOf(ds dicom.Dataset, t tag.Tag, idx int) (float64, bool) {
	vals, ok := stringsOf(ds, t)
	if !ok || idx >= len(vals) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(vals[idx]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func spacingOf(ds dicom.Dataset) (models.Spacing, error) {
	row, okRow := floatOf(ds, tag.PixelSpacing, 0)
	col, okCol := floatOf(ds, tag.PixelSpacing, 1)
	if !okRow || !okCol {
		return models.Spacing{}, fmt.Errorf("PixelSpacing: %w", ErrNoSpacing)
	}

	slice, ok := floatOf(ds, tag.SpacingBetweenSlices, 0)
	if !ok {
		slice, ok = floatOf(ds, tag.SliceThickness, 0)
	}
	if !ok {
		return models.Spacing{}, fmt.Errorf("SpacingBetweenSlices: %w", ErrNoSpacing)
	}
	return models.Spacing{Slice: slice, Row: row, Col: col}, nil
}

// ReadSpacing returns the voxel spacing of a DICOM file in mm.
func ReadSpacing(path string) (models.Spacing, error) {
	if DetectKind(path) != KindDICOM {
		return models.Spacing{}, fmt.Errorf("%s is not DICOM: %w", path, ErrNoSpacing)
	}

	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return models.Spacing{}, fmt.Errorf("%s: %w: %v", path, ErrCorruptFile, err)
	}
	return spacingOf(ds)
}

// VoxelSize returns the volume of one voxel of path in mm³.
func VoxelSize(path string) (float64, error) {
	sp, err := ReadSpacing(path)
	if err != nil {
		return 0, err
	}
	return sp.VoxelVolume(), nil
}
