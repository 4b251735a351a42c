package volumeio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"

	_ "golang.org/x/image/tiff"
)

// decodeImage loads a 2D image as one slice. Its order is the number embedded
// in the file name.
func decodeImage(path string) decodedSlice {
	s := decodedSlice{path: path, order: float64(extractNumber(path))}

	img, err := loadImage(path)
	if err != nil {
		s.err = fmt.Errorf("%s: %w: %v", path, ErrCorruptFile, err)
		return s
	}

	s.data, s.rows, s.cols = imageToIntensity(img)
	return s
}

// loadImage decodes a JPEG, PNG or TIFF file.
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// extractNumber returns the digits of the file name read as one number, or 0
// when it has none.
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base[:len(base)-len(filepath.Ext(base))] {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// imageToIntensity converts img to row-major grey levels on the 16-bit scale.
func imageToIntensity(img image.Image) (data []float64, rows, cols int) {
	bounds := img.Bounds()
	cols = bounds.Dx()
	rows = bounds.Dy()
	data = make([]float64, rows*cols)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
			data[y*cols+x] = float64(g.Y)
		}
	}
	return data, rows, cols
}
