// Package volumeio loads slice series from disk into a models.Volume.
//
// Two kinds of series are supported: DICOM files, ordered by their acquisition
// position, and 2D images (JPEG, PNG, TIFF), ordered by the number embedded in
// their file names. A series must be homogeneous and every slice must have the
// same dimensions. Loading is all or nothing: on failure no partial volume is
// returned.
package volumeio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

var (
	// ErrLoad wraps every failure to produce a volume.
	ErrLoad = errors.New("failed to load volume")

	// ErrCorruptFile marks a file that cannot be read or decoded.
	ErrCorruptFile = errors.New("corrupt or unreadable file")

	// ErrNoSpacing is returned when a file carries no voxel spacing.
	ErrNoSpacing = errors.New("no voxel spacing")
)

// Kind is the file family of a series.
type Kind int

const (
	KindUnknown Kind = iota
	KindDICOM
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindDICOM:
		return "dicom"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// decodedSlice is one file turned into intensities.
type decodedSlice struct {
	idx     int
	path    string
	rows    int
	cols    int
	data    []float64
	order   float64
	spacing models.Spacing
	err     error
}

// Loader decodes series with a bounded number of workers.
type Loader struct {
	Workers int
	Logger  zerolog.Logger
}

// NewLoader returns a loader using every CPU.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{Workers: runtime.NumCPU(), Logger: logger}
}

// LoadSeries loads files as one volume. It returns the files in slice order.
func LoadSeries(files []string) ([]string, *models.Volume, error) {
	return NewLoader(zerolog.Nop()).LoadSeries(files)
}

// LoadDir loads every supported file of dir as one volume.
func LoadDir(dir string) ([]string, *models.Volume, error) {
	return NewLoader(zerolog.Nop()).LoadDir(dir)
}

// LoadDir loads every supported file of dir as one volume.
func (l *Loader) LoadDir(dir string) ([]string, *models.Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if DetectKind(path) != KindUnknown {
			files = append(files, path)
		}
	}

	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: no DICOM or image files in %s", ErrLoad, dir)
	}
	return l.LoadSeries(files)
}

// LoadSeries loads files as one volume. It returns the files in slice order.
func (l *Loader) LoadSeries(files []string) ([]string, *models.Volume, error) {
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: no files", ErrLoad)
	}

	kind, err := seriesKind(files)
	if err != nil {
		return nil, nil, err
	}

	slices, err := l.decodeAll(files, kind)
	if err != nil {
		return nil, nil, err
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].order != slices[j].order {
			return slices[i].order < slices[j].order
		}
		return slices[i].path < slices[j].path
	})

	rows, cols := slices[0].rows, slices[0].cols
	sorted := make([]string, len(slices))
	data := make([][]float64, len(slices))
	for i, s := range slices {
		if s.rows != rows || s.cols != cols {
			return nil, nil, fmt.Errorf("%w: %s is %dx%d, expected %dx%d: %w",
				ErrLoad, s.path, s.rows, s.cols, rows, cols, models.ErrShapeMismatch)
		}
		sorted[i] = s.path
		data[i] = s.data
	}

	vol, err := models.NewVolumeFromSlices(data, rows, cols)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if kind == KindDICOM {
		vol.Spacing = slices[0].spacing
	}

	l.Logger.Info().
		Str("kind", kind.String()).
		Int("slices", vol.Shape.Slices).
		Int("rows", rows).
		Int("cols", cols).
		Msg("volume loaded")

	return sorted, vol, nil
}

// decodeAll decodes files in parallel and reports the first failure in input
// order.
func (l *Loader) decodeAll(files []string, kind Kind) ([]decodedSlice, error) {
	workers := l.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	jobs := make(chan int)
	results := make(chan decodedSlice)

	for w := 0; w < workers; w++ {
		go func() {
			for idx := range jobs {
				var s decodedSlice
				if kind == KindDICOM {
					s = decodeDICOM(files[idx])
				} else {
					s = decodeImage(files[idx])
				}
				s.idx = idx
				results <- s
			}
		}()
	}

	go func() {
		for i := range files {
			jobs <- i
		}
		close(jobs)
	}()

	out := make([]decodedSlice, len(files))
	for completed := 0; completed < len(files); completed++ {
		res := <-results
		out[res.idx] = res
		l.Logger.Debug().
			Str("file", res.path).
			Int("done", completed+1).
			Int("total", len(files)).
			Msg("slice decoded")
	}

	for _, s := range out {
		if s.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, s.err)
		}
	}
	return out, nil
}

func seriesKind(files []string) (Kind, error) {
	kind := KindUnknown
	for _, f := range files {
		k := DetectKind(f)
		if k == KindUnknown {
			return KindUnknown, fmt.Errorf("%w: unsupported file %s", ErrLoad, f)
		}
		if kind != KindUnknown && k != kind {
			return KindUnknown, fmt.Errorf("%w: mixed %s and %s files", ErrLoad, kind, k)
		}
		kind = k
	}
	return kind, nil
}

// DetectKind classifies path by extension, falling back to the DICOM preamble
// for files without a known extension.
func DetectKind(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if imageExtensions[ext] {
		return KindImage
	}
	if ext == ".dcm" || ext == ".dicom" {
		return KindDICOM
	}
	if hasDICOMPreamble(path) {
		return KindDICOM
	}
	return KindUnknown
}

func hasDICOMPreamble(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 132)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return false
	}
	return string(buf[128:]) == "DICM"
}
