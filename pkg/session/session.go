// Package session holds the state of one segmentation session: the loaded
// volume, its overlay, the seed and the threshold. A State has a single owner
// and is not safe for concurrent use.
package session

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ziqiangxu/medical-image-viewer/internal/logger"
	"github.com/ziqiangxu/medical-image-viewer/internal/models"
	"github.com/ziqiangxu/medical-image-viewer/pkg/segmentation"
	"github.com/ziqiangxu/medical-image-viewer/pkg/volumeio"
)

// ErrNoThreshold is returned when an operation needs a threshold that was
// never set or estimated.
var ErrNoThreshold = segmentation.ErrNoThreshold

// Phase is the lifecycle stage of the overlay.
type Phase int

const (
	Unset Phase = iota
	Zeroed
	Populated
	LocallyEdited
	Cleared
)

func (p Phase) String() string {
	switch p {
	case Unset:
		return "unset"
	case Zeroed:
		return "zeroed"
	case Populated:
		return "populated"
	case LocallyEdited:
		return "locally_edited"
	case Cleared:
		return "cleared"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Summary reports the size of the current segmentation.
type Summary struct {
	Voxels int

	// VoxelSize is the volume of one voxel in mm³; zero when unknown
	VoxelSize float64

	VolumeMM3 float64
	VolumeCM3 float64
}

// State is the session container.
type State struct {
	files     []string
	volume    *models.Volume
	overlay   *models.Overlay
	seed      *segmentation.Pixel
	threshold *float64
	estimate  *segmentation.Estimate
	voxelSize float64
	phase     Phase

	logger zerolog.Logger
}

// New returns an empty session.
func New(log zerolog.Logger) *State {
	return &State{
		phase:  Unset,
		logger: logger.Component(log, "session"),
	}
}

// Load reads a series with loader and installs it. The voxel size comes
// from the first file when it carries spacing.
func (s *State) Load(loader *volumeio.Loader, files []string) error {
	sorted, vol, err := loader.LoadSeries(files)
	if err != nil {
		return err
	}
	return s.install(sorted, vol)
}

// LoadDir reads every supported file of dir with loader and installs it.
func (s *State) LoadDir(loader *volumeio.Loader, dir string) error {
	sorted, vol, err := loader.LoadDir(dir)
	if err != nil {
		return err
	}
	return s.install(sorted, vol)
}

func (s *State) install(sorted []string, vol *models.Volume) error {
	size := vol.Spacing.VoxelVolume()
	if size == 0 && volumeio.DetectKind(sorted[0]) == volumeio.KindDICOM {
		if v, err := volumeio.VoxelSize(sorted[0]); err == nil {
			size = v
		} else {
			s.logger.Warn().Err(err).Msg("voxel size unknown")
		}
	}
	return s.SetVolume(sorted, vol, size)
}

// SetVolume installs vol and replaces the overlay with zeros. The seed,
// threshold and estimate of a previous volume are dropped.
func (s *State) SetVolume(files []string, vol *models.Volume, voxelSize float64) error {
	if err := vol.Validate(); err != nil {
		return err
	}

	replacing := s.volume != nil
	s.files = append([]string(nil), files...)
	s.volume = vol
	s.overlay = models.NewOverlay(vol.Shape)
	s.seed = nil
	s.threshold = nil
	s.estimate = nil
	s.voxelSize = voxelSize

	if replacing {
		s.phase = Cleared
	} else {
		s.phase = Zeroed
	}

	s.logger.Info().
		Str("shape", vol.Shape.String()).
		Float64("voxel_size", voxelSize).
		Str("phase", s.phase.String()).
		Msg("volume set")
	return nil
}

// Files returns the files of the current volume in slice order.
func (s *State) Files() []string {
	return s.files
}

// Phase returns the lifecycle stage.
func (s *State) Phase() Phase {
	return s.phase
}

// VoxelSize returns the voxel volume in mm³.
func (s *State) VoxelSize() float64 {
	return s.voxelSize
}

// Volume returns the loaded volume.
func (s *State) Volume() (*models.Volume, error) {
	if s.volume == nil {
		return nil, segmentation.ErrEmptyVolume
	}
	return s.volume, nil
}

// Overlay returns the current overlay. It is shared with the session.
func (s *State) Overlay() (*models.Overlay, error) {
	if s.overlay == nil {
		return nil, segmentation.ErrEmptyVolume
	}
	return s.overlay, nil
}

// Seed returns the current seed.
func (s *State) Seed() (segmentation.Pixel, error) {
	if s.seed == nil {
		return segmentation.Pixel{}, fmt.Errorf("no seed picked: %w", segmentation.ErrInvalidSeed)
	}
	return *s.seed, nil
}

// SetSeed replaces the seed after checking it against the volume.
func (s *State) SetSeed(p segmentation.Pixel) error {
	if s.volume == nil {
		return segmentation.ErrEmptyVolume
	}
	if !p.In(s.volume.Shape) {
		return fmt.Errorf("seed %s outside %s: %w", p, s.volume.Shape, segmentation.ErrInvalidSeed)
	}
	s.seed = &p
	s.logger.Debug().Str("seed", p.String()).Msg("seed set")
	return nil
}

// SetThreshold fixes the threshold used by threshold based operations.
func (s *State) SetThreshold(t float64) {
	s.threshold = &t
}

// Threshold returns the current threshold.
func (s *State) Threshold() (float64, error) {
	if s.threshold == nil {
		return 0, ErrNoThreshold
	}
	return *s.threshold, nil
}

// LastEstimate returns the most recent estimate, if any.
func (s *State) LastEstimate() (segmentation.Estimate, bool) {
	if s.estimate == nil {
		return segmentation.Estimate{}, false
	}
	return *s.estimate, true
}

// Estimate derives a threshold from the seed and stores it.
func (s *State) Estimate(opts segmentation.EstimatorOptions) (segmentation.Estimate, error) {
	vol, seed, err := s.volumeAndSeed()
	if err != nil {
		return segmentation.Estimate{}, err
	}

	est, err := segmentation.EstimateThreshold(vol, seed, opts)
	if err != nil {
		return segmentation.Estimate{}, err
	}

	s.estimate = &est
	s.SetThreshold(est.Threshold)
	s.logger.Info().
		Float64("reference", est.Reference).
		Float64("mean", est.Stats.Mean).
		Float64("std", est.Stats.Std).
		Float64("threshold", est.Threshold).
		Msg("threshold estimated")
	return est, nil
}

// Run grows alg from the seed and replaces the overlay with the result.
func (s *State) Run(alg segmentation.Algorithm, opts segmentation.Options) (segmentation.Result, error) {
	return s.grow(alg, opts, segmentation.OverWrite)
}

// Merge grows alg from the seed and ORs the result into the overlay.
func (s *State) Merge(alg segmentation.Algorithm, opts segmentation.Options) (segmentation.Result, error) {
	return s.grow(alg, opts, segmentation.Append)
}

func (s *State) grow(alg segmentation.Algorithm, opts segmentation.Options, mode segmentation.UpdateMode) (segmentation.Result, error) {
	vol, seed, err := s.volumeAndSeed()
	if err != nil {
		return segmentation.Result{}, err
	}

	res, err := segmentation.Grow(vol, seed, alg, opts)
	if err != nil {
		return segmentation.Result{}, err
	}

	if mode == segmentation.OverWrite {
		if err := s.overlay.CopyFrom(res.Mask); err != nil {
			return segmentation.Result{}, err
		}
	} else {
		for i, v := range res.Mask.Data {
			if v != 0 {
				s.overlay.Data[i] = 1
			}
		}
	}
	s.phase = Populated

	s.logger.Info().
		Str("algorithm", alg.Name()).
		Str("mode", mode.String()).
		Int("voxels", res.Voxels).
		Int("marked", s.overlay.Count()).
		Msg("growth finished")
	return res, nil
}

// UpdateOverlay writes patch with its top-left corner at anchor.
func (s *State) UpdateOverlay(anchor segmentation.Pixel, patch models.Patch, mode segmentation.UpdateMode) error {
	if s.overlay == nil {
		return segmentation.ErrEmptyVolume
	}
	if err := segmentation.ApplyPatch(s.overlay, anchor, patch, mode); err != nil {
		return err
	}
	s.phase = LocallyEdited
	s.logger.Debug().
		Str("anchor", anchor.String()).
		Int("rows", patch.Rows).
		Int("cols", patch.Cols).
		Str("mode", mode.String()).
		Msg("overlay updated")
	return nil
}

// EraseROI clears rect on slice.
func (s *State) EraseROI(slice int, rect models.Rect) error {
	return s.applyROI(slice, rect, segmentation.ErasePatch(rect.Rows, rect.Cols), segmentation.OverWrite)
}

// SegmentROI marks the voxels of rect that pass the current threshold.
func (s *State) SegmentROI(slice int, rect models.Rect, polarity segmentation.Polarity) error {
	vol, err := s.Volume()
	if err != nil {
		return err
	}
	t, err := s.Threshold()
	if err != nil {
		return err
	}

	patch, err := segmentation.FineTuneByThreshold(vol, slice, rect, segmentation.Criterion{Threshold: t, Polarity: polarity})
	if err != nil {
		return err
	}
	return s.applyROI(slice, rect, patch, segmentation.Append)
}

// RefineROI marks the voxels of rect within k standard deviations of the
// voxels already segmented on slice.
func (s *State) RefineROI(slice int, rect models.Rect, k float64, polarity segmentation.Polarity) error {
	vol, err := s.Volume()
	if err != nil {
		return err
	}

	patch, err := segmentation.FineTuneAdaptive(vol, s.overlay, slice, rect, k, polarity)
	if err != nil {
		return err
	}
	return s.applyROI(slice, rect, patch, segmentation.Append)
}

func (s *State) applyROI(slice int, rect models.Rect, patch models.Patch, mode segmentation.UpdateMode) error {
	if s.overlay == nil {
		return segmentation.ErrEmptyVolume
	}
	if err := segmentation.ApplyROI(s.overlay, slice, rect, patch, mode); err != nil {
		return err
	}
	s.phase = LocallyEdited
	s.logger.Debug().
		Int("slice", slice).
		Str("roi", rect.String()).
		Str("mode", mode.String()).
		Msg("ROI applied")
	return nil
}

// RemoveSmallObjects drops connected objects of at most minSize voxels and
// returns how many voxels were removed.
func (s *State) RemoveSmallObjects(minSize int) (int, error) {
	if s.overlay == nil {
		return 0, segmentation.ErrEmptyVolume
	}

	before := s.overlay.Count()
	cleaned, kept, err := segmentation.RemoveSmallObjects(s.overlay, minSize)
	if err != nil {
		return 0, err
	}
	if err := s.overlay.CopyFrom(cleaned); err != nil {
		return 0, err
	}

	removed := before - s.overlay.Count()
	if removed > 0 {
		s.phase = LocallyEdited
	}
	s.logger.Info().
		Int("min_size", minSize).
		Int("objects", len(kept)).
		Int("removed", removed).
		Msg("small objects removed")
	return removed, nil
}

// Clear zeroes the overlay and drops the seed.
func (s *State) Clear() error {
	if s.overlay == nil {
		return segmentation.ErrEmptyVolume
	}
	s.overlay.Clear()
	s.seed = nil
	s.phase = Cleared
	s.logger.Info().Msg("overlay cleared")
	return nil
}

// Summary returns the size of the current segmentation.
func (s *State) Summary() (Summary, error) {
	if s.overlay == nil {
		return Summary{}, segmentation.ErrEmptyVolume
	}
	n := s.overlay.Count()
	mm3 := float64(n) * s.voxelSize
	return Summary{
		Voxels:    n,
		VoxelSize: s.voxelSize,
		VolumeMM3: mm3,
		VolumeCM3: mm3 / 1000,
	}, nil
}

func (s *State) volumeAndSeed() (*models.Volume, segmentation.Pixel, error) {
	vol, err := s.Volume()
	if err != nil {
		return nil, segmentation.Pixel{}, err
	}
	seed, err := s.Seed()
	if err != nil {
		return nil, segmentation.Pixel{}, err
	}
	return vol, seed, nil
}
