package segmentation

import (
	"errors"

	"github.com/ziqiangxu/medical-image-viewer/internal/models"
)

var (
	// ErrInvalidSeed is returned when the seed lies outside the volume or is unset.
	ErrInvalidSeed = errors.New("invalid seed")

	// ErrEmptyVolume is returned for a nil or zero-dimension volume.
	ErrEmptyVolume = models.ErrEmptyVolume

	// ErrShapeMismatch is returned when a mask does not match its target grid.
	ErrShapeMismatch = models.ErrShapeMismatch

	// ErrInsufficientData is returned when statistics are requested over a
	// region without any nonzero intensity.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrOutOfBounds is returned when a coordinate or rectangle leaves the grid.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrNoThreshold is returned when a threshold-driven operation has no
	// threshold set or estimated.
	ErrNoThreshold = errors.New("threshold not set")

	// ErrUnknownMode is returned for an unrecognised algorithm, strictness,
	// polarity or update mode.
	ErrUnknownMode = errors.New("unknown mode")
)
