package session

import (
	"errors"

	"github.com/ziqiangxu/medical-image-viewer/pkg/segmentation"
	"github.com/ziqiangxu/medical-image-viewer/pkg/volumeio"
)

const (
	// MsgCheckInputs is shown for every seed, threshold or volume precondition failure.
	MsgCheckInputs = "Please check the seed, the threshold and that a volume is loaded."

	// MsgReselectFiles is shown when the input files cannot be loaded.
	MsgReselectFiles = "The selected files could not be loaded. Please select valid DICOM or image files."
)

// UserMessage maps err to the text shown to the user. It returns the empty
// string for nil and the error text for anything unexpected.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, volumeio.ErrLoad), errors.Is(err, volumeio.ErrCorruptFile):
		return MsgReselectFiles
	case errors.Is(err, segmentation.ErrInvalidSeed),
		errors.Is(err, segmentation.ErrEmptyVolume),
		errors.Is(err, segmentation.ErrInsufficientData),
		errors.Is(err, ErrNoThreshold):
		return MsgCheckInputs
	default:
		return err.Error()
	}
}
