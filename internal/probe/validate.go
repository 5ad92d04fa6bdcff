package probe

import (
	"fmt"

	"github.com/backmassage/framevault/internal/errors"
)

// MaxFPS is the highest frame rate accepted for a master.
const MaxFPS = 120

// ValidateMaster checks that pr describes a usable master video: a video
// stream with positive dimensions, a positive duration and a frame rate in
// (0, 120]. When requireProRes is set the codec must be ProRes.
func ValidateMaster(pr *ProbeResult, requireProRes bool) error {
	if pr.PrimaryVideo == nil {
		return errors.NewValidationError("video", "no video stream found")
	}
	if pr.Width() <= 0 || pr.Height() <= 0 {
		return errors.NewValidationError("dimensions", "width and height must be positive").
			WithValue(fmt.Sprintf("%dx%d", pr.Width(), pr.Height()))
	}
	if pr.Duration() <= 0 {
		return errors.NewValidationError("duration", "duration must be positive").WithValue(pr.Duration())
	}
	if fps := pr.FPS(); fps <= 0 || fps > MaxFPS {
		return errors.NewValidationError("fps", fmt.Sprintf("frame rate must be in (0, %d]", MaxFPS)).WithValue(fps)
	}
	if requireProRes && !pr.IsProRes() {
		return errors.NewValidationError("codec", "master must be ProRes").WithValue(pr.PrimaryVideo.Codec)
	}
	return nil
}
