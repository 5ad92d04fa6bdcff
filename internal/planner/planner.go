package planner

import (
	"fmt"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/probe"
)

// nvencPreset is the highest quality NVENC preset.
const nvencPreset = "p7"

// BuildPlan produces an EncodePlan from the preset, the hardware preference
// and probe data. pr may be nil when the source has not been probed (the
// plan then assumes progressive SDR video with audio).
//
// Flow:
//  1. Pick the encoder (NVENC when preferred and available, else libx264)
//  2. Resolve quality for the purpose
//  3. Build the video filter chain and color tags
//  4. Build the audio plan
func BuildPlan(p config.Preset, hw config.HardwarePreference, caps Caps, pr *probe.ProbeResult, purpose Purpose) (*EncodePlan, error) {
	plan := &EncodePlan{
		Profile:       p.Video.Profile,
		Level:         p.Video.Level,
		PixFmt:        p.Video.PixFmt,
		ContainerOpts: []string{"-movflags", "+faststart"},
	}

	// --- 1. Encoder ---
	switch hw {
	case config.HardwareNVENC:
		if !caps.NVENC {
			return nil, fmt.Errorf("hardware preference nvenc but ffmpeg has no h264_nvenc encoder")
		}
		plan.VideoCodec = CodecNVENC
	case config.HardwareAuto:
		if caps.NVENC {
			plan.VideoCodec = CodecNVENC
		} else {
			plan.VideoCodec = CodecX264
		}
	default:
		plan.VideoCodec = CodecX264
	}
	if plan.IsNVENC() && caps.CUDA {
		plan.HWAccel = "cuda"
	}

	// --- 2. Quality ---
	q := ResolveQuality(p.Video, purpose)
	plan.CRF = q.CRF
	plan.CQ = q.CRF
	plan.QualityNote = q.Note
	if plan.IsNVENC() {
		plan.Preset = nvencPreset
	} else {
		plan.Preset = p.Video.Preset
	}

	// --- 3. Filters ---
	plan.VideoFilters = BuildVideoFilter(pr)
	plan.ColorOpts = BuildColorOpts(pr)

	// --- 4. Audio ---
	a, err := BuildAudioPlan(p.Audio, pr)
	if err != nil {
		return nil, err
	}
	plan.Audio = a
	return plan, nil
}
