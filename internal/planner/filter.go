package planner

import (
	"strings"

	"github.com/backmassage/framevault/internal/probe"
)

// BuildVideoFilter constructs the comma-joined ffmpeg video filter chain.
// Interlaced sources are deinterlaced; odd dimensions are rounded down to
// even values because yuv420p requires them.
//
// Returns an empty string when no filters are needed.
func BuildVideoFilter(pr *probe.ProbeResult) string {
	if pr == nil || pr.PrimaryVideo == nil {
		return ""
	}
	var filters []string

	if pr.IsInterlaced() {
		filters = append(filters, "yadif=mode=send_frame:parity=auto:deint=interlaced")
	}

	v := pr.PrimaryVideo
	if v.Width%2 != 0 || v.Height%2 != 0 {
		filters = append(filters, "scale=trunc(iw/2)*2:trunc(ih/2)*2")
	}

	return strings.Join(filters, ",")
}

// BuildColorOpts passes HDR color metadata through to the output so
// players do not misinterpret wide-gamut masters.
func BuildColorOpts(pr *probe.ProbeResult) []string {
	if pr == nil || pr.HDRType() != "hdr10" {
		return nil
	}

	v := pr.PrimaryVideo
	var opts []string
	if v.ColorTransfer != "" {
		opts = append(opts, "-color_trc", v.ColorTransfer)
	}
	if v.ColorPrimaries != "" {
		opts = append(opts, "-color_primaries", v.ColorPrimaries)
	}
	if v.ColorSpace != "" {
		opts = append(opts, "-colorspace", v.ColorSpace)
	}
	return opts
}
