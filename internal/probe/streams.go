package probe

import "strings"

// FPS returns the primary video frame rate, preferring r_frame_rate and
// falling back to avg_frame_rate. Zero when unknown.
func (p *ProbeResult) FPS() float64 {
	if p.PrimaryVideo == nil {
		return 0
	}
	if r := parseRate(p.PrimaryVideo.RFrameRate); r > 0 {
		return r
	}
	return parseRate(p.PrimaryVideo.AvgFrameRate)
}

// HDRType returns "hdr10" if the primary video stream has HDR color
// metadata (PQ or HLG transfer, or bt2020 primaries), otherwise "sdr".
func (p *ProbeResult) HDRType() string {
	if p.PrimaryVideo == nil {
		return "sdr"
	}
	switch p.PrimaryVideo.ColorTransfer {
	case "smpte2084", "arib-std-b67":
		return "hdr10"
	}
	if p.PrimaryVideo.ColorPrimaries == "bt2020" {
		return "hdr10"
	}
	return "sdr"
}

// IsInterlaced returns true if the primary video stream's field_order
// indicates interlaced content (tt, bb, tb, bt).
func (p *ProbeResult) IsInterlaced() bool {
	if p.PrimaryVideo == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(p.PrimaryVideo.FieldOrder)) {
	case "tt", "bb", "tb", "bt":
		return true
	}
	return false
}

// IsProRes reports whether the primary video stream is Apple ProRes.
func (p *ProbeResult) IsProRes() bool {
	return p.PrimaryVideo != nil && strings.Contains(strings.ToLower(p.PrimaryVideo.Codec), "prores")
}
