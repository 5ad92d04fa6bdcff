package planner

// Video encoder names as passed to ffmpeg -c:v.
const (
	CodecX264  = "libx264"
	CodecNVENC = "h264_nvenc"
)

// Caps reports what the local ffmpeg build can do. Filled by
// ffmpeg.ProbeCaps and passed in so planning stays pure.
type Caps struct {
	NVENC bool // h264_nvenc listed by ffmpeg -encoders
	CUDA  bool // cuda listed by ffmpeg -hwaccels
}

// Purpose selects quality overrides for a particular output.
type Purpose int

const (
	PurposeProxy   Purpose = iota // Optimized master; preset CRF.
	PurposeClip                   // Scene and group clips; preset CRF.
	PurposeHQ                     // R&D high-res video; fixed CRF 17.
	PurposeWeb                    // R&D compressed video; fixed CRF 23.
	PurposeOverlay                // Social composite; preset CRF.
)

// EncodePlan holds every decision needed to render one video encode.
type EncodePlan struct {
	VideoCodec string // CodecX264 or CodecNVENC
	HWAccel    string // "cuda" or ""

	// Quality. CRF drives libx264, CQ drives NVENC VBR.
	CRF         int
	CQ          int
	Preset      string // x264 preset or NVENC p1-p7
	Profile     string
	Level       string
	PixFmt      string
	QualityNote string

	VideoFilters string   // comma-joined filter chain (may be empty)
	ColorOpts    []string // -color_trc, -color_primaries, -colorspace pairs

	Audio AudioPlan

	ContainerOpts []string // e.g. -movflags +faststart
}

// IsNVENC reports whether the plan uses the hardware encoder.
func (p *EncodePlan) IsNVENC() bool { return p.VideoCodec == CodecNVENC }

// AudioPlan describes the audio track of an output.
type AudioPlan struct {
	NoAudio    bool
	Codec      string // "aac"
	Bitrate    string // e.g. "320k"
	SampleRate int
	Channels   int
}
