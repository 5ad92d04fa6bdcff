package probe

import (
	"context"
	"strconv"
)

// Source is anything that can probe a file. *Prober and the badger-backed
// probe cache both satisfy it.
type Source interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename       string            `json:"filename"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       float64           `json:"duration"`
	Size           int64             `json:"size"`
	BitRate        int64             `json:"bit_rate"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index          int    `json:"index"`
	Codec          string `json:"codec"`
	CodecLongName  string `json:"codec_long_name"`
	Profile        string `json:"profile"`
	PixFmt         string `json:"pix_fmt"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	BitRate        int64  `json:"bit_rate"`
	NbFrames       int64  `json:"nb_frames"`
	FieldOrder     string `json:"field_order"`
	ColorTransfer  string `json:"color_transfer"`
	ColorPrimaries string `json:"color_primaries"`
	ColorSpace     string `json:"color_space"`
	IsAttachedPic  bool   `json:"is_attached_pic"`
	RFrameRate     string `json:"r_frame_rate"`
	AvgFrameRate   string `json:"avg_frame_rate"`
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index         int    `json:"index"`
	Codec         string `json:"codec"`
	Channels      int    `json:"channels"`
	ChannelLayout string `json:"channel_layout"`
	SampleRate    int    `json:"sample_rate"`
	BitRate       int64  `json:"bit_rate"`
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
// It is JSON-serializable so the probe cache can store it.
type ProbeResult struct {
	Format       FormatInfo    `json:"format"`
	PrimaryVideo *VideoStream  `json:"primary_video,omitempty"`
	AudioStreams []AudioStream `json:"audio_streams,omitempty"`
}

// Width of the primary video stream, or 0.
func (p *ProbeResult) Width() int {
	if p.PrimaryVideo == nil {
		return 0
	}
	return p.PrimaryVideo.Width
}

// Height of the primary video stream, or 0.
func (p *ProbeResult) Height() int {
	if p.PrimaryVideo == nil {
		return 0
	}
	return p.PrimaryVideo.Height
}

// Duration in seconds from the container.
func (p *ProbeResult) Duration() float64 { return p.Format.Duration }

// HasAudio reports whether at least one audio stream exists.
func (p *ProbeResult) HasAudio() bool { return len(p.AudioStreams) > 0 }

// VideoBitRate returns the primary video stream bitrate in bits/sec,
// falling back to the format-level bitrate when the stream value is
// unavailable or zero.
func (p *ProbeResult) VideoBitRate() int64 {
	if p.PrimaryVideo != nil && p.PrimaryVideo.BitRate > 0 {
		return p.PrimaryVideo.BitRate
	}
	return p.Format.BitRate
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	if p.Width() <= 0 || p.Height() <= 0 {
		return "unknown"
	}
	return strconv.Itoa(p.Width()) + "x" + strconv.Itoa(p.Height())
}
