package ffmpeg

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/planner"
)

// preamble is shared by every command. -y is safe because every output
// path is reserved by the caller before the command runs.
func preamble() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

// BuildTranscode renders a full-length re-encode of in to out.
func BuildTranscode(plan *planner.EncodePlan, in, out string, meta map[string]string) []string {
	args := preamble()

	// --- Hardware decode ---
	if plan.HWAccel != "" {
		args = append(args, "-hwaccel", plan.HWAccel)
	}

	// --- Input ---
	args = append(args, "-i", in)

	return appendEncode(args, plan, meta, out)
}

// BuildClip renders seg of in to out. Input seeking keeps long masters
// fast; the re-encode makes the cut frame accurate.
func BuildClip(plan *planner.EncodePlan, in, out string, seg media.Segment, meta map[string]string) []string {
	args := preamble()
	if plan.HWAccel != "" {
		args = append(args, "-hwaccel", plan.HWAccel)
	}
	args = append(args,
		"-ss", formatSeconds(seg.Start),
		"-i", in,
		"-t", formatSeconds(seg.Duration),
	)
	return appendEncode(args, plan, meta, out)
}

// BuildConcat joins the segments listed in listFile without re-encoding.
// Every segment must share codec parameters.
func BuildConcat(listFile, out string, meta map[string]string) []string {
	args := preamble()
	args = append(args,
		"-f", "concat", "-safe", "0",
		"-i", listFile,
		"-c", "copy",
	)
	args = appendMetadata(args, meta)
	return append(args, "-movflags", "+faststart", out)
}

// BuildExtractFrame writes the frame at ts as a lossless image. rgb24
// avoids color matrix surprises when converting from YUV sources.
func BuildExtractFrame(in, out string, ts float64, maxWidth int) []string {
	args := preamble()
	args = append(args,
		"-ss", formatSeconds(ts),
		"-i", in,
		"-frames:v", "1",
	)
	if maxWidth > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale='min(%d,iw)':-2", maxWidth))
	}
	return append(args,
		"-compression_level", "0",
		"-pix_fmt", "rgb24",
		out,
	)
}

// BuildThumbnail writes a small JPEG of the frame at ts.
func BuildThumbnail(in, out string, ts float64, width, quality int) []string {
	args := preamble()
	return append(args,
		"-ss", formatSeconds(ts),
		"-i", in,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", width),
		"-q:v", strconv.Itoa(JPEGQScale(quality)),
		out,
	)
}

// BuildCompressStill re-encodes an image as JPEG.
func BuildCompressStill(in, out string, opts media.StillOptions) []string {
	args := preamble()
	args = append(args, "-i", in)
	if opts.MaxWidth > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale='min(%d,iw)':-2", opts.MaxWidth))
	}
	pixFmt := "yuvj420p"
	if opts.Full444 {
		pixFmt = "yuvj444p"
	}
	huffman := "default"
	if opts.Optimize {
		huffman = "optimal"
	}
	return append(args,
		"-frames:v", "1",
		"-c:v", "mjpeg",
		"-pix_fmt", pixFmt,
		"-huffman", huffman,
		"-q:v", strconv.Itoa(JPEGQScale(opts.Quality)),
		out,
	)
}

// Overlay describes a social composite: the source scaled to cover an
// area of a canvas and placed on a background.
type Overlay struct {
	Source       string
	Video        bool
	Background   string // Image path; empty uses Color.
	Color        string
	CanvasWidth  int
	CanvasHeight int
	X, Y         int
	Width        int
	Height       int
}

// BuildOverlay renders a composite. Images produce a single frame; videos
// loop the background for the duration of the source and keep its audio.
func BuildOverlay(o Overlay, plan *planner.EncodePlan, out string, still media.StillOptions) []string {
	args := preamble()

	// --- Background input ---
	switch {
	case o.Background != "" && o.Video:
		args = append(args, "-loop", "1", "-i", o.Background)
	case o.Background != "":
		args = append(args, "-i", o.Background)
	default:
		args = append(args, "-f", "lavfi", "-i",
			fmt.Sprintf("color=c=%s:s=%dx%d", o.Color, o.CanvasWidth, o.CanvasHeight))
	}

	// --- Source input ---
	args = append(args, "-i", o.Source)

	// --- Cover-fit the source into the area, then place it ---
	graph := fmt.Sprintf(
		"[0:v]scale=%d:%d,setsar=1[bg];"+
			"[1:v]scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1[fg];"+
			"[bg][fg]overlay=%d:%d:shortest=1[out]",
		o.CanvasWidth, o.CanvasHeight,
		o.Width, o.Height, o.Width, o.Height,
		o.X, o.Y,
	)
	args = append(args, "-filter_complex", graph, "-map", "[out]")

	if !o.Video {
		args = append(args, "-frames:v", "1")
		// Non-JPEG image outputs use the encoder ffmpeg infers from the extension.
		if isJPEG(out) {
			args = append(args,
				"-c:v", "mjpeg",
				"-pix_fmt", "yuvj420p",
				"-q:v", strconv.Itoa(JPEGQScale(still.Quality)),
			)
		}
		return append(args, out)
	}

	args = append(args, "-map", "1:a?")
	args = appendVideoCodec(args, plan)
	args = appendAudio(args, plan.Audio)
	args = append(args, plan.ContainerOpts...)
	return append(args, out)
}

// appendEncode adds the shared encode tail: filters, codecs, color tags,
// metadata, container opts and the output path.
func appendEncode(args []string, plan *planner.EncodePlan, meta map[string]string, out string) []string {
	// --- Video filter chain ---
	if plan.VideoFilters != "" {
		args = append(args, "-vf", plan.VideoFilters)
	}

	// --- Stream maps ---
	args = append(args, "-map", "0:v:0")
	if !plan.Audio.NoAudio {
		args = append(args, "-map", "0:a:0?")
	}
	args = append(args, "-dn", "-sn")

	// --- Codecs ---
	args = appendVideoCodec(args, plan)
	args = appendAudio(args, plan.Audio)

	// --- Color metadata (HDR sources) ---
	args = append(args, plan.ColorOpts...)

	// --- Metadata ---
	args = appendMetadata(args, meta)

	// --- Container opts (e.g. -movflags +faststart) ---
	args = append(args, plan.ContainerOpts...)

	return append(args, out)
}

// appendVideoCodec adds the encoder-specific arguments for the video stream.
func appendVideoCodec(args []string, plan *planner.EncodePlan) []string {
	if plan.IsNVENC() {
		args = append(args,
			"-c:v", planner.CodecNVENC,
			"-preset", plan.Preset,
			"-rc", "vbr",
			"-cq", strconv.Itoa(plan.CQ),
			"-b:v", "0",
		)
	} else {
		args = append(args,
			"-c:v", planner.CodecX264,
			"-crf", strconv.Itoa(plan.CRF),
			"-preset", plan.Preset,
		)
	}
	if plan.Profile != "" {
		args = append(args, "-profile:v", plan.Profile)
	}
	if plan.Level != "" {
		args = append(args, "-level", plan.Level)
	}
	return append(args, "-pix_fmt", plan.PixFmt)
}

// appendAudio adds audio codec arguments.
func appendAudio(args []string, a planner.AudioPlan) []string {
	if a.NoAudio {
		return append(args, "-an")
	}
	return append(args,
		"-c:a", a.Codec,
		"-b:a", a.Bitrate,
		"-ar", strconv.Itoa(a.SampleRate),
		"-ac", strconv.Itoa(a.Channels),
	)
}

// appendMetadata adds -metadata pairs in key order so commands are stable.
func appendMetadata(args []string, meta map[string]string) []string {
	keys := make([]string, 0, len(meta))
	for k, v := range meta {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-metadata", k+"="+meta[k])
	}
	return args
}

// JPEGQScale maps a 1-100 JPEG quality to ffmpeg's mjpeg -q:v scale,
// where 2 is best and 31 is worst.
func JPEGQScale(quality int) int {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return 2 + ((100-quality)*29+49)/99
}

func isJPEG(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
