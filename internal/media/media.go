// Package media defines the collaborator contracts consumed by the pipeline
// and the batch executor (Encoder, Detector), the request types passed
// across them, and small helpers shared by every media-handling package.
package media

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/framevault/internal/planner"
)

// Type classifies a media file.
type Type string

const (
	TypeImage   Type = "image"
	TypeVideo   Type = "video"
	TypeUnknown Type = ""
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".m4v": true, ".webm": true, ".mts": true, ".m2ts": true,
}

// TypeOf classifies path by extension.
func TypeOf(path string) Type {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExtensions[ext]:
		return TypeImage
	case videoExtensions[ext]:
		return TypeVideo
	}
	return TypeUnknown
}

// AspectLabel returns a filename-safe aspect ratio label such as "16x9".
// Common ratios match within 0.1; anything else is reported as "WxH".
func AspectLabel(width, height int) string {
	if width <= 0 || height <= 0 {
		return "unknown"
	}
	ratio := float64(width) / float64(height)
	known := []struct {
		ratio float64
		label string
	}{
		{16.0 / 9.0, "16x9"},
		{9.0 / 16.0, "9x16"},
		{1.0, "1x1"},
		{4.0 / 3.0, "4x3"},
		{21.0 / 9.0, "21x9"},
		{2.35, "235x100"},
	}
	for _, k := range known {
		if math.Abs(ratio-k.ratio) < 0.1 {
			return k.label
		}
	}
	return fmt.Sprintf("%dx%d", width, height)
}

// Operation is the kind of work an Encoder performs.
type Operation string

const (
	OpTranscode     Operation = "transcode"
	OpClip          Operation = "clip"
	OpConcatenate   Operation = "concatenate"
	OpExtractFrame  Operation = "extract-frame"
	OpThumbnail     Operation = "thumbnail"
	OpCompressStill Operation = "compress-still"
)

// Segment is a time range of the source, in seconds.
type Segment struct {
	Start    float64
	Duration float64
}

// StillOptions controls image outputs (frames, thumbnails, compressed stills).
type StillOptions struct {
	Quality  int  // 1-100, JPEG only.
	MaxWidth int  // 0 keeps the source width.
	Optimize bool // JPEG only: optimal Huffman tables.
	Full444  bool // JPEG 4:4:4 chroma instead of 4:2:0.
}

// Request describes one Encoder invocation.
type Request struct {
	Op        Operation
	Source    string
	Dest      string
	Segments  []Segment             // OpClip uses one; OpConcatenate two or more.
	Timestamp float64               // OpExtractFrame and OpThumbnail.
	Plan      *planner.EncodePlan   // Video operations.
	Still     StillOptions          // Image operations.
	Metadata  map[string]string     // Container tags for video outputs.
	Timeout   time.Duration         // Required; zero is rejected.
	Progress  func(seconds float64) // Optional, called with encoded media time.
}

// TotalDuration is the summed length of all segments.
func (r Request) TotalDuration() float64 {
	var d float64
	for _, s := range r.Segments {
		d += s.Duration
	}
	return d
}

// Encoder performs one external encode. Failures are reported as
// *errors.ExternalToolError; a timeout is a failure.
type Encoder interface {
	Encode(ctx context.Context, req Request) error
}

// Boundary is one detected scene range.
type Boundary struct {
	Start      float64
	End        float64
	StartFrame int // Zero when the detector does not report frames.
	EndFrame   int
}

// DetectOptions tunes scene detection.
type DetectOptions struct {
	Threshold   float64 // 0-100 content-change score.
	MinSceneLen int     // Frames.
	FPS         float64 // Used to convert MinSceneLen to seconds.
	Duration    float64 // Media duration in seconds.
	Timeout     time.Duration
}

// Detector returns ordered scene boundaries. It must be deterministic for
// the same input and options. An empty result means no cuts were found.
type Detector interface {
	Detect(ctx context.Context, path string, opts DetectOptions) ([]Boundary, error)
}
