package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/media"
)

var rePtsTime = regexp.MustCompile(`pts_time:([0-9]+(?:\.[0-9]+)?)`)

// SceneDetector implements media.Detector with ffmpeg's scene change
// score. The threshold is given on a 0-100 scale and mapped to the
// filter's 0-1 score.
type SceneDetector struct {
	run *Runner
}

// NewSceneDetector returns a detector executing through run.
func NewSceneDetector(run *Runner) *SceneDetector {
	return &SceneDetector{run: run}
}

// Detect returns ordered boundaries covering [0, opts.Duration], or nil
// when no cut passes the threshold.
func (d *SceneDetector) Detect(ctx context.Context, path string, opts media.DetectOptions) ([]media.Boundary, error) {
	if opts.Duration <= 0 {
		return nil, errors.NewValidationError("duration", "scene detection needs the media duration").WithValue(opts.Duration)
	}
	score := opts.Threshold / 100
	args := []string{
		"-hide_banner", "-nostdin", "-loglevel", "info",
		"-i", path,
		"-an", "-sn", "-dn",
		"-filter:v", fmt.Sprintf("select='gt(scene,%.4f)',showinfo", score),
		"-f", "null", "-",
	}

	var stderr bytes.Buffer
	if err := d.run.Run(ctx, Job{
		Op:      "detect-scenes",
		Args:    args,
		Timeout: opts.Timeout,
		Stderr:  &stderr,
	}); err != nil {
		return nil, err
	}

	cuts := ParseCuts(stderr.String())
	return Boundaries(cuts, opts), nil
}

// ParseCuts extracts the cut timestamps printed by showinfo, sorted and
// de-duplicated.
func ParseCuts(showinfo string) []float64 {
	var cuts []float64
	for _, m := range rePtsTime.FindAllStringSubmatch(showinfo, -1) {
		t, err := strconv.ParseFloat(m[1], 64)
		if err == nil && t > 0 {
			cuts = append(cuts, t)
		}
	}
	sort.Float64s(cuts)
	out := cuts[:0]
	for i, c := range cuts {
		if i == 0 || c != cuts[i-1] {
			out = append(out, c)
		}
	}
	return out
}

// Boundaries turns cut points into contiguous ranges, dropping any cut that
// would create a scene shorter than MinSceneLen frames.
func Boundaries(cuts []float64, opts media.DetectOptions) []media.Boundary {
	minLen := 0.0
	if opts.FPS > 0 {
		minLen = float64(opts.MinSceneLen) / opts.FPS
	}

	var kept []float64
	prev := 0.0
	for _, c := range cuts {
		if c-prev < minLen || opts.Duration-c < minLen || c >= opts.Duration {
			continue
		}
		kept = append(kept, c)
		prev = c
	}
	if len(kept) == 0 {
		return nil
	}

	points := append([]float64{0}, kept...)
	points = append(points, opts.Duration)
	bounds := make([]media.Boundary, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		bounds = append(bounds, media.Boundary{
			Start:      points[i],
			End:        points[i+1],
			StartFrame: toFrame(points[i], opts.FPS),
			EndFrame:   toFrame(points[i+1], opts.FPS),
		})
	}
	return bounds
}

func toFrame(t, fps float64) int {
	if fps <= 0 {
		return 0
	}
	return int(math.Round(t * fps))
}
