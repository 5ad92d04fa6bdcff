// Package scene holds the scene and group value types produced by
// detection and consumed by selection, clip generation and still
// extraction.
package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/media"
)

// Scene is one chronological segment of the master.
type Scene struct {
	SceneNumber   int     `json:"scene_number"`
	StartFrame    int     `json:"start_frame"`
	EndFrame      int     `json:"end_frame"`
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	Duration      float64 `json:"duration"`
	ThumbnailPath string  `json:"thumbnail_path,omitempty"`
}

// Midpoint is the timestamp stills are taken from.
func (s Scene) Midpoint() float64 {
	return s.StartTime + (s.EndTime-s.StartTime)/2
}

// Segment returns the scene as an encoder segment.
func (s Scene) Segment() media.Segment {
	return media.Segment{Start: s.StartTime, Duration: s.EndTime - s.StartTime}
}

func (s Scene) String() string {
	return fmt.Sprintf("scene %d [%.2fs-%.2fs]", s.SceneNumber, s.StartTime, s.EndTime)
}

// MediaInfo is what detection needs to know about the analysed file.
type MediaInfo struct {
	Duration float64
	FPS      float64
}

// DetectOptions are the user-facing detection knobs.
type DetectOptions struct {
	Threshold   float64
	MinSceneLen int
}

// Detect runs d over path and numbers the resulting scenes. When the
// detector finds no cut, one scene spanning the whole file is returned, so
// the result always holds at least one scene.
func Detect(ctx context.Context, d media.Detector, path string, opts DetectOptions, info MediaInfo, timeout time.Duration) ([]Scene, error) {
	if info.Duration <= 0 {
		return nil, errors.NewValidationError("duration", "cannot detect scenes without a positive duration").WithValue(info.Duration)
	}
	bounds, err := d.Detect(ctx, path, media.DetectOptions{
		Threshold:   opts.Threshold,
		MinSceneLen: opts.MinSceneLen,
		FPS:         info.FPS,
		Duration:    info.Duration,
		Timeout:     timeout,
	})
	if err != nil {
		return nil, err
	}
	if len(bounds) == 0 {
		bounds = []media.Boundary{{Start: 0, End: info.Duration}}
	}
	return FromBoundaries(bounds, info.FPS)
}

// FromBoundaries converts ordered detector output into numbered scenes.
// Frames are derived from time when the detector left them at zero.
func FromBoundaries(bounds []media.Boundary, fps float64) ([]Scene, error) {
	scenes := make([]Scene, 0, len(bounds))
	for i, b := range bounds {
		s := Scene{
			SceneNumber: i + 1,
			StartFrame:  b.StartFrame,
			EndFrame:    b.EndFrame,
			StartTime:   b.Start,
			EndTime:     b.End,
			Duration:    b.End - b.Start,
		}
		if s.EndFrame == 0 && fps > 0 {
			s.StartFrame = int(math.Round(b.Start * fps))
			s.EndFrame = int(math.Round(b.End * fps))
		}
		scenes = append(scenes, s)
	}
	if err := Validate(scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// Validate checks numbering, ordering and that every scene has a
// positive length.
func Validate(scenes []Scene) error {
	if len(scenes) == 0 {
		return errors.NewValidationError("scenes", "at least one scene is required")
	}
	for i, s := range scenes {
		if s.SceneNumber != i+1 {
			return errors.NewValidationError("scene_number", fmt.Sprintf("expected %d at position %d", i+1, i)).WithValue(s.SceneNumber)
		}
		if s.StartTime >= s.EndTime {
			return errors.NewValidationError("scene", "start time must be before end time").WithValue(s.String())
		}
		if i > 0 && s.StartTime < scenes[i-1].StartTime {
			return errors.NewValidationError("scene", "scenes are not in chronological order").WithValue(s.String())
		}
	}
	return nil
}

// AtTime returns the scene containing t. The end of the last scene is
// inclusive.
func AtTime(scenes []Scene, t float64) (Scene, bool) {
	i := sort.Search(len(scenes), func(i int) bool { return scenes[i].EndTime > t })
	if i < len(scenes) && scenes[i].StartTime <= t {
		return scenes[i], true
	}
	if n := len(scenes); n > 0 && t == scenes[n-1].EndTime {
		return scenes[n-1], true
	}
	return Scene{}, false
}

// Merge joins consecutive scenes into one and renumbers the list.
// Thumbnails of the merged scenes are dropped.
func Merge(scenes []Scene, numbers []int) ([]Scene, error) {
	if len(numbers) < 2 {
		return nil, errors.NewValidationError("merge", "at least two scenes are required").WithValue(numbers)
	}
	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1]+1 {
			return nil, errors.NewValidationError("merge", "only adjacent scenes can be merged").WithValue(numbers)
		}
	}
	first, last := sorted[0], sorted[len(sorted)-1]
	if first < 1 || last > len(scenes) {
		return nil, errors.NewValidationError("merge", "unknown scene number").WithValue(numbers)
	}

	out := make([]Scene, 0, len(scenes)-(last-first))
	out = append(out, scenes[:first-1]...)
	a, b := scenes[first-1], scenes[last-1]
	out = append(out, Scene{
		StartFrame: a.StartFrame,
		EndFrame:   b.EndFrame,
		StartTime:  a.StartTime,
		EndTime:    b.EndTime,
		Duration:   b.EndTime - a.StartTime,
	})
	out = append(out, scenes[last:]...)
	for i := range out {
		out[i].SceneNumber = i + 1
	}
	return out, nil
}

// Export serializes scenes for storage in a session.
func Export(scenes []Scene) ([]byte, error) {
	if scenes == nil {
		scenes = []Scene{}
	}
	return json.Marshal(scenes)
}

// Import is the inverse of Export.
func Import(data []byte) ([]Scene, error) {
	var scenes []Scene
	if err := json.Unmarshal(data, &scenes); err != nil {
		return nil, fmt.Errorf("decode scenes: %w", err)
	}
	return scenes, nil
}
