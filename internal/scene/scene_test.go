package scene

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/media"
)

type fakeDetector struct {
	bounds []media.Boundary
	got    media.DetectOptions
}

func (f *fakeDetector) Detect(_ context.Context, _ string, opts media.DetectOptions) ([]media.Boundary, error) {
	f.got = opts
	return f.bounds, nil
}

func threeScenes(t *testing.T) []Scene {
	t.Helper()
	scenes, err := FromBoundaries([]media.Boundary{
		{Start: 0, End: 5}, {Start: 5, End: 12}, {Start: 12, End: 20},
	}, 24)
	if err != nil {
		t.Fatalf("FromBoundaries: %v", err)
	}
	return scenes
}

// --- Detection ---

func TestDetect_NoBoundariesYieldsOneScene(t *testing.T) {
	d := &fakeDetector{}
	scenes, err := Detect(context.Background(), d, "m.mp4", DetectOptions{Threshold: 30, MinSceneLen: 15}, MediaInfo{Duration: 42.5, FPS: 25}, time.Minute)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(scenes) != 1 {
		t.Fatalf("got %d scenes, want 1", len(scenes))
	}
	s := scenes[0]
	if s.SceneNumber != 1 || s.StartTime != 0 || s.EndTime != 42.5 || s.Duration != 42.5 {
		t.Errorf("got %+v", s)
	}
	if s.EndFrame != 1063 {
		t.Errorf("EndFrame = %d, want 1063", s.EndFrame)
	}
	if d.got.Threshold != 30 || d.got.MinSceneLen != 15 || d.got.FPS != 25 || d.got.Timeout != time.Minute {
		t.Errorf("detector options not passed through: %+v", d.got)
	}
}

func TestDetect_NumbersChronologically(t *testing.T) {
	d := &fakeDetector{bounds: []media.Boundary{{Start: 0, End: 5}, {Start: 5, End: 12}, {Start: 12, End: 20}}}
	scenes, err := Detect(context.Background(), d, "m.mp4", DetectOptions{}, MediaInfo{Duration: 20, FPS: 24}, time.Minute)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	for i, s := range scenes {
		if s.SceneNumber != i+1 {
			t.Errorf("scene %d numbered %d", i, s.SceneNumber)
		}
	}
	if scenes[1].StartFrame != 120 || scenes[1].EndFrame != 288 {
		t.Errorf("frames = %d..%d, want 120..288", scenes[1].StartFrame, scenes[1].EndFrame)
	}
}

func TestDetect_RejectsZeroDuration(t *testing.T) {
	_, err := Detect(context.Background(), &fakeDetector{}, "m.mp4", DetectOptions{}, MediaInfo{}, time.Minute)
	if !errors.IsValidation(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		scenes []Scene
		ok     bool
	}{
		{"valid", []Scene{{SceneNumber: 1, StartTime: 0, EndTime: 1}, {SceneNumber: 2, StartTime: 1, EndTime: 2}}, true},
		{"empty", nil, false},
		{"gap in numbering", []Scene{{SceneNumber: 1, StartTime: 0, EndTime: 1}, {SceneNumber: 3, StartTime: 1, EndTime: 2}}, false},
		{"zero length", []Scene{{SceneNumber: 1, StartTime: 1, EndTime: 1}}, false},
		{"out of order", []Scene{{SceneNumber: 1, StartTime: 5, EndTime: 6}, {SceneNumber: 2, StartTime: 1, EndTime: 2}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.scenes)
			if (err == nil) != tt.ok {
				t.Errorf("Validate = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

// --- Helpers ---

func TestMidpointAndAtTime(t *testing.T) {
	scenes := threeScenes(t)
	if got := scenes[1].Midpoint(); got != 8.5 {
		t.Errorf("Midpoint = %v, want 8.5", got)
	}
	tests := []struct {
		t    float64
		want int
	}{
		{0, 1}, {4.99, 1}, {5, 2}, {11.9, 2}, {12, 3}, {20, 3}, {20.1, 0}, {-1, 0},
	}
	for _, tt := range tests {
		s, ok := AtTime(scenes, tt.t)
		got := 0
		if ok {
			got = s.SceneNumber
		}
		if got != tt.want {
			t.Errorf("AtTime(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
}

func TestMerge(t *testing.T) {
	merged, err := Merge(threeScenes(t), []int{3, 2})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("got %d scenes, want 2", len(merged))
	}
	if m := merged[1]; m.SceneNumber != 2 || m.StartTime != 5 || m.EndTime != 20 || m.Duration != 15 {
		t.Errorf("merged scene = %+v", m)
	}
	if err := Validate(merged); err != nil {
		t.Errorf("merged list invalid: %v", err)
	}

	if _, err := Merge(threeScenes(t), []int{1, 3}); !errors.IsValidation(err) {
		t.Errorf("non-adjacent merge: got %v", err)
	}
	if _, err := Merge(threeScenes(t), []int{2}); !errors.IsValidation(err) {
		t.Errorf("single-scene merge: got %v", err)
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	scenes := threeScenes(t)
	scenes[0].ThumbnailPath = "/out/thumbs/a_scene_01_thumb.jpg"
	data, err := Export(scenes)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	back, err := Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !reflect.DeepEqual(back, scenes) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, scenes)
	}
	again, _ := Export(back)
	if string(again) != string(data) {
		t.Errorf("re-export differs:\n%s\n%s", again, data)
	}
}

func TestImport_Invalid(t *testing.T) {
	if _, err := Import([]byte("{")); err == nil {
		t.Error("expected error")
	}
}

// --- Groups and selection ---

func TestNewGroup(t *testing.T) {
	scenes := threeScenes(t)
	tests := []struct {
		name string
		nums []int
		ok   bool
	}{
		{"pair", []int{2, 3}, true},
		{"reordered", []int{3, 1}, true},
		{"single", []int{2}, false},
		{"empty", nil, false},
		{"duplicate", []int{2, 2}, false},
		{"unknown", []int{2, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGroup(tt.nums, scenes)
			if (err == nil) != tt.ok {
				t.Fatalf("NewGroup(%v) = %v, want ok=%v", tt.nums, err, tt.ok)
			}
			if tt.ok && !reflect.DeepEqual(g.Scenes, tt.nums) {
				t.Errorf("group order = %v, want %v", g.Scenes, tt.nums)
			}
			if !tt.ok && !errors.IsValidation(err) {
				t.Errorf("want validation error, got %T", err)
			}
		})
	}
}

func TestGroup_SegmentsAndDuration(t *testing.T) {
	scenes := threeScenes(t)
	g, _ := NewGroup([]int{2, 3}, scenes)
	segs := g.Segments(scenes)
	want := []media.Segment{{Start: 5, Duration: 7}, {Start: 12, Duration: 8}}
	if !reflect.DeepEqual(segs, want) {
		t.Errorf("segments = %+v, want %+v", segs, want)
	}
	if d := g.Duration(scenes); d != 15 {
		t.Errorf("duration = %v, want 15", d)
	}
	if g.String() != "2+3" {
		t.Errorf("String = %q", g.String())
	}
}

func TestSelection_Validate(t *testing.T) {
	scenes := threeScenes(t)
	tests := []struct {
		name string
		sel  Selection
		ok   bool
	}{
		{"individual and group", Selection{Individual: []int{1}, Groups: []Group{{Scenes: []int{2, 3}}}}, true},
		{"nothing", Selection{}, true},
		{"scene alone and grouped", Selection{Individual: []int{2}, Groups: []Group{{Scenes: []int{2, 3}}}}, false},
		{"scene in two groups", Selection{Groups: []Group{{Scenes: []int{1, 2}}, {Scenes: []int{2, 3}}}}, false},
		{"duplicate individual", Selection{Individual: []int{1, 1}}, false},
		{"unknown", Selection{Individual: []int{9}}, false},
		{"short group", Selection{Groups: []Group{{Scenes: []int{1}}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate(scenes)
			if (err == nil) != tt.ok {
				t.Errorf("Validate = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSelection_MarshalRoundTrip(t *testing.T) {
	sel := Selection{Individual: []int{1}, Groups: []Group{{Scenes: []int{3, 2}}}}
	data, err := MarshalSelection(sel)
	if err != nil {
		t.Fatalf("MarshalSelection: %v", err)
	}
	back, err := UnmarshalSelection(data)
	if err != nil {
		t.Fatalf("UnmarshalSelection: %v", err)
	}
	if !reflect.DeepEqual(back, sel) {
		t.Errorf("got %+v, want %+v", back, sel)
	}
	if back.ClipCount() != 2 {
		t.Errorf("ClipCount = %d", back.ClipCount())
	}
}

func TestParseGroup(t *testing.T) {
	got, err := ParseGroup("2 + 3")
	if err != nil || !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("ParseGroup = %v, %v", got, err)
	}
	if _, err := ParseGroup("2+x"); err == nil {
		t.Error("expected error for non-numeric group")
	}
}
