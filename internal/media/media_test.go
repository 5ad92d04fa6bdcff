package media

import "testing"

func TestTypeOf(t *testing.T) {
	tests := []struct {
		path string
		want Type
	}{
		{"a/b/photo.JPG", TypeImage},
		{"scan.tiff", TypeImage},
		{"clip.mov", TypeVideo},
		{"clip.M2TS", TypeVideo},
		{"notes.txt", TypeUnknown},
		{"noext", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := TypeOf(tt.path); got != tt.want {
				t.Errorf("TypeOf(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestAspectLabel(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1920, 1080, "16x9"},
		{1080, 1920, "9x16"},
		{1080, 1080, "1x1"},
		{1440, 1080, "4x3"},
		{2560, 1080, "21x9"},
		{2350, 1000, "21x9"}, // 21:9 wins within tolerance
		{1000, 300, "1000x300"},
		{0, 1080, "unknown"},
		{1920, 0, "unknown"},
	}
	for _, tt := range tests {
		if got := AspectLabel(tt.w, tt.h); got != tt.want {
			t.Errorf("AspectLabel(%d, %d) = %q, want %q", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestRequest_TotalDuration(t *testing.T) {
	r := Request{Segments: []Segment{{Start: 5, Duration: 7}, {Start: 12, Duration: 8}}}
	if got := r.TotalDuration(); got != 15 {
		t.Errorf("TotalDuration() = %v, want 15", got)
	}
}
