package naming

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// --- Collision resolver ---

func TestResolve_FirstClaimWins(t *testing.T) {
	cr := NewCollisionResolver()
	dir := t.TempDir()
	out := filepath.Join(dir, "1-proj_full_01.jpg")

	if got := cr.Resolve("a.png", out); got != out {
		t.Errorf("first claim = %q", got)
	}
	if got := cr.Resolve("a.png", out); got != out {
		t.Errorf("same owner should keep path, got %q", got)
	}
	want := filepath.Join(dir, "1-proj_full_01_dup1.jpg")
	if got := cr.Resolve("b.png", out); got != want {
		t.Errorf("second claim = %q, want %q", got, want)
	}
	want2 := filepath.Join(dir, "1-proj_full_01_dup2.jpg")
	if got := cr.Resolve("c.png", out); got != want2 {
		t.Errorf("third claim = %q, want %q", got, want2)
	}
}

func TestResolve_ExistingFileIsTaken(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clip.mp4")
	os.WriteFile(out, nil, 0o644)

	got := NewCollisionResolver().Resolve("src.mov", out)
	if got != filepath.Join(dir, "clip_dup1.mp4") {
		t.Errorf("got %q", got)
	}
}

func TestResolve_ConcurrentUnique(t *testing.T) {
	cr := NewCollisionResolver()
	out := filepath.Join(t.TempDir(), "x.jpg")
	const n = 16
	got := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = cr.Resolve(string(rune('a'+i)), out)
		}(i)
	}
	wg.Wait()
	seen := map[string]bool{}
	for _, p := range got {
		if seen[p] {
			t.Fatalf("duplicate path %q", p)
		}
		seen[p] = true
	}
}

func TestRelease(t *testing.T) {
	cr := NewCollisionResolver()
	out := filepath.Join(t.TempDir(), "x.jpg")
	cr.Resolve("a", out)
	cr.Release(out)
	if got := cr.Resolve("b", out); got != out {
		t.Errorf("released path not reusable: %q", got)
	}
}

// --- Layout and names ---

func TestNewProjectLayout(t *testing.T) {
	l := NewProjectLayout("/archive", "2026-03-01", "Blue Hour")
	tests := []struct{ got, want string }{
		{l.Root, "/archive/2026-03-01_Blue_Hour"},
		{l.Masters, "/archive/2026-03-01_Blue_Hour/Masters"},
		{l.Clips, "/archive/2026-03-01_Blue_Hour/Video-clips"},
		{l.StillsHQ, "/archive/2026-03-01_Blue_Hour/Stills/HQ"},
		{l.StillsWeb, "/archive/2026-03-01_Blue_Hour/Stills/Compressed"},
		{l.RndHighRes, "/archive/2026-03-01_Blue_Hour/R&D/High-res"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
	if c := l.Category(l.StillsHQ); c != "Stills/HQ" {
		t.Errorf("Category = %q", c)
	}
}

func TestProjectLayout_Create(t *testing.T) {
	l := NewProjectLayout(t.TempDir(), "2026-03-01", "a")
	if err := l.Create(false); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, d := range []string{l.Masters, l.Clips, l.Thumbnails, l.StillsHQ, l.StillsWeb} {
		if fi, err := os.Stat(d); err != nil || !fi.IsDir() {
			t.Errorf("%s not created", d)
		}
	}
	if _, err := os.Stat(l.RndHighRes); !os.IsNotExist(err) {
		t.Error("R&D tree should not exist without withRnd")
	}
}

func TestArtifactNames(t *testing.T) {
	tests := []struct{ got, want string }{
		{ProxyName("Dusk"), "Dusk_master.mp4"},
		{ClipName("Dusk", 1), "Dusk_clip_01.mp4"},
		{GroupName("Dusk", 2), "Dusk_group_02.mp4"},
		{ThumbnailName("Dusk", 12), "Dusk_scene_12_thumb.jpg"},
		{StillHQName("Dusk", 3, "16x9"), "Dusk_HQ_03_16x9.png"},
		{StillWebName("Dusk", 3, "16x9"), "Dusk_web_03_16x9.jpg"},
		{RndName("Dusk", "HQ", 4, "1x1", ".png"), "Dusk_RD_HQ_04_1x1.png"},
		{BatchOutputName(3, "Spring Show!", "1-1-small", "01", ".PNG"), "3-spring_show_1-1-small_01.png"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSanitizeProject(t *testing.T) {
	tests := []struct{ in, want string }{
		{"My Project", "my_project"},
		{"  a/b:c  ", "abc"},
		{"!!!", "project"},
		{"Café-2", "café-2"},
	}
	for _, tt := range tests {
		if got := SanitizeProject(tt.in); got != tt.want {
			t.Errorf("SanitizeProject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeArtwork(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Blue Hour", "Blue_Hour"},
		{"a/b", "a_b"},
		{"", "untitled"},
	}
	for _, tt := range tests {
		if got := SafeArtwork(tt.in); got != tt.want {
			t.Errorf("SafeArtwork(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
