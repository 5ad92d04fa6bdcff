package rnd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/planner"
	"github.com/backmassage/framevault/internal/probe"
	"github.com/backmassage/framevault/internal/progress"
)

type recordingEncoder struct {
	mu   sync.Mutex
	reqs []media.Request
	fail map[string]bool // source base names that fail
}

func (r *recordingEncoder) Encode(_ context.Context, req media.Request) error {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	if r.fail[filepath.Base(req.Source)] {
		return &errors.ExternalToolError{Tool: "ffmpeg", Op: string(req.Op), ExitCode: 1}
	}
	return os.WriteFile(req.Dest, nil, 0o644)
}

// sizeProbe reports square images and 16:9 videos with a bitrate taken
// from the file name length, which is enough to exercise the inventory.
type sizeProbe struct{ fail map[string]bool }

func (s sizeProbe) Probe(_ context.Context, path string) (*probe.ProbeResult, error) {
	name := filepath.Base(path)
	if s.fail[name] {
		return nil, errors.New("invalid data found when processing input")
	}
	if media.TypeOf(path) == media.TypeImage {
		return &probe.ProbeResult{PrimaryVideo: &probe.VideoStream{Codec: "png", Width: 2000, Height: 2000}}, nil
	}
	return &probe.ProbeResult{
		Format:       probe.FormatInfo{Duration: 10, Size: 4096},
		PrimaryVideo: &probe.VideoStream{Codec: "prores", Width: 1920, Height: 1080, RFrameRate: "25/1", BitRate: int64(len(name)) * 1_000_000},
	}, nil
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"b.png", "a.JPG", "notes.txt",
		"sub/c.tiff", "sub/deeper/walk.mov",
		".hidden/x.png", "sub/.cache.png",
		"clip.mp4",
	)
	images, videos, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	rel := func(paths []string) string {
		var out []string
		for _, p := range paths {
			r, _ := filepath.Rel(dir, p)
			out = append(out, filepath.ToSlash(r))
		}
		return strings.Join(out, ",")
	}
	if got := rel(images); got != "a.JPG,b.png,sub/c.tiff" {
		t.Errorf("images = %s", got)
	}
	if got := rel(videos); got != "clip.mp4,sub/deeper/walk.mov" {
		t.Errorf("videos = %s", got)
	}
}

func TestDiscover_MissingDir(t *testing.T) {
	if _, _, err := Discover(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing folder")
	}
}

func newProcessor(enc media.Encoder, src probe.Source, events progress.Reporter) *Processor {
	return New(enc, src, Options{
		Hardware:     config.HardwareCPU,
		Caps:         planner.Caps{},
		Workers:      2,
		StillTimeout: 2 * time.Minute,
		VideoTimeout: time.Hour,
		Artist:       "Studio",
	}, logging.Discard(), events)
}

func TestProcess_ImagesAndVideos(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	touch(t, in, "one.png", "two.jpg", "reel/walk.mov")

	enc := &recordingEncoder{}
	var mu sync.Mutex
	var last progress.Event
	events := progress.Func(func(e progress.Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.Status != progress.StatusRunning {
			last = e
		}
	})
	p := newProcessor(enc, sizeProbe{}, events)

	rep, err := p.Process(context.Background(), Params{
		InputDir: in, Artwork: "Night Walk", ProjectDate: "26-03-01", OutputRoot: out, Preset: config.DefaultPreset(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Images != 2 || rep.Videos != 1 || rep.HQ != 3 || rep.Compressed != 3 || len(rep.Failures) != 0 {
		t.Errorf("report = %+v", rep)
	}
	if last.Current != 3 || last.Total != 3 {
		t.Errorf("last event = %+v", last)
	}

	root := filepath.Join(out, "26-03-01_Night_Walk")
	want := []string{
		filepath.Join(root, "R&D", "High-res", "Night_Walk_RD_HQ_01_1x1.png"),
		filepath.Join(root, "R&D", "Compressed", "Night_Walk_RD_compressed_02_1x1.jpg"),
		filepath.Join(root, "R&D", "Clips", "HQ", "Night_Walk_RD_HQ_01_16x9.mp4"),
		filepath.Join(root, "R&D", "Clips", "Compressed", "Night_Walk_RD_compressed_01_16x9.mp4"),
	}
	for _, w := range want {
		if _, err := os.Stat(w); err != nil {
			t.Errorf("missing %s", w)
		}
	}

	crf := map[string]int{}
	for _, r := range enc.reqs {
		if r.Op == media.OpTranscode {
			crf[filepath.Base(filepath.Dir(r.Dest))] = r.Plan.CRF
			if r.Metadata["artist"] != "Studio" || r.Timeout != time.Hour {
				t.Errorf("transcode request = %+v", r)
			}
		}
	}
	if crf["HQ"] != 17 || crf["Compressed"] != 23 {
		t.Errorf("video CRFs = %v, want HQ 17 and Compressed 23", crf)
	}
}

func TestProcess_FailureDoesNotStopRun(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "bad.png", "good.png", "broken.mov", "fine.mov")

	enc := &recordingEncoder{fail: map[string]bool{"bad.png": true}}
	p := newProcessor(enc, sizeProbe{fail: map[string]bool{"broken.mov": true}}, nil)

	rep, err := p.Process(context.Background(), Params{
		InputDir: in, Artwork: "A", ProjectDate: "26-03-01", OutputRoot: t.TempDir(), Preset: config.DefaultPreset(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Failures) != 2 {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	if rep.HQ != 2 || rep.Compressed != 2 {
		t.Errorf("HQ=%d compressed=%d, want 2 and 2", rep.HQ, rep.Compressed)
	}
}

func TestProcess_Cancelled(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.png", "b.mov")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enc := &recordingEncoder{}
	rep, err := newProcessor(enc, sizeProbe{}, nil).Process(ctx, Params{
		InputDir: in, Artwork: "A", ProjectDate: "26-03-01", OutputRoot: t.TempDir(), Preset: config.DefaultPreset(),
	})
	if !errors.IsCancellation(err) || !rep.Cancelled {
		t.Fatalf("err=%v cancelled=%v", err, rep.Cancelled)
	}
	if len(enc.reqs) != 0 {
		t.Errorf("%d encodes ran after cancellation", len(enc.reqs))
	}
}

func TestProcess_EmptyFolder(t *testing.T) {
	_, err := newProcessor(&recordingEncoder{}, sizeProbe{}, nil).Process(context.Background(), Params{
		InputDir: t.TempDir(), Artwork: "A", ProjectDate: "26-03-01", OutputRoot: t.TempDir(),
	})
	if !errors.IsValidation(err) {
		t.Errorf("err = %v, want validation error", err)
	}
}

// --- Inventory ---

func TestComputeBounds(t *testing.T) {
	if ComputeBounds([]float64{1, 2, 3}).Valid {
		t.Error("three values must not produce bounds")
	}
	b := ComputeBounds([]float64{10, 20, 30, 40, 50})
	if b.Q1 != 20 || b.Q3 != 40 || !b.Valid {
		t.Fatalf("bounds = %+v", b)
	}
	tests := []struct {
		v    float64
		want string
	}{
		{30, ""},
		{75, "outlier"},
		{110, "extreme"},
		{0, ""},
	}
	for _, tt := range tests {
		if got := b.Classify(tt.v); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestTakeInventory(t *testing.T) {
	dir := t.TempDir()
	// Bitrates follow the name length: 5, 5, 5, 6 and 30 Mbps.
	touch(t, dir, "a.mov", "b.mov", "c.mov", "dd.mov", strings.Repeat("x", 26)+".mov", "still.png", "bad.mov")

	inv, err := TakeInventory(context.Background(), sizeProbe{fail: map[string]bool{"bad.mov": true}}, dir, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if len(inv.Rows) != 6 || len(inv.Skipped) != 1 {
		t.Fatalf("rows=%d skipped=%v", len(inv.Rows), inv.Skipped)
	}
	flagged := map[string]string{}
	for _, r := range inv.Rows {
		if r.Flag != "" {
			flagged[r.Name] = r.Flag
		}
	}
	if len(flagged) != 1 || flagged[strings.Repeat("x", 26)+".mov"] != "extreme" {
		t.Errorf("flagged = %v", flagged)
	}

	var buf bytes.Buffer
	inv.Write(&buf)
	if !strings.Contains(buf.String(), "[!]") || !strings.Contains(buf.String(), "still.png") {
		t.Errorf("table:\n%s", buf.String())
	}
}
