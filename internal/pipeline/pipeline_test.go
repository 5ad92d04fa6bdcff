package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/probe"
	"github.com/backmassage/framevault/internal/progress"
	"github.com/backmassage/framevault/internal/scene"
	"github.com/backmassage/framevault/internal/store"
)

// --- Fakes ---

// fakeEncoder writes a small file for every request and records it.
type fakeEncoder struct {
	mu     sync.Mutex
	reqs   []media.Request
	failOp media.Operation
	failAt map[string]bool // destination base names that fail
}

func (f *fakeEncoder) Encode(_ context.Context, req media.Request) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if req.Op == f.failOp || f.failAt[filepath.Base(req.Dest)] {
		return &errors.ExternalToolError{Tool: "ffmpeg", Op: string(req.Op), ExitCode: 1, Reason: "encoder not found"}
	}
	if req.Progress != nil {
		req.Progress(req.TotalDuration() / 2)
	}
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(req.Dest, []byte(string(req.Op)), 0o644)
}

func (f *fakeEncoder) byOp(op media.Operation) []media.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []media.Request
	for _, r := range f.reqs {
		if r.Op == op {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dest < out[j].Dest })
	return out
}

type fakeDetector struct{ bounds []media.Boundary }

func (f fakeDetector) Detect(context.Context, string, media.DetectOptions) ([]media.Boundary, error) {
	return f.bounds, nil
}

type fakeProbe struct{}

func (fakeProbe) Probe(context.Context, string) (*probe.ProbeResult, error) {
	return &probe.ProbeResult{
		Format: probe.FormatInfo{Duration: 20, Size: 1 << 20},
		PrimaryVideo: &probe.VideoStream{
			Codec: "prores", Profile: "HQ", Width: 1920, Height: 1080, RFrameRate: "24/1",
		},
		AudioStreams: []probe.AudioStream{{Codec: "pcm_s24le", Channels: 2, SampleRate: 48000}},
	}, nil
}

type fakeSelector struct {
	sel   scene.Selection
	err   error
	calls int
	prev  *scene.Selection
}

func (f *fakeSelector) Select(_ context.Context, req SelectionRequest) (scene.Selection, error) {
	f.calls++
	f.prev = req.Previous
	return f.sel, f.err
}

// threeScenes is 0-5s, 5-12s and 12-20s.
var threeScenes = fakeDetector{bounds: []media.Boundary{{Start: 0, End: 5}, {Start: 5, End: 12}, {Start: 12, End: 20}}}

type harness struct {
	store  *store.Store
	enc    *fakeEncoder
	sel    *fakeSelector
	orch   *Orchestrator
	master string
	out    string
	events []progress.Event
	mu     sync.Mutex
}

func newHarness(t *testing.T, det media.Detector) *harness {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(config.StoreConfig{Driver: config.DriverSQLite, DSN: filepath.Join(dir, "state.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	master := filepath.Join(dir, "in", "Dusk Study.mov")
	if err := os.MkdirAll(filepath.Dir(master), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(master, []byte("prores master"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Tools.Hardware = config.HardwareCPU
	cfg.Batch.Workers = 2
	presets, err := config.NewPresetSet(config.DefaultPreset())
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{store: st, enc: &fakeEncoder{}, sel: &fakeSelector{}, master: master, out: filepath.Join(dir, "out")}
	h.orch = New(cfg, presets, Deps{
		Store:    st,
		Encoder:  h.enc,
		Detector: det,
		Probe:    fakeProbe{},
		Selector: h.sel,
		Events: progress.Func(func(e progress.Event) {
			h.mu.Lock()
			h.events = append(h.events, e)
			h.mu.Unlock()
		}),
		Log: logging.Discard(),
	})
	return h
}

func (h *harness) params() Params {
	return Params{MasterPath: h.master, Artwork: "Dusk Study", ProjectDate: "26-03-01", OutputRoot: h.out}
}

func sum(segs []media.Segment) float64 {
	var d float64
	for _, s := range segs {
		d += s.Duration
	}
	return d
}

// --- Full run ---

func TestRun_SelectionScenario(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.sel.sel = scene.Selection{Individual: []int{1}, Groups: []scene.Group{{Scenes: []int{2, 3}}}}
	ctx := context.Background()

	res, err := h.orch.Run(ctx, h.params())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != store.StatusCompleted {
		t.Fatalf("status = %s", res.Status)
	}

	clips := h.enc.byOp(media.OpClip)
	if len(clips) != 1 || sum(clips[0].Segments) != 5 || filepath.Base(clips[0].Dest) != "Dusk_Study_clip_01.mp4" {
		t.Errorf("clips = %+v", clips)
	}
	groups := h.enc.byOp(media.OpConcatenate)
	if len(groups) != 1 || sum(groups[0].Segments) != 15 || filepath.Base(groups[0].Dest) != "Dusk_Study_group_01.mp4" {
		t.Errorf("groups = %+v", groups)
	}
	// Stills cover every detected scene, not only the selected ones.
	stills := h.enc.byOp(media.OpExtractFrame)
	if len(stills) != 3 {
		t.Fatalf("stills = %d, want 3", len(stills))
	}
	wantMid := []float64{2.5, 8.5, 16}
	for i, s := range stills {
		if s.Timestamp != wantMid[i] {
			t.Errorf("still %d at %v, want %v", i+1, s.Timestamp, wantMid[i])
		}
		if !strings.HasSuffix(s.Dest, fmt.Sprintf("Dusk_Study_HQ_%02d_16x9.png", i+1)) {
			t.Errorf("still path = %s", s.Dest)
		}
	}
	if n := len(h.enc.byOp(media.OpCompressStill)); n != 3 {
		t.Errorf("web stills = %d, want 3", n)
	}

	sess, err := h.store.LoadSession(ctx, res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if sess.CompletedOperations != len(Stages) || sess.CompletedAt == nil || sess.CurrentOperation != StageFinalize {
		t.Errorf("session = %+v", sess)
	}
	scenes, err := sess.Scenes()
	if err != nil || len(scenes) != 3 || scenes[1].ThumbnailPath == "" {
		t.Errorf("persisted scenes = %+v, %v", scenes, err)
	}

	data, err := os.ReadFile(res.SummaryPath)
	if err != nil {
		t.Fatal(err)
	}
	var summary SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatal(err)
	}
	want := RunStats{Masters: 1, Proxies: 1, Clips: 1, GroupClips: 1, Thumbnails: 3, StillsHQ: 3, StillsWeb: 3}
	summary.Outputs.TotalBytes = 0
	if summary.Outputs != want {
		t.Errorf("outputs = %+v, want %+v", summary.Outputs, want)
	}

	ops, err := h.store.Operations(ctx, res.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	for i, op := range ops {
		if op.SequenceNumber != i+1 {
			t.Fatalf("operation %d has sequence %d", i, op.SequenceNumber)
		}
	}
}

func TestRun_ZeroBoundariesGiveOneScene(t *testing.T) {
	h := newHarness(t, fakeDetector{})
	h.sel.sel = scene.Selection{Individual: []int{1}}

	res, err := h.orch.Run(context.Background(), h.params())
	if err != nil {
		t.Fatal(err)
	}
	clips := h.enc.byOp(media.OpClip)
	if res.Status != store.StatusCompleted || len(clips) != 1 || sum(clips[0].Segments) != 20 {
		t.Errorf("status=%s clips=%+v", res.Status, clips)
	}
}

// --- Failures ---

func TestRun_OptimizeFailureMarksFailed(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.enc.failOp = media.OpTranscode
	ctx := context.Background()

	res, err := h.orch.Run(ctx, h.params())
	if !errors.IsExternalTool(err) {
		t.Fatalf("err = %v, want external tool error", err)
	}
	sess, lerr := h.store.LoadSession(ctx, res.SessionID)
	if lerr != nil {
		t.Fatal(lerr)
	}
	if sess.Status != store.StatusFailed || sess.ErrorMessage == "" {
		t.Errorf("status=%s error=%q", sess.Status, sess.ErrorMessage)
	}
	if sess.CompletedOperations != 1 || sess.CurrentOperation != StageCopyMaster {
		t.Errorf("progress recorded past the failure: %d %s", sess.CompletedOperations, sess.CurrentOperation)
	}
	if h.sel.calls != 0 || len(h.enc.byOp(media.OpExtractFrame)) != 0 {
		t.Error("later stages ran after the failure")
	}
	if _, err := h.orch.Resume(ctx, res.SessionID); !errors.Is(err, errors.ErrNotResumable) {
		t.Errorf("Resume(failed) = %v, want ErrNotResumable", err)
	}
}

func TestRun_ThumbnailFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.enc.failAt = map[string]bool{"Dusk_Study_scene_02_thumb.jpg": true}
	ctx := context.Background()

	res, err := h.orch.Run(ctx, h.params())
	if err != nil {
		t.Fatal(err)
	}
	sess, _ := h.store.LoadSession(ctx, res.SessionID)
	scenes, _ := sess.Scenes()
	if scenes[0].ThumbnailPath == "" || scenes[1].ThumbnailPath != "" {
		t.Errorf("thumbnail paths = %q %q", scenes[0].ThumbnailPath, scenes[1].ThumbnailPath)
	}
	ops, _ := h.store.Operations(ctx, res.SessionID)
	var failed int
	for _, op := range ops {
		if op.Status == store.OpFailed && op.OperationType == "thumbnail" {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed thumbnail ops = %d, want 1", failed)
	}
}

func TestRun_OverlappingSelectionFails(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.sel.sel = scene.Selection{Individual: []int{2}, Groups: []scene.Group{{Scenes: []int{2, 3}}}}

	res, err := h.orch.Run(context.Background(), h.params())
	if !errors.IsValidation(err) || res.Status != store.StatusFailed {
		t.Fatalf("status=%s err=%v", res.Status, err)
	}
	if len(h.enc.byOp(media.OpClip)) != 0 {
		t.Error("clips produced for an invalid selection")
	}
}

func TestRun_InvalidMasterFailsBeforeFirstStage(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.orch.cfg.Pipeline.RequireProRes = true
	h.orch.Probe = probeFunc(func() *probe.ProbeResult {
		return &probe.ProbeResult{
			Format:       probe.FormatInfo{Duration: 20},
			PrimaryVideo: &probe.VideoStream{Codec: "h264", Width: 1920, Height: 1080, RFrameRate: "24/1"},
		}
	})

	res, err := h.orch.Run(context.Background(), h.params())
	if !errors.IsValidation(err) || res.Status != store.StatusFailed {
		t.Fatalf("status=%s err=%v", res.Status, err)
	}
	if len(h.enc.reqs) != 0 {
		t.Error("encoder ran for an invalid master")
	}
}

type probeFunc func() *probe.ProbeResult

func (f probeFunc) Probe(context.Context, string) (*probe.ProbeResult, error) { return f(), nil }

func TestParams_Validate(t *testing.T) {
	base := Params{MasterPath: "m.mov", Artwork: "A", ProjectDate: "26-03-01", Threshold: 30, MinSceneLen: 15}
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"no master", func(p *Params) { p.MasterPath = "" }},
		{"blank artwork", func(p *Params) { p.Artwork = "  " }},
		{"bad date", func(p *Params) { p.ProjectDate = "2026-03-01" }},
		{"threshold", func(p *Params) { p.Threshold = 101 }},
		{"min len", func(p *Params) { p.MinSceneLen = 0 }},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base params invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if err := p.Validate(); !errors.IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
}

// --- Suspend and resume ---

func TestRun_CancelAtSelectionPausesThenResumes(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.sel.err = errors.ErrCancelled
	ctx := context.Background()

	res, err := h.orch.Run(ctx, h.params())
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if res.Status != store.StatusPaused || res.Stage != StageAwaitSelection {
		t.Fatalf("result = %+v", res)
	}
	sess, _ := h.store.LoadSession(ctx, res.SessionID)
	if sess.CompletedOperations != 4 || sess.ErrorMessage != "" {
		t.Errorf("paused session = %+v", sess)
	}
	found, ok, err := h.store.ResumableSession(ctx)
	if err != nil || !ok || found.ID != res.SessionID {
		t.Fatalf("ResumableSession = %v %v %v", found, ok, err)
	}

	transcodes := len(h.enc.byOp(media.OpTranscode))
	h.sel.err = nil
	h.sel.sel = scene.Selection{Individual: []int{3, 1}}
	res, err = h.orch.Resume(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if res.Status != store.StatusCompleted {
		t.Fatalf("status after resume = %s", res.Status)
	}
	if n := len(h.enc.byOp(media.OpTranscode)); n != transcodes {
		t.Errorf("resume re-ran the transcode (%d -> %d)", transcodes, n)
	}
	if n := len(h.enc.byOp(media.OpClip)); n != 2 {
		t.Errorf("clips after resume = %d, want 2", n)
	}
}

func TestResume_OffersSavedSelection(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.sel.err = errors.ErrCancelled
	ctx := context.Background()
	res, _ := h.orch.Run(ctx, h.params())

	saved := scene.Selection{Individual: []int{2}}
	data, _ := scene.MarshalSelection(saved)
	if err := h.store.SaveSelection(ctx, res.SessionID, data); err != nil {
		t.Fatal(err)
	}

	h.sel.err = nil
	h.sel.sel = saved
	if _, err := h.orch.Resume(ctx, res.SessionID); err != nil {
		t.Fatal(err)
	}
	if h.sel.prev == nil || len(h.sel.prev.Individual) != 1 || h.sel.prev.Individual[0] != 2 {
		t.Errorf("previous selection = %+v", h.sel.prev)
	}
}

func TestRun_ContextCancelledPausesSession(t *testing.T) {
	h := newHarness(t, threeScenes)
	ctx, cancel := context.WithCancel(context.Background())
	h.orch.Events = progress.Func(func(e progress.Event) {
		if e.Stage == StageDetectScenes && e.Status == progress.StatusCompleted {
			cancel()
		}
	})

	res, err := h.orch.Run(ctx, h.params())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != store.StatusPaused || res.Stage != StageGenerateThumbnails {
		t.Errorf("result = %+v", res)
	}
	if h.sel.calls != 0 {
		t.Error("selector consulted after cancellation")
	}
}

func TestRun_EventsAreBounded(t *testing.T) {
	h := newHarness(t, threeScenes)
	h.sel.sel = scene.Selection{Individual: []int{1}}
	if _, err := h.orch.Run(context.Background(), h.params()); err != nil {
		t.Fatal(err)
	}
	last := 0
	for _, e := range h.events {
		if e.Current < last || e.Current > e.Total || e.Total != len(Stages) {
			t.Fatalf("bad event %+v after current %d", e, last)
		}
		last = e.Current
	}
	if last != len(Stages) {
		t.Errorf("last current = %d", last)
	}
}

// --- Stats ---

func TestStatsFromFiles(t *testing.T) {
	files := []store.FileRegistryEntry{
		{FileType: store.FileClip, SizeBytes: 10},
		{FileType: store.FileClip, SizeBytes: 5},
		{FileType: store.FileStillWeb, SizeBytes: 1},
		{FileType: store.FileLog, SizeBytes: 2},
	}
	got := StatsFromFiles(files)
	if got.Clips != 2 || got.StillsWeb != 1 || got.TotalBytes != 18 {
		t.Errorf("stats = %+v", got)
	}
}

func TestCopyFile_SkipsIdenticalCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "m.mov")
	dest := filepath.Join(dir, "copy.mov")
	os.WriteFile(src, []byte("0123456789"), 0o644)

	n, copied, err := copyFile(context.Background(), src, dest)
	if err != nil || n != 10 || !copied {
		t.Fatalf("first copy = %d %v %v", n, copied, err)
	}
	_, copied, err = copyFile(context.Background(), src, dest)
	if err != nil || copied {
		t.Errorf("second copy = %v %v, want skipped", copied, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := copyFile(ctx, src, filepath.Join(dir, "other.mov")); !errors.IsCancellation(err) {
		t.Errorf("cancelled copy err = %v", err)
	}
}
