package ffmpeg

import (
	"strings"
	"testing"

	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/planner"
)

func x264Plan() *planner.EncodePlan {
	return &planner.EncodePlan{
		VideoCodec:    planner.CodecX264,
		CRF:           20,
		Preset:        "slow",
		Profile:       "high",
		Level:         "4.1",
		PixFmt:        "yuv420p",
		Audio:         planner.AudioPlan{Codec: "aac", Bitrate: "320k", SampleRate: 48000, Channels: 2},
		ContainerOpts: []string{"-movflags", "+faststart"},
	}
}

func joined(args []string) string { return strings.Join(args, " ") }

// --- Builder tests ---

func TestBuildTranscode_X264(t *testing.T) {
	got := joined(BuildTranscode(x264Plan(), "in.mov", "out.mp4", map[string]string{"title": "Dusk", "artist": "A"}))
	for _, want := range []string{
		"-hide_banner -nostdin -y -loglevel error",
		"-i in.mov",
		"-map 0:v:0 -map 0:a:0?",
		"-c:v libx264 -crf 20 -preset slow",
		"-profile:v high -level 4.1 -pix_fmt yuv420p",
		"-c:a aac -b:a 320k -ar 48000 -ac 2",
		"-metadata artist=A -metadata title=Dusk",
		"-movflags +faststart out.mp4",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestBuildTranscode_NVENC(t *testing.T) {
	plan := x264Plan()
	plan.VideoCodec = planner.CodecNVENC
	plan.HWAccel = "cuda"
	plan.CQ = 19
	plan.Preset = "p7"
	got := joined(BuildTranscode(plan, "in.mov", "out.mp4", nil))
	if !strings.Contains(got, "-hwaccel cuda -i in.mov") {
		t.Errorf("hwaccel must precede input: %q", got)
	}
	if !strings.Contains(got, "-c:v h264_nvenc -preset p7 -rc vbr -cq 19 -b:v 0") {
		t.Errorf("nvenc args missing: %q", got)
	}
}

func TestBuildTranscode_NoAudio(t *testing.T) {
	plan := x264Plan()
	plan.Audio = planner.AudioPlan{NoAudio: true}
	got := joined(BuildTranscode(plan, "in.mov", "out.mp4", nil))
	if strings.Contains(got, "0:a:0") || !strings.Contains(got, " -an") {
		t.Errorf("silent source should drop audio: %q", got)
	}
}

func TestBuildClip_SeeksBeforeInput(t *testing.T) {
	got := joined(BuildClip(x264Plan(), "m.mp4", "c.mp4", media.Segment{Start: 5, Duration: 7.5}, nil))
	if !strings.Contains(got, "-ss 5.000 -i m.mp4 -t 7.500") {
		t.Errorf("clip seek/duration wrong: %q", got)
	}
}

func TestBuildConcat(t *testing.T) {
	got := joined(BuildConcat("list.txt", "g.mp4", nil))
	if !strings.Contains(got, "-f concat -safe 0 -i list.txt -c copy") {
		t.Errorf("concat args wrong: %q", got)
	}
}

func TestBuildExtractFrame(t *testing.T) {
	got := joined(BuildExtractFrame("m.mp4", "s.png", 12.25, 0))
	if !strings.Contains(got, "-ss 12.250 -i m.mp4 -frames:v 1") || strings.Contains(got, "scale") {
		t.Errorf("extract frame wrong: %q", got)
	}
	got = joined(BuildExtractFrame("m.mp4", "s.png", 1, 1920))
	if !strings.Contains(got, "scale='min(1920,iw)':-2") {
		t.Errorf("max width filter missing: %q", got)
	}
}

func TestBuildCompressStill(t *testing.T) {
	got := joined(BuildCompressStill("s.png", "s.jpg", media.StillOptions{Quality: 90, Optimize: true}))
	if !strings.Contains(got, "-pix_fmt yuvj420p -huffman optimal -q:v 5") {
		t.Errorf("compress args wrong: %q", got)
	}
	got = joined(BuildCompressStill("s.png", "s.jpg", media.StillOptions{Quality: 100, Full444: true}))
	if !strings.Contains(got, "-pix_fmt yuvj444p -huffman default -q:v 2") {
		t.Errorf("compress 444 args wrong: %q", got)
	}
}

func TestBuildOverlay_ImageOnColor(t *testing.T) {
	o := Overlay{
		Source: "a.png", Color: "white",
		CanvasWidth: 1080, CanvasHeight: 1350,
		X: 147, Y: 269, Width: 786, Height: 786,
	}
	got := joined(BuildOverlay(o, nil, "out.jpg", media.StillOptions{Quality: 95}))
	for _, want := range []string{
		"-f lavfi -i color=c=white:s=1080x1350",
		"scale=786:786:force_original_aspect_ratio=increase,crop=786:786",
		"overlay=147:269:shortest=1",
		"-frames:v 1 -c:v mjpeg",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestBuildOverlay_PNGKeepsLossless(t *testing.T) {
	o := Overlay{Source: "a.png", Background: "bg.png", CanvasWidth: 1080, CanvasHeight: 1350, Width: 1080, Height: 1350}
	got := joined(BuildOverlay(o, nil, "out.png", media.StillOptions{Quality: 90}))
	if strings.Contains(got, "mjpeg") || !strings.HasSuffix(got, "-frames:v 1 out.png") {
		t.Errorf("png overlay args wrong: %q", got)
	}
}

func TestBuildOverlay_VideoLoopsBackground(t *testing.T) {
	o := Overlay{Source: "v.mp4", Video: true, Background: "bg.png", CanvasWidth: 1080, CanvasHeight: 1350, Width: 1008, Height: 567, X: 36, Y: 357}
	got := joined(BuildOverlay(o, x264Plan(), "out.mp4", media.StillOptions{}))
	if !strings.Contains(got, "-loop 1 -i bg.png -i v.mp4") {
		t.Errorf("background must loop: %q", got)
	}
	if !strings.Contains(got, "-map 1:a?") || !strings.Contains(got, "-c:v libx264") {
		t.Errorf("video overlay encode args missing: %q", got)
	}
}

func TestJPEGQScale(t *testing.T) {
	tests := []struct{ q, want int }{
		{100, 2}, {1, 31}, {0, 31}, {150, 2}, {90, 5},
	}
	for _, tt := range tests {
		if got := JPEGQScale(tt.q); got != tt.want {
			t.Errorf("JPEGQScale(%d) = %d, want %d", tt.q, got, tt.want)
		}
	}
}

// --- Stderr classification ---

func TestClassify(t *testing.T) {
	tests := []struct{ stderr, want string }{
		{"[h264_nvenc @ 0x1] No NVENC capable devices found", "nvenc unavailable"},
		{"Unknown encoder 'libx265'", "encoder not available"},
		{"in.mov: No such file or directory", "file not found"},
		{"out.mp4: No space left on device", "disk full"},
		{"moov atom not found", "invalid or corrupt input"},
		{"something unexpected", ""},
	}
	for _, tt := range tests {
		if got := Classify(tt.stderr); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.stderr, got, tt.want)
		}
	}
}

// --- Progress and stderr plumbing ---

func TestReadProgress_Monotonic(t *testing.T) {
	in := "frame=1\nout_time_us=1000000\nout_time_us=500000\nout_time_us=N/A\nout_time_us=2500000\nprogress=end\n"
	var got []float64
	readProgress(strings.NewReader(in), func(s float64) { got = append(got, s) })
	if len(got) != 2 || got[0] != 1 || got[1] != 2.5 {
		t.Errorf("got %v, want [1 2.5]", got)
	}
}

func TestTailBuffer_KeepsEnd(t *testing.T) {
	tb := &tailBuffer{max: 8}
	tb.Write([]byte("0123456789"))
	tb.Write([]byte("ab"))
	if got := tb.String(); got != "456789ab" {
		t.Errorf("got %q, want %q", got, "456789ab")
	}
}

// --- Scene detection parsing ---

func TestParseCuts(t *testing.T) {
	log := `[Parsed_showinfo_1 @ 0x1] n:   0 pts:  60000 pts_time:5       duration:...
[Parsed_showinfo_1 @ 0x1] n:   1 pts: 144000 pts_time:12      duration:...
[Parsed_showinfo_1 @ 0x1] n:   2 pts: 144000 pts_time:12      duration:...
[Parsed_showinfo_1 @ 0x1] n:   3 pts:      0 pts_time:0       duration:...`
	got := ParseCuts(log)
	if len(got) != 2 || got[0] != 5 || got[1] != 12 {
		t.Errorf("got %v, want [5 12]", got)
	}
}

func TestBoundaries(t *testing.T) {
	opts := media.DetectOptions{FPS: 24, MinSceneLen: 15, Duration: 20}
	got := Boundaries([]float64{5, 5.3, 12, 19.8}, opts)
	want := []media.Boundary{
		{Start: 0, End: 5, StartFrame: 0, EndFrame: 120},
		{Start: 5, End: 12, StartFrame: 120, EndFrame: 288},
		{Start: 12, End: 20, StartFrame: 288, EndFrame: 480},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d boundaries, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("boundary %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBoundaries_NoCuts(t *testing.T) {
	if got := Boundaries(nil, media.DetectOptions{FPS: 24, Duration: 10}); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

// --- Capabilities ---

func TestParseCaps(t *testing.T) {
	encoders := ` V....D libx264              libx264 H.264 / AVC
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder`
	hwaccels := "Hardware acceleration methods:\nvdpau\ncuda\n"
	caps := ParseCaps(encoders, hwaccels)
	if !caps.NVENC || !caps.CUDA {
		t.Errorf("got %+v, want both true", caps)
	}
	if caps := ParseCaps(" V....D libx264 x", "Hardware acceleration methods:\n"); caps.NVENC || caps.CUDA {
		t.Errorf("got %+v, want none", caps)
	}
}

func TestEscapeConcatPath(t *testing.T) {
	if got := escapeConcatPath("/tmp/it's.mp4"); got != `/tmp/it'\''s.mp4` {
		t.Errorf("got %q", got)
	}
}
