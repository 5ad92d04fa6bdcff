package check

import (
	"context"
	"fmt"
	"testing"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/planner"
)

// fakeTools describes a host: which binaries exist, which encoders are
// listed and which of those actually encode.
type fakeTools struct {
	missing  map[string]bool
	caps     planner.Caps
	encoders map[string]bool
	broken   map[string]bool
}

func (f fakeTools) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

func (f fakeTools) Version(context.Context, string) (string, error) {
	return "ffmpeg version 7.1 Copyright (c) 2000-2024", nil
}

func (f fakeTools) Caps(context.Context, string) (planner.Caps, error) { return f.caps, nil }

func (f fakeTools) HasEncoder(_ context.Context, _, name string) bool {
	return f.encoders[name] || (name == planner.CodecNVENC && f.caps.NVENC)
}

func (f fakeTools) TestEncode(ctx context.Context, bin, enc string) bool {
	return f.HasEncoder(ctx, bin, enc) && !f.broken[enc]
}

// nopLogger satisfies Logger.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)    {}
func (nopLogger) Success(string, ...any) {}
func (nopLogger) Warn(string, ...any)    {}
func (nopLogger) Error(string, ...any)   {}

func tools(hw config.HardwarePreference) config.ToolsConfig {
	return config.ToolsConfig{FFmpeg: "ffmpeg", FFprobe: "ffprobe", Hardware: hw}
}

var cpuHost = map[string]bool{"libx264": true, "aac": true}

func TestDeps(t *testing.T) {
	tests := []struct {
		name      string
		hw        config.HardwarePreference
		host      fakeTools
		want      error
		wantNVENC bool
	}{
		{"cpu host auto", config.HardwareAuto, fakeTools{encoders: cpuHost}, nil, false},
		{"gpu host auto", config.HardwareAuto, fakeTools{encoders: cpuHost, caps: planner.Caps{NVENC: true}}, nil, true},
		{"broken gpu falls back", config.HardwareAuto, fakeTools{encoders: cpuHost, caps: planner.Caps{NVENC: true}, broken: map[string]bool{"h264_nvenc": true}}, nil, false},
		{"nvenc required", config.HardwareNVENC, fakeTools{encoders: cpuHost}, ErrNVENCUnavailable, false},
		{"no ffmpeg", config.HardwareAuto, fakeTools{missing: map[string]bool{"ffmpeg": true}}, ErrFFmpegNotFound, false},
		{"no ffprobe", config.HardwareAuto, fakeTools{missing: map[string]bool{"ffprobe": true}}, ErrFFprobeNotFound, false},
		{"no x264", config.HardwareCPU, fakeTools{encoders: map[string]bool{"aac": true}, caps: planner.Caps{NVENC: true}}, ErrX264Unavailable, false},
		{"no aac", config.HardwareAuto, fakeTools{encoders: map[string]bool{"libx264": true}}, ErrAACUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps, err := Deps(context.Background(), tools(tt.hw), tt.host)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if err == nil && caps.NVENC != tt.wantNVENC {
				t.Errorf("NVENC = %v, want %v", caps.NVENC, tt.wantNVENC)
			}
		})
	}
}

func TestRun(t *testing.T) {
	host := fakeTools{encoders: cpuHost, caps: planner.Caps{NVENC: true, CUDA: true}, broken: map[string]bool{"h264_nvenc": true}}
	rep := Run(context.Background(), tools(config.HardwareAuto), host, nopLogger{})

	if rep.FFmpeg == "" || !rep.FFprobe || !rep.X264 || !rep.AAC {
		t.Errorf("report = %+v", rep)
	}
	if rep.NVENC {
		t.Error("a failing nvenc test encode must not count")
	}
	if !rep.OK(config.HardwareAuto) || rep.OK(config.HardwareNVENC) {
		t.Errorf("OK(auto)=%v OK(nvenc)=%v", rep.OK(config.HardwareAuto), rep.OK(config.HardwareNVENC))
	}
}

func TestRun_MissingFFmpegStopsEarly(t *testing.T) {
	rep := Run(context.Background(), tools(config.HardwareAuto), fakeTools{missing: map[string]bool{"ffmpeg": true}}, nopLogger{})
	if rep.FFmpeg != "" || rep.X264 || rep.OK(config.HardwareCPU) {
		t.Errorf("report = %+v", rep)
	}
}
