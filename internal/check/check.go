// Package check provides system diagnostics (the check command) and the
// pre-run dependency validation (Deps) for ffmpeg, ffprobe, h264_nvenc,
// libx264 and AAC.
package check

import (
	"context"
	"os/exec"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/ffmpeg"
	"github.com/backmassage/framevault/internal/planner"
)

// Sentinel errors returned by Deps when a required tool or encoder is missing.
var (
	ErrFFmpegNotFound   = errors.New("ffmpeg not found on PATH")
	ErrFFprobeNotFound  = errors.New("ffprobe not found on PATH")
	ErrNVENCUnavailable = errors.New("hardware nvenc selected but h264_nvenc is not usable")
	ErrX264Unavailable  = errors.New("libx264 encoder not available")
	ErrAACUnavailable   = errors.New("aac encoder not available")
)

// Logger is the minimal logging interface needed by Run.
type Logger interface {
	Info(string, ...any)
	Success(string, ...any)
	Warn(string, ...any)
	Error(string, ...any)
}

// Toolchain answers questions about the installed binaries.
type Toolchain interface {
	LookPath(name string) (string, error)
	Version(ctx context.Context, binary string) (string, error)
	Caps(ctx context.Context, binary string) (planner.Caps, error)
	HasEncoder(ctx context.Context, binary, name string) bool
	// TestEncode runs a tiny synthetic encode with the given encoder.
	TestEncode(ctx context.Context, binary, encoder string) bool
}

// System is the Toolchain of the host.
type System struct{}

func (System) LookPath(name string) (string, error) { return exec.LookPath(name) }

func (System) Version(ctx context.Context, binary string) (string, error) {
	return ffmpeg.Version(ctx, binary)
}

func (System) Caps(ctx context.Context, binary string) (planner.Caps, error) {
	return ffmpeg.ProbeCaps(ctx, binary)
}

func (System) HasEncoder(ctx context.Context, binary, name string) bool {
	return ffmpeg.HasEncoder(ctx, binary, name)
}

func (System) TestEncode(ctx context.Context, binary, encoder string) bool {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	if encoder == "aac" {
		args = append(args, "-f", "lavfi", "-i", "sine=frequency=1000:duration=0.1", "-c:a", "aac")
	} else {
		args = append(args, "-f", "lavfi", "-i", "color=black:s=256x256:d=0.1", "-c:v", encoder)
	}
	args = append(args, "-f", "null", "-")
	return exec.CommandContext(ctx, binary, args...).Run() == nil
}

// Report is what Run found.
type Report struct {
	FFmpeg  string // Version line; empty when missing.
	FFprobe bool
	Caps    planner.Caps
	NVENC   bool // h264_nvenc passed a test encode.
	X264    bool
	AAC     bool
}

// OK reports whether an archive run can proceed with hw.
func (r Report) OK(hw config.HardwarePreference) bool {
	if r.FFmpeg == "" || !r.FFprobe || !r.AAC {
		return false
	}
	if hw == config.HardwareNVENC {
		return r.NVENC
	}
	return r.X264 || (hw == config.HardwareAuto && r.NVENC)
}

// Run prints the availability of every tool and encoder. It is
// informational and does not stop on a failure.
func Run(ctx context.Context, tools config.ToolsConfig, tc Toolchain, log Logger) Report {
	var rep Report
	log.Info("=== System Check ===")

	if _, err := tc.LookPath(tools.FFmpeg); err != nil {
		log.Error("ffmpeg not found (%s)", tools.FFmpeg)
	} else if v, err := tc.Version(ctx, tools.FFmpeg); err != nil {
		log.Warn("ffmpeg found but -version failed: %v", err)
	} else {
		rep.FFmpeg = v
		log.Success("ffmpeg: %s", v)
	}

	if _, err := tc.LookPath(tools.FFprobe); err != nil {
		log.Error("ffprobe not found (%s)", tools.FFprobe)
	} else {
		rep.FFprobe = true
		log.Success("ffprobe: found")
	}
	if rep.FFmpeg == "" {
		return rep
	}

	caps, err := tc.Caps(ctx, tools.FFmpeg)
	if err != nil {
		log.Warn("Could not list encoders: %v", err)
	}
	rep.Caps = caps

	log.Info("Testing h264_nvenc...")
	switch {
	case !caps.NVENC:
		log.Warn("h264_nvenc not listed by ffmpeg")
	case tc.TestEncode(ctx, tools.FFmpeg, planner.CodecNVENC):
		rep.NVENC = true
		if caps.CUDA {
			log.Success("h264_nvenc works (cuda decode available)")
		} else {
			log.Success("h264_nvenc works")
		}
	default:
		log.Error("h264_nvenc listed but the test encode failed")
	}

	log.Info("Testing libx264...")
	if tc.HasEncoder(ctx, tools.FFmpeg, planner.CodecX264) && tc.TestEncode(ctx, tools.FFmpeg, planner.CodecX264) {
		rep.X264 = true
		log.Success("libx264 works")
	} else {
		log.Error("libx264 test encode failed")
	}

	log.Info("Testing AAC encoder...")
	if tc.TestEncode(ctx, tools.FFmpeg, "aac") {
		rep.AAC = true
		log.Success("AAC encoder works")
	} else {
		log.Error("AAC encoder test failed")
	}
	return rep
}

// Deps is the pre-run validation. It verifies that ffmpeg and ffprobe are
// on PATH and that the encoder family selected by tools.Hardware works,
// and returns the capabilities the planner should use. NVENC is reported
// only when its test encode passes, so auto falls back to libx264 on a
// host whose driver cannot encode.
func Deps(ctx context.Context, tools config.ToolsConfig, tc Toolchain) (planner.Caps, error) {
	if _, err := tc.LookPath(tools.FFmpeg); err != nil {
		return planner.Caps{}, ErrFFmpegNotFound
	}
	if _, err := tc.LookPath(tools.FFprobe); err != nil {
		return planner.Caps{}, ErrFFprobeNotFound
	}

	caps, err := tc.Caps(ctx, tools.FFmpeg)
	if err != nil {
		caps = planner.Caps{}
	}
	if caps.NVENC && tools.Hardware != config.HardwareCPU && !tc.TestEncode(ctx, tools.FFmpeg, planner.CodecNVENC) {
		caps.NVENC = false
	}

	switch {
	case tools.Hardware == config.HardwareNVENC && !caps.NVENC:
		return caps, ErrNVENCUnavailable
	case tools.Hardware != config.HardwareNVENC && !caps.NVENC && !tc.HasEncoder(ctx, tools.FFmpeg, planner.CodecX264):
		return caps, ErrX264Unavailable
	case tools.Hardware == config.HardwareCPU && !tc.HasEncoder(ctx, tools.FFmpeg, planner.CodecX264):
		return caps, ErrX264Unavailable
	}
	if !tc.HasEncoder(ctx, tools.FFmpeg, "aac") {
		return caps, ErrAACUnavailable
	}
	return caps, nil
}
