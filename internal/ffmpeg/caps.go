package ffmpeg

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/backmassage/framevault/internal/planner"
)

// capsTimeout bounds the capability queries.
const capsTimeout = 10 * time.Second

// ProbeCaps asks ffmpeg which hardware encoders and decoders it supports.
// A missing or failing binary yields empty caps and the error.
func ProbeCaps(ctx context.Context, binary string) (planner.Caps, error) {
	encoders, err := query(ctx, binary, "-encoders")
	if err != nil {
		return planner.Caps{}, err
	}
	hwaccels, err := query(ctx, binary, "-hwaccels")
	if err != nil {
		return planner.Caps{}, err
	}
	return ParseCaps(encoders, hwaccels), nil
}

// ParseCaps interprets the output of "ffmpeg -encoders" and "-hwaccels".
func ParseCaps(encoders, hwaccels string) planner.Caps {
	var caps planner.Caps
	for _, line := range strings.Split(encoders, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == planner.CodecNVENC {
			caps.NVENC = true
		}
	}
	for _, line := range strings.Split(hwaccels, "\n") {
		if strings.TrimSpace(line) == "cuda" {
			caps.CUDA = true
		}
	}
	return caps
}

// Version returns the first line of "ffmpeg -version".
func Version(ctx context.Context, binary string) (string, error) {
	out, err := query(ctx, binary, "-version")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	return first, nil
}

// HasEncoder reports whether "ffmpeg -encoders" lists name.
func HasEncoder(ctx context.Context, binary, name string) bool {
	out, err := query(ctx, binary, "-encoders")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if f := strings.Fields(line); len(f) >= 2 && f[1] == name {
			return true
		}
	}
	return false
}

func query(ctx context.Context, binary, flag string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, capsTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "-hide_banner", flag).Output()
	return string(out), err
}
