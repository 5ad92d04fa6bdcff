package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
)

// Encoder implements media.Encoder on top of a Runner.
type Encoder struct {
	run *Runner
	log *logging.Logger
}

// NewEncoder returns an Encoder that executes through run.
func NewEncoder(run *Runner, log *logging.Logger) *Encoder {
	return &Encoder{run: run, log: log.With("encoder")}
}

// Encode performs req. Each external invocation is bounded by req.Timeout.
func (e *Encoder) Encode(ctx context.Context, req media.Request) error {
	if req.Timeout <= 0 {
		return errors.NewValidationError("timeout", "encode request needs a positive timeout").WithValue(string(req.Op))
	}
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var args []string
	switch req.Op {
	case media.OpTranscode:
		if req.Plan == nil {
			return errors.NewValidationError("plan", "transcode requires an encode plan")
		}
		args = BuildTranscode(req.Plan, req.Source, req.Dest, req.Metadata)
	case media.OpClip:
		if req.Plan == nil || len(req.Segments) != 1 {
			return errors.NewValidationError("segments", "clip requires a plan and exactly one segment")
		}
		args = BuildClip(req.Plan, req.Source, req.Dest, req.Segments[0], req.Metadata)
	case media.OpConcatenate:
		return e.concatenate(ctx, req)
	case media.OpExtractFrame:
		args = BuildExtractFrame(req.Source, req.Dest, req.Timestamp, req.Still.MaxWidth)
	case media.OpThumbnail:
		args = BuildThumbnail(req.Source, req.Dest, req.Timestamp, req.Still.MaxWidth, req.Still.Quality)
	case media.OpCompressStill:
		args = BuildCompressStill(req.Source, req.Dest, req.Still)
	default:
		return errors.NewValidationError("op", "unknown encoder operation").WithValue(string(req.Op))
	}

	return e.run.Run(ctx, Job{
		Op:       string(req.Op) + " " + filepath.Base(req.Dest),
		Args:     args,
		Timeout:  req.Timeout,
		Progress: req.Progress,
	})
}

// concatenate encodes every segment into a temporary directory next to
// the destination, then joins them with the concat demuxer. Re-encoding
// each segment with the same plan guarantees the stream copy is valid.
func (e *Encoder) concatenate(ctx context.Context, req media.Request) error {
	if req.Plan == nil || len(req.Segments) < 2 {
		return errors.NewValidationError("segments", "concatenate requires a plan and at least two segments")
	}

	tmp, err := os.MkdirTemp(filepath.Dir(req.Dest), ".concat-*")
	if err != nil {
		return fmt.Errorf("create concat temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	var list strings.Builder
	var offset float64
	for i, seg := range req.Segments {
		part := filepath.Join(tmp, fmt.Sprintf("segment_%03d.mp4", i+1))
		var progress func(float64)
		if req.Progress != nil {
			base := offset
			progress = func(s float64) { req.Progress(base + s) }
		}
		e.log.Debug("concat segment %d/%d at %.3fs for %.3fs", i+1, len(req.Segments), seg.Start, seg.Duration)
		if err := e.run.Run(ctx, Job{
			Op:       fmt.Sprintf("concat segment %d of %s", i+1, filepath.Base(req.Dest)),
			Args:     BuildClip(req.Plan, req.Source, part, seg, nil),
			Timeout:  req.Timeout,
			Progress: progress,
		}); err != nil {
			return err
		}
		offset += seg.Duration
		fmt.Fprintf(&list, "file '%s'\n", escapeConcatPath(part))
	}

	listFile := filepath.Join(tmp, "segments.txt")
	if err := os.WriteFile(listFile, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return e.run.Run(ctx, Job{
		Op:      "concatenate " + filepath.Base(req.Dest),
		Args:    BuildConcat(listFile, req.Dest, req.Metadata),
		Timeout: req.Timeout,
	})
}

// escapeConcatPath quotes a path for the concat demuxer list format.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
