// Package rnd processes a project's R&D folder: every image becomes a
// lossless PNG and a compressed JPEG, every video a high-quality and a
// compressed MP4. Images run on a worker pool; videos run one at a time.
package rnd

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/naming"
	"github.com/backmassage/framevault/internal/planner"
	"github.com/backmassage/framevault/internal/probe"
	"github.com/backmassage/framevault/internal/progress"
)

// Output variants used in R&D file names.
const (
	VariantHQ         = "HQ"
	VariantCompressed = "compressed"
)

// Options configures a Processor.
type Options struct {
	Hardware     config.HardwarePreference
	Caps         planner.Caps
	Workers      int
	StillTimeout time.Duration
	VideoTimeout time.Duration
	Artist       string
	Copyright    string
}

// Params selects the folder to process and the project it belongs to.
type Params struct {
	InputDir    string
	Artwork     string
	ProjectDate string
	OutputRoot  string
	Preset      config.Preset
}

// Failure is one source that could not be fully processed.
type Failure struct {
	Path string
	Err  error
}

// Report summarizes a run.
type Report struct {
	Images           int
	Videos           int
	HQ               int
	Compressed       int
	Failures         []Failure
	ImageOutputs     []string
	VideoOutputs     []string
	Elapsed          time.Duration
	Cancelled        bool
	ProjectDirectory string
}

// Processor runs R&D jobs through an encoder.
type Processor struct {
	enc    media.Encoder
	probe  probe.Source
	opts   Options
	log    *logging.Logger
	events progress.Reporter
	now    func() time.Time
}

// New returns a Processor. events may be nil.
func New(enc media.Encoder, src probe.Source, opts Options, log *logging.Logger, events progress.Reporter) *Processor {
	if events == nil {
		events = progress.Discard
	}
	opts.Workers = max(opts.Workers, 1)
	return &Processor{enc: enc, probe: src, opts: opts, log: log.With("rnd"), events: events, now: time.Now}
}

// tracker serializes report updates and progress events from the pool.
type tracker struct {
	mu      sync.Mutex
	rep     *Report
	current int
	total   int
	p       *Processor
}

func (t *tracker) done(stage, path string, outputs []string, hq, compressed int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current++
	t.rep.HQ += hq
	t.rep.Compressed += compressed
	ev := progress.Event{
		Source:  "rnd",
		Stage:   stage,
		Item:    filepath.Base(path),
		Current: t.current,
		Total:   t.total,
		Status:  progress.StatusCompleted,
		Time:    t.p.now(),
	}
	if stage == "images" {
		t.rep.ImageOutputs = append(t.rep.ImageOutputs, outputs...)
	} else {
		t.rep.VideoOutputs = append(t.rep.VideoOutputs, outputs...)
	}
	if err != nil {
		t.rep.Failures = append(t.rep.Failures, Failure{Path: path, Err: err})
		ev.Status = progress.StatusFailed
		ev.Detail = err.Error()
		t.p.log.Error("Failed: %s - %v", filepath.Base(path), err)
	} else {
		t.p.log.Success("Processed: %s", filepath.Base(path))
	}
	t.p.events.Report(ev)
}

// Process converts every supported file under p.InputDir. A failed item is
// recorded and does not stop the run. Cancellation stops dispatching new
// items and returns the partial report with errors.ErrCancelled.
func (p *Processor) Process(ctx context.Context, params Params) (Report, error) {
	start := p.now()
	if params.Artwork == "" {
		return Report{}, errors.NewValidationError("artwork", "artwork name is required")
	}
	images, videos, err := Discover(params.InputDir)
	if err != nil {
		return Report{}, fmt.Errorf("scan R&D folder: %w", err)
	}
	rep := Report{Images: len(images), Videos: len(videos)}
	if len(images)+len(videos) == 0 {
		return rep, errors.NewValidationError("input", "no images or videos found").WithValue(params.InputDir)
	}

	layout := naming.NewProjectLayout(params.OutputRoot, params.ProjectDate, params.Artwork)
	if err := layout.Create(true); err != nil {
		return rep, fmt.Errorf("create project folders: %w", err)
	}
	rep.ProjectDirectory = layout.Root
	p.log.Info("R&D: %d images, %d videos from %s", len(images), len(videos), params.InputDir)

	t := &tracker{rep: &rep, total: len(images) + len(videos), p: p}

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, path := range images {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outs, err := p.image(ctx, layout, params, i+1, path)
			t.done("images", path, outs, min(len(outs), 1), max(len(outs)-1, 0), err)
			return nil
		})
	}
	_ = g.Wait()

	for i, path := range videos {
		if ctx.Err() != nil {
			break
		}
		outs, err := p.video(ctx, layout, params, i+1, path)
		t.done("videos", path, outs, min(len(outs), 1), max(len(outs)-1, 0), err)
	}

	rep.Elapsed = p.now().Sub(start)
	if ctx.Err() != nil {
		rep.Cancelled = true
		p.log.Warn("R&D cancelled after %d of %d files", t.current, t.total)
		return rep, fmt.Errorf("%w: R&D processing", errors.ErrCancelled)
	}
	p.log.Info("R&D complete: %d HQ, %d compressed, %d failed", rep.HQ, rep.Compressed, len(rep.Failures))
	return rep, nil
}

// image writes the HQ PNG and then the compressed JPEG of one source. The
// returned outputs are in that order and stop at the first failure.
func (p *Processor) image(ctx context.Context, layout naming.ProjectLayout, params Params, seq int, path string) ([]string, error) {
	pr, err := p.probe.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	aspect := media.AspectLabel(pr.Width(), pr.Height())

	hq := filepath.Join(layout.RndHighRes, naming.RndName(params.Artwork, VariantHQ, seq, aspect, ".png"))
	if err := p.enc.Encode(ctx, media.Request{
		Op:      media.OpExtractFrame,
		Source:  path,
		Dest:    hq,
		Timeout: p.opts.StillTimeout,
	}); err != nil {
		return nil, err
	}

	web := params.Preset.StillsWeb
	small := filepath.Join(layout.RndCompressed, naming.RndName(params.Artwork, VariantCompressed, seq, aspect, ".jpg"))
	if err := p.enc.Encode(ctx, media.Request{
		Op:     media.OpCompressStill,
		Source: path,
		Dest:   small,
		Still: media.StillOptions{
			Quality:  web.Quality,
			MaxWidth: web.MaxWidth,
			Optimize: web.Optimize,
			Full444:  web.Subsampling == "4:4:4",
		},
		Timeout: p.opts.StillTimeout,
	}); err != nil {
		return []string{hq}, err
	}
	return []string{hq, small}, nil
}

// video encodes the HQ (CRF 17) and compressed (CRF 23) MP4s of one source.
func (p *Processor) video(ctx context.Context, layout naming.ProjectLayout, params Params, seq int, path string) ([]string, error) {
	pr, err := p.probe.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	aspect := media.AspectLabel(pr.Width(), pr.Height())

	targets := []struct {
		purpose planner.Purpose
		variant string
		dir     string
	}{
		{planner.PurposeHQ, VariantHQ, layout.RndClipsHQ},
		{planner.PurposeWeb, VariantCompressed, layout.RndClipsSmall},
	}
	var outs []string
	for _, tgt := range targets {
		plan, err := planner.BuildPlan(params.Preset, p.opts.Hardware, p.opts.Caps, pr, tgt.purpose)
		if err != nil {
			return outs, err
		}
		dest := filepath.Join(tgt.dir, naming.RndName(params.Artwork, tgt.variant, seq, aspect, ".mp4"))
		item := filepath.Base(dest)
		req := media.Request{
			Op:      media.OpTranscode,
			Source:  path,
			Dest:    dest,
			Plan:    plan,
			Timeout: p.opts.VideoTimeout,
			Metadata: map[string]string{
				"title":     fmt.Sprintf("%s R&D %02d", params.Artwork, seq),
				"artist":    p.opts.Artist,
				"copyright": p.opts.Copyright,
			},
		}
		if d := pr.Duration(); d > 0 {
			req.Progress = func(s float64) {
				p.events.Report(progress.Event{
					Source: "rnd",
					Stage:  "videos",
					Item:   item,
					Status: progress.StatusRunning,
					Detail: fmt.Sprintf("%.0f%%", min(s/d*100, 100)),
					Time:   p.now(),
				})
			}
		}
		p.log.Debug("%s -> %s (%s)", filepath.Base(path), item, plan.QualityNote)
		if err := p.enc.Encode(ctx, req); err != nil {
			return outs, err
		}
		outs = append(outs, dest)
	}
	return outs, nil
}
