// Package composite renders social-prep items onto their templates with
// ffmpeg. It implements batch.Compositor and batch.TemplateAssigner.
package composite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/backmassage/framevault/internal/batch"
	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/ffmpeg"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/naming"
	"github.com/backmassage/framevault/internal/planner"
	"github.com/backmassage/framevault/internal/probe"
)

// Runner executes one ffmpeg job. *ffmpeg.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, job ffmpeg.Job) error
}

// Options configures a Compositor.
type Options struct {
	Hardware     config.HardwarePreference
	Caps         planner.Caps
	ImageTimeout time.Duration
	VideoTimeout time.Duration
}

// Compositor implements batch.Compositor.
type Compositor struct {
	run       Runner
	templates *TemplateSet
	probe     probe.Source // Optional; used to plan the audio of videos.
	opts      Options
	paths     *naming.CollisionResolver
	log       *logging.Logger
}

// New returns a Compositor. src may be nil.
func New(run Runner, templates *TemplateSet, src probe.Source, opts Options, log *logging.Logger) *Compositor {
	return &Compositor{
		run:       run,
		templates: templates,
		probe:     src,
		opts:      opts,
		paths:     naming.NewCollisionResolver(),
		log:       log.With("composite"),
	}
}

// Composite places item on its template and returns the written path.
// A failed encode removes its partial output.
func (c *Compositor) Composite(ctx context.Context, item *batch.MediaFile, job batch.Job, progress func(percent float64)) (string, error) {
	tpl, err := c.templates.Get(item.Template)
	if err != nil {
		return "", err
	}
	dest := c.paths.Resolve(item.Path, filepath.Join(job.OutputDir, item.OutputFilename(job.Project, job.Variant)))

	o := ffmpeg.Overlay{
		Source:       item.Path,
		Video:        item.Type == media.TypeVideo,
		Background:   c.templates.Background(tpl.ID),
		Color:        tpl.Color,
		CanvasWidth:  tpl.Width,
		CanvasHeight: tpl.Height,
		X:            tpl.Area.X,
		Y:            tpl.Area.Y,
		Width:        tpl.Area.Width,
		Height:       tpl.Area.Height,
	}

	run := ffmpeg.Job{Op: "composite " + item.Filename}
	if o.Video {
		plan, err := c.plan(ctx, item, job.Preset)
		if err != nil {
			return "", err
		}
		run.Args = ffmpeg.BuildOverlay(o, plan, dest, media.StillOptions{})
		run.Timeout = c.opts.VideoTimeout
		if progress != nil && item.Duration > 0 {
			run.Progress = func(s float64) { progress(min(s/item.Duration*100, 100)) }
		}
	} else {
		run.Args = ffmpeg.BuildOverlay(o, nil, dest, media.StillOptions{Quality: job.Preset.StillsWeb.Quality})
		run.Timeout = c.opts.ImageTimeout
	}

	c.log.Debug("%s -> %s (template %s)", item.Filename, filepath.Base(dest), tpl.ID)
	if err := c.run.Run(ctx, run); err != nil {
		_ = os.Remove(dest)
		c.paths.Release(dest)
		return "", err
	}
	return dest, nil
}

// AutoAssign lets a Compositor act as the scanner's template assigner.
func (c *Compositor) AutoAssign(width, height int) string {
	return c.templates.AutoAssign(width, height)
}

func (c *Compositor) plan(ctx context.Context, item *batch.MediaFile, preset config.Preset) (*planner.EncodePlan, error) {
	var pr *probe.ProbeResult
	if c.probe != nil {
		var err error
		if pr, err = c.probe.Probe(ctx, item.Path); err != nil {
			c.log.Warn("Probe %s failed, assuming audio: %v", item.Filename, err)
			pr = nil
		}
	}
	plan, err := planner.BuildPlan(preset, c.opts.Hardware, c.opts.Caps, pr, planner.PurposeOverlay)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", item.Filename, err)
	}
	return plan, nil
}
