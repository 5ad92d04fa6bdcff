package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/progress"
)

// Job is what every item of a batch shares.
type Job struct {
	Project   string
	Preset    config.Preset
	OutputDir string
	Variant   string // Defaults to DefaultVariant.
}

// Compositor renders one item and returns the written path. progress
// receives a 0-100 completion percentage and may be ignored.
type Compositor interface {
	Composite(ctx context.Context, item *MediaFile, job Job, progress func(percent float64)) (string, error)
}

// Summary is the result of ProcessAll. Processed+Failed+Skipped equals
// Total, the number of enabled items.
type Summary struct {
	Total     int
	Processed int
	Failed    int
	Skipped   int
	Cancelled bool
	LogPath   string
	Elapsed   time.Duration
}

// Executor runs batches against a Compositor.
type Executor struct {
	comp    Compositor
	workers int
	log     *logging.Logger
	now     func() time.Time
}

// NewExecutor returns an Executor using up to workers concurrent image
// jobs. workers <= 1 processes images sequentially.
func NewExecutor(comp Compositor, workers int, log *logging.Logger) *Executor {
	return &Executor{comp: comp, workers: max(workers, 1), log: log.With("batch"), now: time.Now}
}

// update is sent from the workers to the single collector goroutine.
type update struct {
	item    *MediaFile
	stage   string
	done    bool
	percent float64
}

// ProcessAll composites every enabled item. Cancelling ctx stops new
// dispatches; items already started run to completion. The process log
// is written in every case.
func (e *Executor) ProcessAll(ctx context.Context, items []*MediaFile, job Job, rep progress.Reporter) (Summary, error) {
	start := e.now()
	if rep == nil {
		rep = progress.Discard
	}
	if job.Variant == "" {
		job.Variant = DefaultVariant
	}

	enabled := Enabled(items)
	if len(enabled) == 0 {
		return Summary{}, errors.NewValidationError("items", "no files selected for processing")
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	var images, videos []*MediaFile
	for _, m := range enabled {
		m.reset()
		if m.Type == media.TypeVideo {
			videos = append(videos, m)
		} else {
			images = append(images, m)
		}
	}
	sum := Summary{Total: len(enabled)}
	e.log.Info("Starting batch: %d files (%d images, %d videos)", sum.Total, len(images), len(videos))

	updates := make(chan update)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		e.collect(updates, &sum, rep)
	}()

	// Work already dispatched must not be interrupted by cancellation.
	work := context.WithoutCancel(ctx)

	// --- Images: bounded pool ---
	var g errgroup.Group
	sem := make(chan struct{}, e.workers)
	for _, m := range images {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer func() { <-sem }()
			e.runItem(work, m, job, "images", updates)
			return nil
		})
	}
	_ = g.Wait()

	// --- Videos: strictly sequential ---
	for _, m := range videos {
		if ctx.Err() != nil {
			break
		}
		e.runItem(work, m, job, "videos", updates)
	}

	close(updates)
	<-collected

	for _, m := range enabled {
		if m.Outcome == OutcomeUnprocessed {
			m.Outcome = OutcomeSkipped
			sum.Skipped++
		}
	}
	sum.Cancelled = ctx.Err() != nil
	sum.Elapsed = e.now().Sub(start)

	logPath := filepath.Join(job.OutputDir, ProcessLogName)
	if err := WriteProcessLog(logPath, items, job, sum, e.now()); err != nil {
		e.log.Error("Failed to write processing log: %v", err)
	} else {
		sum.LogPath = logPath
	}

	if sum.Cancelled {
		e.log.Warn("Batch cancelled: %d processed, %d failed, %d skipped", sum.Processed, sum.Failed, sum.Skipped)
	} else {
		e.log.Info("Batch complete: %d processed, %d failed, %d skipped", sum.Processed, sum.Failed, sum.Skipped)
	}
	return sum, nil
}

// runItem composites one item and records its outcome. A panic in the
// compositor fails the item only.
func (e *Executor) runItem(ctx context.Context, m *MediaFile, job Job, stage string, updates chan<- update) {
	defer func() {
		if r := recover(); r != nil {
			m.markFailed(fmt.Sprintf("panic: %v", r))
			updates <- update{item: m, stage: stage, done: true}
		}
	}()

	report := func(p float64) { updates <- update{item: m, stage: stage, percent: p} }
	out, err := e.comp.Composite(ctx, m, job, report)
	if err != nil {
		m.markFailed(err.Error())
	} else {
		m.markProcessed(out)
	}
	updates <- update{item: m, stage: stage, done: true}
}

// collect is the only goroutine that touches the counters and emits
// events, so Current never goes backwards.
func (e *Executor) collect(updates <-chan update, sum *Summary, rep progress.Reporter) {
	current := 0
	for u := range updates {
		ev := progress.Event{
			Source:  "batch",
			Stage:   u.stage,
			Item:    u.item.Filename,
			Current: current,
			Total:   sum.Total,
			Time:    e.now(),
		}
		if !u.done {
			ev.Status = progress.StatusRunning
			ev.Detail = fmt.Sprintf("encoding %.0f%%", u.percent)
			rep.Report(ev)
			continue
		}

		current++
		ev.Current = current
		switch u.item.Outcome {
		case OutcomeProcessed:
			sum.Processed++
			ev.Status = progress.StatusCompleted
			ev.Detail = filepath.Base(u.item.OutputPath)
			e.log.Success("Processed: %s", u.item.Filename)
		default:
			sum.Failed++
			ev.Status = progress.StatusFailed
			ev.Detail = u.item.Error
			e.log.Error("Failed: %s - %s", u.item.Filename, u.item.Error)
		}
		rep.Report(ev)
	}
}
