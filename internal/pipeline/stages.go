package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/naming"
	"github.com/backmassage/framevault/internal/planner"
	"github.com/backmassage/framevault/internal/progress"
	"github.com/backmassage/framevault/internal/scene"
	"github.com/backmassage/framevault/internal/store"
)

// thumbnailWidth is the width of the picker previews.
const thumbnailWidth = 320

// --- 1. copy_master ---

func (o *Orchestrator) copyMaster(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	if err := r.layout.Create(false); err != nil {
		return store.ProgressUpdate{}, fmt.Errorf("create project folders: %w", err)
	}
	dest := r.masterCopy()
	start := o.now()
	n, copied, err := copyFile(ctx, r.sess.MasterPath, dest)
	if err != nil {
		o.logOp(r, "copy", filepath.Base(dest), store.OpFailed, start, r.sess.MasterPath, dest, err)
		return store.ProgressUpdate{}, err
	}
	if !copied {
		o.Log.Info("Master already present: %s", dest)
	}
	if err := o.register(ctx, r, dest, store.FileMaster, r.layout.Masters, r.sess.MasterPath); err != nil {
		return store.ProgressUpdate{}, err
	}
	return store.ProgressUpdate{Details: fmt.Sprintf("%s (%s)", filepath.Base(dest), display.FormatBytes(n))}, nil
}

// copyFile copies src to dest through a temporary file and keeps the
// modification time. An existing dest with the same size and mtime is
// left alone, which makes the stage cheap to re-enter on resume.
func copyFile(ctx context.Context, src, dest string) (int64, bool, error) {
	si, err := os.Stat(src)
	if err != nil {
		return 0, false, fmt.Errorf("stat master: %w", err)
	}
	if di, err := os.Stat(dest); err == nil && di.Size() == si.Size() && di.ModTime().Equal(si.ModTime()) {
		return si.Size(), false, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, false, fmt.Errorf("open master: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".copy-*")
	if err != nil {
		return 0, false, fmt.Errorf("create master copy: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: in})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, false, fmt.Errorf("copy master: %w", err)
	}
	if err := os.Chtimes(tmp.Name(), si.ModTime(), si.ModTime()); err != nil {
		return 0, false, fmt.Errorf("copy master times: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, false, fmt.Errorf("place master copy: %w", err)
	}
	return n, true, nil
}

// ctxReader stops a long copy when ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// --- 2. optimize_master ---

func (o *Orchestrator) optimizeMaster(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	plan, err := planner.BuildPlan(r.preset, o.cfg.Tools.Hardware, o.Caps, r.master, planner.PurposeProxy)
	if err != nil {
		return store.ProgressUpdate{}, err
	}
	o.Log.Debug("Proxy plan: %s %s", plan.VideoCodec, plan.QualityNote)

	dest := r.proxy()
	err = o.encode(ctx, r, "transcode", media.Request{
		Op:       media.OpTranscode,
		Source:   r.masterCopy(),
		Dest:     dest,
		Plan:     plan,
		Metadata: o.metadata(r.sess.ArtworkName),
		Timeout:  o.cfg.Timeouts.Transcode,
		Progress: o.encodeProgress(r, filepath.Base(dest), r.master.Duration()),
	})
	if err != nil {
		return store.ProgressUpdate{}, err
	}
	if err := o.register(ctx, r, dest, store.FileProxy, r.layout.Masters, r.masterCopy()); err != nil {
		return store.ProgressUpdate{}, err
	}
	return store.ProgressUpdate{Details: fmt.Sprintf("%s via %s", filepath.Base(dest), plan.VideoCodec)}, nil
}

// --- 3. detect_scenes ---

func (o *Orchestrator) detectScenes(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	start := o.now()
	scenes, err := scene.Detect(ctx, o.Detector, r.proxy(),
		scene.DetectOptions{Threshold: r.sess.SceneThreshold, MinSceneLen: r.sess.MinSceneLength},
		scene.MediaInfo{Duration: r.master.Duration(), FPS: r.master.FPS()},
		o.cfg.Timeouts.Detect)
	if err != nil {
		o.logOp(r, "detect", "scene detection", store.OpFailed, start, r.proxy(), "", err)
		return store.ProgressUpdate{}, err
	}
	data, err := scene.Export(scenes)
	if err != nil {
		return store.ProgressUpdate{}, err
	}
	r.scenes = scenes
	for _, s := range scenes {
		o.Log.Debug("  %s", s)
	}
	return store.ProgressUpdate{Details: fmt.Sprintf("%d scenes", len(scenes)), Scenes: data}, nil
}

// --- 4. generate_thumbnails ---

// generateThumbnails renders one preview per scene. A failed thumbnail is
// logged and leaves the scene without a preview; only cancellation or a
// store error stops the stage.
func (o *Orchestrator) generateThumbnails(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	if err := needScenes(r); err != nil {
		return store.ProgressUpdate{}, err
	}
	var g errgroup.Group
	g.SetLimit(o.cfg.Batch.Workers)
	var failed atomic.Int32

	for i := range r.scenes {
		sc := &r.scenes[i]
		sc.ThumbnailPath = ""
		g.Go(func() error {
			dest := filepath.Join(r.layout.Thumbnails, naming.ThumbnailName(r.sess.ArtworkName, sc.SceneNumber))
			err := o.encode(ctx, r, "thumbnail", media.Request{
				Op:        media.OpThumbnail,
				Source:    r.proxy(),
				Dest:      dest,
				Timestamp: sc.Midpoint(),
				Still:     media.StillOptions{Quality: r.preset.Thumbnails.Quality, MaxWidth: thumbnailWidth},
				Timeout:   o.cfg.Timeouts.Thumbnail,
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				o.Log.Warn("Thumbnail for scene %d failed: %v", sc.SceneNumber, err)
				o.emit(r, filepath.Base(dest), progress.StatusWarning, err.Error())
				return nil
			}
			sc.ThumbnailPath = dest
			return o.register(ctx, r, dest, store.FileThumbnail, r.layout.Thumbnails, r.proxy())
		})
	}
	if err := g.Wait(); err != nil {
		return store.ProgressUpdate{}, err
	}

	data, err := scene.Export(r.scenes)
	if err != nil {
		return store.ProgressUpdate{}, err
	}
	details := fmt.Sprintf("%d thumbnails", len(r.scenes)-int(failed.Load()))
	if n := failed.Load(); n > 0 {
		details += fmt.Sprintf(", %d failed", n)
	}
	return store.ProgressUpdate{Details: details, Scenes: data}, nil
}

// --- 5. await_selection ---

// awaitSelection suspends on the Selector. No store lock is held while it
// waits. The validated selection is saved before the stage is counted so
// an interrupted session can offer it again.
func (o *Orchestrator) awaitSelection(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	if err := needScenes(r); err != nil {
		return store.ProgressUpdate{}, err
	}
	if o.Selector == nil {
		return store.ProgressUpdate{}, errors.NewValidationError("selector", "no scene selector configured")
	}

	req := SelectionRequest{SessionID: r.id(), Artwork: r.sess.ArtworkName, Scenes: r.scenes}
	if r.hasSelection {
		prev := r.selection
		req.Previous = &prev
	}
	o.emit(r, "", progress.StatusRunning, fmt.Sprintf("waiting for selection of %d scenes", len(r.scenes)))

	sel, err := o.Selector.Select(ctx, req)
	if err != nil {
		if errors.IsCancellation(err) || ctx.Err() != nil {
			return store.ProgressUpdate{}, fmt.Errorf("%w: scene selection", errors.ErrCancelled)
		}
		return store.ProgressUpdate{}, err
	}
	sel = sel.Normalize()
	if err := sel.Validate(r.scenes); err != nil {
		return store.ProgressUpdate{}, err
	}
	data, err := scene.MarshalSelection(sel)
	if err != nil {
		return store.ProgressUpdate{}, err
	}
	if err := o.Store.SaveSelection(context.WithoutCancel(ctx), r.id(), data); err != nil {
		return store.ProgressUpdate{}, err
	}
	r.selection, r.hasSelection = sel, true
	return store.ProgressUpdate{
		Details:   describeSelection(sel),
		Selection: data,
	}, nil
}

func describeSelection(sel scene.Selection) string {
	if sel.Empty() {
		return "no clips selected"
	}
	groups := make([]string, len(sel.Groups))
	for i, g := range sel.Groups {
		groups[i] = g.String()
	}
	return fmt.Sprintf("scenes %v, groups [%s]", sel.Individual, strings.Join(groups, " "))
}

// --- 6. generate_clips ---

// generateClips encodes one clip per selected scene and one per group,
// strictly one at a time.
func (o *Orchestrator) generateClips(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	if err := needScenes(r); err != nil {
		return store.ProgressUpdate{}, err
	}
	if !r.hasSelection {
		return store.ProgressUpdate{}, errors.NewValidationError("selection", "session has no saved selection")
	}
	if r.selection.Empty() {
		return store.ProgressUpdate{Details: "no clips selected"}, nil
	}
	plan, err := planner.BuildPlan(r.preset, o.cfg.Tools.Hardware, o.Caps, r.master, planner.PurposeClip)
	if err != nil {
		return store.ProgressUpdate{}, err
	}

	for _, n := range r.selection.Individual {
		sc := r.scenes[n-1]
		dest := filepath.Join(r.layout.Clips, naming.ClipName(r.sess.ArtworkName, n))
		err := o.encode(ctx, r, "clip", media.Request{
			Op:       media.OpClip,
			Source:   r.masterCopy(),
			Dest:     dest,
			Segments: []media.Segment{sc.Segment()},
			Plan:     plan,
			Metadata: o.metadata(fmt.Sprintf("%s - Scene %d", r.sess.ArtworkName, n)),
			Timeout:  o.cfg.Timeouts.Clip,
			Progress: o.encodeProgress(r, filepath.Base(dest), sc.Duration),
		})
		if err != nil {
			return store.ProgressUpdate{}, err
		}
		if err := o.register(ctx, r, dest, store.FileClip, r.layout.Clips, r.masterCopy()); err != nil {
			return store.ProgressUpdate{}, err
		}
	}

	for i, g := range r.selection.Groups {
		dest := filepath.Join(r.layout.Clips, naming.GroupName(r.sess.ArtworkName, i+1))
		err := o.encode(ctx, r, "group_clip", media.Request{
			Op:       media.OpConcatenate,
			Source:   r.masterCopy(),
			Dest:     dest,
			Segments: g.Segments(r.scenes),
			Plan:     plan,
			Metadata: o.metadata(fmt.Sprintf("%s - Scenes %s", r.sess.ArtworkName, g)),
			Timeout:  o.cfg.Timeouts.Clip,
			Progress: o.encodeProgress(r, filepath.Base(dest), g.Duration(r.scenes)),
		})
		if err != nil {
			return store.ProgressUpdate{}, err
		}
		if err := o.register(ctx, r, dest, store.FileGroupClip, r.layout.Clips, r.masterCopy()); err != nil {
			return store.ProgressUpdate{}, err
		}
	}
	return store.ProgressUpdate{
		Details: fmt.Sprintf("%d clips, %d grouped", len(r.selection.Individual), len(r.selection.Groups)),
	}, nil
}

// --- 7. extract_stills ---

// extractStills takes a full-resolution frame from the middle of every
// detected scene, selected or not.
func (o *Orchestrator) extractStills(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	if err := needScenes(r); err != nil {
		return store.ProgressUpdate{}, err
	}
	maxWidth, err := r.preset.StillsHQ.MaxWidth()
	if err != nil {
		return store.ProgressUpdate{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Batch.Workers)
	for _, sc := range r.scenes {
		g.Go(func() error {
			dest := stillHQPath(r, sc.SceneNumber)
			if err := o.encode(gctx, r, "still", media.Request{
				Op:        media.OpExtractFrame,
				Source:    r.masterCopy(),
				Dest:      dest,
				Timestamp: sc.Midpoint(),
				Still:     media.StillOptions{MaxWidth: maxWidth},
				Timeout:   o.cfg.Timeouts.Frame,
			}); err != nil {
				return err
			}
			return o.register(ctx, r, dest, store.FileStillHQ, r.layout.StillsHQ, r.masterCopy())
		})
	}
	if err := g.Wait(); err != nil {
		return store.ProgressUpdate{}, err
	}
	return store.ProgressUpdate{Details: fmt.Sprintf("%d stills", len(r.scenes))}, nil
}

// stillHQPath names the HQ still of a scene in the preset's format.
func stillHQPath(r *run, n int) string {
	name := naming.StillHQName(r.sess.ArtworkName, n, r.aspect)
	if strings.EqualFold(r.preset.StillsHQ.Format, "tiff") {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".tiff"
	}
	return filepath.Join(r.layout.StillsHQ, name)
}

// --- 8. compress_stills ---

func (o *Orchestrator) compressStills(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	if err := needScenes(r); err != nil {
		return store.ProgressUpdate{}, err
	}
	web := r.preset.StillsWeb
	opts := media.StillOptions{
		Quality:  web.Quality,
		MaxWidth: web.MaxWidth,
		Optimize: web.Optimize,
		Full444:  web.Subsampling == "4:4:4",
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Batch.Workers)
	for _, sc := range r.scenes {
		g.Go(func() error {
			src := stillHQPath(r, sc.SceneNumber)
			dest := filepath.Join(r.layout.StillsWeb, naming.StillWebName(r.sess.ArtworkName, sc.SceneNumber, r.aspect))
			if err := o.encode(gctx, r, "compress", media.Request{
				Op:      media.OpCompressStill,
				Source:  src,
				Dest:    dest,
				Still:   opts,
				Timeout: o.cfg.Timeouts.Frame,
			}); err != nil {
				return err
			}
			return o.register(ctx, r, dest, store.FileStillWeb, r.layout.StillsWeb, src)
		})
	}
	if err := g.Wait(); err != nil {
		return store.ProgressUpdate{}, err
	}
	return store.ProgressUpdate{Details: fmt.Sprintf("%d web stills (q%d)", len(r.scenes), web.Quality)}, nil
}

// --- 9. finalize ---

func (o *Orchestrator) finalize(ctx context.Context, r *run) (store.ProgressUpdate, error) {
	files, err := o.Store.Files(ctx, r.id())
	if err != nil {
		return store.ProgressUpdate{}, err
	}
	stats := StatsFromFiles(files)
	path, err := writeSummary(r.layout.Root, SessionSummary{
		SessionID:   r.id(),
		Artwork:     r.sess.ArtworkName,
		ProjectDate: r.sess.ProjectDate,
		PresetID:    r.sess.PresetID,
		Encoder:     r.sess.EncoderType,
		MasterPath:  r.sess.MasterPath,
		Scenes:      r.scenes,
		Selection:   r.selection,
		Outputs:     stats,
		GeneratedAt: o.now().UTC(),
	}, files)
	if err != nil {
		return store.ProgressUpdate{}, err
	}
	if err := o.register(ctx, r, path, store.FileLog, r.layout.Root, ""); err != nil {
		return store.ProgressUpdate{}, err
	}
	r.summary, r.stats = path, stats
	return store.ProgressUpdate{Details: filepath.Base(path)}, nil
}

// --- Helpers ---

// encode runs one encoder request and records it in the operation log.
func (o *Orchestrator) encode(ctx context.Context, r *run, typ string, req media.Request) error {
	start := o.now()
	err := o.Encoder.Encode(ctx, req)
	status := store.OpCompleted
	if err != nil {
		status = store.OpFailed
	}
	if _, lerr := o.logOp(r, typ, filepath.Base(req.Dest), status, start, req.Source, req.Dest, err); lerr != nil {
		return errors.Join(err, lerr)
	}
	return err
}

func (o *Orchestrator) register(ctx context.Context, r *run, path string, t store.FileType, dir, source string) error {
	return o.Store.RegisterFile(context.WithoutCancel(ctx), r.id(), store.FileEntry{
		Path:        path,
		Type:        t,
		Category:    r.layout.Category(dir),
		AspectRatio: r.aspect,
		SourceFile:  source,
	})
}

func (o *Orchestrator) metadata(title string) map[string]string {
	return map[string]string{
		"title":     title,
		"artist":    o.cfg.Metadata.Artist,
		"copyright": o.cfg.Metadata.Copyright,
	}
}

func needScenes(r *run) error {
	if len(r.scenes) == 0 {
		return errors.NewValidationError("scenes", "session has no detected scenes")
	}
	return nil
}
