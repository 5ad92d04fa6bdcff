package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/naming"
	"github.com/backmassage/framevault/internal/planner"
	"github.com/backmassage/framevault/internal/probe"
	"github.com/backmassage/framevault/internal/progress"
	"github.com/backmassage/framevault/internal/scene"
	"github.com/backmassage/framevault/internal/store"
)

// Stage names, in execution order.
const (
	StageCopyMaster         = "copy_master"
	StageOptimizeMaster     = "optimize_master"
	StageDetectScenes       = "detect_scenes"
	StageGenerateThumbnails = "generate_thumbnails"
	StageAwaitSelection     = "await_selection"
	StageGenerateClips      = "generate_clips"
	StageExtractStills      = "extract_stills"
	StageCompressStills     = "compress_stills"
	StageFinalize           = "finalize"
)

// Stages lists every stage. A session's completed_operations is the index
// of the next stage to run.
var Stages = []string{
	StageCopyMaster,
	StageOptimizeMaster,
	StageDetectScenes,
	StageGenerateThumbnails,
	StageAwaitSelection,
	StageGenerateClips,
	StageExtractStills,
	StageCompressStills,
	StageFinalize,
}

// SessionStore is the part of *store.Store the orchestrator uses.
type SessionStore interface {
	CreateSession(ctx context.Context, ns store.NewSession) (*store.Session, error)
	LoadSession(ctx context.Context, id string) (*store.Session, error)
	ResumeWindow() time.Duration
	UpdateProgress(ctx context.Context, id string, u store.ProgressUpdate) error
	SaveSelection(ctx context.Context, id string, selection []byte) error
	UpdateStatus(ctx context.Context, id string, status store.Status, errMsg string) error
	LogOperation(ctx context.Context, id string, e store.OperationEntry) (int, error)
	RegisterFile(ctx context.Context, id string, f store.FileEntry) error
	Files(ctx context.Context, id string) ([]store.FileRegistryEntry, error)
}

// SelectionRequest is handed to the Selector at the suspend point.
type SelectionRequest struct {
	SessionID string
	Artwork   string
	Scenes    []scene.Scene
	Previous  *scene.Selection // Saved by an earlier, interrupted attempt.
}

// Selector supplies the user's scene selection. Returning an error that
// satisfies errors.IsCancellation pauses the session.
type Selector interface {
	Select(ctx context.Context, req SelectionRequest) (scene.Selection, error)
}

// Deps are the collaborators of an Orchestrator. Events may be nil.
type Deps struct {
	Store    SessionStore
	Encoder  media.Encoder
	Detector media.Detector
	Probe    probe.Source
	Selector Selector
	Caps     planner.Caps
	Events   progress.Reporter
	Log      *logging.Logger
}

// Orchestrator runs archive sessions.
type Orchestrator struct {
	cfg     *config.Config
	presets *config.PresetSet
	Deps
	now func() time.Time
}

// New returns an Orchestrator.
func New(cfg *config.Config, presets *config.PresetSet, d Deps) *Orchestrator {
	if d.Events == nil {
		d.Events = progress.Discard
	}
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	d.Log = d.Log.With("pipeline")
	return &Orchestrator{cfg: cfg, presets: presets, Deps: d, now: time.Now}
}

// ProjectDateLayout is the time layout of Params.ProjectDate.
const ProjectDateLayout = "06-01-02"

// Params starts a new session. Zero fields take their configured default.
type Params struct {
	MasterPath  string
	Artwork     string // Default: master file name without extension.
	ProjectDate string // YY-MM-DD. Default: today.
	OutputRoot  string
	PresetID    string
	Threshold   float64
	MinSceneLen int
}

// Result describes where a Run or Resume stopped.
type Result struct {
	SessionID   string
	Status      store.Status
	Stage       string // Last stage attempted.
	Root        string // Project folder.
	SummaryPath string
	Stats       RunStats
}

// run is the in-memory state of one session while stages execute.
type run struct {
	sess         *store.Session
	preset       config.Preset
	layout       naming.ProjectLayout
	master       *probe.ProbeResult
	aspect       string
	scenes       []scene.Scene
	selection    scene.Selection
	hasSelection bool
	stage        int
	summary      string
	stats        RunStats
}

func (r *run) id() string { return r.sess.ID }

func (r *run) masterCopy() string {
	return filepath.Join(r.layout.Masters, filepath.Base(r.sess.MasterPath))
}

func (r *run) proxy() string {
	return filepath.Join(r.layout.Masters, naming.ProxyName(r.sess.ArtworkName))
}

func (o *Orchestrator) withDefaults(p Params) Params {
	if p.Artwork == "" {
		base := filepath.Base(p.MasterPath)
		p.Artwork = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if p.ProjectDate == "" {
		p.ProjectDate = o.now().Format(ProjectDateLayout)
	}
	if p.OutputRoot == "" {
		p.OutputRoot = o.cfg.Paths.OutputRoot
	}
	if p.PresetID == "" {
		p.PresetID = o.cfg.Pipeline.Preset
	}
	if p.Threshold == 0 {
		p.Threshold = o.cfg.Scenes.Threshold
	}
	if p.MinSceneLen == 0 {
		p.MinSceneLen = o.cfg.Scenes.MinSceneLen
	}
	return p
}

// Validate checks the parameters after defaults are applied.
func (p Params) Validate() error {
	if p.MasterPath == "" {
		return errors.NewValidationError("master", "master video path is required")
	}
	if strings.TrimSpace(p.Artwork) == "" {
		return errors.NewValidationError("artwork", "artwork name is required")
	}
	if _, err := time.Parse(ProjectDateLayout, p.ProjectDate); err != nil {
		return errors.NewValidationError("project_date", "expected YY-MM-DD").WithValue(p.ProjectDate)
	}
	if p.Threshold <= 0 || p.Threshold > 100 {
		return errors.NewValidationError("threshold", "must be in (0, 100]").WithValue(p.Threshold)
	}
	if p.MinSceneLen < 1 {
		return errors.NewValidationError("min_scene_len", "must be at least one frame").WithValue(p.MinSceneLen)
	}
	return nil
}

// Run creates a session for p and executes every stage. A cancelled run
// returns a paused Result and a nil error; a failed stage returns the
// stage error with the session marked failed.
func (o *Orchestrator) Run(ctx context.Context, p Params) (Result, error) {
	p = o.withDefaults(p)
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	preset, err := o.presets.Get(p.PresetID)
	if err != nil {
		return Result{}, err
	}

	sess, err := o.Store.CreateSession(ctx, store.NewSession{
		ArtworkName:     p.Artwork,
		ProjectDate:     p.ProjectDate,
		MasterPath:      p.MasterPath,
		OutputRoot:      p.OutputRoot,
		PresetID:        preset.ID,
		EncoderType:     encoderType(o.cfg.Tools.Hardware, o.Caps),
		SceneThreshold:  p.Threshold,
		MinSceneLength:  p.MinSceneLen,
		TotalOperations: len(Stages),
	})
	if err != nil {
		return Result{}, err
	}
	o.Log.Info("Session %s: %s (%s)", sess.ID, sess.ArtworkName, filepath.Base(sess.MasterPath))

	r := o.newRun(sess, preset)
	if err := o.inspect(ctx, r); err != nil {
		return o.stop(ctx, r, err)
	}
	return o.execute(ctx, r)
}

// Resume continues session id at its next stage, rehydrating scenes and
// the selection from the store.
func (o *Orchestrator) Resume(ctx context.Context, id string) (Result, error) {
	sess, err := o.Store.LoadSession(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !sess.Resumable(o.now(), o.Store.ResumeWindow()) {
		return Result{SessionID: id, Status: sess.Status},
			fmt.Errorf("%w: %s is %s, last updated %s", errors.ErrNotResumable, id, sess.Status, sess.UpdatedAt.Format(time.DateTime))
	}
	preset, err := o.presets.Get(sess.PresetID)
	if err != nil {
		return Result{}, err
	}

	r := o.newRun(sess, preset)
	if r.scenes, err = sess.Scenes(); err != nil {
		return o.stop(ctx, r, err)
	}
	if r.selection, r.hasSelection, err = sess.Selection(); err != nil {
		return o.stop(ctx, r, err)
	}
	o.Log.Info("Resuming %s at stage %d/%d (%s)",
		id, sess.CompletedOperations+1, len(Stages), Stages[min(sess.CompletedOperations, len(Stages)-1)])

	if err := o.inspect(ctx, r); err != nil {
		return o.stop(ctx, r, err)
	}
	return o.execute(ctx, r)
}

func (o *Orchestrator) newRun(sess *store.Session, preset config.Preset) *run {
	return &run{
		sess:   sess,
		preset: preset,
		layout: naming.NewProjectLayout(sess.OutputRoot, sess.ProjectDate, sess.ArtworkName),
	}
}

// inspect probes and validates the master.
func (o *Orchestrator) inspect(ctx context.Context, r *run) error {
	pr, err := o.Probe.Probe(ctx, r.sess.MasterPath)
	if err != nil {
		return err
	}
	if err := probe.ValidateMaster(pr, o.cfg.Pipeline.RequireProRes); err != nil {
		return err
	}
	r.master = pr
	r.aspect = media.AspectLabel(pr.Width(), pr.Height())
	o.logMasterStats(pr)
	return nil
}

// stageFunc executes one stage. The returned update is persisted with the
// stage name when err is nil.
type stageFunc func(ctx context.Context, r *run) (store.ProgressUpdate, error)

func (o *Orchestrator) stageFuncs() []stageFunc {
	return []stageFunc{
		o.copyMaster,
		o.optimizeMaster,
		o.detectScenes,
		o.generateThumbnails,
		o.awaitSelection,
		o.generateClips,
		o.extractStills,
		o.compressStills,
		o.finalize,
	}
}

// execute moves the session to processing and runs the remaining stages.
func (o *Orchestrator) execute(ctx context.Context, r *run) (Result, error) {
	persist := context.WithoutCancel(ctx)
	if err := o.Store.UpdateStatus(persist, r.id(), store.StatusProcessing, ""); err != nil {
		return o.result(r), err
	}
	r.sess.Status = store.StatusProcessing

	funcs := o.stageFuncs()
	for i := r.sess.CompletedOperations; i < len(Stages); i++ {
		r.stage = i
		name := Stages[i]
		if err := ctx.Err(); err != nil {
			return o.stop(ctx, r, err)
		}

		o.Log.Stage("[%d/%d] %s", i+1, len(Stages), name)
		o.emit(r, "", progress.StatusStarted, "")
		start := o.now()

		upd, err := funcs[i](ctx, r)
		if err == nil {
			upd.Operation = name
			err = o.Store.UpdateProgress(persist, r.id(), upd)
		}
		o.logStage(r, name, start, err)
		if err != nil {
			return o.stop(ctx, r, err)
		}

		r.sess.CompletedOperations = i + 1
		if upd.Details != "" {
			o.Log.Success("%s: %s (%s)", name, upd.Details, display.FormatElapsed(o.now().Sub(start)))
		}
		o.emit(r, "", progress.StatusCompleted, upd.Details)
	}

	if err := o.Store.UpdateStatus(persist, r.id(), store.StatusCompleted, ""); err != nil {
		return o.result(r), err
	}
	r.sess.Status = store.StatusCompleted
	o.logSummary(r)
	return o.result(r), nil
}

// stop pauses the session on cancellation and fails it otherwise. Store
// writes ignore ctx so that an interrupt is still recorded.
func (o *Orchestrator) stop(ctx context.Context, r *run, cause error) (Result, error) {
	persist := context.WithoutCancel(ctx)
	cancelled := errors.IsCancellation(cause) || ctx.Err() != nil

	if cancelled && r.sess.Status != store.StatusInitialized {
		if err := o.Store.UpdateStatus(persist, r.id(), store.StatusPaused, ""); err != nil {
			return o.result(r), errors.Join(cause, err)
		}
		r.sess.Status = store.StatusPaused
		o.Log.Warn("Session %s paused before %s; continue with: framevault resume %s", r.id(), Stages[r.stage], r.id())
		o.emit(r, "", progress.StatusSkipped, "paused")
		return o.result(r), nil
	}

	msg := cause.Error()
	if cancelled {
		msg = "cancelled before the first stage: " + msg
	}
	if err := o.Store.UpdateStatus(persist, r.id(), store.StatusFailed, msg); err != nil {
		return o.result(r), errors.Join(cause, err)
	}
	r.sess.Status = store.StatusFailed
	o.Log.Error("Session %s failed at %s: %s", r.id(), Stages[r.stage], msg)
	o.emit(r, "", progress.StatusFailed, msg)
	return o.result(r), cause
}

func (o *Orchestrator) result(r *run) Result {
	return Result{
		SessionID:   r.id(),
		Status:      r.sess.Status,
		Stage:       Stages[r.stage],
		Root:        r.layout.Root,
		SummaryPath: r.summary,
		Stats:       r.stats,
	}
}

// --- Events and audit ---

func (o *Orchestrator) emit(r *run, item string, status progress.Status, detail string) {
	current := r.sess.CompletedOperations
	o.Events.Report(progress.Event{
		Source:  "pipeline",
		Stage:   Stages[r.stage],
		Item:    item,
		Current: current,
		Total:   len(Stages),
		Status:  status,
		Detail:  detail,
		Time:    o.now(),
	})
}

// encodeProgress reports a running encode as a percentage of duration.
func (o *Orchestrator) encodeProgress(r *run, item string, duration float64) func(float64) {
	if duration <= 0 {
		return nil
	}
	return func(s float64) {
		o.emit(r, item, progress.StatusRunning, fmt.Sprintf("%.0f%%", min(s/duration*100, 100)))
	}
}

// logStage records the stage itself in the operation log.
func (o *Orchestrator) logStage(r *run, name string, start time.Time, err error) {
	status := store.OpCompleted
	if err != nil {
		status = store.OpFailed
		if errors.IsCancellation(err) {
			status = store.OpSkipped
		}
	}
	if _, lerr := o.logOp(r, "stage", name, status, start, "", "", err); lerr != nil {
		o.Log.Warn("Operation log: %v", lerr)
	}
}

// logOp appends one operation row. It is called from pool workers.
func (o *Orchestrator) logOp(r *run, typ, name string, status store.OpStatus, start time.Time, in, out string, cause error) (int, error) {
	e := store.OperationEntry{
		Type:       typ,
		Name:       name,
		Status:     status,
		StartedAt:  start,
		FinishedAt: o.now(),
		InputFile:  in,
		OutputFile: out,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	return o.Store.LogOperation(context.Background(), r.id(), e)
}

// --- Logging helpers ---

func (o *Orchestrator) logMasterStats(pr *probe.ProbeResult) {
	v := pr.PrimaryVideo
	suffix := ""
	if pr.IsProRes() {
		suffix = " [ProRes " + v.Profile + "]"
	}
	if pr.IsInterlaced() {
		suffix += " [Interlaced]"
	}
	o.Log.Info("  Video: %s | %.3f fps | %s | %s | %s%s",
		pr.Resolution(), pr.FPS(), display.FormatClock(pr.Duration()),
		display.FormatBitrateLabel(pr.VideoBitRate()/1000), v.Codec, suffix)
	if pr.Format.Size > 0 {
		o.Log.Info("  Size: %s", display.FormatBytes(pr.Format.Size))
	}
}

func (o *Orchestrator) logSummary(r *run) {
	s := r.stats
	o.Log.Info("==============================")
	o.Log.Success("Session %s complete", r.id())
	o.Log.Info("  Clips: %d individual, %d grouped", s.Clips, s.GroupClips)
	o.Log.Info("  Stills: %d HQ, %d compressed", s.StillsHQ, s.StillsWeb)
	o.Log.Info("  Thumbnails: %d", s.Thumbnails)
	o.Log.Info("  Written: %s in %s", display.FormatBytes(s.TotalBytes), r.layout.Root)
}

func encoderType(hw config.HardwarePreference, caps planner.Caps) string {
	if hw == config.HardwareNVENC || (hw == config.HardwareAuto && caps.NVENC) {
		return "nvenc"
	}
	return "x264"
}
