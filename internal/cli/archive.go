package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/ffmpeg"
	"github.com/backmassage/framevault/internal/pipeline"
	"github.com/backmassage/framevault/internal/progress"
	"github.com/backmassage/framevault/internal/selector"
	"github.com/backmassage/framevault/internal/store"
	"github.com/backmassage/framevault/internal/term"
)

// selectFlags choose between the interactive picker and a scripted
// selection.
type selectFlags struct {
	selected      []string
	groups        []string
	noInteractive bool
}

func (f *selectFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringSliceVar(&f.selected, "select", nil, "scenes to clip on their own, e.g. 1,4,6")
	fl.StringArrayVar(&f.groups, "group", nil, "scenes joined into one clip, e.g. 2+3 (repeatable)")
	fl.BoolVar(&f.noInteractive, "no-interactive", false, "never open the scene picker")
}

// selector returns the picker when a person can answer it, and a Static
// selector otherwise. A Static selector with nothing set pauses the
// session at selection.
func (f *selectFlags) selector(cmd *cobra.Command) (pipeline.Selector, error) {
	if len(f.selected) > 0 || len(f.groups) > 0 {
		return selector.ParseStatic(f.selected, f.groups)
	}
	in, ok := cmd.InOrStdin().(*os.File)
	if f.noInteractive || !ok || !term.IsTerminal(in) {
		return selector.Static{}, nil
	}
	return selector.Picker{In: in, Out: cmd.OutOrStdout()}, nil
}

type archiveOptions struct {
	artwork     string
	date        string
	output      string
	preset      string
	threshold   float64
	minSceneLen int
	sel         selectFlags
}

func newArchiveCmd(a *app) *cobra.Command {
	var o archiveOptions
	cmd := &cobra.Command{
		Use:   "archive <master.mov>",
		Short: "Archive a master into proxy, clips and stills",
		Long: `Copy the master into a new project folder, transcode an optimized
proxy, detect scenes, ask for a selection, then write the clips, grouped
clips and stills. The session is saved after every stage.

Without --select/--group and without a terminal the session pauses at
the selection; continue it with "framevault resume --select ...".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runArchive(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.artwork, "artwork", "a", "", "artwork name (default: master file name)")
	f.StringVar(&o.date, "date", "", "project date YY-MM-DD (default: today)")
	f.StringVarP(&o.output, "output", "o", "", "output root (default: paths.output_root)")
	f.StringVarP(&o.preset, "preset", "p", "", "preset id (default: pipeline.preset)")
	f.Float64Var(&o.threshold, "threshold", 0, "scene change threshold 0-100 (default: scenes.threshold)")
	f.IntVar(&o.minSceneLen, "min-scene-len", 0, "minimum scene length in frames (default: scenes.min_scene_len)")
	o.sel.register(cmd)
	return cmd
}

func (a *app) runArchive(cmd *cobra.Command, master string, o archiveOptions) error {
	ctx := cmd.Context()
	a.banner(cmd.OutOrStdout())

	orch, stop, err := a.orchestrator(cmd, &o.sel)
	if err != nil {
		return err
	}
	res, err := orch.Run(ctx, pipeline.Params{
		MasterPath:  master,
		Artwork:     o.artwork,
		ProjectDate: o.date,
		OutputRoot:  o.output,
		PresetID:    o.preset,
		Threshold:   o.threshold,
		MinSceneLen: o.minSceneLen,
	})
	stop()
	printResult(cmd.OutOrStdout(), res)
	return err
}

type resumeOptions struct {
	sel selectFlags
}

func newResumeCmd(a *app) *cobra.Command {
	var o resumeOptions
	cmd := &cobra.Command{
		Use:   "resume [session-id]",
		Short: "Continue an interrupted archive session",
		Long: `Continue a paused or interrupted session at the stage after its last
completed one. Without an id the most recent resumable session is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return a.runResume(cmd, id, o)
		},
	}
	o.sel.register(cmd)
	return cmd
}

func (a *app) runResume(cmd *cobra.Command, id string, o resumeOptions) error {
	ctx := cmd.Context()
	if id == "" {
		st, err := a.openStore()
		if err != nil {
			return err
		}
		sess, ok, err := st.ResumableSession(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: no session within the last %s", errors.ErrNotResumable, st.ResumeWindow())
		}
		id = sess.ID
		a.log.Info("Found %s (%s, %d/%d stages)", sess.ID, sess.ArtworkName, sess.CompletedOperations, sess.TotalOperations)
	}

	orch, stop, err := a.orchestrator(cmd, &o.sel)
	if err != nil {
		return err
	}
	res, err := orch.Resume(ctx, id)
	stop()
	printResult(cmd.OutOrStdout(), res)
	return err
}

// orchestrator builds the archive pipeline for one command. stop drains
// the progress printer and must be called once the run returns.
func (a *app) orchestrator(cmd *cobra.Command, sel *selectFlags) (*pipeline.Orchestrator, func(), error) {
	ctx := cmd.Context()
	chooser, err := sel.selector(cmd)
	if err != nil {
		return nil, nil, err
	}
	presets, err := a.presets()
	if err != nil {
		return nil, nil, err
	}
	caps, err := a.caps(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}

	events := progress.NewChannel(ctx, 64)
	stop := watch(events, newEventPrinter(cmd.OutOrStdout(), a.log))
	run := ffmpeg.NewRunner(a.cfg.Tools.FFmpeg, a.log)
	orch := pipeline.New(a.cfg, presets, pipeline.Deps{
		Store:    st,
		Encoder:  ffmpeg.NewEncoder(run, a.log),
		Detector: ffmpeg.NewSceneDetector(run),
		Probe:    a.probeSource(),
		Selector: chooser,
		Caps:     caps,
		Events:   events,
		Log:      a.log,
	})
	return orch, stop, nil
}

func printResult(w io.Writer, res pipeline.Result) {
	if res.SessionID == "" {
		return
	}
	fmt.Fprintf(w, "\nSession %s: %s", res.SessionID, res.Status)
	if res.Stage != "" {
		fmt.Fprintf(w, " at %s", res.Stage)
	}
	fmt.Fprintln(w)
	if res.Root != "" {
		fmt.Fprintf(w, "Project: %s\n", res.Root)
	}
	switch res.Status {
	case store.StatusCompleted:
		s := res.Stats
		fmt.Fprintf(w, "Clips: %d  Groups: %d  Stills: %d HQ / %d web  Total: %s\n",
			s.Clips, s.GroupClips, s.StillsHQ, s.StillsWeb, display.FormatBytes(s.TotalBytes))
		if res.SummaryPath != "" {
			fmt.Fprintf(w, "Summary: %s\n", res.SummaryPath)
		}
	case store.StatusPaused:
		fmt.Fprintf(w, "Continue with: framevault resume %s\n", res.SessionID)
	}
}
