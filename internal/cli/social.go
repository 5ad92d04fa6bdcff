package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/backmassage/framevault/internal/batch"
	"github.com/backmassage/framevault/internal/composite"
	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/ffmpeg"
	"github.com/backmassage/framevault/internal/progress"
)

func newSocialCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "social",
		Short: "Place images and videos on social media templates",
	}
	cmd.AddCommand(newSocialScanCmd(a), newSocialProcessCmd(a), newSocialTemplatesCmd(a))
	return cmd
}

func newSocialTemplatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the loaded templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ts, err := composite.LoadTemplateSet(a.cfg.Paths, a.log)
			if err != nil {
				return err
			}
			for _, id := range ts.IDs() {
				fmt.Fprintln(cmd.OutOrStdout(), ts.Describe(id))
			}
			return nil
		},
	}
}

func newSocialScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <folder>",
		Short: "List the media of a folder with their assigned templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := composite.LoadTemplateSet(a.cfg.Paths, a.log)
			if err != nil {
				return err
			}
			sc := batch.Scanner{Probe: a.probeSource(), Assigner: ts, Log: a.log}
			items, err := sc.Scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeItems(cmd.OutOrStdout(), items)
			return nil
		},
	}
}

// socialOptions edit the scanned list before processing.
type socialOptions struct {
	project   string
	output    string
	preset    string
	variant   string
	templates []string // seq=template
	disable   []int
	moves     []string // from:to
}

func newSocialProcessCmd(a *app) *cobra.Command {
	var o socialOptions
	cmd := &cobra.Command{
		Use:   "process <folder>",
		Short: "Composite every enabled item of a folder",
		Long: `Scan the folder, apply the list edits given as flags, then composite
every enabled item. Images run on the worker pool, videos one at a time.
A processing log is written next to the outputs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSocial(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.project, "project", "n", "", "project name used in output names (required)")
	f.StringVarP(&o.output, "output", "o", "", "output folder, outside the input (default: <folder>_social)")
	f.StringVarP(&o.preset, "preset", "p", "", "preset id (default: pipeline.preset)")
	f.StringVar(&o.variant, "variant", batch.DefaultVariant, "variant suffix of the output names")
	f.StringArrayVarP(&o.templates, "template", "t", nil, "assign a template, e.g. 3=16-9 (repeatable)")
	f.IntSliceVar(&o.disable, "disable", nil, "sequence numbers to leave out")
	f.StringArrayVar(&o.moves, "move", nil, "move an item, e.g. 4:1 (repeatable, applied in order)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func (a *app) runSocial(cmd *cobra.Command, dir string, o socialOptions) error {
	ctx := cmd.Context()
	a.banner(cmd.OutOrStdout())

	if o.output == "" {
		o.output = filepath.Clean(config.NormalizeDirArg(dir)) + "_social"
	}
	inAbs, outAbs, err := resolveDirs(dir, o.output)
	if err != nil {
		return err
	}
	presets, err := a.presets()
	if err != nil {
		return err
	}
	presetID := o.preset
	if presetID == "" {
		presetID = a.cfg.Pipeline.Preset
	}
	preset, err := presets.Get(presetID)
	if err != nil {
		return err
	}
	ts, err := composite.LoadTemplateSet(a.cfg.Paths, a.log)
	if err != nil {
		return err
	}
	caps, err := a.caps(ctx)
	if err != nil {
		return err
	}

	src := a.probeSource()
	items, err := (&batch.Scanner{Probe: src, Assigner: ts, Log: a.log}).Scan(ctx, inAbs)
	if err != nil {
		return err
	}
	if items, err = applyEdits(items, o, ts.Known); err != nil {
		return err
	}
	writeItems(cmd.OutOrStdout(), items)

	comp := composite.New(ffmpeg.NewRunner(a.cfg.Tools.FFmpeg, a.log), ts, src, composite.Options{
		Hardware:     a.cfg.Tools.Hardware,
		Caps:         caps,
		ImageTimeout: a.cfg.Timeouts.Frame,
		VideoTimeout: a.cfg.Timeouts.Transcode,
	}, a.log)

	events := progress.NewChannel(ctx, 64)
	stop := watch(events, newEventPrinter(cmd.OutOrStdout(), a.log))
	sum, err := batch.NewExecutor(comp, a.cfg.Batch.Workers, a.log).ProcessAll(ctx, items, batch.Job{
		Project:   o.project,
		Preset:    preset,
		OutputDir: outAbs,
		Variant:   o.variant,
	}, events)
	stop()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nProcessed %d of %d (%d failed, %d skipped) in %s\n",
		sum.Processed, sum.Total, sum.Failed, sum.Skipped, display.FormatElapsed(sum.Elapsed))
	if sum.LogPath != "" {
		fmt.Fprintf(w, "Log: %s\n", sum.LogPath)
	}
	switch {
	case sum.Cancelled:
		return fmt.Errorf("%w: batch stopped after %d items", errors.ErrCancelled, sum.Processed+sum.Failed)
	case sum.Failed > 0:
		return fmt.Errorf("%d of %d items failed", sum.Failed, sum.Total)
	}
	return nil
}

// applyEdits runs the moves first, then disables and assigns templates
// by the resulting sequence numbers.
func applyEdits(items []*batch.MediaFile, o socialOptions, known func(string) bool) ([]*batch.MediaFile, error) {
	for _, mv := range o.moves {
		from, to, err := parseMove(mv)
		if err != nil {
			return nil, err
		}
		if items, err = batch.Move(items, from-1, to-1); err != nil {
			return nil, err
		}
	}
	for _, seq := range o.disable {
		if err := batch.SetEnabled(items, seq, false); err != nil {
			return nil, err
		}
	}
	for _, tv := range o.templates {
		seq, id, err := parseTemplateArg(tv)
		if err != nil {
			return nil, err
		}
		if err := batch.AssignTemplate(items, seq, id, known); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// parseMove reads "from:to" in 1-based sequence numbers.
func parseMove(s string) (int, int, error) {
	a, b, ok := strings.Cut(s, ":")
	from, err1 := strconv.Atoi(strings.TrimSpace(a))
	to, err2 := strconv.Atoi(strings.TrimSpace(b))
	if !ok || err1 != nil || err2 != nil {
		return 0, 0, errors.NewValidationError("move", "expected from:to").WithValue(s)
	}
	return from, to, nil
}

// parseTemplateArg reads "seq=template".
func parseTemplateArg(s string) (int, string, error) {
	a, id, ok := strings.Cut(s, "=")
	seq, err := strconv.Atoi(strings.TrimSpace(a))
	id = strings.TrimSpace(id)
	if !ok || err != nil || id == "" {
		return 0, "", errors.NewValidationError("template", "expected seq=template").WithValue(s)
	}
	return seq, id, nil
}

func writeItems(w io.Writer, items []*batch.MediaFile) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No media found.")
		return
	}
	t := newTable("#", "File", "Type", "Info", "Template", "On")
	for _, m := range items {
		on := "yes"
		if !m.Enabled {
			on = "no"
		}
		t.Row(strconv.Itoa(m.Sequence), m.Filename, string(m.Type), m.DisplayInfo(), m.Template, on)
	}
	fmt.Fprintln(w, t.String())
}
