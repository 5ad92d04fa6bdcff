package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/ffmpeg"
	"github.com/backmassage/framevault/internal/pipeline"
	"github.com/backmassage/framevault/internal/progress"
	"github.com/backmassage/framevault/internal/rnd"
)

type rndOptions struct {
	artwork   string
	date      string
	output    string
	preset    string
	inventory bool
}

func newRndCmd(a *app) *cobra.Command {
	var o rndOptions
	cmd := &cobra.Command{
		Use:   "rnd <folder>",
		Short: "Convert an R&D folder into the project's R&D outputs",
		Long: `Walk the folder recursively. Every image becomes a lossless PNG under
R&D/High-res and a compressed JPEG under R&D/Compressed; every video a
high-quality and a compressed MP4. One failed file does not stop the run.

With --inventory nothing is written: the folder's media are listed with
their bitrates and outliers are flagged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.inventory {
				return a.runInventory(cmd, args[0])
			}
			return a.runRnd(cmd, args[0], o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.artwork, "artwork", "a", "", "artwork name of the project")
	f.StringVar(&o.date, "date", "", "project date YY-MM-DD (default: today)")
	f.StringVarP(&o.output, "output", "o", "", "output root (default: paths.output_root)")
	f.StringVarP(&o.preset, "preset", "p", "", "preset id (default: pipeline.preset)")
	f.BoolVar(&o.inventory, "inventory", false, "list the folder's media and bitrate outliers, then exit")
	return cmd
}

func (a *app) runInventory(cmd *cobra.Command, dir string) error {
	inv, err := rnd.TakeInventory(cmd.Context(), a.probeSource(), dir, a.log)
	if err != nil {
		return err
	}
	inv.Write(cmd.OutOrStdout())
	inv.LogSummary(a.log)
	return nil
}

func (a *app) runRnd(cmd *cobra.Command, dir string, o rndOptions) error {
	ctx := cmd.Context()
	if o.artwork == "" {
		return fmt.Errorf("--artwork is required")
	}
	a.banner(cmd.OutOrStdout())

	if o.output == "" {
		o.output = a.cfg.Paths.OutputRoot
	}
	if o.date == "" {
		o.date = time.Now().Format(pipeline.ProjectDateLayout)
	} else if _, err := time.Parse(pipeline.ProjectDateLayout, o.date); err != nil {
		return fmt.Errorf("--date %q: want YY-MM-DD", o.date)
	}
	inAbs, outAbs, err := resolveDirs(dir, o.output)
	if err != nil {
		return err
	}
	presets, err := a.presets()
	if err != nil {
		return err
	}
	if o.preset == "" {
		o.preset = a.cfg.Pipeline.Preset
	}
	preset, err := presets.Get(o.preset)
	if err != nil {
		return err
	}
	caps, err := a.caps(ctx)
	if err != nil {
		return err
	}

	events := progress.NewChannel(ctx, 64)
	stop := watch(events, newEventPrinter(cmd.OutOrStdout(), a.log))
	proc := rnd.New(ffmpeg.NewEncoder(ffmpeg.NewRunner(a.cfg.Tools.FFmpeg, a.log), a.log), a.probeSource(), rnd.Options{
		Hardware:     a.cfg.Tools.Hardware,
		Caps:         caps,
		Workers:      a.cfg.Batch.Workers,
		StillTimeout: a.cfg.Timeouts.Frame,
		VideoTimeout: a.cfg.Timeouts.Transcode,
		Artist:       a.cfg.Metadata.Artist,
		Copyright:    a.cfg.Metadata.Copyright,
	}, a.log, events)
	rep, err := proc.Process(ctx, rnd.Params{
		InputDir:    inAbs,
		Artwork:     o.artwork,
		ProjectDate: o.date,
		OutputRoot:  outAbs,
		Preset:      preset,
	})
	stop()

	w := cmd.OutOrStdout()
	if rep.ProjectDirectory != "" {
		fmt.Fprintf(w, "\nR&D: %d images, %d videos -> %d HQ, %d compressed in %s\n",
			rep.Images, rep.Videos, rep.HQ, rep.Compressed, display.FormatElapsed(rep.Elapsed))
		fmt.Fprintf(w, "Project: %s\n", rep.ProjectDirectory)
	}
	for _, f := range rep.Failures {
		a.log.Error("%s: %v", filepath.Base(f.Path), f.Err)
	}
	if err != nil {
		return err
	}
	if len(rep.Failures) > 0 {
		return fmt.Errorf("%d of %d files failed", len(rep.Failures), rep.Images+rep.Videos)
	}
	return nil
}
