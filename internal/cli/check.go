package cli

import (
	"github.com/spf13/cobra"

	"github.com/backmassage/framevault/internal/check"
	"github.com/backmassage/framevault/internal/errors"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report ffmpeg, ffprobe and encoder availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.banner(cmd.OutOrStdout())
			rep := check.Run(cmd.Context(), a.cfg.Tools, check.System{}, a.log)
			if !rep.OK(a.cfg.Tools.Hardware) {
				return errors.New("toolchain is not ready for hardware=" + string(a.cfg.Tools.Hardware))
			}
			a.log.Success("Ready (hardware=%s)", a.cfg.Tools.Hardware)
			return nil
		},
	}
}
