package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/pipeline"
	"github.com/backmassage/framevault/internal/store"
	"github.com/backmassage/framevault/internal/term"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// newTable returns a bordered table, plain when colors are off.
func newTable(headers ...string) *table.Table {
	t := table.New().Headers(headers...).Border(lipgloss.NormalBorder())
	if term.Enabled() {
		t = t.StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	} else {
		t = t.StyleFunc(func(int, int) lipgloss.Style { return cellStyle })
	}
	return t
}

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List and inspect archive sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			sessions, err := st.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeSessions(cmd.OutOrStdout(), sessions, time.Now(), st.ResumeWindow())
			return nil
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "number of sessions to show (0 for all)")

	var asJSON bool
	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session with its operation log and files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore()
			if err != nil {
				return err
			}
			sess, err := st.LoadSession(ctx, args[0])
			if err != nil {
				return err
			}
			ops, err := st.Operations(ctx, sess.ID)
			if err != nil {
				return err
			}
			files, err := st.Files(ctx, sess.ID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Session    *store.Session            `json:"session"`
					Operations []store.OperationLogEntry `json:"operations"`
					Files      []store.FileRegistryEntry `json:"files"`
				}{sess, ops, files})
			}
			writeSession(cmd.OutOrStdout(), sess, ops, files)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(list, show)
	return cmd
}

func writeSessions(w io.Writer, sessions []store.Session, now time.Time, window time.Duration) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions.")
		return
	}
	t := newTable("ID", "Artwork", "Date", "Status", "Progress", "Current", "Updated")
	for _, s := range sessions {
		status := string(s.Status)
		if s.Resumable(now, window) {
			status += " *"
		}
		t.Row(s.ID, s.ArtworkName, s.ProjectDate, status,
			fmt.Sprintf("%d/%d", s.CompletedOperations, s.TotalOperations),
			s.CurrentOperation, s.UpdatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w, "* resumable")
}

func writeSession(w io.Writer, s *store.Session, ops []store.OperationLogEntry, files []store.FileRegistryEntry) {
	fmt.Fprintf(w, "Session:  %s\n", s.ID)
	fmt.Fprintf(w, "Artwork:  %s (%s)\n", s.ArtworkName, s.ProjectDate)
	fmt.Fprintf(w, "Master:   %s\n", s.MasterPath)
	fmt.Fprintf(w, "Preset:   %s, %s encoder\n", s.PresetID, s.EncoderType)
	fmt.Fprintf(w, "Scenes:   threshold %.0f, min length %d frames\n", s.SceneThreshold, s.MinSceneLength)
	fmt.Fprintf(w, "Status:   %s, %d/%d stages", s.Status, s.CompletedOperations, s.TotalOperations)
	if s.CurrentOperation != "" {
		fmt.Fprintf(w, ", at %s", s.CurrentOperation)
	}
	fmt.Fprintln(w)
	if s.OperationDetails != "" {
		fmt.Fprintf(w, "Details:  %s\n", s.OperationDetails)
	}
	if s.ErrorMessage != "" {
		fmt.Fprintf(w, "Error:    %s\n", s.ErrorMessage)
	}

	if len(ops) > 0 {
		t := newTable("#", "Type", "Operation", "Status", "Time", "Error")
		for _, op := range ops {
			t.Row(strconv.Itoa(op.SequenceNumber), op.OperationType, op.OperationName, string(op.Status),
				display.FormatElapsed(time.Duration(op.DurationMs)*time.Millisecond), op.ErrorDetails)
		}
		fmt.Fprintln(w, "\nOperations")
		fmt.Fprintln(w, t.String())
	}

	if len(files) > 0 {
		t := newTable("Type", "File", "Size", "Aspect")
		for _, f := range files {
			t.Row(string(f.FileType), filepath.Base(f.FilePath), display.FormatBytes(f.SizeBytes), f.AspectRatio)
		}
		stats := pipeline.StatsFromFiles(files)
		fmt.Fprintln(w, "\nFiles")
		fmt.Fprintln(w, t.String())
		fmt.Fprintf(w, "%d files, %s\n", len(files), display.FormatBytes(stats.TotalBytes))
	}
}
