package batch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ProcessLogName is written to the output directory of every batch.
const ProcessLogName = "process_log.txt"

// WriteProcessLog writes the human-readable report of a batch: a summary
// followed by the outcome of every enabled item.
func WriteProcessLog(path string, items []*MediaFile, job Job, sum Summary, at time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)
	status := "COMPLETE"
	if sum.Cancelled {
		status = "CANCELLED"
	}

	fmt.Fprintf(w, "%s\nFRAMEVAULT SOCIAL PREP - PROCESSING LOG\n%s\n\n", rule, rule)
	fmt.Fprintf(w, "Project Name: %s\n", job.Project)
	fmt.Fprintf(w, "Preset: %s\n", job.Preset.ID)
	fmt.Fprintf(w, "Date/Time: %s\n", at.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Output Directory: %s\n\n", job.OutputDir)

	fmt.Fprintf(w, "%s\nSUMMARY\n%s\n", thin, thin)
	fmt.Fprintf(w, "Total Files: %d\n", sum.Total)
	fmt.Fprintf(w, "Processed: %d\n", sum.Processed)
	fmt.Fprintf(w, "Failed: %d\n", sum.Failed)
	fmt.Fprintf(w, "Skipped: %d\n", sum.Skipped)
	fmt.Fprintf(w, "Status: %s\n\n", status)

	fmt.Fprintf(w, "%s\nFILE DETAILS\n%s\n\n", thin, thin)
	for _, m := range items {
		if !m.Enabled {
			continue
		}
		fmt.Fprintf(w, "File: %s\n", m.Filename)
		fmt.Fprintf(w, "  Sequence: %d\n", m.Sequence)
		fmt.Fprintf(w, "  Template: %s\n", m.Template)
		fmt.Fprintf(w, "  Type: %s\n", m.Type)
		fmt.Fprintf(w, "  Dimensions: %dx%d\n", m.Width, m.Height)
		switch m.Outcome {
		case OutcomeProcessed:
			fmt.Fprintf(w, "  Status: SUCCESS\n  Output: %s\n", filepath.Base(m.OutputPath))
		case OutcomeFailed:
			fmt.Fprintf(w, "  Status: FAILED\n  Error: %s\n", m.Error)
		default:
			fmt.Fprintf(w, "  Status: SKIPPED\n")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, rule)

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
