package rnd

import (
	"context"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/probe"
	"github.com/backmassage/framevault/internal/term"
)

// Row is one probed file of an inventory.
type Row struct {
	Name       string
	Type       media.Type
	Resolution string
	Aspect     string
	VideoCodec string
	VideoKbps  int64
	AudioCodec string
	SizeBytes  int64
	Flag       string // "", "outlier" or "extreme"
}

// Inventory is the pre-flight report of an R&D folder.
type Inventory struct {
	Rows    []Row
	Skipped []string
	Bitrate Bounds
}

// Bounds holds the IQR thresholds of the video bitrates.
type Bounds struct {
	Q1, Q3    float64
	OutlierLo float64 // Q1 - 1.5*IQR
	OutlierHi float64 // Q3 + 1.5*IQR
	ExtremeLo float64 // Q1 - 3.0*IQR
	ExtremeHi float64 // Q3 + 3.0*IQR
	Valid     bool
}

// TakeInventory probes every file under dir. Files that fail to probe are
// listed in Skipped. Video bitrates far outside the folder's interquartile
// range are flagged, which usually points at a stray proxy or a render
// with the wrong settings.
func TakeInventory(ctx context.Context, src probe.Source, dir string, log *logging.Logger) (Inventory, error) {
	images, videos, err := Discover(dir)
	if err != nil {
		return Inventory{}, err
	}
	var inv Inventory
	var kbps []float64
	for _, path := range append(images, videos...) {
		if ctx.Err() != nil {
			return inv, errors.ErrCancelled
		}
		pr, err := src.Probe(ctx, path)
		if err != nil {
			log.Warn("Skip (probe failed): %s", filepath.Base(path))
			inv.Skipped = append(inv.Skipped, path)
			continue
		}
		row := Row{
			Name:       filepath.Base(path),
			Type:       media.TypeOf(path),
			Resolution: pr.Resolution(),
			Aspect:     media.AspectLabel(pr.Width(), pr.Height()),
			SizeBytes:  pr.Format.Size,
		}
		if pr.PrimaryVideo != nil {
			row.VideoCodec = pr.PrimaryVideo.Codec
		}
		if row.Type == media.TypeVideo {
			row.VideoKbps = pr.VideoBitRate() / 1000
			if row.VideoKbps > 0 {
				kbps = append(kbps, float64(row.VideoKbps))
			}
		}
		if len(pr.AudioStreams) > 0 {
			row.AudioCodec = pr.AudioStreams[0].Codec
		}
		inv.Rows = append(inv.Rows, row)
	}

	inv.Bitrate = ComputeBounds(kbps)
	for i := range inv.Rows {
		inv.Rows[i].Flag = inv.Bitrate.Classify(float64(inv.Rows[i].VideoKbps))
	}
	return inv, nil
}

// ComputeBounds needs at least four values; fewer return invalid bounds.
func ComputeBounds(vals []float64) Bounds {
	if len(vals) < 4 {
		return Bounds{}
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1
	return Bounds{
		Q1:        q1,
		Q3:        q3,
		OutlierLo: q1 - 1.5*iqr,
		OutlierHi: q3 + 1.5*iqr,
		ExtremeLo: q1 - 3.0*iqr,
		ExtremeHi: q3 + 3.0*iqr,
		Valid:     iqr > 0,
	}
}

// Classify returns "" (normal), "outlier" or "extreme".
func (b Bounds) Classify(v float64) string {
	if !b.Valid || v <= 0 {
		return ""
	}
	if v < b.ExtremeLo || v > b.ExtremeHi {
		return "extreme"
	}
	if v < b.OutlierLo || v > b.OutlierHi {
		return "outlier"
	}
	return ""
}

var (
	extremeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	outlierStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Write prints the inventory as an aligned table.
func (inv Inventory) Write(w io.Writer) {
	headers := []string{"File", "Type", "Resolution", "Video", "Bitrate", "Audio", "Size"}
	cells := make([][]string, len(inv.Rows))
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for i, r := range inv.Rows {
		name := r.Name
		if len(name) > 50 {
			name = name[:49] + "…"
		}
		cells[i] = []string{
			name,
			string(r.Type),
			r.Resolution,
			orNA(r.VideoCodec),
			bitrateCell(r.VideoKbps),
			orNA(r.AudioCodec),
			display.FormatBytes(r.SizeBytes),
		}
		for j, c := range cells[i] {
			widths[j] = max(widths[j], len([]rune(c)))
		}
	}

	var header strings.Builder
	for i, h := range headers {
		fmt.Fprintf(&header, "  %-*s", widths[i], h)
	}
	fmt.Fprintln(w, header.String())
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header.String())-2))

	for i, row := range cells {
		var line strings.Builder
		for j, c := range row {
			cell := fmt.Sprintf("  %-*s", widths[j], c)
			if j == 4 {
				cell = "  " + colorPad(c, widths[j], inv.Rows[i].Flag)
			}
			line.WriteString(cell)
		}
		line.WriteString("  " + formatFlag(inv.Rows[i].Flag))
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
	fmt.Fprintln(w)
}

// LogSummary reports the counts and the bitrate range.
func (inv Inventory) LogSummary(log *logging.Logger) {
	var outliers, extremes int
	for _, r := range inv.Rows {
		switch r.Flag {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
	}
	log.Info("Inventory: %d files, %d skipped", len(inv.Rows), len(inv.Skipped))
	if b := inv.Bitrate; b.Valid {
		log.Info("  Video bitrate IQR: %.0f - %.0f kbps (outlier < %.0f or > %.0f)", b.Q1, b.Q3, b.OutlierLo, b.OutlierHi)
	}
	if outliers > 0 {
		log.Warn("  %d outlier(s) flagged [*]", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme outlier(s) flagged [!]", extremes)
	}
	if outliers == 0 && extremes == 0 {
		log.Success("  No outliers detected")
	}
}

func bitrateCell(kbps int64) string {
	if kbps <= 0 {
		return "n/a"
	}
	return display.FormatBitrateLabel(kbps)
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func formatFlag(flag string) string {
	switch flag {
	case "extreme":
		return styled(extremeStyle, "[!]")
	case "outlier":
		return styled(outlierStyle, "[*]")
	}
	return ""
}

// colorPad pads before styling so escape sequences do not count toward
// the column width.
func colorPad(s string, width int, flag string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch flag {
	case "extreme":
		return styled(extremeStyle, padded)
	case "outlier":
		return styled(outlierStyle, padded)
	}
	return padded
}

func styled(st lipgloss.Style, s string) string {
	if !term.Enabled() {
		return s
	}
	return st.Render(s)
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
