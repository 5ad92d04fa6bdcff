package display

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"small bytes", 512, "512 B"},
		{"exactly 1 KiB", 1024, "1.0 KiB"},
		{"1.5 KiB", 1536, "1.5 KiB"},
		{"1 GiB", 1024 * 1024 * 1024, "1.0 GiB"},
		{"prores master", 5046586572, "4.7 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBytes(tt.bytes); got != tt.want {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestFormatBitrateLabel(t *testing.T) {
	if got := FormatBitrateLabel(800); got != "800 kbps" {
		t.Errorf("got %q", got)
	}
	if got := FormatBitrateLabel(147000); got != "147.0 Mbps" {
		t.Errorf("got %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{5.9, "0:05"},
		{125, "2:05"},
		{3725, "1:02:05"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12 * time.Second, "12s"},
		{184 * time.Second, "3m04s"},
	}
	for _, tt := range tests {
		if got := FormatElapsed(tt.in); got != tt.want {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		cur, total, width int
		want              string
	}{
		{0, 4, 4, "[....]"},
		{2, 4, 4, "[##..]"},
		{9, 4, 4, "[####]"},
		{1, 0, 2, "[..]"},
	}
	for _, tt := range tests {
		if got := Bar(tt.cur, tt.total, tt.width); got != tt.want {
			t.Errorf("Bar(%d,%d,%d) = %q, want %q", tt.cur, tt.total, tt.width, got, tt.want)
		}
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "v1.2.3")
	if !strings.Contains(buf.String(), "framevault v1.2.3") {
		t.Errorf("banner = %q", buf.String())
	}
}
