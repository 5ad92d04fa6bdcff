// Package batch implements the social-prep workflow: scanning a folder
// into an ordered list of media items, editing that list, and compositing
// every enabled item onto its template. Images run on a bounded worker
// pool; videos always run one at a time.
package batch

import (
	"fmt"
	"path/filepath"

	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/naming"
)

// Outcome is the terminal state of an item after a batch run.
type Outcome string

const (
	OutcomeUnprocessed Outcome = "unprocessed"
	OutcomeProcessed   Outcome = "processed"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
)

// DefaultVariant is the variant suffix of the first output of an item.
const DefaultVariant = "01"

// MediaFile is one item of a batch.
type MediaFile struct {
	Path        string
	Filename    string
	Sequence    int // 1-based, follows list order.
	Type        media.Type
	Width       int
	Height      int
	AspectRatio float64
	SizeBytes   int64
	Format      string
	FPS         float64 // Videos only.
	Duration    float64 // Videos only.
	Enabled     bool
	Template    string

	Outcome    Outcome
	OutputPath string
	Error      string
}

// OutputFilename is "<seq>-<project>_<template>_<variant><ext>".
func (m *MediaFile) OutputFilename(project, variant string) string {
	return naming.BatchOutputName(m.Sequence, project, m.Template, variant, filepath.Ext(m.Filename))
}

// DisplayInfo is a one-line summary for listings.
func (m *MediaFile) DisplayInfo() string {
	info := fmt.Sprintf("%dx%d • %s", m.Width, m.Height, display.FormatBytes(m.SizeBytes))
	if m.Type == media.TypeVideo {
		info += " • " + display.FormatClock(m.Duration)
	}
	return info
}

func (m *MediaFile) String() string {
	return fmt.Sprintf("%d %s [%s]", m.Sequence, m.Filename, m.Template)
}

func (m *MediaFile) reset() {
	m.Outcome = OutcomeUnprocessed
	m.OutputPath = ""
	m.Error = ""
}

func (m *MediaFile) markProcessed(out string) {
	m.Outcome = OutcomeProcessed
	m.OutputPath = out
	m.Error = ""
}

func (m *MediaFile) markFailed(reason string) {
	m.Outcome = OutcomeFailed
	m.OutputPath = ""
	m.Error = reason
}

// AutoTemplate picks a built-in template from the aspect ratio: near
// square uses "1-1-small", wide (>= 1.6) uses "16-9", anything else "full".
func AutoTemplate(width, height int) string {
	if width <= 0 || height <= 0 {
		return "full"
	}
	r := float64(width) / float64(height)
	switch {
	case r >= 0.95 && r <= 1.05:
		return "1-1-small"
	case r >= 1.6:
		return "16-9"
	default:
		return "full"
	}
}
