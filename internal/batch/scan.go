package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
	"github.com/backmassage/framevault/internal/media"
	"github.com/backmassage/framevault/internal/probe"
)

// TemplateAssigner chooses the initial template of a scanned item.
type TemplateAssigner interface {
	AutoAssign(width, height int) string
}

// Scanner builds the item list of a folder.
type Scanner struct {
	Probe    probe.Source
	Assigner TemplateAssigner // nil uses AutoTemplate.
	Log      *logging.Logger
}

// Discover lists the supported media files directly inside dir (no
// recursion), sorted case-insensitively by name.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if media.TypeOf(e.Name()) != "" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		a, b := strings.ToLower(filepath.Base(files[i])), strings.ToLower(filepath.Base(files[j]))
		if a == b {
			return files[i] < files[j]
		}
		return a < b
	})
	return files, nil
}

// Scan probes every file Discover finds. Unreadable files are logged and
// left out; the rest are numbered in order and enabled.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]*MediaFile, error) {
	files, err := Discover(dir)
	if err != nil {
		return nil, err
	}
	var items []*MediaFile
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, errors.ErrCancelled
		}
		m, err := s.inspect(ctx, path)
		if err != nil {
			s.Log.Warn("Skipping %s: %v", filepath.Base(path), err)
			continue
		}
		items = append(items, m)
	}
	Renumber(items)
	s.Log.Info("Found %d media files in %s", len(items), dir)
	return items, nil
}

func (s *Scanner) inspect(ctx context.Context, path string) (*MediaFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	pr, err := s.Probe.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	w, h := pr.Width(), pr.Height()
	if w <= 0 || h <= 0 {
		return nil, errors.NewValidationError("dimensions", "no picture found").WithValue(pr.Resolution())
	}

	m := &MediaFile{
		Path:        path,
		Filename:    filepath.Base(path),
		Type:        media.TypeOf(path),
		Width:       w,
		Height:      h,
		AspectRatio: float64(w) / float64(h),
		SizeBytes:   fi.Size(),
		Format:      strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Enabled:     true,
		Outcome:     OutcomeUnprocessed,
	}
	if m.Type == media.TypeVideo {
		m.FPS = pr.FPS()
		m.Duration = pr.Duration()
	}
	if s.Assigner != nil {
		m.Template = s.Assigner.AutoAssign(w, h)
	} else {
		m.Template = AutoTemplate(w, h)
	}
	return m, nil
}
