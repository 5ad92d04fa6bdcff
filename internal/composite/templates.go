package composite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/backmassage/framevault/internal/batch"
	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/logging"
)

// TemplateSet is the loaded set of social layouts with their background
// files resolved against the assets directory.
type TemplateSet struct {
	byID        map[string]config.Template
	order       []string
	backgrounds map[string]string // template id → absolute background path, "" for a color fill
}

// NewTemplateSet indexes ts. Backgrounds missing from assetsDir fall back
// to the template color with a warning; an empty assetsDir uses colors only.
func NewTemplateSet(ts []config.Template, assetsDir string, log *logging.Logger) (*TemplateSet, error) {
	if len(ts) == 0 {
		return nil, errors.NewValidationError("templates", "no templates defined")
	}
	set := &TemplateSet{
		byID:        make(map[string]config.Template, len(ts)),
		backgrounds: make(map[string]string, len(ts)),
	}
	for _, t := range ts {
		if _, dup := set.byID[t.ID]; dup {
			return nil, errors.NewValidationError("templates", "duplicate template id").WithValue(t.ID)
		}
		set.byID[t.ID] = t
		set.order = append(set.order, t.ID)

		if t.Background == "" || assetsDir == "" {
			continue
		}
		bg := filepath.Join(assetsDir, t.Background)
		if _, err := os.Stat(bg); err != nil {
			log.Warn("Template %s: background %s not found, using %s fill", t.ID, bg, t.Color)
			continue
		}
		set.backgrounds[t.ID] = bg
	}
	return set, nil
}

// LoadTemplateSet reads the templates file named by cfg (built-in
// templates when empty) and resolves backgrounds.
func LoadTemplateSet(cfg config.PathsConfig, log *logging.Logger) (*TemplateSet, error) {
	ts, err := config.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		return nil, err
	}
	return NewTemplateSet(ts, cfg.TemplateAssets, log)
}

// Get returns the template with id.
func (s *TemplateSet) Get(id string) (config.Template, error) {
	t, ok := s.byID[id]
	if !ok {
		return config.Template{}, errors.NewValidationError("template", "unknown template").WithValue(id)
	}
	return t, nil
}

// Known reports whether id names a loaded template.
func (s *TemplateSet) Known(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// IDs returns template ids in file order.
func (s *TemplateSet) IDs() []string {
	return append([]string(nil), s.order...)
}

// Background is the resolved background image of id, or "".
func (s *TemplateSet) Background(id string) string {
	return s.backgrounds[id]
}

// AutoAssign picks the built-in choice for the aspect ratio when that
// template is loaded, else the first template.
func (s *TemplateSet) AutoAssign(width, height int) string {
	if id := batch.AutoTemplate(width, height); s.Known(id) {
		return id
	}
	return s.order[0]
}

// Describe is a one-line summary for listings.
func (s *TemplateSet) Describe(id string) string {
	t, err := s.Get(id)
	if err != nil {
		return id
	}
	a := t.Area
	return fmt.Sprintf("%s: %s (%dx%d at %d,%d)", t.ID, t.Name, a.Width, a.Height, a.X, a.Y)
}
