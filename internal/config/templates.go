package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Canvas size shared by the built-in social templates.
const (
	CanvasWidth  = 1080
	CanvasHeight = 1350
)

// Area is a content rectangle on a template canvas.
type Area struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Template is one social layout: a background image plus the area the
// media item is fitted into.
type Template struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"` // File under paths.template_assets; empty fills with Color.
	Color      string `yaml:"color"`
	Area       Area   `yaml:"area"`
}

// DefaultTemplates returns the built-in 1080x1350 layouts.
func DefaultTemplates() []Template {
	return []Template{
		{ID: "full", Name: "Full Canvas", Background: "full.png", Area: Area{0, 0, 1080, 1350}},
		{ID: "1-1-small", Name: "Square Small (1:1)", Background: "1-1-small.png", Area: Area{147, 269, 786, 786}},
		{ID: "1-1-large", Name: "Square Large (1:1)", Background: "1-1-large.png", Area: Area{36, 158, 1008, 1008}},
		{ID: "16-9", Name: "Landscape (16:9)", Background: "16-9.png", Area: Area{36, 357, 1008, 567}},
	}
}

// Validate checks that the area fits on the canvas.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template id must not be empty")
	}
	if t.Width == 0 {
		t.Width = CanvasWidth
	}
	if t.Height == 0 {
		t.Height = CanvasHeight
	}
	if t.Color == "" {
		t.Color = "white"
	}
	a := t.Area
	if a.Width <= 0 || a.Height <= 0 {
		return fmt.Errorf("template %s: area must have positive size", t.ID)
	}
	if a.X < 0 || a.Y < 0 || a.X+a.Width > t.Width || a.Y+a.Height > t.Height {
		return fmt.Errorf("template %s: area %dx%d+%d+%d exceeds canvas %dx%d",
			t.ID, a.Width, a.Height, a.X, a.Y, t.Width, t.Height)
	}
	return nil
}

type templateFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadTemplates reads a templates YAML file. An empty path yields
// [DefaultTemplates].
func LoadTemplates(path string) ([]Template, error) {
	if path == "" {
		return validateTemplates(DefaultTemplates())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return validateTemplates(f.Templates)
}

func validateTemplates(ts []Template) ([]Template, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("no templates defined")
	}
	seen := make(map[string]bool, len(ts))
	for i := range ts {
		if err := ts[i].Validate(); err != nil {
			return nil, err
		}
		if seen[ts[i].ID] {
			return nil, fmt.Errorf("duplicate template id %q", ts[i].ID)
		}
		seen[ts[i].ID] = true
	}
	return ts, nil
}
