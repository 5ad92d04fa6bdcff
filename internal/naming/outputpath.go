package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ProjectLayout is the folder tree of one archive project:
//
//	<root>/<date>_<artwork>/
//	    Masters/
//	    Video-clips/
//	    Thumbnails/
//	    Stills/HQ/  Stills/Compressed/
//	    R&D/High-res/  R&D/Compressed/  R&D/Clips/HQ/  R&D/Clips/Compressed/
type ProjectLayout struct {
	Root          string
	Masters       string
	Clips         string
	Thumbnails    string
	StillsHQ      string
	StillsWeb     string
	RndHighRes    string
	RndCompressed string
	RndClipsHQ    string
	RndClipsSmall string
}

// NewProjectLayout computes the layout for artwork under outputRoot.
func NewProjectLayout(outputRoot, projectDate, artwork string) ProjectLayout {
	root := filepath.Join(outputRoot, projectDate+"_"+SafeArtwork(artwork))
	return ProjectLayout{
		Root:          root,
		Masters:       filepath.Join(root, "Masters"),
		Clips:         filepath.Join(root, "Video-clips"),
		Thumbnails:    filepath.Join(root, "Thumbnails"),
		StillsHQ:      filepath.Join(root, "Stills", "HQ"),
		StillsWeb:     filepath.Join(root, "Stills", "Compressed"),
		RndHighRes:    filepath.Join(root, "R&D", "High-res"),
		RndCompressed: filepath.Join(root, "R&D", "Compressed"),
		RndClipsHQ:    filepath.Join(root, "R&D", "Clips", "HQ"),
		RndClipsSmall: filepath.Join(root, "R&D", "Clips", "Compressed"),
	}
}

// Create makes the archive folders. The R&D tree is created only when
// withRnd is set.
func (l ProjectLayout) Create(withRnd bool) error {
	dirs := []string{l.Masters, l.Clips, l.Thumbnails, l.StillsHQ, l.StillsWeb}
	if withRnd {
		dirs = append(dirs, l.RndHighRes, l.RndCompressed, l.RndClipsHQ, l.RndClipsSmall)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Category is the folder role of dir relative to the project root, used
// in the file registry ("Stills/HQ", "Video-clips", ...).
func (l ProjectLayout) Category(dir string) string {
	rel, err := filepath.Rel(l.Root, dir)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(dir)
	}
	return filepath.ToSlash(rel)
}

// --- Artifact filenames ---

// ProxyName is the optimized master.
func ProxyName(artwork string) string {
	return SafeArtwork(artwork) + "_master.mp4"
}

// ClipName is the clip of one individually selected scene.
func ClipName(artwork string, scene int) string {
	return fmt.Sprintf("%s_clip_%02d.mp4", SafeArtwork(artwork), scene)
}

// GroupName is the concatenated clip of the n-th group.
func GroupName(artwork string, n int) string {
	return fmt.Sprintf("%s_group_%02d.mp4", SafeArtwork(artwork), n)
}

// ThumbnailName is the picker preview of a scene.
func ThumbnailName(artwork string, scene int) string {
	return fmt.Sprintf("%s_scene_%02d_thumb.jpg", SafeArtwork(artwork), scene)
}

// StillHQName is the lossless still of a scene.
func StillHQName(artwork string, scene int, aspect string) string {
	return fmt.Sprintf("%s_HQ_%02d_%s.png", SafeArtwork(artwork), scene, aspect)
}

// StillWebName is the compressed still of a scene.
func StillWebName(artwork string, scene int, aspect string) string {
	return fmt.Sprintf("%s_web_%02d_%s.jpg", SafeArtwork(artwork), scene, aspect)
}

// RndName names an R&D derivative; variant is "HQ" or "compressed".
func RndName(artwork, variant string, seq int, aspect, ext string) string {
	return fmt.Sprintf("%s_RD_%s_%02d_%s%s", SafeArtwork(artwork), variant, seq, aspect, ext)
}

// BatchOutputName is "<seq>-<project>_<template>_<variant><ext>" for the
// social workflow. ext keeps its dot and is lower-cased.
func BatchOutputName(seq int, project, template, variant, ext string) string {
	return fmt.Sprintf("%d-%s_%s_%s%s",
		seq, SanitizeProject(project), strings.ReplaceAll(template, " ", "-"), variant, strings.ToLower(ext))
}

// --- Sanitizers ---

// SanitizeProject lower-cases name, turns spaces into underscores and keeps
// only letters, digits, '_' and '-'. An empty result becomes "project".
func SanitizeProject(name string) string {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}

// SafeArtwork keeps the artwork's case but removes path separators and
// characters that are unsafe on common filesystems.
func SafeArtwork(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			b.WriteRune('_')
		case r == ' ':
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}
