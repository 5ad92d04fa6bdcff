package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/backmassage/framevault/internal/scene"
	"github.com/backmassage/framevault/internal/store"
)

// SummaryName is the file written into the project root by finalize.
const SummaryName = "session_summary.json"

// RunStats counts the artifacts a session registered.
type RunStats struct {
	Masters    int   `json:"masters"`
	Proxies    int   `json:"proxies"`
	Clips      int   `json:"clips"`
	GroupClips int   `json:"group_clips"`
	Thumbnails int   `json:"thumbnails"`
	StillsHQ   int   `json:"stills_hq"`
	StillsWeb  int   `json:"stills_web"`
	TotalBytes int64 `json:"total_bytes"`
}

// Add counts one registered file.
func (s *RunStats) Add(t store.FileType, size int64) {
	switch t {
	case store.FileMaster:
		s.Masters++
	case store.FileProxy:
		s.Proxies++
	case store.FileClip:
		s.Clips++
	case store.FileGroupClip:
		s.GroupClips++
	case store.FileThumbnail:
		s.Thumbnails++
	case store.FileStillHQ:
		s.StillsHQ++
	case store.FileStillWeb:
		s.StillsWeb++
	}
	s.TotalBytes += size
}

// StatsFromFiles rebuilds the counters from the file registry, so a
// resumed session reports everything written across all its runs.
func StatsFromFiles(files []store.FileRegistryEntry) RunStats {
	var s RunStats
	for _, f := range files {
		s.Add(f.FileType, f.SizeBytes)
	}
	return s
}

// SessionSummary is the JSON document written by finalize.
type SessionSummary struct {
	SessionID   string          `json:"session_id"`
	Artwork     string          `json:"artwork_name"`
	ProjectDate string          `json:"project_date"`
	PresetID    string          `json:"preset_id"`
	Encoder     string          `json:"encoder_type"`
	MasterPath  string          `json:"master_path"`
	Scenes      []scene.Scene   `json:"scenes"`
	Selection   scene.Selection `json:"selection"`
	Outputs     RunStats        `json:"outputs"`
	Files       []SummaryFile   `json:"files"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// SummaryFile is one registered artifact, relative to the project root.
type SummaryFile struct {
	Path     string         `json:"path"`
	Type     store.FileType `json:"type"`
	Category string         `json:"category"`
	Size     int64          `json:"size_bytes"`
}

// writeSummary writes sum as indented JSON to root/SummaryName.
func writeSummary(root string, sum SessionSummary, files []store.FileRegistryEntry) (string, error) {
	for _, f := range files {
		rel, err := filepath.Rel(root, f.FilePath)
		if err != nil {
			rel = f.FilePath
		}
		sum.Files = append(sum.Files, SummaryFile{
			Path:     filepath.ToSlash(rel),
			Type:     f.FileType,
			Category: f.FileCategory,
			Size:     f.SizeBytes,
		})
	}
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode session summary: %w", err)
	}
	path := filepath.Join(root, SummaryName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write session summary: %w", err)
	}
	return path, nil
}
