package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPresetID names the built-in preset.
const DefaultPresetID = "default"

// Preset is one named set of output settings. Every group is typed and
// validated once at load; fields missing from the file keep the values of
// [DefaultPreset].
type Preset struct {
	ID          string     `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	StillsHQ    StillsHQ   `yaml:"stills_hq"`
	StillsWeb   StillsWeb  `yaml:"stills_web"`
	Video       Video      `yaml:"video"`
	Audio       Audio      `yaml:"audio"`
	Thumbnails  Thumbnails `yaml:"thumbnails"`
}

// StillsHQ controls full-resolution still extraction.
type StillsHQ struct {
	Format     string `yaml:"format"`     // png or tiff.
	Resolution string `yaml:"resolution"` // "source" or a max width in pixels.
}

// StillsWeb controls the compressed copies of every still.
type StillsWeb struct {
	Format      string `yaml:"format"` // jpeg.
	Quality     int    `yaml:"quality"`
	Optimize    bool   `yaml:"optimize"`
	Subsampling string `yaml:"subsampling"` // 4:2:0 or 4:4:4.
	MaxWidth    int    `yaml:"max_width"`   // 0 keeps the source width.
}

// Video controls the proxy transcode and the scene clips.
type Video struct {
	Codec   string `yaml:"codec"` // h264.
	CRF     int    `yaml:"crf"`
	Preset  string `yaml:"preset"`
	Profile string `yaml:"profile"`
	Level   string `yaml:"level"`
	PixFmt  string `yaml:"pix_fmt"`
	TwoPass bool   `yaml:"two_pass"` // Rejected by Validate; CRF encodes are single pass.
}

// Audio controls the audio track of every video output.
type Audio struct {
	Codec      string `yaml:"codec"` // aac.
	Bitrate    string `yaml:"bitrate"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   string `yaml:"channels"` // mono or stereo.
}

// Thumbnails controls optional extra thumbnails for the social workflow.
type Thumbnails struct {
	Enabled  bool   `yaml:"enabled"`
	Format   string `yaml:"format"`
	Quality  int    `yaml:"quality"`
	MaxWidth int    `yaml:"max_width"`
}

// DefaultPreset returns the built-in archival preset.
func DefaultPreset() Preset {
	return Preset{
		ID:          DefaultPresetID,
		Name:        "Archive Default",
		Description: "PNG masters, high quality JPEG web stills, H.264 clips",
		StillsHQ: StillsHQ{
			Format:     "png",
			Resolution: "source",
		},
		StillsWeb: StillsWeb{
			Format:      "jpeg",
			Quality:     90,
			Optimize:    true,
			Subsampling: "4:2:0",
		},
		Video: Video{
			Codec:   "h264",
			CRF:     20,
			Preset:  "slow",
			Profile: "high",
			Level:   "4.1",
			PixFmt:  "yuv420p",
		},
		Audio: Audio{
			Codec:      "aac",
			Bitrate:    "320k",
			SampleRate: 48000,
			Channels:   "stereo",
		},
		Thumbnails: Thumbnails{
			Enabled:  false,
			Format:   "jpeg",
			Quality:  75,
			MaxWidth: 400,
		},
	}
}

var validX264Presets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true, "veryslow": true,
}

// Validate checks every group and canonicalizes the audio bitrate.
func (p *Preset) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("preset id must not be empty")
	}

	switch strings.ToLower(p.StillsHQ.Format) {
	case "png", "tiff":
	default:
		return fmt.Errorf("preset %s: stills_hq.format %q (use png or tiff)", p.ID, p.StillsHQ.Format)
	}
	if _, err := p.StillsHQ.MaxWidth(); err != nil {
		return fmt.Errorf("preset %s: %w", p.ID, err)
	}

	if !strings.EqualFold(p.StillsWeb.Format, "jpeg") && !strings.EqualFold(p.StillsWeb.Format, "jpg") {
		return fmt.Errorf("preset %s: stills_web.format %q (use jpeg)", p.ID, p.StillsWeb.Format)
	}
	if p.StillsWeb.Quality < 1 || p.StillsWeb.Quality > 100 {
		return fmt.Errorf("preset %s: stills_web.quality %d out of range 1-100", p.ID, p.StillsWeb.Quality)
	}
	switch p.StillsWeb.Subsampling {
	case "4:2:0", "4:4:4":
	default:
		return fmt.Errorf("preset %s: stills_web.subsampling %q (use 4:2:0 or 4:4:4)", p.ID, p.StillsWeb.Subsampling)
	}
	if p.StillsWeb.MaxWidth < 0 {
		return fmt.Errorf("preset %s: stills_web.max_width must not be negative", p.ID)
	}

	if !strings.EqualFold(p.Video.Codec, "h264") {
		return fmt.Errorf("preset %s: video.codec %q (only h264 is supported)", p.ID, p.Video.Codec)
	}
	if p.Video.CRF < 0 || p.Video.CRF > 51 {
		return fmt.Errorf("preset %s: video.crf %d out of range 0-51", p.ID, p.Video.CRF)
	}
	if !validX264Presets[p.Video.Preset] {
		return fmt.Errorf("preset %s: unknown video.preset %q", p.ID, p.Video.Preset)
	}
	if p.Video.PixFmt == "" {
		return fmt.Errorf("preset %s: video.pix_fmt must not be empty", p.ID)
	}
	if p.Video.TwoPass {
		return fmt.Errorf("preset %s: video.two_pass is not supported with CRF rate control", p.ID)
	}

	if !strings.EqualFold(p.Audio.Codec, "aac") {
		return fmt.Errorf("preset %s: audio.codec %q (only aac is supported)", p.ID, p.Audio.Codec)
	}
	br, err := normalizeAudioBitrate(p.Audio.Bitrate)
	if err != nil {
		return fmt.Errorf("preset %s: %w", p.ID, err)
	}
	p.Audio.Bitrate = br
	switch p.Audio.SampleRate {
	case 44100, 48000, 96000:
	default:
		return fmt.Errorf("preset %s: audio.sample_rate %d (use 44100, 48000 or 96000)", p.ID, p.Audio.SampleRate)
	}
	if _, err := p.Audio.ChannelCount(); err != nil {
		return fmt.Errorf("preset %s: %w", p.ID, err)
	}

	if p.Thumbnails.Quality < 1 || p.Thumbnails.Quality > 100 {
		return fmt.Errorf("preset %s: thumbnails.quality %d out of range 1-100", p.ID, p.Thumbnails.Quality)
	}
	if p.Thumbnails.MaxWidth < 1 {
		return fmt.Errorf("preset %s: thumbnails.max_width must be positive", p.ID)
	}
	return nil
}

// MaxWidth returns the width limit for HQ stills; 0 means source size.
func (s StillsHQ) MaxWidth() (int, error) {
	if s.Resolution == "" || s.Resolution == "source" {
		return 0, nil
	}
	n, err := strconv.Atoi(s.Resolution)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("stills_hq.resolution %q (use 'source' or a width in pixels)", s.Resolution)
	}
	return n, nil
}

// ChannelCount maps the channel layout name to a count.
func (a Audio) ChannelCount() (int, error) {
	switch strings.ToLower(a.Channels) {
	case "mono":
		return 1, nil
	case "stereo", "":
		return 2, nil
	}
	return 0, fmt.Errorf("audio.channels %q (use mono or stereo)", a.Channels)
}

// normalizeAudioBitrate validates and canonicalizes user bitrate input.
// Accepted forms: "320", "320k", "320K", "320kbps". Output is "<n>k".
func normalizeAudioBitrate(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", errors.New("audio bitrate must not be empty")
	}
	if strings.HasSuffix(s, "kbps") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "kbps"))
	} else if strings.HasSuffix(s, "k") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "k"))
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return "", fmt.Errorf("invalid audio bitrate %q (use positive Kbps value, e.g. 320k)", raw)
	}
	return fmt.Sprintf("%dk", n), nil
}

// PresetSet is an immutable collection of validated presets.
type PresetSet struct {
	byID map[string]Preset
}

// NewPresetSet validates presets and indexes them by id.
func NewPresetSet(presets ...Preset) (*PresetSet, error) {
	ps := &PresetSet{byID: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := ps.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate preset id %q", p.ID)
		}
		ps.byID[p.ID] = p
	}
	if len(ps.byID) == 0 {
		return nil, errors.New("no presets defined")
	}
	return ps, nil
}

// Get returns the preset with id.
func (ps *PresetSet) Get(id string) (Preset, error) {
	p, ok := ps.byID[id]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q (available: %s)", id, strings.Join(ps.IDs(), ", "))
	}
	return p, nil
}

// IDs returns the preset ids in sorted order.
func (ps *PresetSet) IDs() []string {
	ids := make([]string, 0, len(ps.byID))
	for id := range ps.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type presetFile struct {
	Presets []yaml.Node `yaml:"presets"`
}

// LoadPresets reads a presets YAML file. An empty path yields the built-in
// default preset only. Each entry is decoded on top of [DefaultPreset] so
// omitted keys keep their defaults.
func LoadPresets(path string) (*PresetSet, error) {
	if path == "" {
		return NewPresetSet(DefaultPreset())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes presets YAML. Exported for testing.
func ParsePresets(data []byte) (*PresetSet, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	presets := make([]Preset, 0, len(f.Presets))
	for i := range f.Presets {
		p := DefaultPreset()
		p.ID, p.Name, p.Description = "", "", ""
		if err := f.Presets[i].Decode(&p); err != nil {
			return nil, fmt.Errorf("parse preset #%d: %w", i+1, err)
		}
		presets = append(presets, p)
	}
	return NewPresetSet(presets...)
}
