// Package config holds runtime configuration: defaults, viper loading and
// validation. Presets and templates live in their own YAML files and are
// loaded by [LoadPresets] and [LoadTemplates].
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// --- Enum types for validated string fields ---

// HardwarePreference selects the video encoder family.
type HardwarePreference string

const (
	HardwareAuto  HardwarePreference = "auto"  // Use NVENC when ffmpeg reports it, else libx264 (default).
	HardwareNVENC HardwarePreference = "nvenc" // Require h264_nvenc.
	HardwareCPU   HardwarePreference = "cpu"   // Always libx264.
)

// StoreDriver selects the session store backend.
type StoreDriver string

const (
	DriverSQLite   StoreDriver = "sqlite"   // Local file database (default).
	DriverPostgres StoreDriver = "postgres" // Shared server database.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// LogLevel is the minimum level written by the logger.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds all runtime settings. It is populated by [Default], overlaid
// by viper (file, env, flags) in [Load], and passed by pointer to packages
// that need it.
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Scenes   ScenesConfig   `mapstructure:"scenes"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metadata MetadataConfig `mapstructure:"metadata"`
}

// PathsConfig locates the output tree and the preset/template files.
type PathsConfig struct {
	OutputRoot     string `mapstructure:"output_root"`
	PresetsFile    string `mapstructure:"presets_file"`    // Empty: built-in presets.
	TemplatesFile  string `mapstructure:"templates_file"`  // Empty: built-in templates.
	TemplateAssets string `mapstructure:"template_assets"` // Directory holding template backgrounds.
}

// StoreConfig selects the session database.
type StoreConfig struct {
	Driver       StoreDriver   `mapstructure:"driver"`
	DSN          string        `mapstructure:"dsn"`
	ResumeWindow time.Duration `mapstructure:"resume_window"` // Default: 7 days.
}

// CacheConfig controls the on-disk probe cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// ToolsConfig names the external binaries and the encoder preference.
type ToolsConfig struct {
	FFmpeg   string             `mapstructure:"ffmpeg"`
	FFprobe  string             `mapstructure:"ffprobe"`
	Hardware HardwarePreference `mapstructure:"hardware"`
}

// TimeoutsConfig bounds every external process invocation.
type TimeoutsConfig struct {
	Probe     time.Duration `mapstructure:"probe"`
	Transcode time.Duration `mapstructure:"transcode"`
	Clip      time.Duration `mapstructure:"clip"`
	Frame     time.Duration `mapstructure:"frame"`
	Thumbnail time.Duration `mapstructure:"thumbnail"`
	Detect    time.Duration `mapstructure:"detect"`
}

// ScenesConfig holds the detector sensitivity defaults.
type ScenesConfig struct {
	Threshold   float64 `mapstructure:"threshold"`     // 0-100 content-change score.
	MinSceneLen int     `mapstructure:"min_scene_len"` // Frames.
}

// PipelineConfig tunes archive runs.
type PipelineConfig struct {
	RequireProRes bool   `mapstructure:"require_prores"`
	Preset        string `mapstructure:"preset"`
}

// BatchConfig tunes the worker pools.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// LoggingConfig controls console and file logging.
type LoggingConfig struct {
	Level LogLevel  `mapstructure:"level"`
	File  string    `mapstructure:"file"`
	Color ColorMode `mapstructure:"color"`
}

// MetadataConfig is embedded into video outputs.
type MetadataConfig struct {
	Artist    string `mapstructure:"artist"`
	Copyright string `mapstructure:"copyright"`
}

// Default returns a Config with every default applied. Used as the base
// before viper overlays file and environment values.
func Default() *Config {
	data := DataDir()
	return &Config{
		Paths: PathsConfig{
			OutputRoot: ".",
		},
		Store: StoreConfig{
			Driver:       DriverSQLite,
			DSN:          filepath.Join(data, "framevault.db"),
			ResumeWindow: 7 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     filepath.Join(data, "probe-cache"),
		},
		Tools: ToolsConfig{
			FFmpeg:   "ffmpeg",
			FFprobe:  "ffprobe",
			Hardware: HardwareAuto,
		},
		Timeouts: TimeoutsConfig{
			Probe:     30 * time.Second,
			Transcode: time.Hour,
			Clip:      10 * time.Minute,
			Frame:     60 * time.Second,
			Thumbnail: 30 * time.Second,
			Detect:    time.Hour,
		},
		Scenes: ScenesConfig{
			Threshold:   30,
			MinSceneLen: 15,
		},
		Pipeline: PipelineConfig{
			Preset: DefaultPresetID,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level: LevelInfo,
			Color: ColorAuto,
		},
	}
}

// SetDefaults registers every default with v so that keys resolve even when
// absent from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("paths.output_root", d.Paths.OutputRoot)
	v.SetDefault("paths.presets_file", d.Paths.PresetsFile)
	v.SetDefault("paths.templates_file", d.Paths.TemplatesFile)
	v.SetDefault("paths.template_assets", d.Paths.TemplateAssets)

	v.SetDefault("store.driver", string(d.Store.Driver))
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.resume_window", d.Store.ResumeWindow)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)

	v.SetDefault("tools.ffmpeg", d.Tools.FFmpeg)
	v.SetDefault("tools.ffprobe", d.Tools.FFprobe)
	v.SetDefault("tools.hardware", string(d.Tools.Hardware))

	v.SetDefault("timeouts.probe", d.Timeouts.Probe)
	v.SetDefault("timeouts.transcode", d.Timeouts.Transcode)
	v.SetDefault("timeouts.clip", d.Timeouts.Clip)
	v.SetDefault("timeouts.frame", d.Timeouts.Frame)
	v.SetDefault("timeouts.thumbnail", d.Timeouts.Thumbnail)
	v.SetDefault("timeouts.detect", d.Timeouts.Detect)

	v.SetDefault("scenes.threshold", d.Scenes.Threshold)
	v.SetDefault("scenes.min_scene_len", d.Scenes.MinSceneLen)

	v.SetDefault("pipeline.require_prores", d.Pipeline.RequireProRes)
	v.SetDefault("pipeline.preset", d.Pipeline.Preset)

	v.SetDefault("batch.workers", d.Batch.Workers)

	v.SetDefault("logging.level", string(d.Logging.Level))
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.color", string(d.Logging.Color))

	v.SetDefault("metadata.artist", d.Metadata.Artist)
	v.SetDefault("metadata.copyright", d.Metadata.Copyright)
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enum fields and numeric ranges.
func (c *Config) Validate() error {
	switch c.Tools.Hardware {
	case HardwareAuto, HardwareNVENC, HardwareCPU:
		// valid
	default:
		return errors.New("invalid tools.hardware (use 'auto', 'nvenc' or 'cpu')")
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		// valid
	default:
		return errors.New("invalid store.driver (use 'sqlite' or 'postgres')")
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return errors.New("store.dsn must not be empty")
	}
	if c.Store.ResumeWindow <= 0 {
		return errors.New("store.resume_window must be positive")
	}

	switch c.Logging.Color {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid logging.color (use 'auto', 'always' or 'never')")
	}
	switch c.Logging.Level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		// valid
	default:
		return errors.New("invalid logging.level (use 'debug', 'info', 'warn' or 'error')")
	}

	if c.Scenes.Threshold <= 0 || c.Scenes.Threshold > 100 {
		return fmt.Errorf("scenes.threshold %.1f out of range (0, 100]", c.Scenes.Threshold)
	}
	if c.Scenes.MinSceneLen < 1 {
		return errors.New("scenes.min_scene_len must be at least 1 frame")
	}
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be at least 1")
	}

	t := c.Timeouts
	for name, d := range map[string]time.Duration{
		"probe": t.Probe, "transcode": t.Transcode, "clip": t.Clip,
		"frame": t.Frame, "thumbnail": t.Thumbnail, "detect": t.Detect,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}
	return nil
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged so we don't produce an empty string.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// ValidatePaths ensures the resolved output directory is not inside (or equal
// to) the resolved input directory, so recursive scans never pick up their
// own output. Both arguments must be absolute, symlink-resolved paths.
func ValidatePaths(inputAbs, outputAbs string) error {
	sep := string(filepath.Separator)
	if outputAbs == inputAbs || strings.HasPrefix(outputAbs+sep, inputAbs+sep) {
		return errors.New("output directory must not be inside input directory")
	}
	return nil
}

// DataDir returns the directory for the database and caches.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "framevault")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".framevault"
	}
	return filepath.Join(home, ".local", "share", "framevault")
}
