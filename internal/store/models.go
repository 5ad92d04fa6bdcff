package store

import (
	"strconv"
	"time"

	"github.com/backmassage/framevault/internal/scene"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusProcessing  Status = "processing"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// OpStatus is the outcome recorded in the operation log.
type OpStatus string

const (
	OpStarted   OpStatus = "started"
	OpCompleted OpStatus = "completed"
	OpFailed    OpStatus = "failed"
	OpSkipped   OpStatus = "skipped"
)

// FileType classifies a registered artifact.
type FileType string

const (
	FileMaster    FileType = "master"
	FileProxy     FileType = "proxy"
	FileClip      FileType = "clip"
	FileGroupClip FileType = "group_clip"
	FileThumbnail FileType = "thumbnail"
	FileStillHQ   FileType = "still_hq"
	FileStillWeb  FileType = "still_web"
	FileLog       FileType = "log"
)

// Session is one persisted pipeline run.
type Session struct {
	ID                  string     `gorm:"column:session_id;primaryKey;type:varchar(64)" json:"session_id"`
	ArtworkName         string     `gorm:"column:artwork_name;not null" json:"artwork_name"`
	ProjectDate         string     `gorm:"column:project_date;type:varchar(10);not null" json:"project_date"`
	MasterPath          string     `gorm:"column:master_path;not null" json:"master_path"`
	OutputRoot          string     `gorm:"column:output_root;not null" json:"output_root"`
	PresetID            string     `gorm:"column:preset_id;type:varchar(64);not null" json:"preset_id"`
	EncoderType         string     `gorm:"column:encoder_type;type:varchar(16);default:x264" json:"encoder_type"`
	SceneThreshold      float64    `gorm:"column:scene_threshold;default:30" json:"scene_threshold"`
	MinSceneLength      int        `gorm:"column:min_scene_length;default:15" json:"min_scene_length"`
	Status              Status     `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	TotalOperations     int        `gorm:"column:total_operations;not null" json:"total_operations"`
	CompletedOperations int        `gorm:"column:completed_operations;not null;default:0" json:"completed_operations"`
	CurrentOperation    string     `gorm:"column:current_operation" json:"current_operation"`
	OperationDetails    string     `gorm:"column:operation_details;type:text" json:"operation_details,omitempty"`
	ScenesData          string     `gorm:"column:scenes_data;type:text" json:"scenes_data,omitempty"`
	SelectionData       string     `gorm:"column:selection_data;type:text" json:"selection_data,omitempty"`
	ErrorMessage        string     `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	CreatedAt           time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;index" json:"updated_at"`
	CompletedAt         *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Session) TableName() string { return "sessions" }

// Resumable reports whether the session may be continued at now.
func (s *Session) Resumable(now time.Time, window time.Duration) bool {
	if s.Status != StatusProcessing && s.Status != StatusPaused {
		return false
	}
	return !s.UpdatedAt.Before(now.Add(-window))
}

// Scenes decodes the persisted scene list, or nil when detection has not
// run yet.
func (s *Session) Scenes() ([]scene.Scene, error) {
	if s.ScenesData == "" {
		return nil, nil
	}
	return scene.Import([]byte(s.ScenesData))
}

// Selection decodes the persisted selection.
func (s *Session) Selection() (scene.Selection, bool, error) {
	if s.SelectionData == "" {
		return scene.Selection{}, false, nil
	}
	sel, err := scene.UnmarshalSelection([]byte(s.SelectionData))
	return sel, err == nil, err
}

// OperationLogEntry is one append-only audit row.
type OperationLogEntry struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      string     `gorm:"column:session_id;type:varchar(64);not null;uniqueIndex:idx_operation_seq,priority:1" json:"session_id"`
	SequenceNumber int        `gorm:"column:sequence_number;not null;uniqueIndex:idx_operation_seq,priority:2" json:"sequence_number"`
	OperationType  string     `gorm:"column:operation_type;not null" json:"operation_type"`
	OperationName  string     `gorm:"column:operation_name;not null" json:"operation_name"`
	Status         OpStatus   `gorm:"column:status;type:varchar(16);not null" json:"status"`
	StartedAt      *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	DurationMs     int64      `gorm:"column:duration_ms" json:"duration_ms"`
	InputFile      string     `gorm:"column:input_file" json:"input_file,omitempty"`
	OutputFile     string     `gorm:"column:output_file" json:"output_file,omitempty"`
	ErrorDetails   string     `gorm:"column:error_details;type:text" json:"error_details,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (OperationLogEntry) TableName() string { return "operation_log" }

// FileRegistryEntry records one artifact written by a session.
type FileRegistryEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"column:session_id;type:varchar(64);not null;index" json:"session_id"`
	FilePath     string    `gorm:"column:file_path;not null" json:"file_path"`
	FileType     FileType  `gorm:"column:file_type;type:varchar(20);not null" json:"file_type"`
	FileCategory string    `gorm:"column:file_category;not null" json:"file_category"`
	SizeBytes    int64     `gorm:"column:file_size_bytes" json:"file_size_bytes"`
	Format       string    `gorm:"column:file_format;type:varchar(16)" json:"file_format"`
	AspectRatio  string    `gorm:"column:aspect_ratio;type:varchar(16)" json:"aspect_ratio,omitempty"`
	SourceFile   string    `gorm:"column:source_file" json:"source_file,omitempty"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (FileRegistryEntry) TableName() string { return "file_registry" }

// Setting value types.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeJSON   = "json"
)

// AppSetting is a process-wide key/value pair.
type AppSetting struct {
	Key         string    `gorm:"column:key;primaryKey;type:varchar(128)" json:"key"`
	Value       string    `gorm:"column:value;not null" json:"value"`
	ValueType   string    `gorm:"column:value_type;type:varchar(8);default:string" json:"value_type"`
	Category    string    `gorm:"column:category;type:varchar(64);default:general" json:"category"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	ModifiedAt  time.Time `gorm:"column:modified_at" json:"modified_at"`
}

func (AppSetting) TableName() string { return "app_settings" }

// Int parses an int setting.
func (a AppSetting) Int() (int, error) { return strconv.Atoi(a.Value) }

// Bool parses a bool setting.
func (a AppSetting) Bool() (bool, error) { return strconv.ParseBool(a.Value) }
