// Package store persists pipeline sessions: the resumable status machine,
// the per-session operation log, the produced-file registry and the
// process-wide settings table. SQLite is the default backend; PostgreSQL
// is used when several machines share one archive.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/backmassage/framevault/internal/config"
	"github.com/backmassage/framevault/internal/errors"
)

// DefaultResumeWindow is how long an interrupted session stays resumable.
const DefaultResumeWindow = 7 * 24 * time.Hour

// Store is the single owner of the database connection for the process.
// Writers that read before they insert serialize on mu.
type Store struct {
	db     *gorm.DB
	mu     sync.Mutex
	now    func() time.Time
	window time.Duration
}

// Option customizes Open.
type Option func(*Store)

// WithClock replaces time.Now. Times are stored in UTC.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = func() time.Time { return now().UTC() } }
}

// Open connects to the configured backend and migrates the schema.
func Open(cfg config.StoreConfig, opts ...Option) (*Store, error) {
	s := &Store{
		now:    func() time.Time { return time.Now().UTC() },
		window: cfg.ResumeWindow,
	}
	if s.window <= 0 {
		s.window = DefaultResumeWindow
	}
	for _, o := range opts {
		o(s)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite, "":
		if dir := filepath.Dir(cfg.DSN); !strings.HasPrefix(cfg.DSN, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.NewPersistenceError("open", err)
			}
		}
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, errors.NewValidationError("store.driver", "unknown driver").WithValue(cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: s.now,
	})
	if err != nil {
		return nil, errors.NewPersistenceError("open", err)
	}
	if cfg.Driver != config.DriverPostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.NewPersistenceError("open", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	s.db = db

	if err := s.migrate(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&Session{},
		&OperationLogEntry{},
		&FileRegistryEntry{},
		&AppSetting{},
	)
	return errors.NewPersistenceError("migrate", err)
}

// Close releases the connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ResumeWindow is the configured eligibility window.
func (s *Store) ResumeWindow() time.Duration { return s.window }

// NewSessionID returns "fv_YYYYMMDD_HHMMSS_<8 hex>".
func NewSessionID(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("fv_%s_%s", now.Format("20060102_150405"), id[:8])
}

// NewSession holds the caller-supplied fields of a session.
type NewSession struct {
	ArtworkName     string
	ProjectDate     string
	MasterPath      string
	OutputRoot      string
	PresetID        string
	EncoderType     string
	SceneThreshold  float64
	MinSceneLength  int
	TotalOperations int
}

// CreateSession inserts an initialized session and returns it.
func (s *Store) CreateSession(ctx context.Context, ns NewSession) (*Session, error) {
	if ns.TotalOperations <= 0 {
		return nil, errors.NewValidationError("total_operations", "must be positive").WithValue(ns.TotalOperations)
	}
	if ns.ArtworkName == "" || ns.MasterPath == "" {
		return nil, errors.NewValidationError("session", "artwork name and master path are required")
	}
	now := s.now()
	sess := &Session{
		ID:              NewSessionID(now),
		ArtworkName:     ns.ArtworkName,
		ProjectDate:     ns.ProjectDate,
		MasterPath:      ns.MasterPath,
		OutputRoot:      ns.OutputRoot,
		PresetID:        ns.PresetID,
		EncoderType:     ns.EncoderType,
		SceneThreshold:  ns.SceneThreshold,
		MinSceneLength:  ns.MinSceneLength,
		Status:          StatusInitialized,
		TotalOperations: ns.TotalOperations,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, errors.NewPersistenceError("create session", err)
	}
	return sess, nil
}

// LoadSession reads a session by id.
func (s *Store) LoadSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.WithContext(ctx).Where("session_id = ?", id).Take(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, errors.NewPersistenceError("load session", err)
	}
	return &sess, nil
}

// ResumableSession returns the most recently updated session that is
// processing or paused and was touched within the resume window.
func (s *Store) ResumableSession(ctx context.Context) (*Session, bool, error) {
	cutoff := s.now().Add(-s.window)
	var sess Session
	err := s.db.WithContext(ctx).
		Where("status IN ?", []Status{StatusProcessing, StatusPaused}).
		Where("updated_at >= ?", cutoff).
		Order("updated_at DESC").
		Take(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewPersistenceError("resumable session", err)
	}
	return &sess, true, nil
}

// ListSessions returns sessions newest first. limit <= 0 returns all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	q := s.db.WithContext(ctx).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []Session
	if err := q.Find(&out).Error; err != nil {
		return nil, errors.NewPersistenceError("list sessions", err)
	}
	return out, nil
}
