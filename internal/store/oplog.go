package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/backmassage/framevault/internal/errors"
)

// OperationEntry is the caller's view of an operation log row. The
// sequence number is assigned by LogOperation.
type OperationEntry struct {
	Type       string
	Name       string
	Status     OpStatus
	StartedAt  time.Time
	FinishedAt time.Time
	InputFile  string
	OutputFile string
	Error      string
}

// LogOperation appends e to the session's log and returns its sequence
// number. The max+1 read and the insert run in one transaction under the
// store mutex; the unique index rejects anything that slips past.
func (s *Store) LogOperation(ctx context.Context, id string, e OperationEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := OperationLogEntry{
		SessionID:     id,
		OperationType: e.Type,
		OperationName: e.Name,
		Status:        e.Status,
		InputFile:     e.InputFile,
		OutputFile:    e.OutputFile,
		ErrorDetails:  e.Error,
		CreatedAt:     s.now(),
	}
	if !e.StartedAt.IsZero() {
		t := e.StartedAt.UTC()
		row.StartedAt = &t
	}
	if !e.FinishedAt.IsZero() {
		t := e.FinishedAt.UTC()
		row.FinishedAt = &t
		if row.StartedAt != nil {
			row.DurationMs = t.Sub(*row.StartedAt).Milliseconds()
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&Session{}).Where("session_id = ?", id).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
		}
		var last int
		if err := tx.Model(&OperationLogEntry{}).
			Where("session_id = ?", id).
			Select("COALESCE(MAX(sequence_number), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		row.SequenceNumber = last + 1
		return tx.Create(&row).Error
	})
	if errors.Is(err, errors.ErrSessionNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, errors.NewPersistenceError("log operation", err)
	}
	return row.SequenceNumber, nil
}

// Operations returns the session's log in sequence order.
func (s *Store) Operations(ctx context.Context, id string) ([]OperationLogEntry, error) {
	var out []OperationLogEntry
	err := s.db.WithContext(ctx).Where("session_id = ?", id).Order("sequence_number").Find(&out).Error
	if err != nil {
		return nil, errors.NewPersistenceError("list operations", err)
	}
	return out, nil
}

// FileEntry describes an artifact to register.
type FileEntry struct {
	Path        string
	Type        FileType
	Category    string
	AspectRatio string
	SourceFile  string
}

// RegisterFile records an artifact. Size and format are read from the
// file itself.
func (s *Store) RegisterFile(ctx context.Context, id string, f FileEntry) error {
	row := FileRegistryEntry{
		SessionID:    id,
		FilePath:     f.Path,
		FileType:     f.Type,
		FileCategory: f.Category,
		Format:       strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Path)), "."),
		AspectRatio:  f.AspectRatio,
		SourceFile:   f.SourceFile,
		CreatedAt:    s.now(),
	}
	if fi, err := os.Stat(f.Path); err == nil {
		row.SizeBytes = fi.Size()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.NewPersistenceError("register file", err)
	}
	return nil
}

// Files returns the artifacts of a session in registration order.
func (s *Store) Files(ctx context.Context, id string) ([]FileRegistryEntry, error) {
	var out []FileRegistryEntry
	if err := s.db.WithContext(ctx).Where("session_id = ?", id).Order("id").Find(&out).Error; err != nil {
		return nil, errors.NewPersistenceError("list files", err)
	}
	return out, nil
}
