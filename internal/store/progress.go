package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/backmassage/framevault/internal/errors"
)

// ProgressUpdate describes one completed stage.
type ProgressUpdate struct {
	Operation string
	Details   string
	Scenes    []byte // Optional JSON persisted alongside the step.
	Selection []byte
}

// UpdateProgress records one completed operation. The increment is a
// single guarded statement, so completed_operations can never pass
// total_operations even with concurrent callers.
func (s *Store) UpdateProgress(ctx context.Context, id string, u ProgressUpdate) error {
	fields := map[string]any{
		"completed_operations": gorm.Expr("completed_operations + 1"),
		"current_operation":    u.Operation,
		"operation_details":    u.Details,
		"updated_at":           s.now(),
	}
	if u.Scenes != nil {
		fields["scenes_data"] = string(u.Scenes)
	}
	if u.Selection != nil {
		fields["selection_data"] = string(u.Selection)
	}

	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ? AND completed_operations < total_operations", id).
		Updates(fields)
	if res.Error != nil {
		return errors.NewPersistenceError("update progress", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.LoadSession(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", errors.ErrProgressFull, id)
	}
	return nil
}

// SaveSelection persists a selection without counting a stage. Used when
// the selection stage is re-entered on resume.
func (s *Store) SaveSelection(ctx context.Context, id string, selection []byte) error {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", id).
		Updates(map[string]any{"selection_data": string(selection), "updated_at": s.now()})
	if res.Error != nil {
		return errors.NewPersistenceError("save selection", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", errors.ErrSessionNotFound, id)
	}
	return nil
}
