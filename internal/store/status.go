package store

import (
	"context"
	"fmt"

	"github.com/backmassage/framevault/internal/errors"
)

// transitions lists the allowed status edges.
var transitions = map[Status][]Status{
	StatusInitialized: {StatusProcessing, StatusFailed},
	StatusProcessing:  {StatusPaused, StatusCompleted, StatusFailed},
	StatusPaused:      {StatusProcessing, StatusFailed},
}

// CanTransition reports whether from -> to is allowed. Re-entering the
// same non-terminal status is a no-op and allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// UpdateStatus moves the session to status. Completing stamps
// completed_at; failing records errMsg.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(sess.Status, status) {
		return errors.NewValidationError("status",
			fmt.Sprintf("cannot move session from %s to %s", sess.Status, status)).WithValue(id)
	}

	now := s.now()
	fields := map[string]any{"status": status, "updated_at": now}
	switch status {
	case StatusCompleted:
		fields["completed_at"] = now
		fields["error_message"] = ""
	case StatusFailed:
		fields["error_message"] = errMsg
	case StatusProcessing:
		fields["error_message"] = ""
	}

	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ? AND status = ?", id, sess.Status).
		Updates(fields)
	if res.Error != nil {
		return errors.NewPersistenceError("update status", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NewPersistenceError("update status", fmt.Errorf("session %s changed concurrently", id))
	}
	return nil
}
