package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/types"
)

// CreateRecording inserts rec if no recording exists for its call and
// returns the stored row either way. created is false on redelivery.
func (s *Store) CreateRecording(ctx context.Context, rec types.CallRecording) (stored types.CallRecording, created bool, err error) {
	if rec.CallID == "" {
		return types.CallRecording{}, false, apperrors.New(apperrors.ErrValidation, "storage.create_recording", "call id is required")
	}
	if rec.ID == "" {
		rec.ID = types.RecordingID(rec.CallID)
	}
	if rec.Status == "" {
		rec.Status = types.StatusPendingDownload
	}
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO call_recordings (id, call_id, recording_id, media_uri, duration_sec, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)
		ON CONFLICT (call_id) DO NOTHING
	`), rec.ID, rec.CallID, rec.RecordingID, rec.MediaURI, rec.DurationSec, string(rec.Status), now, now)
	if err != nil {
		return types.CallRecording{}, false, apperrors.Wrap(apperrors.ErrPersistence, "storage.create_recording", err)
	}
	n, _ := res.RowsAffected()
	stored, err = s.GetRecording(ctx, rec.CallID)
	if err != nil {
		return types.CallRecording{}, false, err
	}
	return stored, n > 0, nil
}

func (s *Store) GetRecording(ctx context.Context, callID string) (types.CallRecording, error) {
	var rec types.CallRecording
	var status string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, call_id, recording_id, media_uri, duration_sec, status, error
		FROM call_recordings WHERE call_id = ?
	`), callID).Scan(&rec.ID, &rec.CallID, &rec.RecordingID, &rec.MediaURI, &rec.DurationSec, &status, &rec.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CallRecording{}, apperrors.Wrap(apperrors.ErrLookup, "storage.get_recording", apperrors.ErrNotFound)
	}
	if err != nil {
		return types.CallRecording{}, apperrors.Wrap(apperrors.ErrPersistence, "storage.get_recording", err)
	}
	rec.Status = types.RecordingStatus(status)
	return rec, nil
}

// AdvanceRecording moves a recording to next. Setting the current status
// again is a no-op; any backwards move or a move out of Failed returns
// ErrInvalidTransition.
func (s *Store) AdvanceRecording(ctx context.Context, callID string, next types.RecordingStatus) error {
	return s.setStatus(ctx, callID, next, "")
}

// MarkFailed records reason and moves the recording to Failed.
func (s *Store) MarkFailed(ctx context.Context, callID, reason string) error {
	return s.setStatus(ctx, callID, types.StatusFailed, reason)
}

func (s *Store) setStatus(ctx context.Context, callID string, next types.RecordingStatus, reason string) error {
	const op = "storage.set_status"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.transition(ctx, tx, callID, next, reason, true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	return nil
}

// transition applies next inside tx. With mustExist unset a missing
// recording row is not an error.
func (s *Store) transition(ctx context.Context, tx *sql.Tx, callID string, next types.RecordingStatus, reason string, mustExist bool) error {
	const op = "storage.transition"
	var current string
	err := tx.QueryRowContext(ctx, s.rebind(`SELECT status FROM call_recordings WHERE call_id = ?`), callID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		if mustExist {
			return apperrors.Wrap(apperrors.ErrLookup, op, apperrors.ErrNotFound)
		}
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	cur := types.RecordingStatus(current)
	if cur == next {
		return nil
	}
	if !cur.CanTransition(next) {
		return apperrors.Wrap(apperrors.ErrValidation, op,
			fmt.Errorf("%s -> %s: %w", cur, next, apperrors.ErrInvalidTransition))
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE call_recordings SET status = ?, error = ?, updated_at = ? WHERE call_id = ?
	`), string(next), reason, s.timestamp(), callID); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	return nil
}

// LookupContext returns the CRM context for a call. A miss is an ErrLookup
// wrapping ErrNotFound.
func (s *Store) LookupContext(ctx context.Context, callID string) (types.CallContext, error) {
	var contact, practice, user sql.NullString
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT contact_id, practice_id, user_id FROM call_contexts WHERE call_id = ?
	`), callID).Scan(&contact, &practice, &user)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CallContext{CallID: callID}, apperrors.Wrap(apperrors.ErrLookup, "storage.lookup_context", apperrors.ErrNotFound)
	}
	if err != nil {
		return types.CallContext{CallID: callID}, apperrors.Wrap(apperrors.ErrLookup, "storage.lookup_context", err)
	}
	return types.CallContext{
		CallID:     callID,
		ContactID:  contact.String,
		PracticeID: practice.String,
		UserID:     user.String,
	}, nil
}

func (s *Store) SaveContext(ctx context.Context, cc types.CallContext) error {
	if cc.CallID == "" {
		return apperrors.New(apperrors.ErrValidation, "storage.save_context", "call id is required")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO call_contexts (call_id, contact_id, practice_id, user_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (call_id) DO UPDATE SET
			contact_id = excluded.contact_id,
			practice_id = excluded.practice_id,
			user_id = excluded.user_id
	`), cc.CallID, nullable(cc.ContactID), nullable(cc.PracticeID), nullable(cc.UserID))
	return apperrors.Wrap(apperrors.ErrPersistence, "storage.save_context", err)
}
