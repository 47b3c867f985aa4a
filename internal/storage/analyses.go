package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"call-intel-go/internal/apperrors"
	"call-intel-go/internal/types"
)

// CommitAnalysis writes everything produced for one call in a single
// transaction: the analysis upsert, its transcript segments, the optional
// coaching session and the recording's move to Analyzed. Re-committing the
// same call replaces the analysis and segments and keeps the first
// coaching session.
func (s *Store) CommitAnalysis(ctx context.Context, a types.CallAnalysis, repID string, session *types.CoachingSession) error {
	const op = "storage.commit_analysis"
	if a.CallID == "" {
		return apperrors.New(apperrors.ErrValidation, op, "call id is required")
	}
	body, err := json.Marshal(a)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("encode analysis: %w", err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	if _, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO call_analyses (call_id, id, rep_id, quality, win_probability, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (call_id) DO UPDATE SET
			id = excluded.id,
			rep_id = excluded.rep_id,
			quality = excluded.quality,
			win_probability = excluded.win_probability,
			body = excluded.body,
			updated_at = excluded.updated_at
	`), a.CallID, a.ID, repID, a.Quality.Overall, a.Sales.WinProbability, string(body), now, now); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("upsert analysis: %w", err))
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM transcript_segments WHERE call_id = ?`), a.CallID); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("clear segments: %w", err))
	}
	if len(a.Transcript) > 0 {
		stmt, err := tx.PrepareContext(ctx, s.rebind(`
			INSERT INTO transcript_segments (call_id, idx, ts, speaker, role, text, start_offset, end_offset, sentiment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("prepare segments: %w", err))
		}
		defer stmt.Close()
		for _, seg := range a.Transcript {
			if _, err := stmt.ExecContext(ctx, a.CallID, seg.Index, seg.Timestamp, seg.SpeakerLabel, string(seg.Role),
				seg.Text, seg.StartOffset, seg.EndOffset, string(seg.Sentiment)); err != nil {
				return apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("insert segment %d: %w", seg.Index, err))
			}
		}
	}

	if session != nil {
		sbody, err := json.Marshal(session)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("encode coaching session: %w", err))
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO coaching_sessions (id, call_id, rep_id, score, status, body, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`), session.ID, a.CallID, session.RepID, session.OverallScore, string(session.Status), string(sbody), now); err != nil {
			return apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("insert coaching session: %w", err))
		}
	}

	if err := s.transition(ctx, tx, a.CallID, types.StatusAnalyzed, "", false); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	return nil
}

// visible hides analyses whose recording has not reached Analyzed.
// Analyses committed without a recording row (batch runs) are always visible.
const visible = `(r.status IS NULL OR r.status = 'analyzed')`

func (s *Store) GetAnalysis(ctx context.Context, callID string) (types.CallAnalysis, error) {
	const op = "storage.get_analysis"
	var body string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT a.body FROM call_analyses a
		LEFT JOIN call_recordings r ON r.call_id = a.call_id
		WHERE a.call_id = ? AND `+visible), callID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CallAnalysis{}, apperrors.Wrap(apperrors.ErrLookup, op, apperrors.ErrNotFound)
	}
	if err != nil {
		return types.CallAnalysis{}, apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	var a types.CallAnalysis
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return types.CallAnalysis{}, apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("decode analysis: %w", err))
	}
	return a, nil
}

// ListAnalysesByRep returns the rep's visible analyses, most recently updated first.
func (s *Store) ListAnalysesByRep(ctx context.Context, repID string, limit int) ([]types.CallAnalysis, error) {
	const op = "storage.list_analyses"
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT a.body FROM call_analyses a
		LEFT JOIN call_recordings r ON r.call_id = a.call_id
		WHERE a.rep_id = ? AND `+visible+`
		ORDER BY a.updated_at DESC, a.call_id
		LIMIT ?`), repID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	defer rows.Close()

	out := []types.CallAnalysis{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, op, err)
		}
		var a types.CallAnalysis
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("decode analysis: %w", err))
		}
		out = append(out, a)
	}
	return out, apperrors.Wrap(apperrors.ErrPersistence, op, rows.Err())
}

func (s *Store) ListCoachingSessions(ctx context.Context, repID string, limit int) ([]types.CoachingSession, error) {
	const op = "storage.list_coaching"
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT body FROM coaching_sessions
		WHERE rep_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`), repID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrPersistence, op, err)
	}
	defer rows.Close()

	out := []types.CoachingSession{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, op, err)
		}
		var cs types.CoachingSession
		if err := json.Unmarshal([]byte(body), &cs); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrPersistence, op, fmt.Errorf("decode coaching session: %w", err))
		}
		out = append(out, cs)
	}
	return out, apperrors.Wrap(apperrors.ErrPersistence, op, rows.Err())
}

// CountAnalyses reports how many analysis rows exist for a call.
func (s *Store) CountAnalyses(ctx context.Context, callID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM call_analyses WHERE call_id = ?`), callID).Scan(&n)
	return n, apperrors.Wrap(apperrors.ErrPersistence, "storage.count_analyses", err)
}
