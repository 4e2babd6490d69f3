package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/oddsbot/internal/domain"
)

// SaveDecision appends one live decision to the session log.
func (s *SQLiteStorage) SaveDecision(ctx context.Context, sessionID string, d domain.Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO live_decisions
			(session_id, game_id, team_id, seq, ts, action, reason, price, smoothed, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, d.GameID, d.TeamID, d.Seq, d.Timestamp.UTC(), string(d.Action), d.Reason,
		d.Price, d.Smoothed, d.Size, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDecision: %w", err)
	}
	return nil
}

// Decisions returns a session's decisions in insertion order.
func (s *SQLiteStorage) Decisions(ctx context.Context, sessionID string) ([]domain.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, team_id, seq, ts, action, reason, price, smoothed, size
		FROM live_decisions WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage.Decisions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Decision
	for rows.Next() {
		var (
			d      domain.Decision
			action string
		)
		if err := rows.Scan(&d.GameID, &d.TeamID, &d.Seq, &d.Timestamp, &action, &d.Reason,
			&d.Price, &d.Smoothed, &d.Size); err != nil {
			return nil, fmt.Errorf("storage.Decisions: scan: %w", err)
		}
		d.Action = domain.Action(action)
		d.Timestamp = d.Timestamp.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}
