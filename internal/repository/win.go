package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/pkg/db"
)

// WinRepository handles the win ledger.
type WinRepository struct {
	q db.Querier
}

// NewWinRepository creates a new WinRepository instance.
func NewWinRepository(q db.Querier) *WinRepository {
	return &WinRepository{q: q}
}

// Create appends a ledger entry crediting score to winnerID for playerID's turn.
func (r *WinRepository) Create(ctx context.Context, playerID, winnerID string, score int, now time.Time) (*model.Win, error) {
	const query = `
		INSERT INTO win (created_at, player_id, winner_id, score)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, player_id, winner_id, score, reset, reset_at, reset_id
	`

	var win model.Win
	err := r.q.QueryRow(ctx, query, now, playerID, winnerID, score).Scan(
		&win.ID,
		&win.CreatedAt,
		&win.PlayerID,
		&win.WinnerID,
		&win.Score,
		&win.Reset,
		&win.ResetAt,
		&win.ResetID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create win: %w", err)
	}

	return &win, nil
}

// GetByID retrieves a ledger entry by id.
func (r *WinRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Win, error) {
	const query = `
		SELECT id, created_at, player_id, winner_id, score, reset, reset_at, reset_id
		FROM win
		WHERE id = $1
	`

	var win model.Win
	err := r.q.QueryRow(ctx, query, id).Scan(
		&win.ID,
		&win.CreatedAt,
		&win.PlayerID,
		&win.WinnerID,
		&win.Score,
		&win.Reset,
		&win.ResetAt,
		&win.ResetID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWinNotFound
		}
		return nil, fmt.Errorf("failed to get win: %w", err)
	}

	return &win, nil
}

// MarkReset hides every win of the game's winning participations that is not already reset,
// grouping them under resetID. Returns the number of wins affected.
func (r *WinRepository) MarkReset(ctx context.Context, gameID, resetID uuid.UUID, now time.Time) (int64, error) {
	const query = `
		UPDATE win
		SET reset = TRUE, reset_at = $3, reset_id = $2
		WHERE NOT reset AND id IN (
			SELECT win_id FROM participation
			WHERE game_id = $1 AND is_win AND win_id IS NOT NULL
		)
	`

	tag, err := r.q.Exec(ctx, query, gameID, resetID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reset wins: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CancelReset restores the wins of the game grouped under resetID.
// Returns the number of wins restored, zero when the group is unknown.
func (r *WinRepository) CancelReset(ctx context.Context, gameID, resetID uuid.UUID) (int64, error) {
	const query = `
		UPDATE win
		SET reset = FALSE, reset_at = NULL, reset_id = NULL
		WHERE reset AND reset_id = $2 AND id IN (
			SELECT win_id FROM participation
			WHERE game_id = $1 AND win_id IS NOT NULL
		)
	`

	tag, err := r.q.Exec(ctx, query, gameID, resetID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel reset: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListResets returns the reset groups of a game that still hide wins, oldest first.
func (r *WinRepository) ListResets(ctx context.Context, gameID uuid.UUID) ([]model.ResetGroup, error) {
	const query = `
		SELECT w.reset_id, MAX(w.reset_at) AS reset_at
		FROM win w
		JOIN participation p ON p.win_id = w.id
		WHERE p.game_id = $1 AND w.reset
		GROUP BY w.reset_id
		ORDER BY MAX(w.reset_at) ASC, w.reset_id ASC
	`

	rows, err := r.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resets: %w", err)
	}
	defer rows.Close()

	var groups []model.ResetGroup
	for rows.Next() {
		var g model.ResetGroup
		if err := rows.Scan(&g.ResetID, &g.ResetAt); err != nil {
			return nil, fmt.Errorf("failed to scan reset group: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reset groups: %w", err)
	}

	return groups, nil
}

// Scoreboard returns one page of the game's ranking: non-reset wins summed per winner,
// highest score first, ties ordered by winner id.
func (r *WinRepository) Scoreboard(ctx context.Context, gameID uuid.UUID, limit, offset int) ([]model.ScoreEntry, error) {
	const query = `
		SELECT w.winner_id, SUM(w.score) AS score
		FROM win w
		JOIN participation p ON p.win_id = w.id
		WHERE p.game_id = $1 AND NOT w.reset
		GROUP BY w.winner_id
		ORDER BY SUM(w.score) DESC, w.winner_id ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.q.Query(ctx, query, gameID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get scoreboard: %w", err)
	}
	defer rows.Close()

	var entries []model.ScoreEntry
	for rows.Next() {
		var e model.ScoreEntry
		if err := rows.Scan(&e.WinnerID, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan score entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scoreboard: %w", err)
	}

	return entries, nil
}

// CountWinners returns the number of distinct winners ranked on the game's scoreboard.
func (r *WinRepository) CountWinners(ctx context.Context, gameID uuid.UUID) (int, error) {
	const query = `
		SELECT COUNT(DISTINCT w.winner_id)
		FROM win w
		JOIN participation p ON p.win_id = w.id
		WHERE p.game_id = $1 AND NOT w.reset
	`

	var count int
	if err := r.q.QueryRow(ctx, query, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count winners: %w", err)
	}
	return count, nil
}
