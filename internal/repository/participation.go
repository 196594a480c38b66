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

const participationColumns = `
	p.id, p.created_at, p.updated_at, p.player_id, p.picture_url,
	p.is_win, p.won_at, p.win_id, p.is_skip, p.skipped_at, p.warned_at, p.game_id
`

// ParticipationRepository handles participation (turn) persistence.
type ParticipationRepository struct {
	q db.Querier
}

// NewParticipationRepository creates a new ParticipationRepository instance.
func NewParticipationRepository(q db.Querier) *ParticipationRepository {
	return &ParticipationRepository{q: q}
}

func participationFields(p *model.Participation) []any {
	return []any{
		&p.ID,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.PlayerID,
		&p.PictureURL,
		&p.IsWin,
		&p.WonAt,
		&p.WinID,
		&p.IsSkip,
		&p.SkippedAt,
		&p.WarnedAt,
		&p.GameID,
	}
}

func (r *ParticipationRepository) queryOne(ctx context.Context, op, query string, args ...any) (*model.Participation, error) {
	var p model.Participation
	if err := r.q.QueryRow(ctx, query, args...).Scan(participationFields(&p)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrParticipationNotFound
		}
		return nil, fmt.Errorf("failed to %s participation: %w", op, err)
	}
	return &p, nil
}

// Create opens a participation for a player. pictureURL may be nil.
func (r *ParticipationRepository) Create(ctx context.Context, gameID uuid.UUID, playerID string, pictureURL *string, now time.Time) (*model.Participation, error) {
	const query = `
		INSERT INTO participation AS p (created_at, updated_at, player_id, picture_url, game_id)
		VALUES ($1, $1, $2, $3, $4)
		RETURNING ` + participationColumns

	return r.queryOne(ctx, "create", query, now, playerID, pictureURL, gameID)
}

// Current retrieves the open participation of a game.
// Returns ErrParticipationNotFound if nobody has the turn.
func (r *ParticipationRepository) Current(ctx context.Context, gameID uuid.UUID) (*model.Participation, error) {
	const query = `
		SELECT ` + participationColumns + `
		FROM participation p
		WHERE p.game_id = $1 AND NOT p.is_win AND NOT p.is_skip
		ORDER BY p.created_at DESC
		LIMIT 1
	`

	return r.queryOne(ctx, "get current", query, gameID)
}

// GetByID retrieves a participation by id.
func (r *ParticipationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Participation, error) {
	const query = `
		SELECT ` + participationColumns + `
		FROM participation p
		WHERE p.id = $1
	`

	return r.queryOne(ctx, "get", query, id)
}

// SetPicture attaches or replaces the picture of an open participation.
// The warning marker is cleared so the timeout clock restarts from now.
func (r *ParticipationRepository) SetPicture(ctx context.Context, id uuid.UUID, pictureURL string, now time.Time) (*model.Participation, error) {
	const query = `
		UPDATE participation AS p
		SET picture_url = $2, updated_at = $3, warned_at = NULL
		WHERE p.id = $1 AND NOT p.is_win AND NOT p.is_skip
		RETURNING ` + participationColumns

	return r.queryOne(ctx, "set picture of", query, id, pictureURL, now)
}

// MarkWon closes an open participation as won, linking the win it produced.
func (r *ParticipationRepository) MarkWon(ctx context.Context, id, winID uuid.UUID, now time.Time) (*model.Participation, error) {
	const query = `
		UPDATE participation AS p
		SET is_win = TRUE, won_at = $2, win_id = $3, updated_at = $2
		WHERE p.id = $1 AND NOT p.is_win AND NOT p.is_skip
		RETURNING ` + participationColumns

	return r.queryOne(ctx, "mark won", query, id, now, winID)
}

// MarkSkipped closes an open participation as skipped.
// winID links the penalty entry when the skip was forced by a timeout, nil otherwise.
func (r *ParticipationRepository) MarkSkipped(ctx context.Context, id uuid.UUID, winID *uuid.UUID, now time.Time) (*model.Participation, error) {
	const query = `
		UPDATE participation AS p
		SET is_skip = TRUE, skipped_at = $2, win_id = $3, updated_at = $2
		WHERE p.id = $1 AND NOT p.is_win AND NOT p.is_skip
		RETURNING ` + participationColumns

	return r.queryOne(ctx, "mark skipped", query, id, now, winID)
}

// MarkWarned records that the timeout warning was sent.
// Only open, not yet warned participations are affected.
func (r *ParticipationRepository) MarkWarned(ctx context.Context, id uuid.UUID, now time.Time) (*model.Participation, error) {
	const query = `
		UPDATE participation AS p
		SET warned_at = $2
		WHERE p.id = $1 AND NOT p.is_win AND NOT p.is_skip AND p.warned_at IS NULL
		RETURNING ` + participationColumns

	return r.queryOne(ctx, "mark warned", query, id, now)
}

// ListStale returns open participations last updated in (notBefore, cutoff], with their game.
// A zero notBefore removes the lower bound. When unwarnedOnly is set, already warned rows are left out.
func (r *ParticipationRepository) ListStale(ctx context.Context, cutoff, notBefore time.Time, unwarnedOnly bool) ([]model.OpenParticipation, error) {
	const query = `
		SELECT ` + participationColumns + `,
			g.id, g.created_at, g.guild_id, g.channel_id, g.creator_id
		FROM participation p
		JOIN game g ON g.id = p.game_id
		WHERE NOT p.is_win AND NOT p.is_skip
			AND p.updated_at <= $1
			AND ($2::timestamptz IS NULL OR p.updated_at > $2)
			AND (NOT $3 OR p.warned_at IS NULL)
		ORDER BY p.updated_at
	`

	var lower *time.Time
	if !notBefore.IsZero() {
		lower = &notBefore
	}

	rows, err := r.q.Query(ctx, query, cutoff, lower, unwarnedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale participations: %w", err)
	}
	defer rows.Close()

	var result []model.OpenParticipation
	for rows.Next() {
		var op model.OpenParticipation
		fields := append(participationFields(&op.Participation),
			&op.Game.ID,
			&op.Game.CreatedAt,
			&op.Game.GuildID,
			&op.Game.ChannelID,
			&op.Game.CreatorID,
		)
		if err := rows.Scan(fields...); err != nil {
			return nil, fmt.Errorf("failed to scan stale participation: %w", err)
		}
		result = append(result, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale participations: %w", err)
	}

	return result, nil
}

// CountOpen returns the number of open participations of a game.
func (r *ParticipationRepository) CountOpen(ctx context.Context, gameID uuid.UUID) (int, error) {
	const query = `
		SELECT COUNT(*) FROM participation
		WHERE game_id = $1 AND NOT is_win AND NOT is_skip
	`

	var count int
	if err := r.q.QueryRow(ctx, query, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open participations: %w", err)
	}
	return count, nil
}
