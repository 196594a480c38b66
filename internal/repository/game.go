// Package repository provides data access layer implementations.
// Repositories run on a db.Querier so that services can bind them to a transaction.
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

// Common errors for repository operations.
var (
	ErrGameNotFound          = errors.New("game not found")
	ErrParticipationNotFound = errors.New("participation not found")
	ErrWinNotFound           = errors.New("win not found")
)

// Store bundles the repositories bound to one querier.
type Store struct {
	Games          *GameRepository
	Participations *ParticipationRepository
	Wins           *WinRepository
}

// New binds all repositories to q, typically a pgx.Tx.
func New(q db.Querier) *Store {
	return &Store{
		Games:          NewGameRepository(q),
		Participations: NewParticipationRepository(q),
		Wins:           NewWinRepository(q),
	}
}

// GameRepository handles game persistence.
type GameRepository struct {
	q db.Querier
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(q db.Querier) *GameRepository {
	return &GameRepository{q: q}
}

// Create inserts a game for the channel.
// Callers check for an existing game first within the same serializable transaction.
func (r *GameRepository) Create(ctx context.Context, ch model.Channel, creatorID string, now time.Time) (*model.Game, error) {
	const query = `
		INSERT INTO game (created_at, guild_id, channel_id, creator_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, guild_id, channel_id, creator_id
	`

	var game model.Game
	err := r.q.QueryRow(ctx, query, now, ch.GuildID, ch.ChannelID, creatorID).Scan(
		&game.ID,
		&game.CreatedAt,
		&game.GuildID,
		&game.ChannelID,
		&game.CreatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	return &game, nil
}

// GetByChannel retrieves the game hosted in a channel.
// Returns ErrGameNotFound if the channel has no game.
func (r *GameRepository) GetByChannel(ctx context.Context, ch model.Channel) (*model.Game, error) {
	const query = `
		SELECT id, created_at, guild_id, channel_id, creator_id
		FROM game
		WHERE guild_id = $1 AND channel_id = $2
		ORDER BY created_at
		LIMIT 1
	`

	var game model.Game
	err := r.q.QueryRow(ctx, query, ch.GuildID, ch.ChannelID).Scan(
		&game.ID,
		&game.CreatedAt,
		&game.GuildID,
		&game.ChannelID,
		&game.CreatorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return &game, nil
}

// GetByID retrieves a game by id.
func (r *GameRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Game, error) {
	const query = `
		SELECT id, created_at, guild_id, channel_id, creator_id
		FROM game
		WHERE id = $1
	`

	var game model.Game
	err := r.q.QueryRow(ctx, query, id).Scan(
		&game.ID,
		&game.CreatedAt,
		&game.GuildID,
		&game.ChannelID,
		&game.CreatorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return &game, nil
}

// CountByChannel returns how many games exist for the channel.
func (r *GameRepository) CountByChannel(ctx context.Context, ch model.Channel) (int, error) {
	const query = `SELECT COUNT(*) FROM game WHERE guild_id = $1 AND channel_id = $2`

	var count int
	if err := r.q.QueryRow(ctx, query, ch.GuildID, ch.ChannelID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}
