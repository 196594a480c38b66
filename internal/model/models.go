// Package model defines the data models for the picture game bot.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies the chat channel hosting a game.
// On Telegram the guild is the chat and the channel is the forum topic ("0" outside forums).
type Channel struct {
	GuildID   string
	ChannelID string
}

// Game is a running picture game bound to one channel.
type Game struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	GuildID   string    `db:"guild_id"`
	ChannelID string    `db:"channel_id"`
	CreatorID string    `db:"creator_id"`
}

// Channel returns the channel the game is bound to.
func (g *Game) Channel() Channel {
	return Channel{GuildID: g.GuildID, ChannelID: g.ChannelID}
}

// Participation is one player's turn within a game.
// A participation is open until it is either won or skipped.
type Participation struct {
	ID         uuid.UUID  `db:"id"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
	PlayerID   string     `db:"player_id"`
	PictureURL *string    `db:"picture_url"`
	IsWin      bool       `db:"is_win"`
	WonAt      *time.Time `db:"won_at"`
	WinID      *uuid.UUID `db:"win_id"`
	IsSkip     bool       `db:"is_skip"`
	SkippedAt  *time.Time `db:"skipped_at"`
	WarnedAt   *time.Time `db:"warned_at"`
	GameID     uuid.UUID  `db:"game_id"`
}

// IsOpen reports whether the participation is still the game's current turn.
func (p *Participation) IsOpen() bool {
	return !p.IsWin && !p.IsSkip
}

// HasPicture reports whether a picture reference is attached.
func (p *Participation) HasPicture() bool {
	return p.PictureURL != nil && *p.PictureURL != ""
}

// Win is a ledger entry crediting score for a resolved turn.
type Win struct {
	ID        uuid.UUID  `db:"id"`
	CreatedAt time.Time  `db:"created_at"`
	PlayerID  string     `db:"player_id"`
	WinnerID  string     `db:"winner_id"`
	Score     int        `db:"score"`
	Reset     bool       `db:"reset"`
	ResetAt   *time.Time `db:"reset_at"`
	ResetID   *uuid.UUID `db:"reset_id"`
}

// Score contributions recorded in the ledger.
const (
	ScoreWin     = 1  // Turn resolved by a winner
	ScorePenalty = -1 // Turn auto-skipped after timing out
)

// ScoreEntry is one aggregated scoreboard row.
type ScoreEntry struct {
	WinnerID string `db:"winner_id"`
	Score    int64  `db:"score"`
}

// ResetGroup is a batch of wins hidden from the scoreboard under one reset id.
type ResetGroup struct {
	ResetID uuid.UUID `db:"reset_id"`
	ResetAt time.Time `db:"reset_at"`
}

// OpenParticipation pairs an open participation with its game, as selected by the sweeper.
type OpenParticipation struct {
	Participation Participation
	Game          Game
}
