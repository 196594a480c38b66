// Package service implements the picture game rules on top of the repositories.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/repository"
)

// Player is a user taking part in a command.
type Player struct {
	ID    string
	IsBot bool
}

// SubmitResult describes the effect of a picture post.
type SubmitResult struct {
	// Participation is the current turn after the post.
	Participation *model.Participation
	// NewPicture is set when the post made a picture available for guessing.
	NewPicture bool
}

// WinResult describes a resolved turn.
type WinResult struct {
	Win    *model.Win
	Closed *model.Participation
	Next   *model.Participation
}

// GameService drives the turn state machine of every channel.
// Each operation is one serializable transaction; there is no in-process locking.
type GameService struct {
	tx  Transactor
	now func() time.Time
}

// NewGameService creates a new GameService instance.
func NewGameService(tx Transactor) *GameService {
	return &GameService{
		tx:  tx,
		now: time.Now,
	}
}

// WithClock replaces the clock used to timestamp state changes.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// loadGame fetches the channel's game, mapping a missing one to ErrNoGame.
func loadGame(ctx context.Context, store *repository.Store, ch model.Channel) (*model.Game, error) {
	game, err := store.Games.GetByChannel(ctx, ch)
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, ErrNoGame
		}
		return nil, err
	}
	return game, nil
}

// loadCurrent fetches the channel's game and its open participation.
func loadCurrent(ctx context.Context, store *repository.Store, ch model.Channel) (*model.Game, *model.Participation, error) {
	game, err := loadGame(ctx, store, ch)
	if err != nil {
		return nil, nil, err
	}

	current, err := store.Participations.Current(ctx, game.ID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipationNotFound) {
			return game, nil, ErrNoParticipant
		}
		return nil, nil, err
	}
	return game, current, nil
}

// Start creates the channel's game.
// Returns ErrGameAlreadyExists if the channel already hosts one.
func (s *GameService) Start(ctx context.Context, ch model.Channel, creatorID string) (*model.Game, error) {
	var game *model.Game

	err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)

		_, err := store.Games.GetByChannel(ctx, ch)
		if err == nil {
			return ErrGameAlreadyExists
		}
		if !errors.Is(err, repository.ErrGameNotFound) {
			return err
		}

		game, err = store.Games.Create(ctx, ch, creatorID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("guild_id", ch.GuildID).
		Str("channel_id", ch.ChannelID).
		Str("creator_id", creatorID).
		Str("game_id", game.ID.String()).
		Msg("Game started")

	return game, nil
}

// SubmitPicture handles a picture posted in the channel.
//
// The picture opens a turn for the poster when nobody has one, or completes the
// poster's own turn when it has no picture yet. Posts from other players while
// someone has the turn are ignored. Returns ErrNoGame when the channel has no game
// and ErrPicAlreadyPosted when the poster's turn already carries a picture.
func (s *GameService) SubmitPicture(ctx context.Context, ch model.Channel, playerID, ref string) (*SubmitResult, error) {
	var result *SubmitResult

	err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)
		now := s.now()

		game, current, err := loadCurrent(ctx, store, ch)
		switch {
		case errors.Is(err, ErrNoParticipant):
			created, err := store.Participations.Create(ctx, game.ID, playerID, &ref, now)
			if err != nil {
				return err
			}
			result = &SubmitResult{Participation: created, NewPicture: true}
			return nil
		case err != nil:
			return err
		}

		if current.PlayerID != playerID {
			result = &SubmitResult{Participation: current}
			return nil
		}
		if current.HasPicture() {
			return ErrPicAlreadyPosted
		}

		updated, err := store.Participations.SetPicture(ctx, current.ID, ref, now)
		if err != nil {
			return err
		}
		result = &SubmitResult{Participation: updated, NewPicture: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.NewPicture {
		log.Info().
			Str("guild_id", ch.GuildID).
			Str("channel_id", ch.ChannelID).
			Str("player_id", playerID).
			Msg("Picture submitted")
	}

	return result, nil
}

// ChangePicture replaces the picture of the player's own turn and restarts its timeout.
func (s *GameService) ChangePicture(ctx context.Context, ch model.Channel, playerID, ref string) (*model.Participation, error) {
	var updated *model.Participation

	err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)

		_, current, err := loadCurrent(ctx, store, ch)
		if err != nil {
			return err
		}
		if current.PlayerID != playerID {
			return ErrNotYourTurn
		}
		if !current.HasPicture() {
			return ErrYouPostedNoPic
		}

		updated, err = store.Participations.SetPicture(ctx, current.ID, ref, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CurrentPicture returns the open participation of the channel, with or without a picture.
func (s *GameService) CurrentPicture(ctx context.Context, ch model.Channel) (*model.Participation, error) {
	var current *model.Participation

	err := s.tx.ReadOnly(ctx, func(tx pgx.Tx) error {
		var err error
		_, current, err = loadCurrent(ctx, repository.New(tx), ch)
		return err
	})
	if err != nil {
		return nil, err
	}

	return current, nil
}

// Skip ends the requester's turn without any score effect.
func (s *GameService) Skip(ctx context.Context, ch model.Channel, requesterID string) (*model.Participation, error) {
	return s.skip(ctx, ch, requesterID, false)
}

// ForceSkip ends the current turn whoever owns it.
func (s *GameService) ForceSkip(ctx context.Context, ch model.Channel) (*model.Participation, error) {
	return s.skip(ctx, ch, "", true)
}

func (s *GameService) skip(ctx context.Context, ch model.Channel, requesterID string, forced bool) (*model.Participation, error) {
	var skipped *model.Participation

	err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)

		_, current, err := loadCurrent(ctx, store, ch)
		if err != nil {
			return err
		}
		if !forced && current.PlayerID != requesterID {
			return ErrNotYourTurn
		}

		skipped, err = store.Participations.MarkSkipped(ctx, current.ID, nil, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("guild_id", ch.GuildID).
		Str("channel_id", ch.ChannelID).
		Str("player_id", skipped.PlayerID).
		Bool("forced", forced).
		Msg("Turn skipped")

	return skipped, nil
}

// Win credits winner for guessing the requester's picture and hands the turn over.
func (s *GameService) Win(ctx context.Context, ch model.Channel, requesterID string, winner Player) (*WinResult, error) {
	return s.win(ctx, ch, requesterID, winner, false)
}

// ForceWin credits winner for the current picture whoever owns the turn.
func (s *GameService) ForceWin(ctx context.Context, ch model.Channel, winner Player) (*WinResult, error) {
	return s.win(ctx, ch, "", winner, true)
}

func (s *GameService) win(ctx context.Context, ch model.Channel, requesterID string, winner Player, forced bool) (*WinResult, error) {
	var result *WinResult

	err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)
		now := s.now()

		game, current, err := loadCurrent(ctx, store, ch)
		if err != nil {
			return err
		}
		if !forced && current.PlayerID != requesterID {
			return ErrNotYourTurn
		}
		if !current.HasPicture() {
			return ErrYouPostedNoPic
		}
		if winner.IsBot {
			return ErrStfuBot
		}
		if !forced && winner.ID == requesterID {
			return ErrSelfWin
		}

		win, err := store.Wins.Create(ctx, current.PlayerID, winner.ID, model.ScoreWin, now)
		if err != nil {
			return err
		}
		closed, err := store.Participations.MarkWon(ctx, current.ID, win.ID, now)
		if err != nil {
			return err
		}
		next, err := store.Participations.Create(ctx, game.ID, winner.ID, nil, now)
		if err != nil {
			return err
		}

		result = &WinResult{Win: win, Closed: closed, Next: next}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("guild_id", ch.GuildID).
		Str("channel_id", ch.ChannelID).
		Str("player_id", result.Closed.PlayerID).
		Str("winner_id", winner.ID).
		Str("win_id", result.Win.ID.String()).
		Bool("forced", forced).
		Msg("Turn won")

	return result, nil
}
