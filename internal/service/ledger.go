package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/repository"
)

// ResetMode selects what a reset command does.
type ResetMode int

const (
	// ResetConfirm only explains how to confirm a reset.
	ResetConfirm ResetMode = iota
	// ResetDo hides the current scores under a new reset id.
	ResetDo
	// ResetList lists the reset ids that can still be cancelled.
	ResetList
	// ResetCancel restores the scores hidden under one reset id.
	ResetCancel
)

// ResetCommand is a parsed reset invocation.
type ResetCommand struct {
	Mode ResetMode
	// ID is the reset id to cancel, only set for ResetCancel.
	ID uuid.UUID
}

// ParseResetArgs parses the arguments of the reset command.
// An unparsable cancel id is ErrInvalidResetID; any other unexpected shape is ErrUnknownArguments.
func ParseResetArgs(args []string) (ResetCommand, error) {
	switch {
	case len(args) == 0:
		return ResetCommand{Mode: ResetConfirm}, nil
	case len(args) == 1 && strings.EqualFold(args[0], "do"):
		return ResetCommand{Mode: ResetDo}, nil
	case len(args) == 1 && strings.EqualFold(args[0], "list"):
		return ResetCommand{Mode: ResetList}, nil
	case len(args) == 2 && strings.EqualFold(args[0], "cancel"):
		id, err := uuid.Parse(args[1])
		if err != nil {
			return ResetCommand{}, ErrInvalidResetID
		}
		return ResetCommand{Mode: ResetCancel, ID: id}, nil
	default:
		return ResetCommand{}, ErrUnknownArguments
	}
}

// ResetResult is the outcome of a reset command.
type ResetResult struct {
	Mode ResetMode
	// ResetID is the id created by ResetDo or restored by ResetCancel.
	ResetID uuid.UUID
	// Affected counts the wins hidden or restored.
	Affected int64
	// Skipped is the turn ended by ResetDo, if one was open.
	Skipped *model.Participation
	// Groups lists the active resets for ResetList.
	Groups []model.ResetGroup
}

// LedgerService manages soft resets of the win ledger.
type LedgerService struct {
	tx  Transactor
	now func() time.Time
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(tx Transactor) *LedgerService {
	return &LedgerService{
		tx:  tx,
		now: time.Now,
	}
}

// WithClock replaces the clock used to timestamp resets.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// Reset runs a parsed reset command against the channel's game.
// Returns ErrNoGame when the channel has no game.
func (s *LedgerService) Reset(ctx context.Context, ch model.Channel, cmd ResetCommand) (*ResetResult, error) {
	switch cmd.Mode {
	case ResetConfirm:
		return s.confirm(ctx, ch)
	case ResetDo:
		return s.do(ctx, ch)
	case ResetList:
		return s.list(ctx, ch)
	case ResetCancel:
		return s.cancel(ctx, ch, cmd.ID)
	default:
		return nil, ErrUnknownArguments
	}
}

func (s *LedgerService) confirm(ctx context.Context, ch model.Channel) (*ResetResult, error) {
	err := s.tx.ReadOnly(ctx, func(tx pgx.Tx) error {
		_, err := loadGame(ctx, repository.New(tx), ch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ResetResult{Mode: ResetConfirm}, nil
}

func (s *LedgerService) do(ctx context.Context, ch model.Channel) (*ResetResult, error) {
	result := &ResetResult{Mode: ResetDo}

	err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)
		now := s.now()
		result.ResetID = uuid.New()
		result.Skipped = nil

		game, current, err := loadCurrent(ctx, store, ch)
		if err != nil && !errors.Is(err, ErrNoParticipant) {
			return err
		}

		result.Affected, err = store.Wins.MarkReset(ctx, game.ID, result.ResetID, now)
		if err != nil {
			return err
		}

		if current != nil {
			result.Skipped, err = store.Participations.MarkSkipped(ctx, current.ID, nil, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("guild_id", ch.GuildID).
		Str("channel_id", ch.ChannelID).
		Str("reset_id", result.ResetID.String()).
		Int64("wins", result.Affected).
		Bool("skipped_turn", result.Skipped != nil).
		Msg("Scores reset")

	return result, nil
}

func (s *LedgerService) list(ctx context.Context, ch model.Channel) (*ResetResult, error) {
	result := &ResetResult{Mode: ResetList}

	err := s.tx.ReadOnly(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)

		game, err := loadGame(ctx, store, ch)
		if err != nil {
			return err
		}

		result.Groups, err = store.Wins.ListResets(ctx, game.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *LedgerService) cancel(ctx context.Context, ch model.Channel, resetID uuid.UUID) (*ResetResult, error) {
	result := &ResetResult{Mode: ResetCancel, ResetID: resetID}

	err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)

		game, err := loadGame(ctx, store, ch)
		if err != nil {
			return err
		}

		result.Affected, err = store.Wins.CancelReset(ctx, game.ID, resetID)
		if err != nil {
			return err
		}
		if result.Affected == 0 {
			return ErrInvalidResetID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("guild_id", ch.GuildID).
		Str("channel_id", ch.ChannelID).
		Str("reset_id", resetID.String()).
		Int64("wins", result.Affected).
		Msg("Reset cancelled")

	return result, nil
}
