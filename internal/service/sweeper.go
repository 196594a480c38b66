package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/repository"
)

// Notifier posts sweeper announcements to a game's channel.
type Notifier interface {
	NotifyWarning(ctx context.Context, game model.Game, playerID string) error
	NotifyPenalty(ctx context.Context, game model.Game, playerID string) error
}

// TickReport summarizes one sweeper tick.
type TickReport struct {
	Warned  int
	Skipped int
}

// errStale marks a row that changed between selection and processing.
var errStale = errors.New("participation no longer eligible")

// Sweeper ends turns that stayed idle for too long.
//
// A turn idle for delay-warn gets a single warning; a turn idle for delay is
// skipped with a penalty entry crediting its own player with a negative score.
type Sweeper struct {
	tx       Transactor
	notifier Notifier
	delay    time.Duration
	warn     time.Duration
	now      func() time.Time
}

// NewSweeper creates a new Sweeper. warn must be lower than delay; zero disables warnings.
func NewSweeper(tx Transactor, notifier Notifier, delay, warn time.Duration) *Sweeper {
	return &Sweeper{
		tx:       tx,
		notifier: notifier,
		delay:    delay,
		warn:     warn,
		now:      time.Now,
	}
}

// WithClock replaces the clock deciding which turns are idle.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Tick runs the warn pass then the skip pass.
// Failures on single participations are joined into the returned error for the
// caller to log; they never stop the pass.
func (s *Sweeper) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	now := s.now()

	var warnErr error
	if s.warn > 0 {
		report.Warned, warnErr = s.warnPass(ctx, now)
	}
	var skipErr error
	report.Skipped, skipErr = s.skipPass(ctx, now)

	err := errors.Join(warnErr, skipErr)
	if report.Warned > 0 || report.Skipped > 0 {
		log.Info().
			Int("warned", report.Warned).
			Int("skipped", report.Skipped).
			Bool("failures", err != nil).
			Msg("Sweeper tick")
	}
	return report, err
}

func (s *Sweeper) list(ctx context.Context, cutoff, notBefore time.Time, unwarnedOnly bool) ([]model.OpenParticipation, error) {
	var rows []model.OpenParticipation
	err := s.tx.ReadOnly(ctx, func(tx pgx.Tx) error {
		var err error
		rows, err = repository.New(tx).Participations.ListStale(ctx, cutoff, notBefore, unwarnedOnly)
		return err
	})
	return rows, err
}

func (s *Sweeper) warnPass(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-(s.delay - s.warn))
	rows, err := s.list(ctx, cutoff, now.Add(-s.delay), true)
	if err != nil {
		return 0, fmt.Errorf("failed to list participations to warn: %w", err)
	}

	var (
		warned int
		errs   []error
	)
	for _, row := range rows {
		err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
			store := repository.New(tx)

			p, err := store.Participations.GetByID(ctx, row.Participation.ID)
			if err != nil {
				return err
			}
			if !p.IsOpen() || p.WarnedAt != nil || p.UpdatedAt.After(cutoff) {
				return errStale
			}

			_, err = store.Participations.MarkWarned(ctx, p.ID, now)
			return err
		})
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			errs = append(errs, rowError(err, row, "warn"))
			continue
		}

		warned++
		if err := s.notifier.NotifyWarning(ctx, row.Game, row.Participation.PlayerID); err != nil {
			errs = append(errs, rowError(err, row, "send warning"))
		}
	}

	return warned, errors.Join(errs...)
}

func (s *Sweeper) skipPass(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.delay)
	rows, err := s.list(ctx, cutoff, time.Time{}, false)
	if err != nil {
		return 0, fmt.Errorf("failed to list participations to skip: %w", err)
	}

	var (
		skipped int
		errs    []error
	)
	for _, row := range rows {
		err := s.tx.Serializable(ctx, func(tx pgx.Tx) error {
			store := repository.New(tx)

			p, err := store.Participations.GetByID(ctx, row.Participation.ID)
			if err != nil {
				return err
			}
			if !p.IsOpen() || p.UpdatedAt.After(cutoff) {
				return errStale
			}

			win, err := store.Wins.Create(ctx, p.PlayerID, p.PlayerID, model.ScorePenalty, now)
			if err != nil {
				return err
			}
			_, err = store.Participations.MarkSkipped(ctx, p.ID, &win.ID, now)
			return err
		})
		if errors.Is(err, errStale) {
			continue
		}
		if err != nil {
			errs = append(errs, rowError(err, row, "autoskip"))
			continue
		}

		skipped++
		log.Info().
			Str("guild_id", row.Game.GuildID).
			Str("channel_id", row.Game.ChannelID).
			Str("player_id", row.Participation.PlayerID).
			Msg("Turn autoskipped")
		if err := s.notifier.NotifyPenalty(ctx, row.Game, row.Participation.PlayerID); err != nil {
			errs = append(errs, rowError(err, row, "send penalty"))
		}
	}

	return skipped, errors.Join(errs...)
}

// rowError tags a single participation failure with where it happened.
func rowError(err error, row model.OpenParticipation, step string) error {
	return fmt.Errorf("failed to %s participation %s in %s/%s: %w",
		step, row.Participation.ID, row.Game.GuildID, row.Game.ChannelID, err)
}
