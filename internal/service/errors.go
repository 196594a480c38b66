package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Game rule violations. They are expected outcomes of user commands and are
// rendered as fixed messages rather than logged as failures.
var (
	ErrNoParticipant     = errors.New("nobody has the turn")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrYouPostedNoPic    = errors.New("no picture posted for this turn")
	ErrStfuBot           = errors.New("a bot cannot win")
	ErrSelfWin           = errors.New("cannot designate yourself as winner")
	ErrPicAlreadyPosted  = errors.New("picture already posted for this turn")
	ErrInvalidPage       = errors.New("invalid page")
	ErrInvalidResetID    = errors.New("invalid reset id")
	ErrUnknownArguments  = errors.New("unknown arguments")
	ErrGameAlreadyExists = errors.New("a game already exists in this channel")
)

// ErrNoGame is returned when the channel hosts no game. Callers treat it as a silent no-op.
var ErrNoGame = errors.New("no game in this channel")

// IsRuleViolation reports whether err is one of the game rule violations above.
func IsRuleViolation(err error) bool {
	for _, target := range []error{
		ErrNoParticipant,
		ErrNotYourTurn,
		ErrYouPostedNoPic,
		ErrStfuBot,
		ErrSelfWin,
		ErrPicAlreadyPosted,
		ErrInvalidPage,
		ErrInvalidResetID,
		ErrUnknownArguments,
		ErrGameAlreadyExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Transactor runs functions inside database transactions.
// *db.Pool is the production implementation.
type Transactor interface {
	Serializable(ctx context.Context, fn func(tx pgx.Tx) error) error
	ReadOnly(ctx context.Context, fn func(tx pgx.Tx) error) error
}
