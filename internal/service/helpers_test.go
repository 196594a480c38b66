package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/pkg/db"
	"photo-relay-bot/internal/pkg/db/dbtest"
	"photo-relay-bot/internal/repository"
)

var (
	chanA = model.Channel{GuildID: "-1001", ChannelID: "0"}
	chanB = model.Channel{GuildID: "-1001", ChannelID: "12"}
)

// nameResolver resolves every user id to "name-<id>".
type nameResolver struct {
	fail map[string]bool
}

func (r nameResolver) Resolve(_ context.Context, _, userID string) (identity.Identity, error) {
	if r.fail[userID] {
		return identity.Identity{}, identity.ErrNotFound
	}
	return identity.Identity{UserID: userID, DisplayName: "name-" + userID}, nil
}

// recordingNotifier records the players it was asked to notify.
type recordingNotifier struct {
	mu        sync.Mutex
	warnings  []string
	penalties []string
	err       error
}

func (n *recordingNotifier) NotifyWarning(_ context.Context, _ model.Game, playerID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.warnings = append(n.warnings, playerID)
	return n.err
}

func (n *recordingNotifier) NotifyPenalty(_ context.Context, _ model.Game, playerID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.penalties = append(n.penalties, playerID)
	return n.err
}

func (n *recordingNotifier) counts() (warnings, penalties int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.warnings), len(n.penalties)
}

type services struct {
	pool       *db.Pool
	games      *GameService
	ledger     *LedgerService
	scoreboard *ScoreboardService
}

func newServices(t *testing.T) *services {
	t.Helper()
	pool := dbtest.New(t)
	return &services{
		pool:       pool,
		games:      NewGameService(pool),
		ledger:     NewLedgerService(pool),
		scoreboard: NewScoreboardService(pool, nameResolver{}, DefaultPageSize),
	}
}

func (s *services) reset(t *testing.T) {
	t.Helper()
	dbtest.Truncate(t, s.pool)
}

// startWithPicture starts a game in ch and gives the turn to player with a picture.
func (s *services) startWithPicture(t *testing.T, ch model.Channel, player string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.games.Start(ctx, ch, "admin")
	require.NoError(t, err)
	res, err := s.games.SubmitPicture(ctx, ch, player, "pic-"+player)
	require.NoError(t, err)
	require.True(t, res.NewPicture)
}

// handOver makes the current player (who has a picture) designate winner,
// who then posts a picture.
func (s *services) handOver(t *testing.T, ch model.Channel, player, winner string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.games.Win(ctx, ch, player, Player{ID: winner})
	require.NoError(t, err)
	res, err := s.games.SubmitPicture(ctx, ch, winner, "pic-"+winner)
	require.NoError(t, err)
	require.True(t, res.NewPicture)
}

func (s *services) openCount(t *testing.T, ch model.Channel) int {
	t.Helper()
	ctx := context.Background()
	store := repository.New(s.pool)
	game, err := store.Games.GetByChannel(ctx, ch)
	require.NoError(t, err)
	n, err := store.Participations.CountOpen(ctx, game.ID)
	require.NoError(t, err)
	return n
}

func (s *services) fullBoard(t *testing.T, ch model.Channel) []ScoreLine {
	t.Helper()
	board, err := NewScoreboardService(s.pool, nameResolver{}, 1000).Show(context.Background(), ch, 1)
	require.NoError(t, err)
	return board.Lines
}

// isExpectedRace reports errors a command may legitimately get while racing others.
func isExpectedRace(err error) bool {
	return err == nil ||
		errors.Is(err, ErrNoParticipant) ||
		errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrYouPostedNoPic) ||
		errors.Is(err, db.ErrTxConflict)
}
