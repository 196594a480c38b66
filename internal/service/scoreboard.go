package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/repository"
)

// DefaultPageSize is the number of scoreboard entries per page.
const DefaultPageSize = 10

// IdentityResolver turns user ids into display identities.
type IdentityResolver interface {
	Resolve(ctx context.Context, guildID, userID string) (identity.Identity, error)
}

// ScoreLine is one rendered scoreboard row.
type ScoreLine struct {
	Rank     int    `json:"rank"`
	WinnerID string `json:"winner_id"`
	Label    string `json:"label"`
	Score    int64  `json:"score"`
	Inline   bool   `json:"inline"`
}

// Scoreboard is one rendered scoreboard page.
type Scoreboard struct {
	Title     string      `json:"title"`
	Page      int         `json:"page"`
	PageCount int         `json:"page_count"`
	Lines     []ScoreLine `json:"lines"`
}

// ScoreboardService builds ranked, paginated scoreboards.
type ScoreboardService struct {
	tx       Transactor
	ids      IdentityResolver
	pageSize int
}

// NewScoreboardService creates a new ScoreboardService instance.
// A non-positive pageSize falls back to DefaultPageSize.
func NewScoreboardService(tx Transactor, ids IdentityResolver, pageSize int) *ScoreboardService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &ScoreboardService{
		tx:       tx,
		ids:      ids,
		pageSize: pageSize,
	}
}

// PageCount returns the number of pages needed for total entries, at least one.
func PageCount(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// RankLabel renders a 1-based rank: medals for the podium, ordinals otherwise.
func RankLabel(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return strconv.Itoa(rank) + "."
	}
}

// ScoreboardTitle renders the heading of a scoreboard page.
func ScoreboardTitle(page, pageCount int) string {
	return fmt.Sprintf("👑 👑 👑 Scores (%d/%d) 👑 👑 👑", page, pageCount)
}

// Show renders page of the channel's scoreboard.
// Returns ErrInvalidPage if page is out of range and ErrNoGame if the channel has no game.
func (s *ScoreboardService) Show(ctx context.Context, ch model.Channel, page int) (*Scoreboard, error) {
	var (
		entries   []model.ScoreEntry
		pageCount int
	)

	err := s.tx.ReadOnly(ctx, func(tx pgx.Tx) error {
		store := repository.New(tx)

		game, err := loadGame(ctx, store, ch)
		if err != nil {
			return err
		}

		total, err := store.Wins.CountWinners(ctx, game.ID)
		if err != nil {
			return err
		}

		pageCount = PageCount(total, s.pageSize)
		if page < 1 || page > pageCount {
			return ErrInvalidPage
		}

		entries, err = store.Wins.Scoreboard(ctx, game.ID, s.pageSize, (page-1)*s.pageSize)
		return err
	})
	if err != nil {
		return nil, err
	}

	// identities are resolved once the snapshot is released
	lines := make([]ScoreLine, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		g.Go(func() error {
			id, err := s.ids.Resolve(gctx, ch.GuildID, entry.WinnerID)
			if err != nil {
				return err
			}
			rank := (page-1)*s.pageSize + i + 1
			lines[i] = ScoreLine{
				Rank:     rank,
				WinnerID: entry.WinnerID,
				Label:    RankLabel(rank) + " " + id.Label(),
				Score:    entry.Score,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve scoreboard identities: %w", err)
	}

	return &Scoreboard{
		Title:     ScoreboardTitle(page, pageCount),
		Page:      page,
		PageCount: pageCount,
		Lines:     lines,
	}, nil
}
