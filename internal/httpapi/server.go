// Package httpapi serves the ops HTTP endpoints: health, stats and read-only scoreboards.
package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/service"
)

// healthTimeout bounds the database ping of /healthz.
const healthTimeout = 2 * time.Second

// HealthChecker pings the store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Scoreboards renders scoreboard pages.
type Scoreboards interface {
	Show(ctx context.Context, ch model.Channel, page int) (*service.Scoreboard, error)
}

// StatsFunc reports runtime counters for /stats.
type StatsFunc func() fiber.Map

// Server holds the ops endpoints.
type Server struct {
	health     HealthChecker
	scoreboard Scoreboards
	stats      StatsFunc
}

// New creates the fiber app serving the ops endpoints.
func New(health HealthChecker, scoreboard Scoreboards, stats StatsFunc) *fiber.App {
	s := &Server{health: health, scoreboard: scoreboard, stats: stats}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(logRequests)

	app.Get("/healthz", s.getHealth)
	app.Get("/stats", s.getStats)
	app.Get("/games/:guild/:channel/scoreboard", s.getScoreboard)
	return app
}

func logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", c.Response().StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")
	return err
}

func (s *Server) getHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := s.health.HealthCheck(ctx); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) getStats(c *fiber.Ctx) error {
	if s.stats == nil {
		return c.JSON(fiber.Map{})
	}
	return c.JSON(s.stats())
}

func (s *Server) getScoreboard(c *fiber.Ctx) error {
	ch := model.Channel{GuildID: c.Params("guild"), ChannelID: c.Params("channel")}

	page := 1
	if raw := c.Query("page"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid page"})
		}
		page = p
	}

	board, err := s.scoreboard.Show(c.UserContext(), ch, page)
	switch {
	case err == nil:
		return c.JSON(board)
	case errors.Is(err, service.ErrNoGame):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "game not found"})
	case errors.Is(err, service.ErrInvalidPage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid page"})
	default:
		log.Error().Err(err).
			Str("guild_id", ch.GuildID).
			Str("channel_id", ch.ChannelID).
			Msg("Failed to render scoreboard")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

// Serve listens on addr until ctx is cancelled, then shuts the app down.
func Serve(ctx context.Context, app *fiber.App, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Starting ops HTTP server")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
