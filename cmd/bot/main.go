// Package main is the entry point for the picture relay bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/bot"
	"photo-relay-bot/internal/config"
	"photo-relay-bot/internal/httpapi"
	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/pkg/db"
	"photo-relay-bot/internal/pkg/schedule"
	"photo-relay-bot/internal/service"
)

// pruneInterval is how often idle ratelimit keys are dropped.
const pruneInterval = time.Minute

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool
	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	teleBot, err := bot.NewTelebot(cfg.Bot, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Telegram client")
	}
	resolver := identity.NewResolver(bot.NewDirectory(teleBot))

	// Initialize services
	games := service.NewGameService(pool)
	ledger := service.NewLedgerService(pool)
	scoreboard := service.NewScoreboardService(pool, resolver, cfg.Game.PageSize)
	limiter := bot.NewRateLimiter(cfg.RateLimit)

	telegramBot := bot.New(teleBot, &bot.Dependencies{
		Config:     cfg,
		Games:      games,
		Scoreboard: scoreboard,
		Ledger:     ledger,
		Identities: resolver,
		Limiter:    limiter,
	})

	scheduler, err := schedule.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if err := scheduleJobs(scheduler, cfg, pool, teleBot, resolver, limiter); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule jobs")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		return scheduler.Shutdown()
	})
	g.Go(func() error {
		log.Info().Msg("Bot is starting...")
		return telegramBot.Run(gctx)
	})
	if cfg.HTTP.Addr != "" {
		app := httpapi.New(pool, scoreboard, func() fiber.Map {
			dbStats := pool.Stats()
			members, users := resolver.Len()
			return fiber.Map{
				"db": fiber.Map{
					"total_conns":    dbStats.TotalConns(),
					"acquired_conns": dbStats.AcquiredConns(),
					"idle_conns":     dbStats.IdleConns(),
				},
				"identities": fiber.Map{"members": members, "users": users},
				"ratelimit":  fiber.Map{"keys": limiter.Len()},
			}
		})
		g.Go(func() error {
			return httpapi.Serve(gctx, app, cfg.HTTP.Addr)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Bot stopped with error")
		return
	}
	log.Info().Msg("Bot stopped gracefully")
}

// scheduleJobs registers the autoskip sweeper and the ratelimit pruning.
func scheduleJobs(s *schedule.Scheduler, cfg *config.Config, pool *db.Pool, teleBot *tele.Bot, resolver *identity.Resolver, limiter *bot.RateLimiter) error {
	if skip := cfg.Game.AutoSkip; skip.Enabled() {
		sweeper := service.NewSweeper(pool, bot.NewNotifier(teleBot, resolver), skip.Delay, skip.Warn)
		err := s.Every("autoskip", skip.Interval, func(ctx context.Context) error {
			_, err := sweeper.Tick(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}

	if limiter.Enabled() {
		err := s.Every("ratelimit-prune", pruneInterval, func(context.Context) error {
			if n := limiter.Prune(time.Now()); n > 0 {
				log.Debug().Int("keys", n).Msg("Pruned ratelimit keys")
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// setupLogger applies the configured level and output format.
func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "" && cfg.Format != "console" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
