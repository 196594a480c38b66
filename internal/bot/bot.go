// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/config"
	"photo-relay-bot/internal/handler"
)

// allowedUpdates are the update kinds the bot polls for.
var allowedUpdates = []string{"message", "chat_member"}

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	limiter *RateLimiter

	// Handlers
	gameHandler       *handler.GameHandler
	adminHandler      *handler.AdminHandler
	membershipHandler *handler.MembershipHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config     *config.Config
	Games      handler.Games
	Scoreboard handler.Scoreboards
	Ledger     handler.Ledger
	Identities handler.Identities
	Limiter    *RateLimiter
}

// NewTelebot creates the Telegram client. The client is needed before the bot itself
// since the identity directory and the autoskip notifier also talk to Telegram.
func NewTelebot(cfg config.BotConfig, offline bool) (*tele.Bot, error) {
	if cfg.Token == "" && !offline {
		return nil, errors.New("bot token is required")
	}

	pref := tele.Settings{
		Token: cfg.Token,
		Poller: &tele.LongPoller{
			Timeout:        cfg.PollTimeout,
			AllowedUpdates: allowedUpdates,
		},
		Offline: offline,
		OnError: func(err error, c tele.Context) {
			event := log.Error().Err(err)
			if c != nil && c.Chat() != nil {
				event = event.Int64("chat_id", c.Chat().ID)
			}
			event.Msg("Telegram handler error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// New creates a new Bot instance on top of a Telegram client.
func New(teleBot *tele.Bot, deps *Dependencies) *Bot {
	limiter := deps.Limiter
	if limiter == nil {
		limiter = NewRateLimiter(deps.Config.RateLimit)
	}

	sentences := handler.NewWinSentences(deps.Config.Game.WinSentences)

	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		limiter: limiter,
	}

	// Initialize handlers
	b.gameHandler = handler.NewGameHandler(deps.Games, deps.Scoreboard, deps.Identities, sentences)
	b.adminHandler = handler.NewAdminHandler(deps.Games, deps.Ledger, deps.Identities, sentences, time.Local)
	b.membershipHandler = handler.NewMembershipHandler(deps.Identities)

	b.registerMiddleware()
	b.registerHandlers()

	return b
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	b.bot.Use(LoggingMiddleware())
	b.bot.Use(b.membershipHandler.Track)
}

// registerHandlers registers all command and event handlers.
func (b *Bot) registerHandlers() {
	limited := RateLimitMiddleware(b.limiter)

	// Player commands
	b.bot.Handle("/pic", b.gameHandler.HandlePic, limited)
	b.bot.Handle("/change", b.gameHandler.HandleChange, limited)
	b.bot.Handle("/skip", b.gameHandler.HandleSkip, limited)
	b.bot.Handle("/win", b.gameHandler.HandleWin, limited)
	b.bot.Handle("/show", b.gameHandler.HandleShow, limited)

	// Pictures
	b.bot.Handle(tele.OnPhoto, b.gameHandler.HandlePicture)
	b.bot.Handle(tele.OnDocument, b.gameHandler.HandlePicture)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/start_game", b.adminHandler.HandleStartGame)
	adminGroup.Handle("/reset", b.adminHandler.HandleReset)
	adminGroup.Handle("/force_skip", b.adminHandler.HandleForceSkip)
	adminGroup.Handle("/force_win", b.adminHandler.HandleForceWin)

	// Membership events
	b.bot.Handle(tele.OnChatMember, b.membershipHandler.HandleChatMember)
	b.bot.Handle(tele.OnUserJoined, b.membershipHandler.HandleUserJoined)
	b.bot.Handle(tele.OnUserLeft, b.membershipHandler.HandleUserLeft)
}

// Run polls Telegram until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		b.Stop()
	}()

	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
	return nil
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// GetBot returns the underlying telebot instance.
func (b *Bot) GetBot() *tele.Bot {
	return b.bot
}
