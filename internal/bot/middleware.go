package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/config"
	"photo-relay-bot/internal/handler"
)

// MsgAdminOnly is replied to non-admins using an admin command.
const MsgAdminOnly = "❌ Commande réservée aux admins"

// knownUsers tracks users seen in whitelisted chats, who may then talk to the bot privately.
type knownUsers struct {
	mu  sync.RWMutex
	ids map[int64]bool
}

func newKnownUsers() *knownUsers {
	return &knownUsers{ids: make(map[int64]bool)}
}

func (k *knownUsers) add(userID int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ids[userID] = true
}

func (k *knownUsers) has(userID int64) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.ids[userID]
}

// WhitelistMiddleware creates a middleware that drops updates from chats outside the whitelist.
// Private chats are accepted from users already seen in a whitelisted chat.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	known := newKnownUsers()

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil {
				return nil
			}

			sender := c.Sender()
			if chat.Type == tele.ChatPrivate {
				if len(cfg.Whitelist.Chats) == 0 || (sender != nil && known.has(sender.ID)) {
					return next(c)
				}
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring private chat from unknown user")
				return nil
			}

			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}

			if sender != nil {
				known.add(sender.ID)
			}
			return next(c)
		}
	}
}

// AdminMiddleware creates a middleware that checks if the user is an admin.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply(MsgAdminOnly)
			}

			return next(c)
		}
	}
}

// LoggingMiddleware creates a middleware that logs all incoming messages.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			if msg := c.Message(); msg != nil && msg.TopicMessage {
				logEvent = logEvent.Int("thread_id", msg.ThreadID)
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received message")

			return next(c)
		}
	}
}

// RecoveryMiddleware creates a middleware that recovers from panics.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("text", c.Text()).
						Msg("Recovered from panic in handler")
					if c.Message() != nil {
						err = c.Reply(handler.MsgInternalError)
					}
				}
			}()
			return next(c)
		}
	}
}
