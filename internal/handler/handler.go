// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/service"
)

// Games is the turn state machine driven by the handlers.
type Games interface {
	Start(ctx context.Context, ch model.Channel, creatorID string) (*model.Game, error)
	SubmitPicture(ctx context.Context, ch model.Channel, playerID, ref string) (*service.SubmitResult, error)
	ChangePicture(ctx context.Context, ch model.Channel, playerID, ref string) (*model.Participation, error)
	CurrentPicture(ctx context.Context, ch model.Channel) (*model.Participation, error)
	Skip(ctx context.Context, ch model.Channel, requesterID string) (*model.Participation, error)
	ForceSkip(ctx context.Context, ch model.Channel) (*model.Participation, error)
	Win(ctx context.Context, ch model.Channel, requesterID string, winner service.Player) (*service.WinResult, error)
	ForceWin(ctx context.Context, ch model.Channel, winner service.Player) (*service.WinResult, error)
}

// Scoreboards renders scoreboard pages.
type Scoreboards interface {
	Show(ctx context.Context, ch model.Channel, page int) (*service.Scoreboard, error)
}

// Ledger runs score resets.
type Ledger interface {
	Reset(ctx context.Context, ch model.Channel, cmd service.ResetCommand) (*service.ResetResult, error)
}

// Identities resolves and caches display identities.
type Identities interface {
	Resolve(ctx context.Context, guildID, userID string) (identity.Identity, error)
	Update(guildID string, id identity.Identity)
	BatchUpdate(guildID string, ids []identity.Identity)
	Remove(guildID, userID string)
	LookupUsername(guildID, username string) (identity.Identity, bool)
}

// respond turns a service error into a reply.
// A missing game is ignored, rule violations get their message and anything else is logged.
func respond(c tele.Context, err error) error {
	if errors.Is(err, service.ErrNoGame) {
		return nil
	}

	requester := ""
	if sender := c.Sender(); sender != nil {
		requester = MentionUser(sender)
	}
	if msg, ok := errorMessage(err, requester); ok {
		return c.Reply(msg, tele.ModeHTML)
	}

	event := log.Error().Err(err)
	if sender := c.Sender(); sender != nil {
		event = event.Int64("user_id", sender.ID)
	}
	if chat := c.Chat(); chat != nil {
		event = event.Int64("chat_id", chat.ID)
	}
	event.Str("text", c.Text()).Msg("Command failed")
	return c.Reply(MsgInternalError)
}

// send posts text into the channel of the current message.
func send(c tele.Context, what interface{}) error {
	thread := 0
	if msg := c.Message(); msg != nil && msg.TopicMessage {
		thread = msg.ThreadID
	}
	return c.Send(what, SendOptions(thread))
}

// MentionPlayer renders a mention of a player known only by id.
func MentionPlayer(ctx context.Context, ids Identities, guildID, userID string) string {
	id, err := ids.Resolve(ctx, guildID, userID)
	if err != nil {
		log.Debug().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("Mentioning unresolved user")
		return Mention(userID, userID)
	}
	return MentionIdentity(id)
}

// designate extracts the single winner of a message, replying when there is none or several.
// @username mentions are resolved against the members cached for the chat.
func designate(c tele.Context, ids Identities) (*tele.User, bool, error) {
	guildID := GuildID(c.Chat())
	winners := ExtractWinners(c.Message(), func(username string) (*tele.User, bool) {
		id, ok := ids.LookupUsername(guildID, username)
		if !ok {
			return nil, false
		}
		return UserOf(id)
	})
	switch len(winners) {
	case 1:
		return winners[0], true, nil
	case 0:
		return nil, false, c.Reply(MsgNoWinner(MentionUser(c.Sender())), tele.ModeHTML)
	default:
		return nil, false, c.Reply(MsgMultipleWinners(MentionUser(c.Sender())), tele.ModeHTML)
	}
}
