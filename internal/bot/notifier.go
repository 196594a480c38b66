package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/handler"
	"photo-relay-bot/internal/model"
)

// sender is the part of the Telegram API used to post messages.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier posts autoskip announcements into game channels.
type Notifier struct {
	api sender
	ids handler.Identities
}

// NewNotifier creates a Notifier.
func NewNotifier(api sender, ids handler.Identities) *Notifier {
	return &Notifier{api: api, ids: ids}
}

// NotifyWarning warns a player that their turn is about to be skipped.
func (n *Notifier) NotifyWarning(ctx context.Context, game model.Game, playerID string) error {
	return n.post(ctx, game, playerID, handler.MsgAutoskipWarning)
}

// NotifyPenalty announces a turn skipped with a penalty.
func (n *Notifier) NotifyPenalty(ctx context.Context, game model.Game, playerID string) error {
	return n.post(ctx, game, playerID, handler.MsgAutoskipPenalty)
}

func (n *Notifier) post(ctx context.Context, game model.Game, playerID string, render func(string) string) error {
	chatID, threadID, err := handler.ParseChannel(game.Channel())
	if err != nil {
		return err
	}

	text := render(handler.MentionPlayer(ctx, n.ids, game.GuildID, playerID))
	if _, err := n.api.Send(tele.ChatID(chatID), text, handler.SendOptions(threadID)); err != nil {
		return fmt.Errorf("failed to notify chat %d: %w", chatID, err)
	}
	return nil
}
