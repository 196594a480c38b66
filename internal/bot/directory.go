package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/handler"
	"photo-relay-bot/internal/identity"
)

// chatAPI is the part of the Telegram API used to look users up.
type chatAPI interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
	ChatByID(id int64) (*tele.Chat, error)
}

// Directory looks Telegram users up for the identity resolver.
type Directory struct {
	api chatAPI
}

// NewDirectory creates a Directory backed by the bot API.
func NewDirectory(api chatAPI) *Directory {
	return &Directory{api: api}
}

// Member returns the identity of a current member of a chat.
func (d *Directory) Member(ctx context.Context, guildID, userID string) (identity.Identity, error) {
	chatID, uid, err := parseIDs(guildID, userID)
	if err != nil {
		return identity.Identity{}, err
	}

	m, err := d.api.ChatMemberOf(tele.ChatID(chatID), tele.ChatID(uid))
	if err != nil {
		return identity.Identity{}, lookupError(err, "chat member")
	}
	if m.User == nil || m.Role == tele.Left || m.Role == tele.Kicked {
		return identity.Identity{}, identity.ErrNotFound
	}
	return handler.IdentityOf(m.User), nil
}

// User returns the global identity of a user the bot has seen before.
func (d *Directory) User(ctx context.Context, userID string) (identity.Identity, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: invalid user id %q", identity.ErrNotFound, userID)
	}

	chat, err := d.api.ChatByID(uid)
	if err != nil {
		return identity.Identity{}, lookupError(err, "user")
	}
	return identity.Identity{
		UserID:      userID,
		DisplayName: strings.TrimSpace(chat.FirstName + " " + chat.LastName),
		Username:    chat.Username,
	}, nil
}

func parseIDs(guildID, userID string) (int64, int64, error) {
	chatID, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid guild id %q", identity.ErrNotFound, guildID)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid user id %q", identity.ErrNotFound, userID)
	}
	return chatID, uid, nil
}

// lookupError maps "not found" API answers to identity.ErrNotFound.
func lookupError(err error, what string) error {
	if errors.Is(err, tele.ErrChatNotFound) || errors.Is(err, tele.ErrNotFound) ||
		strings.Contains(strings.ToLower(err.Error()), "not found") {
		return fmt.Errorf("%w: %s: %v", identity.ErrNotFound, what, err)
	}
	return fmt.Errorf("failed to look up %s: %w", what, err)
}
