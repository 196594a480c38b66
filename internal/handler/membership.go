package handler

import (
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/identity"
)

// MembershipHandler keeps the identity cache in sync with chat membership events.
type MembershipHandler struct {
	ids Identities
}

// NewMembershipHandler creates a new MembershipHandler.
func NewMembershipHandler(ids Identities) *MembershipHandler {
	return &MembershipHandler{ids: ids}
}

// HandleChatMember handles chat member updates.
func (h *MembershipHandler) HandleChatMember(c tele.Context) error {
	upd := c.ChatMember()
	if upd == nil || upd.Chat == nil || upd.NewChatMember == nil || upd.NewChatMember.User == nil {
		return nil
	}

	guildID := GuildID(upd.Chat)
	member := upd.NewChatMember
	switch member.Role {
	case tele.Left, tele.Kicked:
		h.ids.Remove(guildID, UserID(member.User))
	default:
		h.ids.Update(guildID, IdentityOf(member.User))
	}

	log.Debug().
		Str("guild_id", guildID).
		Int64("user_id", member.User.ID).
		Str("role", string(member.Role)).
		Msg("Chat member updated")
	return nil
}

// HandleUserJoined handles service messages announcing new members.
func (h *MembershipHandler) HandleUserJoined(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return nil
	}

	var joined []identity.Identity
	for i := range msg.UsersJoined {
		joined = append(joined, IdentityOf(&msg.UsersJoined[i]))
	}
	if len(joined) == 0 && msg.UserJoined != nil {
		joined = append(joined, IdentityOf(msg.UserJoined))
	}
	h.ids.BatchUpdate(GuildID(msg.Chat), joined)
	return nil
}

// HandleUserLeft handles service messages announcing a departure.
func (h *MembershipHandler) HandleUserLeft(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil || msg.UserLeft == nil {
		return nil
	}
	h.ids.Remove(GuildID(msg.Chat), UserID(msg.UserLeft))
	return nil
}

// Track refreshes the cached identity of every message sender.
func (h *MembershipHandler) Track(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if chat, sender := c.Chat(), c.Sender(); chat != nil && sender != nil && chat.Type != tele.ChatPrivate {
			h.ids.Update(GuildID(chat), IdentityOf(sender))
		}
		return next(c)
	}
}
