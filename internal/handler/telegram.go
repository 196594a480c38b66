package handler

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/model"
)

// rootChannel is the channel id of chats without forum topics.
const rootChannel = "0"

// Picture reference prefixes, so the picture can be resent with its original kind.
const (
	refPhoto    = "photo:"
	refDocument = "document:"
)

func escape(s string) string {
	return html.EscapeString(s)
}

// UserID formats a Telegram user id as a player id.
func UserID(u *tele.User) string {
	return strconv.FormatInt(u.ID, 10)
}

// GuildID formats a Telegram chat id as a guild id.
func GuildID(chat *tele.Chat) string {
	return strconv.FormatInt(chat.ID, 10)
}

// ChannelOf returns the game channel a message belongs to.
// Messages in forum topics live in the topic's channel, everything else in the chat root.
func ChannelOf(msg *tele.Message) model.Channel {
	ch := model.Channel{GuildID: GuildID(msg.Chat), ChannelID: rootChannel}
	if msg.TopicMessage && msg.ThreadID != 0 {
		ch.ChannelID = strconv.Itoa(msg.ThreadID)
	}
	return ch
}

// ParseChannel converts a channel back to the Telegram chat and topic ids.
func ParseChannel(ch model.Channel) (chatID int64, threadID int, err error) {
	chatID, err = strconv.ParseInt(ch.GuildID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid guild id %q: %w", ch.GuildID, err)
	}
	threadID, err = strconv.Atoi(ch.ChannelID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid channel id %q: %w", ch.ChannelID, err)
	}
	return chatID, threadID, nil
}

// SendOptions returns options posting into the channel's topic as HTML.
func SendOptions(threadID int) *tele.SendOptions {
	return &tele.SendOptions{
		ThreadID:              threadID,
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
}

// IdentityOf builds an identity from a Telegram user.
func IdentityOf(u *tele.User) identity.Identity {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	return identity.Identity{
		UserID:      UserID(u),
		DisplayName: name,
		Username:    u.Username,
		IsBot:       u.IsBot,
	}
}

// Mention renders an HTML mention of a user.
func Mention(userID, name string) string {
	if name == "" {
		name = userID
	}
	return fmt.Sprintf(`<a href="tg://user?id=%s">%s</a>`, escape(userID), escape(name))
}

// MentionIdentity renders an HTML mention of a resolved identity.
func MentionIdentity(id identity.Identity) string {
	return Mention(id.UserID, id.Label())
}

// MentionUser renders an HTML mention of a Telegram user.
func MentionUser(u *tele.User) string {
	return MentionIdentity(IdentityOf(u))
}

// PictureRef encodes the picture attached to a message, false if there is none.
// Documents only count when they are images.
func PictureRef(msg *tele.Message) (string, bool) {
	switch {
	case msg.Photo != nil && msg.Photo.FileID != "":
		return refPhoto + msg.Photo.FileID, true
	case msg.Document != nil && msg.Document.FileID != "" && strings.HasPrefix(msg.Document.MIME, "image/"):
		return refDocument + msg.Document.FileID, true
	}
	return "", false
}

// PictureOf decodes a picture reference into something that can be sent back.
// References without a known prefix are treated as photos.
func PictureOf(ref, caption string) tele.Sendable {
	if id, ok := strings.CutPrefix(ref, refDocument); ok {
		return &tele.Document{File: tele.File{FileID: id}, Caption: caption}
	}
	id := strings.TrimPrefix(ref, refPhoto)
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return &tele.Photo{File: tele.FromURL(id), Caption: caption}
	}
	return &tele.Photo{File: tele.File{FileID: id}, Caption: caption}
}

// UsernameLookup finds a chat member by their @username.
type UsernameLookup func(username string) (*tele.User, bool)

// ExtractWinners lists the users designated as winner by a message.
// Mentions take precedence, otherwise the author of the replied message is used.
// @username mentions only count when byUsername knows them.
// Replies to a forum topic's root do not designate anyone.
func ExtractWinners(msg *tele.Message, byUsername UsernameLookup) []*tele.User {
	var winners []*tele.User
	seen := make(map[int64]bool)
	add := func(u *tele.User) {
		if u == nil || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		winners = append(winners, u)
	}

	entities := msg.Entities
	if len(entities) == 0 {
		entities = msg.CaptionEntities
	}
	for _, e := range entities {
		switch e.Type {
		case tele.EntityTMention:
			add(e.User)
		case tele.EntityMention:
			if byUsername == nil {
				continue
			}
			if u, ok := byUsername(msg.EntityText(e)); ok {
				add(u)
			}
		}
	}
	if len(winners) > 0 {
		return winners
	}

	if msg.ReplyTo != nil && msg.ReplyTo.TopicCreated == nil {
		add(msg.ReplyTo.Sender)
	}
	return winners
}

// UserOf rebuilds a Telegram user from a cached identity.
func UserOf(id identity.Identity) (*tele.User, bool) {
	userID, err := strconv.ParseInt(id.UserID, 10, 64)
	if err != nil {
		return nil, false
	}
	return &tele.User{
		ID:        userID,
		FirstName: id.DisplayName,
		Username:  id.Username,
		IsBot:     id.IsBot,
	}, true
}

// captionCommand returns the bot command starting a caption, without its @bot suffix.
func captionCommand(caption string) string {
	fields := strings.Fields(caption)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}
