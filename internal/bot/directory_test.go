package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/model"
)

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	api := &fakeChatAPI{
		members: map[string]*tele.ChatMember{
			"-100/1": {User: &tele.User{ID: 1, FirstName: "Alice"}, Role: tele.Member},
			"-100/2": {User: &tele.User{ID: 2, FirstName: "Bob"}, Role: tele.Left},
			"-100/3": {User: &tele.User{ID: 3, FirstName: "Eve"}, Role: tele.Kicked},
		},
		chats: map[int64]*tele.Chat{
			2: {ID: 2, FirstName: "Bob", LastName: "Martin", Username: "bobm"},
		},
	}
	dir := NewDirectory(api)

	id, err := dir.Member(ctx, "-100", "1")
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{UserID: "1", DisplayName: "Alice"}, id)

	for _, user := range []string{"2", "3", "4"} {
		_, err = dir.Member(ctx, "-100", user)
		assert.ErrorIs(t, err, identity.ErrNotFound, "user %s", user)
	}
	_, err = dir.Member(ctx, "general", "1")
	assert.ErrorIs(t, err, identity.ErrNotFound)

	id, err = dir.User(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, identity.Identity{UserID: "2", DisplayName: "Bob Martin", Username: "bobm"}, id)

	_, err = dir.User(ctx, "5")
	assert.ErrorIs(t, err, identity.ErrNotFound)

	api.err = errors.New("connection reset")
	_, err = dir.User(ctx, "2")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, identity.ErrNotFound)
}

func TestDirectory_WithResolver(t *testing.T) {
	api := &fakeChatAPI{
		members: map[string]*tele.ChatMember{},
		chats:   map[int64]*tele.Chat{9: {ID: 9, Username: "gone"}},
	}
	r := identity.NewResolver(NewDirectory(api))

	// a former member falls back to their global identity
	id, err := r.Resolve(context.Background(), "-100", "9")
	require.NoError(t, err)
	assert.Equal(t, "@gone", id.Label())
}

func TestNotifier(t *testing.T) {
	ctx := context.Background()
	api := &fakeSender{}
	r := identity.NewResolver(emptyDirectory{})
	r.Update("-100", identity.Identity{UserID: "1", DisplayName: "Alice"})
	n := NewNotifier(api, r)

	game := model.Game{GuildID: "-100", ChannelID: "12"}
	require.NoError(t, n.NotifyWarning(ctx, game, "1"))
	require.NoError(t, n.NotifyPenalty(ctx, game, "2"))

	require.Len(t, api.what, 2)
	assert.Equal(t, tele.ChatID(-100), api.to[0])
	assert.Equal(t, `⏰ <a href="tg://user?id=1">Alice</a> ça va autoskip !`, api.what[0])
	assert.Contains(t, api.what[1], `<a href="tg://user?id=2">2</a>`)
	assert.Equal(t, 12, api.opts[0].ThreadID)
	assert.Equal(t, tele.ModeHTML, api.opts[0].ParseMode)

	err := n.NotifyWarning(ctx, model.Game{GuildID: "x", ChannelID: "0"}, "1")
	assert.Error(t, err)

	api.err = errors.New("flood wait")
	assert.Error(t, n.NotifyPenalty(ctx, game, "1"))
}
