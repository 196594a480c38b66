package handler

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/service"
)

func newGameHandler(games *fakeGames, board *fakeScoreboards, ids *fakeIdentities) *GameHandler {
	sentences := NewWinSentences([]string{"GG {} !"})
	return NewGameHandler(games, board, ids, sentences)
}

func photoMessage(from *tele.User, fileID, caption string) *tele.Message {
	msg := textMessage(from, "")
	msg.Photo = &tele.Photo{File: tele.File{FileID: fileID}}
	msg.Caption = caption
	return msg
}

func strptr(s string) *string { return &s }

func TestGameHandler_HandlePicture(t *testing.T) {
	t.Run("new picture is announced", func(t *testing.T) {
		games := &fakeGames{submit: &service.SubmitResult{
			Participation: &model.Participation{ID: uuid.New(), PlayerID: "1"},
			NewPicture:    true,
		}}
		h := newGameHandler(games, nil, newFakeIdentities())

		msg := photoMessage(alice, "abc", "")
		msg.TopicMessage = true
		msg.ThreadID = 12
		c := &fakeContext{msg: msg}
		require.NoError(t, h.HandlePicture(c))

		require.Len(t, games.calls, 1)
		assert.Equal(t, call{op: "submit", ch: model.Channel{GuildID: "-1001", ChannelID: "12"}, playerID: "1", ref: "photo:abc"}, games.calls[0])
		assert.Equal(t, []interface{}{MsgNewPicAvailable}, c.sent)
		require.Len(t, c.opts, 1)
		assert.Equal(t, 12, c.opts[0].ThreadID)
	})

	t.Run("other players' pictures are ignored", func(t *testing.T) {
		games := &fakeGames{submit: &service.SubmitResult{Participation: &model.Participation{PlayerID: "2"}}}
		h := newGameHandler(games, nil, newFakeIdentities())

		c := &fakeContext{msg: photoMessage(alice, "abc", "")}
		require.NoError(t, h.HandlePicture(c))
		assert.Empty(t, c.sent)
		assert.Empty(t, c.replies)
	})

	t.Run("second picture is rejected", func(t *testing.T) {
		games := &fakeGames{err: service.ErrPicAlreadyPosted}
		h := newGameHandler(games, nil, newFakeIdentities())

		c := &fakeContext{msg: photoMessage(alice, "abc", "")}
		require.NoError(t, h.HandlePicture(c))
		assert.Equal(t, MsgPicAlreadyPosted, c.lastText())
	})

	t.Run("no game is silent", func(t *testing.T) {
		games := &fakeGames{err: service.ErrNoGame}
		h := newGameHandler(games, nil, newFakeIdentities())

		c := &fakeContext{msg: photoMessage(alice, "abc", "")}
		require.NoError(t, h.HandlePicture(c))
		assert.Empty(t, c.sent)
		assert.Empty(t, c.replies)
	})

	t.Run("change caption", func(t *testing.T) {
		games := &fakeGames{current: &model.Participation{PlayerID: "1"}}
		h := newGameHandler(games, nil, newFakeIdentities())

		c := &fakeContext{msg: photoMessage(alice, "new", "/change")}
		require.NoError(t, h.HandlePicture(c))
		require.Len(t, games.calls, 1)
		assert.Equal(t, "change", games.calls[0].op)
		assert.Equal(t, "photo:new", games.calls[0].ref)
		assert.Equal(t, []interface{}{MsgPictureChanged}, c.sent)
	})

	t.Run("text is ignored", func(t *testing.T) {
		games := &fakeGames{}
		h := newGameHandler(games, nil, newFakeIdentities())
		require.NoError(t, h.HandlePicture(&fakeContext{msg: textMessage(alice, "hi")}))
		assert.Empty(t, games.calls)
	})
}

func TestGameHandler_HandleChange(t *testing.T) {
	games := &fakeGames{current: &model.Participation{PlayerID: "1"}}
	h := newGameHandler(games, nil, newFakeIdentities())

	c := &fakeContext{msg: textMessage(alice, "/change")}
	require.NoError(t, h.HandleChange(c))
	assert.Equal(t, MsgChangeUsage, c.lastText())
	assert.Empty(t, games.calls)

	msg := textMessage(alice, "/change")
	msg.ReplyTo = photoMessage(alice, "better", "")
	c = &fakeContext{msg: msg}
	require.NoError(t, h.HandleChange(c))
	require.Len(t, games.calls, 1)
	assert.Equal(t, "photo:better", games.calls[0].ref)

	games.err = service.ErrNotYourTurn
	c = &fakeContext{msg: msg}
	require.NoError(t, h.HandleChange(c))
	assert.Equal(t, MsgNotYourTurn, c.lastText())
}

func TestGameHandler_HandlePic(t *testing.T) {
	ids := newFakeIdentities()
	ids.Update("-1001", identity.Identity{UserID: "2", DisplayName: "Bob"})

	t.Run("resends the picture", func(t *testing.T) {
		games := &fakeGames{current: &model.Participation{PlayerID: "2", PictureURL: strptr("document:xyz")}}
		h := newGameHandler(games, nil, ids)

		c := &fakeContext{msg: textMessage(alice, "/pic")}
		require.NoError(t, h.HandlePic(c))
		require.Len(t, c.sent, 1)
		doc, ok := c.sent[0].(*tele.Document)
		require.True(t, ok)
		assert.Equal(t, "xyz", doc.FileID)
		assert.Contains(t, doc.Caption, Mention("2", "Bob"))
	})

	t.Run("turn without picture", func(t *testing.T) {
		games := &fakeGames{current: &model.Participation{PlayerID: "9"}}
		h := newGameHandler(games, nil, ids)

		c := &fakeContext{msg: textMessage(alice, "/pic")}
		require.NoError(t, h.HandlePic(c))
		assert.Equal(t, MsgNoPictureYet(Mention("9", "9")), c.lastText())
	})

	t.Run("nobody has the turn", func(t *testing.T) {
		h := newGameHandler(&fakeGames{err: service.ErrNoParticipant}, nil, ids)
		c := &fakeContext{msg: textMessage(alice, "/pic")}
		require.NoError(t, h.HandlePic(c))
		assert.Equal(t, MsgNoParticipant, c.lastText())
	})
}

func TestGameHandler_HandleSkip(t *testing.T) {
	games := &fakeGames{skipped: &model.Participation{PlayerID: "1", IsSkip: true}}
	h := newGameHandler(games, nil, newFakeIdentities())

	c := &fakeContext{msg: textMessage(alice, "/skip")}
	require.NoError(t, h.HandleSkip(c))
	assert.Equal(t, "1", games.calls[0].playerID)
	assert.Equal(t, MsgSkip(MentionUser(alice)), c.lastText())

	games.err = service.ErrNotYourTurn
	c = &fakeContext{msg: textMessage(bob, "/skip")}
	require.NoError(t, h.HandleSkip(c))
	assert.Equal(t, MsgNotYourTurn, c.lastText())
}

func TestGameHandler_HandleWin(t *testing.T) {
	winResult := &service.WinResult{Win: &model.Win{ID: uuid.New(), PlayerID: "1", WinnerID: "2", Score: 1}}

	t.Run("winner by reply", func(t *testing.T) {
		games := &fakeGames{win: winResult}
		ids := newFakeIdentities()
		h := newGameHandler(games, nil, ids)

		msg := textMessage(alice, "/win")
		msg.ReplyTo = textMessage(bob, "a cat")
		c := &fakeContext{msg: msg}
		require.NoError(t, h.HandleWin(c))

		require.Len(t, games.calls, 1)
		assert.Equal(t, "1", games.calls[0].playerID)
		assert.Equal(t, service.Player{ID: "2"}, games.calls[0].winner)
		assert.Equal(t, "GG "+MentionUser(bob)+" !", c.lastText())
		assert.True(t, ids.has("-1001", "2"), "winner identity is cached")
	})

	t.Run("winner by username", func(t *testing.T) {
		games := &fakeGames{win: winResult}
		ids := newFakeIdentities()
		ids.Update("-1001", IdentityOf(bob))
		h := newGameHandler(games, nil, ids)

		c := &fakeContext{msg: usernameMessage(alice, "/win", "bobby")}
		require.NoError(t, h.HandleWin(c))

		require.Len(t, games.calls, 1)
		assert.Equal(t, service.Player{ID: "2"}, games.calls[0].winner)
		assert.Equal(t, "GG "+MentionUser(bob)+" !", c.lastText())
	})

	t.Run("unknown username", func(t *testing.T) {
		games := &fakeGames{}
		h := newGameHandler(games, nil, newFakeIdentities())

		c := &fakeContext{msg: usernameMessage(alice, "/win", "bobby")}
		require.NoError(t, h.HandleWin(c))
		assert.Empty(t, games.calls)
		assert.Equal(t, MsgNoWinner(MentionUser(alice)), c.lastText())
	})

	t.Run("bot winner", func(t *testing.T) {
		games := &fakeGames{err: service.ErrStfuBot}
		h := newGameHandler(games, nil, newFakeIdentities())

		msg := textMessage(alice, "/win Robot")
		msg.Entities = tele.Entities{mentionEntity(robot)}
		c := &fakeContext{msg: msg}
		require.NoError(t, h.HandleWin(c))
		assert.True(t, games.calls[0].winner.IsBot)
		assert.Equal(t, MsgStfuBot, c.lastText())
	})

	t.Run("self win", func(t *testing.T) {
		h := newGameHandler(&fakeGames{err: service.ErrSelfWin}, nil, newFakeIdentities())

		msg := textMessage(alice, "/win")
		msg.ReplyTo = textMessage(alice, "me")
		c := &fakeContext{msg: msg}
		require.NoError(t, h.HandleWin(c))
		assert.Equal(t, MsgSelfWin(MentionUser(alice)), c.lastText())
	})

	t.Run("no winner", func(t *testing.T) {
		games := &fakeGames{}
		h := newGameHandler(games, nil, newFakeIdentities())

		c := &fakeContext{msg: textMessage(alice, "/win")}
		require.NoError(t, h.HandleWin(c))
		assert.Empty(t, games.calls)
		assert.Equal(t, MsgNoWinner(MentionUser(alice)), c.lastText())
	})

	t.Run("several winners", func(t *testing.T) {
		games := &fakeGames{}
		h := newGameHandler(games, nil, newFakeIdentities())

		msg := textMessage(alice, "/win Bob Robot")
		msg.Entities = tele.Entities{mentionEntity(bob), mentionEntity(robot)}
		c := &fakeContext{msg: msg}
		require.NoError(t, h.HandleWin(c))
		assert.Empty(t, games.calls)
		assert.Equal(t, MsgMultipleWinners(MentionUser(alice)), c.lastText())
	})

	t.Run("internal error", func(t *testing.T) {
		h := newGameHandler(&fakeGames{err: errors.New("db down")}, nil, newFakeIdentities())

		msg := textMessage(alice, "/win")
		msg.ReplyTo = textMessage(bob, "a cat")
		c := &fakeContext{msg: msg}
		require.NoError(t, h.HandleWin(c))
		assert.Equal(t, MsgInternalError, c.lastText())
	})
}

func TestGameHandler_HandleShow(t *testing.T) {
	board := &fakeScoreboards{board: &service.Scoreboard{
		Title: service.ScoreboardTitle(2, 3),
		Lines: []service.ScoreLine{{Rank: 11, WinnerID: "1", Label: "11. Alice & co", Score: 4}},
	}}
	h := newGameHandler(&fakeGames{}, board, newFakeIdentities())

	c := &fakeContext{msg: textMessage(alice, "/show 2"), args: []string{"2"}}
	require.NoError(t, h.HandleShow(c))
	assert.Equal(t, []int{2}, board.pages)
	assert.Equal(t, "<b>"+service.ScoreboardTitle(2, 3)+"</b>\n11. Alice &amp; co : 4", c.lastText())

	c = &fakeContext{msg: textMessage(alice, "/show")}
	require.NoError(t, h.HandleShow(c))
	assert.Equal(t, []int{2, 1}, board.pages)

	c = &fakeContext{msg: textMessage(alice, "/show two"), args: []string{"two"}}
	require.NoError(t, h.HandleShow(c))
	assert.Equal(t, MsgInvalidPage, c.lastText())
	assert.Len(t, board.pages, 2)

	board.err = service.ErrInvalidPage
	c = &fakeContext{msg: textMessage(alice, "/show 9"), args: []string{"9"}}
	require.NoError(t, h.HandleShow(c))
	assert.Equal(t, MsgInvalidPage, c.lastText())
}
