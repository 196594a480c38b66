package handler

import (
	"context"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/identity"
	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/service"
)

// fakeContext records what a handler sends. Methods it does not override panic.
type fakeContext struct {
	tele.Context
	msg     *tele.Message
	member  *tele.ChatMemberUpdate
	args    []string
	sent    []interface{}
	replies []interface{}
	opts    []*tele.SendOptions
}

func (c *fakeContext) Message() *tele.Message { return c.msg }

func (c *fakeContext) Sender() *tele.User {
	if c.msg == nil {
		return nil
	}
	return c.msg.Sender
}

func (c *fakeContext) Chat() *tele.Chat {
	if c.msg == nil {
		return nil
	}
	return c.msg.Chat
}

func (c *fakeContext) Text() string {
	if c.msg == nil {
		return ""
	}
	return c.msg.Text
}

func (c *fakeContext) Args() []string                     { return c.args }
func (c *fakeContext) ChatMember() *tele.ChatMemberUpdate { return c.member }

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, what)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			c.opts = append(c.opts, so)
		}
	}
	return nil
}

func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what)
	return nil
}

// lastText returns the last text sent or replied.
func (c *fakeContext) lastText() string {
	for _, list := range [][]interface{}{c.replies, c.sent} {
		if len(list) > 0 {
			if s, ok := list[len(list)-1].(string); ok {
				return s
			}
		}
	}
	return ""
}

var (
	alice = &tele.User{ID: 1, FirstName: "Alice"}
	bob   = &tele.User{ID: 2, FirstName: "Bob", Username: "bobby"}
	robot = &tele.User{ID: 3, FirstName: "Robot", IsBot: true}
	group = &tele.Chat{ID: -1001, Type: tele.ChatSuperGroup}
)

func textMessage(from *tele.User, text string) *tele.Message {
	return &tele.Message{ID: 10, Sender: from, Chat: group, Text: text}
}

func mentionEntity(u *tele.User) tele.MessageEntity {
	return tele.MessageEntity{Type: tele.EntityTMention, User: u}
}

// usernameMessage builds "<command> @<username>" with its command and mention entities.
func usernameMessage(from *tele.User, command, username string) *tele.Message {
	msg := textMessage(from, command+" @"+username)
	msg.Entities = tele.Entities{
		{Type: tele.EntityCommand, Offset: 0, Length: len(command)},
		{Type: tele.EntityMention, Offset: len(command) + 1, Length: len(username) + 1},
	}
	return msg
}

// call records one invocation of the fake game service.
type call struct {
	op       string
	ch       model.Channel
	playerID string
	ref      string
	winner   service.Player
}

// fakeGames returns canned results and records its calls.
type fakeGames struct {
	mu      sync.Mutex
	calls   []call
	err     error
	submit  *service.SubmitResult
	current *model.Participation
	skipped *model.Participation
	win     *service.WinResult
	game    *model.Game
}

func (f *fakeGames) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err
}

func (f *fakeGames) Start(_ context.Context, ch model.Channel, creatorID string) (*model.Game, error) {
	if err := f.record(call{op: "start", ch: ch, playerID: creatorID}); err != nil {
		return nil, err
	}
	return f.game, nil
}

func (f *fakeGames) SubmitPicture(_ context.Context, ch model.Channel, playerID, ref string) (*service.SubmitResult, error) {
	if err := f.record(call{op: "submit", ch: ch, playerID: playerID, ref: ref}); err != nil {
		return nil, err
	}
	return f.submit, nil
}

func (f *fakeGames) ChangePicture(_ context.Context, ch model.Channel, playerID, ref string) (*model.Participation, error) {
	if err := f.record(call{op: "change", ch: ch, playerID: playerID, ref: ref}); err != nil {
		return nil, err
	}
	return f.current, nil
}

func (f *fakeGames) CurrentPicture(_ context.Context, ch model.Channel) (*model.Participation, error) {
	if err := f.record(call{op: "current", ch: ch}); err != nil {
		return nil, err
	}
	return f.current, nil
}

func (f *fakeGames) Skip(_ context.Context, ch model.Channel, requesterID string) (*model.Participation, error) {
	if err := f.record(call{op: "skip", ch: ch, playerID: requesterID}); err != nil {
		return nil, err
	}
	return f.skipped, nil
}

func (f *fakeGames) ForceSkip(_ context.Context, ch model.Channel) (*model.Participation, error) {
	if err := f.record(call{op: "force_skip", ch: ch}); err != nil {
		return nil, err
	}
	return f.skipped, nil
}

func (f *fakeGames) Win(_ context.Context, ch model.Channel, requesterID string, winner service.Player) (*service.WinResult, error) {
	if err := f.record(call{op: "win", ch: ch, playerID: requesterID, winner: winner}); err != nil {
		return nil, err
	}
	return f.win, nil
}

func (f *fakeGames) ForceWin(_ context.Context, ch model.Channel, winner service.Player) (*service.WinResult, error) {
	if err := f.record(call{op: "force_win", ch: ch, winner: winner}); err != nil {
		return nil, err
	}
	return f.win, nil
}

type fakeScoreboards struct {
	pages []int
	board *service.Scoreboard
	err   error
}

func (f *fakeScoreboards) Show(_ context.Context, _ model.Channel, page int) (*service.Scoreboard, error) {
	f.pages = append(f.pages, page)
	return f.board, f.err
}

type fakeLedger struct {
	cmds []service.ResetCommand
	res  *service.ResetResult
	err  error
}

func (f *fakeLedger) Reset(_ context.Context, _ model.Channel, cmd service.ResetCommand) (*service.ResetResult, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.Mode = cmd.Mode
	return &res, nil
}

// fakeIdentities stores identities per guild and user without any directory behind it.
type fakeIdentities struct {
	mu      sync.Mutex
	members map[string]identity.Identity
}

func newFakeIdentities() *fakeIdentities {
	return &fakeIdentities{members: make(map[string]identity.Identity)}
}

func (f *fakeIdentities) key(guildID, userID string) string { return guildID + "/" + userID }

func (f *fakeIdentities) Resolve(_ context.Context, guildID, userID string) (identity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.members[f.key(guildID, userID)]
	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}
	return id, nil
}

func (f *fakeIdentities) Update(guildID string, id identity.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[f.key(guildID, id.UserID)] = id
}

func (f *fakeIdentities) BatchUpdate(guildID string, ids []identity.Identity) {
	for _, id := range ids {
		f.Update(guildID, id)
	}
}

func (f *fakeIdentities) Remove(guildID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, f.key(guildID, userID))
}

func (f *fakeIdentities) LookupUsername(guildID, username string) (identity.Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := strings.ToLower(strings.TrimPrefix(username, "@"))
	for key, id := range f.members {
		if strings.HasPrefix(key, guildID+"/") && id.Username != "" && strings.ToLower(id.Username) == name {
			return id, true
		}
	}
	return identity.Identity{}, false
}

func (f *fakeIdentities) has(guildID, userID string) bool {
	_, err := f.Resolve(context.Background(), guildID, userID)
	return err == nil
}
