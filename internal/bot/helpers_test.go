package bot

import (
	"context"
	"sync"

	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/identity"
)

// fakeContext is a minimal tele.Context. Methods it does not override panic.
type fakeContext struct {
	tele.Context
	msg     *tele.Message
	replies []interface{}
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
	if c.msg.Caption != "" {
		return c.msg.Caption
	}
	return c.msg.Text
}

func (c *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, what)
	return nil
}

func message(chat *tele.Chat, userID int64, text string) *fakeContext {
	return &fakeContext{msg: &tele.Message{
		Chat:   chat,
		Sender: &tele.User{ID: userID, FirstName: "user"},
		Text:   text,
	}}
}

// counter is a handler counting its calls.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) handle(tele.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// fakeChatAPI serves chat members and chats from maps.
type fakeChatAPI struct {
	members map[string]*tele.ChatMember // key: "chat/user"
	chats   map[int64]*tele.Chat
	err     error
}

func (f *fakeChatAPI) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.members[chat.Recipient()+"/"+user.Recipient()]
	if !ok {
		return nil, tele.ErrChatNotFound
	}
	return m, nil
}

func (f *fakeChatAPI) ChatByID(id int64) (*tele.Chat, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.chats[id]
	if !ok {
		return nil, tele.ErrChatNotFound
	}
	return c, nil
}

// fakeSender records sent messages.
type fakeSender struct {
	mu   sync.Mutex
	to   []tele.Recipient
	what []interface{}
	opts []*tele.SendOptions
	err  error
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.to = append(f.to, to)
	f.what = append(f.what, what)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.opts = append(f.opts, so)
		}
	}
	return &tele.Message{}, nil
}

// emptyDirectory knows nobody.
type emptyDirectory struct{}

func (emptyDirectory) Member(context.Context, string, string) (identity.Identity, error) {
	return identity.Identity{}, identity.ErrNotFound
}

func (emptyDirectory) User(context.Context, string) (identity.Identity, error) {
	return identity.Identity{}, identity.ErrNotFound
}
