package handler

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/service"
)

// MsgChangeUsage explains how to change a picture.
const MsgChangeUsage = "Réponds à ta nouvelle photo avec /change, ou envoie-la avec /change en légende."

// GameHandler handles the player commands of the picture game.
type GameHandler struct {
	games      Games
	scoreboard Scoreboards
	ids        Identities
	sentences  *WinSentences
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games Games, scoreboard Scoreboards, ids Identities, sentences *WinSentences) *GameHandler {
	return &GameHandler{
		games:      games,
		scoreboard: scoreboard,
		ids:        ids,
		sentences:  sentences,
	}
}

// HandlePicture handles photos and image documents posted in a game channel.
// A caption starting with /change replaces the current picture instead.
func (h *GameHandler) HandlePicture(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}

	ref, ok := PictureRef(msg)
	if !ok {
		return nil
	}
	if captionCommand(msg.Caption) == "/change" {
		return h.changePicture(ctx, c, ref)
	}

	res, err := h.games.SubmitPicture(ctx, ChannelOf(msg), UserID(sender), ref)
	if err != nil {
		return respond(c, err)
	}
	if !res.NewPicture {
		return nil
	}

	log.Info().
		Int64("user_id", sender.ID).
		Int64("chat_id", msg.Chat.ID).
		Str("participation_id", res.Participation.ID.String()).
		Msg("New picture to guess")
	return send(c, MsgNewPicAvailable)
}

// HandleChange handles the /change command sent as a reply to the new picture.
func (h *GameHandler) HandleChange(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	if msg == nil || c.Sender() == nil {
		return nil
	}

	if msg.ReplyTo == nil {
		return c.Reply(MsgChangeUsage)
	}
	ref, ok := PictureRef(msg.ReplyTo)
	if !ok {
		return c.Reply(MsgChangeUsage)
	}
	return h.changePicture(ctx, c, ref)
}

func (h *GameHandler) changePicture(ctx context.Context, c tele.Context, ref string) error {
	if _, err := h.games.ChangePicture(ctx, ChannelOf(c.Message()), UserID(c.Sender()), ref); err != nil {
		return respond(c, err)
	}
	return send(c, MsgPictureChanged)
}

// HandlePic handles the /pic command.
// Format: /pic
func (h *GameHandler) HandlePic(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	if msg == nil {
		return nil
	}

	ch := ChannelOf(msg)
	cur, err := h.games.CurrentPicture(ctx, ch)
	if err != nil {
		return respond(c, err)
	}

	player := MentionPlayer(ctx, h.ids, ch.GuildID, cur.PlayerID)
	if !cur.HasPicture() {
		return c.Reply(MsgNoPictureYet(player), tele.ModeHTML)
	}
	return send(c, PictureOf(*cur.PictureURL, "📸 Photo de "+player))
}

// HandleSkip handles the /skip command.
// Format: /skip
func (h *GameHandler) HandleSkip(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}

	if _, err := h.games.Skip(ctx, ChannelOf(msg), UserID(sender)); err != nil {
		return respond(c, err)
	}
	return send(c, MsgSkip(MentionUser(sender)))
}

// HandleWin handles the /win command.
// Format: /win @winner, or /win in reply to the winner's message
func (h *GameHandler) HandleWin(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}

	winner, ok, err := designate(c, h.ids)
	if !ok {
		return err
	}

	ch := ChannelOf(msg)
	h.ids.Update(ch.GuildID, IdentityOf(winner))

	res, err := h.games.Win(ctx, ch, UserID(sender), service.Player{ID: UserID(winner), IsBot: winner.IsBot})
	if err != nil {
		return respond(c, err)
	}

	log.Info().
		Int64("user_id", sender.ID).
		Int64("winner_id", winner.ID).
		Int64("chat_id", msg.Chat.ID).
		Str("win_id", res.Win.ID.String()).
		Msg("Turn won")
	return send(c, h.sentences.Format(MentionUser(winner)))
}

// HandleShow handles the /show command.
// Format: /show [page]
func (h *GameHandler) HandleShow(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	if msg == nil {
		return nil
	}

	page := 1
	if args := c.Args(); len(args) > 0 {
		p, err := strconv.Atoi(args[0])
		if err != nil {
			return c.Reply(MsgInvalidPage)
		}
		page = p
	}

	board, err := h.scoreboard.Show(ctx, ChannelOf(msg), page)
	if err != nil {
		return respond(c, err)
	}
	return send(c, MsgScoreboard(board))
}
