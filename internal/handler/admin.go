package handler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/service"
)

// AdminHandler handles admin-only commands.
type AdminHandler struct {
	games     Games
	ledger    Ledger
	ids       Identities
	sentences *WinSentences
	loc       *time.Location
}

// NewAdminHandler creates a new AdminHandler.
// Reset times are listed in loc.
func NewAdminHandler(games Games, ledger Ledger, ids Identities, sentences *WinSentences, loc *time.Location) *AdminHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AdminHandler{
		games:     games,
		ledger:    ledger,
		ids:       ids,
		sentences: sentences,
		loc:       loc,
	}
}

// HandleStartGame handles the /start_game command.
// Format: /start_game
func (h *AdminHandler) HandleStartGame(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}

	game, err := h.games.Start(ctx, ChannelOf(msg), UserID(sender))
	if err != nil {
		return respond(c, err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("game_id", game.ID.String()).
		Str("guild_id", game.GuildID).
		Str("channel_id", game.ChannelID).
		Str("operation", "start_game").
		Msg("Admin operation executed")
	return send(c, MsgGameStarted)
}

// HandleReset handles the /reset command.
// Format: /reset [do|list|cancel <id>]
func (h *AdminHandler) HandleReset(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}

	cmd, err := service.ParseResetArgs(c.Args())
	if err != nil {
		return respond(c, err)
	}

	res, err := h.ledger.Reset(ctx, ChannelOf(msg), cmd)
	if err != nil {
		return respond(c, err)
	}

	switch res.Mode {
	case service.ResetConfirm:
		return c.Reply(MsgResetConfirm, tele.ModeHTML)
	case service.ResetList:
		return c.Reply(MsgResetList(res.Groups, h.loc), tele.ModeHTML)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("chat_id", msg.Chat.ID).
		Str("reset_id", res.ResetID.String()).
		Int64("affected", res.Affected).
		Str("operation", "reset").
		Msg("Admin operation executed")

	if res.Mode == service.ResetCancel {
		return send(c, MsgResetCancelled(res))
	}
	return send(c, MsgResetDone(res))
}

// HandleForceSkip handles the /force_skip command.
// Format: /force_skip
func (h *AdminHandler) HandleForceSkip(c tele.Context) error {
	ctx := context.Background()
	msg := c.Message()
	sender := c.Sender()
	if msg == nil || sender == nil {
		return nil
	}

	ch := ChannelOf(msg)
	skipped, err := h.games.ForceSkip(ctx, ch)
	if err != nil {
		return respond(c, err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("player_id", skipped.PlayerID).
		Str("operation", "force_skip").
		Msg("Admin operation executed")
	return send(c, MsgForceSkip(MentionPlayer(ctx, h.ids, ch.GuildID, skipped.PlayerID)))
}

// HandleForceWin handles the /force_win command.
// Format: /force_win @winner, or /force_win in reply to the winner's message
func (h *AdminHandler) HandleForceWin(c tele.Context) error {
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

	res, err := h.games.ForceWin(ctx, ch, service.Player{ID: UserID(winner), IsBot: winner.IsBot})
	if err != nil {
		return respond(c, err)
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("winner_id", winner.ID).
		Str("player_id", res.Win.PlayerID).
		Str("operation", "force_win").
		Msg("Admin operation executed")
	return send(c, h.sentences.Format(MentionUser(winner)))
}
