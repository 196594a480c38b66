package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"photo-relay-bot/internal/model"
	"photo-relay-bot/internal/service"
)

// Fixed replies.
const (
	MsgNotYourTurn       = "❌ Tut tut tut, c'est pas toi qui a la main..."
	MsgNoParticipant     = "⁉️ Mais personne n'a la main ..."
	MsgYouPostedNoPic    = "🤦 Hrmpf t'as pas mis de photo toi ..."
	MsgStfuBot           = "🤖 Tg le bot !"
	MsgPicAlreadyPosted  = "🦜 T'as déjà mis une photo coco."
	MsgNewPicAvailable   = "🔎 À vos claviers, une nouvelle photo est à trouver"
	MsgInvalidPage       = "Page invalide"
	MsgInvalidResetID    = "❌ ID de reset invalide"
	MsgUnknownArguments  = "❌ Arguments inconnus. Usage: /reset [do|list|cancel <id>]"
	MsgGameAlreadyExists = "❌ Il y a déjà une partie en cours dans ce chan"
	MsgInternalError     = "❌ Erreur interne"
	MsgGameStarted       = "🎬 Partie démarrée !"
	MsgResetConfirm      = "⚠️ Pour confirmer le reset, envoie <code>/reset do</code>."
	MsgNoReset           = "Aucun reset à annuler."
	MsgPictureChanged    = "🔁 Photo changée, à vos claviers !"
)

// ruleMessages maps game rule violations to their replies.
// Self-win is absent: its reply mentions the player, see errorMessage.
var ruleMessages = map[error]string{
	service.ErrNotYourTurn:       MsgNotYourTurn,
	service.ErrNoParticipant:     MsgNoParticipant,
	service.ErrYouPostedNoPic:    MsgYouPostedNoPic,
	service.ErrStfuBot:           MsgStfuBot,
	service.ErrPicAlreadyPosted:  MsgPicAlreadyPosted,
	service.ErrInvalidPage:       MsgInvalidPage,
	service.ErrInvalidResetID:    MsgInvalidResetID,
	service.ErrUnknownArguments:  MsgUnknownArguments,
	service.ErrGameAlreadyExists: MsgGameAlreadyExists,
}

// errorMessage returns the reply for a rule violation, false for anything else.
// requester is the mention of the user who sent the command.
func errorMessage(err error, requester string) (string, bool) {
	if !service.IsRuleViolation(err) {
		return "", false
	}
	if errors.Is(err, service.ErrSelfWin) {
		return MsgSelfWin(requester), true
	}
	for target, msg := range ruleMessages {
		if errors.Is(err, target) {
			return msg, true
		}
	}
	return "", false
}

// MsgSkip announces a voluntary skip.
func MsgSkip(player string) string {
	return fmt.Sprintf("A vos photos, %s passe la main !", player)
}

// MsgForceSkip announces a skip forced by an admin.
func MsgForceSkip(player string) string {
	return fmt.Sprintf("A vos photos, %s n'a plus la main, on y a coupé court !", player)
}

// MsgNoWinner asks the player to designate a winner.
func MsgNoWinner(player string) string {
	return player + ", cékiki le gagnant ?"
}

// MsgMultipleWinners rejects a win designating several users.
func MsgMultipleWinners(player string) string {
	return fmt.Sprintf("Hé %s, tu serai pas un peu fada ? Un seul gagnant, un seul !", player)
}

// MsgSelfWin rejects a player designating themselves.
func MsgSelfWin(player string) string {
	return player + " be like https://i.imgflip.com/12w3f0.jpg"
}

// MsgNoPictureYet tells whose turn it is when no picture was posted yet.
func MsgNoPictureYet(player string) string {
	return fmt.Sprintf("C'est au tour de %s qui n'a pas encore posté de photo.", player)
}

// MsgAutoskipWarning warns a player their turn is about to be skipped.
func MsgAutoskipWarning(player string) string {
	return fmt.Sprintf("⏰ %s ça va autoskip !", player)
}

// MsgAutoskipPenalty announces a turn skipped after timing out.
func MsgAutoskipPenalty(player string) string {
	return fmt.Sprintf("Sorry %s, les gens sont nuls, prends ton point en moins ¯\\_(ツ)_/¯.", player)
}

// MsgResetDone confirms a reset.
func MsgResetDone(res *service.ResetResult) string {
	return fmt.Sprintf("🧹 Scores reset avec ID <code>%s</code> (%d victoires)", res.ResetID, res.Affected)
}

// MsgResetCancelled confirms a reset was cancelled.
func MsgResetCancelled(res *service.ResetResult) string {
	return fmt.Sprintf("↩️ Reset <code>%s</code> annulé (%d victoires)", res.ResetID, res.Affected)
}

// MsgResetList lists active resets, numbered from 1.
func MsgResetList(groups []model.ResetGroup, loc *time.Location) string {
	if len(groups) == 0 {
		return MsgNoReset
	}

	var sb strings.Builder
	sb.WriteString("Resets:")
	for i, g := range groups {
		fmt.Fprintf(&sb, "\n%d. <code>%s</code> à %s", i+1, g.ResetID, g.ResetAt.In(loc).Format("2006-01-02 15:04"))
	}
	return sb.String()
}

// MsgScoreboard renders a scoreboard page.
func MsgScoreboard(board *service.Scoreboard) string {
	var sb strings.Builder
	sb.WriteString("<b>")
	sb.WriteString(escape(board.Title))
	sb.WriteString("</b>")
	for _, line := range board.Lines {
		fmt.Fprintf(&sb, "\n%s : %d", escape(line.Label), line.Score)
	}
	return sb.String()
}
