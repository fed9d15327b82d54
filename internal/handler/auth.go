package handler

import (
	"context"

	"github.com/cardshifter/server/internal/lobby"
	"github.com/cardshifter/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleLogin processes login{username}. The lobby answers with the
// loginresponse itself, followed by a snapshot when the name rejoins a game.
func HandleLogin(_ context.Context, sess lobby.Client, msg *packet.LoginMessage, deps *Deps) {
	if _, err := deps.Lobby.Login(sess, msg.Username); err != nil {
		deps.Log.Debug("login refused",
			zap.Uint64("session", sess.SessionID()),
			zap.String("name", msg.Username),
			zap.Error(err),
		)
	}
}

// HandleStartGame processes startgame{gameType, opponent}.
func HandleStartGame(ctx context.Context, sess lobby.Client, msg *packet.StartGameMessage, deps *Deps) {
	u, ok := deps.Lobby.UserBySession(sess.SessionID())
	if !ok {
		sendError(ctx, sess, codeNotLoggedIn, lobby.ErrNotLoggedIn.Error())
		return
	}
	if err := deps.Lobby.StartGame(u, msg.Opponent, msg.GameType); err != nil {
		deps.Log.Info("start game refused", zap.String("user", u.Name), zap.Int32("opponent", msg.Opponent), zap.Error(err))
		sendError(ctx, sess, codeStartFailed, err.Error())
	}
}
