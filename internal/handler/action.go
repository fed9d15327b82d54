package handler

import (
	"context"
	"errors"

	"github.com/cardshifter/server/internal/game"
	"github.com/cardshifter/server/internal/lobby"
	"github.com/cardshifter/server/internal/net/packet"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Error codes sent besides the game's rejection reasons.
const (
	codeNotLoggedIn  = "NOT_LOGGED_IN"
	codeNotInGame    = "NOT_IN_GAME"
	codeStartFailed  = "START_FAILED"
	codeActionFailed = "ACTION_FAILED"
)

// HandleUse processes use{action, gameId, id, target}. Target 0 means the
// action is used without a target.
func HandleUse(ctx context.Context, sess lobby.Client, msg *packet.UseMessage, deps *Deps) {
	u, ok := deps.Lobby.UserBySession(sess.SessionID())
	if !ok {
		sendError(ctx, sess, codeNotLoggedIn, lobby.ErrNotLoggedIn.Error())
		return
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("action", msg.Action),
		attribute.Int("owner", int(msg.ID)),
	)
	if err := deps.Lobby.Use(u, msg); err != nil {
		reportMoveError(ctx, sess, u, err, deps)
	}
}

// HandleRequestTargets processes requestTargets{action, gameId, id}.
func HandleRequestTargets(ctx context.Context, sess lobby.Client, msg *packet.RequestTargetsMessage, deps *Deps) {
	u, ok := deps.Lobby.UserBySession(sess.SessionID())
	if !ok {
		sendError(ctx, sess, codeNotLoggedIn, lobby.ErrNotLoggedIn.Error())
		return
	}
	if err := deps.Lobby.RequestTargets(u, msg); err != nil {
		reportMoveError(ctx, sess, u, err, deps)
	}
}

// reportMoveError tells only the requesting client why its move failed.
func reportMoveError(ctx context.Context, sess lobby.Client, u *lobby.User, err error, deps *Deps) {
	if r, ok := game.AsRejection(err); ok {
		deps.Log.Warn("move rejected", zap.String("user", u.Name), zap.String("reason", string(r.Reason)), zap.String("detail", r.Message))
		sendError(ctx, sess, string(r.Reason), r.Message)
		return
	}
	if errors.Is(err, lobby.ErrNotInGame) {
		sendError(ctx, sess, codeNotInGame, err.Error())
		return
	}
	deps.Log.Error("move failed", zap.String("user", u.Name), zap.Error(err))
	sendError(ctx, sess, codeActionFailed, err.Error())
}

func sendError(ctx context.Context, sess lobby.Client, code, message string) {
	trace.SpanFromContext(ctx).AddEvent("error", trace.WithAttributes(attribute.String("code", code)))
	sess.Send(&packet.ErrorMessage{Code: code, Message: message})
}
