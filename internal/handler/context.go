package handler

import (
	"context"

	"github.com/cardshifter/server/internal/lobby"
	"github.com/cardshifter/server/internal/net"
	"github.com/cardshifter/server/internal/net/packet"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Lobby *lobby.Lobby
	Log   *zap.Logger
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Before login
	reg.Register(packet.CmdLogin,
		[]packet.SessionState{packet.StateConnected},
		func(ctx context.Context, sess any, msg packet.Message) {
			HandleLogin(ctx, sess.(*net.Session), msg.(*packet.LoginMessage), deps)
		},
	)

	// Lobby
	reg.Register(packet.CmdStartGame,
		[]packet.SessionState{packet.StateLoggedIn},
		func(ctx context.Context, sess any, msg packet.Message) {
			HandleStartGame(ctx, sess.(*net.Session), msg.(*packet.StartGameMessage), deps)
		},
	)

	// In game
	inGame := []packet.SessionState{packet.StateInGame}

	reg.Register(packet.CmdUse, inGame,
		func(ctx context.Context, sess any, msg packet.Message) {
			HandleUse(ctx, sess.(*net.Session), msg.(*packet.UseMessage), deps)
		},
	)
	reg.Register(packet.CmdRequestTargets, inGame,
		func(ctx context.Context, sess any, msg packet.Message) {
			HandleRequestTargets(ctx, sess.(*net.Session), msg.(*packet.RequestTargetsMessage), deps)
		},
	)
}
