package handler

import (
	"context"
	gonet "net"
	"testing"
	"time"

	"github.com/cardshifter/server/internal/data"
	"github.com/cardshifter/server/internal/lobby"
	"github.com/cardshifter/server/internal/net"
	"github.com/cardshifter/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type harness struct {
	t     *testing.T
	reg   *packet.Registry
	lobby *lobby.Lobby
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	table, err := data.LoadRulesetTable("")
	require.NoError(t, err)
	l := lobby.New(context.Background(), lobby.Options{
		Rulesets:       table,
		DefaultRuleset: "vanilla",
		AITick:         time.Hour,
	}, log)
	t.Cleanup(l.Shutdown)
	reg := packet.NewRegistry(log)
	RegisterAll(reg, &Deps{Lobby: l, Log: log})
	return &harness{t: t, reg: reg, lobby: l}
}

// session returns an unstarted session; its queued output is read directly.
func (h *harness) session(id uint64) *net.Session {
	server, client := gonet.Pipe()
	h.t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return net.NewSession(server, id, "pipe", net.Options{}, h.reg, zaptest.NewLogger(h.t))
}

func (h *harness) dispatch(s *net.Session, msg packet.Message) error {
	return h.reg.Dispatch(s, s.ID, s.State(), msg)
}

func drain(t *testing.T, s *net.Session) []packet.Message {
	t.Helper()
	var out []packet.Message
	for {
		select {
		case data := <-s.OutQueue:
			msg, err := packet.Decode(data)
			require.NoError(t, err)
			out = append(out, msg)
		default:
			return out
		}
	}
}

func errorsIn(msgs []packet.Message) []*packet.ErrorMessage {
	var out []*packet.ErrorMessage
	for _, m := range msgs {
		if e, ok := m.(*packet.ErrorMessage); ok {
			out = append(out, e)
		}
	}
	return out
}

func TestLoginMovesSessionToLobby(t *testing.T) {
	h := newHarness(t)
	s := h.session(1)

	require.NoError(t, h.dispatch(s, &packet.LoginMessage{Username: "ann"}))
	assert.Equal(t, packet.StateLoggedIn, s.State())
	got := drain(t, s)
	require.Len(t, got, 1)
	assert.True(t, got[0].(*packet.LoginResponseMessage).OK)

	// login is only accepted once per session
	err := h.dispatch(s, &packet.LoginMessage{Username: "ann"})
	assert.Error(t, err)
}

func TestCommandsAreGatedByState(t *testing.T) {
	h := newHarness(t)
	s := h.session(1)

	assert.Error(t, h.dispatch(s, &packet.StartGameMessage{Opponent: lobby.OpponentAI}))
	assert.Error(t, h.dispatch(s, &packet.UseMessage{Action: "End Turn"}))
	// Server-to-client commands have no handler and are ignored.
	assert.NoError(t, h.dispatch(s, &packet.WaitMessage{}))
	assert.Empty(t, drain(t, s))
}

func TestPlayAgainstAI(t *testing.T) {
	h := newHarness(t)
	s := h.session(1)
	require.NoError(t, h.dispatch(s, &packet.LoginMessage{Username: "ann"}))
	drain(t, s)

	require.NoError(t, h.dispatch(s, &packet.StartGameMessage{GameType: "vanilla", Opponent: lobby.OpponentAI}))
	assert.Equal(t, packet.StateInGame, s.State())
	got := drain(t, s)
	require.NotEmpty(t, got)
	assert.Equal(t, &packet.NewGameMessage{GameID: 1, PlayerIndex: 0}, got[0])

	var endTurn *packet.UseableMessage
	for _, m := range got {
		if u, ok := m.(*packet.UseableMessage); ok && u.Action == "End Turn" {
			endTurn = u
		}
	}
	require.NotNil(t, endTurn, "the first player is offered End Turn")

	// Attack needs a target; asking for one on a player action is rejected.
	require.NoError(t, h.dispatch(s, &packet.UseMessage{Action: "Attack", GameID: 1, ID: endTurn.ID}))
	errs := errorsIn(drain(t, s))
	require.Len(t, errs, 1)
	assert.Equal(t, "ACTION_NOT_FOUND", errs[0].Code)

	require.NoError(t, h.dispatch(s, &packet.UseMessage{Action: "End Turn", GameID: 7, ID: endTurn.ID}))
	errs = errorsIn(drain(t, s))
	require.Len(t, errs, 1)
	assert.Equal(t, codeNotInGame, errs[0].Code)

	require.NoError(t, h.dispatch(s, &packet.RequestTargetsMessage{Action: "End Turn", GameID: 1, ID: endTurn.ID}))
	got = drain(t, s)
	require.Len(t, got, 1)
	assert.Equal(t, &packet.TargetsMessage{Action: "End Turn", Entity: endTurn.ID, Targets: []int32{}}, got[0])

	require.NoError(t, h.dispatch(s, &packet.UseMessage{Action: "End Turn", GameID: 1, ID: endTurn.ID}))
	got = drain(t, s)
	assert.Empty(t, errorsIn(got))
	assert.Contains(t, got, packet.Message(&packet.ResetActionsMessage{}))

	// The AI holds the turn now.
	require.NoError(t, h.dispatch(s, &packet.UseMessage{Action: "End Turn", GameID: 1, ID: endTurn.ID}))
	errs = errorsIn(drain(t, s))
	require.Len(t, errs, 1)
	assert.Equal(t, "NOT_YOUR_TURN", errs[0].Code)
}

func TestStartGameWithUnknownRuleset(t *testing.T) {
	h := newHarness(t)
	s := h.session(1)
	require.NoError(t, h.dispatch(s, &packet.LoginMessage{Username: "ann"}))
	drain(t, s)

	require.NoError(t, h.dispatch(s, &packet.StartGameMessage{GameType: "chess", Opponent: lobby.OpponentAI}))
	errs := errorsIn(drain(t, s))
	require.Len(t, errs, 1)
	assert.Equal(t, codeStartFailed, errs[0].Code)
	assert.Equal(t, packet.StateLoggedIn, s.State())
}
