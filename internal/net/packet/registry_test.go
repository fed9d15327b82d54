package packet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDispatchGatesByState(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	var got []string
	reg.Register(CmdLogin, []SessionState{StateConnected}, func(_ context.Context, sess any, msg Message) {
		got = append(got, sess.(string)+":"+msg.(*LoginMessage).Username)
	})

	require.NoError(t, reg.Dispatch("s1", 1, StateConnected, &LoginMessage{Username: "ann"}))
	assert.Error(t, reg.Dispatch("s1", 1, StateInGame, &LoginMessage{Username: "ann"}))
	assert.Equal(t, []string{"s1:ann"}, got)
}

func TestDispatchIgnoresCommandsWithoutHandler(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	assert.NoError(t, reg.Dispatch(nil, 1, StateInGame, &UpdateMessage{}))
}

func TestDispatchRecoversPanics(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	reg.Register(CmdUse, []SessionState{StateInGame}, func(context.Context, any, Message) {
		panic("boom")
	})
	err := reg.Dispatch(nil, 1, StateInGame, &UseMessage{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRegisterUnknownCommandPanics(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	assert.Panics(t, func() {
		reg.Register("chat", []SessionState{StateInGame}, func(context.Context, any, Message) {})
	})
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "InGame", StateInGame.String())
	assert.Equal(t, "Unknown(9)", SessionState(9).String())
}
