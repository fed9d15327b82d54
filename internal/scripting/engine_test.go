package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/data"
	"github.com/cardshifter/server/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var sample = []game.Choice{
	{Ref: game.ActionRef{Owner: 2, Name: "End Turn"}},
	{Ref: game.ActionRef{Owner: 10, Name: "Play"}},
	{Ref: game.ActionRef{Owner: 11, Name: "Attack"}, RequiresTarget: true, Targets: []ecs.EntityID{15, 3}},
}

func TestDefaultScriptPrefersPlayerTargets(t *testing.T) {
	e, err := NewEngine("", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	mv, ok := e.Choose(2, sample)
	require.True(t, ok)
	assert.Equal(t, game.Move{Ref: sample[2].Ref, Targets: []ecs.EntityID{3}}, mv)

	mv, ok = e.Choose(2, sample[:2])
	require.True(t, ok)
	assert.Equal(t, sample[1].Ref, mv.Ref)

	mv, ok = e.Choose(2, sample[:1])
	require.True(t, ok)
	assert.Equal(t, sample[0].Ref, mv.Ref)

	_, ok = e.Choose(2, nil)
	assert.False(t, ok)
}

func TestChooseSeesContext(t *testing.T) {
	e, err := NewEngineFromSource(`
function choose_action(ctx)
  if ctx.player ~= 2 then return nil end
  local last = #ctx.choices
  local c = ctx.choices[last]
  return { choice = last, target = c.targets[1] }
end`, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	mv, ok := e.Choose(2, sample)
	require.True(t, ok)
	assert.Equal(t, []ecs.EntityID{15}, mv.Targets)

	_, ok = e.Choose(3, sample)
	assert.False(t, ok)
}

func TestChooseRejectsBadAnswers(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing function", `x = 1`},
		{"runtime error", `function choose_action(ctx) error("boom") end`},
		{"out of range", `function choose_action(ctx) return { choice = 9 } end`},
		{"missing target", `function choose_action(ctx) return { choice = 3 } end`},
		{"not a table", `function choose_action(ctx) return 1 end`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngineFromSource(tt.src, zaptest.NewLogger(t))
			require.NoError(t, err)
			defer e.Close()
			_, ok := e.Choose(2, sample)
			assert.False(t, ok)
		})
	}
}

func TestNewEngineLoadsFileAndDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pass.lua")
	require.NoError(t, os.WriteFile(path, []byte(`function choose_action(ctx) return { choice = 1 } end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0o644))

	for _, p := range []string{path, dir} {
		e, err := NewEngine(p, zaptest.NewLogger(t))
		require.NoError(t, err)
		mv, ok := e.Choose(2, sample)
		assert.True(t, ok)
		assert.Equal(t, sample[0].Ref, mv.Ref)
		e.Close()
	}

	_, err := NewEngine(filepath.Join(dir, "absent.lua"), zaptest.NewLogger(t))
	assert.Error(t, err)
	_, err = NewEngineFromSource("function (", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestDefaultScriptFinishesVanillaGame(t *testing.T) {
	e, err := NewEngine("", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer e.Close()

	table, err := data.LoadRulesetTable("")
	require.NoError(t, err)
	rs := table.Get("vanilla")
	require.NotNil(t, rs)
	g, err := game.New(game.Config{
		ID:      1,
		Ruleset: rs,
		Seats:   []game.SeatSpec{{Name: "a", Automated: true}, {Name: "b", Automated: true}},
		Seed:    42,
		Log:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, g.Start())

	for i := 0; i < 1000 && g.State() == game.StateRunning; i++ {
		moved, err := g.Automate(e)
		require.NoError(t, err)
		require.True(t, moved)
	}
	assert.Equal(t, game.StateEnded, g.State())
	assert.False(t, g.Winner().IsZero())
}
