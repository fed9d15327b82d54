package scripting

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cardshifter/server/internal/core/ecs"
	"github.com/cardshifter/server/internal/game"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

//go:embed default.lua
var defaultScript string

// Engine wraps a single gopher-lua VM. The VM is not goroutine safe, so every
// call into it holds mu; schedulers of different games share one Engine.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads path, which is a .lua file or a
// directory of them. An empty path loads the built-in policy script.
func NewEngine(path string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if path == "" {
		return e, e.load(defaultScript)
	}
	info, err := os.Stat(path)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	if info.IsDir() {
		err = e.loadDir(path)
	} else {
		err = e.vm.DoFile(path)
	}
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("load scripts %s: %w", path, err)
	}
	return e, nil
}

// NewEngineFromSource creates an engine running src.
func NewEngineFromSource(src string, log *zap.Logger) (*Engine, error) {
	e := newEngine(log)
	if err := e.load(src); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func newEngine(log *zap.Logger) *Engine {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	return &Engine{vm: vm, log: log}
}

func (e *Engine) load(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	return nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Choose calls Lua choose_action(ctx) and converts its answer into a move.
//
// ctx.player is the acting player id; ctx.choices is an array of
// {action, owner, requires_target, targets}. The script returns nil to pass,
// or {choice = <1-based index>, target = <entity id>}.
func (e *Engine) Choose(player ecs.EntityID, choices []game.Choice) (game.Move, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("choose_action")
	if fn == lua.LNil {
		e.log.Error("lua function choose_action not found")
		return game.Move{}, false
	}

	// Build context table
	t := e.vm.NewTable()
	t.RawSetString("player", lua.LNumber(player))
	list := e.vm.NewTable()
	for i, c := range choices {
		row := e.vm.NewTable()
		row.RawSetString("action", lua.LString(c.Ref.Name))
		row.RawSetString("owner", lua.LNumber(c.Ref.Owner))
		row.RawSetString("requires_target", lua.LBool(c.RequiresTarget))
		targets := e.vm.NewTable()
		for j, id := range c.Targets {
			targets.RawSetInt(j+1, lua.LNumber(id))
		}
		row.RawSetString("targets", targets)
		list.RawSetInt(i+1, row)
	}
	t.RawSetString("choices", list)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua choose_action error", zap.Error(err), zap.Stringer("player", player))
		return game.Move{}, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return game.Move{}, false
	}
	idx := lInt(rt, "choice")
	if idx < 1 || idx > len(choices) {
		e.log.Warn("lua choose_action returned an invalid choice", zap.Int("choice", idx), zap.Int("choices", len(choices)))
		return game.Move{}, false
	}
	c := choices[idx-1]
	mv := game.Move{Ref: c.Ref}
	if c.RequiresTarget {
		target := ecs.EntityID(lInt(rt, "target"))
		if target.IsZero() {
			return game.Move{}, false
		}
		mv.Targets = []ecs.EntityID{target}
	}
	return mv, true
}

// --- Lua helpers ---

// lInt reads an integer field from a Lua table.
func lInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
