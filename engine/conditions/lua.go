package conditions

import (
	"context"
	"fmt"
	"os"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/storyscript/types"
)

// answerFunc is the global a simulation script must define. It receives a
// table {text, kind, list, id, key, expected} and returns a boolean.
const answerFunc = "answer"

// LuaPrompter answers prompts by calling a sandboxed Lua script. It lets a
// simulation run play through a chapter unattended.
type LuaPrompter struct {
	mu sync.Mutex // an LState is single-threaded
	L  *lua.LState
	fn *lua.LFunction
}

// LoadLuaPrompter reads a simulation script from path.
func LoadLuaPrompter(path string) (*LuaPrompter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading simulation script %s: %w", path, err)
	}
	p, err := NewLuaPrompter(string(src))
	if err != nil {
		return nil, fmt.Errorf("loading simulation script %s: %w", path, err)
	}
	return p, nil
}

// NewLuaPrompter compiles a simulation script. The script runs once at load
// time and must define a global function named answer.
func NewLuaPrompter(src string) (*LuaPrompter, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	sandbox(L)

	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("executing script: %w", err)
	}
	fn, ok := L.GetGlobal(answerFunc).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("script does not define function %s", answerFunc)
	}
	return &LuaPrompter{L: L, fn: fn}, nil
}

// Ask implements Prompter. The script is interrupted when ctx is done.
func (p *LuaPrompter) Ask(ctx context.Context, q Question) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	err := p.L.CallByParam(lua.P{Fn: p.fn, NRet: 1, Protect: true}, questionTable(p.L, q))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("simulation script: %w", err)
	}
	ret := p.L.Get(-1)
	p.L.Pop(1)

	b, ok := ret.(lua.LBool)
	if !ok {
		return false, fmt.Errorf("simulation script: %s returned %s, want boolean", answerFunc, ret.Type())
	}
	return bool(b), nil
}

// Close releases the Lua state.
func (p *LuaPrompter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.L.Close()
}

func questionTable(L *lua.LState, q Question) *lua.LTable {
	tbl := L.NewTable()
	c := q.Condition
	tbl.RawSetString("text", lua.LString(q.Text))
	tbl.RawSetString("kind", lua.LString(c.Kind.String()))
	tbl.RawSetString("expected", lua.LBool(c.Expected))
	switch {
	case c.Kind == types.UserState && len(c.Params) == 2:
		tbl.RawSetString("list", lua.LString(c.Params[0]))
		tbl.RawSetString("id", lua.LString(c.Params[1]))
	case len(c.Params) == 1:
		tbl.RawSetString("key", lua.LString(c.Params[0]))
	}
	return tbl
}

// openSafeLibs opens only the libraries a script needs to compute answers.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes globals that reach outside the script.
func sandbox(L *lua.LState) {
	for _, name := range []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "require",
	} {
		L.SetGlobal(name, lua.LNil)
	}
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
	}
}
