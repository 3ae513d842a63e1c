package action

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// DefaultLuaTimeout bounds a single script run.
const DefaultLuaTimeout = 5 * time.Second

// Lua runs a compiled script in a fresh interpreter on every Run. Scripts see
// the base, table, string and math libraries plus a "wmkeys" table:
//
//	wmkeys.log(msg)    logs msg at info level
//	wmkeys.spawn(cmd)  starts cmd like a spawn binding and returns its pid
type Lua struct {
	Name    string
	Timeout time.Duration

	// Start is used by wmkeys.spawn; defaults to procutil.StartDetached.
	Start StartFunc

	proto *lua.FunctionProto
}

// NewLua compiles source. name labels the chunk in error messages.
func NewLua(name, source string) (*Lua, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("lua %q: parse: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("lua %q: compile: %w", name, err)
	}
	return &Lua{Name: name, Timeout: DefaultLuaTimeout, proto: proto}, nil
}

// Run executes the script and returns any Lua error.
func (a *Lua) Run() error {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultLuaTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	openSafeLibraries(L)
	L.SetGlobal("wmkeys", a.module(L))

	L.Push(L.NewFunctionFromProto(a.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return fmt.Errorf("lua %q: %w", a.Name, err)
	}
	return nil
}

func (a *Lua) String() string { return "lua: " + a.Name }

// openSafeLibraries leaves out io, os, debug and package.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func (a *Lua) module(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		slog.Info("[INFO-ACTION] lua log", "script", a.Name, "message", L.CheckString(1))
		return 0
	}))
	L.SetField(mod, "spawn", L.NewFunction(func(L *lua.LState) int {
		s := &Spawn{Command: L.CheckString(1), Start: a.Start}
		pid, err := s.run()
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(lua.LNumber(pid))
		return 1
	}))
	return mod
}
