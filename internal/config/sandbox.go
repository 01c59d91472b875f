package config

import (
	lua "github.com/yuin/gopher-lua"
)

const (
	luaCallStackSize = 256
	luaRegistrySize  = 8 * 1024
)

// blockedGlobals are removed before user code runs: os and io reach the
// host, the loaders pull in external code, and the metatable functions
// could unwrap the read-only platform table.
var blockedGlobals = []string{
	"os",
	"io",
	"debug",
	"require",
	"module",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"getmetatable",
	"setmetatable",
	"rawget",
	"rawset",
	"rawequal",
	"collectgarbage",
}

// sandboxLuaVM strips every global in blockedGlobals. string, table, math
// and the basic functions (type, tostring, pairs, ...) stay available.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a Lua state with bounded stacks and the sandbox
// applied.
func newSandboxedVM() *lua.LState {
	L := lua.NewState(lua.Options{
		CallStackSize: luaCallStackSize,
		RegistrySize:  luaRegistrySize,
	})
	sandboxLuaVM(L)
	return L
}
