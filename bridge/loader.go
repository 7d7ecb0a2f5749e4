package bridge

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/caffeineduck/hotlua/resource"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(src []byte) []byte {
	return bytes.TrimPrefix(src, utf8BOM)
}

// LoadModule maps a module name to <root>/<name>.lua and loads it. Missing
// or unreadable resources are logged and reported as not found.
func (b *Bridge) LoadModule(name string) ([]byte, bool) {
	p, ok := resource.ModulePath(b.cfg.root, name)
	if !ok {
		b.logger.Warn("module name escapes script root", zap.String("module", name), zap.String("resource", p))
		return nil, false
	}
	src, err := b.resources.SyncLoad(p)
	if err != nil {
		fields := []zap.Field{zap.String("resource", p)}
		if !errors.Is(err, resource.ErrNotFound) {
			fields = append(fields, zap.Error(err))
		}
		b.logger.Warn("failed to load lua file", fields...)
		return nil, false
	}
	return src, true
}

// installLoader puts the resource loader right after the preload searcher so
// built-ins still win.
func (b *Bridge) installLoader(L *lua.LState) error {
	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return errors.New("package library not open")
	}
	loaders, ok := pkg.RawGetString("loaders").(*lua.LTable)
	if !ok {
		return errors.New("package.loaders missing")
	}
	loaders.Insert(2, L.NewFunction(b.luaLoader))
	return nil
}

// luaLoader follows the searcher protocol: a chunk when found, a message
// string when not. A module that exists but fails to compile raises.
func (b *Bridge) luaLoader(L *lua.LState) int {
	name := L.CheckString(1)
	src, ok := b.LoadModule(name)
	p, _ := resource.ModulePath(b.cfg.root, name)
	if !ok {
		L.Push(lua.LString(fmt.Sprintf("\n\tno resource '%s'", p)))
		return 1
	}
	fn, err := L.Load(bytes.NewReader(stripBOM(src)), name)
	if err != nil {
		L.RaiseError("error loading module '%s' from resource '%s':\n\t%s", name, p, err.Error())
	}
	L.Push(fn)
	return 1
}
