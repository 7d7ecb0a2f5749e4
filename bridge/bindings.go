package bridge

import (
	"bytes"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const (
	keyStart            = "Start"
	keyUpdate           = "Update"
	keyLanguage         = "Language"
	keyHandleNetMessage = "HandleNetMessage"
)

// bindings holds the entry points resolved from the root table. It is
// written once by bootstrap.
type bindings struct {
	start            *lua.LFunction
	update           *lua.LFunction
	language         *lua.LFunction
	handleNetMessage *lua.LFunction
}

func (bs bindings) names() []string {
	var names []string
	for _, b := range []struct {
		key string
		fn  *lua.LFunction
	}{
		{keyStart, bs.start},
		{keyUpdate, bs.update},
		{keyLanguage, bs.language},
		{keyHandleNetMessage, bs.handleNetMessage},
	} {
		if b.fn != nil {
			names = append(names, b.key)
		}
	}
	return names
}

// Bound returns the names of the entry points the root script provided.
func (b *Bridge) Bound() []string {
	return b.bindings.names()
}

// bootstrap runs the root script and resolves its entry points. Every
// failure is logged and yields empty bindings.
func (b *Bridge) bootstrap() bindings {
	L := b.L
	src, ok := b.LoadModule(b.cfg.entry)
	if !ok {
		return bindings{}
	}

	fn, err := L.Load(bytes.NewReader(stripBOM(src)), b.cfg.entry)
	if err != nil {
		b.logger.Error("root script failed to compile", zap.String("entry", b.cfg.entry), zap.Error(err))
		return bindings{}
	}

	top := L.GetTop()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}); err != nil {
		b.logger.Error("root script failed", zap.String("entry", b.cfg.entry), zap.Error(err))
		return bindings{}
	}
	n := L.GetTop() - top
	var root *lua.LTable
	if n == 1 {
		root, _ = L.Get(-1).(*lua.LTable)
	}
	L.SetTop(top)
	if root == nil {
		b.logger.Warn("root script did not return a table",
			zap.String("entry", b.cfg.entry), zap.Int("results", n))
		return bindings{}
	}

	if loaded, ok := L.GetField(L.GetGlobal("package"), "loaded").(*lua.LTable); ok {
		loaded.RawSetString(b.cfg.entry, root)
	}
	return b.resolve(root)
}

// resolve reads the entry points from root. Lookups honour __index, so they
// run in protected mode; a failing lookup leaves that entry point unbound.
func (b *Bridge) resolve(root *lua.LTable) bindings {
	var bs bindings
	for _, slot := range []struct {
		key string
		fn  **lua.LFunction
	}{
		{keyStart, &bs.start},
		{keyUpdate, &bs.update},
		{keyLanguage, &bs.language},
		{keyHandleNetMessage, &bs.handleNetMessage},
	} {
		v, err := b.lookup(root, slot.key)
		if err != nil {
			b.logger.Error("entry point lookup failed", zap.String("binding", slot.key), zap.Error(err))
			continue
		}
		switch fn := v.(type) {
		case *lua.LFunction:
			if name, ok := b.exposed[fn]; ok {
				b.logger.Warn("entry point resolves to a host function",
					zap.String("binding", slot.key), zap.String("host_func", name))
				continue
			}
			*slot.fn = fn
		case *lua.LNilType:
		default:
			b.logger.Warn("entry point is not a function",
				zap.String("binding", slot.key), zap.String("type", v.Type().String()))
		}
	}
	return bs
}

func (b *Bridge) lookup(t *lua.LTable, key string) (lua.LValue, error) {
	L := b.L
	get := L.NewFunction(func(L *lua.LState) int {
		L.Push(L.GetField(t, key))
		return 1
	})
	if err := L.CallByParam(lua.P{Fn: get, NRet: 1, Protect: true}); err != nil {
		return lua.LNil, err
	}
	v := L.Get(-1)
	L.Pop(1)
	return v, nil
}
