package builtin

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

var ErrDuplicate = errors.New("builtin already registered")

// OpenFunc builds a module value inside L.
type OpenFunc func(L *lua.LState) (lua.LValue, error)

// Builtin is a named module factory.
type Builtin struct {
	Name string
	Open OpenFunc
}

// Registry is an ordered set of built-ins.
type Registry struct {
	entries []Builtin
	index   map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Default returns a registry holding rapidjson, lpeg and pb, in that order.
func Default() *Registry {
	r := NewRegistry()
	r.Register("rapidjson", OpenJSON)
	r.Register("lpeg", OpenLPeg)
	r.Register("pb", OpenPB)
	return r
}

// Register appends a built-in. Names must be unique.
func (r *Registry) Register(name string, open OpenFunc) error {
	if name == "" || open == nil {
		return fmt.Errorf("builtin: name and factory required")
	}
	if _, ok := r.index[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Builtin{Name: name, Open: open})
	return nil
}

// List returns the registered names in installation order.
func (r *Registry) List() []string {
	names := make([]string, len(r.entries))
	for i, b := range r.entries {
		names[i] = b.Name
	}
	return names
}

// Install opens every built-in in order and makes it requirable. The first
// failure aborts installation.
func (r *Registry) Install(L *lua.LState) error {
	pkg, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return errors.New("builtin: package library not open")
	}
	loaded, ok := pkg.RawGetString("loaded").(*lua.LTable)
	if !ok {
		return errors.New("builtin: package.loaded missing")
	}

	for _, b := range r.entries {
		mod, err := open(L, b)
		if err != nil {
			return fmt.Errorf("builtin %s: %w", b.Name, err)
		}
		loaded.RawSetString(b.Name, mod)
		L.PreloadModule(b.Name, func(L *lua.LState) int {
			L.Push(mod)
			return 1
		})
	}
	return nil
}

// open runs the factory inside a protected call so a raised Lua error is
// reported like any other factory error.
func open(L *lua.LState, b Builtin) (lua.LValue, error) {
	var mod lua.LValue
	var openErr error
	fn := L.NewFunction(func(L *lua.LState) int {
		mod, openErr = b.Open(L)
		return 0
	})
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		return nil, err
	}
	if openErr != nil {
		return nil, openErr
	}
	if mod == nil || mod == lua.LNil {
		return nil, errors.New("factory returned no module")
	}
	return mod, nil
}
