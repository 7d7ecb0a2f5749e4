package hostfunc

import (
	"math"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

type Func = lua.LGFunction

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	r.funcs[name] = fn
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	return fn, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expose sets every registered function as a global in L.
func (r *Registry) Expose(L *lua.LState) {
	for _, name := range r.List() {
		fn, _ := r.Get(name)
		L.SetGlobal(name, L.NewFunction(fn))
	}
}

// Sender hands an outbound hotfix message to the network layer.
type Sender interface {
	SendHotfixMessage(msgID int32, body []byte) error
}

// NewSend returns SendHotfixMessage(id, body) -> true | false, err.
func NewSend(s Sender) Func {
	return func(L *lua.LState) int {
		id := L.CheckInt64(1)
		body := L.OptString(2, "")
		if id < math.MinInt32 || id > math.MaxInt32 {
			L.Push(lua.LFalse)
			L.Push(lua.LString("message id out of range"))
			return 2
		}
		if err := s.SendHotfixMessage(int32(id), []byte(body)); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}
}

// Translator looks up a localized string.
type Translator interface {
	Language(key string) (string, bool)
}

// NewLanguage returns Language(key) -> string | nil.
func NewLanguage(tr Translator) Func {
	return func(L *lua.LState) int {
		s, ok := tr.Language(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(s))
		return 1
	}
}

// Spawner runs fn as a coroutine of L up to its first yield.
type Spawner interface {
	Spawn(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) error
}

// NewStartCoroutine returns StartCoroutine(fn, ...) -> true | false, err.
func NewStartCoroutine(sp Spawner) Func {
	return func(L *lua.LState) int {
		fn := L.CheckFunction(1)
		args := make([]lua.LValue, 0, L.GetTop()-1)
		for i := 2; i <= L.GetTop(); i++ {
			args = append(args, L.Get(i))
		}
		if err := sp.Spawn(L, fn, args...); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}
}
