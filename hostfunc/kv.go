package hostfunc

import (
	"errors"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

const DefaultMaxValueSize = 64 * 1024

var ErrValueTooLarge = errors.New("value too large")

// KVStore is a string store scripts reach through StoreGet, StoreSet,
// StoreDelete and StoreKeys. The host can read and seed it directly.
type KVStore struct {
	data    map[string]string
	mu      sync.RWMutex
	maxSize int
}

func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]string), maxSize: DefaultMaxValueSize}
}

func (s *KVStore) Get(key string) (string, bool) {
	s.mu.RLock()
	val, ok := s.data[key]
	s.mu.RUnlock()
	return val, ok
}

func (s *KVStore) Set(key, val string) error {
	if len(val) > s.maxSize {
		return ErrValueTooLarge
	}
	s.mu.Lock()
	s.data[key] = val
	s.mu.Unlock()
	return nil
}

func (s *KVStore) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

func (s *KVStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Register adds the Store* functions to r.
func (s *KVStore) Register(r *Registry) {
	r.Register("StoreGet", s.luaGet)
	r.Register("StoreSet", s.luaSet)
	r.Register("StoreDelete", s.luaDelete)
	r.Register("StoreKeys", s.luaKeys)
}

func (s *KVStore) luaGet(L *lua.LState) int {
	val, ok := s.Get(L.CheckString(1))
	if !ok {
		L.Push(L.Get(2))
		return 1
	}
	L.Push(lua.LString(val))
	return 1
}

func (s *KVStore) luaSet(L *lua.LState) int {
	if err := s.Set(L.CheckString(1), L.CheckString(2)); err != nil {
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

func (s *KVStore) luaDelete(L *lua.LState) int {
	s.Delete(L.CheckString(1))
	return 0
}

func (s *KVStore) luaKeys(L *lua.LState) int {
	keys := s.Keys()
	t := L.CreateTable(len(keys), 0)
	for _, k := range keys {
		t.Append(lua.LString(k))
	}
	L.Push(t)
	return 1
}
