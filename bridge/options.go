package bridge

import (
	"time"

	"github.com/caffeineduck/hotlua/builtin"
	"github.com/caffeineduck/hotlua/hostfunc"
	"go.uber.org/zap"
)

const (
	DefaultEntry        = "Game"
	DefaultScriptRoot   = "Lua"
	DefaultTickInterval = time.Second
)

// Option configures a Bridge.
type Option func(*config)

type config struct {
	logger        *zap.Logger
	entry         string
	root          string
	tickInterval  time.Duration
	collectOnTick bool
	builtins      *builtin.Registry
	hostFuncs     map[string]hostfunc.Func
	kv            *hostfunc.KVStore
	callStackSize int
	registrySize  int
}

func defaultConfig() config {
	return config{
		logger:        zap.NewNop(),
		entry:         DefaultEntry,
		root:          DefaultScriptRoot,
		tickInterval:  DefaultTickInterval,
		collectOnTick: true,
		hostFuncs:     make(map[string]hostfunc.Func),
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEntry sets the root module name.
func WithEntry(name string) Option {
	return func(c *config) {
		if name != "" {
			c.entry = name
		}
	}
}

// WithScriptRoot sets the resource directory module names resolve under.
func WithScriptRoot(root string) Option {
	return func(c *config) {
		c.root = root
	}
}

// WithTickInterval sets how often the maintenance tick runs.
func WithTickInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.tickInterval = d
		}
	}
}

// WithCollectOnTick controls whether the maintenance tick runs a GC cycle.
func WithCollectOnTick(on bool) Option {
	return func(c *config) {
		c.collectOnTick = on
	}
}

// WithBuiltins replaces the default built-in set.
func WithBuiltins(r *builtin.Registry) Option {
	return func(c *config) {
		c.builtins = r
	}
}

// WithHostFunc exposes an extra global function to scripts.
func WithHostFunc(name string, fn hostfunc.Func) Option {
	return func(c *config) {
		c.hostFuncs[name] = fn
	}
}

// WithKVStore exposes kv to scripts through the Store* functions.
func WithKVStore(kv *hostfunc.KVStore) Option {
	return func(c *config) {
		c.kv = kv
	}
}

// WithCallStackSize sets the interpreter call stack depth.
func WithCallStackSize(n int) Option {
	return func(c *config) {
		c.callStackSize = n
	}
}

// WithRegistrySize sets the interpreter registry size.
func WithRegistrySize(n int) Option {
	return func(c *config) {
		c.registrySize = n
	}
}
