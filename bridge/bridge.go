package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/caffeineduck/hotlua/builtin"
	"github.com/caffeineduck/hotlua/host"
	"github.com/caffeineduck/hotlua/hostfunc"
	"github.com/caffeineduck/hotlua/network"
	"github.com/caffeineduck/hotlua/resource"
	"github.com/caffeineduck/hotlua/timer"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

var (
	ErrAlreadyStarted = errors.New("bridge already started")
	ErrNotStarted     = errors.New("bridge not started")
	ErrClosed         = errors.New("bridge closed")
	ErrNoNetwork      = errors.New("bridge has no network")
)

// Network is the part of the network layer the bridge uses.
type Network interface {
	SubscribeHotfix(fn func(network.Package))
	SendMessage(p network.Package) error
}

// Bridge owns one interpreter and the entry points its root script exposes.
type Bridge struct {
	cfg       config
	logger    *zap.Logger
	resources resource.Loader
	net       Network

	L        *lua.LState
	bindings bindings
	tick     *timer.Repeat
	sched    *scheduler
	exposed  map[*lua.LFunction]string

	started bool
	closed  bool
}

var _ host.Module = (*Bridge)(nil)

// New creates a Bridge that reads scripts from resources. net may be nil,
// in which case sending fails with ErrNoNetwork.
func New(resources resource.Loader, net Network, opts ...Option) *Bridge {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.builtins == nil {
		cfg.builtins = builtin.Default()
	}
	return &Bridge{
		cfg:       cfg,
		logger:    cfg.logger,
		resources: resources,
		net:       net,
		tick:      timer.NewRepeat(0, cfg.tickInterval),
	}
}

// Start creates the interpreter, installs the loader, built-ins and host
// functions, runs the root script and calls its Start entry point. A
// built-in failure is returned and leaves the bridge unstarted; script
// failures are logged.
func (b *Bridge) Start() error {
	if b.closed {
		return ErrClosed
	}
	if b.started {
		return ErrAlreadyStarted
	}

	L := lua.NewState(lua.Options{
		CallStackSize: b.cfg.callStackSize,
		RegistrySize:  b.cfg.registrySize,
	})
	if err := b.installLoader(L); err != nil {
		L.Close()
		return err
	}
	if err := b.cfg.builtins.Install(L); err != nil {
		L.Close()
		return fmt.Errorf("install builtins: %w", err)
	}

	b.L = L
	b.sched = newScheduler(L, b.logger)
	b.exposeHostFuncs()
	b.started = true

	b.bindings = b.bootstrap()
	b.logger.Info("lua started",
		zap.String("entry", b.cfg.entry),
		zap.Strings("bindings", b.bindings.names()))

	if b.bindings.start != nil {
		b.call(keyStart, b.bindings.start, 0)
	}
	if b.net != nil {
		b.net.SubscribeHotfix(b.OnNetworkMessage)
	}
	return nil
}

func (b *Bridge) exposeHostFuncs() {
	r := hostfunc.NewRegistry()
	r.Register("SendHotfixMessage", hostfunc.NewSend(b))
	r.Register("Language", hostfunc.NewLanguage(b))
	r.Register("StartCoroutine", hostfunc.NewStartCoroutine(b.sched))
	if b.cfg.kv != nil {
		b.cfg.kv.Register(r)
	}
	for name, fn := range b.cfg.hostFuncs {
		r.Register(name, fn)
	}
	r.Expose(b.L)

	b.exposed = make(map[*lua.LFunction]string)
	for _, name := range r.List() {
		if fn, ok := b.L.GetGlobal(name).(*lua.LFunction); ok {
			b.exposed[fn] = name
		}
	}
}

func (b *Bridge) running() bool {
	return b.started && !b.closed
}

// Update calls the Update entry point, then advances the tick timer by dt
// and runs the maintenance tick when it fires.
func (b *Bridge) Update(dt time.Duration) {
	if !b.running() {
		return
	}
	if b.bindings.update != nil {
		b.call(keyUpdate, b.bindings.update, 0)
	}
	if b.tick.Update(dt) {
		b.Tick()
	}
}

// Tick resumes suspended coroutines once and, if enabled, runs a GC cycle.
func (b *Bridge) Tick() {
	if !b.running() {
		return
	}
	b.sched.pump()
	if b.cfg.collectOnTick {
		runtime.GC()
	}
}

// MemoryKB reports the live Go heap of the whole process in KiB. The
// interpreter allocates on that heap and keeps no separate counter.
func (b *Bridge) MemoryKB() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc / 1024
}

// Diagnostics returns the one-line memory report shown in the console. The
// figure is MemoryKB, which covers the whole process rather than the
// interpreter alone, so it stays well above zero even when no script loaded.
func (b *Bridge) Diagnostics() string {
	return fmt.Sprintf("[LuaManager] Lua memory : %dKb", b.MemoryKB())
}

// Coroutines returns the number of suspended coroutines.
func (b *Bridge) Coroutines() int {
	if b.sched == nil {
		return 0
	}
	return b.sched.len()
}

// Language calls the Language entry point. It reports false when the entry
// point is missing, fails, or returns something other than a string.
func (b *Bridge) Language(key string) (string, bool) {
	if !b.running() || b.bindings.language == nil {
		return "", false
	}
	ret, ok := b.call(keyLanguage, b.bindings.language, 1, lua.LString(key))
	if !ok {
		return "", false
	}
	switch v := ret[0].(type) {
	case lua.LString:
		return string(v), true
	case lua.LNumber:
		return v.String(), true
	}
	return "", false
}

// SendHotfixMessage hands a hotfix package to the network once. There is no
// retry.
func (b *Bridge) SendHotfixMessage(msgID int32, body []byte) error {
	if b.net == nil {
		return ErrNoNetwork
	}
	return b.net.SendMessage(network.Package{
		IsHotfixPackage: true,
		MsgID:           msgID,
		BodyBytes:       body,
	})
}

// OnNetworkMessage passes an inbound hotfix package to HandleNetMessage.
func (b *Bridge) OnNetworkMessage(p network.Package) {
	if !b.running() {
		return
	}
	if b.bindings.handleNetMessage == nil {
		b.logger.Debug("no HandleNetMessage bound, dropping package", zap.Int32("msg_id", p.MsgID))
		return
	}
	b.call(keyHandleNetMessage, b.bindings.handleNetMessage, 0,
		lua.LNumber(p.MsgID), lua.LString(p.BodyBytes))
}

// Eval runs a chunk and returns its results as strings. Expressions are
// tried first so "1 + 1" yields "2".
func (b *Bridge) Eval(chunk string) ([]string, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if !b.started {
		return nil, ErrNotStarted
	}

	L := b.L
	fn, err := L.Load(strings.NewReader("return "+chunk), "console")
	if err != nil {
		fn, err = L.Load(bytes.NewReader(stripBOM([]byte(chunk))), "console")
		if err != nil {
			return nil, err
		}
	}

	top := L.GetTop()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: lua.MultRet, Protect: true}); err != nil {
		return nil, err
	}
	n := L.GetTop() - top
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = L.ToStringMeta(L.Get(top + 1 + i)).String()
	}
	L.SetTop(top)
	return out, nil
}

// Close stops scheduled coroutines and closes the interpreter. Later calls
// do nothing.
func (b *Bridge) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.sched != nil {
		b.sched.close()
	}
	if b.L != nil {
		b.L.Close()
	}
	b.bindings = bindings{}
	b.logger.Info("lua closed")
	return nil
}

// call invokes fn in protected mode and returns exactly nret results.
// Script errors are logged and reported as false.
func (b *Bridge) call(name string, fn *lua.LFunction, nret int, args ...lua.LValue) ([]lua.LValue, bool) {
	L := b.L
	if err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		b.logger.Error("lua call failed", zap.String("binding", name), zap.Error(err))
		return nil, false
	}
	ret := make([]lua.LValue, nret)
	for i := nret - 1; i >= 0; i-- {
		ret[i] = L.Get(-1)
		L.Pop(1)
	}
	return ret, true
}

func (b *Bridge) OnCreate(param any) error {
	if b.closed {
		return ErrClosed
	}
	return nil
}

func (b *Bridge) OnStart() error { return b.Start() }

func (b *Bridge) OnUpdate(dt time.Duration) { b.Update(dt) }

func (b *Bridge) OnGUI(gui host.GUI) {
	if b.running() {
		gui.Label(b.Diagnostics())
	}
}

func (b *Bridge) OnDestroy() { b.Close() }
