package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

const DefaultFPS = 60

var ErrStarted = errors.New("runner already started")

type Option func(*Runner)

// WithFPS sets the frame rate used by Run.
func WithFPS(fps int) Option {
	return func(r *Runner) {
		if fps > 0 {
			r.fps = fps
		}
	}
}

// WithGUIInterval sets how often modules are asked for diagnostics. Zero
// disables the GUI pass.
func WithGUIInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.guiInterval = d
	}
}

// WithGUIOutput writes the console after every GUI pass.
func WithGUIOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.guiOut = w
	}
}

// WithPumper adds an inbox pumped at the start of each frame.
func WithPumper(p Pumper) Option {
	return func(r *Runner) {
		if p != nil {
			r.pumpers = append(r.pumpers, p)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

type entry struct {
	name   string
	module Module
	param  any
}

// Runner owns the frame loop. All methods must be called from one goroutine.
type Runner struct {
	modules     []entry
	pumpers     []Pumper
	console     *Console
	fps         int
	guiInterval time.Duration
	guiElapsed  time.Duration
	guiOut      io.Writer
	logger      *zap.Logger
	frames      int
	started     bool
	stopped     bool
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		console: NewConsole(DefaultConsoleLines),
		fps:     DefaultFPS,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds m. Modules registered after Start are ignored.
func (r *Runner) Register(name string, m Module, param any) {
	if r.started {
		r.logger.Warn("module registered after start", zap.String("module", name))
		return
	}
	r.modules = append(r.modules, entry{name: name, module: m, param: param})
}

// Start creates every module, then starts every module.
func (r *Runner) Start() error {
	if r.started {
		return ErrStarted
	}
	r.started = true

	for _, e := range r.modules {
		if err := e.module.OnCreate(e.param); err != nil {
			return fmt.Errorf("create %s: %w", e.name, err)
		}
		r.logger.Debug("module created", zap.String("module", e.name))
	}
	for _, e := range r.modules {
		if err := e.module.OnStart(); err != nil {
			return fmt.Errorf("start %s: %w", e.name, err)
		}
		r.logger.Debug("module started", zap.String("module", e.name))
	}
	return nil
}

// Step runs one frame.
func (r *Runner) Step(dt time.Duration) {
	if !r.started || r.stopped {
		return
	}
	for _, p := range r.pumpers {
		p.Pump()
	}
	for _, e := range r.modules {
		e.module.OnUpdate(dt)
	}
	r.frames++

	if r.guiInterval <= 0 {
		return
	}
	r.guiElapsed += dt
	if r.guiElapsed < r.guiInterval {
		return
	}
	r.guiElapsed = 0
	r.GUI()
}

// GUI runs a diagnostics pass and returns the collected lines.
func (r *Runner) GUI() []string {
	r.console.Reset()
	for _, e := range r.modules {
		e.module.OnGUI(r.console)
	}
	if r.guiOut != nil {
		if _, err := r.console.WriteTo(r.guiOut); err != nil {
			r.logger.Warn("gui output failed", zap.Error(err))
		}
	}
	return r.console.Lines()
}

// Frames returns the number of frames stepped so far.
func (r *Runner) Frames() int {
	return r.frames
}

// Run steps frames at the configured rate until ctx is done or maxFrames
// frames have run. maxFrames <= 0 means no limit.
func (r *Runner) Run(ctx context.Context, maxFrames int) error {
	if !r.started {
		return errors.New("runner not started")
	}
	ticker := time.NewTicker(time.Second / time.Duration(r.fps))
	defer ticker.Stop()

	last := time.Now()
	for n := 0; maxFrames <= 0 || n < maxFrames; n++ {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.Step(now.Sub(last))
			last = now
		}
	}
	return nil
}

// Stop destroys modules in reverse registration order. Later calls do nothing.
func (r *Runner) Stop() {
	if r.stopped {
		return
	}
	r.stopped = true
	for i := len(r.modules) - 1; i >= 0; i-- {
		r.modules[i].module.OnDestroy()
		r.logger.Debug("module destroyed", zap.String("module", r.modules[i].name))
	}
}
