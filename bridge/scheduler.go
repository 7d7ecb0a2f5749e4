package bridge

import (
	"context"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

type task struct {
	co     *lua.LState
	cancel context.CancelFunc
	fn     *lua.LFunction
}

func (t *task) release() {
	if t.cancel != nil {
		t.cancel()
	}
}

// scheduler resumes script coroutines once per maintenance tick.
type scheduler struct {
	L      *lua.LState
	logger *zap.Logger
	tasks  []*task
	closed bool
}

func newScheduler(L *lua.LState, logger *zap.Logger) *scheduler {
	return &scheduler{L: L, logger: logger}
}

// Spawn runs fn on a new coroutine until it yields, returns or fails. A
// yielded coroutine is kept for the next pump.
func (s *scheduler) Spawn(L *lua.LState, fn *lua.LFunction, args ...lua.LValue) error {
	if s.closed {
		return ErrClosed
	}
	co, cancel := L.NewThread()
	t := &task{co: co, cancel: cancel, fn: fn}

	state, err, _ := L.Resume(co, fn, args...)
	switch state {
	case lua.ResumeError:
		t.release()
		return err
	case lua.ResumeYield:
		s.tasks = append(s.tasks, t)
	default:
		t.release()
	}
	return nil
}

// pump resumes every suspended coroutine once. Coroutines spawned during the
// pump wait for the next one.
func (s *scheduler) pump() {
	pending := s.tasks
	s.tasks = nil

	var keep []*task
	for _, t := range pending {
		state, err, _ := s.L.Resume(t.co, t.fn)
		switch state {
		case lua.ResumeYield:
			keep = append(keep, t)
		case lua.ResumeError:
			s.logger.Error("coroutine failed", zap.Error(err))
			t.release()
		default:
			t.release()
		}
	}
	s.tasks = append(keep, s.tasks...)
}

func (s *scheduler) len() int {
	return len(s.tasks)
}

func (s *scheduler) close() {
	s.closed = true
	for _, t := range s.tasks {
		t.release()
	}
	s.tasks = nil
}
