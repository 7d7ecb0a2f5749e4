package network

import (
	"context"
	"sync"
)

const pipeBuffer = 64

type pipeEnd struct {
	in     chan []byte
	peer   *pipeEnd
	closed chan struct{}
	once   sync.Once
}

func newPipeEnd() *pipeEnd {
	return &pipeEnd{
		in:     make(chan []byte, pipeBuffer),
		closed: make(chan struct{}),
	}
}

// Pipe returns two in-process transports connected to each other. A frame
// sent on one end is read by the other.
func Pipe() (Transport, Transport) {
	a, b := newPipeEnd(), newPipeEnd()
	a.peer, b.peer = b, a
	return a, b
}

// Loopback returns a transport that reads back every frame it sends.
func Loopback() Transport {
	e := newPipeEnd()
	e.peer = e
	return e
}

func (e *pipeEnd) Send(frame []byte) error {
	select {
	case <-e.closed:
		return ErrClosed
	case <-e.peer.closed:
		return ErrClosed
	default:
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)
	select {
	case e.peer.in <- buf:
		return nil
	default:
		return ErrQueueFull
	}
}

func (e *pipeEnd) Run(ctx context.Context, deliver func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closed:
			return nil
		case f := <-e.in:
			deliver(f)
		}
	}
}

func (e *pipeEnd) Close() error {
	e.once.Do(func() { close(e.closed) })
	return nil
}
