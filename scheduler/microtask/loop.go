// Package microtask provides a single goroutine event loop with a
// microtask queue, the resolved-promise boundary the scheduler flushes
// behind.
package microtask

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	ErrLoopAlreadyRunning = errors.New("microtask: loop is already running")
	ErrLoopTerminated     = errors.New("microtask: loop has been terminated")
)

type state int32

const (
	stateAwake state = iota
	stateRunning
	stateTerminated
)

// drainWarnThreshold is the queue length at which Drain warns about a
// probable microtask storm.
const drainWarnThreshold = 10000

// Loop owns two queues. Tasks arrive through Submit from any goroutine;
// microtasks are queued from the loop goroutine itself and always run to
// completion before the next task.
//
// Everything except Submit must be called from the goroutine running the
// loop.
type Loop struct {
	logger *zap.Logger

	microtasks []func()
	draining   bool

	ingressMu sync.Mutex
	ingress   []func()
	wake      chan struct{}

	state atomic.Int32
	done  chan struct{}
}

type Option func(*Loop)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(opts ...Option) *Loop {
	l := &Loop{
		logger:     zap.NewNop(),
		microtasks: make([]func(), 0, 64),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// QueueMicrotask appends fn to the microtask queue.
func (l *Loop) QueueMicrotask(fn func()) {
	if fn == nil {
		return
	}
	l.microtasks = append(l.microtasks, fn)
}

// Pending is the number of queued microtasks.
func (l *Loop) Pending() int {
	return len(l.microtasks)
}

// Drain runs microtasks until the queue is empty, including any queued
// while draining, and returns how many ran. Called from inside a
// microtask it returns 0; the outer drain picks up the rest.
func (l *Loop) Drain() int {
	if l.draining {
		return 0
	}
	l.draining = true
	defer func() { l.draining = false }()
	if len(l.microtasks) > drainWarnThreshold {
		l.logger.Warn("microtask queue is very long, possible infinite loop", zap.Int("queued", len(l.microtasks)))
	}
	executed := 0
	for ; executed < len(l.microtasks); executed++ {
		fn := l.microtasks[executed]
		l.microtasks[executed] = nil
		l.safeExecute(fn)
	}
	l.microtasks = l.microtasks[:0]
	return executed
}

// Submit hands fn to the loop. It is the only method safe to call from
// other goroutines.
func (l *Loop) Submit(fn func()) error {
	l.ingressMu.Lock()
	if state(l.state.Load()) == stateTerminated {
		l.ingressMu.Unlock()
		return ErrLoopTerminated
	}
	l.ingress = append(l.ingress, fn)
	l.ingressMu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Tick runs every task submitted so far, each followed by a full
// microtask drain, and returns the number of tasks run. A pending drain
// from before the tick runs first.
func (l *Loop) Tick() int {
	l.Drain()

	l.ingressMu.Lock()
	tasks := l.ingress
	l.ingress = nil
	l.ingressMu.Unlock()

	for _, fn := range tasks {
		l.safeExecute(fn)
		l.Drain()
	}
	return len(tasks)
}

// Run processes tasks until ctx is done. The loop cannot be restarted.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(stateAwake), int32(stateRunning)) {
		if state(l.state.Load()) == stateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}
	defer close(l.done)
	l.logger.Debug("microtask loop started")

	for {
		l.Tick()
		select {
		case <-ctx.Done():
			l.ingressMu.Lock()
			l.state.Store(int32(stateTerminated))
			dropped := len(l.ingress)
			l.ingress = nil
			l.ingressMu.Unlock()
			l.logger.Debug("microtask loop stopped", zap.Int("dropped", dropped))
			return nil
		case <-l.wake:
		}
	}
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	fn()
}
