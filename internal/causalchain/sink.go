package causalchain

import (
	"context"
	"sync"

	"github.com/mandubian/ccos-sub020/internal/telemetry"
)

// Sink observes actions after they are durably appended to the chain. A sink
// that errors or blocks must never affect the append itself or other sinks;
// see Design Notes "Causal chain observer fan-out".
type Sink interface {
	Observe(ctx context.Context, action Action) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, action Action) error

// Observe calls f.
func (f SinkFunc) Observe(ctx context.Context, action Action) error { return f(ctx, action) }

// fanout delivers appended actions to registered sinks over bounded,
// per-sink channels so a slow or failing sink cannot block Append or starve
// its peers. Delivery is at-least-once per sink, with a bounded retry count
// on failure; after the retry budget is exhausted the action is dropped for
// that sink and the failure is logged, never propagated to the appender.
type fanout struct {
	logger   telemetry.Logger
	queueLen int
	retries  int

	mu    sync.Mutex
	sinks []*sinkWorker
}

type sinkWorker struct {
	sink Sink
	ch   chan Action
	done chan struct{}
}

func newFanout(logger telemetry.Logger, queueLen, retries int) *fanout {
	if queueLen <= 0 {
		queueLen = 256
	}
	if retries < 0 {
		retries = 0
	}
	return &fanout{logger: logger, queueLen: queueLen, retries: retries}
}

// register starts a worker goroutine for sink and returns an unregister func.
func (f *fanout) register(sink Sink) func() {
	w := &sinkWorker{sink: sink, ch: make(chan Action, f.queueLen), done: make(chan struct{})}
	f.mu.Lock()
	f.sinks = append(f.sinks, w)
	f.mu.Unlock()

	go f.run(w)

	return func() {
		close(w.done)
	}
}

func (f *fanout) run(w *sinkWorker) {
	for {
		select {
		case <-w.done:
			return
		case action := <-w.ch:
			f.deliver(w, action)
		}
	}
}

func (f *fanout) deliver(w *sinkWorker, action Action) {
	var err error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if err = w.sink.Observe(context.Background(), action); err == nil {
			return
		}
	}
	if f.logger != nil && err != nil {
		f.logger.Warn(context.Background(), "causal chain sink observe failed",
			"action_id", action.ActionID, "error", err.Error())
	}
}

// publish enqueues action to every registered sink without blocking the
// caller; if a sink's queue is full the event is dropped for that sink and
// logged rather than backing up the appender.
func (f *fanout) publish(action Action) {
	f.mu.Lock()
	sinks := append([]*sinkWorker(nil), f.sinks...)
	f.mu.Unlock()

	for _, w := range sinks {
		select {
		case w.ch <- action:
		default:
			if f.logger != nil {
				f.logger.Warn(context.Background(), "causal chain sink queue full, dropping event",
					"action_id", action.ActionID)
			}
		}
	}
}
