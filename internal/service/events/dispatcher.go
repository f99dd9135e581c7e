package events

import (
	"context"
	"errors"
	"io"
	"slices"
	"time"

	"GameStateServer/internal/service/events/queue"

	"go.uber.org/zap"
)

const (
	kindSync  = "sync"
	kindAsync = "async"
)

// Dispatcher drains the event queue and invokes listeners one event at a time:
// all Listeners in registration order, then all AsyncListeners in registration order.
type Dispatcher struct {
	listeners      []Listener
	asyncListeners []AsyncListener
	logger         *zap.SugaredLogger
	metrics        *Metrics
}

// NewDispatcher takes ownership of copies of both listener slices.
func NewDispatcher(listeners []Listener, asyncListeners []AsyncListener, logger *zap.SugaredLogger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		listeners:      slices.Clone(listeners),
		asyncListeners: slices.Clone(asyncListeners),
		logger:         logger,
		metrics:        metrics,
	}
}

// Run blocks until rx reaches end of stream or ctx is cancelled. On return rx is
// closed, so later pushes fail. Once ctx is done no further listener is started.
func (d *Dispatcher) Run(ctx context.Context, rx *queue.Receiver[Envelope]) {
	defer rx.Close()
	d.metrics.trackQueue(rx.Len)

	d.logger.Infow("Listening for events", "listeners", len(d.listeners), "asyncListeners", len(d.asyncListeners))
	for {
		env, err := rx.Pop(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				d.logger.Infow("Event queue closed, dispatcher stopped")
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				d.logger.Infow("Dispatcher aborted", "pending", rx.Len())
			default:
				d.logger.Warnw("Dispatcher stopped", "error", err)
			}
			return
		}

		if !d.dispatch(ctx, env) {
			d.logger.Infow("Dispatcher aborted mid-event", "event_id", env.ID, "pending", rx.Len())
			return
		}
	}
}

// dispatch reports false if ctx was cancelled before every listener ran.
func (d *Dispatcher) dispatch(ctx context.Context, env Envelope) bool {
	start := time.Now()

	for i, l := range d.listeners {
		d.invokeSync(i, l, env)
	}

	for i, l := range d.asyncListeners {
		if ctx.Err() != nil {
			return false
		}
		d.invokeAsync(ctx, i, l, env)
	}

	d.metrics.observeDispatch(start)
	d.logger.Debugw("Event dispatched", "event_id", env.ID, "latency", time.Since(env.ReceivedAt).String())
	return true
}

func (d *Dispatcher) invokeSync(idx int, l Listener, env Envelope) {
	defer d.recoverListener(kindSync, idx, env)
	l(env.Event.Clone())
}

func (d *Dispatcher) invokeAsync(ctx context.Context, idx int, l AsyncListener, env Envelope) {
	defer d.recoverListener(kindAsync, idx, env)
	if err := l(ctx, env.Event.Clone()); err != nil {
		d.metrics.incListenerFailure(kindAsync, "error")
		d.logger.Errorw("Async listener failed", "listener", idx, "event_id", env.ID, "error", err)
	}
}

// A panicking listener is isolated: logged, counted, and the next listener runs.
func (d *Dispatcher) recoverListener(kind string, idx int, env Envelope) {
	if r := recover(); r != nil {
		d.metrics.incListenerFailure(kind, "panic")
		d.logger.Errorw("Listener panicked", "kind", kind, "listener", idx, "event_id", env.ID, "panic", r)
	}
}
