package csgo

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"GameStateServer/internal/service/events"
	"GameStateServer/internal/service/events/queue"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Handle controls a running Server.
type Handle struct {
	srv             *http.Server
	tx              *queue.Sender[events.Envelope]
	cancel          context.CancelFunc
	shutdownTimeout time.Duration
	logger          *zap.SugaredLogger

	ready     chan struct{}
	done      chan struct{}
	addr      string
	listenErr error
	stopped   atomic.Bool
}

func newHandle(srv *http.Server, tx *queue.Sender[events.Envelope], cancel context.CancelFunc, shutdownTimeout time.Duration, logger *zap.SugaredLogger) *Handle {
	return &Handle{
		srv:             srv,
		tx:              tx,
		cancel:          cancel,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		ready:           make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// Ready is closed once the listener is bound or binding failed.
func (h *Handle) Ready() <-chan struct{} { return h.ready }

// Done is closed when the dispatch loop has stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Addr waits for Ready and returns the bound address, or "" if binding failed.
func (h *Handle) Addr() string {
	<-h.ready
	return h.addr
}

// ListenErr waits for Ready and returns the bind error, if any.
func (h *Handle) ListenErr() error {
	<-h.ready
	return h.listenErr
}

func (h *Handle) serve() {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		h.listenErr = err
		close(h.ready)
		h.logger.Errorw("GSI server failed to listen", "addr", h.srv.Addr, "error", err)
		// Nobody can produce events anymore; let the dispatcher drain and stop.
		h.tx.Close()
		return
	}
	h.addr = ln.Addr().String()
	close(h.ready)

	h.logger.Infow("GSI server listening", "addr", h.addr)
	if err := h.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		h.logger.Errorw("GSI server stopped with error", "error", err)
		h.tx.Close()
		return
	}
	h.logger.Infow("GSI server stopped")
}

// Stop aborts the dispatch loop and gracefully shuts the HTTP server down:
// no new connections are accepted, in-flight requests may finish. The event
// being dispatched may reach only some listeners; queued events are dropped.
// Stop waits for the dispatch loop to exit, bounded by the shutdown timeout.
func (h *Handle) Stop(ctx context.Context) error {
	if !h.stopped.CompareAndSwap(false, true) {
		return ErrHandleStopped
	}
	h.cancel()

	shutdownCtx, cancel := context.WithTimeoutCause(ctx, h.shutdownTimeout, errors.New("gsi server shutdown timeout"))
	defer cancel()

	var err error
	if serr := h.srv.Shutdown(shutdownCtx); serr != nil {
		h.logger.Warnw("graceful shutdown error", "error", serr)
		err = multierr.Append(serr, h.srv.Close())
	}
	h.tx.Close()

	select {
	case <-h.done:
	case <-shutdownCtx.Done():
		err = multierr.Append(err, context.Cause(shutdownCtx))
	}
	return err
}
