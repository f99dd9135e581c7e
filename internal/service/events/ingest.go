package events

import (
	"errors"
	"io"
	"net/http"
	"time"

	"GameStateServer/internal/service/events/queue"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds a single state payload. Full spectator payloads
// with allplayers sections stay well below it.
const DefaultMaxBodyBytes int64 = 4 << 20

type ingestHandler struct {
	tx           *queue.Sender[Envelope]
	logger       *zap.SugaredLogger
	metrics      *Metrics
	maxBodyBytes int64
}

// IngestOption configures the ingest handler.
type IngestOption func(*ingestHandler)

// WithIngestMetrics records ingest counters into m.
func WithIngestMetrics(m *Metrics) IngestOption {
	return func(h *ingestHandler) { h.metrics = m }
}

// WithMaxBodyBytes limits the request body size. Non-positive values are ignored.
func WithMaxBodyBytes(n int64) IngestOption {
	return func(h *ingestHandler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewIngestHandler returns a handler that decodes the request body into an Event,
// pushes it to tx once and echoes the event back: 200 when enqueued, 500 when the
// dispatcher is gone. Bodies that are not a JSON object get 400 and are never enqueued.
func NewIngestHandler(tx *queue.Sender[Envelope], logger *zap.SugaredLogger, opts ...IngestOption) http.Handler {
	h := &ingestHandler{
		tx:           tx,
		logger:       logger,
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ingestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		h.metrics.incRejected()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	ev, err := ParseEvent(body)
	if err != nil {
		h.metrics.incRejected()
		h.logger.Debugw("Rejected GSI payload", "request_id", middleware.GetReqID(r.Context()), "remote", r.RemoteAddr, "bytes", len(body), "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	env := Envelope{ID: uuid.New(), ReceivedAt: time.Now(), Event: ev}
	status := http.StatusOK
	if err := h.tx.Push(env); err != nil {
		status = http.StatusInternalServerError
		h.metrics.incEnqueueFailure()
		h.logger.Errorw("Failed to hand event to dispatcher", "request_id", middleware.GetReqID(r.Context()), "event_id", env.ID, "error", err)
	} else {
		h.metrics.incReceived()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(ev.raw)
}
