package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gemfarm/storage/eventlog"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyStore persists responses to keyed requests.
type IdempotencyStore interface {
	LookupIdempotency(ctx context.Context, key string) (*eventlog.IdempotencyKey, bool, error)
	RememberIdempotency(ctx context.Context, record *eventlog.IdempotencyKey) error
}

// WithIdempotency replays the stored response for a repeated Idempotency-Key
// so retried ledger operations are applied once. Only successful responses
// are remembered.
func WithIdempotency(store IdempotencyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if store == nil || key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			if signer, ok := SignerFromContext(r.Context()); ok {
				key = signer.String() + ":" + key
			}

			record, found, err := store.LookupIdempotency(r.Context(), key)
			if err != nil {
				logger.Error("idempotency lookup failed", slog.String("error", err.Error()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if found {
				if record.Method != r.Method || record.Path != r.URL.Path {
					http.Error(w, "idempotency key reused for a different request", http.StatusConflict)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(record.Status)
				_, _ = io.WriteString(w, record.Response)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			if recorder.status >= http.StatusBadRequest {
				return
			}
			payload := &eventlog.IdempotencyKey{
				Key:       key,
				RequestID: RequestIDFromContext(r.Context()),
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    recorder.status,
				Response:  recorder.buf.String(),
				CreatedAt: time.Now(),
			}
			if err := store.RememberIdempotency(r.Context(), payload); err != nil {
				logger.Warn("idempotency record not stored", slog.String("error", err.Error()))
			}
		})
	}
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
