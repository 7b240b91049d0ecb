package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"gemfarm/core"
	"gemfarm/core/types"
	"gemfarm/storage/eventlog"
)

const wsWriteTimeout = 10 * time.Second

// EventQuerier pages through the durable event log.
type EventQuerier interface {
	List(ctx context.Context, q eventlog.Query) ([]types.EventRecord, error)
}

type eventRoutes struct {
	stream  *core.EventStream
	history EventQuerier
	origins []string
}

func (er *eventRoutes) mount(r chi.Router) {
	r.Get("/events", er.list)
	r.Get("/events/stream", er.subscribe)
}

type eventPage struct {
	Events []types.EventRecord `json:"events"`
	Next   string              `json:"next,omitempty"`
}

func (er *eventRoutes) list(w http.ResponseWriter, r *http.Request) {
	if er.history == nil {
		writeJSONError(w, http.StatusNotImplemented, "", fmt.Errorf("event log disabled"))
		return
	}
	params := r.URL.Query()
	q := eventlog.Query{
		Type: strings.TrimSpace(params.Get("type")),
		Farm: strings.TrimSpace(params.Get("farm")),
	}
	if raw := strings.TrimSpace(params.Get("after")); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeBadRequest(w, fmt.Errorf("after: %w", err))
			return
		}
		q.After = after
	}
	if raw := strings.TrimSpace(params.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeBadRequest(w, fmt.Errorf("limit must be a positive integer"))
			return
		}
		q.Limit = limit
	}
	records, err := er.history.List(r.Context(), q)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	page := eventPage{Events: records}
	if len(records) > 0 {
		page.Next = records[len(records)-1].Cursor
	}
	writeJSON(w, http.StatusOK, page)
}

func (er *eventRoutes) subscribe(w http.ResponseWriter, r *http.Request) {
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	if cursor != "" {
		if _, err := strconv.ParseUint(cursor, 10, 64); err != nil {
			writeBadRequest(w, fmt.Errorf("cursor: %w", err))
			return
		}
	}
	origins := er.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := streamEvents(ctx, er.stream, conn, cursor); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, stream *core.EventStream, conn *websocket.Conn, cursor string) error {
	updates, cancel, backlog := stream.Subscribe(ctx, cursor)
	defer cancel()

	for _, record := range backlog {
		if err := writeEvent(ctx, conn, record); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, record); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, record types.EventRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
