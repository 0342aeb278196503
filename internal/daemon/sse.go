package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/errors"
	"github.com/spall-labs/spall/internal/reqctx"
)

// sseWriter serializes events onto one SSE connection. Bus callbacks and
// the operation goroutine both write through it, so sends are mutexed.
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

func (sw *sseWriter) send(ev bus.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := sw.w.Write([]byte("data: ")); err != nil {
		return
	}
	_, _ = sw.w.Write(data)
	_, _ = sw.w.Write([]byte("\n\n"))
	sw.flusher.Flush()
}

// handleEvents streams the daemon bus to the client for the lifetime of
// the connection. The first frame is always sse.connected.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sw, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.idle.StreamStarted()
	defer s.idle.StreamDone()

	sw.send(bus.SSEConnected())
	unsubscribe := s.events.Subscribe(sw.send)
	defer unsubscribe()

	<-r.Context().Done()
}

// streamOp runs a long operation while streaming the bus to the caller.
// Client disconnect stops event forwarding and aborts the operation at
// its next checkpoint; the handler waits for the operation to
// acknowledge the abort, so no half-finished write is left behind.
func (s *Server) streamOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, rc *reqctx.Context) error) {
	sw, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.idle.StreamStarted()
	defer s.idle.StreamDone()

	unsubscribe := s.events.Subscribe(sw.send)
	defer unsubscribe()

	rc := reqctx.New(0)
	done := make(chan error, 1)
	go func() {
		done <- op(context.WithoutCancel(r.Context()), rc)
	}()

	var err error
	select {
	case err = <-done:
	case <-r.Context().Done():
		// The client is gone: stop forwarding events before waiting for
		// the operation to acknowledge the abort.
		unsubscribe()
		rc.Abort()
		err = <-done
	}

	if err != nil && !errors.IsCancelled(err) {
		s.log.Error("stream_op_failed", slog.String("error", err.Error()))
		sw.send(bus.Error(errors.Code(err), err.Error()))
	}
}

func (s *Server) handleSSESync(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if !decodeBody(w, r, &body) {
		return
	}
	s.streamOp(w, r, func(ctx context.Context, rc *reqctx.Context) error {
		_, err := s.pipeline.Sync(ctx, rc, body.Dir, body.Glob, body.Corpus, body.Prefix)
		return err
	})
}

func (s *Server) handleSSENoteAdd(w http.ResponseWriter, r *http.Request) {
	var body addNoteBody
	if !decodeBody(w, r, &body) {
		return
	}
	s.streamOp(w, r, func(ctx context.Context, rc *reqctx.Context) error {
		note, err := s.store.AddNote(body.Corpus, body.Path, body.Content, 0, body.Dupe)
		if err != nil {
			return err
		}
		return s.pipeline.IngestNote(ctx, rc, note.ID)
	})
}

func (s *Server) handleSSENoteUpsert(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	path := r.PathValue("path")
	var body noteContentBody
	if !decodeBody(w, r, &body) {
		return
	}
	s.streamOp(w, r, func(ctx context.Context, rc *reqctx.Context) error {
		note, err := s.store.UpsertNote(id, path, body.Content, 0, body.Dupe)
		if err != nil {
			return err
		}
		return s.pipeline.IngestNote(ctx, rc, note.ID)
	})
}

func (s *Server) handleSSENoteUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	var body noteContentBody
	if !decodeBody(w, r, &body) {
		return
	}
	s.streamOp(w, r, func(ctx context.Context, rc *reqctx.Context) error {
		note, err := s.store.UpdateNote(id, body.Content, 0, body.Dupe)
		if err != nil {
			return err
		}
		return s.pipeline.IngestNote(ctx, rc, note.ID)
	})
}
