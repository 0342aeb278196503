package daemon

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/internal/errors"
	"github.com/spall-labs/spall/internal/logging"
	"github.com/spall-labs/spall/internal/reqctx"
)

func newStreamServer(t *testing.T) *Server {
	t.Helper()
	return &Server{
		cfg:      config.New(),
		log:      logging.Discard(),
		events:   bus.New(),
		idle:     newIdleTracker(time.Minute, true, func() {}),
		stopOnce: make(chan struct{}),
	}
}

func TestStreamOp_DisconnectStopsForwarding(t *testing.T) {
	s := newStreamServer(t)
	rec := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("POST", "/sse/corpus/sync", nil).WithContext(ctx)

	s.streamOp(rec, req, func(_ context.Context, rc *reqctx.Context) error {
		s.events.Publish(bus.ScanStart(1))
		cancel() // client disconnect mid-operation
		for !rc.Aborted() {
			time.Sleep(time.Millisecond)
		}
		// The subscription is gone before the abort lands, so this event
		// never reaches the dead connection.
		s.events.Publish(bus.ScanDone(1))
		return errors.Cancelled()
	})

	body := rec.Body.String()
	assert.Contains(t, body, bus.TypeScanStart)
	assert.NotContains(t, body, bus.TypeScanDone)

	// Cancellation is swallowed, not reported as an error frame.
	assert.NotContains(t, body, bus.TypeError)
	require.Zero(t, s.events.Count())
}

func TestStreamOp_CompletionUnsubscribes(t *testing.T) {
	s := newStreamServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/sse/corpus/sync", nil)

	s.streamOp(rec, req, func(context.Context, *reqctx.Context) error {
		s.events.Publish(bus.EmbedDone(2))
		return nil
	})

	assert.Contains(t, rec.Body.String(), bus.TypeEmbedDone)
	assert.Zero(t, s.events.Count())
}
