package analysis

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient points both endpoints at a fake upstream
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		SubmitURL:    srv.URL + "/upload",
		ResultURL:    srv.URL + "/result",
		ClientID:     "client-id",
		SecretKey:    "secret-key",
		Referer:      "https://app.example.com",
		PollTimeout:  2 * time.Second,
		ExcerptLimit: 100,
		PendingCodes: []string{"S0005"},
	}, srv.Client())
	return client, srv
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []StatusEvent
	err    error
}

func (p *recordingPublisher) PublishStatus(_ context.Context, event StatusEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []StatusEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StatusEvent(nil), p.events...)
}
