package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/4Achar-SE4031/4Achar-Backend/internal/ingest"
	"github.com/4Achar-SE4031/4Achar-Backend/pkg/types"
)

type fakeIngestor struct {
	events []types.Event
	err    error
}

func (f fakeIngestor) Run(ctx context.Context, listingURL string) iter.Seq2[types.Event, error] {
	return func(yield func(types.Event, error) bool) {
		for _, event := range f.events {
			if !yield(event, nil) {
				return
			}
		}
		if f.err != nil {
			yield(types.Event{}, f.err)
		}
	}
}

func newTestServer(t *testing.T, ingestor Ingestor) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(ingestor, ingest.NewRegistry(10), prometheus.NewRegistry(), "https://www.honarticket.com/", logger)
}

func TestHealthRoute(t *testing.T) {
	server := newTestServer(t, fakeIngestor{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %s", got)
	}
}

func TestMetricsRoute(t *testing.T) {
	server := newTestServer(t, fakeIngestor{})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestListRuns(t *testing.T) {
	server := newTestServer(t, fakeIngestor{})
	req := httptest.NewRequest(http.MethodGet, "/api/ingest/runs", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var runs []ingest.RunSummary
	if err := json.Unmarshal(rr.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v (body=%s)", err, rr.Body.String())
	}
	if len(runs) != 0 {
		t.Fatalf("expected no recorded runs, got %d", len(runs))
	}
}

func TestStartRunStreamsEvents(t *testing.T) {
	ingestor := fakeIngestor{events: []types.Event{
		{ID: 1, Title: "کنسرت الف", City: "تهران", StartTime: time.Date(2023, 12, 10, 17, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "کنسرت ب", City: "شیراز", StartTime: time.Date(2023, 12, 11, 17, 0, 0, 0, time.UTC)},
	}}
	server := newTestServer(t, ingestor)

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/runs", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/x-ndjson" {
		t.Fatalf("expected ndjson content type, got %s", got)
	}

	scanner := bufio.NewScanner(rr.Body)
	var titles []string
	for scanner.Scan() {
		var event types.Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		titles = append(titles, event.Title)
	}
	if len(titles) != 2 || titles[0] != "کنسرت الف" || titles[1] != "کنسرت ب" {
		t.Fatalf("unexpected streamed titles %v", titles)
	}
}

func TestStartRunEmptyBody(t *testing.T) {
	server := newTestServer(t, fakeIngestor{})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/runs", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d (body=%s)", rr.Code, rr.Body.String())
	}
}

func TestStartRunReportsFailure(t *testing.T) {
	server := newTestServer(t, fakeIngestor{err: errors.New("listing page: boom")})
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/runs", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	scanner := bufio.NewScanner(rr.Body)
	var last map[string]string
	for scanner.Scan() {
		last = nil
		_ = json.Unmarshal(scanner.Bytes(), &last)
	}
	if last == nil || last["error"] == "" {
		t.Fatalf("expected trailing error object, got %v", last)
	}
}

func TestRunsMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, fakeIngestor{})
	req := httptest.NewRequest(http.MethodPut, "/api/ingest/runs", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
