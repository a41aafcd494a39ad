// Package api exposes the HTTP surface that triggers ingestion runs and
// relays newly ingested events to the caller as they become durable.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/4Achar-SE4031/4Achar-Backend/internal/ingest"
	"github.com/4Achar-SE4031/4Achar-Backend/pkg/types"
)

// Ingestor runs one ingestion pass and streams the newly persisted events.
type Ingestor interface {
	Run(ctx context.Context, listingURL string) iter.Seq2[types.Event, error]
}

// Server wires the ingestion handlers onto an HTTP mux.
type Server struct {
	pipeline   Ingestor
	registry   *ingest.Registry
	listingURL string
	logger     *slog.Logger
	mux        *http.ServeMux
}

// NewServer constructs the API server. gatherer may be nil to skip /metrics.
func NewServer(pipeline Ingestor, registry *ingest.Registry, gatherer prometheus.Gatherer, listingURL string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipeline:   pipeline,
		registry:   registry,
		listingURL: listingURL,
		logger:     logger,
		mux:        http.NewServeMux(),
	}
	s.routes(gatherer)
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/ingest/runs", s.handleRuns)
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRuns(w, r)
	case http.MethodPost:
		s.startRun(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

// startRunRequest optionally overrides the configured listing URL.
type startRunRequest struct {
	ListingURL string `json:"listing_url"`
}

// startRun executes an ingestion run and streams each event as one NDJSON
// line the moment it has been persisted. A listing-level failure terminates
// the stream with a trailing error object.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, fmt.Sprintf("invalid json payload: %v", err), http.StatusBadRequest)
		return
	}
	listingURL := strings.TrimSpace(req.ListingURL)
	if listingURL == "" {
		listingURL = s.listingURL
	}
	if listingURL == "" {
		http.Error(w, "no listing url configured", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	count := 0
	for event, err := range s.pipeline.Run(r.Context(), listingURL) {
		if err != nil {
			s.logger.Error("ingestion run failed", "listing_url", listingURL, "error", err)
			_ = enc.Encode(map[string]string{"error": err.Error()})
			flusher.Flush()
			return
		}
		if err := enc.Encode(event); err != nil {
			// Client went away; the consumed prefix is already durable.
			return
		}
		flusher.Flush()
		count++
	}
	s.logger.Info("ingestion run completed", "listing_url", listingURL, "events", count)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
