package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunState describes the lifecycle of one ingestion run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// RunSummary is the externally visible record of a run.
type RunSummary struct {
	ID         string     `json:"id"`
	ListingURL string     `json:"listing_url"`
	State      RunState   `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Ingested   int        `json:"ingested"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

// run is the mutable in-flight record behind a RunSummary.
type run struct {
	mu      sync.Mutex
	summary RunSummary
}

func (r *run) addIngested() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.summary.Ingested++
	r.mu.Unlock()
}

func (r *run) addSkipped() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.summary.Skipped++
	r.mu.Unlock()
}

func (r *run) addFailed() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.summary.Failed++
	r.mu.Unlock()
}

// Registry keeps an in-memory record of recent ingestion runs. Runs are not
// resumable; the record exists for operators, not recovery.
type Registry struct {
	mu   sync.Mutex
	runs []*run
	max  int
}

// NewRegistry creates a registry retaining at most max runs (newest kept).
func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = 50
	}
	return &Registry{max: max}
}

func (g *Registry) begin(listingURL string) *run {
	if g == nil {
		return nil
	}
	r := &run{summary: RunSummary{
		ID:         uuid.NewString(),
		ListingURL: listingURL,
		State:      RunRunning,
		StartedAt:  time.Now().UTC(),
	}}
	g.mu.Lock()
	g.runs = append(g.runs, r)
	if len(g.runs) > g.max {
		g.runs = g.runs[len(g.runs)-g.max:]
	}
	g.mu.Unlock()
	return r
}

func (g *Registry) finish(r *run, runErr error) {
	if g == nil || r == nil {
		return
	}
	now := time.Now().UTC()
	r.mu.Lock()
	r.summary.FinishedAt = &now
	if runErr != nil {
		r.summary.State = RunFailed
		r.summary.Error = runErr.Error()
	} else {
		r.summary.State = RunCompleted
	}
	r.mu.Unlock()
}

// Snapshot returns run summaries, newest first.
func (g *Registry) Snapshot() []RunSummary {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]RunSummary, 0, len(g.runs))
	for i := len(g.runs) - 1; i >= 0; i-- {
		r := g.runs[i]
		r.mu.Lock()
		out = append(out, r.summary)
		r.mu.Unlock()
	}
	return out
}
