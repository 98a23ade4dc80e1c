// Package progress provides progress reporting for aggregation runs.
package progress

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status describes the state reported alongside a progress fraction.
type Status int

const (
	StatusRunning Status = iota
	StatusDone
	StatusError
	StatusInterrupt
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	case StatusInterrupt:
		return "interrupt"
	}
	return "unknown"
}

// Func receives progress updates. fraction is in [0, 1].
type Func func(fraction float64, status Status)

// Tracker fans progress updates out to an optional callback and keeps
// per-run statistics. All methods are safe for concurrent use; the hot
// path (Emit) takes a single short mutex.
type Tracker struct {
	mu       sync.Mutex
	runID    string
	fn       Func
	started  time.Time
	fraction float64
	status   Status
	path     string
	nrows    int
}

// Stats is a copy-out snapshot of a tracker.
type Stats struct {
	RunID    string
	Fraction float64
	Status   Status
	Path     string
	NRows    int
	Elapsed  time.Duration
}

// NewTracker creates a tracker for a run over nrows rows. fn may be nil,
// in which case only terminal states are logged.
func NewTracker(fn Func, nrows int) *Tracker {
	return &Tracker{
		runID:   uuid.NewString(),
		fn:      fn,
		started: time.Now(),
		nrows:   nrows,
	}
}

// RunID returns the unique identifier of this run.
func (t *Tracker) RunID() string { return t.runID }

// SetPath records which aggregation path was dispatched (0d, 1d, 2d, nd).
func (t *Tracker) SetPath(path string) {
	t.mu.Lock()
	t.path = path
	t.mu.Unlock()
}

// Emit reports a progress update.
func (t *Tracker) Emit(fraction float64, status Status) {
	t.mu.Lock()
	t.fraction = fraction
	t.status = status
	fn := t.fn
	t.mu.Unlock()

	if fn != nil {
		fn(fraction, status)
		return
	}
	if status != StatusRunning {
		log.Printf("aggregation run %s: %s (%.0f%%)", t.runID, status, fraction*100)
	}
}

// Snapshot returns a copy of the tracker's current state.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		RunID:    t.runID,
		Fraction: t.fraction,
		Status:   t.status,
		Path:     t.path,
		NRows:    t.nrows,
		Elapsed:  time.Since(t.started),
	}
}
