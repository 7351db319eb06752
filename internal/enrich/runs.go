package enrich

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of one pass invocation.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped"
	RunFailed    RunStatus = "failed"
)

// Run tracks one invocation of a pass.
type Run struct {
	mu sync.Mutex

	ID       string
	Pass     PassID
	Status   RunStatus
	Message  string
	Delta    []string
	Error    string
	Started  time.Time
	Finished time.Time
}

func newRun(pass PassID, now time.Time) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Pass:    pass,
		Status:  RunRunning,
		Started: now,
	}
}

// finish records the outcome of the run.
func (r *Run) finish(out Outcome, err error, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Finished = now
	r.Delta = out.Delta
	r.Message = out.Message
	switch {
	case err != nil:
		r.Status = RunFailed
		r.Error = err.Error()
	case out.Skipped:
		r.Status = RunSkipped
	default:
		r.Status = RunCompleted
	}
}

// RunSnapshot is a read-only, JSON-safe copy of run state.
type RunSnapshot struct {
	ID       string     `json:"run_id"`
	Pass     PassID     `json:"pass"`
	Status   RunStatus  `json:"status"`
	Message  string     `json:"message,omitempty"`
	Delta    []string   `json:"delta"`
	Error    string     `json:"error,omitempty"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
}

func (r *Run) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	delta := r.Delta
	if delta == nil {
		delta = []string{}
	}
	snap := RunSnapshot{
		ID:      r.ID,
		Pass:    r.Pass,
		Status:  r.Status,
		Message: r.Message,
		Delta:   append([]string(nil), delta...),
		Error:   r.Error,
		Started: r.Started,
	}
	if !r.Finished.IsZero() {
		f := r.Finished
		snap.Finished = &f
	}
	return snap
}

func (r *Run) lastUpdate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Finished.IsZero() {
		return r.Started
	}
	return r.Finished
}

// RunStore is a thread-safe in-memory run registry with TTL eviction.
type RunStore struct {
	mu   sync.Mutex
	runs map[string]*Run
	ttl  time.Duration
}

func NewRunStore(ttl time.Duration) *RunStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RunStore{
		runs: make(map[string]*Run),
		ttl:  ttl,
	}
}

func (s *RunStore) Put(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

func (s *RunStore) Get(id string) *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

// List returns snapshots of all tracked runs, newest first.
func (s *RunStore) List() []RunSnapshot {
	s.mu.Lock()
	runs := make([]*Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.Unlock()

	out := make([]RunSnapshot, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out
}

// Cleanup removes finished runs older than the TTL. Running entries stay.
func (s *RunStore) Cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.runs {
		if r.Snapshot().Status == RunRunning {
			continue
		}
		if now.Sub(r.lastUpdate()) > s.ttl {
			delete(s.runs, id)
		}
	}
}
