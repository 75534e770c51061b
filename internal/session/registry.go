// Package session maps session ids to the coordinator that owns each run.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beryl/internal/pipeline"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = eris.New("session: not found")

// Factory builds a fresh coordinator with its own index that reports
// progress to obs. Obs may be nil.
type Factory func(obs pipeline.Observer) *pipeline.Coordinator

type entry struct {
	coord    *pipeline.Coordinator
	lastUsed time.Time
}

// Registry is a process-wide, mutex-guarded session table.
type Registry struct {
	factory Factory
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithTTL makes Sweep drop sessions idle for longer than ttl. Zero disables
// expiry.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) { r.ttl = ttl }
}

// NewRegistry creates an empty Registry.
func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new coordinator under a random id.
func (r *Registry) Create(obs pipeline.Observer) (string, *pipeline.Coordinator) {
	id := uuid.New().String()
	coord := r.factory(obs)

	r.mu.Lock()
	r.sessions[id] = &entry{coord: coord, lastUsed: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	zap.L().Debug("session: created", zap.String("session_id", id), zap.Int("active", n))
	return id, coord
}

// Get returns the coordinator for id and marks it used.
func (r *Registry) Get(id string) (*pipeline.Coordinator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	e.lastUsed = r.now()
	return e.coord, nil
}

// Delete removes id and releases its index.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return eris.Wrapf(ErrNotFound, "session %s", id)
	}
	e.coord.Close()
	zap.L().Debug("session: deleted", zap.String("session_id", id))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle since before now minus the TTL and returns how
// many were removed. A session whose run is still in progress is never
// dropped; its idle clock restarts at now.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-r.ttl)

	var expired []*entry
	r.mu.Lock()
	for id, e := range r.sessions {
		if e.coord.Busy() {
			e.lastUsed = now
			continue
		}
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, e)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.coord.Close()
	}
	if len(expired) > 0 {
		zap.L().Info("session: swept idle sessions", zap.Int("removed", len(expired)))
	}
	return len(expired)
}

// Close releases every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range sessions {
		e.coord.Close()
	}
}
