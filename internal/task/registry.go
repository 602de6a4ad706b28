package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMaxTokenAge   = time.Hour
	defaultSweepInterval = 5 * time.Minute
)

// Registry tracks outstanding cancellation tokens so a user-level cancel can
// reach an in-flight operation without a direct reference. It is constructed
// explicitly and passed by reference; there is no package-level instance.
type Registry struct {
	mu        sync.Mutex
	tokens    map[string]*Token
	maxAge    time.Duration
	sweepEach time.Duration
	lastSweep time.Time
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	return &Registry{
		tokens:    make(map[string]*Token),
		maxAge:    defaultMaxTokenAge,
		sweepEach: defaultSweepInterval,
		lastSweep: time.Now(),
	}
}

// New registers and returns a fresh token. An empty id gets a generated one.
func (r *Registry) New(id string) *Token {
	if id == "" {
		id = uuid.NewString()
	}
	tok := newToken(id)

	r.mu.Lock()
	r.tokens[id] = tok
	r.sweepLocked()
	r.mu.Unlock()

	return tok
}

// Get looks up a token by id.
func (r *Registry) Get(id string) (*Token, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tok, ok := r.tokens[id]
	return tok, ok
}

// Cancel cancels the identified token. Returns false when unknown.
func (r *Registry) Cancel(id, reason string) bool {
	tok, ok := r.Get(id)
	if !ok {
		return false
	}
	tok.Cancel(reason)
	return true
}

// CancelAll cancels every active token and returns how many were cancelled.
func (r *Registry) CancelAll(reason string) int {
	r.mu.Lock()
	tokens := make([]*Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		tokens = append(tokens, t)
	}
	r.mu.Unlock()

	n := 0
	for _, t := range tokens {
		if !t.Cancelled() {
			t.Cancel(reason)
			n++
		}
	}
	return n
}

// Release removes a token once its operation has finished.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	delete(r.tokens, id)
	r.mu.Unlock()
}

// Active returns the number of registered, not-yet-cancelled tokens.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if !t.Cancelled() {
			n++
		}
	}
	return n
}

// Sweep drops tokens older than maxAge and returns how many were removed.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepOlderLocked(maxAge)
}

// sweepLocked runs the time-based garbage collection at most once per
// sweep interval. Caller holds the lock.
func (r *Registry) sweepLocked() {
	if time.Since(r.lastSweep) < r.sweepEach {
		return
	}
	r.lastSweep = time.Now()
	r.sweepOlderLocked(r.maxAge)
}

func (r *Registry) sweepOlderLocked(maxAge time.Duration) int {
	n := 0
	cutoff := time.Now().Add(-maxAge)
	for id, t := range r.tokens {
		if t.CreatedAt.Before(cutoff) {
			delete(r.tokens, id)
			n++
		}
	}
	return n
}
