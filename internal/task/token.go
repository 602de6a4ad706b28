// Package task provides cooperative cancellation and throttled progress
// reporting for long-running operations.
package task

import (
	"sync"
	"time"

	"localkb/internal/domain"
)

// Token is a cooperative cancellation handle for one logical operation.
// Long-running loops poll Check at fixed points; waiters select on Done.
type Token struct {
	ID        string
	CreatedAt time.Time

	mu          sync.Mutex
	done        chan struct{}
	reason      string
	cancelledAt time.Time
}

func newToken(id string) *Token {
	return &Token{
		ID:        id,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Cancel marks the token cancelled. Subsequent calls are no-ops.
func (t *Token) Cancel(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
		return
	default:
	}
	if reason == "" {
		reason = "cancelled by user"
	}
	t.reason = reason
	t.cancelledAt = time.Now()
	close(t.done)
}

// Done returns a channel closed on cancellation.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Cancelled reports the cancellation state without blocking.
func (t *Token) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Check returns a CANCELLED error if the token has been cancelled, nil
// otherwise. This is the poll point for cooperative loops.
func (t *Token) Check() error {
	if !t.Cancelled() {
		return nil
	}
	t.mu.Lock()
	reason := t.reason
	t.mu.Unlock()
	return domain.NewError(domain.CodeCancelled, "operation cancelled: "+reason,
		map[string]any{"token_id": t.ID, "reason": reason})
}

// Reason returns the cancellation reason, empty while active.
func (t *Token) Reason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}
