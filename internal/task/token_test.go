package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localkb/internal/domain"
)

func TestTokenCheckActive(t *testing.T) {
	tok := newToken("t1")
	assert.NoError(t, tok.Check())
	assert.False(t, tok.Cancelled())
	assert.Empty(t, tok.Reason())
}

func TestTokenCancel(t *testing.T) {
	tok := newToken("t1")
	tok.Cancel("shutting down")

	assert.True(t, tok.Cancelled())
	assert.Equal(t, "shutting down", tok.Reason())

	err := tok.Check()
	require.Error(t, err)
	assert.Equal(t, domain.CodeCancelled, domain.CodeOf(err))
	assert.True(t, domain.IsCancelled(err))

	select {
	case <-tok.Done():
	default:
		t.Fatal("Done channel should be closed after cancel")
	}
}

func TestTokenCancelIdempotent(t *testing.T) {
	tok := newToken("t1")
	tok.Cancel("first")
	tok.Cancel("second")
	assert.Equal(t, "first", tok.Reason())
}

func TestTokenCancelDefaultReason(t *testing.T) {
	tok := newToken("t1")
	tok.Cancel("")
	assert.Equal(t, "cancelled by user", tok.Reason())
}

func TestRegistryNewGeneratesID(t *testing.T) {
	r := NewRegistry()

	tok := r.New("")
	assert.NotEmpty(t, tok.ID)

	got, ok := r.Get(tok.ID)
	require.True(t, ok)
	assert.Same(t, tok, got)
}

func TestRegistryCancelByID(t *testing.T) {
	r := NewRegistry()
	tok := r.New("job-1")

	assert.True(t, r.Cancel("job-1", "user abort"))
	assert.True(t, tok.Cancelled())
	assert.False(t, r.Cancel("missing", ""))
}

func TestRegistryCancelAll(t *testing.T) {
	r := NewRegistry()
	a := r.New("a")
	b := r.New("b")

	assert.Equal(t, 2, r.CancelAll("shutdown"))
	assert.True(t, a.Cancelled())
	assert.True(t, b.Cancelled())
	assert.Equal(t, "shutdown", a.Reason())
}

func TestRegistryRelease(t *testing.T) {
	r := NewRegistry()
	tok := r.New("job-1")

	r.Release(tok.ID)
	_, ok := r.Get("job-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Active())
}

func TestRegistrySweepRemovesStale(t *testing.T) {
	r := NewRegistry()
	old := r.New("old")
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	fresh := r.New("fresh")

	removed := r.Sweep(time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := r.Get("old")
	assert.False(t, ok)
	_, ok = r.Get(fresh.ID)
	assert.True(t, ok)
}
