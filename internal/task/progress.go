package task

import (
	"fmt"
	"time"
)

// ShowThreshold is the estimated duration above which an operation should
// report progress.
const ShowThreshold = 3 * time.Second

// ShouldTrack reports whether an operation of the estimated duration is long
// enough to warrant progress updates.
func ShouldTrack(estimated time.Duration) bool {
	return estimated >= ShowThreshold
}

// Progress is one progress snapshot delivered to the callback.
type Progress struct {
	Current   int
	Total     int
	Message   string
	StartedAt time.Time
}

// Fraction returns completion in [0,1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Current) / float64(p.Total)
	if f > 1 {
		f = 1
	}
	return f
}

// Elapsed returns time since the tracker started.
func (p Progress) Elapsed() time.Duration {
	return time.Since(p.StartedAt)
}

// ETA estimates remaining time from the observed rate; zero when unknown.
func (p Progress) ETA() time.Duration {
	f := p.Fraction()
	if p.Current <= 0 || f >= 1 {
		return 0
	}
	elapsed := p.Elapsed()
	if elapsed <= 0 {
		return 0
	}
	total := time.Duration(float64(elapsed) / f)
	return total - elapsed
}

// Tracker reports throttled progress for a long operation. Updates arriving
// faster than the minimum interval are coalesced; Finish is always delivered.
type Tracker struct {
	total       int
	current     int
	description string
	minInterval time.Duration
	callback    func(Progress)
	startedAt   time.Time
	lastReport  time.Time
}

// TrackerOption adjusts tracker construction.
type TrackerOption func(*Tracker)

// WithMinInterval overrides the coalescing interval (default 100ms).
func WithMinInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.minInterval = d }
}

// NewTracker creates a tracker over total units. callback may be nil.
func NewTracker(total int, description string, callback func(Progress), opts ...TrackerOption) *Tracker {
	t := &Tracker{
		total:       total,
		description: description,
		minInterval: 100 * time.Millisecond,
		callback:    callback,
		startedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.notify(description, true)
	return t
}

// Update advances progress by n units.
func (t *Tracker) Update(n int, message string) {
	t.current += n
	if t.current > t.total {
		t.current = t.total
	}
	t.notify(t.message(message), false)
}

// Set moves the progress to an absolute position.
func (t *Tracker) Set(current int, message string) {
	if current < 0 {
		current = 0
	}
	if current > t.total {
		current = t.total
	}
	t.current = current
	t.notify(t.message(message), false)
}

// Finish marks the operation complete and always reports.
func (t *Tracker) Finish(message string) {
	t.current = t.total
	if message == "" {
		message = t.description + " complete"
	}
	t.notify(message, true)
}

// Current returns the units completed so far.
func (t *Tracker) Current() int {
	return t.current
}

func (t *Tracker) message(msg string) string {
	if msg != "" {
		return msg
	}
	return fmt.Sprintf("%s (%d/%d)", t.description, t.current, t.total)
}

func (t *Tracker) notify(message string, force bool) {
	if t.callback == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(t.lastReport) < t.minInterval {
		return
	}
	t.lastReport = now
	t.callback(Progress{
		Current:   t.current,
		Total:     t.total,
		Message:   message,
		StartedAt: t.startedAt,
	})
}
