package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldTrack(t *testing.T) {
	assert.False(t, ShouldTrack(time.Second))
	assert.True(t, ShouldTrack(3*time.Second))
	assert.True(t, ShouldTrack(time.Minute))
}

func TestProgressFraction(t *testing.T) {
	assert.Equal(t, 0.5, Progress{Current: 5, Total: 10}.Fraction())
	assert.Equal(t, 0.0, Progress{Current: 1, Total: 0}.Fraction())
	assert.Equal(t, 1.0, Progress{Current: 20, Total: 10}.Fraction())
}

func TestTrackerReportsStartAndFinish(t *testing.T) {
	var got []Progress
	tracker := NewTracker(10, "working", func(p Progress) {
		got = append(got, p)
	})
	tracker.Finish("")

	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Current)
	assert.Equal(t, 10, got[1].Current)
	assert.Equal(t, "working complete", got[1].Message)
}

func TestTrackerCoalescesFastUpdates(t *testing.T) {
	var got []Progress
	tracker := NewTracker(100, "fast", func(p Progress) {
		got = append(got, p)
	}, WithMinInterval(time.Hour))

	for i := 0; i < 100; i++ {
		tracker.Update(1, "")
	}
	tracker.Finish("done")

	// Start and Finish are forced; everything in between is coalesced away.
	require.Len(t, got, 2)
	assert.Equal(t, 100, tracker.Current())
}

func TestTrackerZeroIntervalReportsEveryUpdate(t *testing.T) {
	var got []Progress
	tracker := NewTracker(3, "each", func(p Progress) {
		got = append(got, p)
	}, WithMinInterval(0))

	tracker.Update(1, "one")
	tracker.Update(1, "two")
	tracker.Update(1, "three")

	require.Len(t, got, 4)
	assert.Equal(t, "one", got[1].Message)
	assert.Equal(t, 3, got[3].Current)
}

func TestTrackerClampsOverflow(t *testing.T) {
	tracker := NewTracker(5, "clamp", nil)
	tracker.Update(10, "")
	assert.Equal(t, 5, tracker.Current())

	tracker.Set(-3, "")
	assert.Equal(t, 0, tracker.Current())
}

func TestTrackerNilCallback(t *testing.T) {
	tracker := NewTracker(2, "silent", nil)
	tracker.Update(1, "")
	tracker.Finish("")
	assert.Equal(t, 2, tracker.Current())
}
