package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterEvents(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := make([]Event, 5)
	for i := range events {
		events[i] = Event{ID: string(rune('a' + i)), Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}

	t.Run("NilOptionsKeepEverything", func(t *testing.T) {
		assert.Equal(t, events, FilterEvents(events, nil))
	})

	t.Run("AfterDropsOlderEvents", func(t *testing.T) {
		got := FilterEvents(events, &GetOptions{After: base.Add(2 * time.Minute)})
		assert.Len(t, got, 3)
		assert.Equal(t, "c", got[0].ID)
	})

	t.Run("AfterIsInclusive", func(t *testing.T) {
		got := FilterEvents(events, &GetOptions{After: base})
		assert.Len(t, got, 5)
	})

	t.Run("NumRecentKeepsTail", func(t *testing.T) {
		got := FilterEvents(events, &GetOptions{NumRecentEvents: 2})
		assert.Equal(t, []string{"d", "e"}, []string{got[0].ID, got[1].ID})
	})

	t.Run("AfterThenNumRecent", func(t *testing.T) {
		got := FilterEvents(events, &GetOptions{After: base.Add(time.Minute), NumRecentEvents: 1})
		assert.Len(t, got, 1)
		assert.Equal(t, "e", got[0].ID)
	})

	t.Run("AfterBeyondLedgerReturnsEmpty", func(t *testing.T) {
		got := FilterEvents(events, &GetOptions{After: base.Add(time.Hour)})
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}
