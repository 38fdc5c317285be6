package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	var got []Event
	require.NoError(t, bus.Subscribe(ctx, EscrowChannel, func(e Event) { got = append(got, e) }))
	require.NoError(t, bus.Subscribe(context.Background(), "other", func(Event) { t.Error("wrong stream") }))

	require.NoError(t, bus.Publish(context.Background(), EscrowChannel, Event{Type: EventEscrowFunded}))
	require.Len(t, got, 1)
	assert.Equal(t, EventEscrowFunded, got[0].Type)

	cancel()
	assert.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.handlers[EscrowChannel]) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), EscrowChannel, Event{Type: EventEscrowReleased}))
	assert.Len(t, got, 1)
}
