package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish(TrackerRemoved, TrackerRemovedEvent{ID: "src-1", Reason: "deleted", Ts: 42})

	for _, ch := range []chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, TrackerRemoved, ev.Name)
		payload, err := DecodeAs[TrackerRemovedEvent](ev)
		require.NoError(t, err)
		assert.Equal(t, "src-1", payload.ID)
		assert.Equal(t, "deleted", payload.Reason)
	}

	h.Unsubscribe(a)
	_, ok := <-a
	assert.False(t, ok, "unsubscribed channel is closed")

	// Unsubscribing twice is harmless.
	h.Unsubscribe(a)
	h.Unsubscribe(b)
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	for i := 0; i < 100; i++ {
		h.Publish(TrackerExhausted, TrackerExhaustedEvent{Steps: i})
	}
	assert.Len(t, ch, cap(ch))
}

func TestNilHubPublish(t *testing.T) {
	var h *EventHub
	assert.NotPanics(t, func() { h.Publish(TrackerExhausted, nil) })
}

func TestDecodeAsEmpty(t *testing.T) {
	v, err := DecodeAs[TrackerExhaustedEvent](Event{Name: TrackerExhausted})
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = DecodeAs[TrackerExhaustedEvent](Event{Data: []byte("{")})
	assert.Error(t, err)
}

func TestHubClose(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	h.Close()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers())

	late := h.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")

	h.Close()
}
