package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	"github.com/hospitalcare/appointments/internal/domain/providers"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetDoctorChannel("doc-1")
	events, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	event := &entities.AppointmentEvent{ID: "e1", DoctorID: "doc-1", EventType: entities.AppointmentEventBooked}
	require.NoError(t, bus.Publish(context.Background(), channel, event))
	require.NoError(t, bus.Publish(context.Background(), providers.GetDoctorChannel("doc-2"), &entities.AppointmentEvent{ID: "other"}))

	select {
	case got := <-events:
		assert.Equal(t, "e1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case got := <-events:
		t.Fatalf("unexpected event %s", got.ID)
	default:
	}
}

func TestMemoryEventBus_ContextCancelClosesChannel(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.NoError(t, bus.Close())
}
