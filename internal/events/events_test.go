package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusEmitAndSubscribe(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Emit(JobStarted, "bankupdate", map[string]interface{}{"run_id": "r1"})

	select {
	case ev := <-ch:
		assert.Equal(t, JobStarted, ev.Type)
		assert.Equal(t, "bankupdate", ev.Module)
		assert.Equal(t, "r1", ev.Data["run_id"])
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestBusFansOut(t *testing.T) {
	bus := NewBus()
	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Emit(JobCompleted, "score", nil)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, JobCompleted, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed event")
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Emitting after unsubscribe must not panic
	bus.Emit(JobFailed, "resolve", nil)

	// Double cancel is safe
	cancel()
}

func TestBusSlowSubscriberDropsEvents(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	// Fill the buffer and then some; Emit must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Emit(JobProgress, "curate", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow subscriber")
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	require.Greater(t, received, 0)
	assert.LessOrEqual(t, received, 64)
}
