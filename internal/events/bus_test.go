package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToTypeSpecificHandler(t *testing.T) {
	b := NewBus(DefaultOptions())
	defer b.Close()

	var mu sync.Mutex
	var got Event
	done := make(chan struct{})

	require.NoError(t, b.Subscribe(EventTypeAggregateCompleted, func(ctx context.Context, e Event) error {
		mu.Lock()
		got = e
		mu.Unlock()
		close(done)
		return nil
	}))

	p := NewPublisher(b)
	require.NoError(t, p.AggregateCompleted(context.Background(), "urn:AM-A"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, EventTypeAggregateCompleted, got.GetType())
}

func TestPublish_DeliversToAllHandler(t *testing.T) {
	b := NewBus(DefaultOptions())
	defer b.Close()

	count := 0
	var mu sync.Mutex
	done := make(chan struct{}, 2)

	require.NoError(t, b.SubscribeAll(func(ctx context.Context, e Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	p := NewPublisher(b)
	require.NoError(t, p.CycleDetected(context.Background(), []string{"urn:AM-A", "urn:AM-B"}))
	require.NoError(t, p.VLANUnavailable(context.Background(), "urn:AM-A", "H1", 102))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("all-handler was not invoked for every event")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}

func TestPublish_AfterClose_Errors(t *testing.T) {
	b := NewBus(DefaultOptions())
	require.NoError(t, b.Close())

	p := NewPublisher(b)
	err := p.AggregateCompleted(context.Background(), "urn:AM-A")
	require.Error(t, err)
}
