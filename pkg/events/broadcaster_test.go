package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraph-labs/justify/pkg/justify"
)

func TestBroadcaster_LatestProgress_NoneSeenYet(t *testing.T) {
	b := NewBroadcaster()

	_, ok := b.LatestProgress("run-1")
	assert.False(t, ok)
}

func TestBroadcaster_PublishRecordsLatest(t *testing.T) {
	b := NewBroadcaster()

	b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseBuildingContext, Total: 10})
	b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseInferring, Current: 3, Total: 10})

	ev, ok := b.LatestProgress("run-1")
	require.True(t, ok)
	assert.Equal(t, justify.PhaseInferring, ev.Phase)
	assert.Equal(t, 3, ev.Current)
}

func TestBroadcaster_LatestProgressIsPerRun(t *testing.T) {
	b := NewBroadcaster()

	b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseStoring})
	_, ok := b.LatestProgress("run-2")
	assert.False(t, ok)
}

func TestBroadcaster_OnProgressBindsToRunID(t *testing.T) {
	b := NewBroadcaster()

	fn := b.OnProgress("run-1")
	fn(justify.ProgressEvent{Phase: justify.PhasePropagating, Message: "propagating"})

	ev, ok := b.LatestProgress("run-1")
	require.True(t, ok)
	assert.Equal(t, "propagating", ev.Message)
}

func TestBroadcaster_SubscribeReceivesPublishedEvents(t *testing.T) {
	b := NewBroadcaster()

	ch, unsubscribe := b.Subscribe("run-1")
	defer unsubscribe()

	b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseInferring, Current: 1, Total: 5})

	select {
	case ev := <-ch:
		assert.Equal(t, justify.PhaseInferring, ev.Phase)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed event")
	}
}

func TestBroadcaster_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster()

	ch, unsubscribe := b.Subscribe("run-1")
	unsubscribe()

	b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseStoring})

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel should be closed or empty after unsubscribe")
	default:
	}
}

func TestBroadcaster_PublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewBroadcaster()

	_, unsubscribe := b.Subscribe("run-1")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseInferring, Current: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestBroadcaster_ForgetClearsState(t *testing.T) {
	b := NewBroadcaster()

	b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseStoring})
	b.Forget("run-1")

	_, ok := b.LatestProgress("run-1")
	assert.False(t, ok)
}

func TestBroadcaster_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := NewBroadcaster()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Publish("run-1", justify.ProgressEvent{Phase: justify.PhaseInferring, Current: n})
		}(i)
	}
	wg.Wait()

	_, ok := b.LatestProgress("run-1")
	assert.True(t, ok)
}
