// Package events delivers justify.ProgressEvent notifications (spec.md §6)
// to interested subscribers within a single pod.
//
// The teacher's pkg/events is a WebSocket + Postgres NOTIFY/LISTEN hub built
// for a browser dashboard watching live timeline events across pods. This
// spec has no dashboard and no cross-pod fan-out requirement — a run is
// always executed by exactly one pod's worker, and progress is "purely
// informational; it must not affect control flow" (spec.md §6). What
// survives from the teacher's design is the core idiom: a registry keyed by
// channel (here, run ID) holding a set of subscribers, guarded by a mutex,
// fed by a single Publish call per event.
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/codegraph-labs/justify/pkg/justify"
)

// subscriberBuffer bounds how many unconsumed events a slow subscriber can
// accumulate before new ones are dropped. Progress is informational, so a
// full buffer drops the event rather than blocking the publisher.
const subscriberBuffer = 32

// Broadcaster fans out progress events for in-flight runs to subscribers
// within this pod, and remembers the latest event per run for callers that
// poll instead of subscribing (e.g. the API's run-status response).
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[string]map[string]chan justify.ProgressEvent
	latest  map[string]justify.ProgressEvent
	hasSeen map[string]bool
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs:    make(map[string]map[string]chan justify.ProgressEvent),
		latest:  make(map[string]justify.ProgressEvent),
		hasSeen: make(map[string]bool),
	}
}

// OnProgress returns a justify.ProgressFunc bound to runID, suitable for
// plugging directly into justify.Options.OnProgress. It records the latest
// event for LatestProgress and fans out to any live subscribers.
func (b *Broadcaster) OnProgress(runID string) justify.ProgressFunc {
	return func(ev justify.ProgressEvent) {
		b.Publish(runID, ev)
	}
}

// Publish records ev as the latest event for runID and delivers it to every
// live subscriber for that run. Never blocks: a subscriber whose buffer is
// full simply misses the event.
func (b *Broadcaster) Publish(runID string, ev justify.ProgressEvent) {
	b.mu.Lock()
	b.latest[runID] = ev
	b.hasSeen[runID] = true
	subs := b.subs[runID]
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// LatestProgress returns the most recent event published for runID, if any.
func (b *Broadcaster) LatestProgress(runID string) (justify.ProgressEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.hasSeen[runID]
	return b.latest[runID], ev
}

// Subscribe registers a new listener for runID's progress events. The
// returned channel delivers events until unsubscribe is called; callers
// must call unsubscribe to release the subscription.
func (b *Broadcaster) Subscribe(runID string) (ch <-chan justify.ProgressEvent, unsubscribe func()) {
	id := uuid.NewString()
	out := make(chan justify.ProgressEvent, subscriberBuffer)

	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[string]chan justify.ProgressEvent)
	}
	b.subs[runID][id] = out
	b.mu.Unlock()

	return out, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[runID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(b.subs, runID)
			}
		}
	}
}

// Forget drops any retained latest-event state for runID. Called once a run
// reaches a terminal state and its progress is no longer useful to poll.
func (b *Broadcaster) Forget(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.latest, runID)
	delete(b.hasSeen, runID)
	delete(b.subs, runID)
}
