package pipeline

import (
	"strings"
	"sync"
)

// EventBroker fans run snapshots out to watchers. Subscriptions of a run
// are closed once its terminal snapshot has been published.
type EventBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan Snapshot]struct{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[string]map[chan Snapshot]struct{})}
}

// Subscribe registers a watcher for runID. The returned func unsubscribes;
// calling it after the channel was closed is harmless.
func (b *EventBroker) Subscribe(runID string, size int) (<-chan Snapshot, func()) {
	if size <= 0 {
		size = 1
	}
	runID = strings.TrimSpace(runID)
	ch := make(chan Snapshot, size)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[chan Snapshot]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[runID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(b.subs, runID)
			}
		}
	}
}

// Publish delivers snap to every watcher of its run. A watcher whose buffer
// is full misses intermediate snapshots; the terminal one evicts the oldest
// pending snapshot so it is always delivered.
func (b *EventBroker) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set := b.subs[snap.ID]
	for ch := range set {
		select {
		case ch <- snap:
		default:
			if snap.Terminal() {
				select {
				case <-ch:
				default:
				}
				ch <- snap
			}
		}
	}
	if snap.Terminal() {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, snap.ID)
	}
}
