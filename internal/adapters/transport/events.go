package transport

import (
	"sync"

	"github.com/dkeye/Collab/internal/domain"
)

// eventQueue buffers presence events without bound from Join until a
// consumer drains them, so nothing published before the consumer
// attached is lost.
type eventQueue struct {
	mu     sync.Mutex
	items  []domain.PresenceEvent
	closed bool
	wake   chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev domain.PresenceEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// take pops everything queued. done reports a closed and drained queue.
func (q *eventQueue) take() (items []domain.PresenceEvent, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items, q.items = q.items, nil
	return items, q.closed && len(items) == 0
}

// stream delivers the queue on a channel until stop is closed or the
// queue is closed and drained.
func (q *eventQueue) stream(stop <-chan struct{}) <-chan domain.PresenceEvent {
	out := make(chan domain.PresenceEvent)
	go func() {
		defer close(out)
		for {
			items, done := q.take()
			if done {
				return
			}
			for i, ev := range items {
				select {
				case out <- ev:
				case <-stop:
					q.requeue(items[i:])
					return
				}
			}
			if len(items) > 0 {
				continue
			}
			select {
			case <-q.wake:
			case <-stop:
				return
			}
		}
	}()
	return out
}

// requeue puts undelivered events back in front.
func (q *eventQueue) requeue(items []domain.PresenceEvent) {
	q.mu.Lock()
	q.items = append(append([]domain.PresenceEvent(nil), items...), q.items...)
	q.mu.Unlock()
}
