package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Collab/internal/domain"
)

func published(peer domain.PeerID, kind domain.MediaKind) domain.PresenceEvent {
	return domain.PresenceEvent{Type: domain.PeerPublished, PeerID: peer, Kind: kind}
}

func receive(t *testing.T, ch <-chan domain.PresenceEvent) domain.PresenceEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return domain.PresenceEvent{}
	}
}

func TestEventQueue_BuffersBeforeConsumer(t *testing.T) {
	q := newEventQueue()
	q.push(published("alice", domain.MediaAudio))
	q.push(published("bob", domain.MediaVideo))

	stop := make(chan struct{})
	defer close(stop)
	ch := q.stream(stop)
	assert.Equal(t, published("alice", domain.MediaAudio), receive(t, ch))
	assert.Equal(t, published("bob", domain.MediaVideo), receive(t, ch))

	q.push(published("carol", domain.MediaAudio))
	assert.Equal(t, published("carol", domain.MediaAudio), receive(t, ch))
}

func TestEventQueue_StopRequeues(t *testing.T) {
	q := newEventQueue()
	q.push(published("alice", domain.MediaAudio))
	q.push(published("bob", domain.MediaAudio))

	stop := make(chan struct{})
	ch := q.stream(stop)
	assert.Equal(t, published("alice", domain.MediaAudio), receive(t, ch))
	close(stop)

	var got []domain.PresenceEvent
	require.Eventually(t, func() bool {
		items, _ := q.take()
		got = append(got, items...)
		return len(got) > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []domain.PresenceEvent{published("bob", domain.MediaAudio)}, got)
}

func TestEventQueue_CloseEndsStream(t *testing.T) {
	q := newEventQueue()
	q.push(published("alice", domain.MediaAudio))
	q.close()
	q.push(published("bob", domain.MediaAudio))

	stop := make(chan struct{})
	defer close(stop)
	ch := q.stream(stop)
	assert.Equal(t, published("alice", domain.MediaAudio), receive(t, ch))
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "events pushed after close are dropped")
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}
}
