package call

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Collab/internal/domain"
)

func stateRecorder(t *testing.T, h *hub.Hub) func() []domain.SessionState {
	t.Helper()
	s := h.Subscribe(32, TopicStateChanged)
	t.Cleanup(func() { h.Unsubscribe(s) })
	return func() []domain.SessionState {
		var out []domain.SessionState
		for {
			select {
			case msg := <-s.Receiver:
				out = append(out, msg.Fields["state"].(domain.SessionState))
			default:
				return out
			}
		}
	}
}

func hasParticipant(roster []domain.Participant, want domain.Participant) bool {
	for _, p := range roster {
		if p == want {
			return true
		}
	}
	return false
}

func TestController_Start(t *testing.T) {
	t.Parallel()

	t.Run("joins and admits present peers", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{{PeerID: "u2", Kind: domain.MediaVideo}}
		c := NewController(ft, Options{AppID: "app"})

		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		assert.Equal(t, domain.SessionActive, c.State())
		assert.Equal(t, []domain.Participant{{PeerID: "u2", HasVideo: true}}, c.Roster())
		assert.Len(t, c.LocalTracks(), 2)
		require.NoError(t, c.Stop(context.Background()))
	})

	t.Run("skips itself in the snapshot", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{
			{PeerID: "u1", Kind: domain.MediaAudio},
			{PeerID: "u2", Kind: domain.MediaAudio},
		}
		c := NewController(ft, Options{})

		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		assert.Equal(t, []domain.Participant{{PeerID: "u2", HasAudio: true}}, c.Roster())
		assert.Zero(t, ft.subscribeCount("u1", domain.MediaAudio))
		require.NoError(t, c.Stop(context.Background()))
	})

	t.Run("one failing peer does not block the rest", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{
			{PeerID: "u2", Kind: domain.MediaVideo},
			{PeerID: "u3", Kind: domain.MediaVideo},
		}
		ft.subErr["u2"] = errors.New("no route")
		c := NewController(ft, Options{})

		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		assert.Equal(t, domain.SessionActive, c.State())
		assert.Equal(t, []domain.Participant{{PeerID: "u3", HasVideo: true}}, c.Roster())
		require.NoError(t, c.Stop(context.Background()))
	})

	t.Run("second start is rejected", func(t *testing.T) {
		t.Parallel()
		c := NewController(newFakeTransport(), Options{})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		err := c.Start(context.Background(), "room1", "u1")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		require.NoError(t, c.Stop(context.Background()))

		err = c.Start(context.Background(), "room1", "u1")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("invalid ids keep the session idle", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		c := NewController(ft, Options{})

		assert.ErrorIs(t, c.Start(context.Background(), "", "u1"), domain.ErrChannelIDEmpty)
		assert.ErrorIs(t, c.Start(context.Background(), "room1", ""), domain.ErrPeerIDEmpty)
		assert.Equal(t, domain.SessionIdle, c.State())
		assert.Zero(t, ft.joins)
	})

	t.Run("self view attaches after acquisition", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		c := NewController(ft, Options{})
		c.RegisterLocalRenderTarget(nopTarget{})

		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		var video *fakeLocalTrack
		for _, tr := range c.LocalTracks() {
			if tr.Kind() == domain.MediaVideo {
				video = tr.(*fakeLocalTrack)
			}
		}
		require.NotNil(t, video)
		assert.Equal(t, nopTarget{}, video.attached())
		require.NoError(t, c.Stop(context.Background()))
	})
}

func TestController_Failures(t *testing.T) {
	t.Parallel()

	t.Run("join failure", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.joinErr = errors.New("bad credentials")
		h := hub.New()
		states := stateRecorder(t, h)
		c := NewController(ft, Options{Hub: h})

		err := c.Start(context.Background(), "room1", "u1")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrJoin)
		assert.True(t, domain.IsFatal(err))
		assert.Equal(t, domain.SessionFailed, c.State())
		assert.ErrorIs(t, c.Err(), domain.ErrJoin)
		assert.Zero(t, ft.leaveCount())
		assert.Empty(t, c.Roster())
		assert.Equal(t, []domain.SessionState{domain.SessionJoining, domain.SessionFailed}, states())
		<-c.Done()
	})

	t.Run("media acquisition failure releases the acquired half", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.acquireErr = errors.New("camera busy")
		ft.partial = true
		c := NewController(ft, Options{})

		err := c.Start(context.Background(), "room1", "u1")

		assert.ErrorIs(t, err, domain.ErrMediaAcquisition)
		assert.Equal(t, domain.SessionFailed, c.State())
		assert.Equal(t, 1, ft.releaseCount("mic"))
		assert.Equal(t, 1, ft.leaveCount())
		assert.Empty(t, c.LocalTracks())
	})

	t.Run("publish failure releases tracks and leaves", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.publishErr = errors.New("ice failed")
		c := NewController(ft, Options{})

		err := c.Start(context.Background(), "room1", "u1")

		assert.ErrorIs(t, err, domain.ErrPublish)
		assert.Equal(t, domain.SessionFailed, c.State())
		assert.Equal(t, 1, ft.releaseCount("mic"))
		assert.Equal(t, 1, ft.releaseCount("cam"))
		assert.Equal(t, 1, ft.leaveCount())

		require.NoError(t, c.Stop(context.Background()))
		assert.Equal(t, domain.SessionFailed, c.State())
		assert.Equal(t, 1, ft.releaseCount("mic"))
	})
}

func TestController_Presence(t *testing.T) {
	t.Parallel()

	t.Run("audio then video for a new peer", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		c := NewController(ft, Options{})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		ft.events <- domain.PresenceEvent{Type: domain.PeerPublished, PeerID: "u3", Kind: domain.MediaAudio}
		ft.events <- domain.PresenceEvent{Type: domain.PeerPublished, PeerID: "u3", Kind: domain.MediaVideo}

		require.Eventually(t, func() bool {
			return hasParticipant(c.Roster(), domain.Participant{PeerID: "u3", HasAudio: true, HasVideo: true})
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, ft.subscribeCount("u3", domain.MediaAudio))
		assert.Equal(t, 1, ft.subscribeCount("u3", domain.MediaVideo))
		require.NoError(t, c.Stop(context.Background()))
	})

	t.Run("snapshot and event for the same peer subscribe once", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{{PeerID: "u2", Kind: domain.MediaVideo}}
		ft.events <- domain.PresenceEvent{Type: domain.PeerPublished, PeerID: "u2", Kind: domain.MediaVideo}
		c := NewController(ft, Options{})

		require.NoError(t, c.Start(context.Background(), "room1", "u1"))
		require.Eventually(t, func() bool {
			return len(c.Roster()) == 1
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, c.Stop(context.Background()))

		assert.Equal(t, 1, ft.subscribeCount("u2", domain.MediaVideo))
	})

	t.Run("three present, one joins, one leaves", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{
			{PeerID: "a", Kind: domain.MediaVideo},
			{PeerID: "b", Kind: domain.MediaVideo},
			{PeerID: "c", Kind: domain.MediaVideo},
		}
		c := NewController(ft, Options{})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))
		require.Len(t, c.Roster(), 3)

		ft.events <- domain.PresenceEvent{Type: domain.PeerPublished, PeerID: "d", Kind: domain.MediaVideo}
		ft.events <- domain.PresenceEvent{Type: domain.PeerUnpublished, PeerID: "b"}

		require.Eventually(t, func() bool {
			r := c.Roster()
			return len(r) == 3 &&
				hasParticipant(r, domain.Participant{PeerID: "a", HasVideo: true}) &&
				hasParticipant(r, domain.Participant{PeerID: "c", HasVideo: true}) &&
				hasParticipant(r, domain.Participant{PeerID: "d", HasVideo: true})
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, c.Stop(context.Background()))
	})

	t.Run("partial unpublish clears one kind", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{
			{PeerID: "a", Kind: domain.MediaAudio},
			{PeerID: "a", Kind: domain.MediaVideo},
		}
		c := NewController(ft, Options{})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		ft.events <- domain.PresenceEvent{Type: domain.PeerUnpublished, PeerID: "a", Kind: domain.MediaAudio}
		require.Eventually(t, func() bool {
			return hasParticipant(c.Roster(), domain.Participant{PeerID: "a", HasVideo: true})
		}, time.Second, 5*time.Millisecond)

		ft.events <- domain.PresenceEvent{Type: domain.PeerUnpublished, PeerID: "a", Kind: domain.MediaVideo}
		require.Eventually(t, func() bool {
			return len(c.Roster()) == 0
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, c.Stop(context.Background()))
	})
}

func TestController_Stop(t *testing.T) {
	t.Parallel()

	t.Run("active session closes cleanly", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{{PeerID: "u2", Kind: domain.MediaAudio}}
		h := hub.New()
		states := stateRecorder(t, h)
		c := NewController(ft, Options{Hub: h})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		require.NoError(t, c.Stop(context.Background()))

		assert.Equal(t, []domain.SessionState{
			domain.SessionJoining,
			domain.SessionActive,
			domain.SessionLeaving,
			domain.SessionClosed,
		}, states())
		assert.Empty(t, c.Roster())
		assert.Empty(t, c.LocalTracks())
		assert.Equal(t, 1, ft.leaveCount())
	})

	t.Run("double stop releases once", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		c := NewController(ft, Options{})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		require.NoError(t, c.Stop(context.Background()))
		require.NoError(t, c.Stop(context.Background()))

		assert.Equal(t, 1, ft.releaseCount("mic"))
		assert.Equal(t, 1, ft.releaseCount("cam"))
		assert.Equal(t, 1, ft.leaveCount())
		assert.Equal(t, domain.SessionClosed, c.State())
	})

	t.Run("concurrent stops release once", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		c := NewController(ft, Options{})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		errs := make(chan error, 4)
		for range 4 {
			go func() { errs <- c.Stop(context.Background()) }()
		}
		for range 4 {
			require.NoError(t, <-errs)
		}

		assert.Equal(t, 1, ft.releaseCount("mic"))
		assert.Equal(t, 1, ft.leaveCount())
	})

	t.Run("stop while joining never reaches active", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		entered := make(chan struct{})
		ft.publishHook = func(ctx context.Context) error {
			close(entered)
			<-ctx.Done()
			return ctx.Err()
		}
		h := hub.New()
		states := stateRecorder(t, h)
		c := NewController(ft, Options{Hub: h})

		startErr := make(chan error, 1)
		go func() { startErr <- c.Start(context.Background(), "room1", "u1") }()
		<-entered

		require.NoError(t, c.Stop(context.Background()))
		err := <-startErr

		assert.ErrorIs(t, err, domain.ErrSessionClosed)
		assert.Nil(t, c.Err())
		assert.Equal(t, domain.SessionClosed, c.State())
		assert.Equal(t, []domain.SessionState{
			domain.SessionJoining,
			domain.SessionLeaving,
			domain.SessionClosed,
		}, states())
		assert.Equal(t, 1, ft.releaseCount("mic"))
		assert.Equal(t, 1, ft.releaseCount("cam"))
		assert.Empty(t, c.LocalTracks())
	})

	t.Run("lost presence stream closes the session", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		ft.present = []domain.PeerTrack{{PeerID: "u2", Kind: domain.MediaAudio}}
		c := NewController(ft, Options{})
		require.NoError(t, c.Start(context.Background(), "room1", "u1"))

		close(ft.events)

		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("session did not end")
		}
		assert.Equal(t, domain.SessionClosed, c.State())
		assert.Nil(t, c.Err())
		assert.Empty(t, c.Roster())
		assert.Equal(t, 1, ft.releaseCount("mic"))
		require.NoError(t, c.Stop(context.Background()))
	})

	t.Run("stop before start closes", func(t *testing.T) {
		t.Parallel()
		ft := newFakeTransport()
		c := NewController(ft, Options{})

		require.NoError(t, c.Stop(context.Background()))

		assert.Equal(t, domain.SessionClosed, c.State())
		assert.Zero(t, ft.leaveCount())
		assert.ErrorIs(t, c.Start(context.Background(), "room1", "u1"), domain.ErrInvalidState)
	})
}
