package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

// peerConnection returns the session PeerConnection, creating it on first use.
func (c *Client) peerConnection() (*webrtc.PeerConnection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.left {
		return nil, ErrClosed
	}
	if c.pc != nil {
		return c.pc, nil
	}

	cfg := webrtc.Configuration{}
	if len(c.opts.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: c.opts.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	connected, failed := make(chan struct{}), make(chan struct{})
	var connectedOnce, failedOnce sync.Once
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		switch s {
		case webrtc.PeerConnectionStateConnected:
			connectedOnce.Do(func() { close(connected) })
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			failedOnce.Do(func() { close(failed) })
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.onTrack(track)
	})

	c.pc = pc
	c.connected = connected
	c.failed = failed
	return pc, nil
}

// Publish adds the local tracks and runs one non-trickle offer/answer,
// then waits for the media connection to come up.
func (c *Client) Publish(ctx context.Context, tracks []core.LocalTrack) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	c.negotiation.Lock()
	defer c.negotiation.Unlock()

	pc, err := c.peerConnection()
	if err != nil {
		return err
	}
	for _, t := range tracks {
		lt, ok := t.(*localTrack)
		if !ok {
			return fmt.Errorf("%w: %s", ErrForeignTrack, t.ID())
		}
		sender, err := pc.AddTrack(lt.track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", lt.kind, err)
		}
		c.bg.Go(func() { drainRTCP(sender) })
	}
	if len(tracks) == 0 {
		// An offer needs at least one media section to start ICE.
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return err
		}
	}

	offer, err := c.localDescription(ctx, pc, true)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	var answer protocol.SessionDescription
	if err := c.call(ctx, id, protocol.SessionDescription{Type: protocol.TypeOffer, ID: id, SDP: offer.SDP}, &answer); err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}

	c.mu.Lock()
	connected, failed := c.connected, c.failed
	c.mu.Unlock()
	select {
	case <-connected:
		c.logger.Info().Int("tracks", len(tracks)).Msg("published")
		return nil
	case <-failed:
		return ErrMediaFailed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// localDescription creates an offer or answer and waits for ICE gathering.
func (c *Client) localDescription(ctx context.Context, pc *webrtc.PeerConnection, offer bool) (*webrtc.SessionDescription, error) {
	var (
		sd   webrtc.SessionDescription
		err  error
		what = "answer"
	)
	if offer {
		what = "offer"
		sd, err = pc.CreateOffer(nil)
	} else {
		sd, err = pc.CreateAnswer(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", what, err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(sd); err != nil {
		return nil, fmt.Errorf("set local %s: %w", what, err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return pc.LocalDescription(), nil
}

// answerServerOffer completes a renegotiation started by the server.
func (c *Client) answerServerOffer(sdp string) {
	c.negotiation.Lock()
	defer c.negotiation.Unlock()

	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	if pc == nil {
		c.logger.Warn().Msg("server offer without peer connection")
		return
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		c.logger.Error().Err(err).Msg("set remote offer")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
	defer cancel()
	answer, err := c.localDescription(ctx, pc, false)
	if err != nil {
		c.logger.Error().Err(err).Msg("answer server offer")
		return
	}
	if err := c.send(protocol.SessionDescription{Type: protocol.TypeAnswer, SDP: answer.SDP}); err != nil {
		c.logger.Error().Err(err).Msg("send answer")
	}
}

// Subscribe asks the server to forward (peer, kind). The returned track
// is bound to the media stream once the renegotiated track arrives.
func (c *Client) Subscribe(ctx context.Context, peerID domain.PeerID, kind domain.MediaKind) (core.RemoteTrack, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("subscribe: invalid kind %q", kind)
	}
	key := domain.PeerTrack{PeerID: peerID, Kind: kind}
	rt := newRemoteTrack(key, c.logger)
	rt.audioOut = c.opts.AudioOutput
	rt.onStop = c.forgetRemote

	c.mu.Lock()
	if c.ws == nil || c.left {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.remotes[key] = rt
	c.mu.Unlock()

	id := uuid.NewString()
	err := c.call(ctx, id, protocol.SubscribeRequest{Type: protocol.TypeSubscribe, ID: id, Peer: peerID, Kind: kind}, nil)
	if err != nil {
		c.mu.Lock()
		if c.remotes[key] == rt {
			delete(c.remotes, key)
		}
		c.mu.Unlock()
		return nil, err
	}
	return rt, nil
}

func (c *Client) onTrack(track *webrtc.TrackRemote) {
	key := domain.PeerTrack{PeerID: domain.PeerID(track.StreamID()), Kind: domain.MediaKind(track.Kind().String())}
	c.mu.Lock()
	rt := c.remotes[key]
	c.mu.Unlock()
	if rt == nil {
		c.logger.Debug().Str("stream_id", track.StreamID()).Str("kind", track.Kind().String()).Msg("track without subscription")
		return
	}
	rt.bind(trackRemoteReader{t: track})
}

// forgetRemote drops a stopped track and tells the server, unless the
// whole session is going away anyway. The request is written before
// returning so a later subscribe of the same stream is ordered after it.
func (c *Client) forgetRemote(rt *remoteTrack) {
	c.mu.Lock()
	current := c.remotes[rt.key] == rt
	if current {
		delete(c.remotes, rt.key)
	}
	left := c.left
	c.mu.Unlock()
	if left || !current {
		return
	}
	err := c.send(protocol.SubscribeRequest{
		Type: protocol.TypeUnsubscribe,
		ID:   uuid.NewString(),
		Peer: rt.key.PeerID,
		Kind: rt.key.Kind,
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("peer", string(rt.key.PeerID)).Msg("unsubscribe")
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
