package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/core"
)

var (
	ErrClosed           = errors.New("webrtc connection closed")
	ErrUnexpectedAnswer = errors.New("answer without pending offer")
)

// WebRTCConnection wraps one server side PeerConnection. ICE is not
// trickled: every description is sent after gathering completed.
type WebRTCConnection struct {
	pc      *webrtc.PeerConnection
	sid     core.SessionID
	logger  zerolog.Logger
	cancel  context.CancelFunc
	closed  atomic.Bool
	closing atomic.Bool

	// negotiation serializes offer/answer rounds; answers carries the
	// reply to the pending server offer.
	negotiation sync.Mutex
	answerMu    sync.Mutex
	answers     chan webrtc.SessionDescription

	onTrack   func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onClosed  func()
	closeOnce sync.Once
	done      chan struct{}
}

func DefaultWebRTCConfig(iceServers []string) webrtc.Configuration {
	if len(iceServers) == 0 {
		return webrtc.Configuration{}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: iceServers}},
	}
}

func NewWebRTCConnection(cfg webrtc.Configuration, sid core.SessionID) (*WebRTCConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &WebRTCConnection{
		pc:     pc,
		sid:    sid,
		logger: log.With().Str("module", "webrtc").Str("sid", string(sid)).Logger(),
		done:   make(chan struct{}),
	}, nil
}

func (c *WebRTCConnection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			c.fireClosed()
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if c.onTrack != nil {
			c.onTrack(ctx, track, receiver)
		}
	})

	return nil
}

// ApplyOfferAndCreateAnswer handles a client initiated negotiation.
func (c *WebRTCConnection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	c.negotiation.Lock()
	defer c.negotiation.Unlock()

	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local answer: %w", err)
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

// Renegotiate sends a server offer through send and waits for ApplyAnswer.
func (c *WebRTCConnection) Renegotiate(ctx context.Context, send func(webrtc.SessionDescription) error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.negotiation.Lock()
	defer c.negotiation.Unlock()

	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}

	answers := make(chan webrtc.SessionDescription, 1)
	c.answerMu.Lock()
	c.answers = answers
	c.answerMu.Unlock()
	defer func() {
		c.answerMu.Lock()
		c.answers = nil
		c.answerMu.Unlock()
	}()

	if err := send(*c.pc.LocalDescription()); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	select {
	case answer := <-answers:
		if err := c.pc.SetRemoteDescription(answer); err != nil {
			return fmt.Errorf("set remote answer: %w", err)
		}
		c.logger.Debug().Msg("renegotiated")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// ApplyAnswer completes a pending Renegotiate.
func (c *WebRTCConnection) ApplyAnswer(answer webrtc.SessionDescription) error {
	c.answerMu.Lock()
	defer c.answerMu.Unlock()
	if c.answers == nil {
		return ErrUnexpectedAnswer
	}
	select {
	case c.answers <- answer:
		return nil
	default:
		return ErrUnexpectedAnswer
	}
}

func (c *WebRTCConnection) IsClosed() bool { return c.closed.Load() }

func (c *WebRTCConnection) Close() {
	if !c.closing.CompareAndSwap(false, true) {
		return
	}
	c.closed.Store(true)
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close error")
	} else {
		c.logger.Info().Msg("closed")
	}
	c.fireClosed()
}

func (c *WebRTCConnection) fireClosed() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		if c.onClosed != nil {
			c.onClosed()
		}
	})
}

// OnTrack sets application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

// OnClosed sets application-level callback for cleanup tracks
func (c *WebRTCConnection) OnClosed(fn func()) { c.onClosed = fn }

// AddLocalTrack attaches a local static RTP track to the PeerConnection
// and drains the sender's RTCP so interceptors keep working.
func (c *WebRTCConnection) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return sender, nil
}

func (c *WebRTCConnection) RemoveSender(sender *webrtc.RTPSender) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.pc.RemoveTrack(sender)
}
