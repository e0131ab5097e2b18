// Package transport is the client side media transport: signaling over a
// websocket to the channel server and media over one pion PeerConnection.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/dkeye/Collab/internal/protocol"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	writeWait             = 5 * time.Second
)

var (
	ErrNotConnected  = errors.New("transport not connected")
	ErrClosed        = errors.New("transport closed")
	ErrAlreadyJoined = errors.New("transport already joined")
	ErrForeignTrack  = errors.New("track not acquired by this transport")
	ErrMediaFailed   = errors.New("media connection failed")
)

// RemoteError is an error reply of the channel server.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "server: " + e.Code
	}
	return fmt.Sprintf("server: %s: %s", e.Code, e.Message)
}

type Options struct {
	ServerURL   string
	Header      http.Header
	Dialer      *websocket.Dialer
	DisplayName string
	ICEServers  []string
	// RequestTimeout bounds every request unless ctx expires earlier.
	RequestTimeout time.Duration

	// AudioSource is an Ogg/Opus file; empty publishes silence.
	AudioSource string
	// VideoSource is an IVF/VP8 file; empty publishes no camera.
	VideoSource string
	// AudioOutput opens the output of one remote audio stream. Nil discards.
	AudioOutput func(peer domain.PeerID) (core.RenderTarget, error)
}

// Client implements core.MediaTransport. One Client serves one session.
type Client struct {
	opts   Options
	logger zerolog.Logger
	events *eventQueue

	mu        sync.Mutex
	ws        *websocket.Conn
	readDone  chan struct{}
	pending   map[string]chan []byte
	pc        *webrtc.PeerConnection
	connected chan struct{}
	failed    chan struct{}
	remotes   map[domain.PeerTrack]*remoteTrack
	locals    map[string]*localTrack
	selfID    domain.PeerID
	left      bool

	writeMu sync.Mutex
	// negotiation serializes offer/answer rounds on the PeerConnection.
	negotiation sync.Mutex
	bg          conc.WaitGroup
}

var _ core.MediaTransport = (*Client)(nil)

func New(opts Options) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{
		opts:    opts,
		logger:  log.With().Str("module", "transport").Logger(),
		events:  newEventQueue(),
		pending: make(map[string]chan []byte),
		remotes: make(map[domain.PeerTrack]*remoteTrack),
		locals:  make(map[string]*localTrack),
	}
}

func (c *Client) Join(ctx context.Context, appID string, channelID domain.ChannelID, token string, selfID domain.PeerID) error {
	c.mu.Lock()
	if c.ws != nil || c.left {
		c.mu.Unlock()
		return ErrAlreadyJoined
	}
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	ws, _, err := c.opts.Dialer.DialContext(dialCtx, c.opts.ServerURL, c.opts.Header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.ServerURL, err)
	}

	readDone := make(chan struct{})
	c.mu.Lock()
	c.ws = ws
	c.readDone = readDone
	c.selfID = selfID
	c.logger = c.logger.With().Str("channel", string(channelID)).Str("self", string(selfID)).Logger()
	c.mu.Unlock()
	go c.readLoop(ws, readDone)

	id := uuid.NewString()
	var joined protocol.Joined
	err = c.call(ctx, id, protocol.JoinRequest{
		Type:    protocol.TypeJoin,
		ID:      id,
		AppID:   appID,
		Channel: channelID,
		Token:   token,
		Peer:    selfID,
		Name:    c.opts.DisplayName,
	}, &joined)
	if err != nil {
		c.closeSignal()
		c.mu.Lock()
		c.ws, c.readDone = nil, nil
		c.mu.Unlock()
		return err
	}
	c.logger.Info().Int("members", joined.Count).Msg("joined channel")
	return nil
}

func (c *Client) AcquireLocalTracks(ctx context.Context) (core.LocalTracks, error) {
	var tracks core.LocalTracks
	if err := ctx.Err(); err != nil {
		return tracks, err
	}
	c.mu.Lock()
	stream := string(c.selfID)
	c.mu.Unlock()

	var audioSrc source = silenceSource{}
	if c.opts.AudioSource != "" {
		s, err := openOgg(c.opts.AudioSource)
		if err != nil {
			return tracks, fmt.Errorf("microphone %s: %w", c.opts.AudioSource, err)
		}
		audioSrc = s
	}
	audio, err := c.newLocal(domain.MediaAudio, stream, audioSrc)
	if err != nil {
		return tracks, err
	}
	tracks.Audio = audio

	if c.opts.VideoSource == "" {
		return tracks, nil
	}
	videoSrc, err := openIVF(c.opts.VideoSource)
	if err != nil {
		return tracks, fmt.Errorf("camera %s: %w", c.opts.VideoSource, err)
	}
	video, err := c.newLocal(domain.MediaVideo, stream, videoSrc)
	if err != nil {
		return tracks, err
	}
	tracks.Video = video
	return tracks, nil
}

func (c *Client) newLocal(kind domain.MediaKind, stream string, src source) (*localTrack, error) {
	t, err := newLocalTrack(kind, stream, c.logger)
	if err != nil {
		_ = src.close()
		return nil, err
	}
	t.start(src)
	c.mu.Lock()
	c.locals[t.id] = t
	c.mu.Unlock()
	return t, nil
}

func (c *Client) ReleaseTrack(track core.LocalTrack) {
	t, ok := track.(*localTrack)
	if !ok {
		return
	}
	t.stop()
	c.mu.Lock()
	delete(c.locals, t.id)
	c.mu.Unlock()
}

func (c *Client) Events() (<-chan domain.PresenceEvent, func()) {
	stop := make(chan struct{})
	return c.events.stream(stop), sync.OnceFunc(func() { close(stop) })
}

func (c *Client) EnumeratePresentPeers(ctx context.Context) ([]domain.PeerTrack, error) {
	id := uuid.NewString()
	var peers protocol.Peers
	if err := c.call(ctx, id, protocol.Ack{Type: protocol.TypePeers, ID: id}, &peers); err != nil {
		return nil, err
	}
	return peers.Tracks, nil
}

// Leave tells the server, closes media and signaling and stops every
// remote track. Safe to call more than once.
func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.left {
		c.mu.Unlock()
		return nil
	}
	c.left = true
	joined := c.ws != nil
	remotes := make([]*remoteTrack, 0, len(c.remotes))
	for _, rt := range c.remotes {
		remotes = append(remotes, rt)
	}
	c.mu.Unlock()

	var err error
	if joined {
		id := uuid.NewString()
		if err = c.call(ctx, id, protocol.Ack{Type: protocol.TypeLeave, ID: id}, nil); err != nil {
			err = fmt.Errorf("leave: %w", err)
		}
	}
	for _, rt := range remotes {
		rt.Stop()
	}

	c.mu.Lock()
	pc := c.pc
	c.pc = nil
	c.mu.Unlock()
	if pc != nil {
		if cerr := pc.Close(); cerr != nil {
			c.logger.Warn().Err(cerr).Msg("close peer connection")
		}
	}
	c.closeSignal()
	c.bg.Wait()
	c.events.close()
	c.logger.Info().Msg("left channel")
	return err
}

func (c *Client) closeSignal() {
	c.mu.Lock()
	ws, done := c.ws, c.readDone
	c.mu.Unlock()
	if ws == nil {
		return
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	_ = ws.Close()
	<-done
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn().Err(err).Msg("signal read error")
			}
			c.events.close()
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn().Err(err).Msg("bad json from server")
		return
	}
	if env.ID != "" {
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		c.mu.Unlock()
		if ok {
			select {
			case ch <- data:
			default:
			}
			return
		}
	}

	switch env.Type {
	case protocol.TypePeerPublished, protocol.TypePeerUnpublished:
		var ev domain.PresenceEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn().Err(err).Msg("bad presence event")
			return
		}
		c.events.push(ev)
	case protocol.TypeOffer:
		var sd protocol.SessionDescription
		if err := json.Unmarshal(data, &sd); err != nil {
			c.logger.Warn().Err(err).Msg("bad server offer")
			return
		}
		c.bg.Go(func() { c.answerServerOffer(sd.SDP) })
	case protocol.TypeMemberJoined, protocol.TypeMemberLeft, protocol.TypeMemberUpdated:
		var ev protocol.MemberEvent
		if err := json.Unmarshal(data, &ev); err == nil {
			c.logger.Debug().Str("type", env.Type).Str("peer", string(ev.Member.ID)).Msg("member event")
		}
	case protocol.TypeError:
		var e protocol.Error
		_ = json.Unmarshal(data, &e)
		c.logger.Warn().Str("code", e.Code).Str("message", e.Message).Msg("server error")
	default:
		c.logger.Debug().Str("type", env.Type).Msg("unhandled message")
	}
}

// call sends req and waits for the reply carrying the same id.
func (c *Client) call(ctx context.Context, id string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	reply := make(chan []byte, 1)
	c.mu.Lock()
	if c.ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	done := c.readDone
	select {
	case <-done:
		c.mu.Unlock()
		return ErrClosed
	default:
	}
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(req); err != nil {
		return err
	}

	select {
	case data := <-reply:
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		if env.Type == protocol.TypeError {
			var e protocol.Error
			if err := json.Unmarshal(data, &e); err != nil {
				return err
			}
			return &RemoteError{Code: e.Code, Message: e.Message}
		}
		if resp != nil {
			return json.Unmarshal(data, resp)
		}
		return nil
	case <-done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, b)
}
