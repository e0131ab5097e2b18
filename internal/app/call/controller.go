// Package call drives one LocalSession through its lifecycle:
// idle → joining → active → leaving → closed, or joining → failed.
package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app/roster"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// TopicStateChanged is published on the hub after every state transition.
const TopicStateChanged = "call.state.changed"

const (
	DefaultSubscribeConcurrency = 4
	DefaultLeaveTimeout         = 5 * time.Second
)

type Options struct {
	AppID string
	// Token may be empty when the channel does not require one.
	Token string
	// Hub receives state and roster notifications. Optional.
	Hub                  *hub.Hub
	SubscribeConcurrency int
	LeaveTimeout         time.Duration
}

// Controller owns one LocalSession. Closed and Failed are terminal: a new
// Controller is required to rejoin.
type Controller struct {
	transport core.MediaTransport
	roster    *roster.Coordinator
	opts      Options
	logger    zerolog.Logger

	mu            sync.Mutex
	state         domain.SessionState
	channelID     domain.ChannelID
	selfID        domain.PeerID
	joined        bool
	tracks        core.LocalTracks
	released      bool
	localTarget   core.RenderTarget
	err           error
	stopRequested bool
	tornDown      bool
	cancelJoin    context.CancelFunc
	cancelSession context.CancelFunc
	stopEvents    func()
	eventsDone    chan struct{}
	done          chan struct{}
}

func NewController(transport core.MediaTransport, opts Options) *Controller {
	if opts.SubscribeConcurrency <= 0 {
		opts.SubscribeConcurrency = DefaultSubscribeConcurrency
	}
	if opts.LeaveTimeout <= 0 {
		opts.LeaveTimeout = DefaultLeaveTimeout
	}
	return &Controller{
		transport: transport,
		roster:    roster.New(transport, opts.Hub),
		opts:      opts,
		logger:    log.With().Str("module", "call.controller").Logger(),
		state:     domain.SessionIdle,
		done:      make(chan struct{}),
	}
}

func (c *Controller) State() domain.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Roster returns a read-only snapshot of the remote participants.
func (c *Controller) Roster() []domain.Participant {
	return c.roster.Snapshot()
}

// LocalTracks returns the tracks currently owned by the session.
func (c *Controller) LocalTracks() []core.LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks.List()
}

// Err returns the failure that moved the session to Failed, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the session reached Closed or Failed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) ChannelID() domain.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *Controller) SelfID() domain.PeerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selfID
}

// RegisterRenderTarget tells the session that the tile for a remote peer exists.
func (c *Controller) RegisterRenderTarget(peer domain.PeerID, target core.RenderTarget) {
	c.roster.RegisterRenderTarget(peer, target)
}

func (c *Controller) UnregisterRenderTarget(peer domain.PeerID) {
	c.roster.UnregisterRenderTarget(peer)
}

// RegisterLocalRenderTarget sets the self view. The camera is attached as
// soon as it is acquired; publishing never waits for the self view.
func (c *Controller) RegisterLocalRenderTarget(target core.RenderTarget) {
	c.mu.Lock()
	c.localTarget = target
	video := c.tracks.Video
	c.mu.Unlock()
	if video != nil {
		video.Attach(target)
	}
}

func (c *Controller) Start(ctx context.Context, channelID domain.ChannelID, selfID domain.PeerID) error {
	if err := channelID.Validate(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := selfID.Validate(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	c.mu.Lock()
	if c.state != domain.SessionIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("start in state %s: %w", state, domain.ErrInvalidState)
	}
	joinCtx, cancelJoin := context.WithCancel(ctx)
	sessionCtx, cancelSession := context.WithCancel(context.WithoutCancel(ctx))
	c.cancelJoin = cancelJoin
	c.cancelSession = cancelSession
	c.channelID = channelID
	c.selfID = selfID
	c.logger = c.logger.With().Str("channel", string(channelID)).Str("self", string(selfID)).Logger()
	c.setStateLocked(domain.SessionJoining)
	c.mu.Unlock()
	c.notify(domain.SessionJoining, nil)
	defer cancelJoin()

	if err := c.transport.Join(joinCtx, c.opts.AppID, channelID, c.opts.Token, selfID); err != nil {
		return c.failJoin(fmt.Errorf("%w: %w", domain.ErrJoin, err))
	}
	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()
	if c.stopping() {
		return c.abortJoin()
	}

	tracks, err := c.transport.AcquireLocalTracks(joinCtx)
	c.mu.Lock()
	c.tracks = tracks
	localTarget := c.localTarget
	c.mu.Unlock()
	if err != nil {
		return c.failJoin(fmt.Errorf("%w: %w", domain.ErrMediaAcquisition, err))
	}
	if c.stopping() {
		return c.abortJoin()
	}
	if localTarget != nil && tracks.Video != nil {
		tracks.Video.Attach(localTarget)
	}

	if err := c.transport.Publish(joinCtx, tracks.List()); err != nil {
		return c.failJoin(fmt.Errorf("%w: %w", domain.ErrPublish, err))
	}
	if c.stopping() {
		return c.abortJoin()
	}

	// Listen before enumerating: a peer publishing in between is then seen
	// by the snapshot, the event stream, or both, and admit dedupes.
	events, stopEvents := c.transport.Events()
	eventsDone := make(chan struct{})
	c.mu.Lock()
	c.stopEvents = stopEvents
	c.eventsDone = eventsDone
	c.mu.Unlock()
	go c.eventLoop(sessionCtx, events, eventsDone)

	c.admitPresent(joinCtx)

	c.mu.Lock()
	if c.stopRequested {
		c.mu.Unlock()
		return c.abortJoin()
	}
	c.setStateLocked(domain.SessionActive)
	c.mu.Unlock()
	c.notify(domain.SessionActive, nil)
	return nil
}

// Stop ends the session. It is safe to call in any state and any number
// of times; a Stop during Joining waits for the join to unwind.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case domain.SessionIdle:
		c.tornDown = true
		c.released = true
		c.setStateLocked(domain.SessionClosed)
		close(c.done)
		c.mu.Unlock()
		c.notify(domain.SessionClosed, nil)
		return nil
	case domain.SessionJoining:
		c.stopRequested = true
		cancel := c.cancelJoin
		c.mu.Unlock()
		c.logger.Info().Msg("stop requested while joining")
		if cancel != nil {
			cancel()
		}
		return c.wait(ctx)
	case domain.SessionActive:
		c.stopRequested = true
		c.mu.Unlock()
		c.teardown()
		return nil
	default:
		c.mu.Unlock()
		return c.wait(ctx)
	}
}

func (c *Controller) wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) stopping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopRequested
}

func (c *Controller) setStateLocked(s domain.SessionState) {
	prev := c.state
	c.state = s
	c.logger.Info().Str("from", prev.String()).Str("to", s.String()).Msg("state changed")
}

func (c *Controller) notify(s domain.SessionState, err error) {
	if c.opts.Hub == nil {
		return
	}
	fields := hub.Fields{"state": s}
	if err != nil {
		fields["error"] = err
	}
	c.opts.Hub.Publish(hub.Message{Name: TopicStateChanged, Fields: fields})
}
