package call

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// admitPresent subscribes every peer of the activation snapshot. One bad
// peer never blocks the others.
func (c *Controller) admitPresent(ctx context.Context) {
	present, err := c.transport.EnumeratePresentPeers(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("enumerate present peers failed, relying on presence events")
		return
	}
	self := c.SelfID()

	p := pool.New().WithMaxGoroutines(c.opts.SubscribeConcurrency)
	for _, pt := range present {
		if pt.PeerID == self {
			continue
		}
		p.Go(func() {
			if err := c.roster.Admit(ctx, pt.PeerID, pt.Kind); err != nil {
				c.logger.Warn().Err(err).Str("peer", string(pt.PeerID)).Msg("snapshot peer skipped")
			}
		})
	}
	p.Wait()
	c.logger.Info().Int("present", len(present)).Int("roster", c.roster.Len()).Msg("present peers admitted")
}

func (c *Controller) eventLoop(ctx context.Context, events <-chan domain.PresenceEvent, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.logger.Info().Msg("presence stream closed")
				c.endOnSignalLoss()
				return
			}
			c.handlePresence(ctx, ev)
		}
	}
}

// endOnSignalLoss closes a session whose transport dropped the presence
// stream without being asked to.
func (c *Controller) endOnSignalLoss() {
	c.mu.Lock()
	lost := !c.stopRequested && !c.tornDown
	c.mu.Unlock()
	if !lost {
		return
	}
	c.logger.Warn().Msg("signal lost, closing session")
	go func() { _ = c.Stop(context.Background()) }()
}

func (c *Controller) handlePresence(ctx context.Context, ev domain.PresenceEvent) {
	if ev.PeerID == c.SelfID() {
		return
	}
	switch ev.Type {
	case domain.PeerPublished:
		c.roster.AdmitAsync(ctx, ev.PeerID, ev.Kind)
	case domain.PeerUnpublished:
		if ev.Kind == "" {
			c.roster.Dismiss(ev.PeerID)
			return
		}
		c.roster.Withdraw(ev.PeerID, ev.Kind)
	default:
		c.logger.Warn().Str("type", string(ev.Type)).Str("peer", string(ev.PeerID)).Msg("unknown presence event")
	}
}

// failJoin reports a fatal join error once. A failure caused by a
// concurrent Stop is not a failure: the session just closes.
func (c *Controller) failJoin(err error) error {
	if c.stopping() {
		c.logger.Info().Err(err).Msg("join interrupted by stop")
		return c.abortJoin()
	}
	c.logger.Error().Err(err).Msg("join failed")

	c.releaseTracks()
	c.mu.Lock()
	joined := c.joined
	cancelSession := c.cancelSession
	c.mu.Unlock()
	if joined {
		c.leave()
	}
	if cancelSession != nil {
		cancelSession()
	}

	c.mu.Lock()
	c.tornDown = true
	c.err = err
	c.setStateLocked(domain.SessionFailed)
	close(c.done)
	c.mu.Unlock()
	c.notify(domain.SessionFailed, err)
	return err
}

func (c *Controller) abortJoin() error {
	c.teardown()
	return fmt.Errorf("start aborted: %w", domain.ErrSessionClosed)
}

// teardown runs Leaving → Closed exactly once. Errors are logged only:
// for the user the call is over even if the transport cleanup was not.
func (c *Controller) teardown() {
	c.mu.Lock()
	if c.tornDown {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.tornDown = true
	c.setStateLocked(domain.SessionLeaving)
	stopEvents, eventsDone := c.stopEvents, c.eventsDone
	cancelSession := c.cancelSession
	joined := c.joined
	c.mu.Unlock()
	c.notify(domain.SessionLeaving, nil)

	if stopEvents != nil {
		stopEvents()
	}
	if cancelSession != nil {
		cancelSession()
	}
	if eventsDone != nil {
		<-eventsDone
	}

	c.releaseTracks()
	if joined {
		c.leave()
	}
	c.roster.Reset()
	c.roster.Wait()

	c.mu.Lock()
	c.setStateLocked(domain.SessionClosed)
	close(c.done)
	c.mu.Unlock()
	c.notify(domain.SessionClosed, nil)
}

func (c *Controller) releaseTracks() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	tracks := c.tracks.List()
	c.tracks = core.LocalTracks{}
	c.mu.Unlock()

	for _, t := range tracks {
		c.transport.ReleaseTrack(t)
	}
	c.logger.Info().Int("tracks", len(tracks)).Msg("local tracks released")
}

func (c *Controller) leave() {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.LeaveTimeout)
	defer cancel()
	if err := c.transport.Leave(ctx); err != nil {
		c.logger.Warn().Err(fmt.Errorf("%w: %w", domain.ErrTeardown, err)).Msg("transport leave failed")
	}
}
