package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

//go:generate mockgen -source=media_iface.go -destination=mock/media_mock.go -package=mock

type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// ApplyOfferAndCreateAnswer handles a client initiated negotiation.
	ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// Renegotiate creates a server offer, hands it to send and blocks until
	// the matching answer was applied. Negotiations are serialized.
	Renegotiate(ctx context.Context, send func(webrtc.SessionDescription) error) error
	// ApplyAnswer completes a pending Renegotiate.
	ApplyAnswer(webrtc.SessionDescription) error
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// AddLocalTrack attaches a local static RTP track to the underlying PeerConnection.
	AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error)
	RemoveSender(sender *webrtc.RTPSender) error
	// OnClosed sets a callback for cleanup media session.
	OnClosed(func())
}
