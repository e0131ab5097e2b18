// Package protocol holds the JSON messages exchanged over the signaling
// websocket. Requests carry an id; the matching reply echoes it.
package protocol

import (
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

const (
	TypeJoin        = "join"
	TypeJoined      = "joined"
	TypeLeave       = "leave"
	TypeLeft        = "left"
	TypeOffer       = "offer"
	TypeAnswer      = "answer"
	TypePeers       = "peers"
	TypeSubscribe   = "subscribe"
	TypeSubscribed  = "subscribed"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeRename      = "rename"
	TypeWhoAmI      = "whoami"
	TypeError       = "error"

	TypePeerPublished   = string(domain.PeerPublished)
	TypePeerUnpublished = string(domain.PeerUnpublished)
	TypeMemberJoined    = "member_joined"
	TypeMemberLeft      = "member_left"
	TypeMemberUpdated   = "member_updated"
)

// Error codes sent in Error.Code.
const (
	CodeBadPayload   = "bad_payload"
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodePeerTaken    = "peer_taken"
	CodeNotJoined    = "not_joined"
	CodeNoSuchTrack  = "no_such_track"
	CodeNoMedia      = "no_media"
	CodeInternal     = "internal"
)

// Envelope is decoded first to dispatch on Type.
type Envelope struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type JoinRequest struct {
	Type    string           `json:"type"`
	ID      string           `json:"id,omitempty"`
	AppID   string           `json:"app_id" validate:"required,max=64"`
	Channel domain.ChannelID `json:"channel" validate:"required,max=64"`
	Token   string           `json:"token,omitempty" validate:"max=512"`
	Peer    domain.PeerID    `json:"peer" validate:"required,max=64,excludesall=/\\"`
	Name    string           `json:"name,omitempty" validate:"max=36"`
}

type Joined struct {
	Type    string           `json:"type"`
	ID      string           `json:"id,omitempty"`
	Channel domain.ChannelID `json:"channel"`
	Members []core.MemberDTO `json:"members"`
	Count   int              `json:"count"`
}

// SessionDescription carries an offer or an answer. Server initiated
// offers have no id; their answer is sent back without one as well.
type SessionDescription struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	SDP  string `json:"sdp"`
}

type Peers struct {
	Type   string             `json:"type"`
	ID     string             `json:"id,omitempty"`
	Tracks []domain.PeerTrack `json:"tracks"`
}

// SubscribeRequest is used for both subscribe and unsubscribe.
type SubscribeRequest struct {
	Type string           `json:"type"`
	ID   string           `json:"id,omitempty"`
	Peer domain.PeerID    `json:"peer" validate:"required,max=64,excludesall=/\\"`
	Kind domain.MediaKind `json:"kind" validate:"required,oneof=audio video"`
}

type Subscribed struct {
	Type string           `json:"type"`
	ID   string           `json:"id,omitempty"`
	Peer domain.PeerID    `json:"peer"`
	Kind domain.MediaKind `json:"kind"`
}

type RenameRequest struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name" validate:"required,max=36"`
}

type WhoAmI struct {
	Type        string           `json:"type"`
	ID          string           `json:"id,omitempty"`
	Peer        domain.PeerID    `json:"peer,omitempty"`
	DisplayName string           `json:"display_name"`
	Channel     domain.ChannelID `json:"channel,omitempty"`
}

type MemberEvent struct {
	Type   string         `json:"type"`
	Member core.MemberDTO `json:"member"`
}

type Error struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Ack is the bare reply of requests without a payload (pong, left).
type Ack struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

func NewError(id, code, msg string) Error {
	return Error{Type: TypeError, ID: id, Code: code, Message: msg}
}
