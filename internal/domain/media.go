package domain

import "fmt"

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaKinds lists every kind in a stable order.
var MediaKinds = [...]MediaKind{MediaAudio, MediaVideo}

func ParseMediaKind(s string) (MediaKind, error) {
	switch MediaKind(s) {
	case MediaAudio, MediaVideo:
		return MediaKind(s), nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

func (k MediaKind) Valid() bool {
	return k == MediaAudio || k == MediaVideo
}

type PresenceEventType string

const (
	PeerPublished   PresenceEventType = "peer-published"
	PeerUnpublished PresenceEventType = "peer-unpublished"
)

// PresenceEvent is one transport-reported change of a peer's publications.
// An unpublish with an empty Kind means the peer left entirely.
type PresenceEvent struct {
	Type   PresenceEventType `json:"type"`
	PeerID PeerID            `json:"peer"`
	Kind   MediaKind         `json:"kind,omitempty"`
}

// PeerTrack is one entry of the already-present peers snapshot.
type PeerTrack struct {
	PeerID PeerID    `json:"peer"`
	Kind   MediaKind `json:"kind"`
}
