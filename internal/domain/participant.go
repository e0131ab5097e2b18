package domain

// Participant is one remote peer as the roster currently believes it.
type Participant struct {
	PeerID            PeerID `json:"peer"`
	HasAudio          bool   `json:"has_audio"`
	HasVideo          bool   `json:"has_video"`
	RenderTargetReady bool   `json:"render_target_ready"`
}

func (p Participant) Has(kind MediaKind) bool {
	switch kind {
	case MediaAudio:
		return p.HasAudio
	case MediaVideo:
		return p.HasVideo
	}
	return false
}
