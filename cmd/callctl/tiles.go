package main

import (
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app/call"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

// tiles plays the role of the call UI: one IVF file per remote video,
// created when the peer shows up and closed when it leaves.
type tiles struct {
	dir  string
	ctrl *call.Controller
	open map[domain.PeerID]*ivfwriter.IVFWriter
}

func newTiles(dir string, ctrl *call.Controller) *tiles {
	return &tiles{dir: dir, ctrl: ctrl, open: make(map[domain.PeerID]*ivfwriter.IVFWriter)}
}

func (t *tiles) reconcile(roster []domain.Participant) {
	seen := make(map[domain.PeerID]bool, len(roster))
	for _, p := range roster {
		seen[p.PeerID] = true
		if !p.HasVideo {
			continue
		}
		if _, ok := t.open[p.PeerID]; ok {
			continue
		}
		path, err := peerFile(t.dir, p.PeerID, ".ivf")
		if err != nil {
			log.Warn().Err(err).Str("module", "callctl").Str("peer", string(p.PeerID)).Msg("no tile for peer")
			continue
		}
		w, err := ivfwriter.New(path)
		if err != nil {
			log.Error().Err(err).Str("module", "callctl").Str("file", path).Msg("open tile")
			continue
		}
		t.open[p.PeerID] = w
		t.ctrl.RegisterRenderTarget(p.PeerID, w)
		log.Info().Str("module", "callctl").Str("peer", string(p.PeerID)).Str("file", path).Msg("tile ready")
	}
	for peer, w := range t.open {
		if seen[peer] {
			continue
		}
		t.ctrl.UnregisterRenderTarget(peer)
		t.closeTile(peer, w)
	}
}

func (t *tiles) closeAll() {
	for peer, w := range t.open {
		t.closeTile(peer, w)
	}
}

func (t *tiles) closeTile(peer domain.PeerID, w *ivfwriter.IVFWriter) {
	if err := w.Close(); err != nil {
		log.Warn().Err(err).Str("module", "callctl").Str("peer", string(peer)).Msg("close tile")
	}
	delete(t.open, peer)
}

// audioRecorder opens one Ogg file per remote audio stream.
func audioRecorder(dir string) func(domain.PeerID) (core.RenderTarget, error) {
	return func(peer domain.PeerID) (core.RenderTarget, error) {
		path, err := peerFile(dir, peer, ".ogg")
		if err != nil {
			return nil, err
		}
		return oggwriter.New(path, 48000, 2)
	}
}

// peerFile names the output file of peer inside dir. Ids come from other
// participants, so they are validated and escaped before touching the
// filesystem.
func peerFile(dir string, peer domain.PeerID, ext string) (string, error) {
	if err := peer.Validate(); err != nil {
		return "", fmt.Errorf("peer %q: %w", peer, err)
	}
	return filepath.Join(dir, url.PathEscape(string(peer))+ext), nil
}
