package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/leandro-lugaresi/hub"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/adapters/transport"
	"github.com/dkeye/Collab/internal/app/call"
	"github.com/dkeye/Collab/internal/app/roster"
	"github.com/dkeye/Collab/internal/config"
	"github.com/dkeye/Collab/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, config.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.OutputDir).Msg("create output dir")
		}
	}

	opts := transport.Options{
		ServerURL:      cfg.ServerURL,
		DisplayName:    cfg.Name,
		ICEServers:     cfg.ICEServers,
		RequestTimeout: cfg.RequestTimeout,
		AudioSource:    cfg.AudioSource,
		VideoSource:    cfg.VideoSource,
	}
	if cfg.RecordAudio {
		opts.AudioOutput = audioRecorder(cfg.OutputDir)
	}
	tr := transport.New(opts)

	h := hub.New()
	ctrl := call.NewController(tr, call.Options{
		AppID:                cfg.AppID,
		Token:                cfg.Token,
		Hub:                  h,
		SubscribeConcurrency: cfg.SubscribeConcurrency,
		LeaveTimeout:         cfg.LeaveTimeout,
	})

	var view *tiles
	if cfg.OutputDir != "" {
		view = newTiles(cfg.OutputDir, ctrl)
		self, err := ivfwriter.New(filepath.Join(cfg.OutputDir, "self.ivf"))
		if err != nil {
			log.Fatal().Err(err).Msg("open self view")
		}
		defer func() { _ = self.Close() }()
		ctrl.RegisterLocalRenderTarget(self)
	}

	sub := h.NonBlockingSubscribe(64, call.TopicStateChanged, roster.TopicRosterChanged)
	uiDone := make(chan struct{})
	go func() {
		defer close(uiDone)
		for msg := range sub.Receiver {
			switch msg.Name {
			case call.TopicStateChanged:
				state, _ := msg.Fields["state"].(domain.SessionState)
				ev := log.Info().Str("module", "callctl").Stringer("state", state)
				if err, ok := msg.Fields["error"].(error); ok {
					ev = ev.Err(err)
				}
				ev.Msg("session state")
			case roster.TopicRosterChanged:
				participants, _ := msg.Fields["roster"].([]domain.Participant)
				log.Info().Str("module", "callctl").Int("participants", len(participants)).Msg("roster changed")
				if view != nil {
					view.reconcile(participants)
				}
			}
		}
	}()

	if err := ctrl.Start(ctx, domain.ChannelID(cfg.Channel), domain.PeerID(cfg.Peer)); err != nil {
		log.Error().Err(err).Msg("join failed")
	} else {
		var deadline <-chan time.Time
		if cfg.Duration > 0 {
			deadline = time.After(cfg.Duration)
		}
		select {
		case <-ctx.Done():
		case <-deadline:
		case <-ctrl.Done():
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.LeaveTimeout+time.Second)
	defer stopCancel()
	if err := ctrl.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("stop")
	}
	h.Unsubscribe(sub)
	<-uiDone
	if view != nil {
		view.closeAll()
	}
	log.Info().Str("state", ctrl.State().String()).Msg("call ended")
}
