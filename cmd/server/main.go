package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Collab/internal/adapters/http"
	signaling "github.com/dkeye/Collab/internal/adapters/signal"
	"github.com/dkeye/Collab/internal/app"
	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/app/sfu"
	"github.com/dkeye/Collab/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var policy app.Policy = app.SimplePolicy{}
	if cfg.MaxDrops > 0 {
		policy = app.NewTolerantPolicy(cfg.MaxDrops)
	}

	o := &orch.Orchestrator{
		Registry:           app.NewRegistry(),
		Rooms:              app.NewRoomManager(),
		Policy:             policy,
		Relays:             sfu.NewRelayManager(),
		RenegotiateTimeout: cfg.RenegotiateTimeout,
	}

	ctrl := signaling.NewSignalWSController(o, signaling.Options{
		Auth:       signaling.Auth{AppID: cfg.AppID, Token: cfg.ChannelToken},
		ICEServers: cfg.ICEServers,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendQueue:  cfg.SendQueue,
		JoinLimit:  cfg.JoinLimit,
		JoinWindow: cfg.JoinWindow,
	})
	go ctrl.RunJanitor(ctx)

	r := router.SetupRouter(ctx, cfg, o, ctrl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Collab channel server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Shutdown()
	log.Info().Msg("Server exited gracefully")
}
