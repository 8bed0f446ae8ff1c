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
	"go.opentelemetry.io/otel"

	router "github.com/dkeye/Conference/internal/adapters/http"
	msengine "github.com/dkeye/Conference/internal/adapters/mediasoup"
	signaling "github.com/dkeye/Conference/internal/adapters/signal"
	"github.com/dkeye/Conference/internal/app"
	"github.com/dkeye/Conference/internal/app/orch"
	"github.com/dkeye/Conference/internal/config"
	"github.com/dkeye/Conference/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init telemetry")
	}
	metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init metrics")
	}

	engine := msengine.NewEngine(msengine.Options{WorkerBin: cfg.Media.WorkerBin})
	rooms := app.NewRoomRegistry(engine, app.RegistryConfig{
		Codecs:    cfg.Media.Codecs,
		Transport: cfg.Media.Transport,
		Metrics:   metrics,
	})
	sessions := app.NewSessions()
	var policy app.Policy = app.SimplePolicy{}
	if cfg.BackpressureStrikes > 1 {
		policy = app.NewStrikePolicy(cfg.BackpressureStrikes)
	}
	o := orch.New(rooms, sessions, policy, nil)
	ctl := signaling.NewSignalWSController(o, signaling.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		Limiter:    signaling.NewRoomRateLimiter(cfg.JoinLimit.Limit, cfg.JoinLimit.Interval),
	})
	o.Out = ctl

	r := router.SetupRouter(ctx, cfg, rooms, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Bool("tls", cfg.TLS.Enabled).Msg("Conference server started")
		var err error
		if cfg.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	rooms.Close()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
