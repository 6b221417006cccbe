package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nixxel-company-limited/escpos-print-queue/adapter"
	"github.com/nixxel-company-limited/escpos-print-queue/config"
	"github.com/nixxel-company-limited/escpos-print-queue/printer"
	"github.com/nixxel-company-limited/escpos-print-queue/queue"
	"github.com/nixxel-company-limited/escpos-print-queue/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	dev, err := adapter.New(adapter.Config{
		Transport:        cfg.Transport,
		Address:          cfg.DeviceAddress,
		Baud:             cfg.Baud,
		SimulatedLatency: cfg.SimulatedLatencyMs,
		Logger:           log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build adapter")
	}

	manager := printer.NewManager(dev, cfg.MaxRetries, cfg.RetryDelay(), log.Logger)
	if err := manager.Connect(); err != nil {
		// Not fatal: the first print triggers another connect attempt.
		log.Warn().Err(err).Msg("printer not reachable at startup")
	}

	q := queue.New(manager, log.Logger)

	router := server.NewRouter(q, manager, cfg.AuthToken, log.Logger)
	srv := &http.Server{Addr: cfg.HTTPAddress, Handler: router}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddress).Str("transport", cfg.Transport).Msg("print server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	var rawPort *server.TCPServer
	if cfg.TCPAddress != "" {
		rawPort = server.NewTCPServer(q, cfg.TCPAddress, log.Logger)
		if err := rawPort.StartAsync(); err != nil {
			log.Fatal().Err(err).Msg("failed to start raw port")
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shut down")
	}
	if rawPort != nil {
		if err := rawPort.Stop(); err != nil {
			log.Error().Err(err).Msg("raw port stop failed")
		}
	}

	q.Close()
	if err := manager.Disconnect(); err != nil {
		log.Error().Err(err).Msg("printer disconnect failed")
	}
	log.Info().Msg("stopped")
}
