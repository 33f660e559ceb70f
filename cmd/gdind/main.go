// Package main is the entry point for the GameDin consensus daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/MKWorldWide/gamedin-consensus/advisory"
	"github.com/MKWorldWide/gamedin-consensus/api"
	"github.com/MKWorldWide/gamedin-consensus/consensus"
	"github.com/MKWorldWide/gamedin-consensus/registry"
	"github.com/MKWorldWide/gamedin-consensus/storage"
	"github.com/MKWorldWide/gamedin-consensus/trust"
	"github.com/MKWorldWide/gamedin-consensus/types"
	"github.com/MKWorldWide/gamedin-consensus/unl"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for persistent storage (empty = in-memory)")
	advisoryURL := flag.String("advisory-url", "", "Advisory service base URL (empty = disabled)")
	flag.Parse()

	cfg, err := types.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *advisoryURL != "" {
		cfg.AdvisoryURL = *advisoryURL
		cfg.AdvisoryEnabled = true
	}

	log := newLogger(cfg.LogLevel)
	log.Info().
		Str("listen", cfg.ListenAddr).
		Bool("advisory", cfg.AdvisoryEnabled).
		Bool("persistent", cfg.DataDir != "").
		Msg("starting gdind")

	// Advisory strategy is selected once here; no component branches on
	// whether advisory is enabled.
	var gateway advisory.Gateway
	if cfg.AdvisoryEnabled {
		client, err := advisory.NewClient(cfg.AdvisoryURL, cfg.AdvisoryTimeout, cfg.DefaultCapability, log)
		if err != nil {
			log.Fatal().Err(err).Msg("advisory client")
		}
		gateway = client
	} else {
		gateway = advisory.NewDisabled(cfg.DefaultCapability)
	}

	var store *storage.Store
	var regOpts []registry.Option
	var graphOpts []trust.Option
	var listOpts []unl.Option
	var roundOpts []consensus.Option
	if cfg.DataDir != "" {
		store, err = storage.NewStore(storage.DefaultStoreConfig(cfg.DataDir))
		if err != nil {
			log.Fatal().Err(err).Msg("open store")
		}
		defer store.Close()
		regOpts = append(regOpts, registry.WithStore(store))
		graphOpts = append(graphOpts, trust.WithStore(store))
		listOpts = append(listOpts, unl.WithStore(store))
		roundOpts = append(roundOpts, consensus.WithStore(store))
	}

	reg, err := registry.New(cfg, gateway, log, regOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("registry")
	}
	graph, err := trust.NewGraph(reg, log, graphOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("trust graph")
	}
	lists, err := unl.NewManager(cfg, reg, log, listOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("list manager")
	}
	policy := consensus.NewPolicy(cfg)
	rounds, err := consensus.NewRoundManager(cfg, reg, policy, gateway, log, roundOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("round manager")
	}

	server := api.NewServer(cfg, reg, graph, lists, policy, rounds, gateway, log)
	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}
