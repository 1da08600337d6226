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

	"github.com/nbermudezs/otfcs/internal/config"
	"github.com/nbermudezs/otfcs/internal/helpdesk"
	"github.com/nbermudezs/otfcs/internal/logging"
	"github.com/nbermudezs/otfcs/internal/mock"
	"github.com/nbermudezs/otfcs/internal/realtime"
	"github.com/nbermudezs/otfcs/internal/relay"
	"github.com/spf13/cobra"
)

func main() {
	var (
		configPath string
		port       int
		noMock     bool
		logLevel   string
	)

	root := &cobra.Command{
		Use:          "otfcs-server",
		Short:        "Reference help desk, realtime relay and mock representative",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if noMock {
				cfg.Mock.Enabled = false
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML or TOML config file")
	root.Flags().IntVarP(&port, "port", "p", 0, "override server port")
	root.Flags().BoolVar(&noMock, "no-mock", false, "do not answer calls with the mock representative")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	logger, err := logging.Console("otfcs-server", os.Stderr, cfg.Log.Level)
	if err != nil {
		return err
	}

	helpdesk.RegisterMetrics()
	relay.RegisterMetrics()

	store := helpdesk.NewStore()
	desk := helpdesk.NewServer(store, cfg.Server.APIKey, logger)
	hub := relay.NewHub(store, cfg.Server.APIKey, logger)

	mux := http.NewServeMux()
	desk.SetupRoutes(mux)
	hub.SetupRoutes(mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Mock.Enabled {
		rtURL := fmt.Sprintf("ws://127.0.0.1:%d/rt", cfg.Server.Port)
		rep := mock.NewRepresentative(store,
			realtime.NewWSTransport(rtURL, realtime.NewPermission(true), logger),
			mock.Options{
				APIKey:       cfg.Server.APIKey,
				Name:         cfg.Mock.Name,
				Reply:        cfg.Mock.Reply,
				PollInterval: cfg.Mock.PollInterval,
				CallDuration: cfg.Mock.CallDuration,
			}, logger)
		rep.Start(ctx)
		logger.Info().Str("name", cfg.Mock.Name).Msg("mock representative on duty")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("shutting down")
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
