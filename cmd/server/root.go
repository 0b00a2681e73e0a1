package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/colintoh/clicky-mcp/internal/api"
	"github.com/colintoh/clicky-mcp/internal/config"
	"github.com/colintoh/clicky-mcp/internal/mcp"
	"github.com/colintoh/clicky-mcp/internal/metrics"
	"github.com/colintoh/clicky-mcp/internal/session"
	"github.com/colintoh/clicky-mcp/internal/tools"
	"github.com/colintoh/clicky-mcp/pkg/clicky"
)

type rootFlags struct {
	siteID    string
	siteKey   string
	transport string
	addr      string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "clicky-mcp",
		Short:         "clicky-mcp serves Clicky web analytics reports as MCP tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.siteID, "site-id", "", "Clicky site ID (overrides CLICKY_SITE_ID)")
	cmd.Flags().StringVar(&flags.siteKey, "site-key", "", "Clicky site key (overrides CLICKY_SITE_KEY)")
	cmd.Flags().StringVar(&flags.transport, "transport", "", "transport to serve: stdio or http (overrides MCP_TRANSPORT)")
	cmd.Flags().StringVar(&flags.addr, "addr", "", "listen address for the http transport, host:port")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clicky-mcp %s\n", version)
		},
	})

	return cmd
}

func run(ctx context.Context, flags rootFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Override(flags.siteID, flags.siteKey, flags.transport)
	if flags.addr != "" {
		if err := cfg.SetAddress(flags.addr); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := initLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info().
		Str("version", version).
		Str("transport", cfg.Transport).
		Int("max_concurrent_calls", cfg.MaxConcurrentCalls).
		Msg("Starting Clicky MCP server")

	client, err := clicky.NewClient(cfg.SiteID, cfg.SiteKey,
		clicky.WithBaseURL(cfg.BaseURL),
		clicky.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	recorder, err := metrics.New(ctx, metrics.Config{
		Endpoint: cfg.MetricsEndpoint,
		Enabled:  cfg.MetricsEnabled,
		Insecure: cfg.MetricsInsecure,
		Version:  version,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Metrics exporter unavailable, continuing without metrics")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Close(closeCtx); err != nil {
			logger.Error().Err(err).Msg("Metrics shutdown error")
		}
	}()

	dispatcher := tools.NewDispatcher(client, logger, tools.WithRecorder(recorder))
	server := mcp.NewServer(dispatcher, version, logger)

	if cfg.Transport == config.TransportHTTP {
		err = serveHTTP(ctx, cfg, server, logger)
	} else {
		err = mcp.NewStdioTransport(server, os.Stdin, os.Stdout, cfg.MaxConcurrentCalls, logger).Serve(ctx)
	}

	logger.Info().Msg("Clicky MCP server stopped")
	return err
}

func serveHTTP(ctx context.Context, cfg *config.Config, server *mcp.Server, logger zerolog.Logger) error {
	sessionManager := session.NewManager(cfg.MaxSessions, cfg.SessionTimeout, logger)
	sessionManager.OnSessionClosed(func(s *session.Session) {
		info := s.Snapshot()
		logger.Info().
			Str("session_id", info.ID).
			Str("client", info.Client.Name).
			Int64("calls", info.Calls).
			Int64("errors", info.Errors).
			Dur("duration", s.Duration()).
			Msg("Session ended")
	})

	wsHandler := api.NewWSHandler(cfg, sessionManager, server, logger)
	router := api.NewRouter(cfg, sessionManager, server, wsHandler, version, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Address()).Msg("HTTP server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Sessions first so WebSocket clients see their session end
		if err := sessionManager.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Session manager shutdown error")
		}
		wsHandler.CloseAll()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			return err
		}
		return nil
	})

	return g.Wait()
}
