// ABOUTME: serve command: opens the store and streams model changes to the UI
// ABOUTME: Bootstraps settings, reconciles stale rows and runs the HTTP listener

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/2389/reqstore/internal/events"
	"github.com/2389/reqstore/internal/metrics"
	"github.com/2389/reqstore/internal/store"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Open the store and serve the event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), cmd)
		},
	}
}

func (a *app) runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg := a.cfg
	out := cmd.OutOrStdout()

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", a.configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Events:    ws://%s/events\n", cfg.Events.Addr)
	if cfg.Metrics.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "Metrics:   http://%s%s\n", cfg.Events.Addr, cfg.Metrics.Path)
	}
	fmt.Fprintln(out)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.NewRegistry())
	}

	broadcaster := events.NewBroadcaster(a.logger, m, cfg.Events.BufferSize)
	defer broadcaster.Close()

	s, err := a.openStore(ctx, store.WithNotifier(broadcaster), store.WithMetrics(m))
	if err != nil {
		return err
	}
	defer s.Close()

	// The UI cannot render without settings, so a failure here is fatal.
	if _, err := s.GetOrCreateSettings(ctx); err != nil {
		return fmt.Errorf("bootstrapping settings: %w", err)
	}

	if err := s.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconciling: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/events", events.NewHandler(broadcaster, cfg.Events.PingInterval, a.logger))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, m.Handler())
	}

	ln, err := net.Listen("tcp", cfg.Events.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Events.Addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	a.logger.Info("reqstore serving",
		"addr", ln.Addr().String(),
		"database", cfg.Database.Path,
		"bodies", cfg.Bodies.Driver,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing the broadcaster first ends open websocket streams, which
	// Shutdown does not wait for on its own.
	broadcaster.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
