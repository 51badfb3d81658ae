package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/wikipath/internal/server"
	"github.com/spf13/cobra"
)

var listenAddr string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve path searches over HTTP and websockets",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		a.cfg.ListenAddr = listenAddr
	}

	srv, err := server.New(server.Config{
		PathFinder: a.finder,
		Searcher:   a.client,
		Tracker:    a.tracker,
		Gatherer:   a.registry,
		ListenAddr: a.cfg.ListenAddr,
		Logger:     a.logger.WithField("component", "server"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logProgress(ctx, a)

	err = srv.Run(ctx)

	a.logger.Info("Final stats: " + a.tracker.LogProgress())
	a.writeMetrics("signal")
	return err
}

func logProgress(ctx context.Context, a *app) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.logger.Info(a.tracker.LogProgress())
		case <-ctx.Done():
			return
		}
	}
}
