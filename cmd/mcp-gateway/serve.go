package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over Streamable HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log := setupLogger(cfg.Logging, os.Stdout)

			g, err := newGateway(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer g.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return g.serveHTTP(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding server.addr")
	return cmd
}

// serveHTTP runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (g *gateway) serveHTTP(ctx context.Context) error {
	h, err := g.httpHandler()
	if err != nil {
		return fmt.Errorf("creating HTTP handler: %w", err)
	}

	srv := &http.Server{
		Addr:              g.cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", srv.Addr, err)
	}
	g.log.Info("gateway.listening",
		"addr", ln.Addr().String(),
		"endpoint", h.Endpoint(),
		"tools", g.registry.Len(),
		"quota", g.cfg.Quota.Enabled,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.log.Info("gateway.shutdown")
	case serverErr = <-errCh:
		g.log.Error("gateway.server_error", "err", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}
