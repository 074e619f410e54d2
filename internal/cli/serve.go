package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hexagram/internal/devserver"
	"github.com/roach88/hexagram/internal/proxy"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the proxy and devserver commands.
type ServeOptions struct {
	*RootOptions
	Port     int
	Upstream string
}

// NewProxyCommand creates the proxy command.
func NewProxyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Relay auth and profile calls to the upstream service",
		Long: `Serve the auth and profile routes and relay them to the upstream
service. Point clients' --base-url at this server.

Example:
  hexagram proxy --port 8787 --upstream https://api.hexagram.example`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			relay := proxy.NewRelay(opts.Upstream, nil)
			srv := proxy.NewServer(opts.Port, relay)
			fmt.Fprintf(cmd.OutOrStdout(), "Proxy listening on %s, relaying to %s\n", srv.Addr(), opts.Upstream)
			return serve(cmd.Context(), "proxy", srv.Start, srv.Shutdown)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", rootOpts.Config.Proxy.Port, "listen port")
	cmd.Flags().StringVar(&opts.Upstream, "upstream", rootOpts.Config.Proxy.UpstreamURL, "upstream base URL")
	return cmd
}

// NewDevServerCommand creates the devserver command.
func NewDevServerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory upstream for local development",
		Long: `Run an in-memory implementation of the auth and profile service.
Accounts and profiles are lost when it stops.

Example:
  hexagram devserver --port 8788
  hexagram proxy --upstream http://localhost:8788`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := devserver.New(rootOpts.Config.Dev.JWTSecret)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid dev server configuration", err)
			}
			srv := dev.HTTPServer(opts.Port)
			fmt.Fprintf(cmd.OutOrStdout(), "Dev server listening on %s\n", srv.Addr)
			start := func() error {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			}
			return serve(cmd.Context(), "devserver", start, srv.Shutdown)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", rootOpts.Config.Dev.Port, "listen port")
	return cmd
}

// serve runs start until it fails or the process is interrupted, then
// shuts down gracefully.
func serve(parentCtx context.Context, name string, start func() error, shutdown func(context.Context) error) error {
	// Use command's context if available (for testing), otherwise create one
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitFailure, name+" failed", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutting down", "server", name)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, name+" shutdown failed", err)
	}
	return <-errCh
}
