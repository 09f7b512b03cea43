package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/boltview/internal/remote"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a store over HTTP for automation",
		Long: `Serve a store over an HTTP JSON API until interrupted.

Every request maps to one session operation: list, get, put, delete,
commit, abort and stats. Puts and deletes accumulate in one pending write
that is shared by all clients until a commit or abort. Keys and values are
base64 in request and response bodies.

Example:
  boltview serve --path ./app.db --listen 127.0.0.1:7420
  boltview get --remote http://127.0.0.1:7420 users alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, cmd)
		},
	}

	cmd.Flags().String("listen", "", "address to listen on (default from config)")

	return cmd
}

func runServe(opts *RootOptions, cmd *cobra.Command) error {
	if err := opts.requireLocal("serve"); err != nil {
		return err
	}
	svc, closeFn, err := opts.openService(true)
	if err != nil {
		return err
	}
	defer closeFn()
	defer func() {
		// Pending edits that were never committed are discarded.
		if _, pending := svc.Pending(); pending {
			opts.Logger.Warn("discarding uncommitted edits")
			_ = svc.Abort(context.Background())
		}
	}()

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			opts.Logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	addr := opts.Config.Listen
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", svc.Environment().Path(), addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	handler := remote.NewHandler(svc, opts.Logger)
	if err := remote.Serve(ctx, addr, handler, opts.Logger); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	opts.Logger.Info("server stopped gracefully")
	return nil
}
