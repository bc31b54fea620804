package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/credscope/credscope/internal/api"
	"github.com/credscope/credscope/internal/rescore"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the credscope API on localhost from the local database",
		Long: `Starts an HTTP server on localhost exposing the same API as credscoped,
backed by the local database. Rescoring runs only when requested through
POST /internal/rescore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			job := rescore.New(a.store, a.svc, rescore.WithLogger(a.logger))
			mux := http.NewServeMux()
			api.NewHandler(a.svc, a.store, api.WithRescorer(job), api.WithLogger(a.logger)).RegisterRoutes(mux)

			srv := &http.Server{
				Addr:              "127.0.0.1:" + port,
				Handler:           api.CORS(mux),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving credscope API on http://%s\n", srv.Addr)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "7700", "Port to serve on")
	return cmd
}
