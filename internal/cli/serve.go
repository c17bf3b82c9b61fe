package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clive/experimenter/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve an experiments directory over HTTP",
		Long: `Serve the tabs of a directory to notebooks and scripts: list and read tabs, ` +
			`replace a tab's rows, resolve params, run tabs and browse the run history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(false); err != nil {
				return err
			}
			defer a.close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			dir, err := filepath.Abs(a.resolveDir(args, "."))
			if err != nil {
				return err
			}

			db, store, err := a.openRuns(true)
			if err != nil {
				return err
			}

			open := api.DirOpener(dir, a.workspaceOptions(store))
			if _, err := open(); err != nil {
				return err
			}

			router := api.NewRouter(open, db, store, a.cfg.Server.APIKey, a.log)
			srv := &http.Server{
				Addr:        a.cfg.Server.Addr,
				Handler:     router,
				ReadTimeout: 30 * time.Second,
				// runs can take long, so no WriteTimeout
				IdleTimeout: 120 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.log.Info("experimenter server starting", "addr", srv.Addr, "dir", dir)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			a.log.Info("shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Error("forced shutdown", "error", err)
				return err
			}
			a.log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address instead of server.addr")
	return cmd
}
