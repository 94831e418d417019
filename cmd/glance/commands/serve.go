package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/glance/cmd/glance/ui"
	"github.com/spherical/glance/internal/api"
	"github.com/spherical/glance/pkg/reader"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a reader session with the HTTP API",
	Long: `Run a reader session against the configured accessory transport and expose
the session over HTTP for companion apps (snapshot, preview, text, archived captures).`,
	RunE: runServe,
}

var serveOffline bool

func init() {
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "use stub recognition and translation")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, res, err := buildDeps(ctx, cfg, nil, serveOffline, logger)
	defer res.Close(logger)
	if err != nil {
		return err
	}

	r, err := reader.New(cfg, deps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(r.Controller(), deps.Archive, logger, cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	ui.Success("API listening on http://%s", cfg.Addr())

	readerErr := make(chan error, 1)
	go func() { readerErr <- r.Run(ctx) }()

	select {
	case err = <-serverErr:
		stop()
		<-readerErr
	case err = <-readerErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn().Err(shutdownErr).Msg("http shutdown failed")
	}

	if err != nil {
		return err
	}
	ui.Info("session stopped")
	return nil
}
