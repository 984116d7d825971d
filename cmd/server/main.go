package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"songclash/internal/app"
	"songclash/internal/config"

	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

// @title SongClash API
// @version 0.1
// @description Realtime team song guessing game
// @host localhost:8080
// @BasePath /v1
func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "songclash-server",
		Short:   "Serves SongClash games over HTTP and WebSocket.",
		Args:    cobra.ExactArgs(0),
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	cfg.RegisterFlags(fs)
	config.BindEnv(fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.ConnectStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close(context.Background())

	a, err := app.New(cfg, stores)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (transport: %s)", cfg.Addr(), cfg.Transport)
		log.Println("Endpoints:")
		log.Println("  POST /v1/games")
		log.Println("  GET  /v1/games/{slug}[/state|/teams|/leaderboard]")
		log.Println("  POST /v1/games/{slug}/teams|join|actions")
		log.Println("  WS   /v1/ws/games/{slug}?token=")

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
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Println("Server exited")
	return nil
}
