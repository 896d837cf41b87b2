// Package main runs the simulated catalog backend the view API reads from.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/product-catalog-store/internal/backend"
	"github.com/fairyhunter13/product-catalog-store/internal/config"
	httpapi "github.com/fairyhunter13/product-catalog-store/internal/http"
	"github.com/fairyhunter13/product-catalog-store/internal/obs"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		obs.Logger.Warn("dotenv_load_failed", "error", err)
	}
	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel)

	var (
		repo *backend.Repository
		err  error
	)
	if cfg.BackendSeedFile != "" {
		repo, err = backend.LoadSeedFile(cfg.BackendSeedFile)
	} else {
		repo, err = backend.DefaultRepository()
	}
	if err != nil {
		obs.Logger.Error("seed_load_failed", "file", cfg.BackendSeedFile, "error", err)
		os.Exit(1)
	}
	obs.Logger.Info("catalog_seeded", "products", len(repo.List()))

	bs := backend.NewServer(repo, backend.Options{Latency: cfg.BackendLatency})
	srv := &http.Server{
		Addr:              cfg.BackendAddr,
		Handler:           httpapi.WithRequestID(httpapi.WithLogging(bs.Handler())),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.BackendAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("backend_stopped")
}
