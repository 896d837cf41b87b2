// Package main boots the product catalog view API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/product-catalog-store/internal/cart"
	"github.com/fairyhunter13/product-catalog-store/internal/config"
	"github.com/fairyhunter13/product-catalog-store/internal/errfmt"
	"github.com/fairyhunter13/product-catalog-store/internal/gateway"
	httpapi "github.com/fairyhunter13/product-catalog-store/internal/http"
	"github.com/fairyhunter13/product-catalog-store/internal/obs"
	"github.com/fairyhunter13/product-catalog-store/internal/reviews"
	"github.com/fairyhunter13/product-catalog-store/internal/store"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		obs.Logger.Warn("dotenv_load_failed", "error", err)
	}
	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel)
	obs.Logger.Info("service_starting", "catalog_base_url", cfg.CatalogBaseURL)

	gw, err := gateway.NewFromConfig(cfg)
	if err != nil {
		obs.Logger.Error("gateway_init_failed", "error", err)
		os.Exit(1)
	}
	st := store.New(gw, reviews.NewService(gw), errfmt.Formatter{})

	app := httpapi.NewApp(cfg, st, cart.New())
	mux := httpapi.NewRouter(app)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	// Prefetch the product list.
	go st.Products(context.Background())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	app.StartShutdown()

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	st.Close()
	obs.Logger.Info("service_stopped")
}
