package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/miniapp/internal/handlers"
	"github.com/hanko-field/miniapp/internal/platform/observability"
)

const shutdownTimeout = 10 * time.Second

// bridgeHandler assembles the local webview bridge around the shared cart and client.
func bridgeHandler(a *app) http.Handler {
	return handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.RequestLogger(observability.Named(a.logger, "bridge")),
			observability.Recovery(a.logger),
		),
		handlers.WithCartRoutes(handlers.NewCartHandlers(a.cart).Routes),
		handlers.WithCatalogRoutes(handlers.NewCatalogHandlers(a.client).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(a.cart, a.client).Routes),
	)
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "serve")
	var addr string
	fs.StringVar(&addr, "addr", net.JoinHostPort("127.0.0.1", a.cfg.Bridge.Port), "HTTP listen address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           bridgeHandler(a),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.cfg.Bridge.ReadTimeout,
		WriteTimeout:      a.cfg.Bridge.WriteTimeout,
		IdleTimeout:       a.cfg.Bridge.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("bridge listening", zap.String("addr", addr), zap.String("storefront", a.client.BaseURL()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down bridge")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("bridge shutdown error", zap.Error(err))
		return err
	}
	return nil
}
