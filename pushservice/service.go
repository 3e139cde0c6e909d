// Package pushservice is the practice API's push-subscription endpoint: it
// records which browser endpoints belong to which user and serves the
// service worker script.
package pushservice

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-subscription/internal/api"
	"github.com/tinywideclouds/go-push-subscription/pkg/push"
	"github.com/tinywideclouds/go-push-subscription/pushservice/config"
)

//go:embed assets/sw.js
var serviceWorkerScript []byte

type Wrapper struct {
	*microservice.BaseServer
	logger *slog.Logger
}

// New assembles the service. authMiddleware must place the user handle on
// the request context.
func New(
	cfg *config.Config,
	store push.SubscriptionStore,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	subscriptionAPI := api.NewSubscriptionAPI(store, cfg.VapidPublicKey, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	// OPTIONS
	mux.Handle("OPTIONS /push/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	// Protected
	mux.Handle("POST /push/subscribe", corsMiddleware(authMiddleware(http.HandlerFunc(subscriptionAPI.Subscribe))))
	mux.Handle("POST /push/unsubscribe", corsMiddleware(authMiddleware(http.HandlerFunc(subscriptionAPI.Unsubscribe))))
	mux.Handle("GET /push/subscriptions", corsMiddleware(authMiddleware(http.HandlerFunc(subscriptionAPI.List))))

	// Public
	mux.Handle("GET /push/vapid-public-key", corsMiddleware(http.HandlerFunc(subscriptionAPI.VapidKey)))
	mux.HandleFunc("GET /sw.js", serveWorker)

	return &Wrapper{
		BaseServer: baseServer,
		logger:     logger,
	}, nil
}

// serveWorker answers with the worker script. Service-Worker-Allowed lets a
// script served below the root still claim the root scope.
func serveWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Service-Worker-Allowed", "/")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(serviceWorkerScript)
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	w.logger.Info("Service shutdown complete.")
	return nil
}
