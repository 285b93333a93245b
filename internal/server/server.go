// Package server assembles the property API routes and starts the HTTP
// server.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/proforma/internal/storage"
)

// Config holds server configuration.
type Config struct {
	Port int
	Repo *storage.Repo
}

// Router builds the chi router with every property API route.
func Router(repo *storage.Repo, hub *WatchHub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	ph := NewPropertyHandler(repo, hub)
	eh := NewEntityHandler(repo, hub)

	r.Route("/api/properties/{propertyID}", func(r chi.Router) {
		r.Get("/versions", ph.GetVersions)
		r.Route("/versions/{version}", func(r chi.Router) {
			r.Get("/", ph.GetVersion)
			r.Put("/", ph.SaveVersion)
			r.Post("/save-as", ph.SaveAs)

			r.Post("/brokers", eh.CreateBroker)
			r.Put("/brokers/{brokerID}", eh.UpdateBroker)
			r.Delete("/brokers/{brokerID}", eh.SoftDeleteBroker)

			r.Post("/tenants", eh.CreateTenant)
			r.Put("/tenants/{tenantID}", eh.UpdateTenant)
			r.Delete("/tenants/{tenantID}", eh.SoftDeleteTenant)
		})
	})

	if hub != nil {
		r.Get("/api/watch", hub.ServeHTTP)
	}

	return r
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
func Run(ctx context.Context, cfg Config) error {
	hub := NewWatchHub()
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("starting server on %s", addr)

	srv := &http.Server{
		Addr:    addr,
		Handler: Router(cfg.Repo, hub),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	return srv.ListenAndServe()
}
