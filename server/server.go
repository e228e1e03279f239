package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// registerRoutes wires the ingest handler to the mux. The gateway's cloud
// upload feature POSTs every payload to the root path.
func registerRoutes(mux *http.ServeMux, ingest http.Handler) {
	registerInstrumentedRoute(mux, "/", ingest)
}

// registerInstrumentedRoute wraps the handler with OpenTelemetry HTTP
// instrumentation so each request is traced, then registers it on the mux.
func registerInstrumentedRoute(mux *http.ServeMux, route string, handler http.Handler) {
	mux.Handle(route, otelhttp.NewHandler(otelhttp.WithRouteTag(route, handler), route))
}

// startHTTPServer serves until the context is cancelled, then drains
// in-flight requests before returning.
func startHTTPServer(ctx context.Context, addr string, mux *http.ServeMux) error {
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.InfoContext(ctx, "Starting HTTP server", slog.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
