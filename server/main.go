package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
)

var version = "v1.0.0"

func main() {
	opt, err := parseOptions(os.Args[1:])
	if err != nil {
		if isHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if opt.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	setupLogging(opt.LogFormat, opt.Debug)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdown, err := setupOpentelemetry(ctx, opt)
	if err != nil {
		slog.ErrorContext(ctx, "error setting up OpenTelemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdown(context.Background())

	overrides, err := loadDeviceLabels(opt)
	if err != nil {
		slog.ErrorContext(ctx, "error loading device label overrides", slog.Any("error", err))
		os.Exit(1)
	}

	meter := otel.GetMeterProvider().Meter("eagle-exporter")
	sink, err := newOTelSink(meter)
	if err != nil {
		slog.ErrorContext(ctx, "error creating metric instruments", slog.Any("error", err))
		os.Exit(1)
	}

	mux := http.NewServeMux()
	registerRoutes(mux, &ingestHandler{
		registry: NewRegistry(overrides),
		sink:     sink,
	})
	if opt.Exporter == "prometheus" {
		mux.Handle("/metrics", promhttp.Handler())
	}

	if err := startHTTPServer(ctx, ":"+opt.Port, mux); err != nil {
		slog.ErrorContext(ctx, "HTTP server failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.InfoContext(ctx, "shutdown complete")
}
