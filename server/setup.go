package main

import (
	"context"
	"errors"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

const serviceName = "eagle_energy_exporter"

// setupOpentelemetry configures tracing and metrics export and returns a
// shutdown function that flushes and releases everything it set up.
func setupOpentelemetry(ctx context.Context, opt *Option) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	// shutdown calls all registered shutdown functions in sequence and
	// joins their errors.
	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	otel.SetTextMapPropagator(propagation.TraceContext{})

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		))
	if err != nil {
		return nil, err
	}

	var traceOpts []otlptracehttp.Option
	if opt.OTLPEndpoint != "" {
		traceOpts = append(traceOpts, otlptracehttp.WithEndpoint(opt.OTLPEndpoint))
	}
	if opt.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}
	tExporter, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		err = errors.Join(err, shutdown(ctx))
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(tExporter),
		sdktrace.WithResource(res),
	)
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	otel.SetTracerProvider(tp)

	reader, err := newMetricReader(ctx, opt)
	if err != nil {
		err = errors.Join(err, shutdown(ctx))
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	otel.SetMeterProvider(mp)

	return shutdown, nil
}

// newMetricReader builds the configured export backend: a periodic OTLP push
// reader (the gateway upload interval is seconds, so the default export
// interval is short), or the Prometheus bridge for pull-based scraping.
func newMetricReader(ctx context.Context, opt *Option) (sdkmetric.Reader, error) {
	if opt.Exporter == "prometheus" {
		return otelprom.New()
	}

	var metricOpts []otlpmetrichttp.Option
	if opt.OTLPEndpoint != "" {
		metricOpts = append(metricOpts, otlpmetrichttp.WithEndpoint(opt.OTLPEndpoint))
	}
	if opt.OTLPInsecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	mExporter, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewPeriodicReader(mExporter,
		sdkmetric.WithInterval(opt.ExportInterval),
	), nil
}
