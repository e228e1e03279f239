package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Gauge names published for a qualifying upload.
const (
	gaugeSummationDelivered  = "summation_delivered"
	gaugeSummationReceived   = "summation_received"
	gaugeInstantaneousDemand = "instantaneous_demand"
	gaugeLinkStrength        = "link_strength"
)

// Sink is the outbound metrics contract: set a named gauge to a value,
// tagged with a label set. Label sets are part of the series identity.
type Sink interface {
	Set(ctx context.Context, name string, value float64, labels map[string]string)
}

// otelSink publishes gauges through an OpenTelemetry Meter. The configured
// reader (periodic OTLP push or the Prometheus bridge) takes it from there.
type otelSink struct {
	gauges map[string]metric.Float64Gauge
}

func newOTelSink(meter metric.Meter) (*otelSink, error) {
	defs := []struct {
		name        string
		unit        string
		description string
	}{
		{gaugeSummationDelivered, "kWh", "summation of energy delivered"},
		{gaugeSummationReceived, "kWh", "summation of energy received"},
		{gaugeInstantaneousDemand, "kWh", "demand of energy"},
		{gaugeLinkStrength, "", "zigbee link strength reported by the gateway"},
	}

	s := &otelSink{gauges: make(map[string]metric.Float64Gauge, len(defs))}
	for _, def := range defs {
		g, err := meter.Float64Gauge(def.name,
			metric.WithUnit(def.unit),
			metric.WithDescription(def.description))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s gauge: %w", def.name, err)
		}
		s.gauges[def.name] = g
	}
	return s, nil
}

func (s *otelSink) Set(ctx context.Context, name string, value float64, labels map[string]string) {
	g, ok := s.gauges[name]
	if !ok {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	g.Record(ctx, value, metric.WithAttributes(attrs...))
}

// publishBundle pushes every metric group present in a gated reading to the
// sink, each value tagged with the device's full label set.
func publishBundle(ctx context.Context, sink Sink, rd *Reading, labels map[string]string) {
	if m, ok := rd.Metrics[groupCurrentSummation]; ok {
		sink.Set(ctx, gaugeSummationDelivered, m["summation_delivered"], labels)
		sink.Set(ctx, gaugeSummationReceived, m["summation_received"], labels)
	}
	if m, ok := rd.Metrics[groupInstantaneousDemand]; ok {
		sink.Set(ctx, gaugeInstantaneousDemand, m["demand"], labels)
	}
	if m, ok := rd.Metrics[groupNetworkInfo]; ok {
		sink.Set(ctx, gaugeLinkStrength, m["link_strength"], labels)
	}
}
