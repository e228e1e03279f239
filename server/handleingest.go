package main

import (
	"io"
	"log/slog"
	"net"
	"net/http"

	"go.opentelemetry.io/otel"
)

// An Eagle upload is a few hundred bytes of XML; anything bigger than this
// is not telemetry.
const maxUploadBytes = 20 * 1024

// ingestHandler receives gateway uploads, runs them through the decoder and
// registry, and publishes qualifying bundles to the sink.
type ingestHandler struct {
	registry *Registry
	sink     Sink
}

// ServeHTTP always answers 200: the gateway does not retry and treating a
// bad payload as a client error would only make it re-send the same bytes.
// Failures are logged with full context instead.
func (h *ingestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	ctx, span := otel.Tracer("eagle-exporter").Start(r.Context(), "handleIngest")
	defer span.End()

	clientHost := peerHost(r.RemoteAddr)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		slog.ErrorContext(ctx, "failed to read upload body",
			slog.Any("error", err),
			slog.String("client_host", clientHost),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	rd, err := decodeUpload(body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to decode upload",
			slog.Any("error", err),
			slog.String("client_host", clientHost),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	labels, ready := h.registry.Apply(clientHost, rd)
	if !ready {
		slog.DebugContext(ctx, "upload withheld from publication",
			slog.String("device_mac_id", rd.DeviceMacID),
			slog.String("client_host", clientHost),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	publishBundle(ctx, h.sink, rd, labels)
	slog.DebugContext(ctx, "published upload",
		slog.String("device_mac_id", rd.DeviceMacID),
		slog.Int64("timestamp", rd.Timestamp),
		slog.Int("metric_groups", len(rd.Metrics)),
	)
	w.WriteHeader(http.StatusOK)
}

// peerHost strips the port from a RemoteAddr, falling back to the raw string
// for peers without one (unix sockets, tests).
func peerHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
