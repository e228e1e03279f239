package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures gauge-set operations for assertions.
type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

type sinkCall struct {
	name   string
	value  float64
	labels map[string]string
}

func (s *recordingSink) Set(_ context.Context, name string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{name: name, value: value, labels: labels})
}

func (s *recordingSink) byName(name string) *sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.calls {
		if s.calls[i].name == name {
			return &s.calls[i]
		}
	}
	return nil
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func postUpload(t *testing.T, h http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = "192.168.1.20:50123"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func fullUpload(deviceMac string) []byte {
	return []byte(fmt.Sprintf(`<rainforest timestamp="1000000000s">
  <DeviceInfo>
    <DeviceMacId>%[1]s</DeviceMacId>
    <FWVersion>1.4.48</FWVersion>
    <HWVersion>1.2.4</HWVersion>
    <Manufacturer>Rainforest</Manufacturer>
    <ModelId>Z109-EAGLE</ModelId>
  </DeviceInfo>
  <NetworkInfo>
    <DeviceMacId>%[1]s</DeviceMacId>
    <LinkStrength>0x64</LinkStrength>
  </NetworkInfo>
  <InstantaneousDemand>
    <DeviceMacId>%[1]s</DeviceMacId>
    <MeterMacId>0x00135003007bcdef</MeterMacId>
    <TimeStamp>0x1db31340</TimeStamp>
    <Demand>0x00000001</Demand>
    <Multiplier>0x00000001</Multiplier>
    <Divisor>0x000003e8</Divisor>
  </InstantaneousDemand>
  <CurrentSummationDelivered>
    <DeviceMacId>%[1]s</DeviceMacId>
    <MeterMacId>0x00135003007bcdef</MeterMacId>
    <TimeStamp>0x1db31340</TimeStamp>
    <SummationDelivered>0x00bc614e</SummationDelivered>
    <SummationReceived>0x000003e8</SummationReceived>
    <Multiplier>0x00000001</Multiplier>
    <Divisor>0x000003e8</Divisor>
  </CurrentSummationDelivered>
</rainforest>`, deviceMac))
}

func TestIngestPublishesQualifyingUpload(t *testing.T) {
	sink := &recordingSink{}
	h := &ingestHandler{registry: NewRegistry(nil), sink: sink}

	w := postUpload(t, h, fullUpload("0x1"))
	assert.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, 4, sink.len())

	demand := sink.byName(gaugeInstantaneousDemand)
	require.NotNil(t, demand)
	assert.InDelta(t, 0.001, demand.value, 1e-12)
	assert.Equal(t, "0x1", demand.labels["device_mac_id"])
	assert.Equal(t, "192.168.1.20", demand.labels["client_host"])
	assert.Equal(t, "0x00135003007bcdef", demand.labels["meter_mac_id"])
	assert.Equal(t, "Rainforest", demand.labels["manufacturer"])

	delivered := sink.byName(gaugeSummationDelivered)
	require.NotNil(t, delivered)
	assert.InDelta(t, 12345.678, delivered.value, 1e-9)

	received := sink.byName(gaugeSummationReceived)
	require.NotNil(t, received)
	assert.InDelta(t, 1.0, received.value, 1e-9)

	link := sink.byName(gaugeLinkStrength)
	require.NotNil(t, link)
	assert.Equal(t, float64(100), link.value)
}

func TestIngestGatesAcrossUploads(t *testing.T) {
	sink := &recordingSink{}
	h := &ingestHandler{registry: NewRegistry(nil), sink: sink}

	// Demand-only upload for a brand new device: accepted, not published.
	w := postUpload(t, h, demandUpload("0x00000001", "0x00000001", "0x000003e8", "0x00000000"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, sink.len())

	// Device info alone: still gated.
	postUpload(t, h, []byte(fmt.Sprintf(`<rainforest><DeviceInfo><DeviceMacId>%s</DeviceMacId><FWVersion>1.4.48</FWVersion></DeviceInfo></rainforest>`, testDeviceMac)))
	assert.Zero(t, sink.len())

	// Network info completes the state machine; this payload carries no
	// numeric sections, so the bundle is still empty.
	postUpload(t, h, []byte(fmt.Sprintf(`<rainforest><NetworkInfo><DeviceMacId>%s</DeviceMacId></NetworkInfo></rainforest>`, testDeviceMac)))
	assert.Zero(t, sink.len())

	// Now a demand upload publishes.
	postUpload(t, h, demandUpload("0x00000001", "0x00000001", "0x000003e8", "0x00000000"))
	require.Equal(t, 1, sink.len())
	assert.Equal(t, gaugeInstantaneousDemand, sink.calls[0].name)
}

func TestIngestAlwaysRespondsOK(t *testing.T) {
	sink := &recordingSink{}
	h := &ingestHandler{registry: NewRegistry(nil), sink: sink}

	tests := map[string][]byte{
		"malformed xml":       []byte("garbage"),
		"malformed section":   []byte(`<rainforest><InstantaneousDemand><DeviceMacId>0x1</DeviceMacId></InstantaneousDemand></rainforest>`),
		"demand out of range": demandUpload("0x000007d0", "0x00000001", "0x00000001", "0x00000000"),
		"oversized body":      bytes.Repeat([]byte("x"), maxUploadBytes+1),
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := postUpload(t, h, body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Zero(t, sink.len())
		})
	}
}

func TestIngestFailedPayloadLeavesRegistryUntouched(t *testing.T) {
	// A payload whose demand section is malformed must not flip the flags
	// its device-info section would otherwise have set.
	sink := &recordingSink{}
	registry := NewRegistry(nil)
	h := &ingestHandler{registry: registry, sink: sink}

	postUpload(t, h, []byte(`<rainforest>
  <DeviceInfo>
    <DeviceMacId>0x1</DeviceMacId>
    <FWVersion>1.4.48</FWVersion>
  </DeviceInfo>
  <InstantaneousDemand>
    <DeviceMacId>0x1</DeviceMacId>
    <Demand>0x00000001</Demand>
  </InstantaneousDemand>
</rainforest>`))

	assert.Nil(t, registry.Labels("0x1"))
}
