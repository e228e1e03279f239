package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
)

// simDevice models one fabricated gateway: its identity, its paired meter,
// and a random-walk consumption state.
type simDevice struct {
	deviceMac string
	meterMac  string

	// summation counters in raw scaled units (divisor 1000 -> kWh*1000)
	delivered uint32
	received  uint32

	sentInfo bool
}

func newSimDevice(index int) *simDevice {
	return &simDevice{
		deviceMac: fmt.Sprintf("0xd8d5b9%010x", index+1),
		meterMac:  fmt.Sprintf("0x00135003%08x", index+1),
		delivered: uint32(10_000_000 + rand.Intn(5_000_000)),
		received:  uint32(rand.Intn(100_000)),
	}
}

// Uploader POSTs fabricated uploads for one device to the exporter.
type Uploader struct {
	client *http.Client
	device *simDevice
	url    string
}

func NewUploader(client *http.Client, device *simDevice, url string) *Uploader {
	return &Uploader{client: client, device: device, url: url}
}

// sendNext builds and sends the device's next upload. The first upload
// carries DeviceInfo and NetworkInfo so the exporter's gating opens;
// subsequent ones carry demand and summation readings.
func (u *Uploader) sendNext(ctx context.Context) error {
	d := u.device

	var up *upload
	if !d.sentInfo {
		up = &upload{
			Timestamp: epochAttrNow(),
			DeviceInfo: &deviceInfoSection{
				DeviceMacID:  d.deviceMac,
				FWVersion:    "1.4.48",
				HWVersion:    "1.2.4",
				Manufacturer: "Rainforest",
				ModelID:      "Z109-EAGLE",
			},
			NetworkInfo: &networkInfoSection{
				DeviceMacID:  d.deviceMac,
				LinkStrength: hexUint32(uint32(60 + rand.Intn(40))),
			},
		}
	} else {
		// Demand between -3.5 kW (export) and +6.5 kW with divisor 1000.
		demand := int32(rand.Intn(10_000)) - 3_500
		d.delivered += uint32(rand.Intn(50))
		d.received += uint32(rand.Intn(10))

		ts := utc2000Now()
		up = &upload{
			Timestamp: epochAttrNow(),
			InstantaneousDemand: &demandSection{
				DeviceMacID: d.deviceMac,
				MeterMacID:  d.meterMac,
				TimeStamp:   ts,
				Demand:      hexUint32(uint32(demand)),
				Multiplier:  hexUint32(1),
				Divisor:     hexUint32(1000),
			},
			CurrentSummation: &summationSection{
				DeviceMacID:        d.deviceMac,
				MeterMacID:         d.meterMac,
				TimeStamp:          ts,
				SummationDelivered: hexUint32(d.delivered),
				SummationReceived:  hexUint32(d.received),
				Multiplier:         hexUint32(1),
				Divisor:            hexUint32(1000),
			},
		}
	}

	body, err := up.render()
	if err != nil {
		return fmt.Errorf("failed to render upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	slog.Debug("upload sent",
		slog.String("device_mac_id", d.deviceMac),
		slog.Int("status", resp.StatusCode),
		slog.Bool("info_upload", !d.sentInfo),
	)
	d.sentInfo = true
	return nil
}
