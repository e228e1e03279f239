package main

import "sync"

// deviceEntry accumulates what is known about one gateway across uploads.
// Labels are only ever added or overwritten, never removed; the readiness
// flags are monotonic.
type deviceEntry struct {
	labels              map[string]string
	deviceInfoReceived  bool
	networkInfoReceived bool
}

// Registry tracks per-device label sets and readiness state for the process
// lifetime. Entries are created lazily on first sight of a device MAC and
// never evicted. A single mutex serializes all entry mutation; the expected
// device population is tens of gateways, so contention is negligible.
type Registry struct {
	mu        sync.Mutex
	devices   map[string]*deviceEntry
	overrides map[string]map[string]string
}

// NewRegistry returns an empty registry. overrides maps device MAC to extra
// labels merged into an entry once, at first sight of that device.
func NewRegistry(overrides map[string]map[string]string) *Registry {
	return &Registry{
		devices:   make(map[string]*deviceEntry),
		overrides: overrides,
	}
}

// Apply merges a decoded reading into the registry and decides whether the
// reading's metric bundle may be published. It returns a snapshot of the
// device's full label set and true once the device has been attributed and
// both DeviceInfo and NetworkInfo have been seen at least once; otherwise it
// returns nil and false. The reading has already been fully validated, so
// the merge is all-or-nothing with respect to the payload.
func (r *Registry) Apply(clientHost string, rd *Reading) (map[string]string, bool) {
	if rd.DeviceMacID == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.devices[rd.DeviceMacID]
	if !ok {
		entry = &deviceEntry{
			labels: map[string]string{
				"device_mac_id": rd.DeviceMacID,
				"client_host":   clientHost,
			},
		}
		for k, v := range r.overrides[rd.DeviceMacID] {
			entry.labels[k] = v
		}
		r.devices[rd.DeviceMacID] = entry
	}

	if rd.DeviceInfo != nil {
		entry.labels["fw_version"] = rd.DeviceInfo.FWVersion
		entry.labels["hw_version"] = rd.DeviceInfo.HWVersion
		entry.labels["manufacturer"] = rd.DeviceInfo.Manufacturer
		entry.labels["model_id"] = rd.DeviceInfo.ModelID
		entry.deviceInfoReceived = true
	}
	if rd.NetworkInfoSeen {
		entry.networkInfoReceived = true
	}

	if !entry.deviceInfoReceived || !entry.networkInfoReceived {
		return nil, false
	}

	// The meter MAC label lands on every qualifying publish, not just the
	// first, so a meter paired after readiness still shows up.
	if rd.MeterMacID != "" && rd.MeterMacID != meterMacSentinel {
		entry.labels["meter_mac_id"] = rd.MeterMacID
	}

	labels := make(map[string]string, len(entry.labels))
	for k, v := range entry.labels {
		labels[k] = v
	}
	return labels, true
}

// Labels returns a snapshot of a device's current label set, or nil if the
// device has never been seen. Intended for tests and diagnostics.
func (r *Registry) Labels(deviceMacID string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.devices[deviceMacID]
	if !ok {
		return nil
	}
	labels := make(map[string]string, len(entry.labels))
	for k, v := range entry.labels {
		labels[k] = v
	}
	return labels
}
