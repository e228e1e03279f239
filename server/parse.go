package main

import (
	"strconv"
	"strings"
	"time"
)

// Metric group names as they appear in a decoded bundle.
const (
	groupInstantaneousDemand = "instantaneous_demand"
	groupCurrentSummation    = "current_summation"
	groupNetworkInfo         = "network_info"
)

// A meter MAC of all zeroes means the gateway has not paired with a meter
// yet; it must never become a label.
const meterMacSentinel = "0x0000000000000000"

// Instantaneous demand readings outside ±1000 kWh are treated as decode
// garbage rather than real consumption.
const demandBoundKWh = 1000

// deviceInfo holds the identity labels carried by a DeviceInfo section.
// Missing sub-fields stay empty; the gateway omits them on some firmwares.
type deviceInfo struct {
	FWVersion    string
	HWVersion    string
	Manufacturer string
	ModelID      string
}

// Reading is the fully decoded, validated form of one upload. It is produced
// in one shot before any registry state is touched, so a payload that fails
// validation never leaves partial label or flag updates behind.
type Reading struct {
	DeviceMacID string
	MeterMacID  string

	// Timestamp is Unix epoch seconds. It starts from the document root's
	// timestamp attribute (wall clock if absent or zero) and is superseded
	// by section-local timestamps in section-processing order, so the last
	// present section with an embedded timestamp wins.
	Timestamp int64

	// Metrics maps metric group name to sub-metric name to value (kWh for
	// demand and summations).
	Metrics map[string]map[string]float64

	DeviceInfo      *deviceInfo
	NetworkInfoSeen bool
}

// decodeUpload parses one XML upload body into a Reading. It returns
// *MalformedDocumentError if the body is not well-formed XML,
// *MalformedSectionError if a recognized section is incomplete, and
// *DemandOutOfRangeError if the demand sanity bound is exceeded.
func decodeUpload(raw []byte) (*Reading, error) {
	root, err := parseXMLTree(raw)
	if err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}

	rd := &Reading{
		Metrics: make(map[string]map[string]float64),
	}
	if mac, ok := root.findText("DeviceMacId"); ok && mac != "" {
		rd.DeviceMacID = mac
	}
	if mac, ok := root.findText("MeterMacId"); ok && mac != "" {
		rd.MeterMacID = mac
	}

	rd.Timestamp, err = rootTimestamp(root)
	if err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}

	// Sections are applied in a fixed order so that the payload timestamp
	// override is deterministic: a summation timestamp supersedes a demand
	// timestamp when both sections are present.
	if err := parseInstantaneousDemand(root, rd, raw); err != nil {
		return nil, err
	}
	if err := parseCurrentSummation(root, rd); err != nil {
		return nil, err
	}
	parseDeviceInfo(root, rd)
	parseNetworkInfo(root, rd)

	return rd, nil
}

// rootTimestamp reads the root element's timestamp attribute ("1234567890s",
// Unix epoch seconds with a unit suffix). Absent or zero falls back to the
// wall clock at decode time.
func rootTimestamp(root *xmlElement) (int64, error) {
	raw, ok := root.attr("timestamp")
	if !ok {
		return time.Now().Unix(), nil
	}
	ts, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimSpace(raw), "s"), 10, 64)
	if err != nil {
		return 0, err
	}
	if ts == 0 {
		return time.Now().Unix(), nil
	}
	return ts, nil
}

func parseInstantaneousDemand(root *xmlElement, rd *Reading, raw []byte) error {
	sec := root.find("InstantaneousDemand")
	if sec == nil {
		return nil
	}

	const name = "InstantaneousDemand"
	demand, err := requiredHexInt32(sec, name, "Demand")
	if err != nil {
		return err
	}
	multiplier, err := requiredHexInt32(sec, name, "Multiplier")
	if err != nil {
		return err
	}
	divisor, err := requiredHexInt32(sec, name, "Divisor")
	if err != nil {
		return err
	}
	ts, err := requiredHexTimestamp(sec, name)
	if err != nil {
		return err
	}
	rd.Timestamp = ts

	multiplier, divisor = defaultScale(multiplier), defaultScale(divisor)
	kwh := float64(demand) * float64(multiplier) / float64(divisor)
	if kwh > demandBoundKWh || kwh < -demandBoundKWh {
		return &DemandOutOfRangeError{
			Demand:      kwh,
			Multiplier:  multiplier,
			Divisor:     divisor,
			Timestamp:   ts,
			RawDocument: string(raw),
		}
	}

	rd.Metrics[groupInstantaneousDemand] = map[string]float64{"demand": kwh}
	return nil
}

// summationSectionNames lists the candidate tags for the cumulative
// summation section, tried in order; the first present wins. Older firmwares
// use the bare CurrentSummation name.
var summationSectionNames = []string{"CurrentSummationDelivered", "CurrentSummation"}

func parseCurrentSummation(root *xmlElement, rd *Reading) error {
	var sec *xmlElement
	var name string
	for _, candidate := range summationSectionNames {
		if c := root.child(candidate); c != nil {
			sec, name = c, candidate
			break
		}
	}
	if sec == nil {
		return nil
	}

	delivered, err := requiredHexInt32(sec, name, "SummationDelivered")
	if err != nil {
		return err
	}
	received, err := requiredHexInt32(sec, name, "SummationReceived")
	if err != nil {
		return err
	}
	multiplier, err := requiredHexInt32(sec, name, "Multiplier")
	if err != nil {
		return err
	}
	divisor, err := requiredHexInt32(sec, name, "Divisor")
	if err != nil {
		return err
	}
	ts, err := requiredHexTimestamp(sec, name)
	if err != nil {
		return err
	}
	rd.Timestamp = ts

	multiplier, divisor = defaultScale(multiplier), defaultScale(divisor)
	rd.Metrics[groupCurrentSummation] = map[string]float64{
		"summation_delivered": float64(delivered) * float64(multiplier) / float64(divisor),
		"summation_received":  float64(received) * float64(multiplier) / float64(divisor),
	}
	return nil
}

func parseDeviceInfo(root *xmlElement, rd *Reading) {
	sec := root.find("DeviceInfo")
	if sec == nil {
		return
	}
	info := &deviceInfo{}
	info.FWVersion, _ = sec.childText("FWVersion")
	info.HWVersion, _ = sec.childText("HWVersion")
	info.Manufacturer, _ = sec.childText("Manufacturer")
	info.ModelID, _ = sec.childText("ModelId")
	rd.DeviceInfo = info
}

func parseNetworkInfo(root *xmlElement, rd *Reading) {
	sec := root.find("NetworkInfo")
	if sec == nil {
		return
	}
	// The readiness flag flips on the section's presence alone; link
	// strength itself is optional.
	rd.NetworkInfoSeen = true
	if text, ok := sec.childText("LinkStrength"); ok && text != "" {
		if v, err := parseHexUint(text); err == nil {
			rd.Metrics[groupNetworkInfo] = map[string]float64{"link_strength": float64(v)}
		}
	}
}

// requiredHexInt32 extracts a mandatory signed hex sub-field of a section.
func requiredHexInt32(sec *xmlElement, section, field string) (int64, error) {
	text, ok := sec.childText(field)
	if !ok || text == "" {
		return 0, &MalformedSectionError{Section: section, Field: field}
	}
	v, err := parseHexInt32(text)
	if err != nil {
		return 0, &MalformedSectionError{Section: section, Field: field, Err: err}
	}
	return v, nil
}

// requiredHexTimestamp extracts a section's mandatory UTC-2000 timestamp and
// converts it to Unix epoch seconds.
func requiredHexTimestamp(sec *xmlElement, section string) (int64, error) {
	text, ok := sec.childText("TimeStamp")
	if !ok || text == "" {
		return 0, &MalformedSectionError{Section: section, Field: "TimeStamp"}
	}
	v, err := parseHexUint(text)
	if err != nil {
		return 0, &MalformedSectionError{Section: section, Field: "TimeStamp", Err: err}
	}
	return utc2000ToEpoch(int64(v)), nil
}

// defaultScale guards the multiplier/divisor pair: a raw zero means "no
// scaling", never "scale to zero" or a division by zero.
func defaultScale(v int64) int64 {
	if v == 0 {
		return 1
	}
	return v
}
