package main

import (
	"encoding/xml"
	"fmt"
	"time"
)

// The simulator fabricates the gateway's cloud-upload XML: a rainforest root
// element with an epoch-seconds timestamp attribute and one or more telemetry
// sections carrying hex-encoded 32-bit readings.

type upload struct {
	XMLName             xml.Name `xml:"rainforest"`
	Timestamp           string   `xml:"timestamp,attr"`
	InstantaneousDemand *demandSection
	CurrentSummation    *summationSection
	DeviceInfo          *deviceInfoSection
	NetworkInfo         *networkInfoSection
}

type demandSection struct {
	XMLName     xml.Name `xml:"InstantaneousDemand"`
	DeviceMacID string   `xml:"DeviceMacId"`
	MeterMacID  string   `xml:"MeterMacId"`
	TimeStamp   string   `xml:"TimeStamp"`
	Demand      string   `xml:"Demand"`
	Multiplier  string   `xml:"Multiplier"`
	Divisor     string   `xml:"Divisor"`
}

type summationSection struct {
	XMLName            xml.Name `xml:"CurrentSummationDelivered"`
	DeviceMacID        string   `xml:"DeviceMacId"`
	MeterMacID         string   `xml:"MeterMacId"`
	TimeStamp          string   `xml:"TimeStamp"`
	SummationDelivered string   `xml:"SummationDelivered"`
	SummationReceived  string   `xml:"SummationReceived"`
	Multiplier         string   `xml:"Multiplier"`
	Divisor            string   `xml:"Divisor"`
}

type deviceInfoSection struct {
	XMLName      xml.Name `xml:"DeviceInfo"`
	DeviceMacID  string   `xml:"DeviceMacId"`
	FWVersion    string   `xml:"FWVersion"`
	HWVersion    string   `xml:"HWVersion"`
	Manufacturer string   `xml:"Manufacturer"`
	ModelID      string   `xml:"ModelId"`
}

type networkInfoSection struct {
	XMLName      xml.Name `xml:"NetworkInfo"`
	DeviceMacID  string   `xml:"DeviceMacId"`
	LinkStrength string   `xml:"LinkStrength"`
}

func (u *upload) render() ([]byte, error) {
	body, err := xml.MarshalIndent(u, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func hexUint32(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

// utc2000Now renders the current time in the gateway's hex UTC-2000 encoding.
func utc2000Now() string {
	return hexUint32(uint32(time.Now().Unix() - 946684800))
}

func epochAttrNow() string {
	return fmt.Sprintf("%ds", time.Now().Unix())
}
