package main

import "fmt"

// MalformedDocumentError reports an upload body that is not well-formed XML.
// Nothing can be extracted from such a payload.
type MalformedDocumentError struct {
	Err error
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("malformed document: %v", e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// MalformedSectionError reports a recognized telemetry section missing a
// required sub-field, or carrying one that does not decode. The whole payload
// is rejected; no partial result is produced.
type MalformedSectionError struct {
	Section string
	Field   string
	Err     error
}

func (e *MalformedSectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("section %s: field %s: %v", e.Section, e.Field, e.Err)
	}
	return fmt.Sprintf("section %s: missing required field %s", e.Section, e.Field)
}

func (e *MalformedSectionError) Unwrap() error { return e.Err }

// DemandOutOfRangeError reports an instantaneous demand reading whose
// computed value falls outside the ±1000 kWh sanity bound. It carries the
// full decode context for operator visibility.
type DemandOutOfRangeError struct {
	Demand      float64
	Multiplier  int64
	Divisor     int64
	Timestamp   int64
	RawDocument string
}

func (e *DemandOutOfRangeError) Error() string {
	return fmt.Sprintf("computed demand %g exceeds the sanity bound of 1000 kWh "+
		"(multiplier=%d, divisor=%d, timestamp=%d, raw_xml=%s)",
		e.Demand, e.Multiplier, e.Divisor, e.Timestamp, e.RawDocument)
}
