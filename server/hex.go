package main

import (
	"strconv"
	"strings"
)

// The Eagle protocol reports timestamps as seconds since 2000-01-01T00:00:00Z.
// Adding this offset converts them to Unix epoch seconds.
const epoch2000Offset = 946684800

// parseHexInt32 decodes a "0x"-prefixed hex string carrying a 32-bit pattern
// and reinterprets it as a two's-complement signed integer. Every numeric
// telemetry field (demand, summations, multiplier, divisor) is encoded this
// way by the gateway.
func parseHexInt32(s string) (int64, error) {
	u, err := strconv.ParseUint(stripHexPrefix(s), 16, 32)
	if err != nil {
		return 0, err
	}
	return int64(int32(uint32(u))), nil
}

// parseHexUint decodes a hex string without sign reinterpretation. Used for
// section timestamps and link strength, which are never negative on the wire.
func parseHexUint(s string) (uint64, error) {
	return strconv.ParseUint(stripHexPrefix(s), 16, 64)
}

func stripHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func utc2000ToEpoch(seconds int64) int64 {
	return seconds + epoch2000Offset
}
