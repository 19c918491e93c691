// Package scan turns raw scan-tool output into normalized per-device
// RSSI observations. Sources produce the raw text for one scan cycle;
// the parser extracts records from it regardless of which tool ran.
package scan

import (
	"regexp"
	"strings"
	"time"
)

// macPattern matches a 6-octet hardware address with ":" or "-"
// separators anywhere within a line.
var macPattern = regexp.MustCompile(`([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}`)

// strictMACPattern matches a full canonical MAC address.
var strictMACPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// Record is one observation of one device within a single scan cycle.
type Record struct {
	MAC        string    // canonical uppercase colon-separated
	RSSI       int       // dBm, in [-100, 0]
	SSID       string    // optional network name
	ObservedAt time.Time // timestamp of the cycle that produced this record
}

// NormalizeMAC canonicalizes a hardware address to uppercase
// colon-separated form. Returns false if the input is not a MAC.
func NormalizeMAC(raw string) (string, bool) {
	mac := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", ":"))
	if !strictMACPattern.MatchString(mac) {
		return "", false
	}
	return mac, true
}

// OUIPrefix returns the organizationally-unique first three octets of a
// canonical MAC ("A8:5C:2C").
func OUIPrefix(mac string) string {
	if len(mac) < 8 {
		return mac
	}
	return mac[:8]
}

// ValidRSSI reports whether v is a plausible received power in dBm.
func ValidRSSI(v int) bool {
	return v >= -100 && v <= 0
}
