// Package track maintains the authoritative table of observed devices:
// per-device RSSI smoothing, distance estimation, and the registry that
// owns create/update/evict for device state.
package track

import "time"

// UnknownDevice is the default category when no inference rule matches.
// It counts as "absent" for the identity upgrade policy.
const UnknownDevice = "Unknown Device"

// Identity holds the resolved identity attributes for a device. Empty
// fields mean "no information"; they never overwrite known values.
type Identity struct {
	Hostname     string
	IPAddress    string
	Manufacturer string
	DeviceType   string
}

// DeviceState is the long-lived record for one distinct MAC address.
type DeviceState struct {
	MAC string

	// RSSIHistory holds the most recent raw samples, oldest first,
	// bounded by the configured capacity.
	RSSIHistory  []int
	SmoothedRSSI float64
	DistanceM    float64

	// SSID is the network name the device was last seen advertising.
	SSID string

	Hostname     string
	IPAddress    string
	Manufacturer string
	DeviceType   string

	FirstSeen time.Time
	LastSeen  time.Time
}

// Clone returns a deep copy so callers never share the history slice
// with the registry's live state.
func (d *DeviceState) Clone() DeviceState {
	clone := *d
	clone.RSSIHistory = append([]int(nil), d.RSSIHistory...)
	return clone
}
