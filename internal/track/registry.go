package track

import (
	"sync"
	"time"

	"github.com/banshee-data/presence.report/internal/scan"
)

// Registry is the authoritative map of MAC address to device state. It
// is the only component with mutation authority: the scheduler funnels
// every change through Upsert and Sweep under a single lock, while the
// serving layer reads value copies via Snapshot/Get at any time.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*DeviceState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*DeviceState)}
}

// Upsert creates or updates the state for the record's MAC. History,
// smoothed RSSI, distance, and last-seen are replaced unconditionally;
// identity fields follow the upgrade policy: an empty resolved field
// never clobbers a known value, and manufacturer/device type are only
// filled in while absent (or the generic unknown category).
func (r *Registry) Upsert(rec scan.Record, ident Identity, history []int, smoothed, distance float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[rec.MAC]
	if !ok {
		d = &DeviceState{
			MAC:       rec.MAC,
			FirstSeen: rec.ObservedAt,
		}
		r.devices[rec.MAC] = d
	}

	d.RSSIHistory = append([]int(nil), history...)
	d.SmoothedRSSI = smoothed
	d.DistanceM = distance
	if rec.ObservedAt.After(d.LastSeen) {
		d.LastSeen = rec.ObservedAt
	}
	if rec.SSID != "" {
		d.SSID = rec.SSID
	}

	if ident.Hostname != "" {
		d.Hostname = ident.Hostname
	}
	if ident.IPAddress != "" {
		d.IPAddress = ident.IPAddress
	}
	if ident.Manufacturer != "" && d.Manufacturer == "" {
		d.Manufacturer = ident.Manufacturer
	}
	if ident.DeviceType != "" && ident.DeviceType != UnknownDevice &&
		(d.DeviceType == "" || d.DeviceType == UnknownDevice) {
		d.DeviceType = ident.DeviceType
	}
	if d.DeviceType == "" {
		d.DeviceType = UnknownDevice
	}
}

// Get returns a copy of the state for a MAC, if present.
func (r *Registry) Get(mac string) (DeviceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[mac]
	if !ok {
		return DeviceState{}, false
	}
	return d.Clone(), true
}

// Snapshot returns value copies of every device, keyed by MAC. Readers
// never observe a half-updated state and never race with in-flight
// mutation.
func (r *Registry) Snapshot() map[string]DeviceState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]DeviceState, len(r.devices))
	for mac, d := range r.devices {
		out[mac] = d.Clone()
	}
	return out
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Sweep evicts every device unseen for longer than threshold and
// returns the eviction count. Eviction is immediate removal; there are
// no tombstones.
func (r *Registry) Sweep(now time.Time, threshold time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for mac, d := range r.devices {
		if now.Sub(d.LastSeen) > threshold {
			delete(r.devices, mac)
			evicted++
		}
	}
	return evicted
}
