package track

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/presence.report/internal/scan"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func record(mac string, rssi int, at time.Time) scan.Record {
	return scan.Record{MAC: mac, RSSI: rssi, ObservedAt: at}
}

func TestUpsertCreatesDevice(t *testing.T) {
	r := NewRegistry()
	r.Upsert(record("A8:5C:2C:11:22:33", -52, t0), Identity{Manufacturer: "Apple, Inc."}, []int{-52}, -52, 1.17)

	d, ok := r.Get("A8:5C:2C:11:22:33")
	require.True(t, ok)
	assert.Equal(t, "A8:5C:2C:11:22:33", d.MAC)
	assert.Equal(t, []int{-52}, d.RSSIHistory)
	assert.Equal(t, -52.0, d.SmoothedRSSI)
	assert.Equal(t, 1.17, d.DistanceM)
	assert.Equal(t, "Apple, Inc.", d.Manufacturer)
	assert.Equal(t, UnknownDevice, d.DeviceType)
	assert.Equal(t, t0, d.FirstSeen)
	assert.Equal(t, t0, d.LastSeen)
}

func TestUpsertSecondCycleUpdatesMeasurementState(t *testing.T) {
	r := NewRegistry()
	t1 := t0.Add(2 * time.Second)

	r.Upsert(record("A8:5C:2C:11:22:33", -60, t0), Identity{}, []int{-60}, -60, 2.15)
	r.Upsert(record("A8:5C:2C:11:22:33", -70, t1), Identity{}, []int{-60, -70}, -65, 3.16)

	d, ok := r.Get("A8:5C:2C:11:22:33")
	require.True(t, ok)
	assert.Equal(t, []int{-60, -70}, d.RSSIHistory, "history keeps both samples in order")
	assert.Equal(t, t1, d.LastSeen, "last_seen advances to the second cycle")
	assert.Equal(t, t0, d.FirstSeen, "first_seen is immutable")
	assert.Equal(t, -65.0, d.SmoothedRSSI)
}

func TestUpsertLastSeenNeverRegresses(t *testing.T) {
	r := NewRegistry()
	t1 := t0.Add(2 * time.Second)

	r.Upsert(record("A8:5C:2C:11:22:33", -60, t1), Identity{}, []int{-60}, -60, 2)
	r.Upsert(record("A8:5C:2C:11:22:33", -61, t0), Identity{}, []int{-60, -61}, -60.5, 2)

	d, _ := r.Get("A8:5C:2C:11:22:33")
	assert.Equal(t, t1, d.LastSeen)
}

func TestUpsertIdentityUpgradePolicy(t *testing.T) {
	r := NewRegistry()
	mac := "A8:5C:2C:11:22:33"

	r.Upsert(record(mac, -52, t0), Identity{
		Hostname:     "johns-iphone.local",
		IPAddress:    "192.168.1.23",
		Manufacturer: "Apple, Inc.",
		DeviceType:   "iPhone",
	}, []int{-52}, -52, 1)

	// A later cycle with no identity hints must not erase anything.
	r.Upsert(record(mac, -55, t0.Add(2*time.Second)), Identity{}, []int{-52, -55}, -53.5, 1.2)

	d, _ := r.Get(mac)
	assert.Equal(t, "johns-iphone.local", d.Hostname)
	assert.Equal(t, "192.168.1.23", d.IPAddress)
	assert.Equal(t, "Apple, Inc.", d.Manufacturer)
	assert.Equal(t, "iPhone", d.DeviceType)

	// The generic category never replaces a specific one.
	r.Upsert(record(mac, -55, t0.Add(4*time.Second)), Identity{DeviceType: UnknownDevice}, []int{-55}, -55, 1.4)
	d, _ = r.Get(mac)
	assert.Equal(t, "iPhone", d.DeviceType)

	// A fresh non-empty hostname is accepted (device was renamed).
	r.Upsert(record(mac, -55, t0.Add(6*time.Second)), Identity{Hostname: "johns-iphone-15.local"}, []int{-55}, -55, 1.4)
	d, _ = r.Get(mac)
	assert.Equal(t, "johns-iphone-15.local", d.Hostname)
}

func TestUpsertDeviceTypeFillsInWhenUnknown(t *testing.T) {
	r := NewRegistry()
	mac := "94:76:B7:44:55:66"

	r.Upsert(record(mac, -60, t0), Identity{}, []int{-60}, -60, 2)
	d, _ := r.Get(mac)
	require.Equal(t, UnknownDevice, d.DeviceType)

	// Manufacturer resolved on a later cycle upgrades the category.
	r.Upsert(record(mac, -60, t0.Add(2*time.Second)), Identity{
		Manufacturer: "Samsung Electronics",
		DeviceType:   "Android Phone",
	}, []int{-60, -60}, -60, 2)

	d, _ = r.Get(mac)
	assert.Equal(t, "Samsung Electronics", d.Manufacturer)
	assert.Equal(t, "Android Phone", d.DeviceType)
}

func TestSnapshotReturnsIsolatedCopies(t *testing.T) {
	r := NewRegistry()
	mac := "A8:5C:2C:11:22:33"
	r.Upsert(record(mac, -52, t0), Identity{}, []int{-52, -53}, -52.5, 1.2)

	snap := r.Snapshot()
	require.Len(t, snap, 1)

	// Mutating the snapshot must not touch the registry.
	d := snap[mac]
	d.RSSIHistory[0] = 0
	d.Hostname = "tampered"

	fresh, _ := r.Get(mac)
	assert.Equal(t, -52, fresh.RSSIHistory[0])
	assert.Empty(t, fresh.Hostname)
}

func TestSnapshotReflectsUpsertExactly(t *testing.T) {
	r := NewRegistry()
	mac := "A8:5C:2C:11:22:33"
	r.Upsert(record(mac, -65, t0), Identity{Hostname: "tv.local"}, []int{-60, -65}, -62.5, 2.6)

	d, ok := r.Snapshot()[mac]
	require.True(t, ok)
	assert.Equal(t, []int{-60, -65}, d.RSSIHistory)
	assert.Equal(t, -62.5, d.SmoothedRSSI)
	assert.Equal(t, 2.6, d.DistanceM)
	assert.Equal(t, "tv.local", d.Hostname)
	assert.Equal(t, t0, d.LastSeen)
}

func TestSweepEvictsOnlyStaleDevices(t *testing.T) {
	r := NewRegistry()
	r.Upsert(record("A8:5C:2C:11:22:33", -52, t0), Identity{}, []int{-52}, -52, 1)
	r.Upsert(record("94:76:B7:44:55:66", -60, t0.Add(50*time.Second)), Identity{}, []int{-60}, -60, 2)

	now := t0.Add(70 * time.Second)
	evicted := r.Sweep(now, 60*time.Second)

	assert.Equal(t, 1, evicted)
	_, ok := r.Get("A8:5C:2C:11:22:33")
	assert.False(t, ok, "stale device must be gone")
	_, ok = r.Get("94:76:B7:44:55:66")
	assert.True(t, ok, "device seen within threshold survives")
}

func TestSweepExactThresholdSurvives(t *testing.T) {
	r := NewRegistry()
	r.Upsert(record("A8:5C:2C:11:22:33", -52, t0), Identity{}, []int{-52}, -52, 1)

	// Eviction requires strictly greater than the threshold.
	evicted := r.Sweep(t0.Add(60*time.Second), 60*time.Second)
	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, r.Len())
}

func TestConcurrentReadersDuringUpserts(t *testing.T) {
	r := NewRegistry()
	mac := "A8:5C:2C:11:22:33"

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			at := t0.Add(time.Duration(i) * time.Second)
			r.Upsert(record(mac, -52, at), Identity{Hostname: "h"}, []int{-52, -53, -54}, -53, 1.3)
		}
		close(stop)
	}()

	wg.Add(2)
	for g := 0; g < 2; g++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := r.Snapshot()
				if d, ok := snap[mac]; ok {
					// A reader must only ever observe complete states.
					if len(d.RSSIHistory) != 3 {
						t.Errorf("observed partial history %v", d.RSSIHistory)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}
