package mqtt

import (
	"sort"
	"testing"
	"time"

	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/track"
)

func device(mac string) track.DeviceState {
	return track.DeviceState{MAC: mac, DeviceType: track.UnknownDevice}
}

func macs(devices []track.DeviceState) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.MAC)
	}
	sort.Strings(out)
	return out
}

func TestDiffPresence(t *testing.T) {
	previous := map[string]track.DeviceState{
		"A8:5C:2C:11:22:33": device("A8:5C:2C:11:22:33"),
		"94:76:B7:44:55:66": device("94:76:B7:44:55:66"),
	}
	current := map[string]track.DeviceState{
		"94:76:B7:44:55:66": device("94:76:B7:44:55:66"),
		"F0:18:98:77:88:99": device("F0:18:98:77:88:99"),
	}

	arrived, departed := diffPresence(previous, current)

	if got := macs(arrived); len(got) != 1 || got[0] != "F0:18:98:77:88:99" {
		t.Errorf("arrived = %v", got)
	}
	if got := macs(departed); len(got) != 1 || got[0] != "A8:5C:2C:11:22:33" {
		t.Errorf("departed = %v", got)
	}
}

func TestDiffPresenceNoChanges(t *testing.T) {
	snap := map[string]track.DeviceState{
		"A8:5C:2C:11:22:33": device("A8:5C:2C:11:22:33"),
	}

	arrived, departed := diffPresence(snap, snap)
	if len(arrived) != 0 || len(departed) != 0 {
		t.Errorf("diff of identical snapshots = (%v, %v)", arrived, departed)
	}
}

func TestDiffPresenceFirstInterval(t *testing.T) {
	current := map[string]track.DeviceState{
		"A8:5C:2C:11:22:33": device("A8:5C:2C:11:22:33"),
		"94:76:B7:44:55:66": device("94:76:B7:44:55:66"),
	}

	// Everything present on the first interval counts as arrived.
	arrived, departed := diffPresence(map[string]track.DeviceState{}, current)
	if len(arrived) != 2 {
		t.Errorf("arrived = %v, want both devices", macs(arrived))
	}
	if len(departed) != 0 {
		t.Errorf("departed = %v, want none", macs(departed))
	}
}

func TestTopicConstruction(t *testing.T) {
	p := New(config.MQTTConfig{TopicPrefix: "presence"}, nil,
		timeutil.NewMockClock(time.Now()))

	if got := p.availabilityTopic(); got != "presence/availability" {
		t.Errorf("availability topic = %q", got)
	}
	if got := p.topic("events/arrive"); got != "presence/events/arrive" {
		t.Errorf("arrive topic = %q", got)
	}
	if got := p.topic("devices/count"); got != "presence/devices/count" {
		t.Errorf("count topic = %q", got)
	}
}

func TestRunRejectsBadBrokerURL(t *testing.T) {
	p := New(config.MQTTConfig{BrokerURL: "://bad"}, nil,
		timeutil.NewMockClock(time.Now()))

	if err := p.Run(t.Context()); err == nil {
		t.Fatal("expected error for unparseable broker URL")
	}
}
