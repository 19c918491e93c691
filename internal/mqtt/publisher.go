// Package mqtt bridges the device registry to an MQTT broker: retained
// availability and device-count topics plus arrive/depart events, so
// home automation can react to presence changes without polling the
// HTTP API.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for
// connection management with automatic reconnection. A will message
// flips the availability topic to "offline" on unexpected disconnects.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/track"
)

const publishInterval = 5 * time.Second

// SnapshotSource provides the current device table. Implemented by
// track.Registry.
type SnapshotSource interface {
	Snapshot() map[string]track.DeviceState
}

// presenceEvent is the payload for arrive and depart topics.
type presenceEvent struct {
	MAC          string  `json:"mac_address"`
	Hostname     string  `json:"hostname,omitempty"`
	Manufacturer string  `json:"manufacturer,omitempty"`
	DeviceType   string  `json:"device_type"`
	DistanceM    float64 `json:"distance_m"`
	Timestamp    string  `json:"timestamp"`
}

// Publisher watches the registry and publishes presence changes. It
// holds the set of MACs from the previous interval; a MAC that appears
// publishes an arrive event, one that disappears publishes depart.
type Publisher struct {
	cfg      config.MQTTConfig
	source   SnapshotSource
	clock    timeutil.Clock
	interval time.Duration

	mu      sync.Mutex
	present map[string]track.DeviceState
	cm      *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Run]
// to begin the connection and publish loop.
func New(cfg config.MQTTConfig, source SnapshotSource, clock timeutil.Clock) *Publisher {
	return &Publisher{
		cfg:      cfg,
		source:   source,
		clock:    clock,
		interval: publishInterval,
		present:  make(map[string]track.DeviceState),
	}
}

// Run connects to the broker and publishes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			monitoring.Logf("mqtt: connected to %s", p.cfg.BrokerURL)
			p.publishRetained(ctx, cm, p.availabilityTopic(), []byte("online"))
		},
		OnConnectError: func(err error) {
			monitoring.Logf("mqtt: connection error: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "presence-" + p.cfg.TopicPrefix,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		monitoring.Logf("mqtt: initial connection timed out, retrying in background: %v", err)
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return nil
		case <-ticker.C():
			p.publishChanges(ctx)
		}
	}
}

func (p *Publisher) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.publishRetained(ctx, p.cm, p.availabilityTopic(), []byte("offline"))
	if err := p.cm.Disconnect(ctx); err != nil {
		monitoring.Logf("mqtt: disconnect: %v", err)
	}
}

// diffPresence returns the devices that appeared in current and the
// ones that vanished from previous.
func diffPresence(previous, current map[string]track.DeviceState) (arrived, departed []track.DeviceState) {
	for mac, d := range current {
		if _, ok := previous[mac]; !ok {
			arrived = append(arrived, d)
		}
	}
	for mac, d := range previous {
		if _, ok := current[mac]; !ok {
			departed = append(departed, d)
		}
	}
	return arrived, departed
}

// publishChanges diffs the registry against the previous interval and
// emits arrive/depart events plus the retained device count.
func (p *Publisher) publishChanges(ctx context.Context) {
	current := p.source.Snapshot()

	p.mu.Lock()
	previous := p.present
	p.present = current
	p.mu.Unlock()

	arrived, departed := diffPresence(previous, current)
	for _, d := range arrived {
		p.publishEvent(ctx, p.topic("events/arrive"), d)
	}
	for _, d := range departed {
		p.publishEvent(ctx, p.topic("events/depart"), d)
	}

	p.publishRetained(ctx, p.cm, p.topic("devices/count"),
		[]byte(fmt.Sprintf("%d", len(current))))
}

func (p *Publisher) publishEvent(ctx context.Context, topic string, d track.DeviceState) {
	payload, err := json.Marshal(presenceEvent{
		MAC:          d.MAC,
		Hostname:     d.Hostname,
		Manufacturer: d.Manufacturer,
		DeviceType:   d.DeviceType,
		DistanceM:    d.DistanceM,
		Timestamp:    p.clock.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		monitoring.Logf("mqtt: marshal event: %v", err)
		return
	}

	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
	}); err != nil {
		monitoring.Logf("mqtt: publish %s failed: %v", topic, err)
	}
}

func (p *Publisher) publishRetained(ctx context.Context, cm *autopaho.ConnectionManager, topic string, payload []byte) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  true,
	}); err != nil {
		monitoring.Logf("mqtt: publish %s failed: %v", topic, err)
	}
}

func (p *Publisher) topic(suffix string) string {
	return p.cfg.TopicPrefix + "/" + suffix
}

func (p *Publisher) availabilityTopic() string {
	return p.topic("availability")
}
