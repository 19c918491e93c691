//go:build pcap
// +build pcap

package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// PcapSource passively captures 802.11 management frames on a
// monitor-mode interface and reports the RadioTap signal strength per
// transmitter. It emits the same tabular format the platform tools
// produce so the one parser serves every source. Only available when
// building with the 'pcap' build tag.
type PcapSource struct {
	handle *pcap.Handle

	// captureWindow is how long one cycle listens for frames.
	captureWindow time.Duration
}

type pcapObservation struct {
	rssi int
	ssid string
}

// NewPcapSource opens a live capture on the given interface. The
// interface must already be in monitor mode.
func NewPcapSource(iface string, captureWindow time.Duration) (*PcapSource, error) {
	handle, err := pcap.OpenLive(iface, 4096, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture on %s: %w", iface, err)
	}

	// Beacons and probe responses carry both the transmitter address
	// and the SSID element.
	if err := handle.SetBPFFilter("type mgt and (subtype beacon or subtype probe-resp)"); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set BPF filter: %w", err)
	}

	if captureWindow <= 0 {
		captureWindow = time.Second
	}
	return &PcapSource{handle: handle, captureWindow: captureWindow}, nil
}

// Scan collects frames for one capture window and renders the
// strongest observation per transmitter as tabular scan text.
func (s *PcapSource) Scan(ctx context.Context) (string, error) {
	source := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	seen := make(map[string]pcapObservation)
	var order []string

	windowCtx, cancel := context.WithTimeout(ctx, s.captureWindow)
	defer cancel()

	for {
		select {
		case <-windowCtx.Done():
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return renderTable(seen, order), nil
		case packet, ok := <-source.Packets():
			if !ok {
				return renderTable(seen, order), nil
			}
			mac, obs, ok := decodeFrame(packet)
			if !ok {
				continue
			}
			prev, dup := seen[mac]
			if !dup {
				order = append(order, mac)
				seen[mac] = obs
			} else if obs.rssi > prev.rssi {
				if obs.ssid == "" {
					obs.ssid = prev.ssid
				}
				seen[mac] = obs
			}
		}
	}
}

// decodeFrame pulls the transmitter address, RadioTap RSSI, and SSID
// element out of one management frame.
func decodeFrame(packet gopacket.Packet) (string, pcapObservation, bool) {
	rtLayer := packet.Layer(layers.LayerTypeRadioTap)
	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if rtLayer == nil || dot11Layer == nil {
		return "", pcapObservation{}, false
	}

	rt := rtLayer.(*layers.RadioTap)
	dot11 := dot11Layer.(*layers.Dot11)

	rssi := int(rt.DBMAntennaSignal)
	if !ValidRSSI(rssi) {
		return "", pcapObservation{}, false
	}

	mac, ok := NormalizeMAC(dot11.Address2.String())
	if !ok {
		return "", pcapObservation{}, false
	}

	obs := pcapObservation{rssi: rssi}
	for _, l := range packet.Layers() {
		if elem, isElem := l.(*layers.Dot11InformationElement); isElem && elem.ID == layers.Dot11InformationElementIDSSID {
			obs.ssid = string(elem.Info)
			break
		}
	}
	return mac, obs, true
}

// renderTable formats captured observations in the airport-style layout
// the parser understands.
func renderTable(seen map[string]pcapObservation, order []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%32s %-17s %4s\n", "SSID", "BSSID", "RSSI")
	for _, mac := range order {
		obs := seen[mac]
		fmt.Fprintf(&b, "%32s %-17s %4d\n", obs.ssid, strings.ToLower(mac), obs.rssi)
	}
	return b.String()
}

// Close releases the capture handle.
func (s *PcapSource) Close() error {
	s.handle.Close()
	return nil
}
