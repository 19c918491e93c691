//go:build !pcap
// +build !pcap

package scan

import (
	"context"
	"fmt"
	"time"
)

// PcapSource is unavailable without the 'pcap' build tag, which keeps
// default builds free of the libpcap dependency.
type PcapSource struct{}

// NewPcapSource reports that this binary was built without capture
// support.
func NewPcapSource(iface string, captureWindow time.Duration) (*PcapSource, error) {
	return nil, fmt.Errorf("pcap support not built in (rebuild with -tags pcap)")
}

// Scan satisfies Source so callers type-check in non-pcap builds.
func (s *PcapSource) Scan(ctx context.Context) (string, error) {
	return "", fmt.Errorf("pcap support not built in")
}

// Close satisfies Source.
func (s *PcapSource) Close() error { return nil }
