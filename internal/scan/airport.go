package scan

import (
	"context"
	"fmt"
	"os"
)

// airportPath is the private macOS framework binary that performs WiFi
// scans. It prints a tabular listing with SSID/BSSID/RSSI columns.
const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// AirportSource invokes the macOS airport utility for each cycle.
type AirportSource struct {
	iface  string
	runner commandRunner
}

// NewAirportSource creates the macOS scan source. The interface name
// may be empty, in which case airport scans the default WiFi interface.
func NewAirportSource(iface string) (*AirportSource, error) {
	if _, err := os.Stat(airportPath); err != nil {
		return nil, fmt.Errorf("airport command not found (is this macOS?): %w", err)
	}
	return &AirportSource{iface: iface, runner: execRunner}, nil
}

// Scan runs one airport scan and returns its raw output.
func (s *AirportSource) Scan(ctx context.Context) (string, error) {
	args := []string{"-s"}
	if s.iface != "" {
		args = append(args, "-i", s.iface)
	}
	out, err := s.runner(ctx, airportPath, args...)
	if err != nil {
		return "", fmt.Errorf("airport scan failed: %w", err)
	}
	return string(out), nil
}

// Close is a no-op; airport is a one-shot process per cycle.
func (s *AirportSource) Close() error { return nil }
