package scan

import (
	"context"
	"fmt"
	"os/exec"
)

// NmcliSource invokes NetworkManager's nmcli for each cycle on Linux.
// The tabular output carries signal strength as a 0-100 percentage,
// which the parser converts back to approximate dBm.
type NmcliSource struct {
	iface  string
	runner commandRunner
}

// NewNmcliSource creates the Linux scan source.
func NewNmcliSource(iface string) (*NmcliSource, error) {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil, fmt.Errorf("nmcli not found in PATH: %w", err)
	}
	return &NmcliSource{iface: iface, runner: execRunner}, nil
}

// Scan runs one nmcli wifi listing and returns its raw output. The
// rescan flag forces a fresh radio sweep rather than serving
// NetworkManager's cache.
func (s *NmcliSource) Scan(ctx context.Context) (string, error) {
	args := []string{"-f", "BSSID,SSID,SIGNAL", "device", "wifi", "list", "--rescan", "yes"}
	if s.iface != "" {
		args = append(args, "ifname", s.iface)
	}
	out, err := s.runner(ctx, "nmcli", args...)
	if err != nil {
		return "", fmt.Errorf("nmcli scan failed: %w", err)
	}
	return string(out), nil
}

// Close is a no-op; nmcli is a one-shot process per cycle.
func (s *NmcliSource) Close() error { return nil }
