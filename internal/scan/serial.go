package scan

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// Serial probe protocol: the host writes "SCAN\n", the probe (a
// microcontroller running promiscuous scan firmware) replies with the
// same tabular format the platform tools emit, terminated by an "END"
// line.
const (
	probeScanCommand = "SCAN\n"
	probeEndMarker   = "END"

	probeReadTimeout = 500 * time.Millisecond
)

// probePort is the slice of serial.Port the probe source needs; tests
// substitute an in-memory implementation.
type probePort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadTimeout(t time.Duration) error
	Close() error
}

// SerialProbeSource drives a serial-attached WiFi scanner probe.
type SerialProbeSource struct {
	port    probePort
	scanner *bufio.Scanner

	// scanDeadline bounds one probe exchange so a wedged probe fails
	// the cycle instead of stalling the scheduler forever.
	scanDeadline time.Duration
}

// NewSerialProbeSource opens the probe's serial port.
func NewSerialProbeSource(portName string, baud int) (*SerialProbeSource, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(probeReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return newSerialProbeSource(port), nil
}

func newSerialProbeSource(port probePort) *SerialProbeSource {
	return &SerialProbeSource{
		port:         port,
		scanner:      bufio.NewScanner(port),
		scanDeadline: 10 * time.Second,
	}
}

// Scan requests one scan from the probe and collects its output up to
// the END marker.
func (s *SerialProbeSource) Scan(ctx context.Context) (string, error) {
	if _, err := s.port.Write([]byte(probeScanCommand)); err != nil {
		return "", fmt.Errorf("failed to write scan command: %w", err)
	}

	deadline := time.Now().Add(s.scanDeadline)
	var b strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("probe did not finish within %v", s.scanDeadline)
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return "", fmt.Errorf("serial read failed: %w", err)
			}
			// Read timeout with no data; poll again until deadline.
			continue
		}

		line := s.scanner.Text()
		if strings.TrimSpace(line) == probeEndMarker {
			return b.String(), nil
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

// Close closes the serial port.
func (s *SerialProbeSource) Close() error {
	return s.port.Close()
}
