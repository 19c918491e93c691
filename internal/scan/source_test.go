package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFixtureSourceReplaysBlob(t *testing.T) {
	src := NewFixtureSource([]byte(airportFixture))
	defer src.Close()

	out, err := src.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if out != airportFixture {
		t.Errorf("Scan returned %q", out)
	}

	// Repeat cycles serve the same blob.
	out2, err := src.Scan(context.Background())
	if err != nil || out2 != out {
		t.Errorf("second Scan = %q, %v", out2, err)
	}
}

func TestFixtureSourceFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.txt")
	if err := os.WriteFile(path, []byte(airportFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := NewFixtureSourceFromFile(path)
	if err != nil {
		t.Fatalf("NewFixtureSourceFromFile failed: %v", err)
	}
	out, err := src.Scan(context.Background())
	if err != nil || out != airportFixture {
		t.Errorf("Scan = %q, %v", out, err)
	}
}

func TestFixtureSourceHonorsCancellation(t *testing.T) {
	src := NewFixtureSource([]byte("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAirportSourceArgs(t *testing.T) {
	var gotName string
	var gotArgs []string
	src := &AirportSource{
		iface: "en0",
		runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			gotName = name
			gotArgs = args
			return []byte(airportFixture), nil
		},
	}

	out, err := src.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if out != airportFixture {
		t.Errorf("output = %q", out)
	}
	if gotName != airportPath {
		t.Errorf("invoked %q, want airport binary", gotName)
	}
	wantArgs := []string{"-s", "-i", "en0"}
	if strings.Join(gotArgs, " ") != strings.Join(wantArgs, " ") {
		t.Errorf("args = %v, want %v", gotArgs, wantArgs)
	}
}

func TestAirportSourcePropagatesFailure(t *testing.T) {
	src := &AirportSource{
		runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, errors.New("exec format error")
		},
	}
	if _, err := src.Scan(context.Background()); err == nil {
		t.Error("expected error from failing runner")
	}
}

func TestNmcliSourceArgs(t *testing.T) {
	var gotArgs []string
	src := &NmcliSource{
		iface: "wlan0",
		runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = args
			return []byte("BSSID  SSID  SIGNAL\n"), nil
		},
	}

	if _, err := src.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "--rescan yes") {
		t.Errorf("args missing rescan: %v", gotArgs)
	}
	if !strings.Contains(joined, "ifname wlan0") {
		t.Errorf("args missing ifname: %v", gotArgs)
	}
}

// fakeProbePort simulates the serial probe: a SCAN command elicits the
// canned response.
type fakeProbePort struct {
	response    string
	buf         []byte
	commands    []string
	closed      bool
	readTimeout time.Duration
	failWrites  bool
}

func (p *fakeProbePort) Write(b []byte) (int, error) {
	if p.failWrites {
		return 0, errors.New("port gone")
	}
	p.commands = append(p.commands, string(b))
	if strings.TrimSpace(string(b)) == "SCAN" {
		p.buf = append(p.buf, []byte(p.response)...)
	}
	return len(b), nil
}

func (p *fakeProbePort) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		// Emulate a read timeout with no data.
		return 0, nil
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *fakeProbePort) SetReadTimeout(t time.Duration) error {
	p.readTimeout = t
	return nil
}

func (p *fakeProbePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialProbeSourceScan(t *testing.T) {
	port := &fakeProbePort{response: airportFixture + "END\n"}
	src := newSerialProbeSource(port)

	out, err := src.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if out != airportFixture {
		t.Errorf("Scan output = %q, want fixture without END marker", out)
	}
	if len(port.commands) != 1 || strings.TrimSpace(port.commands[0]) != "SCAN" {
		t.Errorf("commands = %v, want one SCAN", port.commands)
	}
}

func TestSerialProbeSourceWriteFailure(t *testing.T) {
	port := &fakeProbePort{failWrites: true}
	src := newSerialProbeSource(port)

	if _, err := src.Scan(context.Background()); err == nil {
		t.Error("expected write error")
	}
}

func TestSerialProbeSourceDeadline(t *testing.T) {
	// Probe never sends END; the scan must give up at the deadline.
	port := &fakeProbePort{response: "partial line\n"}
	src := newSerialProbeSource(port)
	src.scanDeadline = 50 * time.Millisecond

	if _, err := src.Scan(context.Background()); err == nil {
		t.Error("expected deadline error")
	}
}

func TestSerialProbeSourceClose(t *testing.T) {
	port := &fakeProbePort{}
	src := newSerialProbeSource(port)
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
}
