package identity

import (
	"context"
	"net"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/scan"
	"github.com/banshee-data/presence.report/internal/timeutil"
)

// Hint carries network-layer identity for a MAC learned outside the
// WiFi scan path.
type Hint struct {
	Hostname  string
	IPAddress string
}

// HintSource answers hostname/IP queries for a MAC address.
type HintSource interface {
	Hint(mac string) (Hint, bool)
}

// Matches one neighbour entry from `arp -a` output on both Linux and
// macOS, e.g. "host.local (192.168.1.23) at a8:5c:2c:1:22:33 on en0".
var arpEntryPattern = regexp.MustCompile(
	`^(\S+)\s+\(([0-9.]+)\)\s+at\s+([0-9a-fA-F]{1,2}(?::[0-9a-fA-F]{1,2}){5})\b`)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type addrResolver func(ip string) ([]string, error)

// HintProvider polls the system ARP table and fills gaps with reverse
// DNS, maintaining a MAC→Hint map the scan cycle reads without ever
// touching the network itself.
type HintProvider struct {
	run      commandRunner
	resolve  addrResolver
	clock    timeutil.Clock
	interval time.Duration

	mu    sync.RWMutex
	hints map[string]Hint
}

// NewHintProvider creates a HintProvider that refreshes every interval.
func NewHintProvider(clock timeutil.Clock, interval time.Duration) *HintProvider {
	return &HintProvider{
		run:      execRunner,
		resolve:  net.LookupAddr,
		clock:    clock,
		interval: interval,
		hints:    make(map[string]Hint),
	}
}

// Hint returns the last known hostname/IP for mac. Absence of a hint
// is normal; most WiFi neighbours never appear in the ARP table.
func (p *HintProvider) Hint(mac string) (Hint, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.hints[mac]
	return h, ok
}

// Run polls until ctx is cancelled. An immediate refresh happens on
// entry so the first scan cycles are not hintless for a full interval.
func (p *HintProvider) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.refresh(ctx)
		}
	}
}

func (p *HintProvider) refresh(ctx context.Context) {
	out, err := p.run(ctx, "arp", "-a")
	if err != nil {
		monitoring.Logf("hints: arp poll failed: %v", err)
		return
	}

	fresh := p.parseARP(string(out))

	p.mu.Lock()
	defer p.mu.Unlock()
	// Merge rather than replace: ARP entries expire faster than the
	// hints stay useful, and a stale hostname beats none.
	for mac, h := range fresh {
		p.hints[mac] = h
	}
}

func (p *HintProvider) parseARP(out string) map[string]Hint {
	hints := make(map[string]Hint)
	for _, line := range strings.Split(out, "\n") {
		m := arpEntryPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		mac, ok := scan.NormalizeMAC(padOctets(m[3]))
		if !ok {
			continue
		}

		h := Hint{IPAddress: m[2]}
		if m[1] != "?" {
			h.Hostname = m[1]
		} else if names, err := p.resolve(m[2]); err == nil && len(names) > 0 {
			h.Hostname = strings.TrimSuffix(names[0], ".")
		}
		hints[mac] = h
	}
	return hints
}

// padOctets widens single-digit hex octets (macOS arp prints
// "a8:5c:2c:1:2:33") to the canonical two-digit form.
func padOctets(mac string) string {
	parts := strings.Split(mac, ":")
	for i, part := range parts {
		if len(part) == 1 {
			parts[i] = "0" + part
		}
	}
	return strings.Join(parts, ":")
}
