package monitor

import (
	"context"

	"github.com/google/uuid"

	"github.com/banshee-data/presence.report/internal/config"
	"github.com/banshee-data/presence.report/internal/monitoring"
	"github.com/banshee-data/presence.report/internal/scan"
	"github.com/banshee-data/presence.report/internal/timeutil"
	"github.com/banshee-data/presence.report/internal/track"
)

// IdentityResolver produces the identity handed to the registry for a
// scanned MAC. Implemented by identity.Resolver.
type IdentityResolver interface {
	Resolve(mac string, prior track.Identity) track.Identity
}

// Scheduler owns the scan cadence. Each tick runs one full cycle:
// scan, parse, resolve identity, smooth, estimate distance, upsert.
// A second slower ticker sweeps stale devices out of the registry.
// A failed cycle is logged and skipped; the next tick starts clean.
type Scheduler struct {
	source    scan.Source
	resolver  IdentityResolver
	registry  *track.Registry
	store     *config.Store
	clock     timeutil.Clock
	analytics *Analytics

	// Evictions counted by the reaper since the last recorded cycle.
	// Folded into the next cycle's stats; only touched from Run.
	pendingEvicted int
}

// NewScheduler wires a Scheduler. resolver may be nil when identity
// resolution is disabled (fixture runs).
func NewScheduler(source scan.Source, resolver IdentityResolver, registry *track.Registry, store *config.Store, clock timeutil.Clock, analytics *Analytics) *Scheduler {
	return &Scheduler{
		source:    source,
		resolver:  resolver,
		registry:  registry,
		store:     store,
		clock:     clock,
		analytics: analytics,
	}
}

// Run blocks until ctx is cancelled. The first cycle fires immediately
// so the device table is populated before the first tick elapses.
// Interval changes made through the settings API take effect on the
// following tick.
func (s *Scheduler) Run(ctx context.Context) error {
	cfg := s.store.Current()
	scanInterval := cfg.GetScanInterval()
	reapInterval := cfg.GetReapInterval()

	scanTicker := s.clock.NewTicker(scanInterval)
	defer scanTicker.Stop()
	reapTicker := s.clock.NewTicker(reapInterval)
	defer reapTicker.Stop()

	monitoring.Logf("scheduler started: scan every %v, reap every %v", scanInterval, reapInterval)

	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("scheduler stopping: %v", ctx.Err())
			return nil
		case <-scanTicker.C():
			s.cycle(ctx)
			if next := s.store.Current().GetScanInterval(); next != scanInterval {
				monitoring.Logf("scheduler: scan interval now %v", next)
				scanInterval = next
				scanTicker.Reset(next)
			}
		case <-reapTicker.C():
			s.reap()
			if next := s.store.Current().GetReapInterval(); next != reapInterval {
				reapInterval = next
				reapTicker.Reset(next)
			}
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	cfg := s.store.Current()
	cycleID := uuid.New().String()[:8]
	started := s.clock.Now()

	stats := CycleStats{ID: cycleID, StartedAt: started, Evicted: s.pendingEvicted}
	s.pendingEvicted = 0
	defer func() {
		stats.Duration = s.clock.Since(started)
		s.analytics.Record(stats)
	}()

	raw, err := s.source.Scan(ctx)
	if err != nil {
		monitoring.Logf("cycle %s: scan failed: %v", cycleID, err)
		stats.Failed = true
		stats.Error = err.Error()
		return
	}

	records, rejected, err := scan.Parse(raw, started)
	if err != nil {
		monitoring.Logf("cycle %s: parse failed: %v", cycleID, err)
		stats.Failed = true
		stats.Error = err.Error()
		return
	}
	stats.Devices = len(records)
	stats.RejectedLines = rejected

	smoother := track.NewSmoother(cfg.GetHistoryCapacity())
	refPower := cfg.GetReferencePower()
	pathLoss := cfg.GetPathLossExponent()

	for _, rec := range records {
		prior, _ := s.registry.Get(rec.MAC)

		ident := track.Identity{
			Hostname:     prior.Hostname,
			IPAddress:    prior.IPAddress,
			Manufacturer: prior.Manufacturer,
			DeviceType:   prior.DeviceType,
		}
		if s.resolver != nil {
			ident = s.resolver.Resolve(rec.MAC, ident)
		}

		history, smoothed := smoother.Update(prior.RSSIHistory, rec.RSSI)
		distance := track.EstimateDistance(smoothed, refPower, pathLoss)

		s.registry.Upsert(rec, ident, history, smoothed, distance)
	}

	if rejected > 0 {
		monitoring.Logf("cycle %s: %d devices, %d lines rejected", cycleID, len(records), rejected)
	}
}

func (s *Scheduler) reap() {
	threshold := s.store.Current().GetStalenessThreshold()
	if evicted := s.registry.Sweep(s.clock.Now(), threshold); evicted > 0 {
		monitoring.Logf("reaper: evicted %d stale devices (threshold %v)", evicted, threshold)
		s.pendingEvicted += evicted
	}
}
