// Package config holds the runtime tuning parameters for the device
// tracking pipeline. The JSON schema matches the /api/settings endpoint
// so the same payload works for startup configuration and runtime
// updates.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config represents the tunable parameters of the tracking pipeline.
// All fields are pointers so a partial JSON document (for example a
// POST to /api/settings) only touches the fields it names. The Get*
// accessors supply defaults for unset fields.
type Config struct {
	// Scan cadence
	ScanIntervalSeconds *int `json:"scan_interval_seconds,omitempty"`

	// Eviction
	StalenessThresholdSeconds *int `json:"staleness_threshold_seconds,omitempty"`
	ReapIntervalSeconds       *int `json:"reap_interval_seconds,omitempty"`

	// Distance model
	ReferencePowerDBm *float64 `json:"reference_power_dbm,omitempty"`
	PathLossExponent  *float64 `json:"path_loss_exponent,omitempty"`

	// Smoothing
	RSSIHistoryCapacity *int `json:"rssi_history_capacity,omitempty"`

	// Serving-edge filter: devices estimated beyond this distance are
	// omitted from the device list.
	DistanceThresholdM *float64 `json:"distance_threshold_m,omitempty"`
}

// Defaults for unset fields.
const (
	defaultScanIntervalSeconds       = 2
	defaultStalenessThresholdSeconds = 60
	defaultReferencePowerDBm         = -50.0
	defaultPathLossExponent          = 3.0
	defaultRSSIHistoryCapacity       = 5
	defaultDistanceThresholdM        = 30.0

	// The reaper runs slower than the scan cycle so a single missed
	// scan does not evict a live device.
	defaultReapMultiple = 4
)

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// GetScanInterval returns the scan cycle interval.
func (c *Config) GetScanInterval() time.Duration {
	if c.ScanIntervalSeconds != nil {
		return time.Duration(*c.ScanIntervalSeconds) * time.Second
	}
	return defaultScanIntervalSeconds * time.Second
}

// GetStalenessThreshold returns the maximum age since last observation
// before a device is evicted.
func (c *Config) GetStalenessThreshold() time.Duration {
	if c.StalenessThresholdSeconds != nil {
		return time.Duration(*c.StalenessThresholdSeconds) * time.Second
	}
	return defaultStalenessThresholdSeconds * time.Second
}

// GetReapInterval returns the staleness sweep cadence. Unset, it
// derives from the scan interval.
func (c *Config) GetReapInterval() time.Duration {
	if c.ReapIntervalSeconds != nil {
		return time.Duration(*c.ReapIntervalSeconds) * time.Second
	}
	return defaultReapMultiple * c.GetScanInterval()
}

// GetReferencePower returns the expected RSSI (dBm) at one meter.
func (c *Config) GetReferencePower() float64 {
	if c.ReferencePowerDBm != nil {
		return *c.ReferencePowerDBm
	}
	return defaultReferencePowerDBm
}

// GetPathLossExponent returns the environment path-loss exponent.
func (c *Config) GetPathLossExponent() float64 {
	if c.PathLossExponent != nil {
		return *c.PathLossExponent
	}
	return defaultPathLossExponent
}

// GetHistoryCapacity returns the bounded RSSI history length.
func (c *Config) GetHistoryCapacity() int {
	if c.RSSIHistoryCapacity != nil {
		return *c.RSSIHistoryCapacity
	}
	return defaultRSSIHistoryCapacity
}

// GetDistanceThreshold returns the serving-edge distance filter in meters.
func (c *Config) GetDistanceThreshold() float64 {
	if c.DistanceThresholdM != nil {
		return *c.DistanceThresholdM
	}
	return defaultDistanceThresholdM
}

// Validate checks all set fields against their allowed ranges. Unset
// fields are always valid since the defaults are.
func (c *Config) Validate() error {
	if c.ScanIntervalSeconds != nil {
		if v := *c.ScanIntervalSeconds; v < 1 || v > 60 {
			return fmt.Errorf("scan_interval_seconds %d out of range [1, 60]", v)
		}
	}
	if c.StalenessThresholdSeconds != nil {
		if v := *c.StalenessThresholdSeconds; v < 5 || v > 600 {
			return fmt.Errorf("staleness_threshold_seconds %d out of range [5, 600]", v)
		}
	}
	if c.ReapIntervalSeconds != nil {
		if v := *c.ReapIntervalSeconds; v < 1 || v > 600 {
			return fmt.Errorf("reap_interval_seconds %d out of range [1, 600]", v)
		}
	}
	if c.ReferencePowerDBm != nil {
		if v := *c.ReferencePowerDBm; v < -90 || v > -20 {
			return fmt.Errorf("reference_power_dbm %.1f out of range [-90, -20]", v)
		}
	}
	if c.PathLossExponent != nil {
		if v := *c.PathLossExponent; v <= 0 || v > 6 {
			return fmt.Errorf("path_loss_exponent %.2f out of range (0, 6]", v)
		}
	}
	if c.RSSIHistoryCapacity != nil {
		if v := *c.RSSIHistoryCapacity; v < 1 || v > 50 {
			return fmt.Errorf("rssi_history_capacity %d out of range [1, 50]", v)
		}
	}
	if c.DistanceThresholdM != nil {
		if v := *c.DistanceThresholdM; v < 1 || v > 100 {
			return fmt.Errorf("distance_threshold_m %.1f out of range [1, 100]", v)
		}
	}
	return nil
}

// Merge returns a copy of c with all set fields of other applied on top.
func (c *Config) Merge(other *Config) *Config {
	merged := c.Clone()
	if other == nil {
		return merged
	}
	if other.ScanIntervalSeconds != nil {
		merged.ScanIntervalSeconds = ptrInt(*other.ScanIntervalSeconds)
	}
	if other.StalenessThresholdSeconds != nil {
		merged.StalenessThresholdSeconds = ptrInt(*other.StalenessThresholdSeconds)
	}
	if other.ReapIntervalSeconds != nil {
		merged.ReapIntervalSeconds = ptrInt(*other.ReapIntervalSeconds)
	}
	if other.ReferencePowerDBm != nil {
		merged.ReferencePowerDBm = ptrFloat64(*other.ReferencePowerDBm)
	}
	if other.PathLossExponent != nil {
		merged.PathLossExponent = ptrFloat64(*other.PathLossExponent)
	}
	if other.RSSIHistoryCapacity != nil {
		merged.RSSIHistoryCapacity = ptrInt(*other.RSSIHistoryCapacity)
	}
	if other.DistanceThresholdM != nil {
		merged.DistanceThresholdM = ptrFloat64(*other.DistanceThresholdM)
	}
	return merged
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := &Config{}
	if c.ScanIntervalSeconds != nil {
		clone.ScanIntervalSeconds = ptrInt(*c.ScanIntervalSeconds)
	}
	if c.StalenessThresholdSeconds != nil {
		clone.StalenessThresholdSeconds = ptrInt(*c.StalenessThresholdSeconds)
	}
	if c.ReapIntervalSeconds != nil {
		clone.ReapIntervalSeconds = ptrInt(*c.ReapIntervalSeconds)
	}
	if c.ReferencePowerDBm != nil {
		clone.ReferencePowerDBm = ptrFloat64(*c.ReferencePowerDBm)
	}
	if c.PathLossExponent != nil {
		clone.PathLossExponent = ptrFloat64(*c.PathLossExponent)
	}
	if c.RSSIHistoryCapacity != nil {
		clone.RSSIHistoryCapacity = ptrInt(*c.RSSIHistoryCapacity)
	}
	if c.DistanceThresholdM != nil {
		clone.DistanceThresholdM = ptrFloat64(*c.DistanceThresholdM)
	}
	return clone
}

// Snapshot returns the effective values of every parameter with
// defaults applied, keyed by the JSON field names. Used by the settings
// GET endpoint.
func (c *Config) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"scan_interval_seconds":       int(c.GetScanInterval() / time.Second),
		"staleness_threshold_seconds": int(c.GetStalenessThreshold() / time.Second),
		"reap_interval_seconds":       int(c.GetReapInterval() / time.Second),
		"reference_power_dbm":         c.GetReferencePower(),
		"path_loss_exponent":          c.GetPathLossExponent(),
		"rssi_history_capacity":       c.GetHistoryCapacity(),
		"distance_threshold_m":        c.GetDistanceThreshold(),
	}
}

// LoadConfig loads a Config from a JSON file. Fields omitted from the
// file keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Saver persists a validated config. Implemented by the sqlite store so
// settings survive restarts; nil disables persistence.
type Saver interface {
	SaveSettings(cfg *Config) error
}

// Store holds the live config shared between the scheduler and the API
// server. Updates are validated before taking effect; an invalid update
// is rejected and the prior config stays in force.
type Store struct {
	mu    sync.RWMutex
	cfg   *Config
	saver Saver
}

// NewStore creates a Store seeded with the given config (nil for all
// defaults).
func NewStore(cfg *Config, saver Saver) *Store {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Store{cfg: cfg, saver: saver}
}

// Current returns a copy of the live config.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Update merges the partial config into the live one after validation.
// The merged result is persisted via the Saver when one is configured.
func (s *Store) Update(partial *Config) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.cfg.Merge(partial)
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	if s.saver != nil {
		if err := s.saver.SaveSettings(merged); err != nil {
			return nil, fmt.Errorf("failed to persist settings: %w", err)
		}
	}

	s.cfg = merged
	return merged.Clone(), nil
}
