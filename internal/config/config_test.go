package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.GetScanInterval(); got != 2*time.Second {
		t.Errorf("GetScanInterval() = %v, want 2s", got)
	}
	if got := cfg.GetStalenessThreshold(); got != 60*time.Second {
		t.Errorf("GetStalenessThreshold() = %v, want 60s", got)
	}
	if got := cfg.GetReapInterval(); got != 8*time.Second {
		t.Errorf("GetReapInterval() = %v, want 8s (4x scan interval)", got)
	}
	if got := cfg.GetReferencePower(); got != -50.0 {
		t.Errorf("GetReferencePower() = %v, want -50", got)
	}
	if got := cfg.GetPathLossExponent(); got != 3.0 {
		t.Errorf("GetPathLossExponent() = %v, want 3.0", got)
	}
	if got := cfg.GetHistoryCapacity(); got != 5 {
		t.Errorf("GetHistoryCapacity() = %v, want 5", got)
	}
	if got := cfg.GetDistanceThreshold(); got != 30.0 {
		t.Errorf("GetDistanceThreshold() = %v, want 30", got)
	}
}

func TestReapIntervalTracksScanInterval(t *testing.T) {
	cfg := &Config{ScanIntervalSeconds: ptrInt(5)}
	if got := cfg.GetReapInterval(); got != 20*time.Second {
		t.Errorf("GetReapInterval() = %v, want 20s", got)
	}

	cfg.ReapIntervalSeconds = ptrInt(45)
	if got := cfg.GetReapInterval(); got != 45*time.Second {
		t.Errorf("explicit GetReapInterval() = %v, want 45s", got)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty is valid", Config{}, false},
		{"valid interval", Config{ScanIntervalSeconds: ptrInt(10)}, false},
		{"interval too small", Config{ScanIntervalSeconds: ptrInt(0)}, true},
		{"interval too large", Config{ScanIntervalSeconds: ptrInt(61)}, true},
		{"staleness too small", Config{StalenessThresholdSeconds: ptrInt(2)}, true},
		{"reference power too strong", Config{ReferencePowerDBm: ptrFloat64(-10)}, true},
		{"reference power too weak", Config{ReferencePowerDBm: ptrFloat64(-95)}, true},
		{"zero exponent", Config{PathLossExponent: ptrFloat64(0)}, true},
		{"free space exponent", Config{PathLossExponent: ptrFloat64(2.0)}, false},
		{"capacity zero", Config{RSSIHistoryCapacity: ptrInt(0)}, true},
		{"capacity large", Config{RSSIHistoryCapacity: ptrInt(51)}, true},
		{"distance threshold low", Config{DistanceThresholdM: ptrFloat64(0.5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMergeAppliesOnlySetFields(t *testing.T) {
	base := &Config{
		ScanIntervalSeconds: ptrInt(2),
		PathLossExponent:    ptrFloat64(3.0),
	}
	merged := base.Merge(&Config{ScanIntervalSeconds: ptrInt(5)})

	if got := merged.GetScanInterval(); got != 5*time.Second {
		t.Errorf("merged interval = %v, want 5s", got)
	}
	if got := merged.GetPathLossExponent(); got != 3.0 {
		t.Errorf("merged exponent = %v, want untouched 3.0", got)
	}
	// Base must not be mutated.
	if got := base.GetScanInterval(); got != 2*time.Second {
		t.Errorf("base interval mutated to %v", got)
	}
}

func TestStoreRejectsInvalidUpdateKeepsPrior(t *testing.T) {
	store := NewStore(&Config{ScanIntervalSeconds: ptrInt(2)}, nil)

	if _, err := store.Update(&Config{ScanIntervalSeconds: ptrInt(999)}); err == nil {
		t.Fatal("expected validation error for out-of-range interval")
	}

	if got := store.Current().GetScanInterval(); got != 2*time.Second {
		t.Errorf("config after rejected update = %v, want prior 2s", got)
	}
}

func TestStoreUpdateAppliesAndReturnsMerged(t *testing.T) {
	store := NewStore(nil, nil)

	updated, err := store.Update(&Config{DistanceThresholdM: ptrFloat64(15)})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got := updated.GetDistanceThreshold(); got != 15.0 {
		t.Errorf("updated threshold = %v, want 15", got)
	}
	if got := store.Current().GetDistanceThreshold(); got != 15.0 {
		t.Errorf("store threshold = %v, want 15", got)
	}
}

type recordingSaver struct {
	saved []*Config
	err   error
}

func (s *recordingSaver) SaveSettings(cfg *Config) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, cfg)
	return nil
}

func TestStorePersistsOnUpdate(t *testing.T) {
	saver := &recordingSaver{}
	store := NewStore(nil, saver)

	if _, err := store.Update(&Config{ScanIntervalSeconds: ptrInt(4)}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("saved %d configs, want 1", len(saver.saved))
	}
	if got := saver.saved[0].GetScanInterval(); got != 4*time.Second {
		t.Errorf("persisted interval = %v, want 4s", got)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	if err := os.WriteFile(path, []byte(`{"scan_interval_seconds": 3, "path_loss_exponent": 2.5}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.GetScanInterval(); got != 3*time.Second {
		t.Errorf("interval = %v, want 3s", got)
	}
	if got := cfg.GetPathLossExponent(); got != 2.5 {
		t.Errorf("exponent = %v, want 2.5", got)
	}
	// Omitted fields keep defaults.
	if got := cfg.GetHistoryCapacity(); got != 5 {
		t.Errorf("capacity = %v, want default 5", got)
	}
}

func TestLoadConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadConfig("settings.yaml"); err == nil {
		t.Error("expected extension error")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`{"scan_interval_seconds": 0}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected validation error")
	}
}
