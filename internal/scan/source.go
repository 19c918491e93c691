package scan

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Source produces the raw textual output of one scan invocation. The
// scheduler calls Scan once per cycle and never concurrently; a Scan
// call may take several seconds. Implementations release their
// resources in Close.
type Source interface {
	Scan(ctx context.Context) (string, error)
	Close() error
}

// commandRunner abstracts process invocation so exec-backed sources can
// be tested without the platform scan tools installed.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

// FixtureSource replays canned scan output, used in dev mode and tests.
type FixtureSource struct {
	data []byte
}

// NewFixtureSource creates a FixtureSource serving the given blob.
func NewFixtureSource(data []byte) *FixtureSource {
	return &FixtureSource{data: data}
}

// NewFixtureSourceFromFile loads the fixture blob once at startup.
func NewFixtureSourceFromFile(path string) (*FixtureSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file: %w", err)
	}
	return &FixtureSource{data: data}, nil
}

// Scan returns the canned blob.
func (s *FixtureSource) Scan(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s.data), nil
}

// Close is a no-op for fixtures.
func (s *FixtureSource) Close() error { return nil }
