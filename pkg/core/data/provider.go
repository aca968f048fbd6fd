// Package data defines the boundary to financial snapshot sources. The engine
// never fetches market data itself; callers hand it a SnapshotProvider.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agentic_signals/pkg/models"
)

// ErrDataUnavailable signals that the provider has no snapshot for the
// requested ticker. The engine surfaces it without retrying or caching.
var ErrDataUnavailable = errors.New("snapshot data unavailable")

// SnapshotProvider supplies immutable financial snapshots. Implementations own
// their freshness and retry policy; the engine treats every call as final.
type SnapshotProvider interface {
	GetSnapshot(ctx context.Context, ticker string, asOf time.Time) (*models.FinancialSnapshot, error)
}

// FixtureProvider reads snapshots from JSON fixture files, one per ticker.
// Used by the CLI simulation mode and tests.
type FixtureProvider struct {
	dir string
}

var _ SnapshotProvider = (*FixtureProvider)(nil)

// NewFixtureProvider serves snapshots from dir/<TICKER>.json.
func NewFixtureProvider(dir string) *FixtureProvider {
	return &FixtureProvider{dir: dir}
}

func (p *FixtureProvider) GetSnapshot(ctx context.Context, ticker string, asOf time.Time) (*models.FinancialSnapshot, error) {
	path := filepath.Join(p.dir, strings.ToUpper(ticker)+".json")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no fixture for %s", ErrDataUnavailable, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}

	var snapshot models.FinancialSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if snapshot.Ticker == "" {
		snapshot.Ticker = strings.ToUpper(ticker)
	}
	return &snapshot, nil
}

// StaticProvider serves a fixed in-memory snapshot set. Test helper.
type StaticProvider struct {
	Snapshots map[string]*models.FinancialSnapshot
}

var _ SnapshotProvider = (*StaticProvider)(nil)

func (p *StaticProvider) GetSnapshot(ctx context.Context, ticker string, asOf time.Time) (*models.FinancialSnapshot, error) {
	if s, ok := p.Snapshots[strings.ToUpper(ticker)]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, ticker)
}
