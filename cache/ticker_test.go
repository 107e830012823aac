package cache

import (
	"testing"
	"time"
)

// TestPurgeTicker_TombstonesStaleEntries verifies the loop purges entries
// older than the retention window and tracks its stats.
func TestPurgeTicker_TombstonesStaleEntries(t *testing.T) {
	c := New(testConfig(), nil, nil, nil)

	c.Store(profileDescriptor(), accountDescriptor(), samplePath(), nil)
	c.Store(sensorDescriptor(), alertDescriptor(), samplePath(), nil)
	c.entries[0].LastUsed = time.Now().Add(-3 * time.Hour)

	ticker := NewPurgeTicker(c, TickerConfig{Interval: 20 * time.Millisecond, Retention: time.Hour}, nil)
	ticker.Start()
	defer ticker.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		stats := ticker.GetStats()
		if stats["runs"].(int64) >= 1 && stats["tombstoned"].(int64) >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Ticker never purged: %v", stats)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cacheStats := c.Stats()
	if cacheStats.TombstonedEntries != 1 {
		t.Errorf("Expected 1 tombstoned entry, got %d", cacheStats.TombstonedEntries)
	}
	if cacheStats.LiveEntries != 1 {
		t.Errorf("Expected the fresh entry to survive, got %d live", cacheStats.LiveEntries)
	}

	stats := ticker.GetStats()
	if stats["tombstoned"].(int64) != 1 {
		t.Errorf("Expected ticker to count 1 tombstone, got %v", stats["tombstoned"])
	}
	if stats["last_run_at"].(time.Time).IsZero() {
		t.Error("Expected a last run timestamp")
	}
}

// TestPurgeTicker_StartStop verifies a ticker that never fires stops
// cleanly.
func TestPurgeTicker_StartStop(t *testing.T) {
	c := New(testConfig(), nil, nil, nil)
	ticker := NewPurgeTicker(c, TickerConfig{Interval: time.Hour, Retention: time.Hour}, nil)

	ticker.Start()
	ticker.Stop()

	stats := ticker.GetStats()
	if stats["runs"].(int64) != 0 {
		t.Errorf("Expected no runs, got %v", stats["runs"])
	}
}

// TestNewPurgeTicker_Defaults verifies non-positive config values fall back
// to the stock cadence.
func TestNewPurgeTicker_Defaults(t *testing.T) {
	c := New(testConfig(), nil, nil, nil)
	ticker := NewPurgeTicker(c, TickerConfig{}, nil)

	if ticker.interval != 24*time.Hour {
		t.Errorf("Expected 24h interval, got %s", ticker.interval)
	}
	if ticker.retention != 2160*time.Hour {
		t.Errorf("Expected 2160h retention, got %s", ticker.retention)
	}
}
