package commands

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ctest "github.com/teranos/concord/internal/testing"
	"github.com/teranos/concord/logger"
	"github.com/teranos/concord/monitor"
	"github.com/teranos/concord/store"
	"github.com/teranos/concord/sym"
)

func TestOpenDatabaseCreatesAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "concord.db")

	database, err := openDatabase(path)
	require.NoError(t, err)
	defer database.Close()

	// Migrations ran: the records table is queryable
	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestParseDataArg(t *testing.T) {
	tests := []struct {
		name string
		arg  string
		want any
	}{
		{"object", `{"total": 9.5}`, map[string]any{"total": 9.5}},
		{"number", `42`, float64(42)},
		{"quoted string", `"EUR"`, "EUR"},
		{"bare string falls through", "EUR", "EUR"},
		{"malformed json falls through", `{"total":`, `{"total":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDataArg(tt.arg))
		})
	}
}

func TestBatchRequestDecode(t *testing.T) {
	raw := `[
		{"source_module": "orders", "source": {"total": 9.5}, "target_module": "billing", "target": {"amount": 9.5}},
		{"source_module": "crm", "source": "alice", "target_module": "billing", "target": null}
	]`

	var requests []batchRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &requests))
	require.Len(t, requests, 2)

	assert.Equal(t, "orders", requests[0].SourceModule)
	assert.Equal(t, "billing", requests[0].TargetModule)
	assert.Equal(t, map[string]any{"total": 9.5}, requests[0].Source)
	assert.Equal(t, "alice", requests[1].Source)
	assert.Nil(t, requests[1].Target)
}

// TestStoredResolutionMirrorsRecorderShape guards the ls decoding against
// drift in the record shape the resolver persists.
func TestStoredResolutionMirrorsRecorderShape(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	records := store.New(db, logger.Logger)

	resolvedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	_, err := records.Append(store.CategoryResolution, map[string]any{
		"source_module":  "orders",
		"target_module":  "billing",
		"strategy":       "explicit_mapping",
		"confidence":     0.97,
		"cache_entry_id": "4cc5ddbe1234",
		"resolved_at":    resolvedAt,
	})
	require.NoError(t, err)

	stored, err := records.QueryByCategory(store.CategoryResolution, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	var res storedResolution
	require.NoError(t, stored[0].Decode(&res))
	assert.Equal(t, "orders", res.SourceModule)
	assert.Equal(t, "billing", res.TargetModule)
	assert.Equal(t, "explicit_mapping", res.Strategy)
	assert.InDelta(t, 0.97, res.Confidence, 1e-9)
	assert.Equal(t, "4cc5ddbe1234", res.CacheEntryID)
	assert.True(t, res.ResolvedAt.Equal(resolvedAt))
}

func TestSessionFormatting(t *testing.T) {
	strategyName := "pattern_matching"
	assert.Equal(t, sym.Pattern+" pattern_matching", formatSessionStrategy(&strategyName))
	assert.Equal(t, "-", formatSessionStrategy(nil))

	ok, failed := true, false
	assert.Equal(t, "✓", formatSessionOutcome(&ok))
	assert.Equal(t, "✗", formatSessionOutcome(&failed))
	assert.Equal(t, "-", formatSessionOutcome(nil))

	started := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	ended := started.Add(42 * time.Millisecond)
	assert.Equal(t, "42ms", formatSessionDuration(monitor.Session{StartedAt: started, EndedAt: &ended}))
	assert.Equal(t, "-", formatSessionDuration(monitor.Session{StartedAt: started}))
}

func TestSessionListIntegration(t *testing.T) {
	db := ctest.CreateMigratedTestDB(t)
	recorder := monitor.NewSQLiteRecorder(db, logger.Logger)

	id := recorder.OpenSession(map[string]any{
		"operation":   "resolve",
		"source_type": "orders",
		"target_type": "billing",
	})
	recorder.LogEvent(monitor.Event{
		SessionID: id,
		Stage:     monitor.StageDispatch,
		Message:   "Strategy selected",
		Data:      map[string]any{"strategy": "explicit_mapping"},
	})
	recorder.CloseSession(id)

	sessions, err := recorder.RecentSessions(5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "resolve", sessions[0].Operation)
	assert.NotNil(t, sessions[0].EndedAt)

	events, err := recorder.SessionEvents(id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, monitor.StageDispatch, events[0].Stage)
	assert.Equal(t, "explicit_mapping", events[0].Data["strategy"])
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "", formatMetadata(nil))
	assert.Equal(t, "region=eu tier=2", formatMetadata(map[string]any{
		"tier":   2,
		"region": "eu",
	}))
}
