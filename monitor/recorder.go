package monitor

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/concord/errors"
)

// SQLiteRecorder persists sessions and events in the debug tables.
type SQLiteRecorder struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewSQLiteRecorder creates a recorder over an opened database.
func NewSQLiteRecorder(db *sql.DB, logger *zap.SugaredLogger) *SQLiteRecorder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SQLiteRecorder{db: db, logger: logger}
}

// OpenSession starts a debug session. The returned id is usable even when
// the insert fails; later writes against it just miss.
func (r *SQLiteRecorder) OpenSession(contextInfo map[string]any) string {
	id := uuid.NewString()

	operation := stringKey(contextInfo, "operation")
	if operation == "" {
		operation = "resolve"
	}

	_, err := r.db.Exec(`
		INSERT INTO debug_sessions (id, operation, source_type, target_type, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, operation,
		stringKey(contextInfo, "source_type"),
		stringKey(contextInfo, "target_type"),
		time.Now().UTC())
	if err != nil {
		r.logger.Warnw("Failed to open debug session", "session_id", id, "error", err)
	}

	return id
}

// CloseSession stamps the end time and a host memory snapshot.
func (r *SQLiteRecorder) CloseSession(id string) {
	if id == "" {
		return
	}

	var memoryUsedMB *float64
	if snap, err := ReadMemory(); err == nil {
		memoryUsedMB = &snap.UsedMB
	}

	_, err := r.db.Exec(`
		UPDATE debug_sessions SET ended_at = ?, memory_used_mb = ? WHERE id = ?
	`, time.Now().UTC(), memoryUsedMB, id)
	if err != nil {
		r.logger.Warnw("Failed to close debug session", "session_id", id, "error", err)
	}
}

// LogEvent appends one event. Data keys "success" and "strategy" are also
// lifted into the session summary so the sessions table is queryable
// without unpacking event payloads.
func (r *SQLiteRecorder) LogEvent(event Event) {
	if event.SessionID == "" {
		return
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}

	var data *string
	if len(event.Data) > 0 {
		if encoded, err := json.Marshal(event.Data); err == nil {
			s := string(encoded)
			data = &s
		}
	}

	_, err := r.db.Exec(`
		INSERT INTO debug_events (session_id, level, stage, message, data)
		VALUES (?, ?, ?, ?, ?)
	`, event.SessionID, event.Level, event.Stage, event.Message, data)
	if err != nil {
		r.logger.Warnw("Failed to log debug event",
			"session_id", event.SessionID, "stage", event.Stage, "error", err)
	}

	r.liftOutcome(event)
}

// LogError records an error-level event. contextInfo may carry
// "session_id" and "stage"; without a session id the error only reaches
// the logger.
func (r *SQLiteRecorder) LogError(err error, contextInfo map[string]any) {
	if err == nil {
		return
	}

	sessionID := stringKey(contextInfo, "session_id")
	stage := stringKey(contextInfo, "stage")
	if stage == "" {
		stage = "error"
	}

	r.logger.Errorw("Resolution error recorded", "session_id", sessionID, "stage", stage, "error", err)
	if sessionID == "" {
		return
	}

	data := make(map[string]any, len(contextInfo))
	for k, v := range contextInfo {
		if k == "session_id" || k == "stage" {
			continue
		}
		data[k] = v
	}

	r.LogEvent(Event{
		SessionID: sessionID,
		Level:     LevelError,
		Stage:     stage,
		Message:   err.Error(),
		Data:      data,
	})
}

func (r *SQLiteRecorder) liftOutcome(event Event) {
	success, hasSuccess := event.Data["success"].(bool)
	strategy, hasStrategy := event.Data["strategy"].(string)
	if !hasSuccess && !hasStrategy {
		return
	}

	var err error
	switch {
	case hasSuccess && hasStrategy:
		_, err = r.db.Exec(`UPDATE debug_sessions SET success = ?, strategy_used = ? WHERE id = ?`,
			success, strategy, event.SessionID)
	case hasSuccess:
		_, err = r.db.Exec(`UPDATE debug_sessions SET success = ? WHERE id = ?`,
			success, event.SessionID)
	default:
		_, err = r.db.Exec(`UPDATE debug_sessions SET strategy_used = ? WHERE id = ?`,
			strategy, event.SessionID)
	}
	if err != nil {
		r.logger.Warnw("Failed to lift session outcome", "session_id", event.SessionID, "error", err)
	}
}

// Session is a debug session summary row.
type Session struct {
	ID           string     `json:"id"`
	Operation    string     `json:"operation"`
	SourceType   string     `json:"source_type,omitempty"`
	TargetType   string     `json:"target_type,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Success      *bool      `json:"success,omitempty"`
	StrategyUsed *string    `json:"strategy_used,omitempty"`
	MemoryUsedMB *float64   `json:"memory_used_mb,omitempty"`
}

// RecentSessions returns session summaries, newest first.
func (r *SQLiteRecorder) RecentSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, operation, source_type, target_type, started_at,
		       ended_at, success, strategy_used, memory_used_mb
		FROM debug_sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query debug sessions")
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var source, target sql.NullString
		if err := rows.Scan(&s.ID, &s.Operation, &source, &target, &s.StartedAt,
			&s.EndedAt, &s.Success, &s.StrategyUsed, &s.MemoryUsedMB); err != nil {
			return nil, errors.Wrap(err, "scan debug session")
		}
		s.SourceType = source.String
		s.TargetType = target.String
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// StoredEvent is a persisted event row.
type StoredEvent struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Level     string         `json:"level"`
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SessionEvents returns a session's events in insertion order.
func (r *SQLiteRecorder) SessionEvents(sessionID string) ([]StoredEvent, error) {
	rows, err := r.db.Query(`
		SELECT id, session_id, level, stage, message, data, created_at
		FROM debug_events
		WHERE session_id = ?
		ORDER BY id ASC
	`, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "query events for session %s", sessionID)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var data sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Level, &e.Stage, &e.Message, &data, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan debug event")
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &e.Data); err != nil {
				r.logger.Warnw("Undecodable event data", "event_id", e.ID, "error", err)
			}
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func stringKey(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

var _ Recorder = (*SQLiteRecorder)(nil)
