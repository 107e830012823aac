// Package monitor records resolution telemetry: one debug session per
// resolution attempt, staged events within it, and a host memory snapshot
// at close. Every method is fire and forget; a broken recorder never
// breaks a resolution.
package monitor

// Event levels.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Stages the resolver brackets with events.
const (
	StageDescriptors = "descriptors"
	StageCacheProbe  = "cache_probe"
	StageDispatch    = "dispatch"
	StagePersist     = "persist"
	StageComplete    = "complete"
)

// Recorder is the telemetry contract the resolver drives.
type Recorder interface {
	// OpenSession starts a session and returns its id. The context map may
	// carry "operation", "source_type", and "target_type".
	OpenSession(contextInfo map[string]any) string
	// CloseSession stamps the end time and a memory snapshot.
	CloseSession(id string)
	// LogEvent appends one trace point to a session.
	LogEvent(event Event)
	// LogError records an error event; contextInfo may carry "session_id"
	// and "stage".
	LogError(err error, contextInfo map[string]any)
}

// Event is one trace point within a session. Data keys "success" (bool)
// and "strategy" (string) are lifted into the session summary when
// present.
type Event struct {
	SessionID string
	Level     string
	Stage     string
	Message   string
	Data      map[string]any
}

// NopRecorder drops everything. Used when monitoring is disabled.
type NopRecorder struct{}

func (NopRecorder) OpenSession(map[string]any) string { return "" }
func (NopRecorder) CloseSession(string)               {}
func (NopRecorder) LogEvent(Event)                    {}
func (NopRecorder) LogError(error, map[string]any)    {}

var _ Recorder = NopRecorder{}
