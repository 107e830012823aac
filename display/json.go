package display

import (
	"encoding/json"
	"os"
)

// MachineOutput reports whether output is consumed by another program
// rather than a terminal reader. Set CONCORD_OUTPUT=json to enable.
func MachineOutput() bool {
	return os.Getenv("CONCORD_OUTPUT") == "json"
}

// MarshalJSON marshals JSON with compact formatting for machine consumers,
// pretty formatting for human-readable output.
func MarshalJSON(v any) ([]byte, error) {
	if MachineOutput() {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}
