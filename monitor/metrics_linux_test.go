//go:build linux

package monitor

import "testing"

// TestReadMemory_Linux verifies the memory snapshot carries sane values.
func TestReadMemory_Linux(t *testing.T) {
	snap, err := ReadMemory()
	if err != nil {
		t.Fatalf("Failed to read memory: %v", err)
	}

	if snap.TotalMB <= 0 {
		t.Error("Expected total memory > 0")
	}
	if snap.AvailableMB > snap.TotalMB {
		t.Errorf("Available memory (%.2f MB) cannot exceed total (%.2f MB)",
			snap.AvailableMB, snap.TotalMB)
	}
	if snap.UsedMB < 0 {
		t.Errorf("Used memory cannot be negative: %.2f MB", snap.UsedMB)
	}

	t.Logf("Memory: total=%.2f MB, available=%.2f MB, used=%.2f MB",
		snap.TotalMB, snap.AvailableMB, snap.UsedMB)
}
