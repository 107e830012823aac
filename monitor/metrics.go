package monitor

// MemorySnapshot is host memory at a point in time, in megabytes.
type MemorySnapshot struct {
	TotalMB     float64 `json:"total_mb"`
	AvailableMB float64 `json:"available_mb"`
	UsedMB      float64 `json:"used_mb"`
}

const bytesPerMB = 1024 * 1024

// ReadMemory samples host memory via the platform-specific collector.
func ReadMemory() (MemorySnapshot, error) {
	total, available, err := memoryStats()
	if err != nil {
		return MemorySnapshot{}, err
	}

	return MemorySnapshot{
		TotalMB:     float64(total) / bytesPerMB,
		AvailableMB: float64(available) / bytesPerMB,
		UsedMB:      float64(total-available) / bytesPerMB,
	}, nil
}
