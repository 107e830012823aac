//go:build darwin

package monitor

import (
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/concord/errors"
)

// memoryStats returns total and available memory on macOS.
func memoryStats() (uint64, uint64, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get virtual memory stats")
	}
	return vmStat.Total, vmStat.Available, nil
}
