package preflight

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MinMemoryBytes is the minimum recommended available memory (1GB).
// The HNSW graph and the keyword index both live in memory while an
// ingest rebuilds them.
const MinMemoryBytes = 1 * 1024 * 1024 * 1024

// CheckMemory checks if there's sufficient memory available.
func (c *Checker) CheckMemory() CheckResult {
	result := CheckResult{
		Name:     "memory",
		Required: true,
	}

	available := estimateAvailableMemory()

	result.Message = fmt.Sprintf("%s available (minimum: 1 GB)", formatBytes(available))
	if available < MinMemoryBytes {
		result.Status = StatusFail
		return result
	}

	result.Status = StatusPass
	return result
}

// estimateAvailableMemory reads MemAvailable from /proc/meminfo on
// Linux. On platforms without procfs it assumes a reasonable machine;
// a Go process that got this far has memory to run in.
func estimateAvailableMemory() uint64 {
	if avail, ok := readProcMemAvailable(); ok {
		return avail
	}
	return 4 * 1024 * 1024 * 1024
}

// readProcMemAvailable parses the MemAvailable line of /proc/meminfo.
// The value is reported in kB.
func readProcMemAvailable() (uint64, bool) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, false
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}

	return 0, false
}
