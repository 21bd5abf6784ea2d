package reportio

import (
	"fmt"
	"runtime"
)

// Memory management constants
const (
	defaultMemoryLimitMB       = 512
	maxReasonableMemoryLimitMB = 64 * 1024
	defaultWarningThreshold    = 0.8
	forceGCThresholdMB         = 100
	bytesPerMB                 = 1024 * 1024

	// memoryCheckInterval is the number of scanned rows between heap checks.
	// runtime.ReadMemStats can pause for milliseconds, so check sparingly.
	memoryCheckInterval = 1000
)

// memoryStatus represents the current heap usage relative to a limit.
type memoryStatus int

const (
	memoryStatusOK memoryStatus = iota
	memoryStatusWarning
	memoryStatusExceeded
)

// String returns string representation of memory status.
func (ms memoryStatus) String() string {
	switch ms {
	case memoryStatusOK:
		return "OK"
	case memoryStatusWarning:
		return "WARNING"
	case memoryStatusExceeded:
		return "EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

func heapAllocMB() int64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return int64(memStats.HeapAlloc / bytesPerMB) //nolint:gosec // heap sizes fit int64
}

// maybeForceGC triggers a collection when the heap has grown past the
// threshold. Called from scan loops at the warning level.
func maybeForceGC() {
	if heapAllocMB() > forceGCThresholdMB {
		runtime.GC()
	}
}

// memoryLimit bounds heap growth while materializing result sets. A nil
// limit disables checking.
type memoryLimit struct {
	maxMemoryMB      int64
	warningThreshold float64
}

// newMemoryLimit creates a memory limit configuration in megabytes.
func newMemoryLimit(maxMemoryMB int64) *memoryLimit {
	if maxMemoryMB <= 0 {
		maxMemoryMB = defaultMemoryLimitMB
	}
	if maxMemoryMB > maxReasonableMemoryLimitMB {
		maxMemoryMB = maxReasonableMemoryLimitMB
	}
	return &memoryLimit{
		maxMemoryMB:      maxMemoryMB,
		warningThreshold: defaultWarningThreshold,
	}
}

// check compares current heap usage against the limit.
func (ml *memoryLimit) check() memoryStatus {
	if ml == nil {
		return memoryStatusOK
	}

	currentMB := heapAllocMB()
	if currentMB >= ml.maxMemoryMB {
		return memoryStatusExceeded
	}
	if float64(currentMB)/float64(ml.maxMemoryMB) >= ml.warningThreshold {
		return memoryStatusWarning
	}
	return memoryStatusOK
}

// err creates a memory limit error with usage context.
func (ml *memoryLimit) err(operation string) error {
	current := heapAllocMB()
	return fmt.Errorf("%w during %s: using %d MB / %d MB",
		ErrMemoryLimit, operation, current, ml.maxMemoryMB)
}
