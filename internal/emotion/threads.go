package emotion

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// determineThreadCount resolves the configured inference thread count.
// 0 selects one thread per physical core. The result never exceeds the
// number of logical CPUs.
func determineThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured <= 0 {
		optimal := cpuid.CPU.PhysicalCores
		if optimal <= 0 {
			optimal = cpuid.CPU.LogicalCores
		}
		if optimal <= 0 {
			optimal = available
		}
		return min(optimal, available)
	}
	return min(configured, available)
}
