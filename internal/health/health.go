// Package health samples host resource usage for the /health endpoint,
// following the resource-observability approach of the teacher's cgroup
// and resource-guard code (ws/internal/single/platform), generalized from
// gopsutil's cgroup-aware readings to a plain host sample since this
// service has no container CPU-limit concept of its own.
package health

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Sample is a point-in-time resource snapshot.
type Sample struct {
	CPUPercent float64
	MemUsedMB  uint64
	MemTotalMB uint64
}

// Snapshot reads current CPU and memory usage. It tolerates gopsutil
// errors by returning a zero-value field rather than failing the whole
// health check.
func Snapshot(ctx context.Context) Sample {
	var s Sample

	if pcts, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false); err == nil && len(pcts) > 0 {
		s.CPUPercent = pcts[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemUsedMB = vm.Used / (1024 * 1024)
		s.MemTotalMB = vm.Total / (1024 * 1024)
	}

	return s
}
