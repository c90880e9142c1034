package system

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

var (
	// Version is injected at build time.
	Version = "develop"
	// Commit is the git commit the binary was built from.
	Commit = "dev"
)

var startedAt = time.Now()

// Uptime reports how long this process has been serving.
func Uptime() time.Duration {
	return time.Since(startedAt).Round(time.Second)
}

// Memory summarizes process heap usage and host memory pressure for the
// health endpoint.
type Memory struct {
	HeapAllocBytes uint64  `json:"heap_alloc_bytes"`
	HeapSysBytes   uint64  `json:"heap_sys_bytes"`
	NumGC          uint32  `json:"num_gc"`
	HostTotalBytes uint64  `json:"host_total_bytes"`
	HostUsedBytes  uint64  `json:"host_used_bytes"`
	HostUsedPct    float64 `json:"host_used_percent"`
}

// GetMemory collects memory statistics. Host statistics are best effort; a
// gopsutil failure leaves the host fields zeroed rather than failing the
// health response.
func GetMemory() Memory {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := Memory{
		HeapAllocBytes: ms.HeapAlloc,
		HeapSysBytes:   ms.HeapSys,
		NumGC:          ms.NumGC,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.HostTotalBytes = vm.Total
		m.HostUsedBytes = vm.Used
		m.HostUsedPct = vm.UsedPercent
	}
	return m
}
