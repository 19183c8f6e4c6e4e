// Package performance tracks process and system resource usage during a
// run and sizes the streaming chunk window to what the host can spare.
package performance

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/comet/pkg/pool"
)

// ResourceUsage is a point-in-time snapshot of process and system resources.
type ResourceUsage struct {
	CPUPercent            float64
	MemoryRSS             uint64
	SystemMemoryPercent   float64
	SystemMemoryAvailable uint64
	GoroutineCount        int
}

// ResourceMonitor samples process and system resource usage. Construct it
// at the start of a run; Usage reports averages and totals since then.
type ResourceMonitor struct {
	logger       *zap.Logger
	process      *process.Process
	startCPUTime float64
	startTime    time.Time

	mu       sync.Mutex
	sampling bool
	stop     chan struct{}
	done     chan struct{}
}

// NewResourceMonitor creates a monitor anchored at the current process and
// time. Platforms without process stats still report system memory and
// goroutine counts.
func NewResourceMonitor(logger *zap.Logger) *ResourceMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	rm := &ResourceMonitor{
		logger:    logger,
		startTime: time.Now(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		rm.process = proc
		if times, err := proc.Times(); err == nil {
			rm.startCPUTime = times.Total()
		}
	}
	return rm
}

// Usage returns a snapshot. CPUPercent is the process CPU time consumed
// since the monitor was created, normalized by wall time.
func (rm *ResourceMonitor) Usage() *ResourceUsage {
	usage := &ResourceUsage{
		GoroutineCount: runtime.NumGoroutine(),
	}

	if rm.process != nil {
		if times, err := rm.process.Times(); err == nil {
			if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
				usage.CPUPercent = (times.Total() - rm.startCPUTime) / elapsed * 100
			}
		}
		if memInfo, err := rm.process.MemoryInfo(); err == nil {
			usage.MemoryRSS = memInfo.RSS
		}
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}

	return usage
}

// Start begins periodic sampling, logging each snapshot at debug level.
// Calling Start while sampling is a no-op.
func (rm *ResourceMonitor) Start(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.sampling {
		return
	}
	rm.sampling = true
	rm.stop = make(chan struct{})
	rm.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rm.log(rm.Usage())
			case <-stop:
				return
			}
		}
	}(rm.stop, rm.done)
}

// Stop ends sampling and waits for the sampler to exit. Safe to call
// without Start and safe to call more than once.
func (rm *ResourceMonitor) Stop() {
	rm.mu.Lock()
	if !rm.sampling {
		rm.mu.Unlock()
		return
	}
	rm.sampling = false
	close(rm.stop)
	done := rm.done
	rm.mu.Unlock()
	<-done
}

// log emits one sample. Pool in-use counts ride along: a climbing
// offsets_in_use means loaded chunks are not being unloaded.
func (rm *ResourceMonitor) log(u *ResourceUsage) {
	pools := pool.GetGlobalStats()
	rm.logger.Debug("resource usage",
		zap.Float64("cpu_percent", u.CPUPercent),
		zap.Uint64("rss_mb", u.MemoryRSS/1024/1024),
		zap.Float64("sys_mem_percent", u.SystemMemoryPercent),
		zap.Int("goroutines", u.GoroutineCount),
		zap.Int64("offsets_in_use", pools["offsets"].InUse),
		zap.Int64("scratch_in_use", pools["byte_slice"].InUse),
	)
}

// ClampWindow shrinks a resident chunk window so the window's worst-case
// footprint claims at most half of the memory the host reports available.
// The window is returned unchanged when the host has room or when memory
// stats are unavailable; the result is always at least 1.
func ClampWindow(window, chunkSize int) int {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return window
	}
	return clampWindow(window, chunkSize, vmStat.Available)
}

func clampWindow(window, chunkSize int, available uint64) int {
	if window < 1 {
		return 1
	}
	if chunkSize <= 0 {
		return window
	}
	budget := available / 2
	if budget >= uint64(window)*uint64(chunkSize) {
		return window
	}
	fits := int(budget / uint64(chunkSize))
	if fits < 1 {
		return 1
	}
	return fits
}
