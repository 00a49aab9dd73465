// Package metrics logs periodic process resource usage. Large joins spend
// minutes in the intersection and traversal phases; the samples make it
// visible whether a slow run is CPU bound or swapping.
package metrics

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Collector periodically samples and logs process CPU and memory usage.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process
}

// NewCollector creates a collector logging at the given interval.
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{interval: interval, logger: logger, proc: proc}
}

// Start samples until the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("metrics collection stopped")
			return
		case <-ticker.C:
			c.sample()
		}
	}
}

func (c *Collector) sample() {
	fields := make([]zap.Field, 0, 4)

	if c.proc != nil {
		if cpuPct, err := c.proc.CPUPercent(); err == nil {
			fields = append(fields, zap.Float64("cpu_pct", cpuPct))
		}
		if memInfo, err := c.proc.MemoryInfo(); err == nil {
			fields = append(fields, zap.Float64("rss_mb", float64(memInfo.RSS)/(1024*1024)))
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, zap.Float64("sys_mem_pct", vm.UsedPercent))
	}

	c.logger.Info("process metrics", fields...)
}
