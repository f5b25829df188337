package child

import (
	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// readMetrics is the optional "info" enrichment described in the design
// notes: a weak dependency on an external process-metrics source. When
// the pid is gone or the platform can't read /proc for it, it degrades
// to nil rather than failing Info().
func readMetrics(pid int) *Metrics {
	if pid <= 0 {
		return nil
	}
	proc, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	m := &Metrics{}
	if cmdline, err := proc.Cmdline(); err == nil {
		m.Cmdline = cmdline
	}
	if pct, err := proc.CPUPercent(); err == nil {
		m.CPUPercent = pct
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		m.MemoryRSS = mem.RSS
	}
	if fds, err := proc.NumFDs(); err == nil {
		m.NumFDs = fds
	}
	if threads, err := proc.NumThreads(); err == nil {
		m.NumThreads = threads
	}
	return m
}
