/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// SysStats collects process and Go runtime statistics
type SysStats struct {
	proc *process.Process
}

// NewSysStats returns SysStats for current process
func NewSysStats() (*SysStats, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("getting process info: %w", err)
	}
	return &SysStats{proc: proc}, nil
}

// CPUPercent returns CPU usage of the process since the previous call, in percent of one CPU.
// The first call only sets the baseline and returns 0.
func (s *SysStats) CPUPercent() (float64, error) {
	return s.proc.Percent(0)
}

// CollectRuntimeStats gathers cpu, mem, fds and gc statistics
func (s *SysStats) CollectRuntimeStats() (map[string]uint64, error) {
	stats := make(map[string]uint64)
	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)

	stats["process.uptime"] = uint64(time.Now().Unix() - procStartTime.Unix())

	if val, err := s.CPUPercent(); err == nil {
		stats["process.cpu_pct"] = uint64(val * 100)
	}

	if val, err := s.proc.MemoryInfo(); err == nil {
		stats["process.rss"] = val.RSS
		stats["process.vms"] = val.VMS
	}

	// each notifier holds a timerfd, an epoll fd and an eventfd
	if val, err := s.proc.NumFDs(); err == nil {
		stats["process.num_fds"] = uint64(val)
	}

	if val, err := s.proc.NumThreads(); err == nil {
		stats["process.num_threads"] = uint64(val)
	}

	stats["runtime.cpu.goroutines"] = uint64(runtime.NumGoroutine())
	stats["runtime.mem.alloc"] = m.Alloc
	stats["runtime.mem.sys"] = m.Sys
	stats["runtime.mem.heap.inuse"] = m.HeapInuse
	stats["runtime.mem.gc.count"] = uint64(m.NumGC)
	return stats, nil
}
