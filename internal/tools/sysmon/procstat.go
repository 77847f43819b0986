package sysmon

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

func init() {
	tools.Register(tools.Definition{
		Name:        "cpu_usage",
		Description: "Sample CPU utilization per core from /proc/stat",
		Build:       func(env tools.Env) tools.Tool { return &cpuUsageTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "system_status",
		Description: "Summarize CPU, memory, disk, and interface counters",
		Build:       func(env tools.Env) tools.Tool { return &systemStatusTool{env: env} },
	})
}

// CPUTimes are cumulative jiffy counters for one cpu row of /proc/stat.
type CPUTimes struct {
	Busy  uint64
	Total uint64
}

// ProcStat is the subset of /proc/stat the monitoring tools read.
type ProcStat struct {
	Total           CPUTimes
	PerCPU          []CPUTimes
	ContextSwitches uint64
	Interrupts      uint64
	BootTime        int64
}

// ParseProcStat reads the cpu rows plus the ctxt, intr, and btime counters.
func ParseProcStat(output string) *ProcStat {
	st := &ProcStat{}
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		switch {
		case parts[0] == "cpu":
			st.Total = parseCPURow(parts[1:])
		case strings.HasPrefix(parts[0], "cpu"):
			st.PerCPU = append(st.PerCPU, parseCPURow(parts[1:]))
		case parts[0] == "ctxt":
			st.ContextSwitches, _ = strconv.ParseUint(parts[1], 10, 64)
		case parts[0] == "intr":
			st.Interrupts, _ = strconv.ParseUint(parts[1], 10, 64)
		case parts[0] == "btime":
			st.BootTime, _ = strconv.ParseInt(parts[1], 10, 64)
		}
	}
	return st
}

func parseCPURow(fields []string) CPUTimes {
	var t CPUTimes
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			break
		}
		t.Total += v
		// fields 3 and 4 are idle and iowait
		if i != 3 && i != 4 {
			t.Busy += v
		}
	}
	return t
}

// CPUPercent is the busy share of the interval between two samples of the
// same row.
func CPUPercent(before, after CPUTimes) float64 {
	if after.Total <= before.Total {
		return 0
	}
	return float64(after.Busy-before.Busy) / float64(after.Total-before.Total) * 100
}

// MemoryInfo summarizes /proc/meminfo in bytes.
type MemoryInfo struct {
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// ParseMeminfo extracts MemTotal and MemAvailable, converting kB to bytes.
func ParseMeminfo(output string) *MemoryInfo {
	info := &MemoryInfo{}
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		kb, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}
		switch parts[0] {
		case "MemTotal:":
			info.TotalBytes = kb * 1024
		case "MemAvailable:":
			info.AvailableBytes = kb * 1024
		}
	}
	if info.TotalBytes == 0 {
		return nil
	}
	info.UsedBytes = info.TotalBytes - info.AvailableBytes
	info.UsedPercent = float64(info.UsedBytes) / float64(info.TotalBytes) * 100
	return info
}

// InterfaceCounters are the receive and transmit totals for one interface
// row of /proc/net/dev.
type InterfaceCounters struct {
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsRecv uint64 `json:"packets_recv"`
	BytesSent   uint64 `json:"bytes_sent"`
	PacketsSent uint64 `json:"packets_sent"`
}

// ParseNetDev reads the per-interface counter table. Layout after the
// interface name: 8 receive columns then 8 transmit columns, bytes and
// packets first in each group.
func ParseNetDev(output string) map[string]InterfaceCounters {
	ifaces := make(map[string]InterfaceCounters)
	for _, line := range strings.Split(output, "\n") {
		name, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		parts := strings.Fields(rest)
		if len(parts) < 10 {
			continue
		}
		var c InterfaceCounters
		var err error
		if c.BytesRecv, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
			continue
		}
		c.PacketsRecv, _ = strconv.ParseUint(parts[1], 10, 64)
		c.BytesSent, _ = strconv.ParseUint(parts[8], 10, 64)
		c.PacketsSent, _ = strconv.ParseUint(parts[9], 10, 64)
		ifaces[strings.TrimSpace(name)] = c
	}
	if len(ifaces) == 0 {
		return nil
	}
	return ifaces
}

func readProcStat() (*ProcStat, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return nil, err
	}
	return ParseProcStat(string(data)), nil
}

// sampleCPU takes two /proc/stat readings separated by interval and returns
// them for percentage computation. Honors context cancellation during the
// wait.
func sampleCPU(ctx context.Context, interval time.Duration) (*ProcStat, *ProcStat, error) {
	before, err := readProcStat()
	if err != nil {
		return nil, nil, err
	}
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-time.After(interval):
	}
	after, err := readProcStat()
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

type cpuUsageTool struct {
	env tools.Env
}

type cpuUsageArgs struct {
	IntervalMS int `json:"interval_ms"`
}

type cpuUsageResponse struct {
	OverallPercent  float64   `json:"overall_percent"`
	PerCPUPercent   []float64 `json:"per_cpu_percent"`
	Count           int       `json:"count"`
	ContextSwitches uint64    `json:"context_switches"`
	Interrupts      uint64    `json:"interrupts"`
}

func (t *cpuUsageTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := cpuUsageArgs{IntervalMS: 1000}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if a.IntervalMS < 50 || a.IntervalMS > 10000 {
		return nil, validate.Errorf("interval_ms %d out of range 50-10000", a.IntervalMS)
	}

	before, after, err := sampleCPU(ctx, time.Duration(a.IntervalMS)*time.Millisecond)
	if err != nil {
		return nil, err
	}

	resp := &cpuUsageResponse{
		OverallPercent:  CPUPercent(before.Total, after.Total),
		Count:           len(after.PerCPU),
		ContextSwitches: after.ContextSwitches,
		Interrupts:      after.Interrupts,
	}
	for i := range after.PerCPU {
		if i < len(before.PerCPU) {
			resp.PerCPUPercent = append(resp.PerCPUPercent, CPUPercent(before.PerCPU[i], after.PerCPU[i]))
		}
	}
	return resp, nil
}

type systemStatusTool struct {
	env tools.Env
}

// DiskUsage is the root filesystem summary from statfs.
type DiskUsage struct {
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

type systemStatusResponse struct {
	CPUPercent    float64                      `json:"cpu_percent"`
	CPUCount      int                          `json:"cpu_count"`
	Memory        *MemoryInfo                  `json:"memory,omitempty"`
	Disk          *DiskUsage                   `json:"disk,omitempty"`
	BootTime      int64                        `json:"boot_time"`
	UptimeSeconds int64                        `json:"uptime_seconds"`
	Interfaces    map[string]InterfaceCounters `json:"network_interfaces,omitempty"`
}

func (t *systemStatusTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	before, after, err := sampleCPU(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, err
	}

	resp := &systemStatusResponse{
		CPUPercent: CPUPercent(before.Total, after.Total),
		CPUCount:   len(after.PerCPU),
		BootTime:   after.BootTime,
		Disk:       rootDiskUsage(),
	}
	if after.BootTime > 0 {
		resp.UptimeSeconds = time.Now().Unix() - after.BootTime
	}
	if data, err := os.ReadFile("/proc/meminfo"); err == nil {
		resp.Memory = ParseMeminfo(string(data))
	}
	if data, err := os.ReadFile("/proc/net/dev"); err == nil {
		resp.Interfaces = ParseNetDev(string(data))
	}
	return resp, nil
}

func rootDiskUsage() *DiskUsage {
	var fs syscall.Statfs_t
	if err := syscall.Statfs("/", &fs); err != nil {
		return nil
	}
	total := fs.Blocks * uint64(fs.Bsize)
	free := fs.Bavail * uint64(fs.Bsize)
	if total == 0 {
		return nil
	}
	used := total - free
	return &DiskUsage{
		TotalBytes:  total,
		FreeBytes:   free,
		UsedBytes:   used,
		UsedPercent: float64(used) / float64(total) * 100,
	}
}
