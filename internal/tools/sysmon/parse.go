package sysmon

import (
	"regexp"
	"strconv"
	"strings"
)

// LoadAverages holds the 1/5/15 minute load figures from uptime.
type LoadAverages struct {
	One     float64 `json:"load_1m"`
	Five    float64 `json:"load_5m"`
	Fifteen float64 `json:"load_15m"`
}

// MemoryStats is one row of `free -b`.
type MemoryStats struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Free      int64 `json:"free"`
	Available int64 `json:"available,omitempty"`
}

// Filesystem is one row of `df -P -k`.
type Filesystem struct {
	Device      string `json:"device"`
	Mountpoint  string `json:"mountpoint"`
	TotalKB     int64  `json:"total_kb"`
	UsedKB      int64  `json:"used_kb"`
	AvailableKB int64  `json:"available_kb"`
	UsePercent  int    `json:"use_percent"`
}

// Process is one row of `ps aux`.
type Process struct {
	User          string  `json:"user"`
	PID           int     `json:"pid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Command       string  `json:"command"`
}

var loadRE = regexp.MustCompile(`load average[s]?:\s*([\d.]+),?\s+([\d.]+),?\s+([\d.]+)`)

// ParseLoadAverages extracts the load averages from uptime output. Returns
// nil when the line does not match.
func ParseLoadAverages(output string) *LoadAverages {
	m := loadRE.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	one, _ := strconv.ParseFloat(m[1], 64)
	five, _ := strconv.ParseFloat(m[2], 64)
	fifteen, _ := strconv.ParseFloat(m[3], 64)
	return &LoadAverages{One: one, Five: five, Fifteen: fifteen}
}

// ParseFree extracts the Mem and Swap rows from `free -b` output.
func ParseFree(output string) (mem, swap *MemoryStats) {
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		total, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		used, _ := strconv.ParseInt(parts[2], 10, 64)
		free, _ := strconv.ParseInt(parts[3], 10, 64)
		stats := &MemoryStats{Total: total, Used: used, Free: free}

		switch parts[0] {
		case "Mem:":
			if len(parts) >= 7 {
				stats.Available, _ = strconv.ParseInt(parts[6], 10, 64)
			}
			mem = stats
		case "Swap:":
			swap = stats
		}
	}
	return mem, swap
}

// ParseDF extracts filesystem rows from `df -P -k` output, skipping the
// header and pseudo-filesystems without sizes.
func ParseDF(output string) []Filesystem {
	var filesystems []Filesystem
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 6 {
			continue
		}
		total, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		used, _ := strconv.ParseInt(parts[2], 10, 64)
		avail, _ := strconv.ParseInt(parts[3], 10, 64)
		pct, _ := strconv.Atoi(strings.TrimSuffix(parts[4], "%"))

		filesystems = append(filesystems, Filesystem{
			Device:      parts[0],
			TotalKB:     total,
			UsedKB:      used,
			AvailableKB: avail,
			UsePercent:  pct,
			Mountpoint:  parts[5],
		})
	}
	return filesystems
}

// ParsePS extracts process rows from `ps aux` output. The command column is
// everything from field 11 on, rejoined with single spaces.
func ParsePS(output string) []Process {
	var processes []Process
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 11 {
			continue
		}
		pid, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		cpu, _ := strconv.ParseFloat(parts[2], 64)
		mem, _ := strconv.ParseFloat(parts[3], 64)

		processes = append(processes, Process{
			User:          parts[0],
			PID:           pid,
			CPUPercent:    cpu,
			MemoryPercent: mem,
			Command:       strings.Join(parts[10:], " "),
		})
	}
	return processes
}
