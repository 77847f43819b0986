package connectivity

import (
	"regexp"
	"strconv"
	"strings"
)

// PingStats summarizes the statistics block at the end of ping output.
type PingStats struct {
	PacketsTransmitted int     `json:"packets_transmitted"`
	PacketsReceived    int     `json:"packets_received"`
	PacketLossPercent  float64 `json:"packet_loss_percent"`
	MinRTT             float64 `json:"min_rtt"`
	AvgRTT             float64 `json:"avg_rtt"`
	MaxRTT             float64 `json:"max_rtt"`
	MdevRTT            float64 `json:"mdev_rtt"`
}

// Hop is one line of traceroute output.
type Hop struct {
	Number int       `json:"hop"`
	Host   string    `json:"host"`
	Times  []float64 `json:"times"`
}

// MTRHop is one row of an mtr report.
type MTRHop struct {
	Number      int     `json:"hop"`
	Host        string  `json:"host"`
	LossPercent float64 `json:"loss_percent"`
	Sent        int     `json:"snt"`
	Last        float64 `json:"last"`
	Avg         float64 `json:"avg"`
	Best        float64 `json:"best"`
	Worst       float64 `json:"worst"`
}

var (
	pingPacketsRE = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)
	pingRTTRE     = regexp.MustCompile(`(\d+\.?\d*)/(\d+\.?\d*)/(\d+\.?\d*)/(\d+\.?\d*)`)
)

// ParsePing extracts the transmitted/received counts and RTT summary from
// ping output. Fields missing from the output stay zero.
func ParsePing(output string) *PingStats {
	stats := &PingStats{}
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "packets transmitted"):
			if m := pingPacketsRE.FindStringSubmatch(line); m != nil {
				stats.PacketsTransmitted, _ = strconv.Atoi(m[1])
				stats.PacketsReceived, _ = strconv.Atoi(m[2])
				if stats.PacketsTransmitted > 0 {
					received := float64(stats.PacketsReceived) / float64(stats.PacketsTransmitted)
					stats.PacketLossPercent = 100 - received*100
				}
			}
		case strings.Contains(line, "min/avg/max"):
			if m := pingRTTRE.FindStringSubmatch(line); m != nil {
				stats.MinRTT, _ = strconv.ParseFloat(m[1], 64)
				stats.AvgRTT, _ = strconv.ParseFloat(m[2], 64)
				stats.MaxRTT, _ = strconv.ParseFloat(m[3], 64)
				stats.MdevRTT, _ = strconv.ParseFloat(m[4], 64)
			}
		}
	}
	return stats
}

// ParseTraceroute extracts hop lines, skipping the header. Unreachable
// probes ("*") contribute no time samples.
func ParseTraceroute(output string) []Hop {
	var hops []Hop
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "traceroute") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		num, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		hop := Hop{Number: num, Host: parts[1], Times: []float64{}}
		for _, part := range parts[2:] {
			if t, err := strconv.ParseFloat(part, 64); err == nil {
				hop.Times = append(hop.Times, t)
			}
		}
		hops = append(hops, hop)
	}
	return hops
}

// ParseMTR extracts the per-hop rows of an mtr --report. Hop names in the
// report carry a trailing index like "1.|--"; the prefix is stripped.
func ParseMTR(output string) []MTRHop {
	var hops []MTRHop
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Start") || strings.HasPrefix(line, "HOST:") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 8 {
			continue
		}

		label := strings.TrimSuffix(strings.SplitN(parts[0], ".", 2)[0], ".")
		num, err := strconv.Atoi(label)
		if err != nil {
			continue
		}

		loss, err := strconv.ParseFloat(strings.TrimSuffix(parts[2], "%"), 64)
		if err != nil {
			continue
		}
		sent, _ := strconv.Atoi(parts[3])
		last, _ := strconv.ParseFloat(parts[4], 64)
		avg, _ := strconv.ParseFloat(parts[5], 64)
		best, _ := strconv.ParseFloat(parts[6], 64)
		worst, _ := strconv.ParseFloat(parts[7], 64)

		hops = append(hops, MTRHop{
			Number:      num,
			Host:        strings.TrimPrefix(parts[1], "|--"),
			LossPercent: loss,
			Sent:        sent,
			Last:        last,
			Avg:         avg,
			Best:        best,
			Worst:       worst,
		})
	}
	return hops
}
