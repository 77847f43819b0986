// Package connectivity provides reachability tools: ping, traceroute, mtr,
// arping, and a native TCP port check.
package connectivity

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

func init() {
	tools.Register(tools.Definition{
		Name:        "ping",
		Description: "Ping a host to test connectivity",
		Build:       func(env tools.Env) tools.Tool { return &pingTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "traceroute",
		Description: "Trace the network path to a target",
		Build:       func(env tools.Env) tools.Tool { return &tracerouteTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "mtr",
		Description: "Combined traceroute and ping report via mtr",
		Build:       func(env tools.Env) tools.Tool { return &mtrTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "arping",
		Description: "ARP ping a host on the local segment",
		Build:       func(env tools.Env) tools.Tool { return &arpingTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "tcp_check",
		Description: "Check whether a TCP port accepts connections",
		Build:       func(env tools.Env) tools.Tool { return &tcpCheckTool{env: env} },
	})
}

type pingTool struct {
	env tools.Env
}

type pingArgs struct {
	Host    string `json:"host"`
	Count   int    `json:"count"`
	Timeout int    `json:"timeout"` // seconds
}

type pingResponse struct {
	Host   string            `json:"host"`
	Stats  *PingStats        `json:"stats,omitempty"`
	Result *tools.ExecResult `json:"result"`
}

func (t *pingTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := pingArgs{Count: t.env.Config.PingCount, Timeout: 10}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Host); err != nil {
		return nil, err
	}
	if err := validate.Count(a.Count, 20); err != nil {
		return nil, err
	}

	argv := []string{"ping", "-c", strconv.Itoa(a.Count), "-W", strconv.Itoa(a.Timeout), a.Host}
	result := t.env.Runner.Run(ctx, "ping", argv, time.Duration(a.Timeout+5)*time.Second)

	resp := &pingResponse{Host: a.Host, Result: result}
	if result.Success {
		resp.Stats = ParsePing(result.Stdout)
	}
	return resp, nil
}

type tracerouteTool struct {
	env tools.Env
}

type tracerouteArgs struct {
	Target  string `json:"target"`
	MaxHops int    `json:"max_hops"`
	Timeout int    `json:"timeout"` // seconds
}

type tracerouteResponse struct {
	Target string            `json:"target"`
	Hops   []Hop             `json:"hops,omitempty"`
	Result *tools.ExecResult `json:"result"`
}

func (t *tracerouteTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := tracerouteArgs{MaxHops: t.env.Config.TracerouteMaxHops, Timeout: 30}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Target); err != nil {
		return nil, err
	}
	if a.MaxHops < 1 || a.MaxHops > 64 {
		return nil, validate.Errorf("max_hops %d out of range 1-64", a.MaxHops)
	}

	argv := []string{"traceroute", "-m", strconv.Itoa(a.MaxHops), a.Target}
	result := t.env.Runner.Run(ctx, "traceroute", argv, time.Duration(a.Timeout+10)*time.Second)

	resp := &tracerouteResponse{Target: a.Target, Result: result}
	if result.Success {
		resp.Hops = ParseTraceroute(result.Stdout)
	}
	return resp, nil
}

type mtrTool struct {
	env tools.Env
}

type mtrArgs struct {
	Target  string `json:"target"`
	Count   int    `json:"count"`
	Timeout int    `json:"timeout"` // seconds
}

type mtrResponse struct {
	Target string            `json:"target"`
	Hops   []MTRHop          `json:"hops,omitempty"`
	Result *tools.ExecResult `json:"result"`
}

func (t *mtrTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := mtrArgs{Count: 10, Timeout: 30}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Target); err != nil {
		return nil, err
	}
	if err := validate.Count(a.Count, 50); err != nil {
		return nil, err
	}

	argv := []string{"mtr", "-c", strconv.Itoa(a.Count), "--report", a.Target}
	result := t.env.Runner.Run(ctx, "mtr", argv, time.Duration(a.Timeout+10)*time.Second)

	resp := &mtrResponse{Target: a.Target, Result: result}
	if result.Success {
		resp.Hops = ParseMTR(result.Stdout)
	}
	return resp, nil
}

type arpingTool struct {
	env tools.Env
}

type arpingArgs struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

type arpingResponse struct {
	Host   string            `json:"host"`
	Count  int               `json:"count"`
	Result *tools.ExecResult `json:"result"`
}

func (t *arpingTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := arpingArgs{Count: 4}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Host); err != nil {
		return nil, err
	}
	if err := validate.Count(a.Count, 20); err != nil {
		return nil, err
	}

	argv := []string{"arping", "-c", strconv.Itoa(a.Count), a.Host}
	result := t.env.Runner.Run(ctx, "arping", argv, 30*time.Second)

	return &arpingResponse{Host: a.Host, Count: a.Count, Result: result}, nil
}

// tcpCheckTool probes a port with a plain TCP dial instead of shelling out to
// telnet or netcat.
type tcpCheckTool struct {
	env tools.Env
}

type tcpCheckArgs struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Timeout int    `json:"timeout"` // seconds
}

type tcpCheckResponse struct {
	Host      string  `json:"host"`
	Port      int     `json:"port"`
	Connected bool    `json:"connected"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

func (t *tcpCheckTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := tcpCheckArgs{Timeout: 10}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Host); err != nil {
		return nil, err
	}
	if err := validate.Port(a.Port); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
	dialer := &net.Dialer{Timeout: time.Duration(a.Timeout) * time.Second}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	latency := time.Since(start)

	resp := &tcpCheckResponse{
		Host:      a.Host,
		Port:      a.Port,
		LatencyMS: float64(latency.Microseconds()) / 1000.0,
	}
	if err != nil {
		resp.Error = err.Error()
		return resp, nil
	}
	conn.Close()
	resp.Connected = true

	t.env.Logger.Debug("tcp check succeeded",
		"host", a.Host, "port", a.Port, "latency", fmt.Sprintf("%.1fms", resp.LatencyMS))
	return resp, nil
}
