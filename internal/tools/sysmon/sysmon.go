// Package sysmon surfaces host resource usage through uptime, free, df,
// and ps, plus native procfs samplers for CPU and overall system status.
package sysmon

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

func init() {
	tools.Register(tools.Definition{
		Name:        "uptime",
		Description: "Show system uptime and load averages",
		Build:       func(env tools.Env) tools.Tool { return &uptimeTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "memory",
		Description: "Show memory usage via free",
		Build:       func(env tools.Env) tools.Tool { return &memoryTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "disk",
		Description: "Show filesystem usage via df",
		Build:       func(env tools.Env) tools.Tool { return &diskTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "processes",
		Description: "List processes sorted by CPU usage via ps",
		Build:       func(env tools.Env) tools.Tool { return &processesTool{env: env} },
	})
}

type uptimeTool struct {
	env tools.Env
}

type uptimeResponse struct {
	Load   *LoadAverages     `json:"load,omitempty"`
	Result *tools.ExecResult `json:"result"`
}

func (t *uptimeTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	result := t.env.Runner.Run(ctx, "uptime", []string{"uptime"}, 10*time.Second)

	resp := &uptimeResponse{Result: result}
	if result.Success {
		resp.Load = ParseLoadAverages(result.Stdout)
	}
	return resp, nil
}

type memoryTool struct {
	env tools.Env
}

type memoryResponse struct {
	Memory *MemoryStats      `json:"memory,omitempty"`
	Swap   *MemoryStats      `json:"swap,omitempty"`
	Result *tools.ExecResult `json:"result"`
}

func (t *memoryTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	result := t.env.Runner.Run(ctx, "memory", []string{"free", "-b"}, 10*time.Second)

	resp := &memoryResponse{Result: result}
	if result.Success {
		resp.Memory, resp.Swap = ParseFree(result.Stdout)
	}
	return resp, nil
}

type diskTool struct {
	env tools.Env
}

type diskResponse struct {
	Filesystems []Filesystem      `json:"filesystems,omitempty"`
	Result      *tools.ExecResult `json:"result"`
}

func (t *diskTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	// POSIX output format keeps every record on one line for the parser.
	result := t.env.Runner.Run(ctx, "disk", []string{"df", "-P", "-k"}, 10*time.Second)

	resp := &diskResponse{Result: result}
	if result.Success {
		resp.Filesystems = ParseDF(result.Stdout)
	}
	return resp, nil
}

type processesTool struct {
	env tools.Env
}

type processesArgs struct {
	Limit int `json:"limit"`
}

type processesResponse struct {
	Processes []Process         `json:"processes,omitempty"`
	Result    *tools.ExecResult `json:"result"`
}

func (t *processesTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := processesArgs{Limit: 20}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Count(a.Limit, 200); err != nil {
		return nil, err
	}

	result := t.env.Runner.Run(ctx, "processes",
		[]string{"ps", "aux", "--sort=-%cpu"}, 10*time.Second)

	resp := &processesResponse{Result: result}
	if result.Success {
		procs := ParsePS(result.Stdout)
		if len(procs) > a.Limit {
			procs = procs[:a.Limit]
		}
		resp.Processes = procs
		// The full table can be thousands of lines; the parsed slice is
		// the useful part.
		result.Stdout = ""
	}
	return resp, nil
}
