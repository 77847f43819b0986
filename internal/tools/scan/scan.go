// Package scan provides nmap-backed port and service scanning.
package scan

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

func init() {
	tools.Register(tools.Definition{
		Name:        "nmap_scan",
		Description: "Scan a target with nmap in basic, service, or version mode",
		Build:       func(env tools.Env) tools.Tool { return &nmapTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "port_scan",
		Description: "TCP connect scan of specific ports via nmap",
		Build:       func(env tools.Env) tools.Tool { return &portScanTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "service_discovery",
		Description: "Identify services on a target with nmap version and script probes",
		Build:       func(env tools.Env) tools.Tool { return &serviceDiscoveryTool{env: env} },
	})
}

type nmapTool struct {
	env tools.Env
}

type nmapArgs struct {
	Target string `json:"target"`
	Ports  string `json:"ports,omitempty"`
	Mode   string `json:"mode,omitempty"` // basic, service, version
}

type nmapResponse struct {
	Target    string            `json:"target"`
	Mode      string            `json:"mode"`
	OpenPorts []OpenPort        `json:"open_ports,omitempty"`
	Result    *tools.ExecResult `json:"result"`
}

func (t *nmapTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a := nmapArgs{Mode: "basic"}
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Target); err != nil {
		return nil, err
	}
	if a.Ports != "" {
		if err := validate.PortSpec(a.Ports); err != nil {
			return nil, err
		}
	}

	var argv []string
	switch a.Mode {
	case "basic":
		argv = []string{"nmap", "-sT", "-T4"}
	case "service":
		argv = []string{"nmap", "-sV", "-sC"}
	case "version":
		argv = []string{"nmap", "-sV", "--version-intensity", "5"}
	default:
		return nil, validate.Errorf("mode must be basic, service, or version, got %q", a.Mode)
	}
	if a.Ports != "" {
		argv = append(argv, "-p", a.Ports)
	}
	argv = append(argv, a.Target)

	timeout := time.Duration(t.env.Config.NmapScanTimeout) * time.Second
	result := t.env.Runner.Run(ctx, "nmap_scan", argv, timeout)

	resp := &nmapResponse{Target: a.Target, Mode: a.Mode, Result: result}
	if result.Success {
		resp.OpenPorts = ParseOpenPorts(result.Stdout)
	}
	return resp, nil
}

type portScanTool struct {
	env tools.Env
}

type portScanArgs struct {
	Target string `json:"target"`
	Ports  string `json:"ports"`
}

func (t *portScanTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a portScanArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Target); err != nil {
		return nil, err
	}
	if err := validate.PortSpec(a.Ports); err != nil {
		return nil, err
	}

	argv := []string{"nmap", "-sT", "-T4", "-p", a.Ports, a.Target}
	timeout := time.Duration(t.env.Config.NmapScanTimeout) * time.Second
	result := t.env.Runner.Run(ctx, "port_scan", argv, timeout)

	resp := &nmapResponse{Target: a.Target, Mode: "basic", Result: result}
	if result.Success {
		resp.OpenPorts = ParseOpenPorts(result.Stdout)
	}
	return resp, nil
}

type serviceDiscoveryTool struct {
	env tools.Env
}

type serviceDiscoveryArgs struct {
	Target string `json:"target"`
	Ports  string `json:"ports,omitempty"`
}

func (t *serviceDiscoveryTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a serviceDiscoveryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Target); err != nil {
		return nil, err
	}
	if a.Ports != "" {
		if err := validate.PortSpec(a.Ports); err != nil {
			return nil, err
		}
	}

	argv := []string{"nmap", "-sV", "-sC", "--version-intensity", "5"}
	if a.Ports != "" {
		argv = append(argv, "-p", a.Ports)
	}
	argv = append(argv, a.Target)

	timeout := time.Duration(t.env.Config.NmapScanTimeout) * time.Second
	result := t.env.Runner.Run(ctx, "service_discovery", argv, timeout)

	resp := &nmapResponse{Target: a.Target, Mode: "service", Result: result}
	if result.Success {
		resp.OpenPorts = ParseOpenPorts(result.Stdout)
	}
	return resp, nil
}

// OpenPort is one port line of nmap output, e.g. "22/tcp open ssh".
type OpenPort struct {
	Port    string `json:"port"`
	State   string `json:"state"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}

// ParseOpenPorts extracts the port table rows from nmap output.
func ParseOpenPorts(output string) []OpenPort {
	var ports []OpenPort
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 3 || !strings.Contains(parts[0], "/") {
			continue
		}
		p := OpenPort{Port: parts[0], State: parts[1], Service: parts[2]}
		if len(parts) > 3 {
			p.Version = strings.Join(parts[3:], " ")
		}
		ports = append(ports, p)
	}
	return ports
}
