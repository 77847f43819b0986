// Package sockets exposes the local socket tables via ss, netstat, and the
// ARP cache.
package sockets

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
		Name:        "ss",
		Description: "List sockets via ss with optional protocol and state filters",
		Build:       func(env tools.Env) tools.Tool { return &ssTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "netstat",
		Description: "List sockets via netstat with an optional protocol filter",
		Build:       func(env tools.Env) tools.Tool { return &netstatTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "arp",
		Description: "Show the ARP cache",
		Build:       func(env tools.Env) tools.Tool { return &arpTool{env: env} },
	})
}

// Socket states ss accepts as a "state" filter. Filtering through an
// allowlist keeps user input off the command line unchecked.
var socketStates = map[string]struct{}{
	"established": {}, "syn-sent": {}, "syn-recv": {}, "fin-wait-1": {},
	"fin-wait-2": {}, "time-wait": {}, "closed": {}, "close-wait": {},
	"last-ack": {}, "listening": {}, "closing": {},
}

type socketArgs struct {
	Protocol string `json:"protocol,omitempty"` // tcp or udp
	State    string `json:"state,omitempty"`
}

type socketResponse struct {
	Protocol string            `json:"protocol,omitempty"`
	State    string            `json:"state,omitempty"`
	Result   *tools.ExecResult `json:"result"`
}

func (a *socketArgs) normalize(allowState bool) error {
	a.Protocol = strings.ToLower(strings.TrimSpace(a.Protocol))
	if a.Protocol != "" && a.Protocol != "tcp" && a.Protocol != "udp" {
		return validate.Errorf("protocol must be tcp or udp, got %q", a.Protocol)
	}
	a.State = strings.ToLower(strings.TrimSpace(a.State))
	if a.State != "" {
		if !allowState {
			return validate.Errorf("state filter is not supported by this tool")
		}
		if _, ok := socketStates[a.State]; !ok {
			return validate.Errorf("unknown socket state: %q", a.State)
		}
	}
	return nil
}

type ssTool struct {
	env tools.Env
}

func (t *ssTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a socketArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := a.normalize(true); err != nil {
		return nil, err
	}

	argv := []string{"ss", "-tuln"}
	switch a.Protocol {
	case "tcp":
		argv = []string{"ss", "-tln"}
	case "udp":
		argv = []string{"ss", "-uln"}
	}
	if a.State != "" {
		argv = append(argv, "state", a.State)
	}

	result := t.env.Runner.Run(ctx, "ss", argv, 30*time.Second)
	return &socketResponse{Protocol: a.Protocol, State: a.State, Result: result}, nil
}

type netstatTool struct {
	env tools.Env
}

func (t *netstatTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	var a socketArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, validate.Errorf("invalid arguments: %v", err)
	}
	if err := a.normalize(false); err != nil {
		return nil, err
	}

	argv := []string{"netstat", "-tuln"}
	switch a.Protocol {
	case "tcp":
		argv = []string{"netstat", "-tln"}
	case "udp":
		argv = []string{"netstat", "-uln"}
	}

	result := t.env.Runner.Run(ctx, "netstat", argv, 30*time.Second)
	return &socketResponse{Protocol: a.Protocol, Result: result}, nil
}

type arpTool struct {
	env tools.Env
}

type arpResponse struct {
	Entries []ARPEntry        `json:"entries,omitempty"`
	Result  *tools.ExecResult `json:"result"`
}

// ARPEntry is one line of `arp -a` output.
type ARPEntry struct {
	Host      string `json:"host"`
	IP        string `json:"ip"`
	MAC       string `json:"mac"`
	Interface string `json:"interface"`
}

func (t *arpTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	result := t.env.Runner.Run(ctx, "arp", []string{"arp", "-a"}, 30*time.Second)

	resp := &arpResponse{Result: result}
	if result.Success {
		resp.Entries = ParseARP(result.Stdout)
	}
	return resp, nil
}

// ParseARP parses `arp -a` lines of the form
// "gateway (10.0.0.1) at aa:bb:cc:dd:ee:ff [ether] on eth0".
func ParseARP(output string) []ARPEntry {
	var entries []ARPEntry
	for _, line := range strings.Split(output, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 4 || parts[2] != "at" {
			continue
		}
		entry := ARPEntry{
			Host: parts[0],
			IP:   strings.Trim(parts[1], "()"),
			MAC:  parts[3],
		}
		for i, p := range parts {
			if p == "on" && i+1 < len(parts) {
				entry.Interface = parts[i+1]
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
