// Package dnstools provides DNS lookup tools backed by dig, nslookup, and
// host.
package dnstools

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
		Name:        "dig",
		Description: "DNS lookup via dig, optionally against a specific server",
		Build:       func(env tools.Env) tools.Tool { return &digTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "nslookup",
		Description: "DNS lookup via nslookup",
		Build:       func(env tools.Env) tools.Tool { return &nslookupTool{env: env} },
	})
	tools.Register(tools.Definition{
		Name:        "host",
		Description: "DNS lookup via the host command",
		Build:       func(env tools.Env) tools.Tool { return &hostTool{env: env} },
	})
}

type queryArgs struct {
	Domain     string `json:"domain"`
	RecordType string `json:"record_type"`
	Server     string `json:"server,omitempty"`
}

// decode fills defaults and validates the shared lookup arguments.
func decode(args json.RawMessage, allowServer bool) (queryArgs, error) {
	a := queryArgs{RecordType: "A"}
	if err := json.Unmarshal(args, &a); err != nil {
		return a, validate.Errorf("invalid arguments: %v", err)
	}
	if err := validate.Hostname(a.Domain); err != nil {
		return a, err
	}
	if err := validate.RecordType(a.RecordType); err != nil {
		return a, err
	}
	a.RecordType = strings.ToUpper(a.RecordType)
	if a.Server != "" {
		if !allowServer {
			return a, validate.Errorf("server argument is not supported by this tool")
		}
		if err := validate.Hostname(a.Server); err != nil {
			return a, err
		}
	}
	return a, nil
}

type queryResponse struct {
	Domain     string            `json:"domain"`
	RecordType string            `json:"record_type"`
	Server     string            `json:"server,omitempty"`
	Answers    []string          `json:"answers,omitempty"`
	Result     *tools.ExecResult `json:"result"`
}

type digTool struct {
	env tools.Env
}

func (t *digTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a, err := decode(args, true)
	if err != nil {
		return nil, err
	}

	argv := []string{"dig", "+short", a.RecordType, a.Domain}
	if a.Server != "" {
		argv = append(argv, "@"+a.Server)
	}
	result := t.env.Runner.Run(ctx, "dig", argv, 30*time.Second)

	resp := &queryResponse{
		Domain:     a.Domain,
		RecordType: a.RecordType,
		Server:     a.Server,
		Result:     result,
	}
	if result.Success {
		resp.Answers = ParseShortAnswers(result.Stdout)
	}
	return resp, nil
}

type nslookupTool struct {
	env tools.Env
}

func (t *nslookupTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a, err := decode(args, true)
	if err != nil {
		return nil, err
	}

	argv := []string{"nslookup", "-type=" + a.RecordType, a.Domain}
	if a.Server != "" {
		argv = append(argv, a.Server)
	}
	result := t.env.Runner.Run(ctx, "nslookup", argv, 30*time.Second)

	return &queryResponse{
		Domain:     a.Domain,
		RecordType: a.RecordType,
		Server:     a.Server,
		Result:     result,
	}, nil
}

type hostTool struct {
	env tools.Env
}

func (t *hostTool) Run(ctx context.Context, args json.RawMessage) (any, error) {
	a, err := decode(args, false)
	if err != nil {
		return nil, err
	}

	argv := []string{"host", "-t", a.RecordType, a.Domain}
	result := t.env.Runner.Run(ctx, "host", argv, 30*time.Second)

	return &queryResponse{
		Domain:     a.Domain,
		RecordType: a.RecordType,
		Result:     result,
	}, nil
}

// ParseShortAnswers splits `dig +short` output into one answer per line.
func ParseShortAnswers(output string) []string {
	var answers []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			answers = append(answers, line)
		}
	}
	return answers
}
