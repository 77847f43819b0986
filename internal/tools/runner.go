package tools

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/netopsd/netopsd/internal/metrics"
)

// ExecResult is the envelope every subprocess-backed tool wraps its output
// in. Execution failures (non-zero exit, timeout, missing binary) are
// reported in the envelope, not as Go errors; Go errors are reserved for
// precondition failures before the command runs.
type ExecResult struct {
	Success    bool   `json:"success"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"return_code"`
	Command    string `json:"command"`
}

// Runner executes external commands under a bounded timeout and records each
// run with the metrics collector.
type Runner struct {
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewRunner creates a runner. Both arguments may be nil.
func NewRunner(logger *slog.Logger, collector *metrics.Collector) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, collector: collector}
}

// Run executes argv with the given timeout, recording the execution under
// tool. The timeout is layered onto any deadline already on ctx; whichever
// fires first cancels the command.
func (r *Runner) Run(ctx context.Context, tool string, argv []string, timeout time.Duration) *ExecResult {
	cmdline := strings.Join(argv, " ")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("executing command", slog.String("tool", tool), slog.String("command", cmdline))

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Command:    cmdline,
		ReturnCode: -1,
	}

	switch {
	case err == nil:
		result.Success = true
		result.ReturnCode = 0

	case ctx.Err() == context.DeadlineExceeded:
		result.Stderr = "command timed out"
		r.logger.Error("command timed out",
			slog.String("tool", tool),
			slog.String("command", cmdline),
			slog.Duration("timeout", timeout))

	default:
		var exitErr *exec.ExitError
		var execErr *exec.Error
		switch {
		case errors.As(err, &exitErr):
			result.ReturnCode = exitErr.ExitCode()
		case errors.As(err, &execErr):
			result.Stderr = "command not found: " + argv[0]
		default:
			result.Stderr = err.Error()
		}
		r.logger.Error("command failed",
			slog.String("tool", tool),
			slog.String("command", cmdline),
			slog.String("error", err.Error()))
	}

	r.collector.RecordToolExecution(tool, duration, result.Success)

	return result
}
