package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/netopsd/netopsd/internal/auth"
	"github.com/netopsd/netopsd/internal/storage"
	"github.com/netopsd/netopsd/internal/tools"
	"github.com/netopsd/netopsd/internal/validate"
)

// maxArgsBytes bounds tool argument payloads.
const maxArgsBytes = 1 << 20

// toolBinaries maps subprocess-backed tools to the binary they shell out
// to, for the health report. Native tools (tcp_check, http_check, cpu_usage,
// system_status) need no binary.
var toolBinaries = map[string]string{
	"ping":              "ping",
	"traceroute":        "traceroute",
	"mtr":               "mtr",
	"arping":            "arping",
	"dig":               "dig",
	"nslookup":          "nslookup",
	"host":              "host",
	"curl_request":      "curl",
	"ss":                "ss",
	"netstat":           "netstat",
	"arp":               "arp",
	"uptime":            "uptime",
	"memory":            "free",
	"disk":              "df",
	"processes":         "ps",
	"nmap_scan":         "nmap",
	"port_scan":         "nmap",
	"service_discovery": "nmap",
}

type handlers struct {
	logger    *slog.Logger
	tools     map[string]tools.Tool
	defs      []tools.Definition
	execStore storage.ExecutionStore
	started   time.Time
}

type healthResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	Tools         healthToolCount `json:"tools"`
	Binaries      map[string]bool `json:"binaries"`
}

type healthToolCount struct {
	Registered int `json:"registered"`
	Available  int `json:"available"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	binaries := make(map[string]bool)
	available := 0
	for _, def := range h.defs {
		bin, usesBinary := toolBinaries[def.Name]
		if !usesBinary {
			available++
			continue
		}
		if _, seen := binaries[bin]; !seen {
			_, err := exec.LookPath(bin)
			binaries[bin] = err == nil
		}
		if binaries[bin] {
			available++
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
		Tools:         healthToolCount{Registered: len(h.defs), Available: available},
		Binaries:      binaries,
	})
}

type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *handlers) listTools(w http.ResponseWriter, r *http.Request) {
	infos := make([]toolInfo, 0, len(h.defs))
	for _, def := range h.defs {
		infos = append(infos, toolInfo{Name: def.Name, Description: def.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": infos})
}

func (h *handlers) dispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tool, ok := h.tools[name]
	if !ok {
		writeToolError(w, http.StatusNotFound, name, "unknown tool")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBytes))
	if err != nil {
		writeToolError(w, http.StatusBadRequest, name, "failed to read request body")
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	AddLogField(r.Context(), "tool", name)

	start := time.Now()
	out, err := tool.Run(r.Context(), body)
	elapsed := time.Since(start)

	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			h.record(r, name, body, elapsed, false, 0, verr.Error())
			writeToolError(w, http.StatusBadRequest, name, verr.Error())
			return
		}
		h.logger.Error("tool execution failed",
			slog.String("tool", name), slog.String("error", err.Error()))
		h.record(r, name, body, elapsed, false, 0, err.Error())
		writeToolError(w, http.StatusInternalServerError, name, "tool execution failed")
		return
	}

	payload, err := json.Marshal(out)
	if err != nil {
		h.logger.Error("tool response marshal failed",
			slog.String("tool", name), slog.String("error", err.Error()))
		writeToolError(w, http.StatusInternalServerError, name, "tool execution failed")
		return
	}

	success, returnCode := summarize(payload)
	h.record(r, name, body, elapsed, success, returnCode, "")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// summarize extracts the outcome from a tool response for the audit record.
// Subprocess tools embed an execution envelope under "result"; native probe
// tools report a boolean instead.
func summarize(payload []byte) (success bool, returnCode int) {
	var probe struct {
		Result    *tools.ExecResult `json:"result"`
		Connected *bool             `json:"connected"`
		Passed    *bool             `json:"passed"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return true, 0
	}
	switch {
	case probe.Result != nil:
		return probe.Result.Success, probe.Result.ReturnCode
	case probe.Connected != nil:
		return *probe.Connected, 0
	case probe.Passed != nil:
		return *probe.Passed, 0
	}
	return true, 0
}

func (h *handlers) record(r *http.Request, tool string, args []byte, elapsed time.Duration, success bool, returnCode int, errText string) {
	if h.execStore == nil {
		return
	}
	entry := &storage.Execution{
		ID:         uuid.New().String(),
		Tool:       tool,
		Identity:   auth.ClientID(r),
		Args:       string(args),
		Success:    success,
		ReturnCode: returnCode,
		Duration:   elapsed,
		Error:      errText,
	}
	if err := h.execStore.RecordExecution(r.Context(), entry); err != nil {
		h.logger.Error("failed to record execution",
			slog.String("tool", tool), slog.String("error", err.Error()))
	}
}

func (h *handlers) listExecutions(w http.ResponseWriter, r *http.Request) {
	if h.execStore == nil {
		writeError(w, http.StatusNotFound, "not_found", "Execution history is not enabled")
		return
	}

	opts := storage.ListOptions{
		Tool:     r.URL.Query().Get("tool"),
		Identity: r.URL.Query().Get("identity"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be an integer between 1 and 1000")
			return
		}
		opts.Limit = limit
	}

	execs, err := h.execStore.ListExecutions(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list executions", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal", "Failed to list executions")
		return
	}
	if execs == nil {
		execs = []*storage.Execution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs})
}
