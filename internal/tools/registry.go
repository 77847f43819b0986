// Package tools defines the tool contract, the static tool registry, and the
// subprocess runner shared by every diagnostic tool.
//
// # Adding a New Tool
//
// Each tool package registers its definitions via init():
//
//	func init() {
//	    tools.Register(tools.Definition{
//	        Name:        "ping",
//	        Description: "Ping a host to test connectivity",
//	        Build:       func(env tools.Env) tools.Tool { return &pingTool{env: env} },
//	    })
//	}
//
// Tool packages must be imported (via blank import) in internal/registration
// so their init() functions run.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/netopsd/netopsd/internal/config"
)

// Tool executes one named operation. Args arrive as the raw JSON body of the
// dispatch request; implementations decode into their own typed argument
// struct and validate before touching a command line.
type Tool interface {
	Run(ctx context.Context, args json.RawMessage) (any, error)
}

// Env carries the shared dependencies a tool may need. Built once at startup
// and passed to every Definition.Build.
type Env struct {
	Runner     *Runner
	Config     config.ToolsConfig
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Definition describes one registered tool.
type Definition struct {
	Name        string
	Description string
	Build       func(env Env) Tool
}

var (
	registryMu   sync.RWMutex
	registryMap  = make(map[string]Definition)
	registryList []Definition
)

// Register adds a tool definition to the static registry. It should be
// called from init() in each tool package and panics on duplicate or
// incomplete definitions.
func Register(def Definition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Name == "" {
		panic("tool definition name cannot be empty")
	}
	if def.Build == nil {
		panic(fmt.Sprintf("tool definition %q must have a Build function", def.Name))
	}
	if _, exists := registryMap[def.Name]; exists {
		panic(fmt.Sprintf("tool %q already registered", def.Name))
	}

	registryMap[def.Name] = def
	registryList = append(registryList, def)
}

// Definitions returns all registered tools sorted by name.
func Definitions() []Definition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Definition, len(registryList))
	copy(result, registryList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Lookup returns the definition for a tool name, if registered.
func Lookup(name string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registryMap[name]
	return def, ok
}

// BuildAll instantiates every registered tool with the given environment.
func BuildAll(env Env) map[string]Tool {
	defs := Definitions()
	built := make(map[string]Tool, len(defs))
	for _, def := range defs {
		built[def.Name] = def.Build(env)
	}
	return built
}

// clearRegistry removes all registrations (for testing only).
func clearRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()

	registryMap = make(map[string]Definition)
	registryList = nil
}
