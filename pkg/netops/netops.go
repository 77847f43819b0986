// Package netops provides the public API for embedding the netopsd tool
// server. This is the stable surface for external consumers.
package netops

import (
	"github.com/netopsd/netopsd/internal/runtime"
)

// Service is the embeddable netopsd service.
// See internal/runtime.Service for full documentation.
type Service = runtime.Service

// Option is a functional option for configuring a Service.
type Option = runtime.Option

// New creates a Service with the given options.
// Example:
//
//	svc, err := netops.New(
//	    netops.WithConfigFile("config.yaml"),
//	    netops.WithSQLite("./data/netopsd.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfigFile = runtime.WithConfigFile
	WithConfig     = runtime.WithConfig

	// Execution history
	WithSQLite         = runtime.WithSQLite
	WithMemoryStore    = runtime.WithMemoryStore
	WithExecutionStore = runtime.WithExecutionStore

	// Rate limiting
	WithRedisRateLimit = runtime.WithRedisRateLimit
	WithRateLimitStore = runtime.WithRateLimitStore

	// Observability
	WithLogger    = runtime.WithLogger
	WithCollector = runtime.WithCollector
)
