// Package mcp exposes the scanner, discovery and reflection pipelines as
// MCP tools over stdio.
package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/pci/internal/cache"
	"github.com/standardbeagle/pci/internal/config"
	"github.com/standardbeagle/pci/internal/discovery"
	"github.com/standardbeagle/pci/internal/scanner"
	"github.com/standardbeagle/pci/internal/version"
)

// Server wires the analysis pipelines to MCP tool handlers
type Server struct {
	server           *mcp.Server
	cfg              *config.Config
	cache            *cache.ResultCache
	scanner          *scanner.Scanner
	engine           *discovery.Engine
	watcher          *scanner.Watcher
	diagnosticLogger *DiagnosticLogger

	// the class index is built on first name-based lookup, not at startup
	indexMu sync.Mutex
	index   *discovery.Index
}

// NewServer creates the MCP server. File-based logging keeps stdio clean
// for the protocol.
func NewServer(cfg *config.Config) (*Server, error) {
	diagnosticLogger := NewDiagnosticLogger(true)

	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.MaxEntries = cfg.Cache.MaxEntries
		cacheCfg.TTL = time.Duration(cfg.Cache.TTLHours) * time.Hour
		resultCache = cache.New(cacheCfg)
	}

	s := &Server{
		cfg:              cfg,
		cache:            resultCache,
		scanner:          scanner.New(cfg, resultCache),
		engine:           discovery.New(cfg),
		diagnosticLogger: diagnosticLogger,
	}
	diagnosticLogger.Printf("Server initialized, project root: %s", cfg.Project.Root)

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "pci",
		Version: version.Version,
	}, nil)
	s.registerTools()

	return s, nil
}

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "find_class_usages",
		Description: "Find every syntactic usage of a PHP class across the project, classified by kind (import, new, static_call, extends, implements, trait, type_hint).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"target": {
					Type:        "string",
					Description: "Fully qualified class name to search for (e.g., \"App\\\\Models\\\\User\")",
				},
				"path": {
					Type:        "string",
					Description: "Directory to scan, relative to the project root (default \"app\")",
				},
				"usage_types": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Restrict to these usage kinds; empty means all seven",
				},
				"exclude_vendor": {
					Type:        "boolean",
					Description: "Skip dependency code under the vendor directory (default true)",
				},
				"flush_cache": {
					Type:        "boolean",
					Description: "Invalidate all cached vendor results before scanning (default false)",
				},
				"group_by_type": {
					Type:        "boolean",
					Description: "Partition the returned page by usage kind (default false)",
				},
				"sort_by": {
					Type:        "string",
					Description: "Sort key: line, file or type (default line)",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum usages returned (default 100)",
				},
				"offset": {
					Type:        "integer",
					Description: "Pagination offset into the full sorted list (default 0)",
				},
			},
			Required: []string{"target"},
		},
	}, s.handleFindClassUsages)

	s.server.AddTool(&mcp.Tool{
		Name:        "discover_classes",
		Description: "List PHP classes under a path, optionally filtered by trait usage, implemented interface, or declared method. Filters are ANDed.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "Directory to search, relative to the project root",
				},
				"has_trait": {
					Type:        "string",
					Description: "Keep classes using this trait (exact FQN)",
				},
				"has_interface": {
					Type:        "string",
					Description: "Keep classes implementing this interface (exact FQN)",
				},
				"has_method": {
					Type:        "string",
					Description: "Keep classes declaring this method",
				},
				"recursive": {
					Type:        "boolean",
					Description: "Descend into subdirectories (default true)",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum classes returned",
				},
				"offset": {
					Type:        "integer",
					Description: "Pagination offset (default 0)",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleDiscoverClasses)

	s.server.AddTool(&mcp.Tool{
		Name:        "class_info",
		Description: "Introspect one class's full API surface: methods, properties, constants, parent, interfaces and traits, optionally including inherited members.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"class": {
					Type:        "string",
					Description: "Fully qualified class name; resolved through the project class index",
				},
				"file": {
					Type:        "string",
					Description: "File path declaring the class, as an alternative to the name",
				},
				"include_inherited": {
					Type:        "boolean",
					Description: "Merge members from the parent chain and used traits (default false)",
				},
				"visibility": {
					Type:        "string",
					Description: "Keep only members at this level: public, protected or private",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum members returned per list",
				},
				"offset": {
					Type:        "integer",
					Description: "Pagination offset into each member list (default 0)",
				},
			},
		},
	}, s.handleClassInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "cache_stats",
		Description: "Report vendor result-cache statistics (entries, hit rate, evictions). Optionally flush the cache.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"flush": {
					Type:        "boolean",
					Description: "Drop every cached entry before reporting (default false)",
				},
			},
		},
	}, s.handleCacheStats)
}

// ensureIndex builds the FQN to file index on first use
func (s *Server) ensureIndex(ctx context.Context) (*discovery.Index, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.index != nil {
		return s.index, nil
	}
	started := time.Now()
	ix, err := s.engine.BuildIndex(ctx, s.cfg.Project.Root)
	if err != nil {
		return nil, err
	}
	s.diagnosticLogger.Printf("Class index built: %d classes in %v", ix.Len(), time.Since(started))
	s.index = ix
	return ix, nil
}

// Start runs the server over stdio until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport")

	if s.cfg.Watch.Enabled && s.cache != nil {
		vendorRoot := s.cfg.VendorRoot()
		w, err := scanner.NewWatcher(vendorRoot, s.cache, time.Duration(s.cfg.Watch.DebounceMs)*time.Millisecond)
		if err != nil {
			// a missing vendor dir is normal before composer install
			s.diagnosticLogger.Printf("Vendor watch disabled: %v", err)
		} else {
			s.watcher = w
			s.diagnosticLogger.Printf("Watching vendor dir for cache invalidation: %s", vendorRoot)
		}
	}

	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Shutdown releases the watcher, cache and log file
func (s *Server) Shutdown(ctx context.Context) error {
	s.diagnosticLogger.Printf("Shutting down MCP server")
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.diagnosticLogger.Errorf("closing watcher: %v", err)
		}
	}
	if s.cache != nil {
		s.cache.Close()
	}
	s.diagnosticLogger.Printf("Shutdown complete")
	return s.diagnosticLogger.Close()
}

// GetHandlerForTesting returns a tool handler by name so tests can call
// handlers without a transport
func (s *Server) GetHandlerForTesting(toolName string) func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	switch toolName {
	case "find_class_usages":
		return s.handleFindClassUsages
	case "discover_classes":
		return s.handleDiscoverClasses
	case "class_info":
		return s.handleClassInfo
	case "cache_stats":
		return s.handleCacheStats
	}
	return nil
}
