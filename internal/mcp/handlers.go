package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/pci/internal/detect"
	"github.com/standardbeagle/pci/internal/discovery"
	pcierrors "github.com/standardbeagle/pci/internal/errors"
	"github.com/standardbeagle/pci/internal/phpreflect"
	"github.com/standardbeagle/pci/internal/scanner"
)

type FindClassUsagesParams struct {
	Target        string   `json:"target"`
	Path          string   `json:"path,omitempty"`
	UsageTypes    []string `json:"usage_types,omitempty"`
	ExcludeVendor *bool    `json:"exclude_vendor,omitempty"`
	FlushCache    bool     `json:"flush_cache,omitempty"`
	GroupByType   bool     `json:"group_by_type,omitempty"`
	SortBy        string   `json:"sort_by,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	Offset        int      `json:"offset,omitempty"`
}

type DiscoverClassesParams struct {
	Path         string `json:"path"`
	HasTrait     string `json:"has_trait,omitempty"`
	HasInterface string `json:"has_interface,omitempty"`
	HasMethod    string `json:"has_method,omitempty"`
	Recursive    *bool  `json:"recursive,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

type ClassInfoParams struct {
	Class            string `json:"class,omitempty"`
	File             string `json:"file,omitempty"`
	IncludeInherited bool   `json:"include_inherited,omitempty"`
	Visibility       string `json:"visibility,omitempty"`
	Limit            int    `json:"limit,omitempty"`
	Offset           int    `json:"offset,omitempty"`
}

type CacheStatsParams struct {
	Flush bool `json:"flush,omitempty"`
}

// resolvePath turns a request path into an absolute directory under the
// project root. Absolute paths pass through.
func (s *Server) resolvePath(path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.cfg.Project.Root, path)
}

func (s *Server) handleFindClassUsages(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FindClassUsagesParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("find_class_usages", fmt.Errorf("invalid parameters: %w", err))
	}

	types := make([]detect.UsageType, 0, len(params.UsageTypes))
	for _, t := range params.UsageTypes {
		types = append(types, detect.UsageType(strings.TrimSpace(t)))
	}

	opts := scanner.Options{
		UsageTypes:    types,
		ExcludeVendor: true,
		SortBy:        params.SortBy,
		GroupByType:   params.GroupByType,
		Limit:         s.cfg.Scan.DefaultLimit,
		Offset:        params.Offset,
		FlushCache:    params.FlushCache,
	}
	if params.ExcludeVendor != nil {
		opts.ExcludeVendor = *params.ExcludeVendor
	}
	if params.Limit > 0 {
		opts.Limit = params.Limit
	}

	root := s.resolvePath(params.Path, s.cfg.Scan.DefaultPath)
	s.diagnosticLogger.Printf("find_class_usages target=%s root=%s types=%v", params.Target, root, params.UsageTypes)

	result, err := s.scanner.FindUsages(ctx, params.Target, root, opts)
	if err != nil {
		s.diagnosticLogger.Errorf("find_class_usages: %v", err)
		return createErrorResponse("find_class_usages", err)
	}
	return createJSONResponse(result)
}

func (s *Server) handleDiscoverClasses(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params DiscoverClassesParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("discover_classes", fmt.Errorf("invalid parameters: %w", err))
	}
	if strings.TrimSpace(params.Path) == "" {
		return createErrorResponse("discover_classes",
			pcierrors.NewInvalidParameterError("path", "", "must not be empty"))
	}

	filter := discovery.Filter{
		HasTrait:     params.HasTrait,
		HasInterface: params.HasInterface,
		HasMethod:    params.HasMethod,
		Recursive:    true,
		Limit:        params.Limit,
		Offset:       params.Offset,
	}
	if params.Recursive != nil {
		filter.Recursive = *params.Recursive
	}

	path := s.resolvePath(params.Path, "")
	classes, err := s.engine.Discover(ctx, path, filter)
	if err != nil {
		s.diagnosticLogger.Errorf("discover_classes: %v", err)
		return createErrorResponse("discover_classes", err)
	}

	summaries := make([]map[string]interface{}, 0, len(classes))
	for _, c := range classes {
		summaries = append(summaries, classSummary(c))
	}
	return createJSONResponse(map[string]interface{}{
		"total":   len(summaries),
		"classes": summaries,
	})
}

// classSummary is the compact descriptor discovery responses carry;
// full member listings come from class_info
func classSummary(c *phpreflect.ClassInfo) map[string]interface{} {
	out := map[string]interface{}{
		"name": c.Name,
		"kind": string(c.Kind),
		"file": c.File,
		"line": c.Line,
	}
	if c.Extends != "" {
		out["extends"] = c.Extends
	}
	if len(c.Implements) > 0 {
		out["implements"] = c.Implements
	}
	if len(c.Traits) > 0 {
		out["traits"] = c.Traits
	}
	if c.DocSummary != "" {
		out["doc_summary"] = c.DocSummary
	}
	return out
}

func (s *Server) handleClassInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ClassInfoParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("class_info", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Class == "" && params.File == "" {
		return createErrorResponse("class_info",
			pcierrors.NewInvalidParameterError("class", "", "either class or file is required"))
	}
	if v := params.Visibility; v != "" && v != "public" && v != "protected" && v != "private" {
		return createErrorResponse("class_info",
			pcierrors.NewInvalidParameterError("visibility", v, "must be public, protected or private"))
	}

	in := phpreflect.Input{Name: params.Class}
	if params.File != "" {
		in.Path = s.resolvePath(params.File, "")
	}

	// name-only lookups and inherited-member merges need the class index
	var reflector *phpreflect.Reflector
	if params.File != "" && !params.IncludeInherited {
		reflector = phpreflect.NewReflector(nil)
	} else {
		ix, err := s.ensureIndex(ctx)
		if err != nil {
			return createErrorResponse("class_info", err)
		}
		reflector = phpreflect.NewReflector(ix)
	}

	info, err := reflector.Describe(in, phpreflect.Options{
		IncludeInherited: params.IncludeInherited,
		Visibility:       phpreflect.Visibility(params.Visibility),
		Limit:            params.Limit,
		Offset:           params.Offset,
	})
	if err != nil {
		s.diagnosticLogger.Errorf("class_info: %v", err)
		return createErrorResponse("class_info", err)
	}
	return createJSONResponse(info)
}

func (s *Server) handleCacheStats(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params CacheStatsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("cache_stats", fmt.Errorf("invalid parameters: %w", err))
	}
	if s.cache == nil {
		return createJSONResponse(map[string]interface{}{
			"enabled": false,
		})
	}
	flushed := 0
	if params.Flush {
		flushed = s.cache.Flush()
		s.diagnosticLogger.Printf("cache_stats: flushed %d entries", flushed)
	}
	return createJSONResponse(map[string]interface{}{
		"enabled": true,
		"flushed": flushed,
		"stats":   s.cache.Stats(),
	})
}
