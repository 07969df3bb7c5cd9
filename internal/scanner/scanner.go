// Package scanner orchestrates usage scans: it walks a project tree,
// tokenizes the files that might mention the target class, runs the
// usage detectors, and shapes the results for presentation.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/pci/internal/cache"
	"github.com/standardbeagle/pci/internal/config"
	"github.com/standardbeagle/pci/internal/detect"
	pcierrors "github.com/standardbeagle/pci/internal/errors"
	"github.com/standardbeagle/pci/internal/phptok"
	"github.com/standardbeagle/pci/internal/resolver"
)

// Options controls a single FindUsages call
type Options struct {
	// UsageTypes restricts detection to the given kinds; empty means all
	UsageTypes []detect.UsageType
	// ExcludeVendor skips dependency code entirely
	ExcludeVendor bool
	// SortBy is one of "line", "file", "type"; empty defaults to "line"
	SortBy      string
	GroupByType bool
	Limit       int
	Offset      int
	// FlushCache drops all cached vendor results before scanning
	FlushCache bool
}

// ScanStats reports what a scan touched
type ScanStats struct {
	FilesScanned   int   `json:"files_scanned"`
	FilesMatched   int   `json:"files_matched"`
	FilesFromCache int   `json:"files_from_cache"`
	ScanTimeMs     int64 `json:"scan_time_ms"`
}

// Statistics aggregates over the full result set, before pagination
type Statistics struct {
	ByType     map[string]int `json:"by_type"`
	ByFile     map[string]int `json:"by_file"`
	MostUsedIn string         `json:"most_used_in,omitempty"`
}

// Result is the outcome of a usage scan. Exactly one of Usages and
// UsagesByType is populated, depending on Options.GroupByType.
type Result struct {
	Target       string                    `json:"target"`
	TotalUsages  int                       `json:"total_usages"`
	Stats        ScanStats                 `json:"scan_stats"`
	Statistics   Statistics                `json:"statistics"`
	Usages       []detect.Usage            `json:"usages,omitempty"`
	UsagesByType map[string][]detect.Usage `json:"usages_by_type,omitempty"`
}

// Scanner finds usages of a class across a project tree. Vendor file
// results are cached by content hash; project files are always rescanned.
type Scanner struct {
	cfg   *config.Config
	cache *cache.ResultCache
	lexer phptok.Tokenizer
}

// New creates a scanner. The cache may be nil, which disables vendor
// result caching.
func New(cfg *config.Config, c *cache.ResultCache) *Scanner {
	return &Scanner{
		cfg:   cfg,
		cache: c,
		lexer: phptok.NewLexer(),
	}
}

// SetTokenizer overrides the lexer, used by tests to observe tokenization
func (s *Scanner) SetTokenizer(t phptok.Tokenizer) {
	s.lexer = t
}

// fileResult keeps per-file output in walk-order slots so concurrent
// scanning stays deterministic
type fileResult struct {
	usages    []detect.Usage
	fromCache bool
	scanned   bool
}

// FindUsages scans root for references to target. The target is an FQN or
// bare class name; a leading separator is accepted and ignored. An empty
// result is a valid outcome, not an error.
func (s *Scanner) FindUsages(ctx context.Context, target, root string, opts Options) (*Result, error) {
	start := time.Now()

	target = strings.TrimSpace(target)
	if target == "" {
		return nil, pcierrors.NewInvalidParameterError("target", target, "must not be empty")
	}
	target = resolver.Normalize(target)
	for _, t := range opts.UsageTypes {
		if !detect.ValidUsageType(string(t)) {
			return nil, pcierrors.NewInvalidParameterError("usage_types", string(t),
				fmt.Sprintf("must be one of %v", detect.AllUsageTypes))
		}
	}
	if info, err := os.Stat(root); err != nil {
		return nil, pcierrors.NewFileError("stat", root, err)
	} else if !info.IsDir() {
		return nil, pcierrors.NewInvalidParameterError("path", root, "must be a directory")
	}

	if opts.FlushCache && s.cache != nil {
		s.cache.Flush()
	}

	files, err := s.collectFiles(root, opts.ExcludeVendor)
	if err != nil {
		return nil, err
	}

	// the short name must appear verbatim somewhere in any file that
	// references the class, so a byte search prunes most of the tree
	shortName := []byte(lastSegment(target))

	detectors := detect.Select(opts.UsageTypes)
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scan.Workers)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(f.path)
			if err != nil {
				// files vanishing mid-scan are skipped
				return nil
			}
			results[i].scanned = true
			if !bytes.Contains(content, shortName) {
				return nil
			}
			if f.vendor {
				results[i].usages, results[i].fromCache = s.scanVendor(f, content, target, opts.UsageTypes)
			} else {
				results[i].usages = s.scanFile(f, content, target, detectors)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pcierrors.NewScanError(target, root, err)
	}

	res := &Result{Target: target}
	var all []detect.Usage
	for _, r := range results {
		if r.scanned {
			res.Stats.FilesScanned++
		}
		if r.fromCache {
			res.Stats.FilesFromCache++
		}
		if len(r.usages) > 0 {
			res.Stats.FilesMatched++
			all = append(all, r.usages...)
		}
	}

	sortUsages(all, opts.SortBy)
	res.TotalUsages = len(all)
	res.Statistics = buildStatistics(all)

	page := paginate(all, opts.Offset, opts.Limit)
	if opts.GroupByType {
		res.UsagesByType = groupByType(page)
	} else {
		res.Usages = page
	}

	res.Stats.ScanTimeMs = time.Since(start).Milliseconds()
	return res, nil
}

// scanFile tokenizes a project file and runs the selected detectors
func (s *Scanner) scanFile(f fileEntry, content []byte, target string, detectors []detect.Detector) []detect.Usage {
	tokens := s.lexer.Tokenize(content)
	req := &detect.Request{
		File:   f.rel,
		Tokens: tokens,
		Ctx:    resolver.Build(tokens),
		Target: target,
	}
	return detect.Run(req, detectors)
}

// scanVendor serves a vendor file from the cache when possible. Cached
// entries hold the full-registry result for the target, so narrower
// usage-type requests filter on read instead of rescanning.
func (s *Scanner) scanVendor(f fileEntry, content []byte, target string, types []detect.UsageType) ([]detect.Usage, bool) {
	if s.cache == nil {
		return s.scanFile(f, content, target, detect.Select(types)), false
	}
	key := cache.Key(target, content)
	if usages, ok := s.cache.Get(key); ok {
		return filterTypes(usages, types), true
	}
	full := s.scanFile(f, content, target, detect.Registry())
	s.cache.Put(key, f.path, full)
	return filterTypes(full, types), false
}

func filterTypes(usages []detect.Usage, types []detect.UsageType) []detect.Usage {
	if len(types) == 0 {
		return usages
	}
	want := make(map[detect.UsageType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []detect.Usage
	for _, u := range usages {
		if want[u.Type] {
			out = append(out, u)
		}
	}
	return out
}

// sortUsages orders the full result set. The sort is stable, so entries
// equal under the chosen key keep their discovery order.
func sortUsages(usages []detect.Usage, by string) {
	switch by {
	case "file":
		sort.SliceStable(usages, func(i, j int) bool {
			if usages[i].File != usages[j].File {
				return usages[i].File < usages[j].File
			}
			return usages[i].Line < usages[j].Line
		})
	case "type":
		sort.SliceStable(usages, func(i, j int) bool {
			if usages[i].Type != usages[j].Type {
				return usages[i].Type < usages[j].Type
			}
			if usages[i].File != usages[j].File {
				return usages[i].File < usages[j].File
			}
			return usages[i].Line < usages[j].Line
		})
	default: // "line"
		sort.SliceStable(usages, func(i, j int) bool {
			if usages[i].Line != usages[j].Line {
				return usages[i].Line < usages[j].Line
			}
			return usages[i].File < usages[j].File
		})
	}
}

func buildStatistics(usages []detect.Usage) Statistics {
	stats := Statistics{
		ByType: make(map[string]int),
		ByFile: make(map[string]int),
	}
	for _, u := range usages {
		stats.ByType[string(u.Type)]++
		stats.ByFile[u.File]++
	}
	best := 0
	for file, n := range stats.ByFile {
		if n > best || (n == best && file < stats.MostUsedIn) {
			best = n
			stats.MostUsedIn = file
		}
	}
	return stats
}

// paginate slices after sorting; statistics and totals always cover the
// full set
func paginate(usages []detect.Usage, offset, limit int) []detect.Usage {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(usages) {
		return nil
	}
	usages = usages[offset:]
	if limit > 0 && limit < len(usages) {
		usages = usages[:limit]
	}
	return usages
}

func groupByType(usages []detect.Usage) map[string][]detect.Usage {
	grouped := make(map[string][]detect.Usage)
	for _, u := range usages {
		grouped[string(u.Type)] = append(grouped[string(u.Type)], u)
	}
	return grouped
}

func lastSegment(fqn string) string {
	if i := strings.LastIndex(fqn, resolver.Separator); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
