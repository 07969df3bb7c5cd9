// Package discovery enumerates the classes declared under a directory and
// applies structural filters over their API surfaces.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/pci/internal/config"
	pcierrors "github.com/standardbeagle/pci/internal/errors"
	"github.com/standardbeagle/pci/internal/phpreflect"
	"github.com/standardbeagle/pci/internal/resolver"
)

// Filter is the set of structural predicates applied to discovered
// classes. All supplied predicates must hold.
type Filter struct {
	// HasTrait matches classes using the trait, by exact FQN
	HasTrait string
	// HasInterface matches classes implementing the interface, by exact FQN
	HasInterface string
	// HasMethod matches classes declaring the method
	HasMethod string
	// Recursive descends into subdirectories; false restricts to files
	// directly inside the path
	Recursive bool
	Limit     int
	Offset    int
}

func (f Filter) active() bool {
	return f.HasTrait != "" || f.HasInterface != "" || f.HasMethod != ""
}

func (f Filter) describe() string {
	var parts []string
	if f.HasTrait != "" {
		parts = append(parts, "has_trait="+f.HasTrait)
	}
	if f.HasInterface != "" {
		parts = append(parts, "has_interface="+f.HasInterface)
	}
	if f.HasMethod != "" {
		parts = append(parts, "has_method="+f.HasMethod)
	}
	return strings.Join(parts, ", ")
}

// Engine discovers classes under a project tree
type Engine struct {
	cfg    *config.Config
	parser *phpreflect.Parser
}

func New(cfg *config.Config) *Engine {
	return &Engine{cfg: cfg, parser: phpreflect.NewParser()}
}

// Discover returns the classes under path that satisfy the filter, in
// file-walk order, paginated. Zero classes existing and zero classes
// surviving the filter are reported as distinct not-found errors.
func (e *Engine) Discover(ctx context.Context, path string, f Filter) ([]*phpreflect.ClassInfo, error) {
	files, err := e.classFiles(path, f.Recursive)
	if err != nil {
		return nil, err
	}

	var all []*phpreflect.ClassInfo
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		classes, err := e.parser.ParseFile(file)
		if err != nil {
			// unreadable files are skipped, the rest still count
			continue
		}
		all = append(all, classes...)
	}
	if len(all) == 0 {
		return nil, pcierrors.NewNotFoundError("classes", path).
			WithDetail("no class declarations found under this path")
	}

	matched := all
	if f.active() {
		matched = nil
		for _, c := range all {
			if e.matches(c, f) {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			return nil, pcierrors.NewNotFoundError("classes", path).
				WithDetail(fmt.Sprintf("%d classes found, none match %s", len(all), f.describe()))
		}
	}

	return page(matched, f.Offset, f.Limit), nil
}

func (e *Engine) matches(c *phpreflect.ClassInfo, f Filter) bool {
	if f.HasTrait != "" && !c.UsesTrait(resolver.Normalize(f.HasTrait)) {
		return false
	}
	if f.HasInterface != "" && !c.ImplementsInterface(resolver.Normalize(f.HasInterface)) {
		return false
	}
	if f.HasMethod != "" && !c.HasMethod(f.HasMethod) {
		return false
	}
	return true
}

// classFiles enumerates source files under path, honoring the configured
// excludes. With recursive=false only direct children qualify.
func (e *Engine) classFiles(path string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(path, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if !recursive || e.excluded(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !e.cfg.SourceExtension(d.Name()) || e.excluded(rel) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, pcierrors.NewFileError("walk", path, err)
	}
	return files, nil
}

func (e *Engine) excluded(rel string) bool {
	for _, pattern := range e.cfg.Scan.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func page(classes []*phpreflect.ClassInfo, offset, limit int) []*phpreflect.ClassInfo {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(classes) {
		return nil
	}
	classes = classes[offset:]
	if limit > 0 && limit < len(classes) {
		classes = classes[:limit]
	}
	return classes
}
