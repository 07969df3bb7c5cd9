// Package detect implements the usage detectors: independent linear scans
// over one immutable token stream, each recognizing a single grammatical
// pattern that references a class. Detectors never error on malformed
// input; a construct that cannot be completed is skipped silently.
package detect

import (
	"strings"

	"github.com/standardbeagle/pci/internal/phptok"
	"github.com/standardbeagle/pci/internal/resolver"
)

// UsageType is one of the recognized usage kinds
type UsageType string

const (
	UsageImport     UsageType = "import"
	UsageNew        UsageType = "new"
	UsageStaticCall UsageType = "static_call"
	UsageExtends    UsageType = "extends"
	UsageImplements UsageType = "implements"
	UsageTrait      UsageType = "trait"
	UsageTypeHint   UsageType = "type_hint"
)

// AllUsageTypes lists every usage kind in canonical order
var AllUsageTypes = []UsageType{
	UsageImport,
	UsageNew,
	UsageStaticCall,
	UsageExtends,
	UsageImplements,
	UsageTrait,
	UsageTypeHint,
}

// ValidUsageType reports whether s names a known usage kind
func ValidUsageType(s string) bool {
	for _, t := range AllUsageTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Usage is one syntactic occurrence of the target class. Code is the
// trimmed verbatim source text spanning the matched construct.
type Usage struct {
	File   string    `json:"file"`
	Line   int       `json:"line"`
	Type   UsageType `json:"type"`
	Code   string    `json:"code"`
	Method string    `json:"method,omitempty"`
}

// Request carries the per-file inputs shared by every detector. The token
// slice is read-only; detectors may run concurrently against the same
// Request.
type Request struct {
	File   string
	Tokens []phptok.Token
	Ctx    resolver.Context
	Target string // normalized FQN, no leading separator
}

// matches compares a resolved reference against the target,
// root-separator-insensitively and case-sensitively.
func (r *Request) matches(resolved string) bool {
	return resolver.Normalize(resolved) == r.Target
}

// Detector pairs a usage kind with its scan routine. Several routines may
// share a kind (the three type-hint positions all emit UsageTypeHint).
type Detector struct {
	Type UsageType
	Scan func(req *Request) []Usage
}

// Registry returns the eight detector routines in canonical order
func Registry() []Detector {
	return []Detector{
		{UsageImport, detectImports},
		{UsageNew, detectNew},
		{UsageStaticCall, detectStaticCalls},
		{UsageExtends, detectExtends},
		{UsageImplements, detectImplements},
		{UsageTrait, detectTraits},
		{UsageTypeHint, detectFunctionHints},
		{UsageTypeHint, detectPropertyHints},
	}
}

// Select returns the detectors for the requested usage kinds, or the full
// registry when types is empty.
func Select(types []UsageType) []Detector {
	if len(types) == 0 {
		return Registry()
	}
	want := make(map[UsageType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []Detector
	for _, d := range Registry() {
		if want[d.Type] {
			out = append(out, d)
		}
	}
	return out
}

// Run executes the given detectors sequentially and concatenates their
// output in registry order.
func Run(req *Request, detectors []Detector) []Usage {
	var usages []Usage
	for _, d := range detectors {
		usages = append(usages, d.Scan(req)...)
	}
	return usages
}

// detectImports matches file-level use declarations whose imported name
// equals the target. The import's own full name is compared directly; no
// alias resolution applies.
func detectImports(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("use") || resolver.IsMixinUse(tokens, i) {
			continue
		}
		j := phptok.NextSignificant(tokens, i+1)
		if j < 0 {
			continue
		}
		if tokens[j].IsKeyword("function") || tokens[j].IsKeyword("const") {
			continue
		}

		for j >= 0 {
			name, end, ok := resolver.CollectName(tokens, j)
			if !ok {
				break
			}
			if req.matches(name) {
				usages = append(usages, Usage{
					File: req.File,
					Line: tokens[i].Line,
					Type: UsageImport,
					Code: phptok.Snippet(tokens, i, end),
				})
			}
			next := phptok.NextSignificant(tokens, end+1)
			if next >= 0 && tokens[next].IsKeyword("as") {
				aliasIdx := phptok.NextSignificant(tokens, next+1)
				if aliasIdx >= 0 {
					next = phptok.NextSignificant(tokens, aliasIdx+1)
				}
			}
			if next < 0 || !tokens[next].IsOp(",") {
				break
			}
			j = phptok.NextSignificant(tokens, next+1)
		}
	}
	return usages
}

// detectNew matches instantiations. Dynamic forms (new $class, new (expr),
// anonymous new class) produce no record.
func detectNew(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("new") {
			continue
		}
		name, end, ok := resolver.CollectName(tokens, i+1)
		if !ok || strings.EqualFold(name, "class") {
			continue
		}
		if req.matches(req.Ctx.Resolve(name)) {
			usages = append(usages, Usage{
				File: req.File,
				Line: tokens[i].Line,
				Type: UsageNew,
				Code: phptok.Snippet(tokens, i, end),
			})
		}
	}
	return usages
}

// detectStaticCalls matches scope-resolution references (User::where,
// User::CONST, User::class). The class name precedes the trigger, so the
// scan walks backward from each :: operator. self/static/parent references
// are skipped: they need hierarchy knowledge a lexical pass does not have.
func detectStaticCalls(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsOp("::") {
			continue
		}

		// Collect name and separator tokens immediately before the operator
		start := i
		for j := i - 1; j >= 0; j-- {
			if tokens[j].Kind == phptok.KindName || tokens[j].IsOp(resolver.Separator) {
				start = j
				continue
			}
			break
		}
		if start == i {
			continue // computed target, e.g. $class::method()
		}
		name := phptok.Snippet(tokens, start, i-1)
		if name == "" || isHierarchyKeyword(name) {
			continue
		}

		end := i
		method := ""
		if m := phptok.NextSignificant(tokens, i+1); m >= 0 && tokens[m].Kind == phptok.KindName {
			method = tokens[m].Text
			end = m
		}

		if req.matches(req.Ctx.Resolve(name)) {
			usages = append(usages, Usage{
				File:   req.File,
				Line:   tokens[i].Line,
				Type:   UsageStaticCall,
				Code:   phptok.Snippet(tokens, start, end),
				Method: method,
			})
		}
	}
	return usages
}

func isHierarchyKeyword(name string) bool {
	return strings.EqualFold(name, "self") ||
		strings.EqualFold(name, "static") ||
		strings.EqualFold(name, "parent")
}

// detectExtends matches inheritance declarations
func detectExtends(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("extends") {
			continue
		}
		name, end, ok := resolver.CollectName(tokens, i+1)
		if !ok {
			continue
		}
		if req.matches(req.Ctx.Resolve(name)) {
			usages = append(usages, Usage{
				File: req.File,
				Line: tokens[i].Line,
				Type: UsageExtends,
				Code: phptok.Snippet(tokens, i, end),
			})
		}
	}
	return usages
}

// detectImplements matches interface implementation lists; each listed name
// is tested independently.
func detectImplements(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("implements") {
			continue
		}
		j := i + 1
		for {
			name, end, ok := resolver.CollectName(tokens, j)
			if !ok {
				break
			}
			if req.matches(req.Ctx.Resolve(name)) {
				usages = append(usages, Usage{
					File: req.File,
					Line: tokens[i].Line,
					Type: UsageImplements,
					Code: phptok.Snippet(tokens, i, end),
				})
			}
			next := phptok.NextSignificant(tokens, end+1)
			if next < 0 || !tokens[next].IsOp(",") {
				break
			}
			j = next + 1
		}
	}
	return usages
}

// detectTraits matches use declarations inside class bodies: the inverse
// filter of detectImports.
func detectTraits(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("use") || !resolver.IsMixinUse(tokens, i) {
			continue
		}
		j := i + 1
		for {
			name, end, ok := resolver.CollectName(tokens, j)
			if !ok {
				break
			}
			if req.matches(req.Ctx.Resolve(name)) {
				usages = append(usages, Usage{
					File: req.File,
					Line: tokens[i].Line,
					Type: UsageTrait,
					Code: phptok.Snippet(tokens, i, end),
				})
			}
			next := phptok.NextSignificant(tokens, end+1)
			if next < 0 || !tokens[next].IsOp(",") {
				break
			}
			j = next + 1
		}
	}
	return usages
}
