package discovery

import (
	"context"
	"sort"
	"sync"

	"github.com/hbollon/go-edlib"

	pcierrors "github.com/standardbeagle/pci/internal/errors"
	"github.com/standardbeagle/pci/internal/resolver"
)

// suggestThreshold is the minimum Jaro-Winkler similarity for a
// did-you-mean candidate
const suggestThreshold = 0.85

// Index maps fully qualified class names to the files declaring them.
// It backs name-based reflection lookups and typo suggestions.
type Index struct {
	mu    sync.RWMutex
	byFQN map[string]string
}

// BuildIndex discovers every class under root and records its file.
// Later declarations of a duplicate FQN win, matching autoloader behavior
// closely enough for lookup purposes.
func (e *Engine) BuildIndex(ctx context.Context, root string) (*Index, error) {
	classes, err := e.Discover(ctx, root, Filter{Recursive: true})
	if err != nil {
		if pcierrors.IsNotFound(err) {
			return &Index{byFQN: map[string]string{}}, nil
		}
		return nil, err
	}
	ix := &Index{byFQN: make(map[string]string, len(classes))}
	for _, c := range classes {
		ix.byFQN[c.Name] = c.File
	}
	return ix, nil
}

// Locate returns the file declaring the class. An unknown name fails
// with near-miss suggestions attached.
func (ix *Index) Locate(fqn string) (string, error) {
	fqn = resolver.Normalize(fqn)
	ix.mu.RLock()
	path, ok := ix.byFQN[fqn]
	ix.mu.RUnlock()
	if ok {
		return path, nil
	}
	return "", pcierrors.NewNotFoundError("class", fqn).
		WithSuggestions(ix.Suggest(fqn, 3))
}

// Add registers or replaces one class entry
func (ix *Index) Add(fqn, path string) {
	ix.mu.Lock()
	ix.byFQN[resolver.Normalize(fqn)] = path
	ix.mu.Unlock()
}

// Len reports the number of indexed classes
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byFQN)
}

// Suggest returns up to max indexed names similar to the query, best
// first. Similarity is Jaro-Winkler over the short name, which forgives
// namespace omissions and small typos.
func (ix *Index) Suggest(query string, max int) []string {
	queryShort := shortName(resolver.Normalize(query))

	type scored struct {
		name  string
		score float32
	}
	var candidates []scored

	ix.mu.RLock()
	for name := range ix.byFQN {
		score, err := edlib.StringsSimilarity(queryShort, shortName(name), edlib.JaroWinkler)
		if err != nil || score < suggestThreshold {
			continue
		}
		candidates = append(candidates, scored{name, score})
	}
	ix.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

func shortName(fqn string) string {
	for i := len(fqn) - 1; i >= 0; i-- {
		if fqn[i] == '\\' {
			return fqn[i+1:]
		}
	}
	return fqn
}
