package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pci/internal/config"
	pcierrors "github.com/standardbeagle/pci/internal/errors"
)

func writePHP(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func discoveryFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writePHP(t, root, "Order.php", `<?php
namespace App\Models;
use App\Concerns\HasTimestamps;
class Order implements \App\Contracts\Payable {
    use HasTimestamps;
    public function total(): int { return 0; }
}
`)
	writePHP(t, root, "Invoice.php", `<?php
namespace App\Models;
class Invoice implements \App\Contracts\Payable {
    public function total(): int { return 0; }
    public function send(): void {}
}
`)
	writePHP(t, root, "Concerns/HasTimestamps.php", `<?php
namespace App\Concerns;
trait HasTimestamps {
    public function touch(): void {}
}
`)
	return root
}

func engineFor(root string) *Engine {
	cfg := config.Default()
	cfg.Project.Root = root
	return New(cfg)
}

func TestDiscoverAllClasses(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	classes, err := e.Discover(context.Background(), root, Filter{Recursive: true})
	require.NoError(t, err)
	require.Len(t, classes, 3)

	var names []string
	for _, c := range classes {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{
		"App\\Models\\Order",
		"App\\Models\\Invoice",
		"App\\Concerns\\HasTimestamps",
	}, names)
}

func TestDiscoverNonRecursive(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	classes, err := e.Discover(context.Background(), root, Filter{Recursive: false})
	require.NoError(t, err)
	require.Len(t, classes, 2)
	for _, c := range classes {
		assert.NotEqual(t, "App\\Concerns\\HasTimestamps", c.Name)
	}
}

func TestDiscoverFilterByTrait(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	classes, err := e.Discover(context.Background(), root, Filter{
		Recursive: true,
		HasTrait:  "App\\Concerns\\HasTimestamps",
	})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "App\\Models\\Order", classes[0].Name)
}

func TestDiscoverFilterByInterface(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	classes, err := e.Discover(context.Background(), root, Filter{
		Recursive:    true,
		HasInterface: "\\App\\Contracts\\Payable",
	})
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestDiscoverFilterByMethod(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	classes, err := e.Discover(context.Background(), root, Filter{
		Recursive: true,
		HasMethod: "send",
	})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "App\\Models\\Invoice", classes[0].Name)
}

func TestDiscoverFiltersCombine(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	classes, err := e.Discover(context.Background(), root, Filter{
		Recursive:    true,
		HasInterface: "App\\Contracts\\Payable",
		HasMethod:    "total",
		HasTrait:     "App\\Concerns\\HasTimestamps",
	})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "App\\Models\\Order", classes[0].Name)
}

func TestDiscoverNoClassesUnderPath(t *testing.T) {
	root := t.TempDir()
	writePHP(t, root, "helpers.php", "<?php function noop() {}\n")
	e := engineFor(root)

	_, err := e.Discover(context.Background(), root, Filter{Recursive: true})
	require.Error(t, err)
	assert.True(t, pcierrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "no class declarations")
}

func TestDiscoverNothingMatchesFilter(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	_, err := e.Discover(context.Background(), root, Filter{
		Recursive: true,
		HasMethod: "refund",
	})
	require.Error(t, err)
	assert.True(t, pcierrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "none match has_method=refund")
}

func TestDiscoverPagination(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	all, err := e.Discover(context.Background(), root, Filter{Recursive: true})
	require.NoError(t, err)

	page, err := e.Discover(context.Background(), root, Filter{Recursive: true, Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[1].Name, page[0].Name)
	assert.Equal(t, all[2].Name, page[1].Name)
}

func TestDiscoverHonorsExcludes(t *testing.T) {
	root := discoveryFixture(t)
	writePHP(t, root, "Generated/Proxy.php", "<?php class Proxy {}\n")
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Scan.Exclude = append(cfg.Scan.Exclude, "**/Generated/**")
	e := New(cfg)

	classes, err := e.Discover(context.Background(), root, Filter{Recursive: true})
	require.NoError(t, err)
	for _, c := range classes {
		assert.NotEqual(t, "Proxy", c.ShortName)
	}
}

func TestBuildIndexAndLocate(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	ix, err := e.BuildIndex(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())

	path, err := ix.Locate("App\\Models\\Order")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Order.php"), path)

	// leading separator is forgiven
	path, err = ix.Locate("\\App\\Models\\Invoice")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Invoice.php"), path)
}

func TestBuildIndexEmptyTree(t *testing.T) {
	root := t.TempDir()
	e := engineFor(root)

	ix, err := e.BuildIndex(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
}

func TestLocateUnknownSuggestsNearMisses(t *testing.T) {
	root := discoveryFixture(t)
	e := engineFor(root)

	ix, err := e.BuildIndex(context.Background(), root)
	require.NoError(t, err)

	_, err = ix.Locate("App\\Models\\Ordr")
	require.Error(t, err)
	assert.True(t, pcierrors.IsNotFound(err))

	var nf *pcierrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, nf.Suggestions, "App\\Models\\Order")
}

func TestIndexAdd(t *testing.T) {
	ix := &Index{byFQN: map[string]string{}}
	ix.Add("\\App\\Late", "late.php")

	path, err := ix.Locate("App\\Late")
	require.NoError(t, err)
	assert.Equal(t, "late.php", path)
}

func TestSuggestOrdersByScore(t *testing.T) {
	ix := &Index{byFQN: map[string]string{
		"App\\UserRepo":   "a.php",
		"App\\UserReport": "b.php",
		"Lib\\Unrelated":  "c.php",
	}}

	got := ix.Suggest("UserRepo", 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "App\\UserRepo", got[0])
	assert.NotContains(t, got, "Lib\\Unrelated")
}
