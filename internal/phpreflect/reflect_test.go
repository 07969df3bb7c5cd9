package phpreflect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pcierrors "github.com/standardbeagle/pci/internal/errors"
)

// mapLocator is an in-memory class index for tests
type mapLocator map[string]string

func (m mapLocator) Locate(fqn string) (string, error) {
	if path, ok := m[fqn]; ok {
		return path, nil
	}
	return "", pcierrors.NewNotFoundError("class", fqn)
}

func writeSource(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func hierarchyFixture(t *testing.T) mapLocator {
	t.Helper()
	dir := t.TempDir()
	base := writeSource(t, dir, "Base.php", `<?php
namespace App;
class Base extends Root implements Stringable {
    public const VERSION = '1';
    public string $id = 'b';
    protected int $count = 0;
    private string $secret = '';
    public function save(): bool { return true; }
    protected function boot(): void {}
    private function hidden(): void {}
}
`)
	root := writeSource(t, dir, "Root.php", `<?php
namespace App;
class Root {
    public function rootOp(): void {}
}
`)
	loggable := writeSource(t, dir, "Loggable.php", `<?php
namespace App;
trait Loggable {
    public function log(string $msg): void {}
}
`)
	child := writeSource(t, dir, "Child.php", `<?php
namespace App;
class Child extends Base {
    use Loggable;
    public function save(): bool { return false; }
}
`)
	return mapLocator{
		"App\\Base":     base,
		"App\\Root":     root,
		"App\\Loggable": loggable,
		"App\\Child":    child,
	}
}

func TestDescribeByPath(t *testing.T) {
	loc := hierarchyFixture(t)
	r := NewReflector(nil)

	cls, err := r.Describe(Input{Path: loc["App\\Base"]}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "App\\Base", cls.Name)
	assert.Len(t, cls.Methods, 3)
}

func TestDescribeByPathWithNameDisambiguation(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "pair.php", `<?php
namespace App;
class First {}
class Second {}
`)
	r := NewReflector(nil)

	cls, err := r.Describe(Input{Path: path, Name: "Second"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "App\\Second", cls.Name)

	cls, err = r.Describe(Input{Path: path, Name: "App\\First"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "App\\First", cls.Name)

	_, err = r.Describe(Input{Path: path, Name: "Third"}, Options{})
	require.Error(t, err)
	assert.True(t, pcierrors.IsNotFound(err))
}

func TestDescribeByName(t *testing.T) {
	loc := hierarchyFixture(t)
	r := NewReflector(loc)

	cls, err := r.Describe(Input{Name: "App\\Child"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "App\\Child", cls.Name)
	// no inherited members without the option
	assert.Len(t, cls.Methods, 1)
}

func TestDescribeByNameWithoutLocator(t *testing.T) {
	r := NewReflector(nil)
	_, err := r.Describe(Input{Name: "App\\Child"}, Options{})
	require.Error(t, err)
	assert.True(t, pcierrors.IsNotFound(err))
}

func TestDescribeEmptyInput(t *testing.T) {
	r := NewReflector(nil)
	_, err := r.Describe(Input{}, Options{})
	require.Error(t, err)
	assert.True(t, pcierrors.IsInvalidParameter(err))
}

func TestDescribeIncludeInherited(t *testing.T) {
	loc := hierarchyFixture(t)
	r := NewReflector(loc)

	cls, err := r.Describe(Input{Name: "App\\Child"}, Options{IncludeInherited: true})
	require.NoError(t, err)

	// own save shadows the parent's; private members never travel
	names := make([]string, 0, len(cls.Methods))
	for _, m := range cls.Methods {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"save", "boot", "rootOp", "log"}, names)

	save := cls.Methods[0]
	assert.Equal(t, "save", save.Name)
	assert.Equal(t, "App\\Child", save.DeclaredIn)

	var boot Method
	for _, m := range cls.Methods {
		if m.Name == "boot" {
			boot = m
		}
	}
	assert.Equal(t, "App\\Base", boot.DeclaredIn)

	propNames := make([]string, 0, len(cls.Properties))
	for _, p := range cls.Properties {
		propNames = append(propNames, p.Name)
	}
	assert.ElementsMatch(t, []string{"id", "count"}, propNames)

	require.Len(t, cls.Constants, 1)
	assert.Equal(t, "VERSION", cls.Constants[0].Name)
	assert.Equal(t, "App\\Base", cls.Constants[0].DeclaredIn)

	assert.Equal(t, []string{"App\\Stringable"}, cls.Implements)
}

func TestDescribeInheritedSurvivesCycles(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "A.php", `<?php
namespace App;
class A extends B {
    public function fromA(): void {}
}
`)
	b := writeSource(t, dir, "B.php", `<?php
namespace App;
class B extends A {
    public function fromB(): void {}
}
`)
	r := NewReflector(mapLocator{"App\\A": a, "App\\B": b})

	cls, err := r.Describe(Input{Name: "App\\A"}, Options{IncludeInherited: true})
	require.NoError(t, err)
	assert.Len(t, cls.Methods, 2)
}

func TestDescribeInheritedSkipsUnindexedParent(t *testing.T) {
	dir := t.TempDir()
	child := writeSource(t, dir, "Child.php", `<?php
namespace App;
class Child extends \Vendor\Lib\External {
    public function own(): void {}
}
`)
	r := NewReflector(mapLocator{"App\\Child": child})

	cls, err := r.Describe(Input{Name: "App\\Child"}, Options{IncludeInherited: true})
	require.NoError(t, err)
	assert.Len(t, cls.Methods, 1)
}

func TestDescribeVisibilityFilter(t *testing.T) {
	loc := hierarchyFixture(t)
	r := NewReflector(loc)

	cls, err := r.Describe(Input{Name: "App\\Base"}, Options{Visibility: Protected})
	require.NoError(t, err)

	require.Len(t, cls.Methods, 1)
	assert.Equal(t, "boot", cls.Methods[0].Name)
	require.Len(t, cls.Properties, 1)
	assert.Equal(t, "count", cls.Properties[0].Name)
	// constants carry no visibility here and pass through
	assert.Len(t, cls.Constants, 1)
}

func TestDescribePagination(t *testing.T) {
	loc := hierarchyFixture(t)
	r := NewReflector(loc)

	cls, err := r.Describe(Input{Name: "App\\Base"}, Options{Limit: 2, Offset: 1})
	require.NoError(t, err)

	require.Len(t, cls.Methods, 2)
	assert.Equal(t, "boot", cls.Methods[0].Name)
	assert.Equal(t, "hidden", cls.Methods[1].Name)

	cls, err = r.Describe(Input{Name: "App\\Base"}, Options{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, cls.Methods)
}

func TestDescribeFileWithoutClasses(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "helpers.php", "<?php function helper() {}\n")
	r := NewReflector(nil)

	_, err := r.Describe(Input{Path: path}, Options{})
	require.Error(t, err)
	assert.True(t, pcierrors.IsNotFound(err))
}
