package phpreflect

import (
	pcierrors "github.com/standardbeagle/pci/internal/errors"
)

// Locator maps a fully qualified class name to the file declaring it
type Locator interface {
	Locate(fqn string) (string, error)
}

// Input identifies the class to reflect. Exactly one of Name, Path and
// Descriptor is set; Name may additionally qualify Path when one file
// declares several classes. Resolution happens once, at the entry point.
type Input struct {
	Name       string
	Path       string
	Descriptor *ClassInfo
}

// Options shapes the reflected API surface
type Options struct {
	IncludeInherited bool
	// Visibility keeps only members at the given level; empty keeps all
	Visibility Visibility
	// Limit/Offset paginate each member list independently
	Limit  int
	Offset int
}

// Reflector resolves reflection inputs into canonical class descriptors.
// The locator is consulted for parent and trait lookups; a nil locator
// disables inherited-member merging.
type Reflector struct {
	parser  *Parser
	locator Locator
}

func NewReflector(locator Locator) *Reflector {
	return &Reflector{parser: NewParser(), locator: locator}
}

// Describe resolves the input and returns the class's API surface,
// merged, filtered and paginated per the options.
func (r *Reflector) Describe(in Input, opts Options) (*ClassInfo, error) {
	cls, err := r.resolve(in)
	if err != nil {
		return nil, err
	}

	out := *cls
	if opts.IncludeInherited && r.locator != nil {
		seen := map[string]bool{out.Name: true}
		r.mergeAncestors(&out, cls, seen)
	}

	if opts.Visibility != "" {
		out.Methods = filterMethods(out.Methods, opts.Visibility)
		out.Properties = filterProperties(out.Properties, opts.Visibility)
	}
	out.Methods = pageSlice(out.Methods, opts.Offset, opts.Limit)
	out.Properties = pageSlice(out.Properties, opts.Offset, opts.Limit)
	out.Constants = pageSlice(out.Constants, opts.Offset, opts.Limit)
	return &out, nil
}

func (r *Reflector) resolve(in Input) (*ClassInfo, error) {
	switch {
	case in.Descriptor != nil:
		return in.Descriptor, nil
	case in.Path != "":
		classes, err := r.parser.ParseFile(in.Path)
		if err != nil {
			return nil, err
		}
		if len(classes) == 0 {
			return nil, pcierrors.NewNotFoundError("class", in.Path).
				WithDetail("file declares no classes")
		}
		if in.Name == "" {
			return classes[0], nil
		}
		for _, c := range classes {
			if c.Name == in.Name || c.ShortName == in.Name {
				return c, nil
			}
		}
		return nil, pcierrors.NewNotFoundError("class", in.Name).
			WithDetail("not declared in " + in.Path)
	case in.Name != "":
		if r.locator == nil {
			return nil, pcierrors.NewNotFoundError("class", in.Name).
				WithDetail("no class index available for name lookup")
		}
		path, err := r.locator.Locate(in.Name)
		if err != nil {
			return nil, err
		}
		return r.resolve(Input{Name: in.Name, Path: path})
	default:
		return nil, pcierrors.NewInvalidParameterError("class", "", "a class name, file path or descriptor is required")
	}
}

// mergeAncestors appends members from the parent chain and used traits.
// Own members shadow inherited ones of the same name; the seen set guards
// against declaration cycles.
func (r *Reflector) mergeAncestors(out *ClassInfo, cls *ClassInfo, seen map[string]bool) {
	sources := cls.Traits
	if cls.Extends != "" {
		sources = append([]string{cls.Extends}, sources...)
	}
	for _, fqn := range sources {
		if seen[fqn] {
			continue
		}
		seen[fqn] = true
		path, err := r.locator.Locate(fqn)
		if err != nil {
			// parent outside the indexed tree, nothing to merge
			continue
		}
		ancestor, err := r.resolve(Input{Name: fqn, Path: path})
		if err != nil {
			continue
		}
		mergeMembers(out, ancestor)
		r.mergeAncestors(out, ancestor, seen)
	}
}

func mergeMembers(out *ClassInfo, ancestor *ClassInfo) {
	for _, m := range ancestor.Methods {
		if m.Visibility == Private || out.HasMethod(m.Name) {
			continue
		}
		out.Methods = append(out.Methods, m)
	}
	for _, p := range ancestor.Properties {
		if p.Visibility == Private || hasProperty(out.Properties, p.Name) {
			continue
		}
		out.Properties = append(out.Properties, p)
	}
	for _, c := range ancestor.Constants {
		if hasConstant(out.Constants, c.Name) {
			continue
		}
		out.Constants = append(out.Constants, c)
	}
	for _, ifc := range ancestor.Implements {
		if !out.ImplementsInterface(ifc) {
			out.Implements = append(out.Implements, ifc)
		}
	}
}

func hasProperty(props []Property, name string) bool {
	for _, p := range props {
		if p.Name == name {
			return true
		}
	}
	return false
}

func hasConstant(consts []Constant, name string) bool {
	for _, c := range consts {
		if c.Name == name {
			return true
		}
	}
	return false
}

func filterMethods(methods []Method, v Visibility) []Method {
	var out []Method
	for _, m := range methods {
		if m.Visibility == v {
			out = append(out, m)
		}
	}
	return out
}

func filterProperties(props []Property, v Visibility) []Property {
	var out []Property
	for _, p := range props {
		if p.Visibility == v {
			out = append(out, p)
		}
	}
	return out
}

func pageSlice[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
