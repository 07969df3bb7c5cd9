// Package phpreflect extracts class API surfaces from PHP source using
// the same lexical token stream the usage detectors run over. It is not
// a parser: it recognizes declaration shapes, which is enough to report
// methods, properties, constants and the inheritance clause.
package phpreflect

import "strings"

// Visibility of a class member
type Visibility string

const (
	Public    Visibility = "public"
	Protected Visibility = "protected"
	Private   Visibility = "private"
)

// ClassKind distinguishes the declaration keyword
type ClassKind string

const (
	KindClass     ClassKind = "class"
	KindInterface ClassKind = "interface"
	KindTrait     ClassKind = "trait"
	KindEnum      ClassKind = "enum"
)

// Param is one parameter of a method signature
type Param struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Default    string `json:"default,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

// Method describes a declared or inherited method. DeclaredIn carries the
// FQN of the class that actually declares it, which differs from the
// queried class for inherited members.
type Method struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Static     bool       `json:"static,omitempty"`
	Abstract   bool       `json:"abstract,omitempty"`
	Final      bool       `json:"final,omitempty"`
	Params     []Param    `json:"params,omitempty"`
	ReturnType string     `json:"return_type,omitempty"`
	Line       int        `json:"line"`
	DocSummary string     `json:"doc_summary,omitempty"`
	DeclaredIn string     `json:"declared_in,omitempty"`
}

type Property struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Static     bool       `json:"static,omitempty"`
	Readonly   bool       `json:"readonly,omitempty"`
	Type       string     `json:"type,omitempty"`
	Default    string     `json:"default,omitempty"`
	Line       int        `json:"line"`
	DocSummary string     `json:"doc_summary,omitempty"`
	DeclaredIn string     `json:"declared_in,omitempty"`
}

type Constant struct {
	Name       string `json:"name"`
	Value      string `json:"value,omitempty"`
	Line       int    `json:"line"`
	DocSummary string `json:"doc_summary,omitempty"`
	DeclaredIn string `json:"declared_in,omitempty"`
}

// ClassInfo is the canonical class descriptor all reflection inputs
// resolve into
type ClassInfo struct {
	Name       string     `json:"name"`
	ShortName  string     `json:"short_name"`
	Kind       ClassKind  `json:"kind"`
	File       string     `json:"file"`
	Line       int        `json:"line"`
	Namespace  string     `json:"namespace,omitempty"`
	Abstract   bool       `json:"abstract,omitempty"`
	Final      bool       `json:"final,omitempty"`
	Extends    string     `json:"extends,omitempty"`
	Implements []string   `json:"implements,omitempty"`
	Traits     []string   `json:"traits,omitempty"`
	DocSummary string     `json:"doc_summary,omitempty"`
	Methods    []Method   `json:"methods,omitempty"`
	Properties []Property `json:"properties,omitempty"`
	Constants  []Constant `json:"constants,omitempty"`
}

// HasMethod reports whether the class declares (or, after merging,
// inherits) a method with the given name. Comparison is case-insensitive
// to match PHP method-call semantics.
func (c *ClassInfo) HasMethod(name string) bool {
	for _, m := range c.Methods {
		if strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}

// UsesTrait reports exact-FQN trait membership
func (c *ClassInfo) UsesTrait(fqn string) bool {
	for _, t := range c.Traits {
		if t == fqn {
			return true
		}
	}
	return false
}

// ImplementsInterface reports exact-FQN interface membership
func (c *ClassInfo) ImplementsInterface(fqn string) bool {
	for _, ifc := range c.Implements {
		if ifc == fqn {
			return true
		}
	}
	return false
}
