// Package resolver turns bare or partially-qualified class references into
// fully-qualified names using only lexical information from one file's
// token stream: the declared namespace and the import alias table.
package resolver

import (
	"strings"

	"github.com/standardbeagle/pci/internal/phptok"
)

// Separator is the PHP namespace separator
const Separator = `\`

// mixinLookback bounds the backward walk that distinguishes a class-body
// trait inclusion from a file-level import. Deeply formatted class headers
// can exceed the window and misclassify; kept as a documented limitation
// rather than an unbounded scan.
const mixinLookback = 20

// Context holds one file's lexical resolution state. Built once per file,
// read-only afterward.
type Context struct {
	Namespace string
	Aliases   map[string]string
}

// Build constructs the full resolution context for a token stream
func Build(tokens []phptok.Token) Context {
	return Context{
		Namespace: Namespace(tokens),
		Aliases:   BuildAliasMap(tokens),
	}
}

// Namespace returns the file's declared namespace, or "" for the global
// namespace. Only the first declaration is considered.
func Namespace(tokens []phptok.Token) string {
	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("namespace") {
			continue
		}
		name, _, ok := CollectName(tokens, i+1)
		if !ok {
			return ""
		}
		return name
	}
	return ""
}

// BuildAliasMap scans every import declaration and returns the mapping from
// short name or alias to fully-qualified name. Trait inclusions inside class
// bodies are excluded (see IsMixinUse); `use function` and `use const`
// imports are skipped since they never name a class.
func BuildAliasMap(tokens []phptok.Token) map[string]string {
	aliases := make(map[string]string)

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("use") || IsMixinUse(tokens, i) {
			continue
		}

		j := phptok.NextSignificant(tokens, i+1)
		if j < 0 {
			continue
		}
		if tokens[j].IsKeyword("function") || tokens[j].IsKeyword("const") {
			continue
		}

		// One use statement may import several names: use A\B, C\D as E;
		for j >= 0 {
			name, end, ok := CollectName(tokens, j)
			if !ok {
				break
			}

			key := lastSegment(name)
			next := phptok.NextSignificant(tokens, end+1)
			if next >= 0 && tokens[next].IsKeyword("as") {
				aliasIdx := phptok.NextSignificant(tokens, next+1)
				if aliasIdx >= 0 && tokens[aliasIdx].Kind == phptok.KindName {
					key = tokens[aliasIdx].Text
					next = phptok.NextSignificant(tokens, aliasIdx+1)
				}
			}

			// Group imports (use A\{B, C}) are not expanded; the brace
			// aborts the statement and nothing is registered for it.
			if next >= 0 && tokens[next].IsOp("{") {
				break
			}

			aliases[key] = Normalize(name)

			if next < 0 || !tokens[next].IsOp(",") {
				break
			}
			j = phptok.NextSignificant(tokens, next+1)
		}
	}

	return aliases
}

// IsMixinUse reports whether the use token at index i is a trait inclusion
// inside a class body rather than a file-level import. It walks backward up
// to mixinLookback tokens: a class-opening keyword seen before a statement
// terminator or namespace declaration means class body.
func IsMixinUse(tokens []phptok.Token, i int) bool {
	steps := 0
	for j := i - 1; j >= 0 && steps < mixinLookback; j, steps = j-1, steps+1 {
		tok := tokens[j]
		if tok.IsOp(";") || tok.IsKeyword("namespace") {
			return false
		}
		if tok.IsKeyword("class") || tok.IsKeyword("trait") || tok.IsKeyword("enum") {
			return true
		}
	}
	return false
}

// Resolve maps a reference to its fully-qualified form. Resolution is
// purely lexical: a leading separator marks the name as already qualified,
// an alias-table hit wins next, and anything else is prefixed with the
// current namespace.
func Resolve(name string, aliases map[string]string, namespace string) string {
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, Separator) {
		return strings.TrimPrefix(name, Separator)
	}
	if full, ok := aliases[name]; ok {
		return full
	}
	if namespace != "" {
		return namespace + Separator + name
	}
	return name
}

// Resolve maps a reference using this context
func (c Context) Resolve(name string) string {
	return Resolve(name, c.Aliases, c.Namespace)
}

// Normalize strips a leading separator so targets and references compare
// equal regardless of root-anchoring.
func Normalize(fqn string) string {
	return strings.TrimPrefix(fqn, Separator)
}

// CollectName accumulates a possibly namespace-separated name starting at
// or after index i, skipping leading whitespace and comments. It returns
// the accumulated name, the index of its last token, and whether a name was
// found at all.
func CollectName(tokens []phptok.Token, i int) (string, int, bool) {
	i = phptok.NextSignificant(tokens, i)
	if i < 0 {
		return "", -1, false
	}

	var b strings.Builder
	end := -1
	for i < len(tokens) {
		tok := tokens[i]
		if tok.Kind == phptok.KindName || tok.IsOp(Separator) {
			b.WriteString(tok.Text)
			end = i
			i++
			continue
		}
		break
	}

	name := b.String()
	if name == "" || name == Separator {
		return "", -1, false
	}
	return name, end, true
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, Separator); idx >= 0 {
		return name[idx+len(Separator):]
	}
	return name
}
