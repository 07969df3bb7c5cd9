package detect

import (
	"github.com/standardbeagle/pci/internal/phptok"
	"github.com/standardbeagle/pci/internal/resolver"
)

// detectFunctionHints matches parameter and return type annotations on
// function declarations. Within the parameter list a name sequence
// immediately followed by a variable token is a type annotation; the
// return type is the name after a colon following the matching close
// paren, tracked by depth counting. Union member types other than the
// first are only matched when they directly precede the variable.
func detectFunctionHints(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	for i := 0; i < len(tokens); i++ {
		if !tokens[i].IsKeyword("function") {
			continue
		}

		open := findParamListOpen(tokens, i+1)
		if open < 0 {
			continue
		}

		depth := 1
		j := open + 1
		for ; j < len(tokens) && depth > 0; j++ {
			tok := tokens[j]
			switch {
			case tok.IsOp("("):
				depth++
			case tok.IsOp(")"):
				depth--
			case depth == 1 && (tok.Kind == phptok.KindName || tok.IsOp(resolver.Separator)):
				name, end, ok := resolver.CollectName(tokens, j)
				if !ok {
					continue
				}
				next := phptok.NextSignificant(tokens, end+1)
				if next >= 0 && tokens[next].Kind == phptok.KindVariable {
					if req.matches(req.Ctx.Resolve(name)) {
						usages = append(usages, Usage{
							File: req.File,
							Line: tokens[j].Line,
							Type: UsageTypeHint,
							Code: phptok.Snippet(tokens, j, next),
						})
					}
				}
				j = end // resume after the collected name
			}
		}
		if depth != 0 {
			continue // unterminated parameter list
		}

		// Return type: a colon directly after the close paren
		colon := phptok.NextSignificant(tokens, j)
		if colon < 0 || !tokens[colon].IsOp(":") {
			continue
		}
		k := phptok.NextSignificant(tokens, colon+1)
		if k >= 0 && tokens[k].IsOp("?") {
			k = k + 1
		}
		name, end, ok := resolver.CollectName(tokens, k)
		if !ok {
			continue
		}
		if req.matches(req.Ctx.Resolve(name)) {
			usages = append(usages, Usage{
				File: req.File,
				Line: tokens[colon].Line,
				Type: UsageTypeHint,
				Code: phptok.Snippet(tokens, colon, end),
			})
		}
	}
	return usages
}

// findParamListOpen locates the opening paren of a function's parameter
// list, stepping over the optional by-reference marker and function name.
// Anonymous functions have no name; arrow functions (fn) are declared with
// a different keyword and are not scanned.
func findParamListOpen(tokens []phptok.Token, i int) int {
	j := phptok.NextSignificant(tokens, i)
	if j < 0 {
		return -1
	}
	if tokens[j].IsOp("&") {
		j = phptok.NextSignificant(tokens, j+1)
		if j < 0 {
			return -1
		}
	}
	if tokens[j].Kind == phptok.KindName {
		j = phptok.NextSignificant(tokens, j+1)
		if j < 0 {
			return -1
		}
	}
	if tokens[j].IsOp("(") {
		return j
	}
	return -1
}

// detectPropertyHints matches typed property declarations: a visibility
// keyword not introducing a method, optionally followed by static/readonly
// modifiers, then a name sequence immediately followed by a variable.
// Untyped properties produce no record.
func detectPropertyHints(req *Request) []Usage {
	var usages []Usage
	tokens := req.Tokens

	depth := 0
	for i := 0; i < len(tokens); i++ {
		if tokens[i].IsOp("(") {
			depth++
			continue
		}
		if tokens[i].IsOp(")") {
			if depth > 0 {
				depth--
			}
			continue
		}
		// Promoted constructor parameters live inside the parameter list
		// and are already covered by the parameter-hint scan.
		if depth > 0 || !isVisibilityKeyword(tokens[i]) {
			continue
		}

		j := phptok.NextSignificant(tokens, i+1)
		for j >= 0 && (tokens[j].IsKeyword("static") || tokens[j].IsKeyword("readonly")) {
			j = phptok.NextSignificant(tokens, j+1)
		}
		if j < 0 || tokens[j].IsKeyword("function") || tokens[j].IsKeyword("const") {
			continue
		}
		if tokens[j].IsOp("?") {
			j = j + 1
		}

		name, end, ok := resolver.CollectName(tokens, j)
		if !ok {
			continue
		}
		next := phptok.NextSignificant(tokens, end+1)
		if next < 0 || tokens[next].Kind != phptok.KindVariable {
			continue
		}
		if req.matches(req.Ctx.Resolve(name)) {
			usages = append(usages, Usage{
				File: req.File,
				Line: tokens[i].Line,
				Type: UsageTypeHint,
				Code: phptok.Snippet(tokens, i, next),
			})
		}
	}
	return usages
}

func isVisibilityKeyword(t phptok.Token) bool {
	return t.IsKeyword("public") || t.IsKeyword("protected") || t.IsKeyword("private")
}
