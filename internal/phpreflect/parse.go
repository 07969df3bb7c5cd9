package phpreflect

import (
	"os"
	"strings"

	pcierrors "github.com/standardbeagle/pci/internal/errors"
	"github.com/standardbeagle/pci/internal/phptok"
	"github.com/standardbeagle/pci/internal/resolver"
)

// Parser extracts class declarations from source files
type Parser struct {
	lexer phptok.Tokenizer
}

func NewParser() *Parser {
	return &Parser{lexer: phptok.NewLexer()}
}

// ParseFile reads and parses one source file. The returned classes carry
// the given path in their File field.
func (p *Parser) ParseFile(path string) ([]*ClassInfo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, pcierrors.NewFileError("read", path, err)
	}
	return p.Parse(path, content), nil
}

// Parse extracts every class, interface, trait and enum declaration from
// src. Malformed input yields fewer classes, never an error.
func (p *Parser) Parse(path string, src []byte) []*ClassInfo {
	tokens := p.lexer.Tokenize(src)
	ctx := resolver.Build(tokens)

	var classes []*ClassInfo
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.Kind != phptok.KindName || !isClassKeyword(t) {
			continue
		}
		// Foo::class is a constant fetch, not a declaration
		if j := phptok.PrevSignificant(tokens, i-1); j >= 0 && tokens[j].IsOp("::") {
			continue
		}
		cls, next := p.parseClass(path, tokens, i, ctx)
		if cls != nil {
			classes = append(classes, cls)
		}
		if next > i {
			i = next
		}
	}
	return classes
}

func isClassKeyword(t phptok.Token) bool {
	return t.IsKeyword("class") || t.IsKeyword("interface") || t.IsKeyword("trait") || t.IsKeyword("enum")
}

// parseClass parses one declaration starting at the class keyword. It
// returns the class and the index of the body's closing brace so the
// caller skips nested declarations it already consumed.
func (p *Parser) parseClass(path string, tokens []phptok.Token, kw int, ctx resolver.Context) (*ClassInfo, int) {
	nameIdx := phptok.NextSignificant(tokens, kw+1)
	if nameIdx < 0 || tokens[nameIdx].Kind != phptok.KindName {
		// anonymous class
		return nil, kw
	}
	short := tokens[nameIdx].Text

	cls := &ClassInfo{
		ShortName: short,
		Kind:      ClassKind(strings.ToLower(tokens[kw].Text)),
		File:      path,
		Line:      tokens[kw].Line,
		Namespace: ctx.Namespace,
	}
	if ctx.Namespace != "" {
		cls.Name = ctx.Namespace + resolver.Separator + short
	} else {
		cls.Name = short
	}

	// abstract/final precede the keyword; the doc comment sits above them
	declStart := kw
	for j := phptok.PrevSignificant(tokens, declStart-1); j >= 0; j = phptok.PrevSignificant(tokens, j-1) {
		if tokens[j].IsKeyword("abstract") {
			cls.Abstract = true
		} else if tokens[j].IsKeyword("final") {
			cls.Final = true
		} else {
			break
		}
		declStart = j
	}
	cls.DocSummary = docSummaryBefore(tokens, declStart)

	// heritage clause up to the body open
	i := nameIdx
	for i < len(tokens) && !tokens[i].IsOp("{") && !tokens[i].IsOp(";") {
		t := tokens[i]
		switch {
		case t.IsKeyword("extends"):
			if name, end, ok := resolver.CollectName(tokens, i+1); ok {
				cls.Extends = resolver.Normalize(ctx.Resolve(name))
				i = end
			}
		case t.IsKeyword("implements"):
			i = p.collectHeritageList(tokens, i, ctx, &cls.Implements)
			continue
		}
		i++
	}
	if i >= len(tokens) || tokens[i].IsOp(";") {
		return cls, i
	}

	end := p.parseBody(tokens, i, ctx, cls)
	return cls, end
}

// collectHeritageList consumes the comma-separated names after implements,
// returning the index just past the list
func (p *Parser) collectHeritageList(tokens []phptok.Token, i int, ctx resolver.Context, out *[]string) int {
	i++
	for i < len(tokens) {
		name, end, ok := resolver.CollectName(tokens, i)
		if !ok {
			break
		}
		*out = append(*out, resolver.Normalize(ctx.Resolve(name)))
		i = phptok.NextSignificant(tokens, end+1)
		if i < 0 || !tokens[i].IsOp(",") {
			break
		}
		i++
	}
	if i < 0 {
		return len(tokens)
	}
	return i
}

// parseBody walks the class body from its opening brace, collecting
// members declared at depth one. Method bodies nest deeper and are
// skipped by the depth counter.
func (p *Parser) parseBody(tokens []phptok.Token, open int, ctx resolver.Context, cls *ClassInfo) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case t.IsOp("{"):
			depth++
			continue
		case t.IsOp("}"):
			depth--
			if depth == 0 {
				return i
			}
			continue
		}
		if depth != 1 || t.Skippable() {
			continue
		}

		switch {
		case t.IsKeyword("use"):
			i = p.parseTraitUse(tokens, i, ctx, cls)
		case t.IsKeyword("const"):
			i = p.parseConstant(tokens, i, cls)
		case t.IsKeyword("function"):
			i = p.parseMethod(tokens, i, ctx, cls, nil)
		case isVisibility(t) || t.IsKeyword("static") || t.IsKeyword("readonly") ||
			t.IsKeyword("abstract") || t.IsKeyword("final") || t.IsKeyword("var"):
			i = p.parseModified(tokens, i, ctx, cls)
		}
	}
	return len(tokens)
}

// parseModified handles a member introduced by modifiers, which may turn
// out to be a method, a typed property, or a class constant
func (p *Parser) parseModified(tokens []phptok.Token, start int, ctx resolver.Context, cls *ClassInfo) int {
	mods := memberMods{visibility: Public}
	i := start
	for i < len(tokens) {
		t := tokens[i]
		if t.Skippable() {
			i++
			continue
		}
		switch {
		case isVisibility(t):
			mods.visibility = Visibility(strings.ToLower(t.Text))
		case t.IsKeyword("static"):
			mods.static = true
		case t.IsKeyword("readonly"):
			mods.readonly = true
		case t.IsKeyword("abstract"):
			mods.abstract = true
		case t.IsKeyword("final"):
			mods.final = true
		case t.IsKeyword("var"):
			// legacy var declarations are public
		case t.IsKeyword("function"):
			return p.parseMethod(tokens, i, ctx, cls, &mods)
		case t.IsKeyword("const"):
			return p.parseConstant(tokens, i, cls)
		default:
			return p.parseProperty(tokens, start, i, ctx, cls, mods)
		}
		i++
	}
	return i
}

type memberMods struct {
	visibility Visibility
	static     bool
	readonly   bool
	abstract   bool
	final      bool
}

// parseTraitUse records the trait list of a mixin-inclusion statement.
// Adaptation blocks in braces are skipped wholesale.
func (p *Parser) parseTraitUse(tokens []phptok.Token, use int, ctx resolver.Context, cls *ClassInfo) int {
	i := use + 1
	for i < len(tokens) {
		name, end, ok := resolver.CollectName(tokens, i)
		if !ok {
			break
		}
		cls.Traits = append(cls.Traits, resolver.Normalize(ctx.Resolve(name)))
		i = phptok.NextSignificant(tokens, end+1)
		if i < 0 || !tokens[i].IsOp(",") {
			break
		}
		i++
	}
	for i >= 0 && i < len(tokens) && !tokens[i].IsOp(";") && !tokens[i].IsOp("{") {
		i++
	}
	if i < 0 {
		return len(tokens)
	}
	if i < len(tokens) && tokens[i].IsOp("{") {
		return i - 1 // let the body depth counter skip the block
	}
	return i
}

func (p *Parser) parseConstant(tokens []phptok.Token, kw int, cls *ClassInfo) int {
	i := phptok.NextSignificant(tokens, kw+1)
	if i < 0 || tokens[i].Kind != phptok.KindName {
		return kw
	}
	// a type may precede the constant name
	if j := phptok.NextSignificant(tokens, i+1); j >= 0 && tokens[j].Kind == phptok.KindName {
		i = j
	}
	c := Constant{
		Name:       tokens[i].Text,
		Line:       tokens[i].Line,
		DocSummary: docSummaryBefore(tokens, kw),
		DeclaredIn: cls.Name,
	}
	eq := phptok.NextSignificant(tokens, i+1)
	if eq >= 0 && tokens[eq].IsOp("=") {
		valStart := eq + 1
		end := valStart
		for end < len(tokens) && !tokens[end].IsOp(";") && !tokens[end].IsOp(",") {
			end++
		}
		c.Value = phptok.Snippet(tokens, valStart, end-1)
		i = end
	}
	cls.Constants = append(cls.Constants, c)
	return i
}

func (p *Parser) parseProperty(tokens []phptok.Token, declStart, i int, ctx resolver.Context, cls *ClassInfo, mods memberMods) int {
	prop := Property{
		Visibility: mods.visibility,
		Static:     mods.static,
		Readonly:   mods.readonly,
		DocSummary: docSummaryBefore(tokens, declStart),
		DeclaredIn: cls.Name,
	}

	if tokens[i].IsOp("?") {
		if j := phptok.NextSignificant(tokens, i+1); j >= 0 {
			i = j
		}
	}
	if tokens[i].Kind == phptok.KindName {
		if name, end, ok := resolver.CollectName(tokens, i); ok {
			prop.Type = resolveTypeName(name, ctx)
			next := phptok.NextSignificant(tokens, end+1)
			if next < 0 {
				return end
			}
			i = next
		}
	}
	if tokens[i].Kind != phptok.KindVariable {
		return i
	}
	prop.Name = strings.TrimPrefix(tokens[i].Text, "$")
	prop.Line = tokens[i].Line

	eq := phptok.NextSignificant(tokens, i+1)
	if eq >= 0 && tokens[eq].IsOp("=") {
		valStart := eq + 1
		end := valStart
		for end < len(tokens) && !tokens[end].IsOp(";") && !tokens[end].IsOp(",") {
			end++
		}
		prop.Default = phptok.Snippet(tokens, valStart, end-1)
		i = end
	}
	cls.Properties = append(cls.Properties, prop)
	return i
}

// parseMethod parses a signature from the function keyword through the
// parameter list and optional return type, stopping at the body open or
// the terminating semicolon for abstract/interface methods.
func (p *Parser) parseMethod(tokens []phptok.Token, fn int, ctx resolver.Context, cls *ClassInfo, mods *memberMods) int {
	if mods == nil {
		mods = &memberMods{visibility: Public}
	}
	nameIdx := phptok.NextSignificant(tokens, fn+1)
	if nameIdx >= 0 && tokens[nameIdx].IsOp("&") {
		nameIdx = phptok.NextSignificant(tokens, nameIdx+1)
	}
	if nameIdx < 0 || tokens[nameIdx].Kind != phptok.KindName {
		return fn
	}

	// the doc comment sits above the first modifier, not the keyword
	declStart := fn
	for j := phptok.PrevSignificant(tokens, declStart-1); j >= 0 && isModifierToken(tokens[j]); j = phptok.PrevSignificant(tokens, j-1) {
		declStart = j
	}

	m := Method{
		Name:       tokens[nameIdx].Text,
		Visibility: mods.visibility,
		Static:     mods.static,
		Abstract:   mods.abstract,
		Final:      mods.final,
		Line:       tokens[fn].Line,
		DocSummary: docSummaryBefore(tokens, declStart),
		DeclaredIn: cls.Name,
	}

	open := phptok.NextSignificant(tokens, nameIdx+1)
	if open < 0 || !tokens[open].IsOp("(") {
		cls.Methods = append(cls.Methods, m)
		return nameIdx
	}

	closeIdx := p.parseParams(tokens, open, ctx, cls, &m)

	end := closeIdx
	if colon := phptok.NextSignificant(tokens, closeIdx+1); colon >= 0 && tokens[colon].IsOp(":") {
		j := phptok.NextSignificant(tokens, colon+1)
		if j >= 0 && tokens[j].IsOp("?") {
			j = phptok.NextSignificant(tokens, j+1)
		}
		if j >= 0 {
			if name, nameEnd, ok := resolver.CollectName(tokens, j); ok {
				m.ReturnType = resolveTypeName(name, ctx)
				end = nameEnd
			}
		}
	}

	cls.Methods = append(cls.Methods, m)
	return end
}

// parseParams walks the parameter list, recording parameters and lifting
// constructor-promoted properties. Returns the close paren index.
func (p *Parser) parseParams(tokens []phptok.Token, open int, ctx resolver.Context, cls *ClassInfo, m *Method) int {
	depth := 0
	var param Param
	var promote *memberMods
	flush := func(line int) {
		if param.Name == "" {
			return
		}
		m.Params = append(m.Params, param)
		if promote != nil {
			cls.Properties = append(cls.Properties, Property{
				Name:       param.Name,
				Visibility: promote.visibility,
				Readonly:   promote.readonly,
				Type:       param.Type,
				Default:    param.Default,
				Line:       line,
				DeclaredIn: cls.Name,
			})
		}
		param = Param{}
		promote = nil
	}

	i := open
	for ; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case t.IsOp("("):
			depth++
			continue
		case t.IsOp(")"):
			depth--
			if depth == 0 {
				flush(t.Line)
				return i
			}
			continue
		}
		if depth != 1 || t.Skippable() {
			continue
		}
		switch {
		case t.IsOp(","):
			flush(t.Line)
		case isVisibility(t):
			if promote == nil {
				promote = &memberMods{}
			}
			promote.visibility = Visibility(strings.ToLower(t.Text))
		case t.IsKeyword("readonly"):
			if promote == nil {
				promote = &memberMods{visibility: Public}
			}
			promote.readonly = true
		case t.Kind == phptok.KindName && param.Name == "" && !param.HasDefault:
			if name, end, ok := resolver.CollectName(tokens, i); ok {
				param.Type = resolveTypeName(name, ctx)
				i = end
			}
		case t.Kind == phptok.KindVariable:
			param.Name = strings.TrimPrefix(t.Text, "$")
		case t.IsOp("="):
			valStart := i + 1
			end := valStart
			d := 0
			for end < len(tokens) {
				et := tokens[end]
				if d == 0 && (et.IsOp(",") || et.IsOp(")")) {
					break
				}
				if et.IsOp("(") || et.IsOp("[") {
					d++
				}
				if et.IsOp(")") || et.IsOp("]") {
					d--
				}
				end++
			}
			param.Default = phptok.Snippet(tokens, valStart, end-1)
			param.HasDefault = true
			i = end - 1
		}
	}
	return len(tokens) - 1
}

// resolveTypeName resolves a type annotation. Scalar and pseudo types stay
// as written; class types go through the alias map and namespace.
func resolveTypeName(name string, ctx resolver.Context) string {
	switch strings.ToLower(name) {
	case "int", "float", "string", "bool", "array", "object", "mixed",
		"void", "never", "null", "callable", "iterable", "static", "self", "parent", "false", "true":
		return name
	}
	return resolver.Normalize(ctx.Resolve(name))
}

func isVisibility(t phptok.Token) bool {
	return t.IsKeyword("public") || t.IsKeyword("protected") || t.IsKeyword("private")
}

func isModifierToken(t phptok.Token) bool {
	return isVisibility(t) || t.IsKeyword("static") || t.IsKeyword("readonly") ||
		t.IsKeyword("abstract") || t.IsKeyword("final")
}

// docSummaryBefore extracts the first sentence line of a docblock comment
// immediately preceding the declaration
func docSummaryBefore(tokens []phptok.Token, decl int) string {
	for j := decl - 1; j >= 0; j-- {
		t := tokens[j]
		if t.Kind == phptok.KindWhitespace {
			continue
		}
		if t.Kind != phptok.KindComment || !strings.HasPrefix(t.Text, "/**") {
			return ""
		}
		return docSummary(t.Text)
	}
	return ""
}

func docSummary(doc string) string {
	doc = strings.TrimPrefix(doc, "/**")
	doc = strings.TrimSuffix(doc, "*/")
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*"))
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}
		return line
	}
	return ""
}
