package phptok

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokensOf(t *testing.T, src string) []Token {
	t.Helper()
	return NewLexer().Tokenize([]byte(src))
}

func significant(tokens []Token) []Token {
	var out []Token
	for _, tok := range tokens {
		if !tok.Skippable() {
			out = append(out, tok)
		}
	}
	return out
}

func TestLexerBasicStatement(t *testing.T) {
	tokens := significant(tokensOf(t, "<?php\nnamespace App\\Models;\n"))

	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}
	assert.Contains(t, texts, "namespace")
	assert.Contains(t, texts, "App")
	assert.Contains(t, texts, "\\")
	assert.Contains(t, texts, "Models")
	assert.Contains(t, texts, ";")
}

func TestLexerLineNumbers(t *testing.T) {
	tokens := tokensOf(t, "<?php\n\n$user = new User();\n")

	for _, tok := range tokens {
		if tok.Kind == KindVariable {
			assert.Equal(t, 3, tok.Line, "variable should be on line 3")
		}
		if tok.Kind == KindName && tok.Text == "new" {
			assert.Equal(t, 3, tok.Line)
		}
	}
}

func TestLexerVariables(t *testing.T) {
	tokens := significant(tokensOf(t, "$user = $this->name;"))

	require.GreaterOrEqual(t, len(tokens), 2)
	assert.Equal(t, KindVariable, tokens[0].Kind)
	assert.Equal(t, "$user", tokens[0].Text)

	var sawArrow bool
	for _, tok := range tokens {
		if tok.IsOp("->") {
			sawArrow = true
		}
	}
	assert.True(t, sawArrow, "-> should lex as a single operator token")
}

func TestLexerScopeResolutionOperator(t *testing.T) {
	tokens := significant(tokensOf(t, "User::where('active', true)"))

	require.GreaterOrEqual(t, len(tokens), 3)
	assert.Equal(t, "User", tokens[0].Text)
	assert.True(t, tokens[1].IsOp("::"), "got %q", tokens[1].Text)
	assert.Equal(t, "where", tokens[2].Text)
}

func TestLexerComments(t *testing.T) {
	src := "// line comment\n# hash comment\n/* block\ncomment */\n$x = 1;"
	tokens := tokensOf(t, src)

	var comments []string
	for _, tok := range tokens {
		if tok.Kind == KindComment {
			comments = append(comments, tok.Text)
		}
	}
	require.Len(t, comments, 3)
	assert.Equal(t, "// line comment", comments[0])
	assert.Equal(t, "# hash comment", comments[1])
	assert.Contains(t, comments[2], "block")
}

func TestLexerAttributeIsNotComment(t *testing.T) {
	tokens := significant(tokensOf(t, "#[Attribute]\nclass Foo {}"))

	require.NotEmpty(t, tokens)
	assert.True(t, tokens[0].IsOp("#["), "#[ must not be swallowed as a hash comment")
}

func TestLexerStrings(t *testing.T) {
	tokens := significant(tokensOf(t, `$a = 'it\'s'; $b = "say \"hi\"";`))

	var strs []string
	for _, tok := range tokens {
		if tok.Kind == KindString {
			strs = append(strs, tok.Text)
		}
	}
	require.Len(t, strs, 2)
	assert.Equal(t, `'it\'s'`, strs[0])
	assert.Equal(t, `"say \"hi\""`, strs[1])
}

func TestLexerStringContentIgnoredByScanners(t *testing.T) {
	// a class name inside a string stays one string token
	tokens := significant(tokensOf(t, `$x = "new User";`))
	for _, tok := range tokens {
		assert.NotEqual(t, "User", tok.Text)
	}
}

func TestLexerPreservesWhitespaceForSnippets(t *testing.T) {
	src := "use App\\Models\\User;"
	tokens := tokensOf(t, src)

	assert.Equal(t, src, Snippet(tokens, 0, len(tokens)-1))
}

func TestLexerMultilineWhitespaceCountsLines(t *testing.T) {
	tokens := tokensOf(t, "$a;\n\n\n$b;")
	var last Token
	for _, tok := range tokens {
		if tok.Kind == KindVariable {
			last = tok
		}
	}
	assert.Equal(t, 4, last.Line)
}

func TestNextPrevSignificant(t *testing.T) {
	tokens := tokensOf(t, "new   User")

	i := NextSignificant(tokens, 1)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "User", tokens[i].Text)

	j := PrevSignificant(tokens, i-1)
	require.GreaterOrEqual(t, j, 0)
	assert.Equal(t, "new", tokens[j].Text)
}
