package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextToken_BasicTokens(t *testing.T) {
	input := `(){};,.-+*!=<><=>===!`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenLeftParen, "("},
		{TokenRightParen, ")"},
		{TokenLeftBrace, "{"},
		{TokenRightBrace, "}"},
		{TokenSemicolon, ";"},
		{TokenComma, ","},
		{TokenDot, "."},
		{TokenMinus, "-"},
		{TokenPlus, "+"},
		{TokenStar, "*"},
		{TokenBangEqual, "!="},
		{TokenLess, "<"},
		{TokenGreater, ">"},
		{TokenLessEqual, "<="},
		{TokenGreaterEqual, ">="},
		{TokenEqualEqual, "=="},
		{TokenBang, "!"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		require.Equalf(t, tt.expectedType, tok.Type, "tests[%d] type", i)
		require.Equalf(t, tt.expectedLiteral, tok.Literal, "tests[%d] literal", i)
	}
}

func TestNextToken_KeywordsAndIdentifiers(t *testing.T) {
	input := `and class else false for fun if nil or print return super this true var while foobar _x1`

	tests := []TokenType{
		TokenAnd, TokenClass, TokenElse, TokenFalse, TokenFor, TokenFun,
		TokenIf, TokenNil, TokenOr, TokenPrint, TokenReturn, TokenSuper,
		TokenThis, TokenTrue, TokenVar, TokenWhile, TokenIdentifier,
		TokenIdentifier, TokenEOF,
	}

	l := New(input)
	for i, want := range tests {
		tok := l.NextToken()
		require.Equalf(t, want, tok.Type, "tests[%d]: literal %q", i, tok.Literal)
	}
}

func TestNextToken_NumbersAndStrings(t *testing.T) {
	input := `123 1.5 "hello world" "multi
line"`

	l := New(input)

	tok := l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "123", tok.Literal)

	tok = l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "1.5", tok.Literal)

	tok = l.NextToken()
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, `"hello world"`, tok.Literal)

	tok = l.NextToken()
	require.Equal(t, TokenString, tok.Type)
	require.Equal(t, 2, tok.Line, "line counter should advance inside a multi-line string")
}

func TestNextToken_UnterminatedStringIsErrorNotHalt(t *testing.T) {
	l := New(`"abc`)
	tok := l.NextToken()
	require.Equal(t, TokenError, tok.Type)

	// the lexer keeps producing tokens (EOF) after an error token.
	tok = l.NextToken()
	require.Equal(t, TokenEOF, tok.Type)
}

func TestNextToken_SkipsLineComments(t *testing.T) {
	l := New("// a comment\nvar")
	tok := l.NextToken()
	require.Equal(t, TokenVar, tok.Type)
	require.Equal(t, 2, tok.Line)
}

func TestNextToken_DotTerminatesNumber(t *testing.T) {
	// a trailing '.' with no following digit is not part of the number.
	l := New(`123.`)
	tok := l.NextToken()
	require.Equal(t, TokenNumber, tok.Type)
	require.Equal(t, "123", tok.Literal)
	tok = l.NextToken()
	require.Equal(t, TokenDot, tok.Type)
}
