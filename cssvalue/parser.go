// Package cssvalue parses the small subset of CSS value syntax that card
// presets use for lettering: clamp()/min()/max() sizes, colors, text
// shadows, gradient backgrounds, font weights and font-family lists.
package cssvalue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	cssLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"|'(?:\\.|[^'])*'`},
		{Name: "Hash", Pattern: `#[0-9A-Fa-f]+`},
		{Name: "Number", Pattern: `[-+]?(?:\d+\.\d+|\.\d+|\d+)(?:px|pt|mm|cm|in|em|rem|vw|vh|vmin|vmax|deg|%)?`},
		{Name: "Ident", Pattern: `-?[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Punct", Pattern: `[(),/]`},
	})

	listParser = participle.MustBuild[List](
		participle.Lexer(cssLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// List is a comma separated list of space separated components, the shape
// shared by text-shadow, font-family and function argument lists.
type List struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Items []*Group       `parser:"@@ ( ',' @@ )*"`
}

// Group is one comma separated entry: one or more components.
type Group struct {
	Terms []*Term `parser:"@@+"`
}

// Term is a single component value.
type Term struct {
	Func   *Func          `parser:"  @@"`
	Hash   *string        `parser:"| @Hash"`
	Number *string        `parser:"| @Number"`
	Str    *StringLiteral `parser:"| @String"`
	Ident  *string        `parser:"| @Ident"`
	Slash  bool           `parser:"| @'/'"`
}

// Func is a functional notation such as clamp(...) or rgba(...).
type Func struct {
	Name string   `parser:"@Ident '('"`
	Args []*Group `parser:"( @@ ( ',' @@ )* )? ')'"`
}

// StringLiteral strips CSS quotes on capture.
type StringLiteral string

// Capture implements participle.Capture.
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("string literal capture requires value")
	}
	raw := values[0]
	if len(raw) >= 2 {
		raw = raw[1 : len(raw)-1]
	}
	*s = StringLiteral(strings.ReplaceAll(raw, `\`, ""))
	return nil
}

// Parse parses a CSS value into its list form.
func Parse(input string) (*List, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("cssvalue: empty value")
	}
	return listParser.ParseString("", input)
}

// String renders a term back to CSS-ish text, mostly for error messages.
func (t *Term) String() string {
	switch {
	case t == nil:
		return ""
	case t.Func != nil:
		args := make([]string, 0, len(t.Func.Args))
		for _, g := range t.Func.Args {
			args = append(args, g.String())
		}
		return t.Func.Name + "(" + strings.Join(args, ", ") + ")"
	case t.Hash != nil:
		return *t.Hash
	case t.Number != nil:
		return *t.Number
	case t.Str != nil:
		return strconv.Quote(string(*t.Str))
	case t.Ident != nil:
		return *t.Ident
	case t.Slash:
		return "/"
	default:
		return ""
	}
}

func (g *Group) String() string {
	parts := make([]string, 0, len(g.Terms))
	for _, t := range g.Terms {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, " ")
}

// single returns the only term of a one-item, one-term list.
func (l *List) single() (*Term, bool) {
	if l == nil || len(l.Items) != 1 || len(l.Items[0].Terms) != 1 {
		return nil, false
	}
	return l.Items[0].Terms[0], true
}
