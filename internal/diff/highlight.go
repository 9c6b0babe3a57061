package diff

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "dracula"

// Token is a syntax-highlighted chunk of text.
type Token struct {
	Text  string
	Color string // hex color, empty for default
}

// HighlightedLine is one diff line split into colored tokens.
type HighlightedLine struct {
	Tokens []Token
}

// Plain returns the concatenated plain text of all tokens.
func (hl HighlightedLine) Plain() string {
	var b strings.Builder
	for _, t := range hl.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Highlight tokenises every line of f with the lexer matching its path.
// The result has exactly one entry per f.Lines element. Unknown languages
// come back as single plain tokens.
func Highlight(f *File, styleName string) []HighlightedLine {
	src := make([]string, len(f.Lines))
	for i, l := range f.Lines {
		src[i] = l.Content
	}

	lexer := lexerFor(f.Path)
	if lexer == nil {
		return plain(src)
	}

	iterator, err := lexer.Tokenise(nil, strings.Join(src, "\n"))
	if err != nil {
		return plain(src)
	}

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	out := make([]HighlightedLine, 0, len(src))
	var cur HighlightedLine
	for _, tok := range iterator.Tokens() {
		for i, part := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				out = append(out, cur)
				cur = HighlightedLine{}
			}
			if part == "" {
				continue
			}
			var color string
			if entry := style.Get(tok.Type); entry.Colour.IsSet() {
				color = entry.Colour.String()
			}
			cur.Tokens = append(cur.Tokens, Token{Text: part, Color: color})
		}
	}
	out = append(out, cur)

	// chroma appends a trailing newline token for some lexers
	if len(out) > len(src) {
		out = out[:len(src)]
	}
	for len(out) < len(src) {
		out = append(out, HighlightedLine{})
	}
	return out
}

func plain(lines []string) []HighlightedLine {
	out := make([]HighlightedLine, len(lines))
	for i, l := range lines {
		out[i] = HighlightedLine{Tokens: []Token{{Text: l}}}
	}
	return out
}

func lexerFor(path string) chroma.Lexer {
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		if ext := filepath.Ext(path); ext != "" {
			lexer = lexers.Match("file" + ext)
		}
	}
	if lexer == nil {
		return nil
	}
	return chroma.Coalesce(lexer)
}
