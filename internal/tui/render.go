package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aezell/visualgit/internal/diff"
)

// renderedLine is a single line of diff output ready for display.
type renderedLine struct {
	Num     int // new-file line number; deletions show none
	Kind    diff.LineKind
	Content string
	IsHunk  bool // true if this is a hunk header

	// Syntax highlighting tokens (nil = no highlighting)
	Tokens []diff.Token
}

// renderFile produces renderedLines for a file. The parsed model is a flat
// line list, so hunk headers are recovered where the new-file numbering
// jumps.
func renderFile(f *diff.File, style string) []renderedLine {
	highlighted := diff.Highlight(f, style)

	var lines []renderedLine
	next := -1
	for i, l := range f.Lines {
		if l.LineNumber != next {
			if i > 0 {
				lines = append(lines, renderedLine{})
			}
			lines = append(lines, renderedLine{
				IsHunk:  true,
				Content: fmt.Sprintf("@@ +%d @@", l.LineNumber),
			})
		}

		rl := renderedLine{Kind: l.Kind, Content: l.Content, Tokens: highlighted[i].Tokens}
		if l.Kind == diff.LineDeletion {
			next = l.LineNumber
		} else {
			rl.Num = l.LineNumber
			next = l.LineNumber + 1
		}
		lines = append(lines, rl)
	}

	return lines
}

// renderHighlightedContent renders line content with syntax tokens.
func renderHighlightedContent(rl renderedLine, prefix string) string {
	if len(rl.Tokens) == 0 {
		return prefix + rl.Content
	}

	var b strings.Builder
	b.WriteString(prefix)

	for _, tok := range rl.Tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}

	return b.String()
}

func lineNumber(n int) string {
	if n <= 0 {
		return lineNumberStyle.Render("    ")
	}
	return lineNumberStyle.Render(fmt.Sprintf("%4d", n))
}

// styleLine applies styling to a rendered line for unified view.
func styleLine(rl renderedLine, width int) string {
	if rl.IsHunk {
		return hunkHeaderStyle.Width(width).Render(rl.Content)
	}
	if rl.Kind == "" {
		return ""
	}

	var prefix string
	var style func(string) string

	switch rl.Kind {
	case diff.LineAddition:
		prefix = "+"
		style = func(s string) string { return addedLineStyle.Render(s) }
	case diff.LineDeletion:
		prefix = "-"
		style = func(s string) string { return deletedLineStyle.Render(s) }
	default:
		prefix = " "
		style = nil // context lines get syntax highlighting instead
	}

	var content string
	if style == nil {
		content = renderHighlightedContent(rl, prefix)
	} else {
		content = style(prefix + rl.Content)
	}

	// Truncate long lines
	maxContent := width - 6
	if maxContent > 0 && lipgloss.Width(content) > maxContent {
		content = truncate(prefix+rl.Content, maxContent)
		if style != nil {
			content = style(content)
		}
	}

	return lineNumber(rl.Num) + " " + content
}

// styleLineSplit renders a line for split (side-by-side) view: removed
// lines on the left, added lines on the right, context on both.
func styleLineSplit(rl renderedLine, halfWidth int) (left, right string) {
	if rl.IsHunk {
		return hunkHeaderStyle.Width(halfWidth).Render(rl.Content), ""
	}
	if rl.Kind == "" {
		return "", ""
	}

	maxContent := halfWidth - 7
	content := truncate(rl.Content, maxContent)

	switch rl.Kind {
	case diff.LineDeletion:
		left = lineNumber(0) + " " + deletedLineStyle.Render("-"+content)
		right = strings.Repeat(" ", halfWidth)
	case diff.LineAddition:
		left = strings.Repeat(" ", halfWidth)
		right = lineNumber(rl.Num) + " " + addedLineStyle.Render("+"+content)
	default:
		left = lineNumber(rl.Num) + " " + contextLineStyle.Render(" "+content)
		right = lineNumber(rl.Num) + " " + contextLineStyle.Render(" "+content)
	}

	return left, right
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}

func statusMarker(s diff.FileStatus) string {
	switch s {
	case diff.StatusAdded:
		return "A"
	case diff.StatusDeleted:
		return "D"
	case diff.StatusRenamed:
		return "R"
	case diff.StatusCopied:
		return "C"
	case diff.StatusBinary:
		return "B"
	default:
		return "M"
	}
}
