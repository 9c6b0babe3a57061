// Package analysis turns diff content into engine prompts, runs the
// external engine and hands its answer back as ordered fragments.
package analysis

import (
	"strings"

	"github.com/aezell/visualgit/internal/model"
)

const fullPrompt = `You are a senior software engineer reviewing a pull request. Analyze this git diff and respond with exactly these sections, in order:

## Summary
Two or three bullets: what this change does and why it matters.

## Changes by file
One bold file path per entry, followed by bullets describing what changed in it.

## Notable patterns
Bullets on improvements, refactorings or conventions introduced.

## Risks
Bullets on potential bugs, regressions, security or performance concerns. Write "None found" if there are none.

## Verdict
One line: is this change ready to merge, and if not, what blocks it.`

const filePromptTmpl = `You are a senior software engineer reviewing a single file in a pull request. Analyze the changes to {{file}} and respond with exactly these sections, in order:

## Summary
Two or three bullets: what changed in {{file}} and why it matters.

## Details
Bullets walking through the individual changes.

## Risks
Bullets on potential bugs, regressions or edge cases. Write "None found" if there are none.

## Verdict
One line on the quality of the change to {{file}}.`

const selectionPromptTmpl = `You are a senior software engineer. Explain the following code fragment{{from}} and respond with exactly these sections, in order:

## What it does
Bullets describing the fragment's structure and behavior.

## Issues
Bullets on bugs, edge cases or smells. Write "None found" if there are none.

## Suggestions
Bullets with concrete improvements.`

// rules is appended to every prompt regardless of mode or provider.
const rules = `Rules:
- Format the response in Markdown: use headings, **bold**, bullet lists and ` + "`inline code`" + `.
- Never ask clarifying questions and never offer follow-up actions.
- Never reproduce the input code or diff verbatim.
- Use short bullets, not paragraphs of prose.`

// BuildPrompt renders the instruction text for one analysis. The result
// depends only on its arguments, and content appears in it unchanged.
func BuildPrompt(mode model.Mode, content, filePath string) string {
	var head, fence string

	switch mode {
	case model.ModeFile:
		file := "this file"
		if filePath != "" {
			file = "`" + filePath + "`"
		}
		head = strings.ReplaceAll(filePromptTmpl, "{{file}}", file)
		fence = "```diff"
	case model.ModeSelection:
		from := ""
		if filePath != "" {
			from = " taken from `" + filePath + "`"
		}
		head = strings.ReplaceAll(selectionPromptTmpl, "{{from}}", from)
		fence = "```"
	default:
		head = fullPrompt
		fence = "```diff"
	}

	var b strings.Builder
	b.Grow(len(head) + len(rules) + len(content) + 32)
	b.WriteString(head)
	b.WriteString("\n\n")
	b.WriteString(rules)
	b.WriteString("\n\n")
	b.WriteString(fence)
	b.WriteByte('\n')
	b.WriteString(content)
	b.WriteString("\n```")
	return b.String()
}
