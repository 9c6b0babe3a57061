// Package diff parses unified git diffs into a line-addressed model.
package diff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LineKind classifies a line inside a hunk.
type LineKind string

const (
	LineContext  LineKind = "context"
	LineAddition LineKind = "addition"
	LineDeletion LineKind = "deletion"
)

// Line is one classified line of a file's diff.
//
// LineNumber is the position in the new file. Deletions do not occupy a new
// file line, so they carry the number of the line they precede.
type Line struct {
	Kind       LineKind `json:"type"`
	LineNumber int      `json:"lineNumber"`
	Content    string   `json:"content"`
}

// File is the parsed diff of a single file.
type File struct {
	Path      string     `json:"path"`
	Status    FileStatus `json:"status"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Lines     []Line     `json:"lines"`
}

// Patch renders the file's lines back into +/-/space prefixed text.
func (f *File) Patch() string {
	var b strings.Builder
	for i, l := range f.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch l.Kind {
		case LineAddition:
			b.WriteByte('+')
		case LineDeletion:
			b.WriteByte('-')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(l.Content)
	}
	return b.String()
}

// Issue records a part of the input the parser skipped.
type Issue struct {
	Section int    `json:"section"` // 0 is text before the first file header
	Reason  string `json:"reason"`
}

func (i Issue) String() string {
	return fmt.Sprintf("section %d: %s", i.Section, i.Reason)
}

// DiffSet holds the parsed diff for all files.
type DiffSet struct {
	Files  []*File
	Issues []Issue
	Raw    string // the raw unified diff text
}

// Stats returns aggregate statistics.
func (ds *DiffSet) Stats() (files, added, deleted int) {
	files = len(ds.Files)
	for _, f := range ds.Files {
		added += f.Additions
		deleted += f.Deletions
	}
	return
}

// File returns the file with the given path, or nil.
func (ds *DiffSet) File(path string) *File {
	for _, f := range ds.Files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

var (
	sectionRe = regexp.MustCompile(`(?m)^diff --git `)
	pathsRe   = regexp.MustCompile(`a/(.+?) b/(.+)`)
	hunkRe    = regexp.MustCompile(`(?m)^@@\s+-\d+(?:,\d+)?\s+\+(\d+)(?:,\d+)?\s+@@.*$`)
)

// Parse reads a unified diff and returns one File per file section, in
// source order. It never fails: sections it cannot read are dropped and
// reported in Issues.
func Parse(raw string) *DiffSet {
	ds := &DiffSet{Raw: raw}

	sections := sectionRe.Split(raw, -1)
	if lead := strings.TrimSpace(sections[0]); lead != "" {
		ds.Issues = append(ds.Issues, Issue{Section: 0, Reason: "text before first file header"})
	}

	for i, section := range sections[1:] {
		f, err := parseSection(section)
		if err != nil {
			ds.Issues = append(ds.Issues, Issue{Section: i + 1, Reason: err.Error()})
			continue
		}
		ds.Files = append(ds.Files, f)
	}

	return ds
}

// Files is Parse without the diagnostics.
func Files(raw string) []*File {
	return Parse(raw).Files
}

func parseSection(section string) (*File, error) {
	m := pathsRe.FindStringSubmatch(section)
	if m == nil {
		return nil, fmt.Errorf("no a/ b/ path header")
	}

	f := &File{Path: m[2], Status: sectionStatus(section)}

	hunks := hunkRe.FindAllStringSubmatchIndex(section, -1)
	for h, loc := range hunks {
		start, err := strconv.Atoi(section[loc[2]:loc[3]])
		if err != nil {
			return nil, fmt.Errorf("hunk %d: bad start line: %w", h+1, err)
		}

		end := len(section)
		if h+1 < len(hunks) {
			end = hunks[h+1][0]
		}
		parseHunk(f, section[loc[1]:end], start)
	}

	return f, nil
}

// parseHunk appends the classified lines of one hunk body to f. The body
// starts right after the header line and runs to the next header.
func parseHunk(f *File, body string, lineNum int) {
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return
	}

	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			f.Lines = append(f.Lines, Line{Kind: LineAddition, LineNumber: lineNum, Content: line[1:]})
			f.Additions++
			lineNum++
		case strings.HasPrefix(line, "-"):
			f.Lines = append(f.Lines, Line{Kind: LineDeletion, LineNumber: lineNum, Content: line[1:]})
			f.Deletions++
		case strings.HasPrefix(line, " "):
			f.Lines = append(f.Lines, Line{Kind: LineContext, LineNumber: lineNum, Content: line[1:]})
			lineNum++
		case line == "" && len(f.Lines) > 0:
			f.Lines = append(f.Lines, Line{Kind: LineContext, LineNumber: lineNum})
			lineNum++
		}
	}
}
