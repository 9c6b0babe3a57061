// Package tui implements the Bubble Tea terminal diff browser.
package tui

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aezell/visualgit/internal/diff"
	"github.com/aezell/visualgit/internal/model"
)

// Explainer produces an explanation as a sequence of text fragments.
// *analysis.Session is the local implementation.
type Explainer interface {
	Run(ctx context.Context, req model.Request) (iter.Seq[string], error)
}

// Clipboard receives copied explanations.
type Clipboard interface {
	Copy(content string) error
}

type systemClipboard struct{}

func (systemClipboard) Copy(content string) error { return clipboard.WriteAll(content) }

// Options configures the browser.
type Options struct {
	Explainer Explainer // nil disables explanations
	Provider  model.Provider
	Model     string
	Clipboard Clipboard
	Style     string // chroma style name
}

// Model is the top-level Bubble Tea model for the diff browser.
type Model struct {
	diffSet *diff.DiffSet
	opts    Options

	// UI state
	width  int
	height int

	// File list
	fileIndex int   // currently selected file, index into diffSet.Files
	visible   []int // files passing the filter, in display order

	// Diff viewport
	scrollOffset int // scroll position within the current file's diff
	viewHeight   int // number of visible lines in the diff area

	// Rendered lines for the current file
	lines []renderedLine

	// View mode
	splitView bool

	// Help
	showHelp bool

	// File filter
	filtering bool
	filter    textinput.Model

	explain explainState
	spinner spinner.Model
	status  string
}

// explainState is the explanation panel.
type explainState struct {
	show    bool
	running bool
	title   string
	text    string
	err     error
	gen     int // bumped per request; stale results are dropped
	cancel  context.CancelFunc
	stream  chan tea.Msg
	view    viewport.Model
}

// explainChunkMsg carries one fragment of a running explanation.
type explainChunkMsg struct {
	gen  int
	text string
}

// explainResultMsg ends an explanation; err is nil on success.
type explainResultMsg struct {
	gen int
	err error
}

// New creates a new TUI model from a parsed diff set.
func New(ds *diff.DiffSet, opts Options) Model {
	if opts.Clipboard == nil {
		opts.Clipboard = systemClipboard{}
	}
	if opts.Style == "" {
		opts.Style = diff.DefaultStyle
	}

	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter files"

	m := Model{
		diffSet: ds,
		opts:    opts,
		filter:  ti,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.explain.view = viewport.New(0, 0)
	m.applyFilter()
	return m
}

func (m *Model) updateLines() {
	if len(m.diffSet.Files) == 0 || len(m.visible) == 0 {
		m.lines = nil
		return
	}
	m.lines = renderFile(m.diffSet.Files[m.fileIndex], m.opts.Style)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = m.height - 4 // status bar + help bar + borders
		m.resizeExplain()
		return m, nil

	case explainChunkMsg:
		if msg.gen != m.explain.gen || !m.explain.running {
			return m, nil
		}
		m.explain.text += msg.text
		m.refreshExplain()
		m.explain.view.GotoBottom()
		return m, waitExplain(m.explain.stream)

	case explainResultMsg:
		if msg.gen != m.explain.gen || !m.explain.running {
			return m, nil
		}
		m.cancelExplain()
		m.explain.text = strings.TrimSuffix(m.explain.text, " ")
		m.explain.err = msg.err
		m.refreshExplain()
		return m, nil

	case spinner.TickMsg:
		if !m.explain.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch {
	case key.Matches(msg, keys.Quit):
		m.cancelExplain()
		return m, tea.Quit

	case key.Matches(msg, keys.Down):
		if m.scrollOffset < len(m.lines)-1 {
			m.scrollOffset++
		}

	case key.Matches(msg, keys.Up):
		if m.scrollOffset > 0 {
			m.scrollOffset--
		}

	case key.Matches(msg, keys.NextFile):
		m.moveFile(1)

	case key.Matches(msg, keys.PrevFile):
		m.moveFile(-1)

	case key.Matches(msg, keys.NextHunk):
		m.jumpToNextHunk()

	case key.Matches(msg, keys.PrevHunk):
		m.jumpToPrevHunk()

	case key.Matches(msg, keys.Toggle):
		m.splitView = !m.splitView

	case key.Matches(msg, keys.Search):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, keys.Explain):
		if f := m.currentFile(); f != nil {
			return m.startExplain(f.Path, model.Request{
				Mode:     model.ModeFile,
				Content:  f.Patch(),
				FilePath: f.Path,
			})
		}

	case key.Matches(msg, keys.ExplainAll):
		if m.diffSet.Raw != "" {
			return m.startExplain("whole diff", model.Request{
				Mode:    model.ModeFull,
				Content: m.diffSet.Raw,
			})
		}

	case key.Matches(msg, keys.Panel):
		m.explain.show = !m.explain.show
		m.resizeExplain()

	case key.Matches(msg, keys.PanelDown):
		m.explain.view.HalfPageDown()

	case key.Matches(msg, keys.PanelUp):
		m.explain.view.HalfPageUp()

	case key.Matches(msg, keys.Copy):
		m.copyExplanation()

	case key.Matches(msg, keys.Back):
		switch {
		case m.explain.running:
			m.cancelExplain()
			m.explain.err = context.Canceled
			m.refreshExplain()
		case m.explain.show:
			m.explain.show = false
			m.resizeExplain()
		}

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
	}

	return m, nil
}

func (m *Model) currentFile() *diff.File {
	if len(m.visible) == 0 {
		return nil
	}
	return m.diffSet.Files[m.fileIndex]
}

// moveFile steps through the visible files.
func (m *Model) moveFile(delta int) {
	pos := m.visiblePos()
	next := pos + delta
	if pos < 0 || next < 0 || next >= len(m.visible) {
		return
	}
	m.fileIndex = m.visible[next]
	m.scrollOffset = 0
	m.updateLines()
}

func (m *Model) visiblePos() int {
	for i, idx := range m.visible {
		if idx == m.fileIndex {
			return i
		}
	}
	return -1
}

func (m *Model) jumpToNextHunk() {
	for i := m.scrollOffset + 1; i < len(m.lines); i++ {
		if m.lines[i].IsHunk {
			m.scrollOffset = i
			return
		}
	}
}

func (m *Model) jumpToPrevHunk() {
	for i := m.scrollOffset - 1; i >= 0; i-- {
		if m.lines[i].IsHunk {
			m.scrollOffset = i
			return
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	// Layout: file list on left, diff (and explanation) on right
	fileListWidth := m.fileListWidth()
	diffWidth := m.width - fileListWidth - 1 // -1 for gap
	mainHeight := m.height - 2

	fileList := m.renderFileList(fileListWidth, mainHeight)

	right := m.renderDiffView(diffWidth, mainHeight)
	if m.explain.show {
		diffHeight, explainHeight := m.splitHeights(mainHeight)
		right = lipgloss.JoinVertical(lipgloss.Left,
			m.renderDiffView(diffWidth, diffHeight),
			m.renderExplain(diffWidth, explainHeight),
		)
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, fileList, " ", right)

	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) splitHeights(total int) (diffHeight, explainHeight int) {
	explainHeight = total / 2
	return total - explainHeight, explainHeight
}

func (m Model) fileListWidth() int {
	// Calculate based on longest filename, capped
	maxLen := 20
	for _, f := range m.diffSet.Files {
		if len(f.Path) > maxLen {
			maxLen = len(f.Path)
		}
	}
	w := maxLen + 12 // padding + marker + stats
	if w > m.width/3 {
		w = m.width / 3
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) renderFileList(width, height int) string {
	var b strings.Builder

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(filterStyle.Render(m.filter.View()))
		b.WriteByte('\n')
	}

	for n, i := range m.visible {
		f := m.diffSet.Files[i]
		name := f.Path

		// Truncate name if needed
		maxName := width - 12
		if maxName > 0 && len(name) > maxName {
			name = "…" + name[len(name)-maxName+1:]
		}

		stats := fmt.Sprintf("+%d -%d", f.Additions, f.Deletions)
		line := fmt.Sprintf("%s %-*s %s", statusMarker(f.Status), maxName, name, stats)

		var style lipgloss.Style
		switch {
		case i == m.fileIndex:
			style = fileItemSelectedStyle
		case f.Status == diff.StatusAdded:
			style = fileItemNewStyle
		case f.Status == diff.StatusDeleted:
			style = fileItemDeletedStyle
		case f.Status == diff.StatusRenamed:
			style = fileItemRenamedStyle
		default:
			style = fileItemStyle
		}

		b.WriteString(style.Width(width - 4).Render(line))
		if n < len(m.visible)-1 {
			b.WriteByte('\n')
		}
	}

	innerHeight := height - 2 // borders
	return fileListStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderDiffView(width, height int) string {
	f := m.currentFile()
	if f == nil {
		return diffViewStyle.Width(width).Height(height - 2).Render("No changes")
	}

	innerWidth := width - 4 // borders + padding
	innerHeight := height - 2

	// Visible lines below the file header
	visibleLines := innerHeight - 2
	if visibleLines < 1 {
		visibleLines = 1
	}

	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render(f.Path))
	b.WriteByte('\n')

	if m.splitView {
		m.renderSplitDiff(&b, innerWidth, visibleLines)
	} else {
		m.renderUnifiedDiff(&b, innerWidth, visibleLines)
	}

	return diffViewStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderUnifiedDiff(b *strings.Builder, width, visibleLines int) {
	end := min(m.scrollOffset+visibleLines, len(m.lines))

	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleLine(m.lines[i], width))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

func (m Model) renderSplitDiff(b *strings.Builder, width, visibleLines int) {
	halfWidth := (width - 3) / 2 // -3 for separator

	end := min(m.scrollOffset+visibleLines, len(m.lines))

	for i := m.scrollOffset; i < end; i++ {
		left, right := styleLineSplit(m.lines[i], halfWidth)
		b.WriteString(left)
		b.WriteString(" │ ")
		b.WriteString(right)
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

func (m Model) renderExplain(width, height int) string {
	header := explainHeaderStyle.Render("Explanation: " + m.explain.title)
	if m.explain.running {
		header += " " + m.spinner.View()
	}
	return explainViewStyle.Width(width).Height(height - 2).
		Render(header + "\n" + m.explain.view.View())
}

func (m Model) renderStatusBar() string {
	nFiles, added, deleted := m.diffSet.Stats()

	left := fmt.Sprintf(" File %d/%d", m.visiblePos()+1, len(m.visible))
	if len(m.visible) != nFiles {
		left += fmt.Sprintf(" (of %d)", nFiles)
	}
	if len(m.lines) > 0 {
		left += fmt.Sprintf("  Line %d/%d", m.scrollOffset+1, len(m.lines))
	}
	if m.status != "" {
		left += "  " + m.status
	}

	mode := "unified"
	if m.splitView {
		mode = "split"
	}

	right := fmt.Sprintf("+%d -%d  %s  ? help ", added, deleted, mode)

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(fileHeaderStyle.Render("visualgit: Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, k := range helpKeys() {
		h := k.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Width(12).Render(h.Key),
			h.Desc,
		))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

// Run starts the TUI application.
func Run(ds *diff.DiffSet, opts Options) error {
	m := New(ds, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.cancelExplain()
	}
	return err
}
