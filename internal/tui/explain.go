package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aezell/visualgit/internal/model"
)

// startExplain cancels any running explanation and starts a new one.
func (m Model) startExplain(title string, req model.Request) (tea.Model, tea.Cmd) {
	if m.opts.Explainer == nil {
		m.status = "no explanation engine configured"
		return m, nil
	}

	m.cancelExplain()
	req.Provider = m.opts.Provider
	req.Model = m.opts.Model

	ctx, cancel := context.WithCancel(context.Background())
	m.explain.gen++
	m.explain.cancel = cancel
	m.explain.running = true
	m.explain.show = true
	m.explain.title = title
	m.explain.text = ""
	m.explain.err = nil
	m.explain.stream = make(chan tea.Msg)
	m.resizeExplain()
	m.refreshExplain()

	return m, tea.Batch(explainCmd(ctx, m.opts.Explainer, req, m.explain.gen, m.explain.stream), m.spinner.Tick)
}

// explainCmd starts the explainer and waits for its first message. Each
// fragment arrives as an explainChunkMsg, then one explainResultMsg ends
// the run.
func explainCmd(ctx context.Context, ex Explainer, req model.Request, gen int, ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go produceExplain(ctx, ex, req, gen, ch)
		return <-ch
	}
}

func produceExplain(ctx context.Context, ex Explainer, req model.Request, gen int, ch chan<- tea.Msg) {
	defer close(ch)
	send := func(msg tea.Msg) bool {
		select {
		case ch <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	}

	frags, err := ex.Run(ctx, req)
	if err != nil {
		send(explainResultMsg{gen: gen, err: err})
		return
	}
	for f := range frags {
		if !send(explainChunkMsg{gen: gen, text: f}) {
			return
		}
	}
	send(explainResultMsg{gen: gen})
}

// waitExplain delivers the next message of a running explanation. A closed
// stream yields nil, which Bubble Tea ignores.
func waitExplain(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) cancelExplain() {
	if m.explain.cancel != nil {
		m.explain.cancel()
		m.explain.cancel = nil
	}
	m.explain.running = false
	m.explain.stream = nil
}

func (m *Model) copyExplanation() {
	if m.explain.text == "" {
		m.status = "nothing to copy"
		return
	}
	if err := m.opts.Clipboard.Copy(m.explain.text); err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = "explanation copied"
}

// resizeExplain fits the panel viewport to the current layout.
func (m *Model) resizeExplain() {
	if m.width == 0 || m.height == 0 {
		return
	}
	diffWidth := m.width - m.fileListWidth() - 1
	_, h := m.splitHeights(m.height - 2)
	m.explain.view.Width = max(diffWidth-4, 1)
	m.explain.view.Height = max(h-3, 1) // borders + header
	m.refreshExplain()
}

func (m *Model) refreshExplain() {
	var content string
	switch {
	case m.explain.running && m.explain.text == "":
		content = "Waiting for the engine…"
	case errors.Is(m.explain.err, context.Canceled):
		content = explainErrorStyle.Render("Cancelled.")
	case m.explain.err != nil:
		content = explainErrorStyle.Render("Explanation failed: " + m.explain.err.Error())
	default:
		content = m.explain.text
	}
	if w := m.explain.view.Width; w > 0 {
		content = lipgloss.NewStyle().Width(w).Render(content)
	}
	m.explain.view.SetContent(content)
	m.explain.view.GotoTop()
}
