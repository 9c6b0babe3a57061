package tui

import (
	"slices"
	"sort"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Accept):
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case key.Matches(msg, keys.Back):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

// applyFilter recomputes the visible files from the filter text, best
// fuzzy match first, and keeps the selection on a visible file.
func (m *Model) applyFilter() {
	query := m.filter.Value()
	m.visible = matchFiles(query, m.paths())

	if len(m.visible) == 0 {
		m.lines = nil
		return
	}
	if !slices.Contains(m.visible, m.fileIndex) {
		m.fileIndex = m.visible[0]
		m.scrollOffset = 0
		m.updateLines()
	} else if m.lines == nil {
		m.updateLines()
	}
}

func (m *Model) paths() []string {
	paths := make([]string, len(m.diffSet.Files))
	for i, f := range m.diffSet.Files {
		paths[i] = f.Path
	}
	return paths
}

// matchFiles returns the indices of paths matching query. An empty query
// matches everything in order.
func matchFiles(query string, paths []string) []int {
	if query == "" {
		idx := make([]int, len(paths))
		for i := range paths {
			idx[i] = i
		}
		return idx
	}

	ranks := fuzzy.RankFindNormalizedFold(query, paths)
	sort.Stable(ranks)

	idx := make([]int, len(ranks))
	for i, r := range ranks {
		idx[i] = r.OriginalIndex
	}
	return idx
}
