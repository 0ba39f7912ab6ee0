package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/sjoeboo/dockyard/internal/changes"
	"github.com/sjoeboo/dockyard/internal/diffparse"
	"github.com/sjoeboo/dockyard/internal/workspace"
)

const leftPanelWidth = 28

// View implements tea.Model.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	st := m.ws.State()

	var b strings.Builder
	b.WriteString(m.renderHeader(st, width))
	b.WriteString("\n")
	b.WriteString(renderPanelBar(st))
	b.WriteString("\n\n")

	rightWidth := max(20, width-leftPanelWidth-3)
	left := m.renderSessions(leftPanelWidth)
	right := m.renderWorkspace(st, rightWidth)
	rows := max(lipgloss.Height(left), lipgloss.Height(right))
	sep := SeparatorStyle.Render(strings.TrimSuffix(strings.Repeat(" │ \n", rows), "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(leftPanelWidth).Render(left),
		sep,
		lipgloss.NewStyle().Width(rightWidth).Render(right))
	b.WriteString(lipgloss.NewStyle().MaxWidth(width).Render(body))
	b.WriteString("\n")

	if m.quickOpen {
		b.WriteString("\n")
		b.WriteString(m.renderQuickOpen(width))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(m.err.Error()))
	}
	b.WriteString("\n")
	b.WriteString(renderMenu())
	return b.String()
}

func (m *Model) renderHeader(st workspace.State, width int) string {
	title := TitleStyle.Render("dockyard")
	if st.Session == nil {
		return title + DimStyle.Render("  no session")
	}
	info := st.Session.Title
	if st.Session.Branch != "" {
		info += "  " + st.Session.Branch
	}
	if st.Loading {
		info += "  (restoring...)"
	}
	return title + "  " + truncate(info, width-12)
}

func renderPanelBar(st workspace.State) string {
	parts := make([]string, 0, len(st.Panels))
	for i, p := range st.Panels {
		label := fmt.Sprintf("%d %s", i+1, p.Title)
		if p.Visible {
			parts = append(parts, PanelOnStyle.Render(label))
		} else {
			parts = append(parts, PanelOffStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m *Model) renderSessions(width int) string {
	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("SESSIONS"))
	b.WriteString("\n")
	if len(m.sessions) == 0 {
		b.WriteString(DimStyle.Render("none configured"))
		return b.String()
	}

	active := ""
	if s := m.ws.Session(); s != nil {
		active = s.ID
	}
	for i, s := range m.sessions {
		name := truncate(s.Title, width-2)
		switch {
		case i == m.cursor:
			b.WriteString(SelectedStyle.Render("> " + name))
		case s.ID == active:
			b.WriteString(ActiveSessionStyle.Render("● " + name))
		default:
			b.WriteString("  " + name)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderWorkspace(st workspace.State, width int) string {
	if st.Session == nil {
		return DimStyle.Render("select a session and press enter")
	}
	root := st.Session.RootPath

	var b strings.Builder
	b.WriteString(PanelTitleStyle.Render("TABS"))
	b.WriteString("\n")
	if len(st.OpenFiles) == 0 {
		b.WriteString(DimStyle.Render("no open files"))
		b.WriteString("\n")
	}
	for _, p := range st.OpenFiles {
		rel := relPath(root, p)
		name := truncate(rel, width-6)
		marker := " "
		if typ, ok := changes.Lookup(st.Changes, rel); ok {
			marker = changeStyles[string(typ)].Render(changeMarker(string(typ)))
		}
		if p == st.ActiveFile {
			b.WriteString(SelectedStyle.Render("* ") + marker + " " + SelectedStyle.Render(name))
		} else {
			b.WriteString("  " + marker + " " + name)
		}
		b.WriteString("\n")
	}
	if st.ActiveFile != "" && !(st.DiffStat.IsZero() && st.Ranges.IsEmpty()) {
		b.WriteString(DimStyle.Render(st.DiffStat.String() + " · " + rangesSummary(st.Ranges)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(PanelTitleStyle.Render(fmt.Sprintf("CHANGES (%d)", len(st.Changes))))
	b.WriteString("\n")
	for _, c := range st.Changes {
		marker := changeStyles[string(c.Type)].Render(changeMarker(string(c.Type)))
		b.WriteString(marker + " " + truncate(c.Path, width-4))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderQuickOpen(width int) string {
	var b strings.Builder
	b.WriteString(m.quick.View())
	root := ""
	if s := m.ws.Session(); s != nil {
		root = s.RootPath
	}
	for i, hit := range m.quickHits {
		if i == 8 {
			b.WriteString("\n" + DimStyle.Render(fmt.Sprintf("  … %d more", len(m.quickHits)-i)))
			break
		}
		line := truncate(relPath(root, hit), width-4)
		if i == 0 {
			line = SelectedStyle.Render(line)
		}
		b.WriteString("\n  " + line)
	}
	return b.String()
}

func renderMenu() string {
	items := [][2]string{
		{"j/k", "select"},
		{"enter", "switch"},
		{"1-6", "panels"},
		{"R", "reset layout"},
		{"/", "open"},
		{"x", "close tab"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, MenuKeyStyle.Render(it[0])+" "+MenuDescStyle.Render(it[1]))
	}
	return strings.Join(parts, "  ")
}

func changeMarker(t string) string {
	switch t {
	case "added":
		return "A"
	case "deleted":
		return "D"
	}
	return "M"
}

func rangesSummary(r diffparse.LineRanges) string {
	return fmt.Sprintf("%d added, %d modified, %d deleted", len(r.Added), len(r.Modified), len(r.Deleted))
}

func relPath(root, p string) string {
	if root == "" {
		return p
	}
	if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}

// truncate cuts s to width display cells.
func truncate(s string, width int) string {
	if width <= 1 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
