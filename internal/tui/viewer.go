package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/capturectl/internal/bundle"
)

type viewerTab int

const (
	viewerSummary viewerTab = iota
	viewerTrials
	viewerVideos
	viewerComment
	viewerTabCount
)

var viewerTabNames = []string{"Summary", "Trials", "Videos", "Comment"}

// Viewer is the Bubble Tea model for browsing an exported session bundle.
type Viewer struct {
	bundle    *bundle.SessionBundle
	filename  string
	activeTab viewerTab
	viewports [viewerTabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
}

// NewViewer creates a viewer for b, titled with the base name of filename.
func NewViewer(b *bundle.SessionBundle, filename string) Viewer {
	return Viewer{bundle: b, filename: filepath.Base(filename), sortAsc: true}
}

func (m Viewer) Init() tea.Cmd { return nil }

func (m Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % viewerTabCount
			return m, nil
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + viewerTabCount) % viewerTabCount
			return m, nil
		case "1", "2", "3", "4":
			m.activeTab = viewerTab(msg.String()[0] - '1')
			return m, nil
		case "s":
			if m.activeTab == viewerTrials {
				m.sortAsc = !m.sortAsc
				if m.ready {
					m.viewports[viewerTrials].SetContent(m.renderTab(viewerTrials))
					m.viewports[viewerTrials].GotoTop()
				}
				return m, nil
			}
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		vpHeight := max(m.height-3, 1)
		for i := viewerTab(0); i < viewerTabCount; i++ {
			vp := viewport.New(m.width, vpHeight)
			vp.SetContent(m.renderTab(i))
			m.viewports[i] = vp
		}
		return m, nil
	}
	return m, nil
}

func (m Viewer) View() string {
	if !m.ready {
		return "Loading…"
	}
	title := titleStyle.Width(m.width).Render("  capture  " + m.filename)
	tabs := tabBar(viewerTabNames, int(m.activeTab), m.width)
	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-4 jump  q quit"
	if m.activeTab == viewerTrials {
		dir := "oldest first"
		if !m.sortAsc {
			dir = "newest first"
		}
		hint += "  s sort (" + dir + ")"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	return lipgloss.JoinVertical(lipgloss.Left, title, tabs, content, statusBar(hint, pct, m.width))
}

func (m *Viewer) renderTab(t viewerTab) string {
	switch t {
	case viewerSummary:
		return m.renderSummary()
	case viewerTrials:
		return m.renderTrials()
	case viewerVideos:
		return m.renderVideos()
	case viewerComment:
		return m.renderComment()
	}
	return ""
}

func (m *Viewer) renderSummary() string {
	s := m.bundle.Session
	var sb strings.Builder
	sb.WriteString(heading("Session Summary"))
	row(&sb, "Session:", s.ID)
	row(&sb, "Study:", s.StudyID)
	row(&sb, "Name:", s.SessionName)
	row(&sb, "Path:", s.FullPath)
	row(&sb, "Device:", s.DeviceAddress)
	row(&sb, "Server:", s.ServerURL)
	if !s.StartTime.IsZero() {
		row(&sb, "Started:", s.StartTime.Format("2006-01-02 15:04:05 MST"))
	}
	row(&sb, "Ended:", s.EndTime.Format("2006-01-02 15:04:05 MST"))
	row(&sb, "Duration:", s.Duration)
	row(&sb, "CSV:", m.bundle.CSVPath)

	sb.WriteString(heading("Counts"))
	row(&sb, "Trials:", fmt.Sprintf("%d", len(m.bundle.Trials)))
	row(&sb, "Videos:", fmt.Sprintf("%d", len(m.bundle.Videos)))
	return sb.String()
}

func (m *Viewer) renderTrials() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Trials (%d)", len(m.bundle.Trials))))
	if len(m.bundle.Trials) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	trials := make([]bundle.TrialNote, len(m.bundle.Trials))
	copy(trials, m.bundle.Trials)
	sort.SliceStable(trials, func(i, j int) bool {
		if m.sortAsc {
			return trials[i].StartedAt.Before(trials[j].StartedAt)
		}
		return trials[i].StartedAt.After(trials[j].StartedAt)
	})
	for _, t := range trials {
		ts := timeStyle.Render(t.StartedAt.Format("15:04:05"))
		sb.WriteString(fmt.Sprintf("  %s  %s\n", ts, t.Name))
		if t.Note != "" {
			sb.WriteString("            " + noteStyle.Render(t.Note) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Viewer) renderVideos() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Videos (%d)", len(m.bundle.Videos))))
	if len(m.bundle.Videos) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, v := range m.bundle.Videos {
		sb.WriteString(bullet(v))
	}
	return sb.String()
}

func (m *Viewer) renderComment() string {
	var sb strings.Builder
	sb.WriteString(heading("Comment"))
	if m.bundle.Comment == "" {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
	} else {
		sb.WriteString(indent(m.bundle.Comment, "  ") + "\n")
	}
	if m.bundle.Message != "" {
		sb.WriteString(heading("Server reply"))
		sb.WriteString("  " + m.bundle.Message + "\n")
	}
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// RunViewer starts the viewer for b.
func RunViewer(b *bundle.SessionBundle, filename string) error {
	p := tea.NewProgram(NewViewer(b, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
