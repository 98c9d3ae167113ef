package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/capturectl/internal/identity"
	"github.com/fakeyudi/capturectl/internal/inventory"
	"github.com/fakeyudi/capturectl/internal/recording"
)

// VideoPicker is the part of the inventory syncer the dashboard drives.
type VideoPicker interface {
	Current() inventory.Inventory
	Select(name string) (inventory.Inventory, error)
}

// DashOptions wires the dashboard to live session state. Identities and
// Updates may be nil; Status and Refresh are optional.
type DashOptions struct {
	Identity   identity.Identity
	Identities <-chan identity.Identity
	Videos     VideoPicker
	Updates    <-chan inventory.Inventory
	Status     func() recording.Status
	Refresh    func()
	BaseURL    string
	Interval   time.Duration
}

type dashTab int

const (
	dashSession dashTab = iota
	dashTrials
	dashVideos
	dashTabCount
)

var dashTabNames = []string{"Session", "Trials", "Videos"}

type (
	identityMsg  identity.Identity
	inventoryMsg inventory.Inventory
	statusMsg    recording.Status
	closedMsg    struct{}
)

// Dashboard is the live Bubble Tea model behind `capture dash`.
type Dashboard struct {
	opts      DashOptions
	id        identity.Identity
	inv       inventory.Inventory
	status    recording.Status
	activeTab dashTab
	viewports [dashTabCount]viewport.Model
	cursor    int
	err       error
	width     int
	height    int
	ready     bool
}

func NewDashboard(opts DashOptions) Dashboard {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	d := Dashboard{opts: opts, id: opts.Identity}
	if opts.Videos != nil {
		d.inv = opts.Videos.Current()
	}
	if opts.Status != nil {
		d.status = opts.Status()
	}
	d.syncCursor()
	return d
}

func waitIdentity(ch <-chan identity.Identity) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		id, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return identityMsg(id)
	}
}

func waitInventory(ch <-chan inventory.Inventory) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		inv, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return inventoryMsg(inv)
	}
}

func (m Dashboard) pollStatus() tea.Cmd {
	if m.opts.Status == nil {
		return nil
	}
	status := m.opts.Status
	return tea.Tick(m.opts.Interval, func(time.Time) tea.Msg {
		return statusMsg(status())
	})
}

func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(
		waitIdentity(m.opts.Identities),
		waitInventory(m.opts.Updates),
		m.pollStatus(),
	)
}

func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % dashTabCount
			return m, nil
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + dashTabCount) % dashTabCount
			return m, nil
		case "1", "2", "3":
			m.activeTab = dashTab(msg.String()[0] - '1')
			return m, nil
		case "r":
			if m.opts.Refresh != nil {
				m.opts.Refresh()
			}
			return m, nil
		case "up", "k":
			if m.activeTab == dashVideos {
				if m.cursor > 0 {
					m.cursor--
				}
				m.rebuild()
				return m, nil
			}
		case "down", "j":
			if m.activeTab == dashVideos {
				if m.cursor < len(m.inv.Options())-1 {
					m.cursor++
				}
				m.rebuild()
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == dashVideos && m.opts.Videos != nil {
				opts := m.inv.Options()
				if m.cursor < len(opts) {
					inv, err := m.opts.Videos.Select(opts[m.cursor])
					m.err = err
					if err == nil {
						m.inv = inv
					}
				}
				m.rebuild()
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
		for i := dashTab(0); i < dashTabCount; i++ {
			m.viewports[i] = viewport.New(m.width, vpHeight)
		}
		m.rebuild()
		return m, nil

	case identityMsg:
		m.id = identity.Identity(msg)
		m.rebuild()
		return m, waitIdentity(m.opts.Identities)

	case inventoryMsg:
		m.inv = inventory.Inventory(msg)
		m.err = nil
		m.syncCursor()
		m.rebuild()
		return m, waitInventory(m.opts.Updates)

	case statusMsg:
		m.status = recording.Status(msg)
		m.rebuild()
		return m, m.pollStatus()
	}
	return m, nil
}

// syncCursor points the cursor at the selected video, or the sentinel.
func (m *Dashboard) syncCursor() {
	m.cursor = 0
	for i, v := range m.inv.Options() {
		if v != "" && v == m.inv.Selected {
			m.cursor = i
		}
	}
}

func (m *Dashboard) rebuild() {
	if !m.ready {
		return
	}
	for i := dashTab(0); i < dashTabCount; i++ {
		m.viewports[i].SetContent(m.renderTab(i))
	}
}

func (m Dashboard) View() string {
	if !m.ready {
		return "Loading…"
	}
	title := titleStyle.Width(m.width).Render("  capture  " + orDash(m.id.SessionID))
	tabs := tabBar(dashTabNames, int(m.activeTab), m.width)
	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  r refresh  q quit"
	if m.activeTab == dashVideos {
		hint += "  ↑/↓ move  enter select"
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, tabs, content, statusBar(hint, stateBadge(string(m.status.State)), m.width))
}

func (m *Dashboard) renderTab(t dashTab) string {
	switch t {
	case dashSession:
		return m.renderSession()
	case dashTrials:
		return m.renderTrials()
	case dashVideos:
		return m.renderVideos()
	}
	return ""
}

func (m *Dashboard) renderSession() string {
	var sb strings.Builder
	sb.WriteString(heading("Identity"))
	row(&sb, "Study:", m.id.StudyID)
	row(&sb, "Name:", m.id.SessionName)
	row(&sb, "Suffix:", m.id.VideoNameSuffix)
	row(&sb, "Session ID:", m.id.SessionID)
	row(&sb, "Device:", m.id.DeviceAddress)
	row(&sb, "Path:", m.id.FullPath)

	sb.WriteString(heading("Recording"))
	state := string(m.status.State)
	if state == "" {
		state = string(recording.Idle)
	}
	row(&sb, "State:", stateBadge(state))
	row(&sb, "Confirmed ID:", m.status.SessionID)
	row(&sb, "Active trial:", m.status.ActiveTrial)
	row(&sb, "Trials:", fmt.Sprintf("%d", len(m.status.Trials)))
	return sb.String()
}

func (m *Dashboard) renderTrials() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Trials (%d)", len(m.status.Trials))))
	if len(m.status.Trials) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, t := range m.status.Trials {
		num := dimStyle.Render(fmt.Sprintf("  %3d.", i+1))
		ts := timeStyle.Render(" [" + t.StartedAt.Format("15:04:05") + "]")
		line := num + ts + "  " + t.Name
		if m.status.State == recording.Recording && i == len(m.status.Trials)-1 {
			line += "  " + stateBadge(string(recording.Recording))
		}
		sb.WriteString(line + "\n")
		if note := m.status.Notes[t.Name]; note != "" {
			sb.WriteString("              " + noteStyle.Render(note) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Dashboard) renderVideos() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Videos (%d)", len(m.inv.Videos))))
	for i, v := range m.inv.Options() {
		label := v
		if v == "" {
			label = inventory.NoneLabel
		}
		mark := "   "
		if v == m.inv.Selected {
			mark = " ✓ "
		}
		line := fmt.Sprintf("  %s%s", mark, label)
		if i == m.cursor {
			line = selectedRowStyle.Width(max(m.width-2, 1)).Render(line)
		}
		sb.WriteString(line + "\n")
	}
	if m.err != nil {
		sb.WriteString("\n  " + errStyle.Render(m.err.Error()) + "\n")
	}
	if u, ok := m.inv.VideoURL(m.opts.BaseURL); ok {
		sb.WriteString(heading("Playback URL"))
		sb.WriteString("  " + u + "\n")
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RunDashboard starts the dashboard and blocks until the user quits.
func RunDashboard(opts DashOptions) error {
	p := tea.NewProgram(NewDashboard(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
