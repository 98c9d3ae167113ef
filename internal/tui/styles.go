// Package tui provides the Bubble Tea views: a live session dashboard and a
// viewer for exported session bundles.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	noteStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// stateStyles colors the recording state badge.
var stateStyles = map[string]lipgloss.Style{
	"idle":      lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true),
	"starting":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	"recording": lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	"stopping":  lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	"ended":     lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true),
}

func stateBadge(state string) string {
	st, ok := stateStyles[state]
	if !ok {
		st = dimStyle
	}
	return st.Render("● " + strings.ToUpper(state))
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func row(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + orNone(value) + "\n")
}

func orNone(s string) string {
	if s == "" {
		return dimStyle.Render("(none)")
	}
	return s
}

// tabBar renders names with the active one highlighted.
func tabBar(names []string, active, width int) string {
	var parts []string
	for i, name := range names {
		label := fmt.Sprintf(" %d %s ", i+1, name)
		if i == active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
		if i < len(names)-1 {
			parts = append(parts, tabSepStyle.Render("│"))
		}
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
}

// statusBar renders hint on the left and right aligned to the edge.
func statusBar(hint, right string, width int) string {
	pad := width - lipgloss.Width(hint) - lipgloss.Width(right) - 2
	if pad < 1 {
		pad = 1
	}
	return statusBarStyle.Width(width).Render(hint + strings.Repeat(" ", pad) + right)
}
