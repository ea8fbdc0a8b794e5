// Package ui renders terminal output for the repsync CLI.
package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// Init picks the color profile for f. Output that is not a terminal, or a
// NO_COLOR environment, gets plain ASCII.
func Init(f *os.File) {
	if !IsTerminal(f) || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(f).EnvColorProfile())
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// RenderPass styles a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn styles a warning marker.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail styles a failure marker.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderAccent styles a heading icon or highlighted value.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderMuted styles secondary text.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// RenderHeader styles a section title.
func RenderHeader(s string) string { return headerStyle.Render(s) }

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s
		})
	return t.Render()
}

// DayCell is one day of a week strip.
type DayCell struct {
	Label   string // e.g. "Sun"
	Trained bool
	Rested  bool
	Free    bool
	Today   bool
	Future  bool
}

// WeekStrip renders seven days on one line: trained days filled, rested
// days hollow (starred when the free rest day covered them), missed days
// crossed, future days dotted.
func WeekStrip(days []DayCell) string {
	cells := make([]string, 0, len(days))
	for _, d := range days {
		var mark string
		switch {
		case d.Trained:
			mark = passStyle.Render("●")
		case d.Rested && d.Free:
			mark = accentStyle.Render("☆")
		case d.Rested:
			mark = warnStyle.Render("○")
		case d.Future, d.Today:
			mark = mutedStyle.Render("·")
		default:
			mark = failStyle.Render("✗")
		}
		label := d.Label
		if d.Today {
			label = headerStyle.Underline(true).Render(label)
		}
		cells = append(cells, label+" "+mark)
	}
	return strings.Join(cells, "  ")
}
