// Package ui holds the terminal styles of the command line.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	cPrimary = lipgloss.Color("63")
	cAccent  = lipgloss.Color("205")
	cGood    = lipgloss.Color("42")
	cWarn    = lipgloss.Color("214")
	cBad     = lipgloss.Color("196")
	cMuted   = lipgloss.Color("244")
)

var (
	Title  = lipgloss.NewStyle().Bold(true).Foreground(cAccent)
	Header = lipgloss.NewStyle().Bold(true).Foreground(cPrimary).Padding(0, 1)
	Cell   = lipgloss.NewStyle().Padding(0, 1)
	Muted  = lipgloss.NewStyle().Foreground(cMuted)
	Good   = lipgloss.NewStyle().Bold(true).Foreground(cGood)
	Warn   = lipgloss.NewStyle().Bold(true).Foreground(cWarn)
	Bad    = lipgloss.NewStyle().Bold(true).Foreground(cBad)
	Border = lipgloss.NewStyle().Foreground(cMuted)
)

// Status colours a credential status word.
func Status(s string) string {
	switch s {
	case "valid", "eternal":
		return Good.Render(s)
	case "expired":
		return Bad.Render(s)
	default:
		return Warn.Render(s)
	}
}
