package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Oasis Lagoon palette
var (
	ColorBg      = lipgloss.Color("#101825")
	ColorSurface = lipgloss.Color("#22385C")
	ColorBorder  = lipgloss.Color("#264870")
	ColorText    = lipgloss.Color("#D9E6FA")
	ColorTextDim = lipgloss.Color("#8FB0D0")
	ColorAccent  = lipgloss.Color("#58B8FD")
	ColorGreen   = lipgloss.Color("#53D390")
	ColorYellow  = lipgloss.Color("#F0E68C")
	ColorRed     = lipgloss.Color("#FF7979")
	ColorComment = lipgloss.Color("#4D88A7")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	PanelTitleStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true).
			Underline(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorBg).
			Background(ColorAccent).
			Bold(true)

	ActiveSessionStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	PanelOnStyle = lipgloss.NewStyle().
			Foreground(ColorBg).
			Background(ColorGreen).
			Padding(0, 1)

	PanelOffStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim).
			Background(ColorSurface).
			Padding(0, 1)

	MenuKeyStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	MenuDescStyle = lipgloss.NewStyle().
			Foreground(ColorComment)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)
)

// changeStyles colors the change list markers.
var changeStyles = map[string]lipgloss.Style{
	"added":    lipgloss.NewStyle().Foreground(ColorGreen),
	"modified": lipgloss.NewStyle().Foreground(ColorYellow),
	"deleted":  lipgloss.NewStyle().Foreground(ColorRed),
}
