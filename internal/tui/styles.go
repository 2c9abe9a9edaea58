package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorShell     = lipgloss.Color("#8A8A8A")
	colorRegular   = lipgloss.Color("#4CAF50")
	colorExclusion = lipgloss.Color("#F44336")
	colorEntry     = lipgloss.Color("#2196F3")
	colorHover     = lipgloss.Color("#FFFFFF")
	colorDim       = lipgloss.Color("#444444")
	colorTarget    = lipgloss.Color("#FFEB3B")
	colorWarning   = lipgloss.Color("#FFAA00")
	colorBar       = lipgloss.Color("#1B2B1B")
)

var canvasStyles = map[ink]lipgloss.Style{
	inkShell:     lipgloss.NewStyle().Foreground(colorShell),
	inkDraft:     lipgloss.NewStyle().Foreground(colorWarning),
	inkRegular:   lipgloss.NewStyle().Foreground(colorRegular),
	inkExclusion: lipgloss.NewStyle().Foreground(colorExclusion),
	inkEntry:     lipgloss.NewStyle().Foreground(colorEntry),
	inkHover:     lipgloss.NewStyle().Foreground(colorHover).Bold(true),
	inkVanishing: lipgloss.NewStyle().Foreground(colorDim),
	inkGhost:     lipgloss.NewStyle().Foreground(colorHover).Faint(true),
	inkHandle:    lipgloss.NewStyle().Foreground(colorHover).Bold(true),
	inkDevice:    lipgloss.NewStyle().Foreground(colorHover).Bold(true),
	inkTarget:    lipgloss.NewStyle().Foreground(colorTarget).Bold(true),
}

var (
	styleBar = lipgloss.NewStyle().
			Background(colorBar).
			Foreground(colorRegular).
			Padding(0, 1)

	styleBarKey = lipgloss.NewStyle().
			Foreground(colorHover).
			Bold(true)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)
)
