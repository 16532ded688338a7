package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bastiaanwilliams/OCL/vpn"
)

// styleSet holds the lipgloss styles for the interface.
type styleSet struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	help    lipgloss.Style
	errText lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	badge   lipgloss.Style
}

func newStyles() styleSet {
	muted := lipgloss.Color("#6b7280")
	text := lipgloss.Color("#e5e7eb")

	return styleSet{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6")),
		label:   lipgloss.NewStyle().Foreground(muted),
		value:   lipgloss.NewStyle().Foreground(text),
		help:    lipgloss.NewStyle().Foreground(muted),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
		badge:   lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#ffffff")),
	}
}

// stateColor maps a session state to its badge color.
func stateColor(s vpn.SessionState) lipgloss.Color {
	switch s {
	case vpn.StateConnected:
		return lipgloss.Color("#10b981")
	case vpn.StateFailed:
		return lipgloss.Color("#ef4444")
	case vpn.StateDisconnecting:
		return lipgloss.Color("#f59e0b")
	case vpn.StateStarting, vpn.StateAwaitingChallenge:
		return lipgloss.Color("#3b82f6")
	default:
		return lipgloss.Color("#6b7280")
	}
}
