// Package tui provides the interactive terminal interface for the
// OpenVPN client.
//
// This package implements a bubbletea-based interface including:
//
//   - Connect form with profile selection and credential entry
//   - Live session view with state, uptime, and traffic counters
//   - Challenge-response prompt for one-time codes
//   - Session history browser
//
// # Architecture
//
// The interface is a single bubbletea Model that moves through phases
// (form, session, history). Key components:
//
//   - Model: interface state and the Update/View loop
//   - styleSet: lipgloss styles shared by the views
//   - messages: typed tea.Msg values bridging background work
//
// # Thread Safety
//
// Session events arrive on the controller's event channel. A single
// waitForEvent command owns the channel read; every delivered event
// re-arms it, so bubbletea's message loop serializes all updates and
// the model needs no locking. Live session values (state, address,
// traffic) are read from the controller in View, which is safe because
// the controller guards them internally.
//
// # File Organization
//
//   - model.go: model construction, Update loop, and commands
//   - view.go: phase rendering
//   - styles.go: lipgloss styles and state colors
//   - messages.go: message types delivered to Update
package tui
