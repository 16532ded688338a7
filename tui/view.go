package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bastiaanwilliams/OCL/common"
	"github.com/bastiaanwilliams/OCL/vpn"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.phase {
	case phaseSession:
		return m.viewSession()
	case phaseHistory:
		return m.viewHistory()
	default:
		return m.viewForm()
	}
}

func (m Model) viewForm() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render(common.AppName))
	b.WriteString(m.styles.help.Render(" v" + m.version))
	b.WriteString("\n\n")

	b.WriteString(m.label("Profile:"))
	b.WriteString(m.profileLabel())
	b.WriteString("\n")

	rows := []struct {
		label string
		idx   int
	}{
		{"Config:", inputConfig},
		{"Username:", inputUser},
		{"Password:", inputPass},
	}
	for _, row := range rows {
		b.WriteString(m.label(row.label))
		b.WriteString(m.inputs[row.idx].View())
		b.WriteString("\n")
	}

	check := "[ ]"
	if m.remember {
		check = "[x]"
	}
	b.WriteString(m.label("Remember:"))
	b.WriteString(m.styles.value.Render(check))
	b.WriteString(m.styles.help.Render("  credentials stay encrypted on this machine"))
	b.WriteString("\n")

	if m.errText != "" {
		b.WriteString("\n" + m.styles.errText.Render(m.errText) + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + m.styles.value.Render(m.status) + "\n")
	}

	b.WriteString("\n" + m.styles.help.Render(
		"enter connect • tab fields • ctrl+p/ctrl+n profile • ctrl+r remember • ctrl+h history • esc quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewSession() string {
	state := m.ctrl.State()
	sample := m.ctrl.Traffic()

	var b strings.Builder
	b.WriteString(m.styles.title.Render(common.AppName))
	b.WriteString("\n\n")

	badge := m.styles.badge.Background(stateColor(state)).Render(strings.ToUpper(state.String()))
	b.WriteString(badge)
	if state == vpn.StateStarting || state == vpn.StateAwaitingChallenge {
		b.WriteString("  " + m.spin.View() + m.styles.value.Render("Establishing connection..."))
	}
	b.WriteString("\n\n")

	b.WriteString(m.label("Profile:"))
	b.WriteString(m.styles.value.Render(m.sessionName))
	b.WriteString("\n")

	if state == vpn.StateConnected {
		b.WriteString(m.label("Uptime:"))
		b.WriteString(m.styles.success.Render(formatDuration(m.ctrl.Uptime())))
		b.WriteString("\n")
		if addr := m.ctrl.Address(); addr != "" {
			b.WriteString(m.label("IP:"))
			b.WriteString(m.styles.value.Render(addr))
			b.WriteString("\n")
		}
		b.WriteString(m.label("Sent:"))
		b.WriteString(m.styles.value.Render(formatBytes(sample.SentBytes)))
		b.WriteString("\n")
		b.WriteString(m.label("Received:"))
		b.WriteString(m.styles.value.Render(formatBytes(sample.RecvBytes)))
		b.WriteString("\n")
	}

	if m.challengeOn {
		b.WriteString("\n")
		b.WriteString(m.styles.warning.Render("Server challenge: " + m.challengeMsg))
		b.WriteString("\n")
		b.WriteString(m.label("Response:"))
		b.WriteString(m.challenge.View())
		b.WriteString("\n")
		b.WriteString(m.styles.help.Render("enter submit • esc cancel connection"))
		b.WriteString("\n")
		return b.String()
	}

	if m.status != "" {
		b.WriteString("\n" + m.styles.value.Render(m.status) + "\n")
	}

	b.WriteString("\n" + m.styles.help.Render("d disconnect • q disconnect and quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) viewHistory() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Recent Sessions"))
	b.WriteString("\n\n")

	switch {
	case m.historyErr != "":
		b.WriteString(m.styles.errText.Render(m.historyErr) + "\n")
	case len(m.records) == 0:
		b.WriteString(m.styles.help.Render("no sessions recorded yet") + "\n")
	default:
		header := fmt.Sprintf("%-17s %-10s %-16s %-13s %11s %11s",
			"STARTED", "DURATION", "PROFILE", "OUTCOME", "SENT", "RECEIVED")
		b.WriteString(m.styles.label.Render(header) + "\n")
		for _, rec := range m.records {
			line := fmt.Sprintf("%-17s %-10s %-16s %-13s %11s %11s",
				rec.StartedAt.Format("2006-01-02 15:04"),
				formatDuration(rec.Duration()),
				truncate(rec.Profile, 16),
				string(rec.Outcome),
				formatBytes(rec.SentBytes),
				formatBytes(rec.RecvBytes),
			)
			b.WriteString(m.styles.value.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + m.styles.help.Render("esc back"))
	b.WriteString("\n")
	return b.String()
}

// label renders a fixed-width form label.
func (m Model) label(text string) string {
	return m.styles.label.Render(fmt.Sprintf("  %-10s", text))
}

func (m Model) profileLabel() string {
	list := m.profiles.List()
	if len(list) == 0 {
		return m.styles.help.Render("none saved")
	}
	if m.profileIdx < 0 || m.profileIdx >= len(list) {
		return m.styles.value.Render("manual entry")
	}
	return m.styles.value.Render(fmt.Sprintf("%s (%d/%d)",
		list[m.profileIdx].Name, m.profileIdx+1, len(list)))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

func formatBytes(n uint64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}
