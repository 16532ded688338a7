package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bastiaanwilliams/OCL/common"
	"github.com/bastiaanwilliams/OCL/config"
	"github.com/bastiaanwilliams/OCL/history"
	"github.com/bastiaanwilliams/OCL/keyring"
	"github.com/bastiaanwilliams/OCL/notify"
	"github.com/bastiaanwilliams/OCL/vpn"
)

type phase int

const (
	phaseForm phase = iota
	phaseSession
	phaseHistory
)

const (
	inputConfig = iota
	inputUser
	inputPass
)

// Model is the bubbletea model for the whole interface.
type Model struct {
	ctrl     *vpn.Controller
	events   <-chan vpn.Event
	profiles *vpn.ProfileManager
	store    *config.Store
	state    *config.State
	sessions *history.Store
	notifier *notify.Notifier
	version  string
	styles   styleSet

	phase      phase
	inputs     []textinput.Model
	focus      int
	profileIdx int // -1 means manual entry
	remember   bool
	spin       spinner.Model

	challenge    textinput.Model
	challengeOn  bool
	challengeMsg string

	sessionName string
	configPath  string
	username    string

	records    []history.Record
	historyErr string

	status   string
	errText  string
	width    int
	ticking  bool
	quitting bool
}

// NewModel wires the interface to the session controller and stores.
func NewModel(version string) (Model, error) {
	if err := keyring.EnsureKey(); err != nil {
		common.LogWarn("Encryption key unavailable: %v", err)
	}

	profiles, err := vpn.NewProfileManager()
	if err != nil {
		return Model{}, fmt.Errorf("failed to load profiles: %w", err)
	}

	store, err := config.NewStore(keyring.Default())
	if err != nil {
		return Model{}, fmt.Errorf("failed to open settings: %w", err)
	}

	sessions, err := history.Open()
	if err != nil {
		common.LogWarn("Session history unavailable: %v", err)
		sessions = nil
	}

	state := store.Load()
	ctrl := vpn.NewController()

	m := Model{
		ctrl:       ctrl,
		events:     ctrl.Events(),
		profiles:   profiles,
		store:      store,
		state:      state,
		sessions:   sessions,
		notifier:   notify.New(),
		version:    version,
		styles:     newStyles(),
		phase:      phaseForm,
		inputs:     newInputs(state),
		profileIdx: -1,
		remember:   state.RememberCredentials,
		spin:       newSpinner(),
		challenge:  newChallengeInput(),
	}

	// Preselect the most recently used profile.
	if list := profiles.List(); len(list) > 0 {
		m.profileIdx = 0
		for i, p := range list {
			if p.LastUsed.After(list[m.profileIdx].LastUsed) {
				m.profileIdx = i
			}
		}
		m = m.applyProfile()
	}

	return m, nil
}

// Close releases the model's resources.
func (m Model) Close() {
	if m.sessions != nil {
		_ = m.sessions.Close()
	}
}

// Run starts the interactive interface and blocks until it exits.
func Run(version string) error {
	m, err := NewModel(version)
	if err != nil {
		return err
	}
	defer m.Close()
	defer func() {
		if m.ctrl.State().Active() {
			_ = m.ctrl.Stop()
		}
	}()

	// The interface owns the terminal; log lines go to the file only.
	common.GetLogger().SetConsoleOutput(false)
	defer common.GetLogger().SetConsoleOutput(true)

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("interface error: %w", err)
	}
	return nil
}

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#3b82f6"))
	return s
}

func newInputs(state *config.State) []textinput.Model {
	cfg := textinput.New()
	cfg.Placeholder = "/path/to/client.ovpn"
	cfg.CharLimit = 256
	cfg.Width = 44
	cfg.Focus()

	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 128
	user.Width = 32

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.CharLimit = 128
	pass.Width = 32
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	if state.RememberCredentials {
		user.SetValue(state.SavedUsername)
		pass.SetValue(state.SavedPassword)
	}

	return []textinput.Model{cfg, user, pass}
}

func newChallengeInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "response"
	ti.CharLimit = 128
	ti.Width = 32
	return ti
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textinput.Blink, waitForEvent(m.events))
}

// waitForEvent delivers the next session event. Exactly one of these
// is outstanding at a time; each delivery re-arms it.
func waitForEvent(events <-chan vpn.Event) tea.Cmd {
	return func() tea.Msg {
		return sessionEventMsg{event: <-events}
	}
}

func tickEverySecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadHistory(sessions *history.Store) tea.Cmd {
	return func() tea.Msg {
		if sessions == nil {
			return historyLoadedMsg{err: fmt.Errorf("session history is unavailable")}
		}
		records, err := sessions.Recent(20)
		return historyLoadedMsg{records: records, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case sessionEventMsg:
		return m.handleSessionEvent(msg.event)

	case stoppedMsg:
		if msg.quit {
			m.quitting = true
			return m, tea.Quit
		}
		m.phase = phaseForm
		m.challengeOn = false
		m.errText = ""
		m.status = "Disconnected"
		return m, nil

	case historyLoadedMsg:
		m.records = msg.records
		m.historyErr = ""
		if msg.err != nil {
			m.historyErr = msg.err.Error()
		}
		return m, nil

	case tickMsg:
		if m.phase == phaseSession {
			return m, tickEverySecond()
		}
		m.ticking = false
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	}

	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseSession:
		return m.updateSessionKeys(msg)
	case phaseHistory:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "esc", "q", "ctrl+h":
			m.phase = phaseForm
			return m, nil
		}
		return m, nil
	default:
		return m.updateFormKeys(msg)
	}
}

func (m Model) updateFormKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab", "down":
		return m.setFocus((m.focus + 1) % len(m.inputs)), nil

	case "shift+tab", "up":
		return m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs)), nil

	case "ctrl+n":
		return m.cycleProfile(1), nil

	case "ctrl+p":
		return m.cycleProfile(-1), nil

	case "ctrl+r":
		m.remember = !m.remember
		return m, nil

	case "ctrl+h":
		m.phase = phaseHistory
		m.records = nil
		m.historyErr = ""
		return m, loadHistory(m.sessions)

	case "enter":
		if m.focus < len(m.inputs)-1 {
			return m.setFocus(m.focus + 1), nil
		}
		return m.submit()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) updateSessionKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.challengeOn {
		switch msg.String() {
		case "enter":
			code := strings.TrimSpace(m.challenge.Value())
			if err := m.ctrl.SupplyChallengeResponse(code); err != nil {
				if errors.Is(err, common.ErrEmptyChallenge) {
					m.status = "A response is required"
				} else {
					m.status = fmt.Sprintf("Response not accepted: %v", err)
				}
				return m, nil
			}
			m.challengeOn = false
			m.challenge.Reset()
			m.status = ""
			return m, nil
		case "ctrl+c", "esc":
			return m.stopSession(false)
		}

		var cmd tea.Cmd
		m.challenge, cmd = m.challenge.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "d", "ctrl+c":
		return m.stopSession(false)
	case "q":
		return m.stopSession(true)
	}
	return m, nil
}

func (m Model) setFocus(idx int) Model {
	m.focus = idx
	for i := range m.inputs {
		if i == idx {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return m
}

// cycleProfile steps through saved profiles; below index zero is
// manual entry.
func (m Model) cycleProfile(delta int) Model {
	list := m.profiles.List()
	if len(list) == 0 {
		return m
	}

	m.profileIdx += delta
	switch {
	case m.profileIdx >= len(list):
		m.profileIdx = -1
	case m.profileIdx < -1:
		m.profileIdx = len(list) - 1
	}
	if m.profileIdx >= 0 {
		m = m.applyProfile()
	}
	return m
}

// applyProfile copies the selected profile into the form inputs.
func (m Model) applyProfile() Model {
	list := m.profiles.List()
	if m.profileIdx < 0 || m.profileIdx >= len(list) {
		return m
	}
	profile := list[m.profileIdx]
	m.inputs[inputConfig].SetValue(profile.ConfigPath)
	if profile.Username != "" {
		m.inputs[inputUser].SetValue(profile.Username)
	}
	return m
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	configPath := strings.TrimSpace(m.inputs[inputConfig].Value())
	username := strings.TrimSpace(m.inputs[inputUser].Value())
	password := m.inputs[inputPass].Value()

	m.state.RememberCredentials = m.remember
	m.state.SavedUsername = ""
	m.state.SavedPassword = ""
	if m.remember {
		m.state.SavedUsername = username
		m.state.SavedPassword = password
	}
	if err := m.store.Save(m.state); err != nil {
		common.LogWarn("Could not save settings: %v", err)
	}

	if err := m.ctrl.Start(vpn.SessionConfig{
		ConfigPath: configPath,
		Username:   username,
		Password:   password,
	}); err != nil {
		m.errText = startErrorText(err)
		return m, nil
	}

	name := strings.TrimSuffix(filepath.Base(configPath), filepath.Ext(configPath))
	if list := m.profiles.List(); m.profileIdx >= 0 && m.profileIdx < len(list) {
		name = list[m.profileIdx].Name
	}

	m.sessionName = name
	m.configPath = configPath
	m.username = username
	m.errText = ""
	m.status = ""
	m.phase = phaseSession

	if !m.ticking {
		m.ticking = true
		return m, tickEverySecond()
	}
	return m, nil
}

// startErrorText maps a start failure to a short form message.
func startErrorText(err error) string {
	switch {
	case errors.Is(err, common.ErrMissingUsername):
		return "Username is required"
	case errors.Is(err, common.ErrMissingPassword):
		return "Password is required"
	case errors.Is(err, common.ErrMissingConfigPath):
		return "Choose an OpenVPN configuration file"
	case errors.Is(err, common.ErrInvalidConfig):
		return "Configuration file not found"
	case errors.Is(err, common.ErrExecutableNotFound):
		return "OpenVPN executable not found; install OpenVPN"
	case errors.Is(err, common.ErrSessionActive):
		return "A session is already running"
	default:
		return fmt.Sprintf("Could not start: %v", err)
	}
}

func (m Model) handleSessionEvent(ev vpn.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForEvent(m.events)}

	switch ev.Type {
	case vpn.EventStateChanged:
		switch ev.State {
		case vpn.StateConnected:
			m.status = ""
			m.notifier.Connected(m.sessionName)
			if list := m.profiles.List(); m.profileIdx >= 0 && m.profileIdx < len(list) {
				if err := m.profiles.MarkUsed(list[m.profileIdx].ID); err != nil {
					common.LogDebug("Could not mark profile used: %v", err)
				}
			}
		case vpn.StateFailed:
			reason := m.ctrl.FailureReason()
			cmds = append(cmds, m.recordSessionCmd(reason))
			m.notifier.ConnectionFailed(m.sessionName, fmt.Sprint(reason))
			m.phase = phaseForm
			m.challengeOn = false
			if errors.Is(reason, common.ErrAuthFailed) {
				m.errText = "Authentication failed; check your credentials"
			} else {
				m.errText = fmt.Sprintf("Connection failed: %v", reason)
			}
		}

	case vpn.EventChallengeRequested:
		m.challengeOn = true
		m.challengeMsg = ev.Message
		m.challenge.Reset()
		m.challenge.Focus()
		cmds = append(cmds, textinput.Blink)

	case vpn.EventWarning:
		m.status = ev.Message
	}

	// Address and traffic events only trigger a re-render; the view
	// reads live values from the controller.
	return m, tea.Batch(cmds...)
}

func (m Model) stopSession(quit bool) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	sessions := m.sessions
	notifier := m.notifier
	name, configPath, username := m.sessionName, m.configPath, m.username

	m.status = "Disconnecting..."
	return m, func() tea.Msg {
		_ = ctrl.Stop()
		recordSession(sessions, ctrl, name, configPath, username, nil)
		notifier.Disconnected(name)
		return stoppedMsg{quit: quit}
	}
}

func (m Model) recordSessionCmd(reason error) tea.Cmd {
	ctrl := m.ctrl
	sessions := m.sessions
	name, configPath, username := m.sessionName, m.configPath, m.username
	return func() tea.Msg {
		recordSession(sessions, ctrl, name, configPath, username, reason)
		return nil
	}
}

// recordSession stores a finished session in the history database.
func recordSession(sessions *history.Store, ctrl *vpn.Controller, name, configPath, username string, reason error) {
	if sessions == nil {
		return
	}

	sample := ctrl.Traffic()
	rec := history.Record{
		Profile:    name,
		ConfigPath: configPath,
		Username:   username,
		StartedAt:  ctrl.StartedAt(),
		EndedAt:    time.Now(),
		Outcome:    history.OutcomeFor(reason),
		Address:    ctrl.Address(),
		SentBytes:  sample.SentBytes,
		RecvBytes:  sample.RecvBytes,
	}
	if err := sessions.Add(rec); err != nil {
		common.LogWarn("Could not record session history: %v", err)
	}
}
