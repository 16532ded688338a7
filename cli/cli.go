// Package cli provides command-line access to the OpenVPN client.
// This allows connecting and managing profiles from the terminal
// without launching the interactive interface.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/bastiaanwilliams/OCL/common"
	"github.com/bastiaanwilliams/OCL/config"
	"github.com/bastiaanwilliams/OCL/history"
	"github.com/bastiaanwilliams/OCL/keyring"
	"github.com/bastiaanwilliams/OCL/notify"
	"github.com/bastiaanwilliams/OCL/vpn"
)

// CLI represents the command-line interface.
type CLI struct {
	profiles *vpn.ProfileManager
	store    *config.Store
	sessions *history.Store
	notifier *notify.Notifier
	stdin    *bufio.Reader
}

// New wires up the stores and managers shared by the command
// handlers. Missing session history degrades to a warning.
func New() (*CLI, error) {
	if err := keyring.EnsureKey(); err != nil {
		common.LogWarn("Encryption key unavailable: %v", err)
	}

	profiles, err := vpn.NewProfileManager()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	store, err := config.NewStore(keyring.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}

	sessions, err := history.Open()
	if err != nil {
		common.LogWarn("Session history unavailable: %v", err)
		sessions = nil
	}

	return &CLI{
		profiles: profiles,
		store:    store,
		sessions: sessions,
		notifier: notify.New(),
		stdin:    bufio.NewReader(os.Stdin),
	}, nil
}

// Close releases the CLI's resources.
func (c *CLI) Close() {
	if c.sessions != nil {
		_ = c.sessions.Close()
	}
}

// ListProfiles lists all saved profiles.
func (c *CLI) ListProfiles() error {
	profiles := c.profiles.List()

	if len(profiles) == 0 {
		fmt.Println("No VPN profiles saved.")
		fmt.Println("Import one with: ocl --import client.ovpn")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUSERNAME\tLAST USED")
	fmt.Fprintln(w, "--\t----\t--------\t---------")

	for _, profile := range profiles {
		username := profile.Username
		if username == "" {
			username = "-"
		}

		lastUsed := "never"
		if !profile.LastUsed.IsZero() {
			lastUsed = profile.LastUsed.Format("2006-01-02 15:04")
		}

		shortID := profile.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID, profile.Name, username, lastUsed)
	}

	w.Flush()
	return nil
}

// ImportProfile saves a new profile for the given configuration file.
// A blank name defaults to the file name.
func (c *CLI) ImportProfile(path, name, username string) error {
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	profile := &vpn.Profile{Name: name, ConfigPath: path, Username: username}
	if err := c.profiles.Add(profile); err != nil {
		return fmt.Errorf("failed to import profile: %w", err)
	}

	fmt.Printf("✓ Imported %q (%s)\n", profile.Name, profile.ID[:8])
	return nil
}

// ForgetProfile removes a profile by name or ID.
func (c *CLI) ForgetProfile(nameOrID string) error {
	profile := c.findProfile(nameOrID)
	if profile == nil {
		return fmt.Errorf("profile not found: %s", nameOrID)
	}

	if err := c.profiles.Remove(profile.ID); err != nil {
		return fmt.Errorf("failed to remove profile: %w", err)
	}

	fmt.Printf("✓ Removed %q\n", profile.Name)
	return nil
}

// Connect runs a session against a profile name, profile ID, or raw
// configuration file path. It blocks until the session ends or ctx is
// cancelled.
func (c *CLI) Connect(ctx context.Context, target, usernameFlag string) error {
	name, configPath, profile, err := c.resolveTarget(target)
	if err != nil {
		return err
	}

	state := c.store.Load()
	username, password, err := c.resolveCredentials(profile, state, usernameFlag)
	if err != nil {
		return err
	}

	if state.RememberCredentials {
		state.SavedUsername = username
		state.SavedPassword = password
		if err := c.store.Save(state); err != nil {
			common.LogWarn("Could not save credentials: %v", err)
		}
	}

	ctrl := vpn.NewController()
	events := ctrl.Events()

	fmt.Printf("Connecting to %s...\n", name)
	if err := ctrl.Start(vpn.SessionConfig{
		ConfigPath: configPath,
		Username:   username,
		Password:   password,
	}); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nDisconnecting...")
			_ = ctrl.Stop()
			c.printSummary(ctrl)
			c.recordSession(ctrl, name, configPath, username, nil)
			c.notifier.Disconnected(name)
			fmt.Println("✓ Disconnected")
			return nil

		case ev := <-events:
			switch ev.Type {
			case vpn.EventStateChanged:
				switch ev.State {
				case vpn.StateConnected:
					fmt.Printf("✓ Connected to %s\n", name)
					fmt.Println("Press Ctrl-C to disconnect.")
					c.notifier.Connected(name)
					if profile != nil {
						if err := c.profiles.MarkUsed(profile.ID); err != nil {
							common.LogDebug("Could not mark profile used: %v", err)
						}
					}
				case vpn.StateFailed:
					reason := ctrl.FailureReason()
					c.recordSession(ctrl, name, configPath, username, reason)
					c.notifier.ConnectionFailed(name, fmt.Sprint(reason))
					if errors.Is(reason, common.ErrAuthFailed) {
						return fmt.Errorf("authentication failed for %s", name)
					}
					return fmt.Errorf("connection failed: %v", reason)
				case vpn.StateDisconnected:
					c.printSummary(ctrl)
					c.recordSession(ctrl, name, configPath, username, nil)
					fmt.Println("✓ Disconnected")
					return nil
				}

			case vpn.EventChallengeRequested:
				c.answerChallenge(ctrl, ev.Message)

			case vpn.EventAddressAssigned:
				fmt.Printf("  IP address: %s\n", ev.Address)

			case vpn.EventWarning:
				fmt.Printf("  Warning: %s\n", ev.Message)
			}
		}
	}
}

// answerChallenge prompts for a challenge response until the session
// accepts one or moves on.
func (c *CLI) answerChallenge(ctrl *vpn.Controller, prompt string) {
	fmt.Printf("\nServer challenge: %s\n", prompt)
	for {
		code, err := c.promptLine("Response: ")
		if err != nil {
			fmt.Printf("Could not read response: %v\n", err)
			return
		}

		err = ctrl.SupplyChallengeResponse(code)
		if err == nil {
			return
		}
		if errors.Is(err, common.ErrEmptyChallenge) {
			fmt.Println("A response is required.")
			continue
		}
		fmt.Printf("Response not accepted: %v\n", err)
		return
	}
}

// resolveTarget turns a profile name, profile ID, or configuration
// file path into a session target.
func (c *CLI) resolveTarget(target string) (name, configPath string, profile *vpn.Profile, err error) {
	if profile = c.findProfile(target); profile != nil {
		return profile.Name, profile.ConfigPath, profile, nil
	}
	if common.FileExists(target) {
		base := filepath.Base(target)
		return strings.TrimSuffix(base, filepath.Ext(base)), target, nil, nil
	}
	return "", "", nil, fmt.Errorf("profile not found: %s", target)
}

// resolveCredentials assembles the username and password from flags,
// the profile, remembered credentials, and interactive prompts.
func (c *CLI) resolveCredentials(profile *vpn.Profile, state *config.State, usernameFlag string) (string, string, error) {
	username := usernameFlag
	if username == "" && profile != nil {
		username = profile.Username
	}
	if username == "" && state.RememberCredentials {
		username = state.SavedUsername
	}
	if username == "" {
		var err error
		username, err = c.promptLine("Username: ")
		if err != nil {
			return "", "", fmt.Errorf("reading username: %w", err)
		}
	}
	if username == "" {
		return "", "", common.ErrMissingUsername
	}

	password := ""
	if state.RememberCredentials && state.SavedUsername == username {
		password = state.SavedPassword
	}
	if password == "" {
		var err error
		password, err = c.promptPassword("Password: ")
		if err != nil {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
	}
	if password == "" {
		return "", "", common.ErrMissingPassword
	}

	return username, password, nil
}

// Disconnect interrupts every running OpenVPN process. Sessions
// started by other invocations of this application are covered too;
// they observe the interrupt as a process termination.
func (c *CLI) Disconnect() error {
	running, err := vpn.FindRunning()
	if err != nil {
		return err
	}
	if len(running) == 0 {
		fmt.Println("No active VPN connections.")
		return nil
	}

	for _, r := range running {
		fmt.Printf("Interrupting OpenVPN (pid %d)...\n", r.PID)
		if err := vpn.Interrupt(r.PID); err != nil {
			fmt.Printf("  Warning: %v\n", err)
		} else {
			fmt.Println("  ✓ Interrupt sent")
		}
	}
	return nil
}

// Status reports the OpenVPN processes running on the system and the
// tunnel address when one is up.
func (c *CLI) Status() error {
	running, err := vpn.FindRunning()
	if err != nil {
		return err
	}
	if len(running) == 0 {
		fmt.Println("No active VPN connections.")
		return nil
	}

	addr := vpn.TunnelAddress()
	if addr == "" {
		addr = "-"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tSTATUS\tUPTIME\tIP ADDRESS")
	fmt.Fprintln(w, "---\t------\t------\t----------")
	for _, r := range running {
		uptime := "-"
		if r.Uptime() > 0 {
			uptime = formatDuration(r.Uptime())
		}
		fmt.Fprintf(w, "%d\trunning\t%s\t%s\n", r.PID, uptime, addr)
	}
	w.Flush()
	return nil
}

// History lists the most recent sessions.
func (c *CLI) History(limit int) error {
	if c.sessions == nil {
		return fmt.Errorf("session history is unavailable")
	}

	records, err := c.sessions.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No sessions recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDURATION\tPROFILE\tOUTCOME\tSENT\tRECEIVED\tADDRESS")
	fmt.Fprintln(w, "-------\t--------\t-------\t-------\t----\t--------\t-------")

	for _, rec := range records {
		address := rec.Address
		if address == "" {
			address = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.StartedAt.Format("2006-01-02 15:04"),
			formatDuration(rec.Duration()),
			rec.Profile,
			rec.Outcome,
			formatBytes(rec.SentBytes),
			formatBytes(rec.RecvBytes),
			address,
		)
	}

	w.Flush()
	return nil
}

// recordSession stores a finished session in the history database.
func (c *CLI) recordSession(ctrl *vpn.Controller, name, configPath, username string, reason error) {
	if c.sessions == nil {
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
	if err := c.sessions.Add(rec); err != nil {
		common.LogWarn("Could not record session history: %v", err)
	}
}

// printSummary prints the session's traffic totals.
func (c *CLI) printSummary(ctrl *vpn.Controller) {
	sample := ctrl.Traffic()
	if sample.SentBytes == 0 && sample.RecvBytes == 0 {
		return
	}
	fmt.Printf("  Sent: %s, Received: %s\n",
		formatBytes(sample.SentBytes), formatBytes(sample.RecvBytes))
}

// findProfile finds a profile by name or ID (case-insensitive).
func (c *CLI) findProfile(nameOrID string) *vpn.Profile {
	nameOrID = strings.ToLower(strings.TrimSpace(nameOrID))
	if nameOrID == "" {
		return nil
	}

	for _, profile := range c.profiles.List() {
		if strings.ToLower(profile.Name) == nameOrID ||
			strings.ToLower(profile.ID) == nameOrID ||
			strings.HasPrefix(strings.ToLower(profile.ID), nameOrID) {
			return profile
		}
	}

	return nil
}

// promptLine reads one visible line from stdin.
func (c *CLI) promptLine(label string) (string, error) {
	fmt.Print(label)
	line, err := c.stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echoing it. Without a
// terminal it falls back to a visible read.
func (c *CLI) promptPassword(label string) (string, error) {
	fmt.Print(label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := c.stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// formatDuration formats a duration in a human-readable format.
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

// formatBytes renders a byte count in megabytes.
func formatBytes(n uint64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

// PrintHelp prints CLI usage help.
func PrintHelp() {
	fmt.Println(`OpenVPN Client - Command Line Interface

Usage:
  ocl [OPTIONS]

Options:
  --version           Show version and exit
  --verbose           Enable verbose logging
  --list              List saved VPN profiles
  --connect TARGET    Connect to a profile (name or ID) or .ovpn file
  --user NAME         Username for --connect or --import
  --disconnect        Interrupt running OpenVPN sessions
  --status            Show current connection status
  --import FILE       Import an .ovpn file as a new profile
  --name NAME         Profile name for --import
  --forget TARGET     Remove a saved profile
  --history N         Show the N most recent sessions
  --help              Show this help message

Examples:
  ocl --list
  ocl --import ~/office.ovpn --name "Work VPN"
  ocl --connect "Work VPN"
  ocl --connect ~/client.ovpn --user alice
  ocl --history 20

Notes:
  - --connect keeps running until Ctrl-C disconnects the session
  - Run without options to launch the interactive interface`)
}
