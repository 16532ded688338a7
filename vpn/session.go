// Package vpn provides OpenVPN session management functionality.
// This file contains the session controller coordinating the process,
// the credential handshake, and the monitors.
package vpn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/bastiaanwilliams/OCL/common"
)

// SessionConfig describes one connection attempt.
type SessionConfig struct {
	// ConfigPath is the OpenVPN configuration file to connect with.
	ConfigPath string
	// Username and Password feed the credential handshake.
	Username string
	Password string
	// ExecutablePath overrides OpenVPN binary resolution when set.
	ExecutablePath string
}

const (
	// tunInterfaceName is the tunnel device whose address is reported.
	tunInterfaceName = "tun0"

	addressRetries    = 10
	addressRetryDelay = 500 * time.Millisecond
)

// Controller owns at most one OpenVPN session at a time and publishes
// its lifecycle on a bounded event stream. All methods are safe for
// concurrent use.
type Controller struct {
	mu          sync.RWMutex
	state       SessionState
	reason      error
	proc        *Process
	cancel      context.CancelFunc
	responses   chan string
	traffic     *TrafficMonitor
	queue       *eventQueue
	address     string
	startedAt   time.Time
	connectedAt time.Time
	lastSample  TrafficSample
	stopping    bool
	gen         int
}

// NewController creates an idle session controller.
func NewController() *Controller {
	return &Controller{
		state: StateIdle,
		queue: newEventQueue(),
	}
}

// Events returns the session event stream. A single reader should
// consume it; when nobody does, the oldest events are dropped.
func (c *Controller) Events() <-chan Event {
	return c.queue.events()
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// FailureReason returns the error behind the Failed state, nil
// otherwise.
func (c *Controller) FailureReason() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reason
}

// Address returns the tunnel address once assigned, "" before that.
func (c *Controller) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// StartedAt returns when the current or last session attempt began.
func (c *Controller) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// Uptime returns how long the session has been connected, zero when it
// is not.
func (c *Controller) Uptime() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateConnected || c.connectedAt.IsZero() {
		return 0
	}
	return time.Since(c.connectedAt)
}

// Traffic returns the latest traffic sample of the session.
func (c *Controller) Traffic() TrafficSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSample
}

// validateSessionConfig rejects incomplete session configs.
func validateSessionConfig(cfg SessionConfig) error {
	if strings.TrimSpace(cfg.Username) == "" {
		return common.ErrMissingUsername
	}
	if cfg.Password == "" {
		return common.ErrMissingPassword
	}
	if strings.TrimSpace(cfg.ConfigPath) == "" {
		return common.ErrMissingConfigPath
	}
	if !common.FileExists(cfg.ConfigPath) {
		return fmt.Errorf("%w: %s", common.ErrInvalidConfig, cfg.ConfigPath)
	}
	return nil
}

// Start validates cfg, spawns OpenVPN, and runs the credential
// handshake in the background. It returns immediately. Starting while
// a session is underway fails with common.ErrSessionActive; validation
// and spawn failures are returned to the caller.
func (c *Controller) Start(cfg SessionConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.CanStart() {
		return common.ErrSessionActive
	}
	if err := validateSessionConfig(cfg); err != nil {
		return err
	}

	exe := cfg.ExecutablePath
	if exe == "" {
		var err error
		exe, err = ResolveExecutable()
		if err != nil {
			return err
		}
	}

	c.gen++
	gen := c.gen
	c.stopping = false
	c.address = ""
	c.lastSample = TrafficSample{}
	c.connectedAt = time.Time{}
	c.startedAt = time.Now()
	c.setStateLocked(StateStarting, nil)

	proc, err := StartProcess(exe, cfg.ConfigPath)
	if err != nil {
		c.setStateLocked(StateFailed, err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.proc = proc
	c.cancel = cancel
	c.responses = make(chan string, 1)

	go c.runSession(ctx, gen, proc, cfg)
	return nil
}

// runSession drives one session from handshake to teardown.
func (c *Controller) runSession(ctx context.Context, gen int, proc *Process, cfg SessionConfig) {
	hs := &handshake{
		con:       proc,
		username:  cfg.Username,
		password:  cfg.Password,
		responses: c.responses,
		onChallenge: func(prompt string) {
			c.challengeRequested(gen, prompt)
		},
	}

	err := hs.run(ctx)
	if err == nil {
		c.sessionEstablished(ctx, gen, proc)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		// A stop interrupted the handshake; Stop owns the teardown.
		return
	}
	c.sessionFailed(gen, proc, err)
}

// challengeRequested pauses the session and surfaces the challenge.
func (c *Controller) challengeRequested(gen int, prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.stopping {
		return
	}
	c.setStateLocked(StateAwaitingChallenge, nil)
	c.queue.publish(Event{
		Type:    EventChallengeRequested,
		State:   StateAwaitingChallenge,
		Message: prompt,
		Time:    time.Now(),
	})
}

// SupplyChallengeResponse forwards a challenge response to the paused
// handshake. It fails with common.ErrNoChallengePending outside the
// AwaitingChallenge state and common.ErrEmptyChallenge for blank input.
func (c *Controller) SupplyChallengeResponse(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAwaitingChallenge {
		return common.ErrNoChallengePending
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return common.ErrEmptyChallenge
	}

	select {
	case c.responses <- code:
	default:
		return common.ErrNoChallengePending
	}
	c.setStateLocked(StateStarting, nil)
	return nil
}

// sessionEstablished transitions to Connected and starts monitoring.
func (c *Controller) sessionEstablished(ctx context.Context, gen int, proc *Process) {
	c.mu.Lock()
	if c.gen != gen || c.stopping {
		c.mu.Unlock()
		return
	}

	c.connectedAt = time.Now()
	c.setStateLocked(StateConnected, nil)

	traffic := NewTrafficMonitor(nil,
		func(s TrafficSample) { c.trafficSampled(gen, s) },
		func(err error) { c.trafficFailed(gen, err) },
	)
	c.traffic = traffic
	traffic.Start()
	c.mu.Unlock()

	go c.drainOutput(proc)
	go c.watchProcess(ctx, gen, proc)
	go c.captureAddress(gen)
}

// trafficSampled records and publishes a traffic sample.
func (c *Controller) trafficSampled(gen int, s TrafficSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.state != StateConnected {
		return
	}
	c.lastSample = s
	c.queue.publish(Event{
		Type:   EventTrafficUpdated,
		State:  c.state,
		Sample: s,
		Time:   s.Timestamp,
	})
}

// trafficFailed downgrades a traffic sampling failure to a warning.
func (c *Controller) trafficFailed(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	c.queue.publish(Event{
		Type:    EventWarning,
		State:   c.state,
		Message: "traffic statistics unavailable: " + err.Error(),
		Time:    time.Now(),
	})
}

// drainOutput keeps consuming process output after the handshake so
// the process never blocks on a full line queue.
func (c *Controller) drainOutput(proc *Process) {
	for line := range proc.Lines() {
		if line != "" {
			common.LogDebug("openvpn: %s", line)
		}
	}
}

// watchProcess polls liveness and reports an unexpected death.
func (c *Controller) watchProcess(ctx context.Context, gen int, proc *Process) {
	ticker := time.NewTicker(common.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if proc.IsAlive() {
				continue
			}
			c.processDied(gen, proc)
			return
		}
	}
}

// processDied handles the unexpected exit of a connected session.
func (c *Controller) processDied(gen int, proc *Process) {
	c.mu.Lock()
	if c.gen != gen || c.stopping {
		c.mu.Unlock()
		return
	}

	if err := proc.ExitErr(); err != nil {
		common.LogError("OpenVPN terminated unexpectedly: %v", err)
	} else {
		common.LogError("OpenVPN terminated unexpectedly")
	}

	traffic := c.traffic
	cancel := c.cancel
	c.traffic = nil
	c.proc = nil
	c.cancel = nil
	c.setStateLocked(StateFailed, common.ErrProcessTerminated)
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if traffic != nil {
		traffic.Stop()
	}
}

// sessionFailed terminates the process and reports a handshake
// failure.
func (c *Controller) sessionFailed(gen int, proc *Process, reason error) {
	common.LogError("Session failed: %v", reason)
	_ = proc.Terminate(common.StopGracePeriod)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.stopping {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.proc = nil
	c.setStateLocked(StateFailed, reason)
}

// Stop ends the session: SIGINT, a grace period, then SIGKILL. It
// blocks until the process is gone. Stopping an inactive or already
// stopping session is a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateDisconnecting || !c.state.Active() {
		c.mu.Unlock()
		return nil
	}

	c.stopping = true
	c.setStateLocked(StateDisconnecting, nil)
	proc := c.proc
	cancel := c.cancel
	traffic := c.traffic
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if traffic != nil {
		traffic.Stop()
	}
	if proc != nil {
		if err := proc.Terminate(common.StopGracePeriod); err != nil {
			common.LogWarn("Process termination: %v", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.proc = nil
	c.traffic = nil
	c.cancel = nil
	c.responses = nil
	// stopping stays set until the next Start so straggling session
	// goroutines cannot flip a clean stop into a failure.
	c.setStateLocked(StateDisconnected, nil)
	return nil
}

// captureAddress polls for the tunnel address, which appears shortly
// after the tunnel comes up.
func (c *Controller) captureAddress(gen int) {
	for i := 0; i < addressRetries; i++ {
		addr := tunnelAddress(tunInterfaceName)
		if addr != "" {
			c.mu.Lock()
			if c.gen == gen && c.state == StateConnected {
				c.address = addr
				c.queue.publish(Event{
					Type:    EventAddressAssigned,
					State:   c.state,
					Address: addr,
					Time:    time.Now(),
				})
				common.LogInfo("Tunnel address: %s", addr)
			}
			c.mu.Unlock()
			return
		}
		time.Sleep(addressRetryDelay)
	}
	common.LogDebug("No %s address found", tunInterfaceName)
}

// tunnelAddress returns the first IPv4 address of the named interface,
// or "" when the interface or address is absent.
func tunnelAddress(name string) string {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return ""
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// setStateLocked transitions the state and publishes the change.
// Callers hold c.mu. Equal-state calls publish nothing.
func (c *Controller) setStateLocked(s SessionState, reason error) {
	if c.state == s {
		return
	}
	common.LogInfo("Session state: %s -> %s", c.state, s)
	c.state = s
	c.reason = nil
	if s == StateFailed {
		c.reason = reason
	}
	c.queue.publish(Event{
		Type:   EventStateChanged,
		State:  s,
		Reason: c.reason,
		Time:   time.Now(),
	})
}
