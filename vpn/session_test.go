package vpn

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bastiaanwilliams/OCL/common"
)

// scriptPrompts is the credential exchange every fake server performs.
const scriptPrompts = "printf 'Enter Auth Username:'\n" +
	"read u\n" +
	"printf 'Enter Auth Password:'\n" +
	"read p\n"

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.ovpn")
	content := "client\nremote vpn.example.com 1194\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func sessionConfig(t *testing.T, scriptBody string) SessionConfig {
	t.Helper()
	return SessionConfig{
		ConfigPath:     writeConfig(t),
		Username:       "alice",
		Password:       "secret",
		ExecutablePath: writeScript(t, scriptBody),
	}
}

func awaitState(t *testing.T, events <-chan Event, want SessionState) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == EventStateChanged && ev.State == want {
				return
			}
		case <-deadline:
			t.Fatalf("state %v never reached", want)
		}
	}
}

func awaitEvent(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("event %v never arrived", want)
		}
	}
}

func TestValidateSessionConfig(t *testing.T) {
	valid := writeConfig(t)

	tests := []struct {
		name     string
		cfg      SessionConfig
		expected error
	}{
		{
			name:     "missing username",
			cfg:      SessionConfig{Username: "  ", Password: "pw", ConfigPath: valid},
			expected: common.ErrMissingUsername,
		},
		{
			name:     "missing password",
			cfg:      SessionConfig{Username: "alice", ConfigPath: valid},
			expected: common.ErrMissingPassword,
		},
		{
			name:     "missing config path",
			cfg:      SessionConfig{Username: "alice", Password: "pw"},
			expected: common.ErrMissingConfigPath,
		},
		{
			name:     "config file absent",
			cfg:      SessionConfig{Username: "alice", Password: "pw", ConfigPath: "/nonexistent/client.ovpn"},
			expected: common.ErrInvalidConfig,
		},
		{
			name: "valid",
			cfg:  SessionConfig{Username: "alice", Password: "pw", ConfigPath: valid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSessionConfig(tt.cfg)
			if !errors.Is(err, tt.expected) {
				t.Errorf("validateSessionConfig() error = %v, want %v", err, tt.expected)
			}
		})
	}
}

func TestController_StartValidationFailure(t *testing.T) {
	c := NewController()

	err := c.Start(SessionConfig{})
	if !errors.Is(err, common.ErrMissingUsername) {
		t.Fatalf("Start() error = %v, want ErrMissingUsername", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v after rejected Start, want Idle", c.State())
	}
}

func TestController_StartSpawnFailure(t *testing.T) {
	c := NewController()
	cfg := SessionConfig{
		ConfigPath:     writeConfig(t),
		Username:       "alice",
		Password:       "secret",
		ExecutablePath: "/nonexistent/openvpn",
	}

	err := c.Start(cfg)
	if !errors.Is(err, common.ErrExecutableNotFound) {
		t.Fatalf("Start() error = %v, want ErrExecutableNotFound", err)
	}
	if c.State() != StateFailed {
		t.Errorf("state = %v, want Failed", c.State())
	}
	if !c.State().CanStart() {
		t.Error("a failed session must allow a restart")
	}
}

func TestController_StartWhileActive(t *testing.T) {
	c := NewController()
	cfg := sessionConfig(t, scriptPrompts+"sleep 5\n")

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	if err := c.Start(cfg); !errors.Is(err, common.ErrSessionActive) {
		t.Errorf("second Start() error = %v, want ErrSessionActive", err)
	}
}

func TestController_FullSession(t *testing.T) {
	c := NewController()
	events := c.Events()
	cfg := sessionConfig(t, scriptPrompts+
		"echo 'Initialization Sequence Completed'\n"+
		"sleep 30\n")

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	awaitState(t, events, StateStarting)
	awaitState(t, events, StateConnected)

	if c.Uptime() <= 0 {
		t.Error("Uptime() = 0 while connected")
	}
	if c.StartedAt().IsZero() {
		t.Error("StartedAt() not set")
	}

	// The monitor reports samples, or a warning when counters are
	// unavailable; either way the session stays up.
	deadline := time.After(8 * time.Second)
monitored:
	for {
		select {
		case ev := <-events:
			if ev.Type == EventTrafficUpdated || ev.Type == EventWarning {
				break monitored
			}
		case <-deadline:
			t.Fatal("no traffic report arrived")
		}
	}
	if c.State() != StateConnected {
		t.Fatalf("state = %v, want Connected", c.State())
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	awaitState(t, events, StateDisconnected)

	// A second Stop is a no-op.
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if c.State() != StateDisconnected {
		t.Errorf("state = %v after double stop, want Disconnected", c.State())
	}

	if c.Uptime() != 0 {
		t.Error("Uptime() != 0 after disconnect")
	}
	if !c.State().CanStart() {
		t.Error("a disconnected session must allow a restart")
	}
}

func TestController_AuthFailed(t *testing.T) {
	c := NewController()
	events := c.Events()
	cfg := sessionConfig(t, scriptPrompts+
		"echo 'AUTH_FAILED'\n"+
		"sleep 30\n")

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	awaitState(t, events, StateFailed)
	if err := c.FailureReason(); !errors.Is(err, common.ErrAuthFailed) {
		t.Errorf("FailureReason() = %v, want ErrAuthFailed", err)
	}
	if !c.State().CanStart() {
		t.Error("a failed session must allow a restart")
	}
}

func TestController_ProcessCrash(t *testing.T) {
	c := NewController()
	events := c.Events()
	cfg := sessionConfig(t, scriptPrompts+
		"echo 'Initialization Sequence Completed'\n"+
		"sleep 1\n"+
		"exit 3\n")

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	awaitState(t, events, StateConnected)
	awaitState(t, events, StateFailed)

	if err := c.FailureReason(); !errors.Is(err, common.ErrProcessTerminated) {
		t.Errorf("FailureReason() = %v, want ErrProcessTerminated", err)
	}
}

func TestController_ChallengeFlow(t *testing.T) {
	c := NewController()
	events := c.Events()
	cfg := sessionConfig(t, scriptPrompts+
		"echo 'CHALLENGE: enter the code from your token'\n"+
		"read code\n"+
		"if [ \"$code\" = \"424242\" ]; then\n"+
		"  echo 'Initialization Sequence Completed'\n"+
		"  sleep 30\n"+
		"else\n"+
		"  echo 'AUTH_FAILED'\n"+
		"fi\n")

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer c.Stop()

	ev := awaitEvent(t, events, EventChallengeRequested)
	if ev.Message != "enter the code from your token" {
		t.Errorf("challenge prompt = %q", ev.Message)
	}
	if c.State() != StateAwaitingChallenge {
		t.Fatalf("state = %v, want AwaitingChallenge", c.State())
	}

	if err := c.SupplyChallengeResponse("   "); !errors.Is(err, common.ErrEmptyChallenge) {
		t.Errorf("blank response error = %v, want ErrEmptyChallenge", err)
	}
	if err := c.SupplyChallengeResponse("424242"); err != nil {
		t.Fatalf("SupplyChallengeResponse() error = %v", err)
	}

	awaitState(t, events, StateConnected)
}

func TestController_ChallengeResponseWithoutChallenge(t *testing.T) {
	c := NewController()
	err := c.SupplyChallengeResponse("424242")
	if !errors.Is(err, common.ErrNoChallengePending) {
		t.Errorf("SupplyChallengeResponse() error = %v, want ErrNoChallengePending", err)
	}
}

func TestController_StopDuringHandshake(t *testing.T) {
	c := NewController()
	events := c.Events()
	cfg := sessionConfig(t, scriptPrompts+"sleep 30\n")

	if err := c.Start(cfg); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	awaitState(t, events, StateDisconnected)
	if err := c.FailureReason(); err != nil {
		t.Errorf("FailureReason() = %v; a stopped handshake is not a failure", err)
	}
}

func TestController_StopWhenIdle(t *testing.T) {
	c := NewController()
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() on idle controller error = %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want Idle", c.State())
	}
}

func TestTunnelAddress(t *testing.T) {
	if got := tunnelAddress("lo"); got != "127.0.0.1" {
		t.Errorf("tunnelAddress(lo) = %q, want 127.0.0.1", got)
	}
	if got := tunnelAddress("definitely-missing0"); got != "" {
		t.Errorf("tunnelAddress(missing) = %q, want empty", got)
	}
}
