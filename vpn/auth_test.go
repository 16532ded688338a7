package vpn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bastiaanwilliams/OCL/common"
)

func testHandshake(con *fakeConsole) *handshake {
	return &handshake{
		con:              con,
		username:         "alice",
		password:         "secret",
		promptTimeout:    time.Second,
		resultTimeout:    time.Second,
		challengeTimeout: time.Second,
	}
}

func TestHandshake_Success(t *testing.T) {
	con := newFakeConsole()
	con.emit(
		"OpenVPN 2.6.8 x86_64-pc-linux-gnu",
		"Enter Auth Username:",
	)
	con.onWrite = func(line string) {
		switch line {
		case "alice":
			// The pty echoes what we wrote before the next prompt.
			con.emit("alice", "Enter Auth Password:")
		case "secret":
			con.emit("secret", "TLS: tls_multi_process", "Initialization Sequence Completed")
		}
	}

	h := testHandshake(con)
	if err := h.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	wrote := con.written()
	if len(wrote) != 2 || wrote[0] != "alice" || wrote[1] != "secret" {
		t.Errorf("written = %v, want [alice secret]", wrote)
	}
}

func TestHandshake_AuthFailed(t *testing.T) {
	con := newFakeConsole()
	con.emit("Enter Auth Username:")
	con.onWrite = func(line string) {
		switch line {
		case "alice":
			con.emit("Enter Auth Password:")
		case "secret":
			con.emit("SIGUSR1[soft,auth-failure] received", "AUTH_FAILED")
		}
	}

	h := testHandshake(con)
	err := h.run(context.Background())
	if !errors.Is(err, common.ErrAuthFailed) {
		t.Errorf("run() error = %v, want ErrAuthFailed", err)
	}
}

func TestHandshake_ChallengeAnswered(t *testing.T) {
	con := newFakeConsole()
	responses := make(chan string, 1)

	con.emit("Enter Auth Username:")
	con.onWrite = func(line string) {
		switch line {
		case "alice":
			con.emit("Enter Auth Password:")
		case "secret":
			con.emit("CHALLENGE: Enter your one-time code")
		case "123456":
			con.emit("Initialization Sequence Completed")
		}
	}

	var prompt string
	h := testHandshake(con)
	h.responses = responses
	h.onChallenge = func(p string) {
		prompt = p
		responses <- "123456"
	}

	if err := h.run(context.Background()); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if prompt != "Enter your one-time code" {
		t.Errorf("challenge prompt = %q", prompt)
	}

	wrote := con.written()
	if len(wrote) != 3 || wrote[2] != "123456" {
		t.Errorf("written = %v, want the response forwarded last", wrote)
	}
}

func TestHandshake_ChallengeRejected(t *testing.T) {
	con := newFakeConsole()
	responses := make(chan string, 1)

	con.emit("Enter Auth Username:")
	con.onWrite = func(line string) {
		switch line {
		case "alice":
			con.emit("Enter Auth Password:")
		case "secret":
			con.emit("CHALLENGE: code?")
		case "999999":
			con.emit("AUTH_FAILED")
		}
	}

	h := testHandshake(con)
	h.responses = responses
	h.onChallenge = func(string) { responses <- "999999" }

	err := h.run(context.Background())
	if !errors.Is(err, common.ErrAuthFailed) {
		t.Errorf("run() error = %v, want ErrAuthFailed", err)
	}
}

func TestHandshake_ChallengeTimeout(t *testing.T) {
	con := newFakeConsole()
	con.emit("Enter Auth Username:")
	con.onWrite = func(line string) {
		switch line {
		case "alice":
			con.emit("Enter Auth Password:")
		case "secret":
			con.emit("CHALLENGE: code?")
		}
	}

	h := testHandshake(con)
	h.responses = make(chan string)
	h.challengeTimeout = 100 * time.Millisecond

	err := h.run(context.Background())
	if !errors.Is(err, common.ErrChallengeTimeout) {
		t.Errorf("run() error = %v, want ErrChallengeTimeout", err)
	}
}

func TestHandshake_PromptTimeout(t *testing.T) {
	con := newFakeConsole()

	h := testHandshake(con)
	h.promptTimeout = 100 * time.Millisecond

	err := h.run(context.Background())
	if !errors.Is(err, common.ErrPromptTimeout) {
		t.Errorf("run() error = %v, want ErrPromptTimeout", err)
	}
}

func TestHandshake_ProcessDied(t *testing.T) {
	con := newFakeConsole()
	con.emit("Enter Auth Username:")
	con.onWrite = func(line string) {
		if line == "alice" {
			con.end()
		}
	}

	h := testHandshake(con)
	err := h.run(context.Background())
	if !errors.Is(err, common.ErrProcessTerminated) {
		t.Errorf("run() error = %v, want ErrProcessTerminated", err)
	}
}

func TestHandshake_DeadProcessTimeout(t *testing.T) {
	// Stream open but silent, process already gone: the timeout is
	// reported as termination, not as a prompt timeout.
	con := newFakeConsole()
	con.alive = false

	h := testHandshake(con)
	h.promptTimeout = 100 * time.Millisecond

	err := h.run(context.Background())
	if !errors.Is(err, common.ErrProcessTerminated) {
		t.Errorf("run() error = %v, want ErrProcessTerminated", err)
	}
}

func TestHandshake_ContextCanceled(t *testing.T) {
	con := newFakeConsole()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	h := testHandshake(con)
	err := h.run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("run() error = %v, want context.Canceled", err)
	}
}

func TestChallengeText(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{
			name:     "text after marker",
			line:     "CHALLENGE: Enter your one-time code",
			expected: "Enter your one-time code",
		},
		{
			name:     "lowercase marker",
			line:     "challenge: code please",
			expected: "code please",
		},
		{
			name:     "marker embedded in status line",
			line:     "AUTH_PENDING,CHALLENGE: token from app",
			expected: "token from app",
		},
		{
			name:     "nothing after marker",
			line:     "CHALLENGE:",
			expected: "CHALLENGE:",
		},
		{
			name:     "no marker",
			line:     "  respond below  ",
			expected: "respond below",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := challengeText(tt.line); got != tt.expected {
				t.Errorf("challengeText(%q) = %q, want %q", tt.line, got, tt.expected)
			}
		})
	}
}
