// Package vpn provides OpenVPN session management functionality.
// This file contains the interactive credential handshake.
package vpn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bastiaanwilliams/OCL/common"
)

// Anchors recognized in OpenVPN output.
var (
	patUsernamePrompt = NewPattern("username-prompt", `Enter Auth Username.*:`)
	patPasswordPrompt = NewPattern("password-prompt", `Enter Auth Password.*:`)
	patChallenge      = NewPattern("challenge", `CHALLENGE:`)
	patAuthFailed     = NewPattern("auth-failed", `AUTH_FAILED`)
	patConnected      = NewPattern("connected", `Initialization Sequence Completed`)
)

// challengeText extracts the server's challenge text from an output
// line, falling back to the whole line.
func challengeText(line string) string {
	if i := strings.Index(strings.ToUpper(line), "CHALLENGE:"); i >= 0 {
		if t := strings.TrimSpace(line[i+len("CHALLENGE:"):]); t != "" {
			return t
		}
	}
	return strings.TrimSpace(line)
}

// console is what the handshake needs from a live process.
type console interface {
	LineReader
	WriteLine(text string) error
	IsAlive() bool
}

var _ console = (*Process)(nil)

// handshake drives the credential exchange with the OpenVPN process:
// wait for the username prompt, send the username, wait for the
// password prompt, send the password, then wait for the outcome. A
// server challenge suspends the exchange until a response arrives on
// the responses channel.
//
// Zero timeouts fall back to the defaults in common.
type handshake struct {
	con         console
	username    string
	password    string
	responses   <-chan string
	onChallenge func(prompt string)

	promptTimeout    time.Duration
	resultTimeout    time.Duration
	challengeTimeout time.Duration
}

func (h *handshake) applyDefaults() {
	if h.promptTimeout == 0 {
		h.promptTimeout = common.PromptTimeout
	}
	if h.resultTimeout == 0 {
		h.resultTimeout = common.ResultTimeout
	}
	if h.challengeTimeout == 0 {
		h.challengeTimeout = common.ChallengeResponseTimeout
	}
}

// run performs the handshake and returns nil once the tunnel is
// established. Failures map to the sentinel errors in common; context
// errors pass through untouched.
func (h *handshake) run(ctx context.Context) error {
	h.applyDefaults()

	if _, _, err := Expect(ctx, h.con, []Pattern{patUsernamePrompt}, h.promptTimeout); err != nil {
		return h.mapError(err)
	}
	if err := h.con.WriteLine(h.username); err != nil {
		return common.ErrProcessTerminated
	}

	if _, _, err := Expect(ctx, h.con, []Pattern{patPasswordPrompt}, h.promptTimeout); err != nil {
		return h.mapError(err)
	}
	if err := h.con.WriteLine(h.password); err != nil {
		return common.ErrProcessTerminated
	}

	name, line, err := Expect(ctx, h.con,
		[]Pattern{patChallenge, patAuthFailed, patConnected}, h.resultTimeout)
	if err != nil {
		return h.mapError(err)
	}

	if name == patChallenge.Name {
		if err := h.answerChallenge(ctx, line); err != nil {
			return err
		}
		// The response opens a fresh outcome window.
		name, _, err = Expect(ctx, h.con,
			[]Pattern{patAuthFailed, patConnected}, h.resultTimeout)
		if err != nil {
			return h.mapError(err)
		}
	}

	if name == patAuthFailed.Name {
		return common.ErrAuthFailed
	}
	return nil
}

// answerChallenge surfaces the challenge and forwards the response.
func (h *handshake) answerChallenge(ctx context.Context, line string) error {
	common.LogInfo("Server challenge received")
	if h.onChallenge != nil {
		h.onChallenge(challengeText(line))
	}

	select {
	case code := <-h.responses:
		if !h.con.IsAlive() {
			return common.ErrProcessTerminated
		}
		if err := h.con.WriteLine(code); err != nil {
			return common.ErrProcessTerminated
		}
		return nil
	case <-time.After(h.challengeTimeout):
		return common.ErrChallengeTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mapError converts transport errors into handshake outcomes. Context
// errors pass through so a stop request is not misreported as a
// failure.
func (h *handshake) mapError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, common.ErrStreamEnded):
		return common.ErrProcessTerminated
	case errors.Is(err, common.ErrTimeout):
		if !h.con.IsAlive() {
			return common.ErrProcessTerminated
		}
		return common.ErrPromptTimeout
	default:
		return err
	}
}
