// Package vpn provides OpenVPN session management functionality.
// This file contains pattern matching over the process output stream.
package vpn

import (
	"context"
	"regexp"
	"time"

	"github.com/bastiaanwilliams/OCL/common"
)

// Pattern is a named, case-insensitive pattern matched against output
// lines.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

// NewPattern compiles expr case-insensitively under the given name.
func NewPattern(name, expr string) Pattern {
	return Pattern{Name: name, re: regexp.MustCompile("(?i)" + expr)}
}

// Match reports whether the pattern occurs anywhere in line.
func (p Pattern) Match(line string) bool {
	return p.re.MatchString(line)
}

// LineReader is the read capability Expect needs from a process.
type LineReader interface {
	// ReadLine returns the next output line, common.ErrTimeout when
	// none arrives in time, or common.ErrStreamEnded at end of stream.
	ReadLine(ctx context.Context, timeout time.Duration) (string, error)
}

var _ LineReader = (*Process)(nil)

// Expect consumes lines from src until one matches a pattern, and
// returns the name of the matched pattern together with the line.
// Lines are scanned in arrival order; when several patterns occur in
// the same line, the earliest entry of patterns wins. Non-matching
// lines are logged and discarded. The timeout spans the whole scan,
// not a single read.
func Expect(ctx context.Context, src LineReader, patterns []Pattern, timeout time.Duration) (string, string, error) {
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", "", common.ErrTimeout
		}

		line, err := src.ReadLine(ctx, remaining)
		if err != nil {
			return "", "", err
		}

		for _, p := range patterns {
			if p.Match(line) {
				common.LogDebug("Matched %q: %s", p.Name, line)
				return p.Name, line, nil
			}
		}
		if line != "" {
			common.LogDebug("openvpn: %s", line)
		}
	}
}
