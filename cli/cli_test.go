package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bastiaanwilliams/OCL/vpn"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{name: "seconds only", duration: 45 * time.Second, expected: "45s"},
		{name: "minutes and seconds", duration: 3*time.Minute + 5*time.Second, expected: "3m 5s"},
		{name: "hours minutes seconds", duration: 2*time.Hour + 14*time.Minute + 9*time.Second, expected: "2h 14m 9s"},
		{name: "zero", duration: 0, expected: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		bytes    uint64
		expected string
	}{
		{name: "zero", bytes: 0, expected: "0.00 MB"},
		{name: "one and a half megabytes", bytes: 1572864, expected: "1.50 MB"},
		{name: "under a megabyte", bytes: 524288, expected: "0.50 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatBytes(tt.bytes); got != tt.expected {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.expected)
			}
		})
	}
}

func TestResolveTarget_RawPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "office.ovpn")
	if err := os.WriteFile(path, []byte("client\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	c := &CLI{profiles: &vpn.ProfileManager{}}
	name, configPath, profile, err := c.resolveTarget(path)
	if err != nil {
		t.Fatalf("resolveTarget() error = %v", err)
	}
	if profile != nil {
		t.Errorf("profile = %v, want nil for a raw path", profile)
	}
	if name != "office" {
		t.Errorf("name = %q, want %q", name, "office")
	}
	if configPath != path {
		t.Errorf("configPath = %q, want %q", configPath, path)
	}
}

func TestResolveTarget_NotFound(t *testing.T) {
	c := &CLI{profiles: &vpn.ProfileManager{}}
	if _, _, _, err := c.resolveTarget("no-such-profile"); err == nil {
		t.Error("resolveTarget() expected an error for an unknown target")
	}
}
