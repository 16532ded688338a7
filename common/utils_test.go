package common

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join(home, ConfigDirName) {
		t.Errorf("GetConfigDir() = %q, want it under %q", dir, home)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("config dir should be created: %v", err)
	}
	if !info.IsDir() {
		t.Error("config dir should be a directory")
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("config dir mode = %o, want 0700", info.Mode().Perm())
	}
}

func TestGetDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir() error = %v", err)
	}
	want := filepath.Join(home, ".local", "share", DataDirName)
	if dir != want {
		t.Errorf("GetDataDir() = %q, want %q", dir, want)
	}
	if !FileExists(dir) {
		t.Error("data dir should be created")
	}
}

func TestFileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "present")
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	if !FileExists(path) {
		t.Error("FileExists() = false for an existing file")
	}
	if FileExists(filepath.Join(t.TempDir(), "absent")) {
		t.Error("FileExists() = true for a missing file")
	}
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("EnsureDir() mode = %o, want 0700", info.Mode().Perm())
	}
}

func TestStringInSlice(t *testing.T) {
	tests := []struct {
		s        string
		slice    []string
		expected bool
	}{
		{"dark", []string{"light", "dark"}, true},
		{"blue", []string{"light", "dark"}, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		if got := StringInSlice(tt.s, tt.slice); got != tt.expected {
			t.Errorf("StringInSlice(%q, %v) = %v, want %v", tt.s, tt.slice, got, tt.expected)
		}
	}
}

func TestWrapError(t *testing.T) {
	wrapped := WrapError(ErrAuthFailed, "starting session")
	if wrapped == nil {
		t.Fatal("WrapError() = nil for a non-nil error")
	}
	if !errors.Is(wrapped, ErrAuthFailed) {
		t.Error("wrapped error should match its sentinel with errors.Is")
	}
	if !strings.Contains(wrapped.Error(), "starting session") {
		t.Errorf("wrapped error should carry the context, got %q", wrapped)
	}

	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) should stay nil")
	}
}
