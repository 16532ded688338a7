// Package common provides shared constants, types, and utilities
// used across the OpenVPN client application.
package common

import (
	"os"
	"path/filepath"
)

// userDir resolves a directory under the user's home and creates it
// with user-only permissions.
func userDir(parts ...string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", WrapError(err, "failed to get home directory")
	}

	dir := filepath.Join(append([]string{home}, parts...)...)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", WrapError(err, "failed to create directory")
	}
	return dir, nil
}

// GetConfigDir returns the application configuration directory,
// creating it if needed.
func GetConfigDir() (string, error) {
	return userDir(ConfigDirName)
}

// GetDataDir returns the application data directory under the XDG
// data home, creating it if needed.
func GetDataDir() (string, error) {
	return userDir(".local", "share", DataDirName)
}

// FileExists reports whether path names an existing file.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates path if it does not exist. Directories hold
// credentials and keys, so they are private to the user.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

// StringInSlice reports whether s occurs in slice.
func StringInSlice(s string, slice []string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
