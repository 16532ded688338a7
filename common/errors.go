// Package common provides shared constants, types, and utilities
// used across the OpenVPN client application.
package common

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages. Callers match them with
// errors.Is.
var (
	// Session errors.
	ErrSessionActive = errors.New("session already active")
	ErrTimeout       = errors.New("operation timed out")

	// Authentication errors.
	ErrAuthFailed         = errors.New("authentication failed")
	ErrPromptTimeout      = errors.New("timed out waiting for prompt")
	ErrChallengeTimeout   = errors.New("timed out waiting for challenge response")
	ErrEmptyChallenge     = errors.New("challenge response cannot be empty")
	ErrNoChallengePending = errors.New("no challenge pending")

	// Process errors.
	ErrProcessTerminated  = errors.New("OpenVPN process terminated unexpectedly")
	ErrProcessNotRunning  = errors.New("process not running")
	ErrStreamEnded        = errors.New("output stream ended")
	ErrExecutableNotFound = errors.New("OpenVPN executable not found")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidConfig   = errors.New("invalid configuration file")
	ErrDuplicateName   = errors.New("profile name already exists")
	ErrInvalidProfile  = errors.New("invalid profile data")

	// Configuration errors.
	ErrConfigSave = errors.New("failed to save configuration")

	// Validation errors.
	ErrMissingUsername   = errors.New("username is required")
	ErrMissingPassword   = errors.New("password is required")
	ErrMissingConfigPath = errors.New("configuration file path is required")
)

// WrapError attaches context to err, keeping the original visible to
// errors.Is and errors.As. A nil err stays nil.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
