// Package common provides shared constants, types, and utilities
// used across the OpenVPN client application.
package common

// Cipher provides authenticated encryption for small strings such as
// saved credentials. Implementations may back the key with the system
// keyring or a machine-derived fallback.
type Cipher interface {
	// Encrypt returns an opaque token for the given plaintext.
	Encrypt(plaintext string) (string, error)
	// Decrypt recovers the plaintext from a token produced by Encrypt.
	Decrypt(token string) (string, error)
}

// Notifier defines the interface for sending desktop notifications.
// Delivery is best effort; implementations log failures instead of
// returning them.
type Notifier interface {
	// Notify sends a notification with the given title and message.
	Notify(title, message string)
	// NotifyWithIcon sends a notification with a custom icon.
	NotifyWithIcon(title, message, icon string)
}
