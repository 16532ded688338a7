// Package keyring provides the encryption vault for saved credentials.
// The data key lives in the system keyring when available, falling back
// to a machine-derived key when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/hkdf"

	"github.com/bastiaanwilliams/OCL/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "openvpn_app"
	// keyName is the keyring entry holding the data key.
	keyName = "my_encryption_key"
	// keySize is the AES-256 key length in bytes.
	keySize = 32
)

// Common errors returned by vault operations.
var (
	ErrDecrypt        = errors.New("unable to decrypt token")
	ErrKeyUnavailable = errors.New("encryption key unavailable")
)

// Vault encrypts and decrypts small strings with a persistent data key.
// The zero value is ready to use; the key is loaded or created on first
// operation.
type Vault struct {
	mu  sync.Mutex
	key []byte
}

var _ common.Cipher = (*Vault)(nil)

var defaultVault = &Vault{}

// Default returns the process-wide vault.
func Default() *Vault {
	return defaultVault
}

// EnsureKey loads or creates the data key. Calling it again is a no-op
// once a key is held.
func (v *Vault) EnsureKey() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, err := v.ensureKeyLocked()
	return err
}

func (v *Vault) ensureKeyLocked() ([]byte, error) {
	if v.key != nil {
		return v.key, nil
	}

	stored, err := keyring.Get(serviceName, keyName)
	if err == nil {
		key, derr := base64.StdEncoding.DecodeString(stored)
		if derr == nil && len(key) == keySize {
			v.key = key
			return v.key, nil
		}
		// Stored key is corrupt; any tokens sealed with it are lost
		// either way, so generate a replacement below.
		common.LogWarn("Stored encryption key is corrupt, generating a new one")
	} else if !errors.Is(err, keyring.ErrNotFound) {
		// Keyring unavailable. Derive a stable key instead so tokens
		// survive restarts on this machine.
		common.LogWarn("System keyring unavailable, using machine-derived key: %v", err)
		key, derr := machineKey()
		if derr != nil {
			return nil, common.WrapError(ErrKeyUnavailable, derr.Error())
		}
		v.key = key
		return v.key, nil
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, common.WrapError(ErrKeyUnavailable, err.Error())
	}
	if err := keyring.Set(serviceName, keyName, base64.StdEncoding.EncodeToString(key)); err != nil {
		common.LogWarn("Could not persist encryption key, using machine-derived key: %v", err)
		derived, derr := machineKey()
		if derr != nil {
			return nil, common.WrapError(ErrKeyUnavailable, derr.Error())
		}
		v.key = derived
		return v.key, nil
	}
	v.key = key
	return v.key, nil
}

// machineKey derives a user-scoped key from machine identity. The key is
// stable across runs but tied to this machine and user.
func machineKey() ([]byte, error) {
	hostname, _ := os.Hostname()
	info := fmt.Sprintf("%s:%s:%d", serviceName, hostname, os.Getuid())
	r := hkdf.New(sha256.New, []byte(getMachineID()), []byte(keyName), []byte(info))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func getMachineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		data, err := os.ReadFile(path)
		if err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	// Fallback
	return "default-machine-id"
}

// Encrypt seals plaintext with the vault key and returns a base64 token.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.ensureKeyLocked()
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt opens a token produced by Encrypt. Tampered, truncated, or
// foreign tokens return an error wrapping ErrDecrypt.
func (v *Vault) Decrypt(token string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	key, err := v.ensureKeyLocked()
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: token too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Package-level helpers operating on the default vault.

// EnsureKey loads or creates the data key in the default vault.
func EnsureKey() error {
	return defaultVault.EnsureKey()
}

// Encrypt seals plaintext using the default vault.
func Encrypt(plaintext string) (string, error) {
	return defaultVault.Encrypt(plaintext)
}

// Decrypt opens a token using the default vault.
func Decrypt(token string) (string, error) {
	return defaultVault.Decrypt(token)
}
