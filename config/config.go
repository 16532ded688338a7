// Package config manages the persisted application state.
// It handles loading, saving, and credential encryption for the
// state file in the user's configuration directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bastiaanwilliams/OCL/common"
)

// State represents the persisted application state.
// All settings are stored in a JSON file in the user's config directory.
// Saved credentials are encrypted at rest; the in-memory fields always
// hold plaintext.
type State struct {
	// ShowSplash controls whether the startup splash is shown.
	ShowSplash bool `json:"show_splash"`
	// Theme sets the color theme: "light" or "dark".
	Theme string `json:"theme"`
	// RememberCredentials enables persisting credentials across runs.
	RememberCredentials bool `json:"remember_credentials"`
	// SavedUsername is the remembered username, empty when not saved.
	SavedUsername string `json:"saved_username"`
	// SavedPassword is the remembered password, empty when not saved.
	SavedPassword string `json:"saved_password"`
}

// DefaultState returns the default application state.
func DefaultState() *State {
	return &State{
		ShowSplash:          true,
		Theme:               common.ThemeDark,
		RememberCredentials: false,
		SavedUsername:       "",
		SavedPassword:       "",
	}
}

// Store reads and writes the state file at a fixed path.
type Store struct {
	path   string
	cipher common.Cipher
}

// NewStore returns a store for the state file in the user's config
// directory.
func NewStore(cipher common.Cipher) (*Store, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(filepath.Join(dir, common.StateFileName), cipher), nil
}

// NewStoreAt returns a store for the state file at an explicit path.
func NewStoreAt(path string, cipher common.Cipher) *Store {
	return &Store{path: path, cipher: cipher}
}

// Load reads the state file. A missing or corrupt file yields defaults;
// individual missing keys keep their default values. Saved credentials
// that fail to decrypt are dropped with a warning. Load never fails
// startup.
func (s *Store) Load() *State {
	state := DefaultState()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			common.LogWarn("Could not read state file: %v", err)
		}
		return state
	}

	if err := json.Unmarshal(data, state); err != nil {
		common.LogWarn("State file is corrupt, using defaults: %v", err)
		return DefaultState()
	}

	state.validate()
	s.decryptCredentials(state)
	return state
}

// decryptCredentials replaces stored tokens with plaintext in place.
// A token that fails to decrypt becomes an empty string.
func (s *Store) decryptCredentials(state *State) {
	if state.SavedUsername != "" {
		plain, err := s.cipher.Decrypt(state.SavedUsername)
		if err != nil {
			common.LogWarn("Could not decrypt saved username: %v", err)
			plain = ""
		}
		state.SavedUsername = plain
	}
	if state.SavedPassword != "" {
		plain, err := s.cipher.Decrypt(state.SavedPassword)
		if err != nil {
			common.LogWarn("Could not decrypt saved password: %v", err)
			plain = ""
		}
		state.SavedPassword = plain
	}
}

// validate fixes invalid values in place.
func (state *State) validate() {
	if !common.StringInSlice(state.Theme, []string{common.ThemeLight, common.ThemeDark}) {
		state.Theme = common.ThemeDark
	}
}

// Save writes the state file. Credentials are encrypted when
// RememberCredentials is set and blanked otherwise. The given state is
// not modified, so repeated saves never double-encrypt.
func (s *Store) Save(state *State) error {
	out := *state

	if out.RememberCredentials {
		var err error
		out.SavedUsername, err = s.cipher.Encrypt(state.SavedUsername)
		if err != nil {
			common.LogWarn("Could not encrypt username, not saving it: %v", err)
			out.SavedUsername = ""
		}
		out.SavedPassword, err = s.cipher.Encrypt(state.SavedPassword)
		if err != nil {
			common.LogWarn("Could not encrypt password, not saving it: %v", err)
			out.SavedPassword = ""
		}
	} else {
		out.SavedUsername = ""
		out.SavedPassword = ""
	}

	if err := common.EnsureDir(filepath.Dir(s.path)); err != nil {
		return common.WrapError(common.ErrConfigSave, err.Error())
	}

	data, err := json.MarshalIndent(&out, "", "    ")
	if err != nil {
		return fmt.Errorf("error serializing state: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return common.WrapError(common.ErrConfigSave, err.Error())
	}

	return nil
}
