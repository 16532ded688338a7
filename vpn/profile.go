// Package vpn provides OpenVPN session management functionality.
// This file contains the Profile and ProfileManager types for managing
// saved connection profiles.
package vpn

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/bastiaanwilliams/OCL/common"
)

// Profile is a saved connection: a named OpenVPN configuration file
// plus an optional username to prefill.
type Profile struct {
	// ID is a unique identifier for the profile (UUID format).
	ID string `yaml:"id"`
	// Name is a human-readable name for the profile.
	Name string `yaml:"name"`
	// ConfigPath is the path to the OpenVPN configuration file.
	ConfigPath string `yaml:"config_path"`
	// Username is the optional username to prefill when connecting.
	Username string `yaml:"username,omitempty"`
	// Created is when the profile was imported.
	Created time.Time `yaml:"created"`
	// LastUsed is when the profile last carried a session.
	LastUsed time.Time `yaml:"last_used,omitempty"`
}

// Validate checks that the required fields are present.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if p.ConfigPath == "" {
		return errors.New("config path is required")
	}
	return nil
}

// ProfileManager keeps the profile collection in sync with its
// on-disk YAML file and owns the copied configuration files.
type ProfileManager struct {
	profiles   []*Profile
	configDir  string
	configFile string
}

// NewProfileManager creates a ProfileManager over the user's config
// directory and loads existing profiles.
func NewProfileManager() (*ProfileManager, error) {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return newProfileManagerAt(configDir)
}

func newProfileManagerAt(configDir string) (*ProfileManager, error) {
	pm := &ProfileManager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, common.ProfilesFileName),
	}
	if err := pm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return pm, nil
}

// Load reads the profile collection from disk. A missing file means
// no profiles yet and is not an error.
func (pm *ProfileManager) Load() error {
	data, err := os.ReadFile(pm.configFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	if err := yaml.Unmarshal(data, &pm.profiles); err != nil {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}
	return nil
}

// Save writes the collection back to disk, private to the user.
func (pm *ProfileManager) Save() error {
	data, err := yaml.Marshal(pm.profiles)
	if err != nil {
		return fmt.Errorf("failed to serialize profiles: %w", err)
	}

	if err := os.WriteFile(pm.configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// indexOf returns the position of the first profile matched by ok,
// or -1.
func (pm *ProfileManager) indexOf(ok func(*Profile) bool) int {
	for i, p := range pm.profiles {
		if ok(p) {
			return i
		}
	}
	return -1
}

// Add validates and stores a new profile. The configuration file is
// copied into the manager's directory, so the profile survives the
// original being moved or deleted.
func (pm *ProfileManager) Add(profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return common.WrapError(common.ErrInvalidProfile, err.Error())
	}
	if pm.indexOf(func(p *Profile) bool { return p.Name == profile.Name }) >= 0 {
		return common.ErrDuplicateName
	}
	if err := validateConfigFile(profile.ConfigPath); err != nil {
		return err
	}

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.Created = time.Now()

	stored := filepath.Join(pm.configDir, "configs", profile.ID+".ovpn")
	if err := common.EnsureDir(filepath.Dir(stored)); err != nil {
		return fmt.Errorf("failed to create configs directory: %w", err)
	}
	if err := copyFile(profile.ConfigPath, stored); err != nil {
		return fmt.Errorf("failed to copy config file: %w", err)
	}
	profile.ConfigPath = stored

	pm.profiles = append(pm.profiles, profile)
	return pm.Save()
}

// Remove deletes a profile and its copied configuration file.
func (pm *ProfileManager) Remove(id string) error {
	i := pm.indexOf(func(p *Profile) bool { return p.ID == id })
	if i < 0 {
		return common.ErrProfileNotFound
	}

	path := pm.profiles[i].ConfigPath
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		common.LogWarn("Could not remove config file %s: %v", path, err)
	}
	pm.profiles = append(pm.profiles[:i], pm.profiles[i+1:]...)
	return pm.Save()
}

// Get retrieves a profile by ID.
func (pm *ProfileManager) Get(id string) (*Profile, error) {
	if i := pm.indexOf(func(p *Profile) bool { return p.ID == id }); i >= 0 {
		return pm.profiles[i], nil
	}
	return nil, common.ErrProfileNotFound
}

// GetByName retrieves a profile by its display name.
func (pm *ProfileManager) GetByName(name string) (*Profile, error) {
	if i := pm.indexOf(func(p *Profile) bool { return p.Name == name }); i >= 0 {
		return pm.profiles[i], nil
	}
	return nil, common.ErrProfileNotFound
}

// List returns all profiles in insertion order.
func (pm *ProfileManager) List() []*Profile {
	return pm.profiles
}

// Update replaces the stored profile carrying the same ID.
func (pm *ProfileManager) Update(profile *Profile) error {
	i := pm.indexOf(func(p *Profile) bool { return p.ID == profile.ID })
	if i < 0 {
		return common.ErrProfileNotFound
	}
	pm.profiles[i] = profile
	return pm.Save()
}

// MarkUsed stamps LastUsed on a profile and persists it.
func (pm *ProfileManager) MarkUsed(id string) error {
	profile, err := pm.Get(id)
	if err != nil {
		return err
	}
	profile.LastUsed = time.Now()
	return pm.Save()
}

// validateConfigFile checks that path is a plausible OpenVPN client
// configuration before it is imported.
func validateConfigFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", common.ErrInvalidConfig, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ovpn", ".conf":
	default:
		return fmt.Errorf("%w: expected .ovpn or .conf extension", common.ErrInvalidConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	if !hasClientDirective(string(data)) {
		return fmt.Errorf("%w: no remote or client directive", common.ErrInvalidConfig)
	}
	return nil
}

// hasClientDirective reports whether the configuration carries a
// directive marking it as usable for a client connection.
func hasClientDirective(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || strings.HasPrefix(fields[0], ";") {
			continue
		}
		if fields[0] == "remote" || fields[0] == "client" {
			return true
		}
	}
	return false
}

// copyFile copies src to dst, private to the user.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
