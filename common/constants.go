// Package common provides shared constants, types, and utilities
// used across the OpenVPN client application.
package common

import "time"

// Application metadata.
const (
	// AppID is the unique identifier for the application.
	AppID = "com.bastiaanwilliams.ocl"
	// AppName is the display name of the application.
	AppName = "OpenVPN Client"
	// ConfigDirName is the name of the configuration directory under $HOME.
	ConfigDirName = ".openvpn_client"
	// DataDirName is the name of the data directory under ~/.local/share.
	DataDirName = "ocl"
)

// File names used by the application.
const (
	StateFileName    = "config.json"
	ProfilesFileName = "profiles.yaml"
	HistoryFileName  = "history.db"
	LogFileName      = "ocl.log"
)

// Default timeouts and intervals.
const (
	// PromptTimeout is the maximum time to wait for a credential prompt
	// from the OpenVPN process.
	PromptTimeout = 60 * time.Second
	// ResultTimeout is the maximum time to wait for an authentication
	// outcome after credentials have been submitted.
	ResultTimeout = 30 * time.Second
	// ChallengeResponseTimeout is the maximum time to wait for the user
	// to supply a challenge response.
	ChallengeResponseTimeout = 120 * time.Second
	// StopGracePeriod is how long a process gets to exit after SIGINT
	// before it is killed.
	StopGracePeriod = 10 * time.Second
	// MonitorInterval is how often the process liveness is checked.
	MonitorInterval = 1 * time.Second
	// TrafficInterval is how often traffic counters are sampled.
	TrafficInterval = 1 * time.Second
)

// Theme values.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)
