// Package vpn provides OpenVPN session management functionality.
// This file contains discovery of OpenVPN processes running on the
// system, serving the CLI status and disconnect operations.
package vpn

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// RunningProcess describes an OpenVPN process found on the system.
type RunningProcess struct {
	PID     int32
	Started time.Time
}

// Uptime returns how long the process has been running, or zero when
// its start time is unknown.
func (r RunningProcess) Uptime() time.Duration {
	if r.Started.IsZero() {
		return 0
	}
	return time.Since(r.Started)
}

// FindRunning lists the OpenVPN processes currently running on the
// system, whether or not this application started them.
func FindRunning() ([]RunningProcess, error) {
	procs, err := openvpnProcesses()
	if err != nil {
		return nil, err
	}

	var found []RunningProcess
	for _, p := range procs {
		rp := RunningProcess{PID: p.Pid}
		if ms, err := p.CreateTime(); err == nil {
			rp.Started = time.UnixMilli(ms)
		}
		found = append(found, rp)
	}
	return found, nil
}

// Interrupt sends SIGINT to the given process, the same signal a
// graceful Stop uses. OpenVPN tears the tunnel down and exits.
func Interrupt(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return fmt.Errorf("process %d not found: %w", pid, err)
	}
	if err := p.SendSignal(syscall.SIGINT); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}

// TunnelAddress returns the first IPv4 address of the tunnel
// interface, or "" when the tunnel is not up.
func TunnelAddress() string {
	return tunnelAddress(tunInterfaceName)
}

func openvpnProcesses() ([]*process.Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var found []*process.Process
	for _, p := range procs {
		name, err := p.Name()
		if err != nil || !isOpenVPNName(name) {
			continue
		}
		found = append(found, p)
	}
	return found, nil
}

// isOpenVPNName reports whether a process name is one of the OpenVPN
// binary names this application spawns or resolves.
func isOpenVPNName(name string) bool {
	switch strings.ToLower(name) {
	case "openvpn", "openvpn.exe", "openvpn_macos":
		return true
	default:
		return false
	}
}
