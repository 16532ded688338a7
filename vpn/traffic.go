// Package vpn provides OpenVPN session management functionality.
// This file contains the traffic monitor sampling interface counters.
package vpn

import (
	"errors"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/bastiaanwilliams/OCL/common"
)

// CounterSource returns cumulative sent and received byte counts.
type CounterSource func() (sent, recv uint64, err error)

// systemCounters reads the machine-wide network counters.
func systemCounters() (uint64, uint64, error) {
	stats, err := psnet.IOCounters(false)
	if err != nil {
		return 0, 0, err
	}
	if len(stats) == 0 {
		return 0, 0, errors.New("no network counters available")
	}
	return stats[0].BytesSent, stats[0].BytesRecv, nil
}

// TrafficMonitor periodically samples byte counters and reports deltas
// against a baseline taken when monitoring starts. A failing counter
// source stops sampling and reports the error once; it never ends the
// session.
type TrafficMonitor struct {
	mu       sync.RWMutex
	source   CounterSource
	interval time.Duration
	running  bool
	stopChan chan struct{}
	baseSent uint64
	baseRecv uint64
	onSample func(TrafficSample)
	onError  func(error)
}

// NewTrafficMonitor creates a traffic monitor. A nil source means the
// system network counters.
func NewTrafficMonitor(source CounterSource, onSample func(TrafficSample), onError func(error)) *TrafficMonitor {
	if source == nil {
		source = systemCounters
	}
	return &TrafficMonitor{
		source:   source,
		interval: common.TrafficInterval,
		stopChan: make(chan struct{}),
		onSample: onSample,
		onError:  onError,
	}
}

// Start takes the baseline and begins the sampling loop. Calling Start
// on a running monitor is a no-op, so the baseline is never retaken
// mid-session.
func (tm *TrafficMonitor) Start() {
	tm.mu.Lock()
	if tm.running {
		tm.mu.Unlock()
		return
	}

	sent, recv, err := tm.source()
	if err != nil {
		tm.mu.Unlock()
		common.LogWarn("Traffic counters unavailable: %v", err)
		tm.reportError(err)
		return
	}

	tm.baseSent = sent
	tm.baseRecv = recv
	tm.running = true
	tm.stopChan = make(chan struct{})
	tm.mu.Unlock()

	common.LogInfo("Traffic monitor started (interval: %v)", tm.interval)

	go tm.runLoop()
}

// Stop stops the sampling loop. Stopping a stopped monitor is a no-op.
func (tm *TrafficMonitor) Stop() {
	tm.mu.Lock()
	if !tm.running {
		tm.mu.Unlock()
		return
	}
	tm.running = false
	close(tm.stopChan)
	tm.mu.Unlock()

	common.LogInfo("Traffic monitor stopped")
}

// IsRunning returns whether the monitor is currently sampling.
func (tm *TrafficMonitor) IsRunning() bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.running
}

// runLoop is the main sampling loop.
func (tm *TrafficMonitor) runLoop() {
	tm.mu.RLock()
	interval := tm.interval
	stopChan := tm.stopChan
	tm.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			if !tm.sample() {
				return
			}
		}
	}
}

// sample takes one reading and reports it. It returns false when the
// source failed and the loop should end.
func (tm *TrafficMonitor) sample() bool {
	sent, recv, err := tm.source()
	if err != nil {
		common.LogWarn("Traffic sampling failed, stopping monitor: %v", err)
		tm.Stop()
		tm.reportError(err)
		return false
	}

	tm.mu.RLock()
	s := TrafficSample{
		SentBytes: safeDelta(sent, tm.baseSent),
		RecvBytes: safeDelta(recv, tm.baseRecv),
		Timestamp: time.Now(),
	}
	onSample := tm.onSample
	tm.mu.RUnlock()

	if onSample != nil {
		onSample(s)
	}
	return true
}

func (tm *TrafficMonitor) reportError(err error) {
	tm.mu.RLock()
	onError := tm.onError
	tm.mu.RUnlock()
	if onError != nil {
		onError(err)
	}
}

// safeDelta guards against counter resets, which would otherwise
// underflow the unsigned subtraction.
func safeDelta(current, base uint64) uint64 {
	if current < base {
		return 0
	}
	return current - base
}
