// Package vpn provides OpenVPN session management functionality.
// This file contains the event stream delivered to front-ends.
package vpn

import (
	"sync"
	"time"
)

// EventType identifies the kind of session event.
type EventType int

const (
	// EventStateChanged reports a session state transition.
	EventStateChanged EventType = iota
	// EventChallengeRequested reports that the server sent a challenge
	// and a response must be supplied.
	EventChallengeRequested
	// EventTrafficUpdated carries a periodic traffic sample.
	EventTrafficUpdated
	// EventAddressAssigned reports the tunnel interface address.
	EventAddressAssigned
	// EventWarning reports a non-fatal problem, such as traffic
	// sampling becoming unavailable.
	EventWarning
)

// String returns a human-readable event type string.
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "StateChanged"
	case EventChallengeRequested:
		return "ChallengeRequested"
	case EventTrafficUpdated:
		return "TrafficUpdated"
	case EventAddressAssigned:
		return "AddressAssigned"
	case EventWarning:
		return "Warning"
	default:
		return "Unknown"
	}
}

// TrafficSample holds byte deltas since the session baseline.
type TrafficSample struct {
	SentBytes uint64
	RecvBytes uint64
	Timestamp time.Time
}

// Event is a single item on the session event stream.
// Fields beyond Type and Time are set per event kind: State and Reason
// for state changes, Message for challenges and warnings, Sample for
// traffic updates, Address for address assignment.
type Event struct {
	Type    EventType
	State   SessionState
	Reason  error
	Message string
	Sample  TrafficSample
	Address string
	Time    time.Time
}

// eventQueue is a bounded event stream. Publishing never blocks: when
// the queue is full the oldest event is dropped to make room, so a slow
// or absent reader cannot stall the session.
type eventQueue struct {
	mu sync.Mutex
	ch chan Event
}

const eventQueueSize = 64

func newEventQueue() *eventQueue {
	return &eventQueue{ch: make(chan Event, eventQueueSize)}
}

// events returns the receive side of the queue. A single reader is
// expected; events are consumed on receipt.
func (q *eventQueue) events() <-chan Event {
	return q.ch
}

// publish enqueues an event, evicting the oldest one when full.
func (q *eventQueue) publish(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case q.ch <- e:
			return
		default:
		}
		select {
		case <-q.ch:
		default:
		}
	}
}
