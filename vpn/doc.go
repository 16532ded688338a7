// Package vpn provides OpenVPN session management functionality.
//
// This package implements the core session functionality including:
//
//   - Session control: Spawning, authenticating, monitoring, and
//     terminating a single OpenVPN session
//   - Credential handshake: Answering the interactive username,
//     password, and challenge prompts on the process pty
//   - Traffic monitoring: Periodic byte-counter deltas while connected
//   - Profile management: Creating, updating, and deleting saved
//     connection profiles
//
// # Architecture
//
// The package is organized around four main types:
//
//   - Controller: Owns at most one session and publishes its lifecycle
//     on a bounded event stream
//   - Process: Supervises the spawned OpenVPN process on a pty and
//     exposes its output as lines
//   - TrafficMonitor: Samples network counters against a session
//     baseline
//   - ProfileManager: Handles persistence of connection profiles
//
// # Session Flow
//
// A typical session flow:
//
//  1. A front-end calls Controller.Start() with a config and credentials
//  2. The controller spawns OpenVPN on a pty and runs the handshake
//  3. A server challenge pauses the session until the front-end calls
//     SupplyChallengeResponse()
//  4. On "Initialization Sequence Completed" the session is Connected;
//     traffic samples and the tunnel address follow as events
//  5. Controller.Stop() signals the process and waits for it to exit
//
// Front-ends observe the session exclusively through Controller.Events.
//
// # OpenVPN Integration
//
// The binary is resolved from an explicit path, a bundled bin/ copy
// next to the application, or PATH, in that order. The process is
// driven through its interactive prompts the way a terminal user
// would; no management socket is used.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The
// Controller uses internal locking to protect shared state.
package vpn
