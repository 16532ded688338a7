// Package common is the shared foundation of the OpenVPN client. It
// depends on nothing else in the application, so every other package
// can import it freely.
//
// It collects the cross-cutting pieces:
//
//   - Constants: application identity, file names, timeouts, and
//     theme identifiers
//   - Errors: sentinel errors matched with errors.Is across packages
//   - Interfaces: small abstractions for credential encryption and
//     desktop notifications
//   - Logger: leveled logging with an optional size-rotated,
//     gzip-compressed file copy
//   - Utils: helpers for private per-user directories and files
//
// # Usage
//
//	import "github.com/bastiaanwilliams/OCL/common"
//
//	common.LogInfo("starting session for %s", profileName)
//
//	if errors.Is(err, common.ErrAuthFailed) {
//	    // credentials were rejected
//	}
package common
