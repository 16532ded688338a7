// Package main provides the entry point for the OpenVPN client.
// The client drives OpenVPN sessions from the terminal: an interactive
// interface for day-to-day use and command-line flags for scripting.
//
// Features:
//   - Profile management for multiple VPN configurations
//   - Secure credential storage using the system keyring
//   - Real-time session state and traffic monitoring
//   - Challenge-response authentication for one-time codes
//   - Session history stored in a local database
//
// Usage:
//
//	ocl [options]
//
// Environment:
//
//	The application requires OpenVPN to be installed on the system, or
//	shipped in bin/ next to the executable.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiaanwilliams/OCL/cli"
	"github.com/bastiaanwilliams/OCL/common"
	"github.com/bastiaanwilliams/OCL/tui"
	"github.com/bastiaanwilliams/OCL/vpn"
)

// Set at build time through -ldflags "-X main.appVersion=...". The
// fallbacks identify a local development build.
var (
	appVersion = "dev"
	buildTime  = "unknown"
	commitSHA  = "unknown"
)

var (
	showVersion = flag.Bool("version", false, "Print the version and exit")
	verbose     = flag.Bool("verbose", false, "Log at debug level")
	showHelp    = flag.Bool("help", false, "Show usage")

	// Any of these flags switches the program into CLI mode.
	listProfiles  = flag.Bool("list", false, "List all VPN profiles")
	connectTarget = flag.String("connect", "", "Connect to a profile (name or ID) or .ovpn file")
	connectUser   = flag.String("user", "", "Username for -connect or -import")
	disconnectVPN = flag.Bool("disconnect", false, "Disconnect running OpenVPN sessions")
	showStatus    = flag.Bool("status", false, "Show current connection status")
	importFile    = flag.String("import", "", "Import an .ovpn file as a new profile")
	importName    = flag.String("name", "", "Profile name for -import")
	forgetTarget  = flag.String("forget", "", "Remove a saved profile")
	historyCount  = flag.Int("history", 0, "Show the N most recent sessions")
)

func cliMode() bool {
	return *listProfiles || *connectTarget != "" || *disconnectVPN || *showStatus ||
		*importFile != "" || *forgetTarget != "" || *historyCount > 0
}

func main() {
	flag.Parse()

	if *showHelp {
		cli.PrintHelp()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("%s v%s\n", common.AppName, appVersion)
		if buildTime != "unknown" {
			fmt.Printf("  Build:  %s\n", buildTime)
			fmt.Printf("  Commit: %s\n", commitSHA)
		}
		os.Exit(0)
	}

	logLevel := common.LevelInfo
	if *verbose {
		logLevel = common.LevelDebug
	}
	if err := common.InitLogger(common.LogConfig{Level: logLevel, EnableFile: true}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	defer common.CloseLogger()

	if cliMode() {
		runCLI()
		return
	}

	// Connecting needs an OpenVPN binary; profile and history
	// management does not.
	if _, err := vpn.ResolveExecutable(); err != nil {
		common.LogError("OpenVPN is not installed on the system")
		fmt.Fprintln(os.Stderr, "Error: OpenVPN is not installed on the system.")
		os.Exit(1)
	}

	common.LogInfo("Starting %s v%s", common.AppName, appVersion)
	if err := tui.Run(appVersion); err != nil {
		common.LogError("Interface error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCLI dispatches exactly one command-line operation.
func runCLI() {
	cliApp, err := cli.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer cliApp.Close()

	// Ctrl-C cancels the context; a running -connect session stops
	// cleanly before the process exits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	var cliErr error

	switch {
	case *listProfiles:
		cliErr = cliApp.ListProfiles()
	case *importFile != "":
		cliErr = cliApp.ImportProfile(*importFile, *importName, *connectUser)
	case *forgetTarget != "":
		cliErr = cliApp.ForgetProfile(*forgetTarget)
	case *historyCount > 0:
		cliErr = cliApp.History(*historyCount)
	case *disconnectVPN:
		cliErr = cliApp.Disconnect()
	case *showStatus:
		cliErr = cliApp.Status()
	case *connectTarget != "":
		if _, err := vpn.ResolveExecutable(); err != nil {
			fmt.Fprintln(os.Stderr, "Error: OpenVPN is not installed on the system.")
			os.Exit(1)
		}
		cliErr = cliApp.Connect(ctx, *connectTarget, *connectUser)
	}

	if cliErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cliErr)
		os.Exit(1)
	}
}

// setupSignalHandler cancels the context on SIGINT or SIGTERM.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, shutting down", sig)
		cancel()
	}()
}
