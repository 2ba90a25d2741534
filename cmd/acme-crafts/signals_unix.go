//go:build !plan9

package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// shutdownSignals are the OS signals that trigger a clean exit.
// SIGTERM is included for launchd/systemd service managers; SIGHUP for
// the terminal acme was started from going away.
var shutdownSignals = []os.Signal{os.Interrupt, unix.SIGTERM, unix.SIGHUP}
