// Command gesturecastd runs the gesture recognition vision loop and
// broadcasts gesture events to WebSocket subscribers.
package main

import (
	"fmt"
	"os"

	"github.com/ayusman/gesturecast/cmd/gesturecastd/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
