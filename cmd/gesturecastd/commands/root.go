// Package commands defines the gesturecastd CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var rootCmd = &cobra.Command{
	Use:   "gesturecastd",
	Short: "Gesture event broadcast daemon",
	Long: `gesturecastd converts a live hand landmark stream into discrete,
UI-actionable gesture events and fans them out to WebSocket subscribers in
real time.`,
	Version: version,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets build metadata on the root command.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
