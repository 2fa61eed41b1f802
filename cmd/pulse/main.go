// Command pulse is the operator CLI for the patient-flow decision core.
package main

import (
	"os"

	"github.com/adaptivecare/pulse/cmd/pulse/commands"
)

// Version information set by build flags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
