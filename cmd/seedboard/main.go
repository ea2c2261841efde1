// @title        seedboard API
// @version      1.0
// @description  Real-time role-gated message board.
// @BasePath     /
package main

import (
	"fmt"
	"os"

	"github.com/99minutos/seedboard/cmd/seedboard/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
)

func main() {
	commands.SetVersionInfo(version, commit)
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
