// planit-cli is the command-line tool for inspecting a running PlanIt router.
package main

import (
	"os"

	"github.com/Aaks-hatH/planit-sub000/cmd/planit-cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
