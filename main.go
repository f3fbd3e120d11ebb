// The main package for the snapshots executable.
package main

import (
	"github.com/JakeFAU/weekly-snapshots/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
