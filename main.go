// The main package for the ecfr-ingest executable.
package main

import (
	"github.com/regwatch/ecfr-ingest/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
