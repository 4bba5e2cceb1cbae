// The main package for the lucas-download executable.
package main

import (
	"github.com/vfrank66/lucas-download/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
