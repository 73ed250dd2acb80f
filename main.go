// The main package for the slidehost executable.
package main

import (
	"github.com/tilepath/slidehost/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
