// Command runner executes login scenarios against a browser.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Version information, injected at build time.
var Version = "dev"

func main() {
	root := NewRootCmd()
	root.Version = Version
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errScenariosFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
