// Command tapdin runs the Tap'dIn plan extraction service and its tooling.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
