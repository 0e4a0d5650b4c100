// Package main provides the entry point for the feedwise CLI.
package main

import (
	"os"

	"github.com/feedwise/feedwise/cmd/feedwise/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
