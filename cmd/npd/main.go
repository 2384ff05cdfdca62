// Package main is the entry point for the npd CLI.
package main

import (
	"os"

	"github.com/pigeonworks-llc/npd-client/cmd/npd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
