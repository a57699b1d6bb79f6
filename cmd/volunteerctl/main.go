// Package main is the entry point for the volunteerctl admin tool.
package main

import (
	"os"

	"github.com/civicworks/volunteerhub/cmd/volunteerctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
