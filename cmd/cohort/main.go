// Package main is the entry point for the cohort CLI tool.
package main

import (
	"os"

	"github.com/cohort-cli/cohort/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
