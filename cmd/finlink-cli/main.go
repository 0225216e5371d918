// Package main provides the entry point for the finlink CLI.
package main

import (
	"fmt"
	"os"

	"finlink/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
