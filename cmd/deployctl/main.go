// Package main is the entry point for deployctl, the operator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/pandeptwidyaop/deploy-manager/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "deployctl: %v\n", err)
		os.Exit(1)
	}
}
