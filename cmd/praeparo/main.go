// Package main is the praeparo CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/praeparo-labs/praeparo/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
