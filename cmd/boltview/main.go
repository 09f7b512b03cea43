// Package main provides the boltview CLI.
package main

import (
	"context"
	"os"

	"github.com/roach88/boltview/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
