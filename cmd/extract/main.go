package main

import (
	"os"

	"github.com/blackmichael/bluesky-extract/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
