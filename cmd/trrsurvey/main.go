package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Set at build time with -ldflags "-X main.commit=... -X main.buildTime=...".
var (
	commit    = "dev"
	buildTime = ""
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
