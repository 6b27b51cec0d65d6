package main

import (
	"context"
	"fmt"
	"os"

	"github.com/qubitrhythm/disensor/cmd"
	"github.com/qubitrhythm/disensor/internal/buildinfo"
	"github.com/qubitrhythm/disensor/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   string
	buildDate string
)

func main() {
	build := buildinfo.NewContext(version, buildDate)

	rootCmd := cmd.RootCommand(&conf.Settings{}, build)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
