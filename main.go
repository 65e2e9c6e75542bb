package main

import (
	"context"
	"os"

	"github.com/tphakala/petmood/cmd"
	"github.com/tphakala/petmood/internal/buildinfo"
	"github.com/tphakala/petmood/internal/conf"
)

// buildDate and version are set at build time with -ldflags "-X main.version=..."
var (
	buildDate string
	version   string
)

func main() {
	build := buildinfo.NewContext(version, buildDate)
	settings := &conf.Settings{}

	rootCmd := cmd.RootCommand(settings, build)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
