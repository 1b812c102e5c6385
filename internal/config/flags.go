package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/Perth-Artifactory/tidyproxy/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   directory to write the serve tree to (default "serve")
//	-force      ignore pull.lock and cache freshness, always rebuild
//	-setup      interactively create a starter config.json and exit
//
// The function filters os.Args to only the flags it owns, via
// flagx.FilterArgs, so it does not collide with the -c/-config flags read
// by the JSON loader.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-force", "-setup"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServeDir, "d", cfg.ServeDir, "directory to write the serve tree to")
	fs.BoolVar(&cfg.Force, "force", cfg.Force, "ignore pull.lock and cache freshness")
	fs.BoolVar(&cfg.Setup, "setup", cfg.Setup, "interactively create config.json")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: flags: %w", err)
	}
	return nil
}
