package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/stagepass/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the account API
//	-d string   data directory for the token store
//	-t int      request timeout in seconds
//
// Only these flags are considered; subcommands and their arguments are
// filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the account API")
	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
